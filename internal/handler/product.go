package handler

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/jfelder/stockroom/internal/auth"
	"github.com/jfelder/stockroom/internal/model"
	"github.com/jfelder/stockroom/internal/storage"
	"github.com/jfelder/stockroom/internal/store"
)

// maxUploadSize bounds the multipart form, banner image included.
const maxUploadSize = 10 << 20

type ProductHandler struct {
	productStore *store.ProductStore
	blobs        storage.BlobStore
	logger       *slog.Logger
}

func NewProductHandler(ps *store.ProductStore, blobs storage.BlobStore, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		productStore: ps,
		blobs:        blobs,
		logger:       logger,
	}
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.productStore.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list products", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to fetch products."})
		return
	}
	if products == nil {
		products = []model.Product{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   true,
		"message":  "Products fetched successfully",
		"products": products,
	})
}

// productForm is the validated multipart payload for create and update.
type productForm struct {
	name        string
	description string
	cost        *float64
	file        multipart.File
	fileHeader  *multipart.FileHeader
}

func (h *ProductHandler) parseProductForm(r *http.Request) (*productForm, fieldErrors) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, fieldErrors{"form": {"The request body must be multipart form data."}}
	}

	form := &productForm{
		name:        strings.TrimSpace(r.FormValue("name")),
		description: strings.TrimSpace(r.FormValue("description")),
	}

	fe := fieldErrors{}
	if form.name == "" {
		fe.add("name", "The name field is required.")
	}
	if len(form.name) > 255 {
		fe.add("name", "The name may not be greater than 255 characters.")
	}

	// Cost travels as a string field and is parsed server-side.
	if costStr := strings.TrimSpace(r.FormValue("cost")); costStr != "" {
		cost, err := strconv.ParseFloat(costStr, 64)
		if err != nil {
			fe.add("cost", "The cost must be a number.")
		} else if cost < 0 {
			fe.add("cost", "The cost may not be negative.")
		} else {
			form.cost = &cost
		}
	}

	file, header, err := r.FormFile("banner_image")
	switch {
	case err == nil:
		form.file = file
		form.fileHeader = header
	case errors.Is(err, http.ErrMissingFile):
		// image is optional
	default:
		fe.add("banner_image", "The banner image could not be read.")
	}

	if len(fe) > 0 {
		if form.file != nil {
			form.file.Close()
		}
		return nil, fe
	}
	return form, nil
}

func (h *ProductHandler) saveBanner(r *http.Request, form *productForm) (string, error) {
	defer form.file.Close()

	key := storage.ObjectKey(form.fileHeader.Filename)
	contentType := form.fileHeader.Header.Get("Content-Type")
	return h.blobs.Save(r.Context(), key, form.file, form.fileHeader.Size, contentType)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	form, fe := h.parseProductForm(r)
	if fe != nil {
		writeValidationErrors(w, fe)
		return
	}

	bannerImage := ""
	if form.file != nil {
		path, err := h.saveBanner(r, form)
		if err != nil {
			h.logger.Error("save banner image", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to store banner image."})
			return
		}
		bannerImage = path
	}

	product, err := h.productStore.Create(auth.UserID(r.Context()), form.name, form.description, form.cost, bannerImage)
	if err != nil {
		h.logger.Error("create product", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to create product."})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status":  true,
		"message": "Product created successfully",
		"product": product,
	})
}

// Update handles PUT /products/{id} and the form-friendly
// POST /products/{id}?_method=PUT override.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost && !strings.EqualFold(r.URL.Query().Get("_method"), "PUT") {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "Method not allowed."})
		return
	}

	existing, ok := h.ownedProduct(w, r)
	if !ok {
		return
	}

	form, fe := h.parseProductForm(r)
	if fe != nil {
		writeValidationErrors(w, fe)
		return
	}

	bannerImage := existing.BannerImage
	if form.file != nil {
		path, err := h.saveBanner(r, form)
		if err != nil {
			h.logger.Error("save banner image", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to store banner image."})
			return
		}
		// The replaced image is gone for good; a failed removal only leaks a file.
		if existing.BannerImage != "" {
			if err := h.blobs.Delete(r.Context(), existing.BannerImage); err != nil {
				h.logger.Error("delete old banner image", "error", err, "path", existing.BannerImage)
			}
		}
		bannerImage = path
	}

	product, err := h.productStore.Update(existing.ID, form.name, form.description, form.cost, bannerImage)
	if err != nil {
		h.logger.Error("update product", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to update product."})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  true,
		"message": "Product updated successfully",
		"product": product,
	})
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.ownedProduct(w, r)
	if !ok {
		return
	}

	if existing.BannerImage != "" {
		if err := h.blobs.Delete(r.Context(), existing.BannerImage); err != nil {
			h.logger.Error("delete banner image", "error", err, "path", existing.BannerImage)
		}
	}

	if err := h.productStore.Delete(existing.ID); err != nil {
		h.logger.Error("delete product", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to delete product."})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  true,
		"message": "Product deleted successfully",
	})
}

// ownedProduct loads the product in the path and enforces ownership. On
// failure it writes the response and returns ok=false.
func (h *ProductHandler) ownedProduct(w http.ResponseWriter, r *http.Request) (*model.Product, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid product id."})
		return nil, false
	}

	product, err := h.productStore.GetByID(id)
	if err != nil {
		h.logger.Error("get product", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to fetch product."})
		return nil, false
	}
	if product == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Product not found."})
		return nil, false
	}
	if product.UserID != auth.UserID(r.Context()) {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Unauthorized."})
		return nil, false
	}
	return product, true
}
