package client

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Product mirrors the server's product resource.
type Product struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Cost        *float64 `json:"cost,omitempty"`
	BannerImage string   `json:"banner_image,omitempty"`
}

// ProductFields is the payload for create and update. Cost travels as a
// string and is parsed server-side; the banner image is optional binary.
type ProductFields struct {
	Name        string
	Description string
	Cost        string
	BannerName  string
	Banner      io.Reader
}

func (f ProductFields) form() map[string]string {
	fields := map[string]string{"name": f.Name}
	if f.Description != "" {
		fields["description"] = f.Description
	}
	if f.Cost != "" {
		fields["cost"] = f.Cost
	}
	return fields
}

func (f ProductFields) upload() *Upload {
	if f.Banner == nil {
		return nil
	}
	return &Upload{Field: "banner_image", Filename: f.BannerName, Content: f.Banner}
}

// ProductService performs authenticated product CRUD. It keeps a snapshot of
// the last listed set; the snapshot is never patched in place. After every
// successful mutation it is discarded and refetched, so callers always see
// the server's view.
type ProductService struct {
	api     *Client
	session *SessionManager

	mu     sync.Mutex
	cached []Product
}

func NewProductService(api *Client, session *SessionManager) *ProductService {
	return &ProductService{api: api, session: session}
}

type listResponse struct {
	Products []Product `json:"products"`
}

type productResponse struct {
	Product Product `json:"product"`
}

// List fetches the full server-ordered set for the authenticated user.
func (s *ProductService) List(ctx context.Context) ([]Product, error) {
	if err := s.requireAuth(); err != nil {
		return nil, err
	}

	var resp listResponse
	if err := s.api.Get(ctx, "/products", &resp); err != nil {
		return nil, s.mapErr(err)
	}
	if resp.Products == nil {
		resp.Products = []Product{}
	}

	s.mu.Lock()
	s.cached = resp.Products
	s.mu.Unlock()

	return resp.Products, nil
}

// Create adds a product and refreshes the snapshot.
func (s *ProductService) Create(ctx context.Context, fields ProductFields) (*Product, error) {
	if err := s.requireAuth(); err != nil {
		return nil, err
	}

	var resp productResponse
	if err := s.api.PostForm(ctx, "/products", fields.form(), fields.upload(), &resp); err != nil {
		return nil, s.mapErr(err)
	}

	if _, err := s.List(ctx); err != nil {
		return nil, err
	}
	return &resp.Product, nil
}

// Update replaces a product's fields and refreshes the snapshot. Supplying a
// new banner image makes the server discard the previous one.
func (s *ProductService) Update(ctx context.Context, id int64, fields ProductFields) (*Product, error) {
	if err := s.requireAuth(); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/products/%d?_method=PUT", id)
	var resp productResponse
	if err := s.api.PostForm(ctx, path, fields.form(), fields.upload(), &resp); err != nil {
		return nil, s.mapErr(err)
	}

	if _, err := s.List(ctx); err != nil {
		return nil, err
	}
	return &resp.Product, nil
}

// Delete removes a product permanently and refreshes the snapshot.
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	if err := s.requireAuth(); err != nil {
		return err
	}

	if err := s.api.Delete(ctx, fmt.Sprintf("/products/%d", id), nil); err != nil {
		return s.mapErr(err)
	}

	_, err := s.List(ctx)
	return err
}

// Cached returns the last fetched snapshot without touching the network.
func (s *ProductService) Cached() []Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Product(nil), s.cached...)
}

// requireAuth is the local fast check; the server independently enforces
// authentication and ownership on every call.
func (s *ProductService) requireAuth() error {
	if !s.session.IsAuthenticated() {
		return &Error{Kind: KindUnauthenticated, Message: "not authenticated"}
	}
	return nil
}

// mapErr reclassifies a 401 on an authenticated call: the token the session
// held is no longer honored, so the session itself is expired.
func (s *ProductService) mapErr(err error) error {
	if ce, ok := err.(*Error); ok && ce.Kind == KindUnauthorized {
		s.session.Expire()
		return &Error{Kind: KindSessionExpired, Status: ce.Status, Message: "session expired"}
	}
	return err
}
