package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jfelder/stockroom/internal/database"
	"github.com/jfelder/stockroom/internal/storage"
)

func setupTestServer(t *testing.T) (http.Handler, string) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	uploadRoot := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(db, storage.NewLocalStore(uploadRoot), logger)
	return srv.Router(), uploadRoot
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

func registerAndLogin(t *testing.T, router http.Handler, name, email string) string {
	t.Helper()
	rec := doJSON(t, router, "POST", "/register", "", map[string]string{
		"name": name, "email": email, "password": "secret-password",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, "POST", "/login", "", map[string]string{
		"email": email, "password": "secret-password",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	token, _ := decodeBody(t, rec)["token"].(string)
	if token == "" {
		t.Fatal("expected token in login response")
	}
	return token
}

func multipartBody(t *testing.T, fields map[string]string, fileField, filename, fileContent string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if fileField != "" {
		part, err := mw.CreateFormFile(fileField, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write([]byte(fileContent))
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func doMultipart(t *testing.T, router http.Handler, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterValidation(t *testing.T) {
	router, _ := setupTestServer(t)

	rec := doJSON(t, router, "POST", "/register", "", map[string]string{})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	body := decodeBody(t, rec)
	errs, ok := body["errors"].(map[string]any)
	if !ok {
		t.Fatalf("expected errors map, got %v", body)
	}
	for _, field := range []string{"name", "email", "password"} {
		if _, present := errs[field]; !present {
			t.Errorf("expected validation error for %s", field)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	router, _ := setupTestServer(t)

	payload := map[string]string{"name": "Alice", "email": "alice@example.com", "password": "secret-password"}
	if rec := doJSON(t, router, "POST", "/register", "", payload); rec.Code != http.StatusCreated {
		t.Fatalf("first register status = %d", rec.Code)
	}
	rec := doJSON(t, router, "POST", "/register", "", payload)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate register status = %d, want 422", rec.Code)
	}
	errs := decodeBody(t, rec)["errors"].(map[string]any)
	if _, present := errs["email"]; !present {
		t.Error("expected email error for duplicate registration")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	router, _ := setupTestServer(t)
	registerAndLogin(t, router, "Alice", "alice@example.com")

	rec := doJSON(t, router, "POST", "/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if msg := decodeBody(t, rec)["message"]; msg != "Invalid login details" {
		t.Errorf("message = %v", msg)
	}
}

func TestLoginReturnsUser(t *testing.T) {
	router, _ := setupTestServer(t)
	registerAndLogin(t, router, "Alice", "alice@example.com")

	rec := doJSON(t, router, "POST", "/login", "", map[string]string{
		"email": "alice@example.com", "password": "secret-password",
	})
	body := decodeBody(t, rec)
	user, ok := body["user"].(map[string]any)
	if !ok {
		t.Fatalf("expected user in response, got %v", body)
	}
	if user["email"] != "alice@example.com" || user["name"] != "Alice" {
		t.Errorf("user = %v", user)
	}
	if _, present := user["password_hash"]; present {
		t.Error("password hash must not appear in responses")
	}
}

func TestProfile(t *testing.T) {
	router, _ := setupTestServer(t)
	token := registerAndLogin(t, router, "Alice", "alice@example.com")

	rec := doJSON(t, router, "GET", "/profile", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	data := decodeBody(t, rec)["data"].(map[string]any)
	if data["email"] != "alice@example.com" {
		t.Errorf("profile email = %v", data["email"])
	}
}

func TestProfileUnauthenticated(t *testing.T) {
	router, _ := setupTestServer(t)

	rec := doJSON(t, router, "GET", "/profile", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	router, _ := setupTestServer(t)
	token := registerAndLogin(t, router, "Alice", "alice@example.com")

	if rec := doJSON(t, router, "POST", "/logout", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}

	rec := doJSON(t, router, "GET", "/profile", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("profile after logout = %d, want 401", rec.Code)
	}
}

func TestProductCreateWithImage(t *testing.T) {
	router, uploadRoot := setupTestServer(t)
	token := registerAndLogin(t, router, "Alice", "alice@example.com")

	body, contentType := multipartBody(t, map[string]string{
		"name": "Widget", "description": "A fine widget", "cost": "9.99",
	}, "banner_image", "banner.png", "imagedata")

	rec := doMultipart(t, router, "POST", "/products", token, body, contentType)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	product := decodeBody(t, rec)["product"].(map[string]any)
	if product["name"] != "Widget" {
		t.Errorf("name = %v", product["name"])
	}
	if product["cost"] != 9.99 {
		t.Errorf("cost = %v, want 9.99", product["cost"])
	}
	banner, _ := product["banner_image"].(string)
	if !strings.HasPrefix(banner, "/storage/products/") {
		t.Fatalf("banner_image = %q", banner)
	}

	// The upload must land on disk under the storage root.
	onDisk := filepath.Join(uploadRoot, strings.TrimPrefix(banner, "/storage/"))
	data, err := os.ReadFile(onDisk)
	if err != nil {
		t.Fatalf("read stored banner: %v", err)
	}
	if string(data) != "imagedata" {
		t.Errorf("stored banner = %q", data)
	}
}

func TestProductCreateRequiresName(t *testing.T) {
	router, _ := setupTestServer(t)
	token := registerAndLogin(t, router, "Alice", "alice@example.com")

	body, contentType := multipartBody(t, map[string]string{"cost": "1.00"}, "", "", "")
	rec := doMultipart(t, router, "POST", "/products", token, body, contentType)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestProductCreateRejectsNegativeCost(t *testing.T) {
	router, _ := setupTestServer(t)
	token := registerAndLogin(t, router, "Alice", "alice@example.com")

	body, contentType := multipartBody(t, map[string]string{"name": "Widget", "cost": "-1"}, "", "", "")
	rec := doMultipart(t, router, "POST", "/products", token, body, contentType)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestProductListScopedToOwner(t *testing.T) {
	router, _ := setupTestServer(t)
	alice := registerAndLogin(t, router, "Alice", "alice@example.com")
	bob := registerAndLogin(t, router, "Bob", "bob@example.com")

	for _, name := range []string{"Widget", "Gadget"} {
		body, contentType := multipartBody(t, map[string]string{"name": name}, "", "", "")
		if rec := doMultipart(t, router, "POST", "/products", alice, body, contentType); rec.Code != http.StatusCreated {
			t.Fatalf("create %s = %d", name, rec.Code)
		}
	}

	rec := doJSON(t, router, "GET", "/products", bob, nil)
	products := decodeBody(t, rec)["products"].([]any)
	if len(products) != 0 {
		t.Errorf("bob sees %d products, want 0", len(products))
	}

	rec = doJSON(t, router, "GET", "/products", alice, nil)
	products = decodeBody(t, rec)["products"].([]any)
	if len(products) != 2 {
		t.Fatalf("alice sees %d products, want 2", len(products))
	}
	first := products[0].(map[string]any)
	if first["name"] != "Widget" {
		t.Errorf("first product = %v, want insertion order", first["name"])
	}
}

func TestProductUpdateReplacesImage(t *testing.T) {
	router, uploadRoot := setupTestServer(t)
	token := registerAndLogin(t, router, "Alice", "alice@example.com")

	body, contentType := multipartBody(t, map[string]string{"name": "Widget"}, "banner_image", "old.png", "old")
	rec := doMultipart(t, router, "POST", "/products", token, body, contentType)
	product := decodeBody(t, rec)["product"].(map[string]any)
	id := int64(product["id"].(float64))
	oldBanner := product["banner_image"].(string)

	body, contentType = multipartBody(t, map[string]string{"name": "Widget v2", "cost": "12.50"}, "banner_image", "new.png", "new")
	rec = doMultipart(t, router, "POST", fmt.Sprintf("/products/%d?_method=PUT", id), token, body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}
	updated := decodeBody(t, rec)["product"].(map[string]any)
	if updated["name"] != "Widget v2" {
		t.Errorf("name = %v", updated["name"])
	}
	newBanner := updated["banner_image"].(string)
	if newBanner == oldBanner {
		t.Error("expected a new banner path")
	}

	// Old image is discarded on replacement.
	oldOnDisk := filepath.Join(uploadRoot, strings.TrimPrefix(oldBanner, "/storage/"))
	if _, err := os.Stat(oldOnDisk); !os.IsNotExist(err) {
		t.Error("expected old banner removed from disk")
	}
}

func TestProductUpdateWithoutMethodOverride(t *testing.T) {
	router, _ := setupTestServer(t)
	token := registerAndLogin(t, router, "Alice", "alice@example.com")

	body, contentType := multipartBody(t, map[string]string{"name": "Widget"}, "", "", "")
	rec := doMultipart(t, router, "POST", "/products", token, body, contentType)
	id := int64(decodeBody(t, rec)["product"].(map[string]any)["id"].(float64))

	body, contentType = multipartBody(t, map[string]string{"name": "Widget v2"}, "", "", "")
	rec = doMultipart(t, router, "POST", fmt.Sprintf("/products/%d", id), token, body, contentType)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405 without _method=PUT", rec.Code)
	}
}

func TestProductUpdateOwnership(t *testing.T) {
	router, _ := setupTestServer(t)
	alice := registerAndLogin(t, router, "Alice", "alice@example.com")
	bob := registerAndLogin(t, router, "Bob", "bob@example.com")

	body, contentType := multipartBody(t, map[string]string{"name": "Widget"}, "", "", "")
	rec := doMultipart(t, router, "POST", "/products", alice, body, contentType)
	id := int64(decodeBody(t, rec)["product"].(map[string]any)["id"].(float64))

	body, contentType = multipartBody(t, map[string]string{"name": "Stolen"}, "", "", "")
	rec = doMultipart(t, router, "POST", fmt.Sprintf("/products/%d?_method=PUT", id), bob, body, contentType)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestProductDelete(t *testing.T) {
	router, uploadRoot := setupTestServer(t)
	token := registerAndLogin(t, router, "Alice", "alice@example.com")

	body, contentType := multipartBody(t, map[string]string{"name": "Widget"}, "banner_image", "banner.png", "imagedata")
	rec := doMultipart(t, router, "POST", "/products", token, body, contentType)
	product := decodeBody(t, rec)["product"].(map[string]any)
	id := int64(product["id"].(float64))
	banner := product["banner_image"].(string)

	rec = doJSON(t, router, "DELETE", fmt.Sprintf("/products/%d", id), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doJSON(t, router, "GET", "/products", token, nil)
	if products := decodeBody(t, rec)["products"].([]any); len(products) != 0 {
		t.Errorf("expected empty list after delete, got %d", len(products))
	}

	onDisk := filepath.Join(uploadRoot, strings.TrimPrefix(banner, "/storage/"))
	if _, err := os.Stat(onDisk); !os.IsNotExist(err) {
		t.Error("expected banner removed from disk")
	}

	rec = doJSON(t, router, "DELETE", fmt.Sprintf("/products/%d", id), token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestProductDeleteOwnership(t *testing.T) {
	router, _ := setupTestServer(t)
	alice := registerAndLogin(t, router, "Alice", "alice@example.com")
	bob := registerAndLogin(t, router, "Bob", "bob@example.com")

	body, contentType := multipartBody(t, map[string]string{"name": "Widget"}, "", "", "")
	rec := doMultipart(t, router, "POST", "/products", alice, body, contentType)
	id := int64(decodeBody(t, rec)["product"].(map[string]any)["id"].(float64))

	rec = doJSON(t, router, "DELETE", fmt.Sprintf("/products/%d", id), bob, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestProductsUnauthenticated(t *testing.T) {
	router, _ := setupTestServer(t)

	rec := doJSON(t, router, "GET", "/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	router, _ := setupTestServer(t)

	rec := doJSON(t, router, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if status := decodeBody(t, rec)["status"]; status != "ok" {
		t.Errorf("status = %v", status)
	}
}
