package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/sakif/places-api/internal/config"
	"github.com/sakif/places-api/internal/geocode"
	"github.com/sakif/places-api/internal/storage"
)

// stubGeocoder resolves every address to fixed coordinates so the tests never
// hit a real geocoding service.
type stubGeocoder struct{}

func (stubGeocoder) Geocode(_ context.Context, _ string) (geocode.Coordinates, error) {
	return geocode.Coordinates{Lat: 40.7484, Lng: -73.9857}, nil
}

// newTestServer assembles a full server over an in-memory database, a stub
// geocoder, and a throwaway upload directory, which it returns so tests can
// inspect stored files.
func newTestServer(t *testing.T) (http.Handler, string) {
	t.Helper()

	cfg := config.Config{
		Port:         0,
		DBPath:       ":memory:",
		JWTSecret:    "test-secret-at-least-16",
		UploadDir:    t.TempDir(),
		AssetBackend: config.AssetBackendDisk,
	}

	assets, err := storage.NewDiskStore(cfg.UploadDir)
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(cfg, logger, stubGeocoder{}, assets)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { srv.db.Close() })

	return srv.Handler(), cfg.UploadDir
}

// doJSON sends a JSON request through the handler and decodes the JSON
// response into a generic map.
func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reqBody = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reqBody)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	decoded := map[string]any{}
	if rec.Body.Len() > 0 {
		// Some error paths respond with plain text; ignore decode failures
		// and let the caller assert on status alone.
		_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec.Code, decoded
}

// signupUser registers an account and returns its ID and token.
func signupUser(t *testing.T, h http.Handler, email string) (string, string) {
	t.Helper()
	status, body := doJSON(t, h, http.MethodPost, "/api/users/signup", "", map[string]string{
		"name":     "Test User",
		"email":    email,
		"password": "secret123",
	})
	if status != http.StatusCreated {
		t.Fatalf("signup status = %d, body = %v", status, body)
	}
	userID, _ := body["userId"].(string)
	token, _ := body["token"].(string)
	if userID == "" || token == "" {
		t.Fatalf("signup response missing userId/token: %v", body)
	}
	return userID, token
}

// createPlace creates a place for the token's user and returns its ID.
func createPlace(t *testing.T, h http.Handler, token, title string) string {
	t.Helper()
	status, body := doJSON(t, h, http.MethodPost, "/api/places", token, map[string]string{
		"title":       title,
		"description": "A description",
		"address":     "20 W 34th St, New York",
	})
	if status != http.StatusCreated {
		t.Fatalf("create place status = %d, body = %v", status, body)
	}
	place, _ := body["place"].(map[string]any)
	id, _ := place["id"].(string)
	if id == "" {
		t.Fatalf("create place response missing id: %v", body)
	}
	return id
}

// ============================================================================
// Health and auth gate
// ============================================================================

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)

	status, _ := doJSON(t, h, http.MethodGet, "/health", "", nil)
	if status != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", status)
	}
}

func TestAuthGate(t *testing.T) {
	h, _ := newTestServer(t)

	// Mutations require a token.
	status, _ := doJSON(t, h, http.MethodPost, "/api/places", "", map[string]string{"title": "x"})
	if status != http.StatusUnauthorized {
		t.Errorf("unauthenticated POST /api/places = %d, want 401", status)
	}
	status, _ = doJSON(t, h, http.MethodDelete, "/api/places/some-id", "", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("unauthenticated DELETE = %d, want 401", status)
	}

	// Reads do not.
	status, _ = doJSON(t, h, http.MethodGet, "/api/users", "", nil)
	if status != http.StatusOK {
		t.Errorf("GET /api/users = %d, want 200", status)
	}
}

// ============================================================================
// Signup and login
// ============================================================================

func TestSignupAndLogin(t *testing.T) {
	h, _ := newTestServer(t)

	userID, _ := signupUser(t, h, "max@test.com")

	// Duplicate email answers 422.
	status, _ := doJSON(t, h, http.MethodPost, "/api/users/signup", "", map[string]string{
		"name":     "Imposter",
		"email":    "max@test.com",
		"password": "different456",
	})
	if status != http.StatusUnprocessableEntity {
		t.Errorf("duplicate signup = %d, want 422", status)
	}

	// Wrong password answers 401.
	status, _ = doJSON(t, h, http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    "max@test.com",
		"password": "wrongwrong",
	})
	if status != http.StatusUnauthorized {
		t.Errorf("login with wrong password = %d, want 401", status)
	}

	// Correct credentials answer 200 with a usable token.
	status, body := doJSON(t, h, http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    "max@test.com",
		"password": "secret123",
	})
	if status != http.StatusOK {
		t.Fatalf("login = %d, body = %v", status, body)
	}
	if got, _ := body["userId"].(string); got != userID {
		t.Errorf("login userId = %q, want %q", got, userID)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("login response has no token")
	}

	if id := createPlace(t, h, token, "Proves the token works"); id == "" {
		t.Error("token from login should authorize a create")
	}
}

func TestSignup_ShortPassword(t *testing.T) {
	h, _ := newTestServer(t)

	status, _ := doJSON(t, h, http.MethodPost, "/api/users/signup", "", map[string]string{
		"name":     "Max",
		"email":    "max@test.com",
		"password": "123",
	})
	if status != http.StatusUnprocessableEntity {
		t.Errorf("signup with short password = %d, want 422", status)
	}
}

func TestGetUser(t *testing.T) {
	h, _ := newTestServer(t)
	userID, token := signupUser(t, h, "max@test.com")
	placeID := createPlace(t, h, token, "Owned")

	status, body := doJSON(t, h, http.MethodGet, "/api/users/"+userID, "", nil)
	if status != http.StatusOK {
		t.Fatalf("GET user = %d, body = %v", status, body)
	}
	user, _ := body["user"].(map[string]any)
	if user["email"] != "max@test.com" {
		t.Errorf("email = %v", user["email"])
	}
	places, _ := user["places"].([]any)
	if len(places) != 1 || places[0] != placeID {
		t.Errorf("places = %v, want [%s]", user["places"], placeID)
	}
	if _, leaked := user["passwordHash"]; leaked {
		t.Error("user response carries password material")
	}

	status, _ = doJSON(t, h, http.MethodGet, "/api/users/no-such-user", "", nil)
	if status != http.StatusNotFound {
		t.Errorf("GET unknown user = %d, want 404", status)
	}
}

func TestListUsers_NoPasswordHashes(t *testing.T) {
	h, _ := newTestServer(t)
	signupUser(t, h, "max@test.com")

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/users = %d", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("password")) {
		t.Error("user listing leaks password material")
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("$2")) {
		t.Error("user listing leaks a bcrypt hash")
	}
}

// ============================================================================
// Place lifecycle
// ============================================================================

func TestPlaceLifecycle(t *testing.T) {
	h, _ := newTestServer(t)
	userID, token := signupUser(t, h, "max@test.com")

	placeID := createPlace(t, h, token, "Empire State Building")

	// Public read.
	status, body := doJSON(t, h, http.MethodGet, "/api/places/"+placeID, "", nil)
	if status != http.StatusOK {
		t.Fatalf("GET place = %d, body = %v", status, body)
	}
	place, _ := body["place"].(map[string]any)
	if place["title"] != "Empire State Building" {
		t.Errorf("title = %v", place["title"])
	}
	if place["creator"] != userID {
		t.Errorf("creator = %v, want %v", place["creator"], userID)
	}
	loc, _ := place["location"].(map[string]any)
	if loc["lat"] != 40.7484 {
		t.Errorf("lat = %v, want the stub geocoder's value", loc["lat"])
	}

	// The creator's listing shows it.
	status, body = doJSON(t, h, http.MethodGet, "/api/places/user/"+userID, "", nil)
	if status != http.StatusOK {
		t.Fatalf("GET user places = %d", status)
	}
	if places, _ := body["places"].([]any); len(places) != 1 {
		t.Errorf("user places = %v, want one entry", body["places"])
	}

	// Update sticks.
	status, body = doJSON(t, h, http.MethodPatch, "/api/places/"+placeID, token, map[string]string{
		"title":       "Renamed",
		"description": "Still a description",
	})
	if status != http.StatusOK {
		t.Fatalf("PATCH place = %d, body = %v", status, body)
	}
	place, _ = body["place"].(map[string]any)
	if place["title"] != "Renamed" {
		t.Errorf("title after update = %v", place["title"])
	}

	// Delete answers the fixed message and removes everything.
	status, body = doJSON(t, h, http.MethodDelete, "/api/places/"+placeID, token, nil)
	if status != http.StatusOK {
		t.Fatalf("DELETE place = %d", status)
	}
	if body["message"] != "Deleted place." {
		t.Errorf("delete message = %v", body["message"])
	}

	status, _ = doJSON(t, h, http.MethodGet, "/api/places/"+placeID, "", nil)
	if status != http.StatusNotFound {
		t.Errorf("GET deleted place = %d, want 404", status)
	}

	// The back-reference is gone too.
	status, body = doJSON(t, h, http.MethodGet, "/api/places/user/"+userID, "", nil)
	if status != http.StatusOK {
		t.Fatalf("GET user places = %d", status)
	}
	if places, _ := body["places"].([]any); len(places) != 0 {
		t.Errorf("user places after delete = %v, want empty", body["places"])
	}
}

func TestPlaceOwnership(t *testing.T) {
	h, _ := newTestServer(t)
	_, ownerToken := signupUser(t, h, "owner@test.com")
	_, strangerToken := signupUser(t, h, "stranger@test.com")

	placeID := createPlace(t, h, ownerToken, "Owned")

	status, _ := doJSON(t, h, http.MethodPatch, "/api/places/"+placeID, strangerToken, map[string]string{
		"title":       "Hijacked",
		"description": "Nope",
	})
	if status != http.StatusForbidden {
		t.Errorf("PATCH by non-creator = %d, want 403", status)
	}

	status, _ = doJSON(t, h, http.MethodDelete, "/api/places/"+placeID, strangerToken, nil)
	if status != http.StatusForbidden {
		t.Errorf("DELETE by non-creator = %d, want 403", status)
	}

	// Still there, still intact.
	status, body := doJSON(t, h, http.MethodGet, "/api/places/"+placeID, "", nil)
	if status != http.StatusOK {
		t.Fatalf("GET place = %d", status)
	}
	place, _ := body["place"].(map[string]any)
	if place["title"] != "Owned" {
		t.Errorf("title = %v, want Owned", place["title"])
	}
}

// multipartBody builds a multipart form with the given fields and an "image"
// file part named photo.png.
func multipartBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	for field, value := range fields {
		if err := form.WriteField(field, value); err != nil {
			t.Fatal(err)
		}
	}
	part, err := form.CreateFormFile("image", "photo.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte("fake png bytes")); err != nil {
		t.Fatal(err)
	}
	form.Close()
	return &buf, form.FormDataContentType()
}

// Creating a place with a multipart form stores the image and serves it back
// under /uploads/.
func TestPlaceCreate_MultipartUpload(t *testing.T) {
	h, _ := newTestServer(t)
	_, token := signupUser(t, h, "max@test.com")

	buf, contentType := multipartBody(t, map[string]string{
		"title":       "With a photo",
		"description": "A description",
		"address":     "20 W 34th St, New York",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/places", buf)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("multipart create = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Place struct {
			Image string `json:"image"`
		} `json:"place"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(body.Place.Image, "uploads/") {
		t.Fatalf("image ref = %q, want an uploads/ reference", body.Place.Image)
	}

	// The stored reference doubles as the serving path.
	status, _ := doJSON(t, h, http.MethodGet, "/"+body.Place.Image, "", nil)
	if status != http.StatusOK {
		t.Errorf("GET /%s = %d, want 200", body.Place.Image, status)
	}
}

// A multipart create the service rejects must not strand the uploaded image.
func TestPlaceCreate_RejectedUploadIsDiscarded(t *testing.T) {
	h, uploadDir := newTestServer(t)
	_, token := signupUser(t, h, "max@test.com")

	// Missing description fails validation after the image is stored.
	buf, contentType := multipartBody(t, map[string]string{
		"title":   "No description",
		"address": "20 W 34th St, New York",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/places", buf)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("create = %d, want 422", rec.Code)
	}

	entries, err := os.ReadDir(uploadDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("upload dir has %d files after a rejected create, want 0", len(entries))
	}
}

func TestPlaceListByUser_UnknownUser(t *testing.T) {
	h, _ := newTestServer(t)

	status, _ := doJSON(t, h, http.MethodGet, "/api/places/user/no-such-user", "", nil)
	if status != http.StatusNotFound {
		t.Errorf("GET places of unknown user = %d, want 404", status)
	}
}

func TestPlaceCreate_MissingFields(t *testing.T) {
	h, _ := newTestServer(t)
	_, token := signupUser(t, h, "max@test.com")

	status, _ := doJSON(t, h, http.MethodPost, "/api/places", token, map[string]string{
		"title": "No description or address",
	})
	if status != http.StatusUnprocessableEntity {
		t.Errorf("create with missing fields = %d, want 422", status)
	}
}
