package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/places-api/internal/model"
	"github.com/sakif/places-api/internal/service"
	"github.com/sakif/places-api/internal/storage"
)

// maxUploadSize bounds multipart request bodies (form fields + image).
const maxUploadSize = 8 << 20 // 8 MiB

// UserHandler serves the user endpoints: listing, signup, and login.
//
// Signup accepts either JSON or multipart/form-data; the multipart form may
// carry a profile image under the "image" field, which is persisted through
// the asset store before the account is created.
type UserHandler struct {
	users  *service.UserService
	assets storage.ObjectStore
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users *service.UserService, assets storage.ObjectStore, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, assets: assets, logger: logger}
}

// authResponse is the body returned by signup and login.
// Deliberately small: just enough for the client to store the session.
type authResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

// HandleList returns all registered users.
//
// HTTP: GET /api/users
// Password hashes never appear: model.User tags the field `json:"-"`.
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]model.User{"users": users})
}

// HandleGetByID returns a single user with their owned-place IDs.
//
// HTTP: GET /api/users/{uid}
func (h *UserHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), r.PathValue("uid"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]*model.User{"user": user})
}

// HandleSignup registers a new account.
//
// HTTP: POST /api/users/signup
// Body: {"name": ..., "email": ..., "password": ...} or a multipart form
// with the same fields plus an optional "image" file.
func (h *UserHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var name, email, password, image string

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			http.Error(w, "Invalid form body", http.StatusBadRequest)
			return
		}
		name = r.FormValue("name")
		email = r.FormValue("email")
		password = r.FormValue("password")

		ref, ok := saveUpload(w, r, h.assets, h.logger)
		if !ok {
			return
		}
		image = ref
	} else {
		var body struct {
			Name     string `json:"name"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		name, email, password = body.Name, body.Email, body.Password
	}

	result, err := h.users.Signup(r.Context(), name, email, password, image)
	if err != nil {
		discardUpload(r, h.assets, image, h.logger)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		UserID: result.User.ID,
		Email:  result.User.Email,
		Token:  result.Token,
	})
}

// HandleLogin verifies credentials and returns a fresh token.
//
// HTTP: POST /api/users/login
// Body: {"email": ..., "password": ...}
func (h *UserHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	result, err := h.users.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		UserID: result.User.ID,
		Email:  result.User.Email,
		Token:  result.Token,
	})
}

