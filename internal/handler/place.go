package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/places-api/internal/auth"
	"github.com/sakif/places-api/internal/model"
	"github.com/sakif/places-api/internal/service"
	"github.com/sakif/places-api/internal/storage"
)

// PlaceHandler serves the place endpoints.
//
// Reads are public; create, update, and delete sit behind the auth
// middleware, and the creator of a new place is always the authenticated
// user from the token — never a value from the request body.
type PlaceHandler struct {
	places *service.PlaceService
	assets storage.ObjectStore
	logger *slog.Logger
}

// NewPlaceHandler creates a PlaceHandler.
func NewPlaceHandler(places *service.PlaceService, assets storage.ObjectStore, logger *slog.Logger) *PlaceHandler {
	return &PlaceHandler{places: places, assets: assets, logger: logger}
}

// HandleGetByID returns a single place.
//
// HTTP: GET /api/places/{pid}
func (h *PlaceHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	place, err := h.places.GetByID(r.Context(), r.PathValue("pid"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]*model.Place{"place": place})
}

// HandleListByUser returns the places a user created.
//
// HTTP: GET /api/places/user/{uid}
// 404 when the user doesn't exist; 200 with an empty list when they exist
// but own nothing.
func (h *PlaceHandler) HandleListByUser(w http.ResponseWriter, r *http.Request) {
	places, err := h.places.ListByUser(r.Context(), r.PathValue("uid"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]model.Place{"places": places})
}

// HandleCreate creates a new place for the authenticated user.
//
// HTTP: POST /api/places (auth required)
// Body: multipart form with title, description, address, and an optional
// "image" file, or the same fields as JSON.
func (h *PlaceHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireAuth, but don't trust route wiring.
		http.Error(w, `{"error":"unauthorized","message":"Authentication failed"}`, http.StatusUnauthorized)
		return
	}

	var title, description, address, image string

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			http.Error(w, "Invalid form body", http.StatusBadRequest)
			return
		}
		title = r.FormValue("title")
		description = r.FormValue("description")
		address = r.FormValue("address")

		ref, ok := saveUpload(w, r, h.assets, h.logger)
		if !ok {
			return
		}
		image = ref
	} else {
		var body struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Address     string `json:"address"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		title, description, address = body.Title, body.Description, body.Address
	}

	place, err := h.places.Create(r.Context(), title, description, address, image, identity.UserID)
	if err != nil {
		discardUpload(r, h.assets, image, h.logger)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]*model.Place{"place": place})
}

// HandleUpdate changes a place's title and description.
//
// HTTP: PATCH /api/places/{pid} (auth required, creator only)
func (h *PlaceHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized","message":"Authentication failed"}`, http.StatusUnauthorized)
		return
	}

	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	place, err := h.places.Update(r.Context(), r.PathValue("pid"), identity.UserID, body.Title, body.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]*model.Place{"place": place})
}

// HandleDelete removes a place.
//
// HTTP: DELETE /api/places/{pid} (auth required, creator only)
func (h *PlaceHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized","message":"Authentication failed"}`, http.StatusUnauthorized)
		return
	}

	if err := h.places.Delete(r.Context(), r.PathValue("pid"), identity.UserID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Deleted place."})
}
