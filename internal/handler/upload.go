package handler

import (
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/sakif/places-api/internal/storage"
)

// saveUpload stores the optional "image" file from an already-parsed
// multipart form. Returns ("", true) when the field is absent; writes the
// error response itself and returns false on failure.
func saveUpload(w http.ResponseWriter, r *http.Request, assets storage.ObjectStore, logger *slog.Logger) (string, bool) {
	file, header, err := r.FormFile("image")
	if err == http.ErrMissingFile {
		return "", true
	}
	if err != nil {
		http.Error(w, "Invalid image upload", http.StatusBadRequest)
		return "", false
	}
	defer file.Close()

	ref, err := assets.Save(r.Context(), file, header.Filename)
	if err != nil {
		logger.Error("failed to store upload", slog.String("error", err.Error()))
		writeError(w, err)
		return "", false
	}
	return ref, true
}

// discardUpload removes an asset that was stored for a request the service
// then rejected, so validation failures don't strand files. Best effort: a
// failure here is logged, the client still gets the original error.
func discardUpload(r *http.Request, assets storage.ObjectStore, ref string, logger *slog.Logger) {
	if ref == "" {
		return
	}
	if err := assets.Remove(r.Context(), ref); err != nil {
		logger.Warn("failed to discard rejected upload",
			slog.String("ref", ref),
			slog.String("error", err.Error()),
		)
	}
}

// isMultipart reports whether the request body is multipart/form-data.
func isMultipart(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(ct, "multipart/")
}
