package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/bogdansurdu/vibranium-waccanda/internal/store"
)

// Plain bodies understood by the vibranium client.
const (
	bodyNotFound = "not found"
	bodyMissing  = "missing"
)

// installHandler handles POST /api/install/{package}/{version}. It resolves
// the stored file for the package (newest upload for version "latest") and
// streams it back as an attachment.
//
// Lookups that match nothing answer "not found"; a matched row whose file
// cannot be opened answers "missing". Database errors are only logged and
// leave an empty 200 response.
func (cfg Config) installHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pkg := r.PathValue("package")
		version := r.PathValue("version")
		log := cfg.requestLogger(r).With(zap.String("package", pkg), zap.String("version", version))

		location, err := cfg.Packages.Locate(r.Context(), pkg, version)
		switch {
		case errors.Is(err, store.ErrNotFound):
			cfg.Metrics.RecordInstall(installNotFound)
			writePlain(w, bodyNotFound)
			return
		case errors.Is(err, store.ErrNoLocation):
			log.Warn("missing package", zap.Error(err))
			cfg.Metrics.RecordInstall(installMissing)
			writePlain(w, bodyMissing)
			return
		case err != nil:
			log.Error("install lookup failed", zap.Error(err))
			cfg.Metrics.RecordInstall(installDBError)
			return
		}

		obj, err := cfg.Storage.Open(r.Context(), location)
		if err != nil {
			log.Warn("missing package", zap.String("location", location), zap.Error(err))
			cfg.Metrics.RecordInstall(installMissing)
			writePlain(w, bodyMissing)
			return
		}
		defer func() { _ = obj.Close() }()

		w.Header().Set("Content-Type", contentTypeFor(obj.Name))
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": obj.Name}))
		if obj.Size >= 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
		}
		w.WriteHeader(http.StatusOK)

		log.Info("downloading", zap.String("location", location))
		cfg.Metrics.RecordInstall(installServed)
		if _, err := io.Copy(w, obj); err != nil {
			log.Warn("install stream interrupted", zap.Error(err))
		}
	})
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func writePlain(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}
