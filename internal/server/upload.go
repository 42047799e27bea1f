package server

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Error page reasons used in upload redirects.
const (
	reasonUpload   = "upload"
	reasonTooLarge = "too-large"
)

// uploadHandler handles POST /upload. The multipart field "file" must carry a
// .wacc archive; it is streamed into storage as "<base>_<epoch millis>" and
// the client is redirected to / once the write has finished. Rejected or
// failed uploads redirect to /error.
func (cfg Config) uploadHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := cfg.requestLogger(r)

		if cfg.MaxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
		}

		mr, err := r.MultipartReader()
		if err != nil {
			http.Error(w, "bad multipart", http.StatusBadRequest)
			return
		}

		part, err := filePart(mr)
		if err != nil {
			if isTooLarge(err) {
				cfg.rejectTooLarge(w, r, log)
				return
			}
			http.Error(w, "bad multipart", http.StatusBadRequest)
			return
		}
		if part == nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		defer func() { _ = part.Close() }()

		orig := part.FileName()
		if !isArchive(orig) {
			log.Info("attempted upload of invalid file type", zap.String("name", orig))
			cfg.Metrics.RecordUpload(uploadInvalidType)
			http.Redirect(w, r, "/error", http.StatusFound)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
		defer cancel()

		name := storedName(orig, time.Now())
		body := newDigestReader(part)
		location, err := cfg.Storage.Put(ctx, name, body)
		if err != nil {
			if isTooLarge(err) {
				cfg.rejectTooLarge(w, r, log)
				return
			}
			log.Error("upload failed", zap.String("name", orig), zap.Error(err))
			cfg.Metrics.RecordUpload(uploadFailed)
			http.Redirect(w, r, "/error?reason="+reasonUpload, http.StatusFound)
			return
		}

		log.Info("uploading",
			zap.String("name", orig),
			zap.String("location", location),
			zap.Int64("bytes", body.Size()),
			zap.String("sha256", body.Sum()),
		)
		cfg.Metrics.RecordUpload(uploadStored)
		http.Redirect(w, r, "/", http.StatusFound)
	})
}

func (cfg Config) rejectTooLarge(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	log.Info("upload exceeds limit", zap.Int64("limit", cfg.MaxUploadBytes))
	cfg.Metrics.RecordUpload(uploadTooLarge)
	http.Redirect(w, r, "/error?reason="+reasonTooLarge, http.StatusFound)
}

// filePart advances to the "file" part. It returns nil, nil when the form
// has no such field.
func filePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		_ = part.Close()
	}
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
