package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sakif/lesson-api/internal/apperror"
)

// Image lifecycle metrics.
var (
	imagesStoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lesson_images_stored_total",
		Help: "Uploaded image files written to storage.",
	})
	imagesReclaimedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lesson_images_reclaimed_total",
		Help: "Image files deleted after their last post stopped referencing them.",
	})
	imagesRetainedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lesson_images_retained_total",
		Help: "Image files kept because another post still references them.",
	})
)

// ImageStore is the blob storage the post service writes uploads to.
// storage.Local satisfies it; tests can pass the same type rooted in t.TempDir().
type ImageStore interface {
	Save(ext string, src io.Reader) (string, error)
	Remove(name string) error
}

// Upload is an image file received from a client.
// Filename is only consulted for its extension; it never reaches the disk.
type Upload struct {
	Filename string
	Body     io.Reader
}

// allowedImageExtensions is the upload allow-list (compared lower-cased).
var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
}

// imageExtension returns the lower-cased extension of filename, or a
// validation error when it is not an allowed image type.
// "photo.PNG" → ".png"; "photo.EXE" → error.
func imageExtension(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedImageExtensions[ext] {
		return "", apperror.ValidationFailed("image_file",
			"only images are allowed: jpg, jpeg, png, gif, webp, bmp")
	}
	return ext, nil
}

// storeUpload validates the upload's extension and writes it under a new name.
func (s *PostService) storeUpload(upload *Upload) (string, error) {
	ext, err := imageExtension(upload.Filename)
	if err != nil {
		return "", err
	}
	name, err := s.images.Save(ext, upload.Body)
	if err != nil {
		return "", err
	}
	imagesStoredTotal.Inc()
	s.logger.Info("image stored", slog.String("file", name))
	return name, nil
}

// reclaimImage deletes filename from storage unless some post other than
// ownerID still references it.
//
// REFERENCE-COUNTED DELETION:
// Two posts can point at the same file, so "post X stopped using F" does not
// mean "F is garbage". We ask the repository at the moment of deletion.
// Callers hold s.mu, so no other mutation can add or drop a reference between
// the count and the remove.
//
// FAILURE POLICY:
// Reclamation is best effort. Storage errors are logged and swallowed; they
// never fail the request that triggered them. If the count itself fails we
// keep the file, since deleting a file that is still referenced is worse
// than leaking one.
func (s *PostService) reclaimImage(ctx context.Context, filename, ownerID string) {
	refs, err := s.repo.CountPostsByImageFile(ctx, filename, ownerID)
	if err != nil {
		s.logger.Warn("image reference check failed, keeping file",
			slog.String("file", filename),
			slog.String("error", err.Error()),
		)
		return
	}
	if refs > 0 {
		imagesRetainedTotal.Inc()
		s.logger.Debug("image still referenced, keeping file",
			slog.String("file", filename),
			slog.Int("references", refs),
		)
		return
	}

	if err := s.images.Remove(filename); err != nil {
		s.logger.Warn("image removal failed",
			slog.String("file", filename),
			slog.String("error", err.Error()),
		)
		return
	}
	imagesReclaimedTotal.Inc()
	s.logger.Info("image reclaimed", slog.String("file", filename))
}
