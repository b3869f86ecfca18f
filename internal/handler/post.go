package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/sakif/lesson-api/internal/apperror"
	"github.com/sakif/lesson-api/internal/auth"
	"github.com/sakif/lesson-api/internal/model"
	"github.com/sakif/lesson-api/internal/service"
)

// DefaultMaxUpload caps multipart bodies when no limit is configured.
const DefaultMaxUpload int64 = 10 << 20

// PostHandler serves /api/posts: JSON CRUD plus the two multipart upload
// endpoints. All image bookkeeping lives in service.PostService; this file
// only translates HTTP into service calls.
type PostHandler struct {
	posts     *service.PostService
	logger    *slog.Logger
	maxUpload int64
}

// NewPostHandler creates a PostHandler. maxUpload <= 0 means DefaultMaxUpload.
func NewPostHandler(posts *service.PostService, logger *slog.Logger, maxUpload int64) *PostHandler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	return &PostHandler{posts: posts, logger: logger, maxUpload: maxUpload}
}

// createPostRequest uses pointers so "missing" and "" can be told apart:
// an empty title is allowed, an absent one is not.
type createPostRequest struct {
	Title    *string `json:"title" validate:"required"`
	Content  *string `json:"content" validate:"required"`
	Author   *string `json:"author" validate:"required"`
	ImageURL *string `json:"image_url"`
}

// HandleList returns posts in creation order.
//
// HTTP: GET /api/posts?_start=2&_limit=1
//
// _start skips that many posts, then _limit caps the result. Negative
// values count as 0 and _limit=0 means "everything after _start".
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	start, err := queryInt(r, "_start", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "_limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	posts, err := h.posts.List(r.Context(), start, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleGet returns one post.
//
// HTTP: GET /api/posts/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleCreate creates a post whose image, if any, is an external link.
//
// HTTP: POST /api/posts
// REQUEST BODY: {"title": "...", "content": "...", "author": "...", "image_url": "https://..."}
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.Create(r.Context(), service.CreatePostInput{
		Title:    *req.Title,
		Content:  *req.Content,
		Author:   *req.Author,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleUpdate applies a partial update.
//
// HTTP: PUT /api/posts/{id}
//
// Only the keys present in the body change. "image_url" is special: sending
// it at all (a link, "" or null) replaces whatever image the post had,
// including an uploaded file.
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch model.PostPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleDelete removes a post and, if nobody else uses it, its image file.
//
// HTTP: DELETE /api/posts/{id}
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	username, _ := auth.UsernameFromContext(r.Context())
	writeJSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Post '%s' deleted by %s", post.Title, username),
	})
}

// HandleCreateUpload creates a post from a multipart form.
//
// HTTP: POST /api/posts/upload
// FORM FIELDS: title, content, author (required), image_file (optional)
func (h *PostHandler) HandleCreateUpload(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		writeError(w, err)
		return
	}

	fields := make(map[string]string, 3)
	for _, name := range []string{"title", "content", "author"} {
		v, ok := formValue(r.MultipartForm, name)
		if !ok {
			writeError(w, apperror.ValidationFailed(name, name+" is required"))
			return
		}
		fields[name] = v
	}

	upload, closeFile, err := formUpload(r, "image_file")
	if err != nil {
		writeError(w, err)
		return
	}
	defer closeFile()

	post, err := h.posts.CreateWithUpload(r.Context(), fields["title"], fields["content"], fields["author"], upload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleReplaceUpload swaps the post's image for a newly uploaded file.
//
// HTTP: PUT /api/posts/{id}/upload
// FORM FIELDS: image_file (required)
func (h *PostHandler) HandleReplaceUpload(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		writeError(w, err)
		return
	}

	upload, closeFile, err := formUpload(r, "image_file")
	if err != nil {
		writeError(w, err)
		return
	}
	defer closeFile()

	post, err := h.posts.ReplaceImage(r.Context(), r.PathValue("id"), upload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// parseMultipart caps the body at maxUpload and parses the form.
//
// MaxBytesReader makes the read fail once the limit is crossed, so an
// oversized upload never fully lands in memory or on disk.
func (h *PostHandler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	err := r.ParseMultipartForm(h.maxUpload)
	if err == nil {
		return nil
	}

	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		return apperror.ValidationFailed("image_file",
			fmt.Sprintf("upload exceeds the %d byte limit", tooBig.Limit))
	case errors.Is(err, http.ErrNotMultipart):
		// Leaves r.MultipartForm nil; callers then report the missing fields.
		return nil
	default:
		h.logger.Warn("bad multipart body", slog.String("error", err.Error()))
		return apperror.ValidationFailed("body", "invalid multipart form")
	}
}

// formValue reports whether the form carried the field at all.
// An empty value still counts as present.
func formValue(form *multipart.Form, name string) (string, bool) {
	if form == nil {
		return "", false
	}
	vals, ok := form.Value[name]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// formUpload opens the named file part. A missing part (or an empty
// filename, which browsers send for an untouched file input) returns a
// nil upload and no error.
func formUpload(r *http.Request, name string) (*service.Upload, func(), error) {
	noop := func() {}
	if r.MultipartForm == nil {
		return nil, noop, nil
	}

	file, header, err := r.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, apperror.ValidationFailed(name, "could not read uploaded file")
	}
	if header.Filename == "" {
		file.Close()
		return nil, noop, nil
	}

	return &service.Upload{Filename: header.Filename, Body: file}, func() { file.Close() }, nil
}
