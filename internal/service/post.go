// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes records
//
// Services accept plain Go values (never *http.Request) and return
// apperror values, so the same rules apply whether they are called from a
// handler, a test or a CLI.
//
// CONCURRENCY:
// Requests run concurrently. Each service serialises its own
// read-modify-write sequences with a mutex: "is this email taken? then
// insert", "does anyone else use this file? then delete it". Without the
// lock two requests could both pass the check before either acts.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/sakif/lesson-api/internal/apperror"
	"github.com/sakif/lesson-api/internal/model"
	"github.com/sakif/lesson-api/internal/repository"
)

// PostService handles posts and the image files attached to them.
//
// IMAGE LIFECYCLE:
// A post's image is either an external URL or an uploaded file. Whenever a
// post stops referencing a file (it switched to a URL, cleared its image,
// got a new upload, or was deleted), the old file is reclaimed by
// reclaimImage, which only deletes it when no other post still uses it.
type PostService struct {
	mu     sync.Mutex
	repo   repository.PostRepository
	images ImageStore
	logger *slog.Logger
}

// NewPostService creates a new PostService.
func NewPostService(repo repository.PostRepository, images ImageStore, logger *slog.Logger) *PostService {
	return &PostService{
		repo:   repo,
		images: images,
		logger: logger,
	}
}

// CreatePostInput is the data for a JSON-created post.
type CreatePostInput struct {
	Title    string
	Content  string
	Author   string
	ImageURL *string
}

// List returns posts oldest first.
//
// PAGINATION:
// start (offset) and limit are clamped to non-negative and applied in that
// order. A limit of 0 means "everything after start".
// Example: five posts A..E with start=2, limit=1 → [C].
func (s *PostService) List(ctx context.Context, start, limit int) ([]model.Post, error) {
	if start < 0 {
		start = 0
	}
	if limit < 0 {
		limit = 0
	}

	posts, err := s.repo.ListPosts(ctx, repository.ListOptions{
		Offset: start,
		Limit:  limit,
	})
	if err != nil {
		s.logger.Error("failed to list posts", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}

// Get retrieves a post by its ID.
// Returns apperror.ErrNotFound if the post doesn't exist.
func (s *PostService) Get(ctx context.Context, id string) (*model.Post, error) {
	return s.repo.GetPostByID(ctx, strings.TrimSpace(id))
}

// Count returns the number of posts.
func (s *PostService) Count(ctx context.Context) (int, error) {
	return s.repo.CountPosts(ctx)
}

// Create saves a post whose image, if any, is an external URL.
// A blank image URL is stored as "no image".
func (s *PostService) Create(ctx context.Context, in CreatePostInput) (*model.Post, error) {
	post := &model.Post{
		Title:    in.Title,
		Content:  in.Content,
		Author:   in.Author,
		ImageURL: model.NormalizeImageURL(in.ImageURL),
	}

	if err := s.repo.CreatePost(ctx, post); err != nil {
		s.logger.Error("failed to create post", slog.String("error", err.Error()))
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.String("id", post.ID),
		slog.String("title", post.Title),
	)
	return post, nil
}

// CreateWithUpload saves a post with an optional uploaded image file.
// upload may be nil; then the post has no image at all.
func (s *PostService) CreateWithUpload(ctx context.Context, title, content, author string, upload *Upload) (*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post := &model.Post{Title: title, Content: content, Author: author}

	if upload != nil {
		name, err := s.storeUpload(upload)
		if err != nil {
			return nil, err
		}
		post.ImageFile = &name
	}

	if err := s.repo.CreatePost(ctx, post); err != nil {
		s.logger.Error("failed to create post", slog.String("error", err.Error()))
		if post.ImageFile != nil {
			// nobody can reference a file we just wrote
			s.reclaimImage(ctx, *post.ImageFile, "")
		}
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.String("id", post.ID),
		slog.String("title", post.Title),
		slog.Bool("with_image", post.ImageFile != nil),
	)
	return post, nil
}

// Update applies a partial update.
//
// Fields omitted from the patch keep their value. Sending image_url at all
// (a link, "" or null) replaces the image, so an uploaded file is reclaimed
// first and image_file is cleared. Omitting image_url leaves the file alone.
func (s *PostService) Update(ctx context.Context, id string, patch model.PostPatch) (*model.Post, error) {
	if err := rejectNulls(map[string]model.Optional[string]{
		"title":   patch.Title,
		"content": patch.Content,
		"author":  patch.Author,
	}); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	post, err := s.repo.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Reclaim before the field update drops the reference.
	if patch.TouchesImage() && post.ImageFile != nil {
		s.reclaimImage(ctx, *post.ImageFile, post.ID)
	}
	post.Apply(patch)

	if err := s.repo.UpdatePost(ctx, post); err != nil {
		s.logger.Error("failed to update post",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating post: %w", err)
	}

	s.logger.Info("post updated", slog.String("id", post.ID))
	return post, nil
}

// ReplaceImage stores a new upload for an existing post.
// The upload always wins: any image URL is cleared, and the previous file
// (if any) is reclaimed once the new one is safely on disk.
func (s *PostService) ReplaceImage(ctx context.Context, id string, upload *Upload) (*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, err := s.repo.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, apperror.ValidationFailed("image_file", "image file is required")
	}

	name, err := s.storeUpload(upload)
	if err != nil {
		return nil, err
	}

	if post.ImageFile != nil {
		s.reclaimImage(ctx, *post.ImageFile, post.ID)
	}
	post.ImageFile = &name
	post.ImageURL = nil

	if err := s.repo.UpdatePost(ctx, post); err != nil {
		s.logger.Error("failed to attach image",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		s.reclaimImage(ctx, name, "")
		return nil, fmt.Errorf("attaching image to post: %w", err)
	}

	s.logger.Info("post image replaced",
		slog.String("id", post.ID),
		slog.String("file", name),
	)
	return post, nil
}

// Delete removes a post and reclaims its image file.
// Returns the removed post so the caller can report what was deleted.
func (s *PostService) Delete(ctx context.Context, id string) (*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, err := s.repo.DeletePost(ctx, id)
	if err != nil {
		return nil, err
	}

	if post.ImageFile != nil {
		s.reclaimImage(ctx, *post.ImageFile, post.ID)
	}

	s.logger.Info("post deleted", slog.String("id", id))
	return post, nil
}

// rejectNulls returns a validation error for the first required string
// field that was explicitly sent as null.
func rejectNulls(fields map[string]model.Optional[string]) error {
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		if fields[name].IsNull() {
			return apperror.ValidationFailed(name, name+" cannot be null")
		}
	}
	return nil
}
