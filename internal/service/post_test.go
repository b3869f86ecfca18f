package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sakif/lesson-api/internal/apperror"
	"github.com/sakif/lesson-api/internal/model"
	"github.com/sakif/lesson-api/internal/repository"
	"github.com/sakif/lesson-api/internal/storage"
)

// =========================================================================
// MOCK REPOSITORY
// =========================================================================
//
// mockPostRepo implements repository.PostRepository in memory. It copies
// records in and out so tests can't accidentally share state with it.

type mockPostRepo struct {
	posts  map[string]*model.Post
	nextID int
	seq    map[string]int // insertion order for ListPosts
}

func newMockPostRepo() *mockPostRepo {
	return &mockPostRepo{
		posts: make(map[string]*model.Post),
		seq:   make(map[string]int),
	}
}

func (m *mockPostRepo) CreatePost(_ context.Context, post *model.Post) error {
	m.nextID++
	post.ID = fmt.Sprintf("post-%d", m.nextID)
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	stored := *post
	m.posts[post.ID] = &stored
	m.seq[post.ID] = m.nextID
	return nil
}

func (m *mockPostRepo) GetPostByID(_ context.Context, id string) (*model.Post, error) {
	p, ok := m.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	result := *p
	return &result, nil
}

func (m *mockPostRepo) ListPosts(_ context.Context, opts repository.ListOptions) ([]model.Post, error) {
	result := make([]model.Post, 0, len(m.posts))
	for _, p := range m.posts {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return m.seq[result[i].ID] < m.seq[result[j].ID] })

	if opts.Offset >= len(result) {
		return []model.Post{}, nil
	}
	result = result[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (m *mockPostRepo) UpdatePost(_ context.Context, post *model.Post) error {
	if _, ok := m.posts[post.ID]; !ok {
		return apperror.NotFound("post", post.ID)
	}
	post.UpdatedAt = time.Now()
	stored := *post
	m.posts[post.ID] = &stored
	return nil
}

func (m *mockPostRepo) DeletePost(_ context.Context, id string) (*model.Post, error) {
	p, ok := m.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	delete(m.posts, id)
	return p, nil
}

func (m *mockPostRepo) CountPostsByImageFile(_ context.Context, filename, excludeID string) (int, error) {
	n := 0
	for id, p := range m.posts {
		if id != excludeID && p.ImageFile != nil && *p.ImageFile == filename {
			n++
		}
	}
	return n, nil
}

func (m *mockPostRepo) CountPosts(_ context.Context) (int, error) {
	return len(m.posts), nil
}

// =========================================================================
// TEST HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestPostService wires a PostService to a mock repository and a real
// storage.Local rooted in a temp dir, so file effects can be checked on disk.
func newTestPostService(t *testing.T) (*PostService, *mockPostRepo, *storage.Local) {
	t.Helper()
	repo := newMockPostRepo()
	store, err := storage.NewLocal(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	return NewPostService(repo, store, testLogger()), repo, store
}

func upload(name, body string) *Upload {
	return &Upload{Filename: name, Body: strings.NewReader(body)}
}

// assertImageInvariant fails if a post has both an image URL and a file.
func assertImageInvariant(t *testing.T, p *model.Post) {
	t.Helper()
	if p.ImageURL != nil && p.ImageFile != nil {
		t.Errorf("post %s has both image_url %q and image_file %q", p.ID, *p.ImageURL, *p.ImageFile)
	}
}

// createUploaded creates a post with an uploaded image and returns it.
func createUploaded(t *testing.T, svc *PostService, title string) *model.Post {
	t.Helper()
	p, err := svc.CreateWithUpload(context.Background(), title, "body", "ann", upload("photo.png", "img"))
	if err != nil {
		t.Fatalf("CreateWithUpload() error = %v", err)
	}
	if p.ImageFile == nil {
		t.Fatal("CreateWithUpload() did not set ImageFile")
	}
	return p
}

func strPtr(s string) *string { return &s }

// =========================================================================
// CREATE / LIST
// =========================================================================

func TestPostCreate_BlankImageURLStoredAsNull(t *testing.T) {
	svc, _, _ := newTestPostService(t)

	p, err := svc.Create(context.Background(), CreatePostInput{
		Title: "t", Content: "c", Author: "a", ImageURL: strPtr("  "),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.ImageURL != nil {
		t.Errorf("ImageURL = %q, want nil", *p.ImageURL)
	}
}

func TestPostList_StartThenLimit(t *testing.T) {
	svc, _, _ := newTestPostService(t)
	ctx := context.Background()
	for _, title := range []string{"A", "B", "C", "D", "E"} {
		if _, err := svc.Create(ctx, CreatePostInput{Title: title, Content: "c", Author: "a"}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	posts, err := svc.List(ctx, 2, 1)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(posts) != 1 || posts[0].Title != "C" {
		t.Errorf("List(2, 1) = %+v, want [C]", posts)
	}

	posts, _ = svc.List(ctx, -3, -1)
	if len(posts) != 5 {
		t.Errorf("List(-3, -1) returned %d posts, want 5 (negatives clamp to 0)", len(posts))
	}
}

// =========================================================================
// UPLOADS
// =========================================================================

func TestCreateWithUpload_ExtensionAllowList(t *testing.T) {
	tests := []struct {
		filename string
		wantErr  bool
	}{
		{"photo.PNG", false},
		{"photo.jpg", false},
		{"photo.JPEG", false},
		{"anim.gif", false},
		{"pic.webp", false},
		{"scan.bmp", false},
		{"photo.EXE", true},
		{"photo", true},
		{"photo.svg", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			svc, repo, store := newTestPostService(t)

			p, err := svc.CreateWithUpload(context.Background(), "t", "c", "a", upload(tt.filename, "data"))
			if tt.wantErr {
				if !errors.Is(err, apperror.ErrValidation) {
					t.Fatalf("CreateWithUpload(%q) error = %v, want ErrValidation", tt.filename, err)
				}
				if len(repo.posts) != 0 {
					t.Error("a rejected upload must not create a post")
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateWithUpload(%q) error = %v", tt.filename, err)
			}
			name := *p.ImageFile
			if strings.Contains(name, "photo") {
				t.Errorf("stored name %q should not reuse the original filename", name)
			}
			if !strings.HasSuffix(name, strings.ToLower(filepath.Ext(tt.filename))) {
				t.Errorf("stored name %q lost the extension", name)
			}
			if !store.Exists(name) {
				t.Errorf("file %q not on disk", name)
			}
			assertImageInvariant(t, p)
		})
	}
}

func TestCreateWithUpload_NoFile(t *testing.T) {
	svc, _, _ := newTestPostService(t)

	p, err := svc.CreateWithUpload(context.Background(), "t", "c", "a", nil)
	if err != nil {
		t.Fatalf("CreateWithUpload() error = %v", err)
	}
	if p.ImageFile != nil || p.ImageURL != nil {
		t.Errorf("post without upload should have no image: %+v", p)
	}
}

func TestReplaceImage_SwapsFileAndClearsURL(t *testing.T) {
	svc, _, store := newTestPostService(t)
	ctx := context.Background()
	p := createUploaded(t, svc, "post")
	oldFile := *p.ImageFile

	updated, err := svc.ReplaceImage(ctx, p.ID, upload("new.jpg", "new"))
	if err != nil {
		t.Fatalf("ReplaceImage() error = %v", err)
	}
	if *updated.ImageFile == oldFile {
		t.Error("ReplaceImage() should store under a new name")
	}
	if store.Exists(oldFile) {
		t.Error("old file should be reclaimed")
	}
	if !store.Exists(*updated.ImageFile) {
		t.Error("new file should be on disk")
	}
	assertImageInvariant(t, updated)
}

func TestReplaceImage_ClearsExternalURL(t *testing.T) {
	svc, _, _ := newTestPostService(t)
	ctx := context.Background()
	p, _ := svc.Create(ctx, CreatePostInput{Title: "t", Content: "c", Author: "a", ImageURL: strPtr("https://example.com/x.png")})

	updated, err := svc.ReplaceImage(ctx, p.ID, upload("a.png", "x"))
	if err != nil {
		t.Fatalf("ReplaceImage() error = %v", err)
	}
	if updated.ImageURL != nil {
		t.Errorf("ImageURL = %q, want nil", *updated.ImageURL)
	}
	assertImageInvariant(t, updated)
}

func TestReplaceImage_Errors(t *testing.T) {
	svc, _, store := newTestPostService(t)
	ctx := context.Background()
	p := createUploaded(t, svc, "post")

	if _, err := svc.ReplaceImage(ctx, "missing", upload("a.png", "x")); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("unknown post: error = %v, want ErrNotFound", err)
	}
	if _, err := svc.ReplaceImage(ctx, p.ID, nil); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("missing file: error = %v, want ErrValidation", err)
	}
	if _, err := svc.ReplaceImage(ctx, p.ID, upload("evil.exe", "x")); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("bad extension: error = %v, want ErrValidation", err)
	}
	if !store.Exists(*p.ImageFile) {
		t.Error("failed replacements must keep the current file")
	}
}

// =========================================================================
// PARTIAL UPDATE + IMAGE LIFECYCLE
// =========================================================================

func TestUpdate_OmittedImageURLLeavesFile(t *testing.T) {
	svc, _, store := newTestPostService(t)
	p := createUploaded(t, svc, "post")

	updated, err := svc.Update(context.Background(), p.ID, model.PostPatch{Title: model.Some("renamed")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Title != "renamed" || updated.Content != "body" {
		t.Errorf("Update() = %+v", updated)
	}
	if updated.ImageFile == nil || *updated.ImageFile != *p.ImageFile {
		t.Errorf("ImageFile changed without image_url in the patch: %v", updated.ImageFile)
	}
	if !store.Exists(*p.ImageFile) {
		t.Error("file should be untouched")
	}
}

func TestUpdate_ImageURLClearsFile(t *testing.T) {
	tests := []struct {
		name    string
		url     model.Optional[string]
		wantURL *string
	}{
		{name: "empty string", url: model.Some(""), wantURL: nil},
		{name: "explicit null", url: model.Null[string](), wantURL: nil},
		{name: "new link", url: model.Some("https://example.com/x.png"), wantURL: strPtr("https://example.com/x.png")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, store := newTestPostService(t)
			p := createUploaded(t, svc, "post")

			updated, err := svc.Update(context.Background(), p.ID, model.PostPatch{ImageURL: tt.url})
			if err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			if updated.ImageFile != nil {
				t.Errorf("ImageFile = %q, want nil", *updated.ImageFile)
			}
			if (tt.wantURL == nil) != (updated.ImageURL == nil) ||
				(tt.wantURL != nil && *tt.wantURL != *updated.ImageURL) {
				t.Errorf("ImageURL = %v, want %v", updated.ImageURL, tt.wantURL)
			}
			if store.Exists(*p.ImageFile) {
				t.Error("unreferenced file should be reclaimed")
			}
			assertImageInvariant(t, updated)
		})
	}
}

func TestUpdate_NullRequiredField(t *testing.T) {
	svc, _, _ := newTestPostService(t)
	p, _ := svc.Create(context.Background(), CreatePostInput{Title: "t", Content: "c", Author: "a"})

	_, err := svc.Update(context.Background(), p.ID, model.PostPatch{Title: model.Null[string]()})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Update() error = %v, want ErrValidation", err)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _, _ := newTestPostService(t)

	_, err := svc.Update(context.Background(), "ghost", model.PostPatch{Title: model.Some("x")})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// REFERENCE-COUNTED DELETION
// =========================================================================

// sharePostFile points other at the same file as owner, as if both posts
// had ended up referencing one upload.
func sharePostFile(t *testing.T, repo *mockPostRepo, owner, other *model.Post) {
	t.Helper()
	stored := repo.posts[other.ID]
	stored.ImageFile = strPtr(*owner.ImageFile)
	stored.ImageURL = nil
}

func TestDelete_SoleOwnerRemovesFile(t *testing.T) {
	svc, repo, store := newTestPostService(t)
	p := createUploaded(t, svc, "post")

	removed, err := svc.Delete(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if removed.Title != "post" {
		t.Errorf("Delete() returned %+v", removed)
	}
	if store.Exists(*p.ImageFile) {
		t.Error("file with no remaining owner must be deleted")
	}
	if len(repo.posts) != 0 {
		t.Error("post should be gone")
	}
}

func TestDelete_SharedFileIsRetained(t *testing.T) {
	svc, repo, store := newTestPostService(t)
	ctx := context.Background()
	owner := createUploaded(t, svc, "owner")
	other, _ := svc.Create(ctx, CreatePostInput{Title: "other", Content: "c", Author: "a"})
	sharePostFile(t, repo, owner, other)

	if _, err := svc.Delete(ctx, owner.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !store.Exists(*owner.ImageFile) {
		t.Fatal("file still referenced by another post must NOT be deleted")
	}

	// once the last owner goes, so does the file
	if _, err := svc.Delete(ctx, other.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if store.Exists(*owner.ImageFile) {
		t.Error("file should be deleted with its last owner")
	}
}

func TestUpdate_SharedFileIsRetained(t *testing.T) {
	svc, repo, store := newTestPostService(t)
	ctx := context.Background()
	owner := createUploaded(t, svc, "owner")
	other, _ := svc.Create(ctx, CreatePostInput{Title: "other", Content: "c", Author: "a"})
	sharePostFile(t, repo, owner, other)

	updated, err := svc.Update(ctx, owner.ID, model.PostPatch{ImageURL: model.Null[string]()})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.ImageFile != nil {
		t.Error("owner's image_file should be cleared")
	}
	if !store.Exists(*owner.ImageFile) {
		t.Error("file still used by another post must be kept")
	}
}

type brokenStore struct{ *storage.Local }

func (brokenStore) Remove(string) error { return errors.New("permission denied") }

func TestDelete_StorageErrorsAreSwallowed(t *testing.T) {
	repo := newMockPostRepo()
	local, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	svc := NewPostService(repo, brokenStore{local}, testLogger())
	p := createUploaded(t, svc, "post")

	if _, err := svc.Delete(context.Background(), p.ID); err != nil {
		t.Fatalf("Delete() should succeed even when file removal fails, got %v", err)
	}
}
