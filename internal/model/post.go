// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import (
	"strings"
	"time"
)

// Post is a blog-style record with an optional image.
//
// IMAGE INVARIANT:
// A post's image is EITHER an external link (ImageURL) OR a file stored in the
// uploads directory (ImageFile), never both. Every code path that sets one of
// them clears the other. Both are pointers so that "no image" encodes as JSON
// null, which is what the frontend checks for.
//
// JSON tags are snake_case to stay wire-compatible with the existing client.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	ImageURL  *string   `json:"image_url"`
	ImageFile *string   `json:"image_file"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostPatch is the body of PUT /api/posts/{id}.
// Only fields the client actually sent are applied (see Optional).
type PostPatch struct {
	Title    Optional[string] `json:"title"`
	Content  Optional[string] `json:"content"`
	Author   Optional[string] `json:"author"`
	ImageURL Optional[string] `json:"image_url"`
}

// NormalizeImageURL folds blank image URLs into "no URL".
// "" and "   " are treated exactly like null.
func NormalizeImageURL(url *string) *string {
	if url == nil || strings.TrimSpace(*url) == "" {
		return nil
	}
	u := *url
	return &u
}

// TouchesImage reports whether applying the patch replaces the post's image.
// Any image_url key in the payload (value, blank or null) does.
func (p PostPatch) TouchesImage() bool {
	return p.ImageURL.Set
}

// Apply merges the patch into the post.
//
// MERGE RULES:
//   - omitted fields keep their previous value
//   - title/content/author are only written when they carry a value
//   - image_url (value, blank or null) always clears ImageFile, then
//     stores the normalised URL
//
// Apply does NOT touch the file on disk; reclaiming the old file is the
// service's job and must happen before Apply drops the reference.
func (p *Post) Apply(patch PostPatch) {
	if patch.Title.Valid {
		p.Title = patch.Title.Value
	}
	if patch.Content.Valid {
		p.Content = patch.Content.Value
	}
	if patch.Author.Valid {
		p.Author = patch.Author.Value
	}
	if patch.ImageURL.Set {
		var url *string
		if patch.ImageURL.Valid {
			url = &patch.ImageURL.Value
		}
		p.ImageURL = NormalizeImageURL(url)
		p.ImageFile = nil
	}
}
