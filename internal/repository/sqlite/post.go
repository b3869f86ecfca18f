package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/lesson-api/internal/apperror"
	"github.com/sakif/lesson-api/internal/model"
	"github.com/sakif/lesson-api/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// If *DB stops satisfying repository.PostRepository the build fails here,
// not somewhere far away in server.go.
var _ repository.PostRepository = (*DB)(nil)

const postColumns = `id, title, content, author, image_url, image_file, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows, so one scan
// function serves GetPostByID and ListPosts.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPost reads one posts row. image_url and image_file are nullable
// columns, so they go through sql.NullString and become nil pointers.
func scanPost(row rowScanner) (*model.Post, error) {
	var (
		p         model.Post
		imageURL  sql.NullString
		imageFile sql.NullString
	)
	if err := row.Scan(
		&p.ID, &p.Title, &p.Content, &p.Author,
		&imageURL, &imageFile,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if imageURL.Valid {
		p.ImageURL = &imageURL.String
	}
	if imageFile.Valid {
		p.ImageFile = &imageFile.String
	}
	return &p, nil
}

// nullable converts an optional string into something database/sql stores as NULL.
func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// CreatePost inserts a new post, filling in its ID and both timestamps.
//
// ID GENERATION WITH xid:
// 20 chars, URL-safe, and sortable by creation time, e.g. "cv37rs3pp9olc6atsptg".
func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	post.ID = xid.New().String()

	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO posts (`+postColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID,
		post.Title,
		post.Content,
		post.Author,
		nullable(post.ImageURL),
		nullable(post.ImageFile),
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating post: %w", err)
	}

	return nil
}

// GetPostByID retrieves a single post.
// sql.ErrNoRows is translated to apperror.NotFound so the handler answers 404.
func (db *DB) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	post, err := scanPost(db.conn.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ?`,
		id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}

	return post, nil
}

// ListPosts returns posts in creation order (oldest first).
//
// PAGINATION:
// OFFSET is applied first, then LIMIT. In SQLite "LIMIT -1" means
// "no limit", which is how a non-positive opts.Limit is expressed.
// rowid breaks ties between posts created within the same clock tick,
// keeping the order identical to insertion order.
func (db *DB) ListPosts(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+postColumns+`
		 FROM posts
		 ORDER BY created_at, rowid
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}

	return posts, nil
}

// UpdatePost writes every mutable column of post and stamps UpdatedAt.
// id and created_at are immutable.
func (db *DB) UpdatePost(ctx context.Context, post *model.Post) error {
	post.UpdatedAt = time.Now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE posts
		 SET title = ?, content = ?, author = ?, image_url = ?, image_file = ?, updated_at = ?
		 WHERE id = ?`,
		post.Title,
		post.Content,
		post.Author,
		nullable(post.ImageURL),
		nullable(post.ImageFile),
		post.UpdatedAt,
		post.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating post %s: %w", post.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("post", post.ID)
	}

	return nil
}

// DeletePost removes a post and returns the removed record.
//
// The SELECT and DELETE run in one transaction so the caller gets back
// exactly the row that was deleted (its image_file is needed for cleanup).
func (db *DB) DeletePost(ctx context.Context, id string) (*model.Post, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning delete of post %s: %w", id, err)
	}
	// Rollback after Commit is a no-op, so deferring it is always safe.
	defer tx.Rollback()

	post, err := scanPost(tx.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ?`,
		id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: loading post %s for delete: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("sqlite: deleting post %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing delete of post %s: %w", id, err)
	}

	return post, nil
}

// CountPostsByImageFile counts the posts, other than excludeID, that still
// point at filename. Zero means the file has no remaining owner.
func (db *DB) CountPostsByImageFile(ctx context.Context, filename, excludeID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE image_file = ? AND id != ?`,
		filename, excludeID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting references to %s: %w", filename, err)
	}
	return n, nil
}

// CountPosts returns the number of posts.
func (db *DB) CountPosts(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting posts: %w", err)
	}
	return n, nil
}
