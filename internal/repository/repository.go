// Package repository declares the storage contracts the service layer depends on.
//
// The service layer only ever sees these interfaces. The concrete
// implementation (repository/sqlite) is chosen once in server.New and
// injected, so services can be tested against hand-written mocks.
package repository

import (
	"context"

	"github.com/sakif/lesson-api/internal/model"
)

// ListOptions selects a window of records.
// Offset is applied first, then Limit. Limit <= 0 means "no limit".
type ListOptions struct {
	Limit  int
	Offset int
}

type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	GetPostByID(ctx context.Context, id string) (*model.Post, error)
	ListPosts(ctx context.Context, opts ListOptions) ([]model.Post, error)
	UpdatePost(ctx context.Context, post *model.Post) error
	DeletePost(ctx context.Context, id string) (*model.Post, error)
	// CountPostsByImageFile counts posts other than excludeID whose image_file is filename.
	CountPostsByImageFile(ctx context.Context, filename, excludeID string) (int, error)
	CountPosts(ctx context.Context) (int, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id int64) (*model.User, error)
	CountUsers(ctx context.Context) (int, error)
}

type StudentRepository interface {
	ListStudents(ctx context.Context) ([]model.Student, error)
	GetStudentByID(ctx context.Context, id int64) (*model.Student, error)
	UpdateStudent(ctx context.Context, student *model.Student) error
	CountStudents(ctx context.Context) (int, error)
}
