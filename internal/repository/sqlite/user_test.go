package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/lesson-api/internal/apperror"
	"github.com/sakif/lesson-api/internal/model"
)

// createTestUser is a test helper that creates a user and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, name, email string) *model.User {
	t.Helper()
	user := &model.User{Name: name, Email: email}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func TestCreateUser_SequentialIDs(t *testing.T) {
	db := newTestDB(t)

	first := createTestUser(t, db, "Ivan", "ivan@example.com")
	second := createTestUser(t, db, "Maria", "maria@example.com")

	if first.ID != 1 || second.ID != 2 {
		t.Errorf("ids = %d, %d; want 1, 2", first.ID, second.ID)
	}
}

func TestCreateUser_IDsNeverReused(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	createTestUser(t, db, "Ivan", "ivan@example.com")
	last := createTestUser(t, db, "Maria", "maria@example.com")
	if _, err := db.DeleteUser(ctx, last.ID); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}

	next := createTestUser(t, db, "Alexey", "alexey@example.com")
	if next.ID != 3 {
		t.Errorf("id after deleting the newest user = %d, want 3", next.ID)
	}
}

func TestCreateUser_DuplicateEmailRejectedByConstraint(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "Ivan", "ivan@example.com")

	err := db.CreateUser(context.Background(), &model.User{Name: "Other", Email: "ivan@example.com"})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("CreateUser() error = %v, want ErrValidation", err)
	}
}

func TestGetUserByEmail(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "Ivan", "ivan@example.com")

	found, err := db.GetUserByEmail(context.Background(), "ivan@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID = %d, want %d", found.ID, created.ID)
	}

	// exact match only
	if _, err := db.GetUserByEmail(context.Background(), "IVAN@example.com"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByEmail() with different case error = %v, want ErrNotFound", err)
	}
}

func TestUpdateUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "Ivan", "ivan@example.com")

	u.Name = "Ivan Ivanov"
	if err := db.UpdateUser(ctx, u); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	found, _ := db.GetUserByID(ctx, u.ID)
	if found.Name != "Ivan Ivanov" {
		t.Errorf("Name = %q", found.Name)
	}

	if err := db.UpdateUser(ctx, &model.User{ID: 99, Name: "x", Email: "x@example.com"}); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateUser() on missing id error = %v, want ErrNotFound", err)
	}
}

func TestListAndDeleteUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "Ivan", "ivan@example.com")
	maria := createTestUser(t, db, "Maria", "maria@example.com")

	removed, err := db.DeleteUser(ctx, maria.ID)
	if err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	if removed.Name != "Maria" {
		t.Errorf("DeleteUser() returned %+v", removed)
	}

	users, err := db.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 1 || users[0].Name != "Ivan" {
		t.Errorf("ListUsers() = %+v", users)
	}

	if _, err := db.GetUserByID(ctx, maria.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() after delete error = %v, want ErrNotFound", err)
	}
	if n, _ := db.CountUsers(ctx); n != 1 {
		t.Errorf("CountUsers() = %d, want 1", n)
	}
}
