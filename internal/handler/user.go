package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/lesson-api/internal/auth"
	"github.com/sakif/lesson-api/internal/model"
	"github.com/sakif/lesson-api/internal/service"
)

// UserHandler serves /api/users and /api/demo-users.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

type createUserRequest struct {
	Name  *string `json:"name" validate:"required"`
	Email *string `json:"email" validate:"required"`
}

// DemoUsersResponse is the body of POST /api/demo-users.
type DemoUsersResponse struct {
	Message string       `json:"message"`
	Users   []model.User `json:"users"`
}

// HandleList returns every user.
//
// HTTP: GET /api/users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleGet returns one user.
//
// HTTP: GET /api/users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleCreate adds a user.
//
// HTTP: POST /api/users
// REQUEST BODY: {"name": "...", "email": "..."}
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.users.Create(r.Context(), *req.Name, *req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdate applies a partial update.
//
// HTTP: PUT /api/users/{id}
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var patch model.UserPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.users.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleDelete removes a user.
//
// HTTP: DELETE /api/users/{id}
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := h.users.Delete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	username, _ := auth.UsernameFromContext(r.Context())
	writeJSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("User '%s' deleted by %s", user.Name, username),
	})
}

// HandleDemo creates whichever demo users are missing.
//
// HTTP: POST /api/demo-users
//
// Safe to call repeatedly: the second call reports "Created 0 demo users".
func (h *UserHandler) HandleDemo(w http.ResponseWriter, r *http.Request) {
	created, err := h.users.SeedDemo(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DemoUsersResponse{
		Message: fmt.Sprintf("Created %d demo users", len(created)),
		Users:   created,
	})
}
