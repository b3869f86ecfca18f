package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/lesson-api/internal/service"
)

// RootHandler serves the public, unauthenticated endpoints.
type RootHandler struct {
	posts    *service.PostService
	users    *service.UserService
	students *service.StudentService
	login    string
	logger   *slog.Logger
}

// NewRootHandler creates a RootHandler. login is the configured account
// name, advertised in the welcome response so learners know what to send.
func NewRootHandler(
	posts *service.PostService,
	users *service.UserService,
	students *service.StudentService,
	login string,
	logger *slog.Logger,
) *RootHandler {
	return &RootHandler{posts: posts, users: users, students: students, login: login, logger: logger}
}

// AuthInfo tells a client how to authenticate. The password is not echoed.
type AuthInfo struct {
	Type  string `json:"type"`
	Login string `json:"login"`
}

// WelcomeResponse is the body of GET /.
type WelcomeResponse struct {
	Message       string   `json:"message"`
	PostsCount    int      `json:"posts_count"`
	UsersCount    int      `json:"users_count"`
	StudentsCount int      `json:"students_count"`
	AuthInfo      AuthInfo `json:"auth_info"`
}

// HandleWelcome returns a greeting with record counts.
//
// HTTP: GET /
func (h *RootHandler) HandleWelcome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	posts, err := h.posts.Count(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	users, err := h.users.Count(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	students, err := h.students.Count(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, WelcomeResponse{
		Message:       "Welcome to the lesson API!",
		PostsCount:    posts,
		UsersCount:    users,
		StudentsCount: students,
		AuthInfo:      AuthInfo{Type: "Basic Auth", Login: h.login},
	})
}

// HandleHealth is a liveness probe.
//
// HTTP: GET /healthz
func (h *RootHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
