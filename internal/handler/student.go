package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/lesson-api/internal/model"
	"github.com/sakif/lesson-api/internal/service"
)

// StudentHandler serves the lesson roster. Each PUT changes one field.
type StudentHandler struct {
	students *service.StudentService
	logger   *slog.Logger
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(students *service.StudentService, logger *slog.Logger) *StudentHandler {
	return &StudentHandler{students: students, logger: logger}
}

type attendRequest struct {
	Attend *string `json:"attend" validate:"required,oneof=none late present"`
}

type gradeRequest struct {
	Grade *int `json:"grade" validate:"required"`
}

type onlineRequest struct {
	Online *bool `json:"online" validate:"required"`
}

// HandleList returns the roster.
//
// HTTP: GET /api/students
func (h *StudentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	students, err := h.students.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

// HandleAttend sets attendance.
//
// HTTP: PUT /api/students/{id}/attend
// REQUEST BODY: {"attend": "none" | "late" | "present"}
func (h *StudentHandler) HandleAttend(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req attendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, func() (*model.Student, error) {
		return h.students.SetAttendance(r.Context(), id, model.AttendStatus(*req.Attend))
	})
}

// HandleGrade sets the grade (0..12).
//
// HTTP: PUT /api/students/{id}/grade
// REQUEST BODY: {"grade": 10}
func (h *StudentHandler) HandleGrade(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req gradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, func() (*model.Student, error) {
		return h.students.SetGrade(r.Context(), id, *req.Grade)
	})
}

// HandleOnline sets the online flag.
//
// HTTP: PUT /api/students/{id}/online
// REQUEST BODY: {"online": true}
func (h *StudentHandler) HandleOnline(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req onlineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, func() (*model.Student, error) {
		return h.students.SetOnline(r.Context(), id, *req.Online)
	})
}

func (h *StudentHandler) respond(w http.ResponseWriter, update func() (*model.Student, error)) {
	student, err := update()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}
