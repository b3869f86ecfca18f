package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sakif/lesson-api/internal/apperror"
	"github.com/sakif/lesson-api/internal/model"
	"github.com/sakif/lesson-api/internal/repository"
)

// StudentService updates the attendance, grade and online status of the
// fixed student roster. Each setter changes one field and leaves the rest.
type StudentService struct {
	mu     sync.Mutex
	repo   repository.StudentRepository
	logger *slog.Logger
}

// NewStudentService creates a new StudentService.
func NewStudentService(repo repository.StudentRepository, logger *slog.Logger) *StudentService {
	return &StudentService{repo: repo, logger: logger}
}

// List returns the roster in seed order.
func (s *StudentService) List(ctx context.Context) ([]model.Student, error) {
	students, err := s.repo.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing students: %w", err)
	}
	return students, nil
}

// Count returns the number of students.
func (s *StudentService) Count(ctx context.Context) (int, error) {
	return s.repo.CountStudents(ctx)
}

// SetAttendance records none/late/present for a student.
func (s *StudentService) SetAttendance(ctx context.Context, id int64, status model.AttendStatus) (*model.Student, error) {
	return s.mutate(ctx, id, func(st *model.Student) error {
		if !status.Valid() {
			return apperror.ValidationFailed("attend", "attend must be one of: none, late, present")
		}
		st.Attend = status
		return nil
	})
}

// SetGrade records a grade in [MinGrade, MaxGrade]. -1 and 13 are rejected; 0 and 12 are fine.
func (s *StudentService) SetGrade(ctx context.Context, id int64, grade int) (*model.Student, error) {
	return s.mutate(ctx, id, func(st *model.Student) error {
		if grade < model.MinGrade || grade > model.MaxGrade {
			return apperror.ValidationFailed("grade",
				fmt.Sprintf("grade must be between %d and %d", model.MinGrade, model.MaxGrade))
		}
		st.Grade = grade
		return nil
	})
}

// SetOnline marks a student as online or offline.
func (s *StudentService) SetOnline(ctx context.Context, id int64, online bool) (*model.Student, error) {
	return s.mutate(ctx, id, func(st *model.Student) error {
		st.Online = online
		return nil
	})
}

// mutate loads the student (404 if unknown), lets change validate and
// modify it, then saves. The existence check comes first, so an unknown
// student with a bad grade reports 404, not 400.
func (s *StudentService) mutate(ctx context.Context, id int64, change func(*model.Student) error) (*model.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	student, err := s.repo.GetStudentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := change(student); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStudent(ctx, student); err != nil {
		return nil, fmt.Errorf("updating student: %w", err)
	}

	s.logger.Info("student updated",
		slog.Int64("id", student.ID),
		slog.String("attend", string(student.Attend)),
		slog.Int("grade", student.Grade),
		slog.Bool("online", student.Online),
	)
	return student, nil
}
