package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/sakif/lesson-api/internal/apperror"
	"github.com/sakif/lesson-api/internal/model"
	"github.com/sakif/lesson-api/internal/repository"
)

var _ repository.StudentRepository = (*DB)(nil)

// roster is the fixed class list. Students are never added or removed at runtime.
var roster = []model.Student{
	{ID: 1, Name: "Дюсупов Аскербек Сабирович"},
	{ID: 2, Name: "Исаев Владислав"},
	{ID: 3, Name: "Лаас Михаил Юрьевич"},
	{ID: 4, Name: "Нурмолдин Нурбай Бекболатович"},
	{ID: 5, Name: "Шаунин Роман Владимирович"},
}

// seedStudents inserts the roster with default status values.
// INSERT OR IGNORE keeps existing rows (and their marks) on a file database.
func (db *DB) seedStudents() error {
	for _, s := range roster {
		_, err := db.conn.Exec(
			`INSERT OR IGNORE INTO students (id, name, attend, grade, online) VALUES (?, ?, ?, ?, ?)`,
			s.ID, s.Name, string(model.AttendNone), 0, false,
		)
		if err != nil {
			return fmt.Errorf("inserting student %d: %w", s.ID, err)
		}
	}
	return nil
}

func scanStudent(row rowScanner) (*model.Student, error) {
	var (
		s      model.Student
		attend string
	)
	if err := row.Scan(&s.ID, &s.Name, &attend, &s.Grade, &s.Online); err != nil {
		return nil, err
	}
	s.Attend = model.AttendStatus(attend)
	return &s, nil
}

// ListStudents returns the roster in seed order.
func (db *DB) ListStudents(ctx context.Context) ([]model.Student, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, attend, grade, online FROM students ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing students: %w", err)
	}
	defer rows.Close()

	students := make([]model.Student, 0, len(roster))
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning student row: %w", err)
		}
		students = append(students, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating students: %w", err)
	}
	return students, nil
}

// GetStudentByID retrieves one student.
func (db *DB) GetStudentByID(ctx context.Context, id int64) (*model.Student, error) {
	s, err := scanStudent(db.conn.QueryRowContext(ctx,
		`SELECT id, name, attend, grade, online FROM students WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("student", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting student %d: %w", id, err)
	}
	return s, nil
}

// UpdateStudent writes the three mutable columns. The name never changes.
func (db *DB) UpdateStudent(ctx context.Context, student *model.Student) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE students SET attend = ?, grade = ?, online = ? WHERE id = ?`,
		string(student.Attend), student.Grade, student.Online, student.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating student %d: %w", student.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("student", strconv.FormatInt(student.ID, 10))
	}
	return nil
}

// CountStudents returns the size of the roster.
func (db *DB) CountStudents(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting students: %w", err)
	}
	return n, nil
}
