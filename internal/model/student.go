package model

// AttendStatus is a student's attendance mark for the current lesson.
type AttendStatus string

const (
	AttendNone    AttendStatus = "none"
	AttendLate    AttendStatus = "late"
	AttendPresent AttendStatus = "present"
)

// Valid reports whether s is one of the known statuses.
func (s AttendStatus) Valid() bool {
	switch s {
	case AttendNone, AttendLate, AttendPresent:
		return true
	}
	return false
}

// Grade bounds (inclusive).
const (
	MinGrade = 0
	MaxGrade = 12
)

// Student is one of the pre-seeded class members.
// Students are never created or deleted at runtime; only Attend, Grade and
// Online change.
type Student struct {
	ID     int64        `json:"id"`
	Name   string       `json:"name"`
	Attend AttendStatus `json:"attend"`
	Grade  int          `json:"grade"`
	Online bool         `json:"online"`
}
