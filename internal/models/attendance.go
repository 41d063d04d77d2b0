package models

import "time"

// AttendanceStatus enumerates the two states the daily register records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "Present"
	AttendanceStatusAbsent  AttendanceStatus = "Absent"
)

// Valid reports whether the status is one of the register states.
func (s AttendanceStatus) Valid() bool {
	return s == AttendanceStatusPresent || s == AttendanceStatusAbsent
}

// Attendance is one student's register entry for one calendar day. The
// (student_id, date) pair is unique; re-marking a day overwrites the
// earlier status.
type Attendance struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceDetail joins the student's name and class for register views.
type AttendanceDetail struct {
	Attendance
	StudentName  string `db:"student_name" json:"student_name"`
	StudentClass string `db:"student_class" json:"student_class"`
}
