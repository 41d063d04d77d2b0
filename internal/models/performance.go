package models

import "time"

// DefaultTestSubject labels marks entered without a subject. The school
// runs one combined weekly test, so most rows carry this label.
const DefaultTestSubject = "Mixed Sunday Test"

// Performance is one test result for a student, marks out of 100.
type Performance struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	TestDate  time.Time `db:"test_date" json:"test_date"`
	Subject   string    `db:"subject" json:"subject"`
	Marks     int       `db:"marks" json:"marks"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PerformanceDetail joins the student's name and class for mark sheets.
type PerformanceDetail struct {
	Performance
	StudentName  string `db:"student_name" json:"student_name"`
	StudentClass string `db:"student_class" json:"student_class"`
}
