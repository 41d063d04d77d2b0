package models

import "time"

// Student belongs to exactly one parent. The transport and accommodation
// flags drive the monthly fee amount and are snapshotted onto each fee row
// at generation time.
type Student struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Class         string    `db:"class" json:"class"`
	ParentID      string    `db:"parent_id" json:"parent_id"`
	Transport     bool      `db:"transport" json:"transport"`
	Accommodation bool      `db:"accommodation" json:"accommodation"`
	JoiningDate   time.Time `db:"joining_date" json:"joining_date"`
	Notes         string    `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail joins the owning parent's contact info.
type StudentDetail struct {
	Student
	ParentName  string `db:"parent_name" json:"parent_name"`
	ParentPhone string `db:"parent_phone" json:"parent_phone"`
}

// StudentFilter captures filtering criteria for listing students.
type StudentFilter struct {
	ParentID  string
	Class     string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
