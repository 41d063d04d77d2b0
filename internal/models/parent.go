package models

import "time"

// Parent is the unit of billing: fees belong to students, payments to parents.
type Parent struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Phone     string    `db:"phone" json:"phone"`
	WhatsApp  string    `db:"whatsapp" json:"whatsapp,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ParentDetail bundles a parent with their children.
type ParentDetail struct {
	Parent
	Children []Student `json:"children"`
}

// ParentFilter captures filtering criteria for listing parents.
type ParentFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
