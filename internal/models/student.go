package models

import "time"

// StudentStatus tracks enrollment lifecycle of a student.
type StudentStatus string

const (
	StudentStatusActive      StudentStatus = "active"
	StudentStatusInactive    StudentStatus = "inactive"
	StudentStatusTransferred StudentStatus = "transferred"
)

// Student represents an admitted student.
type Student struct {
	ID              string        `db:"id" json:"id"`
	Name            string        `db:"name" json:"name"`
	AdmissionNumber string        `db:"admission_number" json:"admission_number"`
	ClassID         string        `db:"class_id" json:"class_id"`
	WardID          string        `db:"ward_id" json:"ward_id"`
	DateOfBirth     time.Time     `db:"date_of_birth" json:"date_of_birth"`
	Gender          string        `db:"gender" json:"gender"`
	ParentName      string        `db:"parent_name" json:"parent_name"`
	ParentContact   string        `db:"parent_contact" json:"parent_contact"`
	Address         string        `db:"address" json:"address"`
	AdmissionDate   time.Time     `db:"admission_date" json:"admission_date"`
	Status          StudentStatus `db:"status" json:"status"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentDetail joins a student with class and ward names for display
// and for fee amount resolution.
type StudentDetail struct {
	Student
	ClassName string `db:"class_name" json:"class_name"`
	WardName  string `db:"ward_name" json:"ward_name"`
}

// StudentFilter captures filtering criteria for listing students.
type StudentFilter struct {
	ClassID   string
	WardID    string
	Status    StudentStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
