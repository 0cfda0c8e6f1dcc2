package registers

import (
	"errors"
	"time"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("registers: not found")

// ErrRegisterClosed indicates the register no longer accepts entries.
var ErrRegisterClosed = errors.New("registers: register is closed")

// Register is a yearly numbering series owned by a department. Entry
// numbers are sequential and gap-free within one register.
type Register struct {
	ID           int64     `json:"id"`
	PrimariaID   int64     `json:"primaria_id"`
	DepartmentID int64     `json:"department_id"`
	Name         string    `json:"name"`
	Year         int       `json:"year"`
	NextNumber   int64     `json:"next_number"`
	IsOpen       bool      `json:"is_open"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RecordEntry is one numbered entry in a register.
type RecordEntry struct {
	ID          int64     `json:"id"`
	RegisterID  int64     `json:"register_id"`
	Number      int64     `json:"number"`
	Subject     string    `json:"subject"`
	Petitioner  string    `json:"petitioner,omitempty"`
	CreatedByID int64     `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordFile is a document attached to an entry. Only metadata is
// stored here; the bytes live on disk under the storage root.
type RecordFile struct {
	ID          int64     `json:"id"`
	RecordID    int64     `json:"record_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	StoragePath string    `json:"storage_path"`
	UploadedBy  int64     `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateRegisterInput carries the fields needed to open a register.
type CreateRegisterInput struct {
	PrimariaID   int64
	DepartmentID int64
	Name         string
	Year         int
}

// CreateEntryInput carries the fields for a new record entry.
type CreateEntryInput struct {
	RegisterID  int64
	Subject     string
	Petitioner  string
	CreatedByID int64
}
