// Package models defines server-side data models persisted in the database.
package models

import "time"

// File describes a stored file. The bytes themselves live in the blob store
// under StorageKey.
type File struct {
	ID      string
	OwnerID string
	Name    string
	// FolderID is nil for files at the root level.
	FolderID *string

	// StorageKey is the blob-store handle of the content. It is unique across
	// all files.
	StorageKey string
	MimeType   string
	SizeBytes  int64

	CreatedAt time.Time
	UpdatedAt time.Time
	// DeletedAt is set while the file is in trash.
	DeletedAt *time.Time
}

// InTrash reports whether the file carries a soft-delete marker.
func (f *File) InTrash() bool { return f.DeletedAt != nil }

// Ref returns the item reference of the file.
func (f *File) Ref() ItemRef { return ItemRef{Type: ItemFile, ID: f.ID} }
