package models

import "time"

// Folder is a node of an owner's tree. A nil ParentID means root level.
type Folder struct {
	ID        string
	OwnerID   string
	Name      string
	ParentID  *string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// InTrash reports whether the folder carries a soft-delete marker.
func (f *Folder) InTrash() bool { return f.DeletedAt != nil }

// Ref returns the item reference of the folder.
func (f *Folder) Ref() ItemRef { return ItemRef{Type: ItemFolder, ID: f.ID} }
