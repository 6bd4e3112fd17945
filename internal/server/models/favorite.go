package models

import "time"

// Favorite marks exactly one file or one folder. Exactly one of FileID and
// FolderID is non-nil.
type Favorite struct {
	ID        string
	OwnerID   string
	FileID    *string
	FolderID  *string
	CreatedAt time.Time
}

// NewFavorite builds a favorite for ref owned by ownerID.
func NewFavorite(ownerID string, ref ItemRef) (*Favorite, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	id := ref.ID
	f := &Favorite{OwnerID: ownerID}
	if ref.Type == ItemFile {
		f.FileID = &id
	} else {
		f.FolderID = &id
	}
	return f, nil
}

// Ref returns the target of the favorite.
func (f *Favorite) Ref() ItemRef {
	if f.FileID != nil {
		return ItemRef{Type: ItemFile, ID: *f.FileID}
	}
	if f.FolderID != nil {
		return ItemRef{Type: ItemFolder, ID: *f.FolderID}
	}
	return ItemRef{}
}

// Valid reports whether exactly one target is set.
func (f *Favorite) Valid() bool {
	return (f.FileID == nil) != (f.FolderID == nil)
}
