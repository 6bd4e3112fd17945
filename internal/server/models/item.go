package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
)

// ItemType distinguishes folders from files in heterogeneous operations.
type ItemType string

const (
	ItemFolder ItemType = "folder"
	ItemFile   ItemType = "file"
)

// ParseItemType converts s to an ItemType.
func ParseItemType(s string) (ItemType, error) {
	switch ItemType(s) {
	case ItemFolder:
		return ItemFolder, nil
	case ItemFile:
		return ItemFile, nil
	default:
		return "", fmt.Errorf("%w: %q", common.ErrInvalidItemType, s)
	}
}

// ItemRef identifies a folder or a file.
type ItemRef struct {
	Type ItemType `json:"type"`
	ID   string   `json:"id"`
}

// Validate checks that the reference has a known type and a non-empty id.
func (r ItemRef) Validate() error {
	if _, err := ParseItemType(string(r.Type)); err != nil {
		return err
	}
	if r.ID == "" {
		return common.ErrorNotFound
	}
	return nil
}

func (r ItemRef) String() string { return string(r.Type) + ":" + r.ID }

// Scope selects whether lookups see soft-deleted rows.
type Scope int

const (
	ActiveOnly Scope = iota
	IncludeDeleted
)

// TrashItem is one row of a trash listing.
type TrashItem struct {
	Type      ItemType
	ID        string
	Name      string
	ParentID  *string
	SizeBytes int64
	DeletedAt time.Time
}
