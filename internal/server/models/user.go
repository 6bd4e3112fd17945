package models

import (
	"fmt"
	"time"
)

// Role is the account role of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole converts s to a Role. An empty string means RoleUser.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case "", RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

type User struct {
	ID           string
	UserName     string
	Email        string
	PasswordHash []byte
	Role         Role
	// StorageQuotaBytes is nil for unlimited accounts.
	StorageQuotaBytes *int64
	StorageUsedBytes  int64
	CreatedAt         time.Time
}
