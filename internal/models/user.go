package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Role names recognised by the judge.
const (
	RoleAdmin = "admin"
	RoleTA    = "TA"
)

// DefaultAccountType is assigned to users created without an explicit account type.
const DefaultAccountType = "User"

// UserMeta carries the display name and the external identifier used to name the user's repository.
type UserMeta struct {
	Name string `gorm:"column:meta_name;size:64" json:"name"`
	ID   string `gorm:"column:meta_id;size:64;uniqueIndex" json:"id"`
}

// Homework records a homework upload attached to a user.
type Homework struct {
	HomeworkID uint   `json:"homework_id"`
	FileName   string `json:"file_name"`
	FileSize   string `json:"file_size"`
	FileSHA1   string `json:"file_sha1"`
}

// User is a judge account. SSHKey and GitUploadKey gate pushes to the user's repository.
type User struct {
	ID               uint                          `gorm:"primaryKey" json:"id"`
	Email            string                        `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password         string                        `gorm:"size:255;not null" json:"-"`
	SSHKey           *string                       `gorm:"column:ssh_key;size:1024;uniqueIndex" json:"ssh_key"`
	GitUploadKey     string                        `gorm:"size:128;index" json:"-"`
	AccountType      string                        `gorm:"size:32;not null;default:User" json:"accountType"`
	Meta             UserMeta                      `gorm:"embedded" json:"meta"`
	SubmissionLimits []QuotaRecord                 `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"submission_limit"`
	Roles            datatypes.JSONSlice[string]   `json:"roles"`
	Homeworks        datatypes.JSONSlice[Homework] `json:"homeworks"`
	Groups           datatypes.JSONSlice[string]   `json:"groups"`
	CreatedAt        time.Time                     `json:"created_at"`
	UpdatedAt        time.Time                     `json:"updated_at"`
}

// HasRole reports whether the user carries the given role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user is an administrator.
func (u User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// IsTA reports whether the user is a teaching assistant.
func (u User) IsTA() bool {
	return u.HasRole(RoleTA)
}

// CurrentSSHKey returns the stored key or an empty string.
func (u User) CurrentSSHKey() string {
	if u.SSHKey == nil {
		return ""
	}
	return strings.TrimSpace(*u.SSHKey)
}
