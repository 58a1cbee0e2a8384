package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// DefaultGroupDurationHours is the lifetime assigned to groups created
// without an explicit duration.
const DefaultGroupDurationHours = 72

// Group is a shared bin of files with a bounded lifetime.
//
// Groups may carry an optional password; an empty PasswordHash means the
// group is open to anyone who knows its ID. IsReadonly is monotonic: a
// group can be converted to read-only but never back.
type Group struct {
	ID                     string    `gorm:"primaryKey;size:36" json:"id"`
	Name                   string    `gorm:"not null;size:255" json:"name"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt              time.Time `gorm:"index" json:"expires_at"`
	CreatedDurationHours   int       `gorm:"default:72" json:"created_duration_hours"`
	PasswordHash           string    `json:"-"`
	IsReadonly             bool      `gorm:"default:false" json:"is_readonly"`
	AllowConvertToReadonly bool      `gorm:"default:true" json:"allow_convert_to_readonly"`
	Creator                string    `gorm:"size:255" json:"creator,omitempty"`

	Files []File `gorm:"foreignKey:GroupID" json:"files,omitempty"`
}

// TableName returns the table name for Group.
func (Group) TableName() string {
	return "groups"
}

// SetPassword hashes and stores the given password. An empty password
// clears the hash, making the group open.
func (g *Group) SetPassword(password string) error {
	if password == "" {
		g.PasswordHash = ""
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	g.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether the candidate matches the stored hash.
// Groups without a password accept any candidate.
func (g *Group) CheckPassword(candidate string) bool {
	if g.PasswordHash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(g.PasswordHash), []byte(candidate)) == nil
}

// HasPassword reports whether the group is password protected.
func (g *Group) HasPassword() bool {
	return g.PasswordHash != ""
}

// IsExpired reports whether the group has expired as of now.
func (g *Group) IsExpired(now time.Time) bool {
	return now.After(g.ExpiresAt)
}

// RefreshExpiration extends ExpiresAt to now plus the group's original
// duration. It never shortens an expiry that is already later.
func (g *Group) RefreshExpiration(now time.Time) {
	hours := g.CreatedDurationHours
	if hours <= 0 {
		hours = DefaultGroupDurationHours
	}
	candidate := now.Add(time.Duration(hours) * time.Hour)
	if candidate.After(g.ExpiresAt) {
		g.ExpiresAt = candidate
	}
}
