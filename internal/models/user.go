package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a chat account
type User struct {
	ID         string         `json:"id" gorm:"primaryKey"`
	FullName   string         `json:"fullName" gorm:"not null"`
	Email      string         `json:"email" gorm:"uniqueIndex;not null"`
	Password   string         `json:"-" gorm:"not null"`
	ProfilePic string         `json:"profilePic"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name for User Model
func (User) TableName() string {
	return "users"
}

// Profile is the public view of a user; credentials never leave the server.
type Profile struct {
	ID         string `json:"id"`
	FullName   string `json:"fullName"`
	ProfilePic string `json:"profilePic"`
}

// Profile returns the public view of u.
func (u User) Profile() Profile {
	return Profile{ID: u.ID, FullName: u.FullName, ProfilePic: u.ProfilePic}
}
