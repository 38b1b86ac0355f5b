package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Username     string     `gorm:"uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	FullName     string     `json:"full_name"`
	IsOnline     bool       `gorm:"default:false" json:"is_online"`
	LastSeen     *time.Time `json:"last_seen"`
}

type UserResponse struct {
	ID       uint       `json:"id" msgpack:"id"`
	Username string     `json:"username" msgpack:"username"`
	Email    string     `json:"email" msgpack:"email"`
	FullName string     `json:"full_name" msgpack:"full_name"`
	IsOnline bool       `json:"is_online" msgpack:"is_online"`
	LastSeen *time.Time `json:"last_seen" msgpack:"last_seen"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		FullName: u.FullName,
		IsOnline: u.IsOnline,
		LastSeen: u.LastSeen,
	}
}

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Chain{},
		&ChainMember{},
		&Subscription{},
		&Message{},
	}
}
