package models

import (
	"time"
)

// User maps to table `users`
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
