package models

import "time"

// User represents a registered account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // Never expose this to the client
	Posts        []string  `json:"posts"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CreatorSummary is the minimal view of a post's author returned alongside
// a freshly created post.
type CreatorSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
