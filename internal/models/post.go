package models

import "time"

// Post represents a single feed entry. ImageRef is an opaque handle issued
// by the image store; clients never supply it directly.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ImageRef  string    `json:"imageUrl"`
	Creator   string    `json:"creator"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
