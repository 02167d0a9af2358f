// Package repository holds the SQL-backed post store. The post lifecycle
// service depends on the PostRepository interface, never on the database
// handle itself.
package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/isdelr/feedwall-be/internal/models"
)

// ErrPostNotFound is returned when no post exists for the given id.
var ErrPostNotFound = errors.New("post not found")

// PostRepository defines the persistence operations the lifecycle service
// needs.
type PostRepository interface {
	Create(post models.Post) (models.Post, error)
	FindByID(id string) (models.Post, error)
	FindPage(offset, limit int) ([]models.Post, int, error)
	UpdateByID(id, title, content, imageRef string) (models.Post, error)
	DeleteByID(id string) (models.Post, error)
}

// SQLitePostRepository implements PostRepository on a SQLite database.
type SQLitePostRepository struct {
	db *sql.DB
}

// NewSQLitePostRepository creates a new SQLitePostRepository.
func NewSQLitePostRepository(db *sql.DB) *SQLitePostRepository {
	return &SQLitePostRepository{db: db}
}

// Create inserts a new post record.
func (r *SQLitePostRepository) Create(post models.Post) (models.Post, error) {
	stmt, err := r.db.Prepare("INSERT INTO posts (id, title, content, image_ref, creator, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return models.Post{}, err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now
	if _, err := stmt.Exec(post.ID, post.Title, post.Content, post.ImageRef, post.Creator, post.CreatedAt, post.UpdatedAt); err != nil {
		return models.Post{}, err
	}
	return post, nil
}

// FindByID retrieves a single post, or ErrPostNotFound.
func (r *SQLitePostRepository) FindByID(id string) (models.Post, error) {
	var post models.Post
	row := r.db.QueryRow("SELECT id, title, content, image_ref, creator, created_at, updated_at FROM posts WHERE id = ?", id)
	err := row.Scan(&post.ID, &post.Title, &post.Content, &post.ImageRef, &post.Creator, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Post{}, ErrPostNotFound
		}
		return models.Post{}, err
	}
	return post, nil
}

// FindPage returns one page of posts in insertion order plus the total count
// of the full set at call time.
func (r *SQLitePostRepository) FindPage(offset, limit int) ([]models.Post, int, error) {
	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM posts").Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query("SELECT id, title, content, image_ref, creator, created_at, updated_at FROM posts ORDER BY rowid LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var post models.Post
		if err := rows.Scan(&post.ID, &post.Title, &post.Content, &post.ImageRef, &post.Creator, &post.CreatedAt, &post.UpdatedAt); err != nil {
			return nil, 0, err
		}
		posts = append(posts, post)
	}
	return posts, total, rows.Err()
}

// UpdateByID overwrites title, content and image reference, returning the
// updated record.
func (r *SQLitePostRepository) UpdateByID(id, title, content, imageRef string) (models.Post, error) {
	res, err := r.db.Exec("UPDATE posts SET title = ?, content = ?, image_ref = ?, updated_at = ? WHERE id = ?",
		title, content, imageRef, time.Now().UTC(), id)
	if err != nil {
		return models.Post{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.Post{}, ErrPostNotFound
	}
	return r.FindByID(id)
}

// DeleteByID removes the record and returns the pre-deletion snapshot so the
// caller can clean up the image artifact and back-reference.
func (r *SQLitePostRepository) DeleteByID(id string) (models.Post, error) {
	post, err := r.FindByID(id)
	if err != nil {
		return models.Post{}, err
	}
	res, err := r.db.Exec("DELETE FROM posts WHERE id = ?", id)
	if err != nil {
		return models.Post{}, err
	}
	// A concurrent delete may have won the race between the read and the
	// delete; report it as not found.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.Post{}, ErrPostNotFound
	}
	return post, nil
}
