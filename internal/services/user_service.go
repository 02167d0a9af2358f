package services

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/isdelr/feedwall-be/internal/apperr"
	"github.com/isdelr/feedwall-be/internal/models"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	GetUserByID(id string) (models.User, error)
	GetUserByEmail(email string) (models.User, error)
	CreateUser(email, password, name string) (models.User, error)
	AuthenticateUser(email, password string) (models.User, error)
	AppendPost(userID, postID string) error
	RemovePost(userID, postID string) error
}

// UserService provides business logic for accounts and the denormalized
// user -> posts back-reference.
type UserService struct {
	db *sql.DB
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

// NormalizeEmail lowercases and trims an email address so lookups and the
// uniqueness constraint agree on one canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetUserByID retrieves a single user by their ID, including the list of
// posts they authored.
func (s *UserService) GetUserByID(id string) (models.User, error) {
	var user models.User
	row := s.db.QueryRow("SELECT id, email, name, created_at FROM users WHERE id = ?", id)
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.User{}, apperr.NotFound(fmt.Sprintf("user with ID %s not found", id))
		}
		return models.User{}, err
	}

	rows, err := s.db.Query("SELECT post_id FROM user_posts WHERE user_id = ? ORDER BY rowid", id)
	if err != nil {
		return models.User{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var postID string
		if err := rows.Scan(&postID); err != nil {
			return models.User{}, err
		}
		user.Posts = append(user.Posts, postID)
	}
	return user, rows.Err()
}

// GetUserByEmail retrieves a single user by their email, including the
// password hash.
func (s *UserService) GetUserByEmail(email string) (models.User, error) {
	var user models.User
	row := s.db.QueryRow("SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?", NormalizeEmail(email))
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.User{}, apperr.NotFound(fmt.Sprintf("user with email %s not found", email))
		}
		return models.User{}, err
	}
	return user, nil
}

// CreateUser creates a new user, hashing their password. Email uniqueness
// is enforced by the UNIQUE column, not by a lookup, so concurrent signups
// with the same address cannot both succeed.
func (s *UserService) CreateUser(email, password, name string) (models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New().String(),
		Email:        NormalizeEmail(email),
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hashedPassword),
	}

	stmt, err := s.db.Prepare("INSERT INTO users (id, email, name, password_hash) VALUES (?, ?, ?, ?)")
	if err != nil {
		return models.User{}, err
	}
	defer stmt.Close()

	if _, err := stmt.Exec(user.ID, user.Email, user.Name, user.PasswordHash); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return models.User{}, &apperr.Error{
				Kind:    apperr.KindDuplicateEmail,
				Message: "Email already exists",
				Fields:  []string{"email"},
			}
		}
		return models.User{}, err
	}

	// Return user without password hash
	user.PasswordHash = ""
	return user, nil
}

// AuthenticateUser verifies a user's credentials.
func (s *UserService) AuthenticateUser(email, password string) (models.User, error) {
	user, err := s.GetUserByEmail(email)
	if err != nil {
		return models.User{}, apperr.Unauthenticated("authentication failed: user not found")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, apperr.Unauthenticated("authentication failed: invalid password")
	}

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return user, nil
}

// AppendPost records postID in the user's back-reference list. Appending an
// already-recorded post is a no-op, so replay after a partial failure cannot
// double-count.
func (s *UserService) AppendPost(userID, postID string) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO user_posts (user_id, post_id) VALUES (?, ?)", userID, postID)
	return err
}

// RemovePost removes postID from the user's back-reference list. Removing a
// non-member is a no-op, not an error.
func (s *UserService) RemovePost(userID, postID string) error {
	_, err := s.db.Exec("DELETE FROM user_posts WHERE user_id = ? AND post_id = ?", userID, postID)
	return err
}
