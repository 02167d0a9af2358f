package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/feedwall-be/internal/apperr"
	"github.com/isdelr/feedwall-be/internal/models"
	"github.com/isdelr/feedwall-be/internal/repository"
	"github.com/isdelr/feedwall-be/internal/storage"
)

// PostsPerPage is the fixed page size of the feed.
const PostsPerPage = 2

const minFieldLength = 5

// Characters stripped from titles before validation.
const titleBlacklist = "$#@^&"

// ImageUpload carries the bytes of an uploaded image plus its original
// filename. A nil *ImageUpload means no image was supplied.
type ImageUpload struct {
	Name string
	Data []byte
}

// ListResult is one page of the feed.
type ListResult struct {
	Posts     []models.Post
	TotalItem int
}

// PostServiceProvider defines the interface for the post lifecycle.
type PostServiceProvider interface {
	ListPosts(page int) (ListResult, error)
	CreatePost(userID, title, content string, image *ImageUpload) (models.Post, models.CreatorSummary, error)
	GetPost(postID string) (models.Post, error)
	UpdatePost(userID, postID, title, content string, image *ImageUpload) (models.Post, error)
	DeletePost(userID, postID string) (models.Post, error)
}

// PostService orchestrates the post lifecycle: it enforces ownership,
// coordinates the repository record with the image artifact, and keeps the
// creator's back-reference list in sync.
//
// The record write is the commit point. The artifact is written first and
// removed best-effort if the record write fails; cleanup steps after the
// commit are best-effort and recorded as events for the reconciler.
type PostService struct {
	repo   repository.PostRepository
	users  UserServiceProvider
	events EventServiceProvider
	images storage.ImageStore
}

// NewPostService creates a new PostService.
func NewPostService(repo repository.PostRepository, users UserServiceProvider, events EventServiceProvider, images storage.ImageStore) *PostService {
	return &PostService{repo: repo, users: users, events: events, images: images}
}

// ListPosts returns one page of the feed. Pages start at 1; a page past the
// end of the feed is an empty result, not an error.
func (s *PostService) ListPosts(page int) (ListResult, error) {
	if page < 1 {
		return ListResult{}, apperr.New(apperr.KindInvalidPage, "Enter a valid Page.")
	}

	offset := (page - 1) * PostsPerPage
	posts, total, err := s.repo.FindPage(offset, PostsPerPage)
	if err != nil {
		return ListResult{}, apperr.Storage("failed to list posts", err)
	}
	if offset >= total {
		return ListResult{TotalItem: total}, nil
	}
	return ListResult{Posts: posts, TotalItem: total}, nil
}

// CreatePost validates input, stores the image artifact, writes the post
// record and appends the creator's back-reference.
func (s *PostService) CreatePost(userID, title, content string, image *ImageUpload) (models.Post, models.CreatorSummary, error) {
	title, content, err := validatePostFields(title, content)
	if err != nil {
		return models.Post{}, models.CreatorSummary{}, err
	}
	if image == nil || len(image.Data) == 0 {
		return models.Post{}, models.CreatorSummary{}, apperr.New(apperr.KindMissingImage, "No Image Provided.")
	}

	creator, err := s.users.GetUserByID(userID)
	if err != nil {
		return models.Post{}, models.CreatorSummary{}, apperr.Storage("failed to resolve post creator", err)
	}

	ref, err := s.images.Store(image.Name, image.Data)
	if err != nil {
		return models.Post{}, models.CreatorSummary{}, apperr.Storage("failed to store image", err)
	}

	post, err := s.repo.Create(models.Post{
		ID:       uuid.New().String(),
		Title:    title,
		Content:  content,
		ImageRef: ref,
		Creator:  userID,
	})
	if err != nil {
		// The record write failed, so the artifact is unreferenced; remove it
		// rather than leave it for the reconciler.
		if delErr := s.images.Delete(ref); delErr != nil {
			log.Warn().Err(delErr).Str("ref", ref).Msg("Failed to remove artifact after aborted create")
		}
		return models.Post{}, models.CreatorSummary{}, apperr.Storage("failed to create post", err)
	}

	if err := s.users.AppendPost(userID, post.ID); err != nil {
		// The post record is committed; leave it and let the reconciler
		// restore the back-reference.
		s.recordEvent("reconcile.backref", "error",
			fmt.Sprintf("Back-reference append failed for user '%s'.", userID), post.ID)
		return models.Post{}, models.CreatorSummary{}, apperr.Storage("post created but user record update failed", err)
	}

	s.recordEvent("post.created", "info", fmt.Sprintf("Post '%s' created by '%s'.", post.Title, creator.Name), post.ID)
	return post, models.CreatorSummary{ID: creator.ID, Name: creator.Name}, nil
}

// GetPost returns a post by id. Any authenticated user may read any post.
func (s *PostService) GetPost(postID string) (models.Post, error) {
	post, err := s.repo.FindByID(postID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return models.Post{}, apperr.NotFound("Couldn't find post")
		}
		return models.Post{}, apperr.Storage("failed to load post", err)
	}
	return post, nil
}

// UpdatePost replaces a post's title, content and image. Only the creator
// may update; ownership failure stops the operation before any side effect.
func (s *PostService) UpdatePost(userID, postID, title, content string, image *ImageUpload) (models.Post, error) {
	post, err := s.GetPost(postID)
	if err != nil {
		return models.Post{}, err
	}
	if post.Creator != userID {
		return models.Post{}, apperr.Forbidden("Not authorized to modify this post")
	}

	title, content, err = validatePostFields(title, content)
	if err != nil {
		return models.Post{}, err
	}
	if image == nil || len(image.Data) == 0 {
		return models.Post{}, apperr.New(apperr.KindMissingImage, "No Image Provided.")
	}

	newRef, err := s.images.Store(image.Name, image.Data)
	if err != nil {
		return models.Post{}, apperr.Storage("failed to store image", err)
	}

	oldRef := post.ImageRef
	updated, err := s.repo.UpdateByID(postID, title, content, newRef)
	if err != nil {
		if delErr := s.images.Delete(newRef); delErr != nil {
			log.Warn().Err(delErr).Str("ref", newRef).Msg("Failed to remove artifact after aborted update")
		}
		if errors.Is(err, repository.ErrPostNotFound) {
			return models.Post{}, apperr.NotFound("Couldn't find post")
		}
		return models.Post{}, apperr.Storage("failed to update post", err)
	}

	// The record now points at the new artifact; the old one is dead weight.
	if err := s.images.Delete(oldRef); err != nil {
		log.Warn().Err(err).Str("ref", oldRef).Msg("Failed to delete replaced artifact")
		s.recordEvent("reconcile.artifact", "warn",
			fmt.Sprintf("Replaced artifact '%s' could not be deleted.", oldRef), postID)
	}

	s.recordEvent("post.updated", "info", fmt.Sprintf("Post '%s' updated.", updated.Title), postID)
	return updated, nil
}

// DeletePost removes a post, its image artifact and the creator's
// back-reference. Only the creator may delete. The returned snapshot is the
// record as it was before deletion.
func (s *PostService) DeletePost(userID, postID string) (models.Post, error) {
	post, err := s.GetPost(postID)
	if err != nil {
		return models.Post{}, err
	}
	if post.Creator != userID {
		return models.Post{}, apperr.Forbidden("Not authorized to modify this post")
	}

	deleted, err := s.repo.DeleteByID(postID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return models.Post{}, apperr.NotFound("Couldn't find post")
		}
		return models.Post{}, apperr.Storage("failed to delete post", err)
	}

	if err := s.images.Delete(deleted.ImageRef); err != nil {
		log.Warn().Err(err).Str("ref", deleted.ImageRef).Msg("Failed to delete artifact of removed post")
		s.recordEvent("reconcile.artifact", "warn",
			fmt.Sprintf("Artifact '%s' of deleted post could not be removed.", deleted.ImageRef), postID)
	}
	if err := s.users.RemovePost(userID, postID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to remove back-reference of deleted post")
		s.recordEvent("reconcile.backref", "warn",
			fmt.Sprintf("Back-reference removal failed for user '%s'.", userID), postID)
	}

	s.recordEvent("post.deleted", "info", fmt.Sprintf("Post '%s' deleted.", deleted.Title), postID)
	return deleted, nil
}

func (s *PostService) recordEvent(eventType, level, message, postID string) {
	if err := s.events.CreateEvent(eventType, level, message, &postID); err != nil {
		log.Warn().Err(err).Str("type", eventType).Msg("Failed to record event")
	}
}

// validatePostFields trims both fields, strips blacklisted characters from
// the title and checks minimum lengths, collecting every violated field.
func validatePostFields(title, content string) (string, string, error) {
	title = strings.TrimSpace(stripChars(title, titleBlacklist))
	content = strings.TrimSpace(content)

	var fields []string
	if len(title) < minFieldLength {
		fields = append(fields, "title")
	}
	if len(content) < minFieldLength {
		fields = append(fields, "content")
	}
	if len(fields) > 0 {
		return "", "", apperr.Validation("Validation Failed, Entered data is not Correct.", fields...)
	}
	return title, content, nil
}

func stripChars(s, cutset string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(cutset, r) {
			return -1
		}
		return r
	}, s)
}
