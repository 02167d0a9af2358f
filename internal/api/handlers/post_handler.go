package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/feedwall-be/internal/apperr"
	"github.com/isdelr/feedwall-be/internal/auth"
	"github.com/isdelr/feedwall-be/internal/services"
)

// maxUploadBytes caps the in-memory portion of a multipart upload.
const maxUploadBytes = 10 << 20

// Accepted image part content types. Parts of any other type are treated as
// if no image was supplied.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// PostHandler handles the feed routes.
type PostHandler struct {
	service services.PostServiceProvider
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(service services.PostServiceProvider) *PostHandler {
	return &PostHandler{service: service}
}

// List handles GET /feed/posts?page=N.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	page := 1
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil {
			writeError(w, apperr.New(apperr.KindInvalidPage, "Enter a valid Page."))
			return
		}
		page = p
	}

	result, err := h.service.ListPosts(page)
	if err != nil {
		writeError(w, err)
		return
	}

	if len(result.Posts) == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": "This page don't have any post",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Posts Received Successfully",
		"totalItem": result.TotalItem,
		"posts":     result.Posts,
	})
}

// Create handles POST /feed/post (multipart: title, content, image).
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apperr.Unauthenticated("Not authenticated"))
		return
	}

	title, content, image, err := parsePostForm(r)
	if err != nil {
		writeError(w, err)
		return
	}

	post, creator, err := h.service.CreatePost(claims.UserID, title, content, image)
	if err != nil {
		log.Warn().Err(err).Str("user_id", claims.UserID).Msg("Failed to create post")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Post created successfully",
		"post":    post,
		"creator": creator,
	})
}

// Get handles GET /feed/post/{postId}.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.GetPost(chi.URLParam(r, "postId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Post received!",
		"post":    post,
	})
}

// Update handles PUT /feed/post/{postId} (multipart: title, content, image).
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apperr.Unauthenticated("Not authenticated"))
		return
	}

	title, content, image, err := parsePostForm(r)
	if err != nil {
		writeError(w, err)
		return
	}

	postID := chi.URLParam(r, "postId")
	post, err := h.service.UpdatePost(claims.UserID, postID, title, content, image)
	if err != nil {
		log.Warn().Err(err).Str("post_id", postID).Str("user_id", claims.UserID).Msg("Failed to update post")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Post updated!",
		"post":    post,
	})
}

// Delete handles DELETE /feed/post/{postId}.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apperr.Unauthenticated("Not authenticated"))
		return
	}

	postID := chi.URLParam(r, "postId")
	post, err := h.service.DeletePost(claims.UserID, postID)
	if err != nil {
		log.Warn().Err(err).Str("post_id", postID).Str("user_id", claims.UserID).Msg("Failed to delete post")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Post Deleted!",
		"post":    post,
	})
}

// parsePostForm extracts title, content and the optional image part from a
// multipart form. An image part of a disallowed content type is dropped, so
// the lifecycle service sees it as missing.
func parsePostForm(r *http.Request) (title, content string, image *services.ImageUpload, err error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", "", nil, apperr.Validation("Invalid multipart form body")
	}

	title = r.FormValue("title")
	content = r.FormValue("content")

	file, header, err := r.FormFile("image")
	if err != nil {
		// No image part; the service decides whether that is acceptable.
		return title, content, nil, nil
	}
	defer file.Close()

	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(header.Header.Get("Content-Type"), ";", 2)[0]))
	if !allowedImageTypes[contentType] {
		return title, content, nil, nil
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return "", "", nil, apperr.Validation("Could not read uploaded image")
	}
	return title, content, &services.ImageUpload{Name: header.Filename, Data: data}, nil
}
