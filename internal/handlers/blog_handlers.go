package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"inkgate/internal/access"
	"inkgate/internal/engine/actors"
	"inkgate/internal/middleware"
	"inkgate/internal/models"
	"inkgate/internal/utils"
)

// CreateBlogRequest represents a request to publish a new post
type CreateBlogRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	ImageURL string `json:"imageUrl"`
}

// LikeRequest represents a request to toggle the viewer's like on a post
type LikeRequest struct {
	PostID string `json:"postId"`
}

// HandleHealth handles health check requests
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		future := s.Context.RequestFuture(s.Engine.GetBlogActor(), &actors.GetCountsMsg{}, s.RequestTimeout)
		result, err := future.Result()
		if err != nil {
			http.Error(w, "Failed to get post count", http.StatusInternalServerError)
			return
		}
		postCount := result.(int)

		requests, errors := s.Metrics.Counts()
		writeJSON(w, map[string]interface{}{
			"status":      "healthy",
			"post_count":  postCount,
			"requests":    requests,
			"errors":      errors,
			"uptime":      s.Metrics.Uptime().String(),
			"operations":  s.Metrics.Snapshot(),
			"server_time": time.Now(),
		})
	}
}

// HandleBlogs serves the gated listing and admin post creation.
func (s *Server) HandleBlogs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Metrics.IncrementRequests()
		viewerID := middleware.GetViewerIDFromContext(r.Context())

		switch r.Method {
		case http.MethodGet:
			posts, err := s.listPosts(r)
			if err != nil {
				s.writeAppError(w, err)
				return
			}
			// Gating is evaluated per request from current data; the same
			// listing renders differently for paid, unpaid and anonymous
			// viewers.
			writeJSON(w, access.ViewsFor(posts, viewerID))

		case http.MethodPost:
			// Listing is open to anonymous readers on this route, but
			// publishing is not.
			if viewerID == "" {
				s.writeAppError(w, utils.NewUnauthorizedError("publishing requires an authenticated author"))
				return
			}

			var req CreateBlogRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request", http.StatusBadRequest)
				return
			}

			future := s.Context.RequestFuture(s.Engine.GetBlogActor(), &actors.CreateBlogMsg{
				Title:    req.Title,
				Content:  req.Content,
				ImageURL: req.ImageURL,
			}, s.RequestTimeout)

			result, err := future.Result()
			if err != nil {
				s.writeAppError(w, utils.NewActorTimeoutError("BlogActor"))
				return
			}
			if appErr, ok := result.(*utils.AppError); ok {
				s.writeAppError(w, appErr)
				return
			}

			post := result.(*models.BlogPost)
			s.Cache.Invalidate(r.Context())
			writeJSON(w, access.ViewFor(post, viewerID))

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// listPosts reads the listing through the snapshot cache, falling back to
// the blog actor on a miss.
func (s *Server) listPosts(r *http.Request) ([]*models.BlogPost, *utils.AppError) {
	if posts, ok := s.Cache.Get(r.Context()); ok {
		return posts, nil
	}

	future := s.Context.RequestFuture(s.Engine.GetBlogActor(), &actors.ListBlogsMsg{}, s.RequestTimeout)
	result, err := future.Result()
	if err != nil {
		return nil, utils.NewActorTimeoutError("BlogActor")
	}
	if appErr, ok := result.(*utils.AppError); ok {
		return nil, appErr
	}

	posts := result.([]*models.BlogPost)
	s.Cache.Set(r.Context(), posts)
	return posts, nil
}

// HandleLike toggles the requesting viewer's like on a post.
func (s *Server) HandleLike() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.Metrics.IncrementRequests()

		// RequireViewer fills this in; the check stays because the reject
		// must happen before any store access even if routing changes.
		viewerID := middleware.GetViewerIDFromContext(r.Context())
		if viewerID == "" {
			s.writeAppError(w, utils.NewUnauthorizedError("like requires an authenticated viewer"))
			return
		}

		var req LikeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		future := s.Context.RequestFuture(s.Engine.GetBlogActor(), &actors.ToggleLikeMsg{
			PostID:   req.PostID,
			ViewerID: viewerID,
		}, s.RequestTimeout)

		result, err := future.Result()
		if err != nil {
			s.writeAppError(w, utils.NewActorTimeoutError("BlogActor"))
			return
		}
		if appErr, ok := result.(*utils.AppError); ok {
			s.writeAppError(w, appErr)
			return
		}

		post := result.(*models.BlogPost)
		s.Cache.Invalidate(r.Context())
		writeJSON(w, access.ViewFor(post, viewerID))
	}
}

// HandleBlogImage manages post cover images: POST uploads one and returns
// the stored URL, DELETE removes a stored object by key (used when an author
// replaces or discards a cover before publishing).
func (s *Server) HandleBlogImage() http.HandlerFunc {
	const maxUploadBytes = 10 << 20

	return func(w http.ResponseWriter, r *http.Request) {
		s.Metrics.IncrementRequests()

		if s.Uploads == nil {
			http.Error(w, "Image uploads are not configured", http.StatusServiceUnavailable)
			return
		}

		switch r.Method {
		case http.MethodPost:
			if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
				http.Error(w, "Invalid multipart request", http.StatusBadRequest)
				return
			}

			files := r.MultipartForm.File["image"]
			if len(files) == 0 {
				http.Error(w, "Missing image file", http.StatusBadRequest)
				return
			}

			url, err := s.Uploads.UploadPostImage(files[0])
			if err != nil {
				s.writeAppError(w, utils.NewAppError(utils.ErrDatabase, "Failed to store image", err))
				return
			}

			writeJSON(w, map[string]string{"imageUrl": url})

		case http.MethodDelete:
			key := r.URL.Query().Get("key")
			if key == "" || !strings.HasPrefix(key, "posts/") {
				http.Error(w, "Missing or invalid image key", http.StatusBadRequest)
				return
			}

			if err := s.Uploads.DeleteImage(key); err != nil {
				s.writeAppError(w, utils.NewAppError(utils.ErrDatabase, "Failed to delete image", err))
				return
			}

			writeJSON(w, map[string]string{"deleted": key})

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}
