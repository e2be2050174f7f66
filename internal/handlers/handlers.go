package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/asynkron/protoactor-go/actor"

	"inkgate/internal/cache"
	"inkgate/internal/database"
	"inkgate/internal/engine"
	"inkgate/internal/uploads"
	"inkgate/internal/utils"
	"inkgate/internal/websocket"
)

// Server holds all server dependencies, including the actor system and engine
type Server struct {
	System         *actor.ActorSystem
	Context        *actor.RootContext
	Engine         *engine.Engine
	Metrics        *utils.MetricsCollector
	DB             *database.MongoDB
	Cache          *cache.BlogCache
	Uploads        *uploads.Client
	Hub            *websocket.Hub
	RequestTimeout time.Duration
}

// NewServer creates a new Server instance with the given components. DB,
// Cache, Uploads and Hub may each be nil; the handlers degrade rather than
// depend on every backing service being up.
func NewServer(
	system *actor.ActorSystem,
	blogEngine *engine.Engine,
	metrics *utils.MetricsCollector,
	db *database.MongoDB,
	blogCache *cache.BlogCache,
	uploadsClient *uploads.Client,
	hub *websocket.Hub,
) *Server {
	return &Server{
		System:         system,
		Context:        system.Root,
		Engine:         blogEngine,
		Metrics:        metrics,
		DB:             db,
		Cache:          blogCache,
		Uploads:        uploadsClient,
		Hub:            hub,
		RequestTimeout: 5 * time.Second, // Default timeout for actor requests
	}
}

// writeJSON encodes a response body with the standard header.
func writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

// writeAppError converts an application error into a user-facing message.
// Every failure surfaces as a message; none crash the view.
func (s *Server) writeAppError(w http.ResponseWriter, appErr *utils.AppError) {
	s.Metrics.IncrementErrors()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(utils.AppErrorToHTTPStatus(appErr.Code))
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":     appErr.Message,
		"code":      appErr.Code,
		"retryable": utils.IsRetryable(appErr),
	})
}
