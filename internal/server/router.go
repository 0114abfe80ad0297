// Package server exposes the NotePilot HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/chat"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/generation"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/realtime"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userIDContextKey         = "notepilot_user_id"
	defaultCookieName        = "__session"
	defaultHeartbeatInterval = 25 * time.Second
	maxMultipartMemory       = 32 << 20
)

var (
	errMissingAuthenticator = errors.New("authenticator dependency required")
	errMissingUsers         = errors.New("identity resolver dependency required")
	errMissingNotesService  = errors.New("notes service dependency required")
	errMissingGeneration    = errors.New("generation service dependency required")
	errMissingChatService   = errors.New("chat service dependency required")
	errMissingRealtime      = errors.New("realtime dependencies required")
)

// IdentityResolver maps a verified principal onto the canonical user id.
type IdentityResolver interface {
	ResolveCanonicalUserID(ctx context.Context, principal auth.Principal) (string, error)
}

// EventSubscriber opens per-user event streams.
type EventSubscriber interface {
	Subscribe(ctx context.Context, userID string) (<-chan realtime.Event, func())
}

type Dependencies struct {
	Authenticator     auth.Authenticator
	Users             IdentityResolver
	NotesService      *notes.Service
	Generation        *generation.Service
	ChatService       *chat.Service
	Publisher         realtime.Publisher
	Subscriber        EventSubscriber
	Logger            *zap.Logger
	AllowedOrigins    []string
	CookieName        string
	HeartbeatInterval time.Duration
	Clock             func() time.Time
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	switch {
	case deps.Authenticator == nil:
		return nil, errMissingAuthenticator
	case deps.Users == nil:
		return nil, errMissingUsers
	case deps.NotesService == nil:
		return nil, errMissingNotesService
	case deps.Generation == nil:
		return nil, errMissingGeneration
	case deps.ChatService == nil:
		return nil, errMissingChatService
	case deps.Publisher == nil || deps.Subscriber == nil:
		return nil, errMissingRealtime
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cookieName := deps.CookieName
	if cookieName == "" {
		cookieName = defaultCookieName
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.MaxMultipartMemory = maxMultipartMemory
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	handler := &httpHandler{
		authenticator: deps.Authenticator,
		users:         deps.Users,
		notesService:  deps.NotesService,
		generation:    deps.Generation,
		chatService:   deps.ChatService,
		publisher:     deps.Publisher,
		subscriber:    deps.Subscriber,
		logger:        logger,
		cookieName:    cookieName,
		heartbeat:     heartbeat,
		clock:         clock,
	}

	router.GET("/healthz", handler.handleHealth)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest(false))
	protected.POST("/quizzes", handler.handleGenerateQuiz)
	protected.POST("/flashcards", handler.handleGenerateFlashcards)

	protected.POST("/notes", handler.handleCreateNote)
	protected.GET("/notes", handler.handleListNotes)
	protected.GET("/notes/:id", handler.handleGetNote)
	protected.PATCH("/notes/:id", handler.handleUpdateNote)
	protected.DELETE("/notes/:id", handler.handleDeleteNote)
	protected.POST("/notes/:id/summarize", handler.handleSummarizeNote)
	protected.GET("/notes/:id/quizzes/latest", handler.handleLatestQuiz)
	protected.GET("/notes/:id/flashcards/latest", handler.handleLatestFlashcards)

	protected.POST("/notes/:id/chat/messages", handler.handleSendMessage)
	protected.GET("/notes/:id/chat/messages", handler.handleListMessages)
	protected.PATCH("/messages/:id/feedback", handler.handleMessageFeedback)

	streaming := router.Group("/")
	streaming.Use(handler.authorizeRequest(true))
	streaming.GET("/events", handler.handleEvents)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	config := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		config.AllowAllOrigins = true
		return config
	}
	config.AllowOrigins = origins
	config.AllowCredentials = true
	return config
}

type httpHandler struct {
	authenticator auth.Authenticator
	users         IdentityResolver
	notesService  *notes.Service
	generation    *generation.Service
	chatService   *chat.Service
	publisher     realtime.Publisher
	subscriber    EventSubscriber
	logger        *zap.Logger
	cookieName    string
	heartbeat     time.Duration
	clock         func() time.Time
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// userID returns the caller resolved by authorizeRequest.
func userID(c *gin.Context) notes.UserID {
	value, _ := c.Get(userIDContextKey)
	id, _ := value.(notes.UserID)
	return id
}
