package realtime

import (
	"net/http"

	"eventix/internal/shared/apperr"
	"eventix/internal/shared/config"
	"eventix/internal/shared/middleware"
	"eventix/internal/shared/utils/response"
	"eventix/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests to realtime websocket clients.
type Handler struct {
	hub       *Hub
	publisher Publisher
	secret    string
	opts      ClientOptions
	upgrader  websocket.Upgrader
	logger    *logger.Logger
}

// NewHandler builds the /ws handler. publisher carries client selection
// hints; pass the Redis broker to reach other instances.
func NewHandler(hub *Hub, publisher Publisher, cfg *config.Config, log *logger.Logger) *Handler {
	origins := make(map[string]bool, len(cfg.Realtime.AllowedOrigins))
	for _, o := range cfg.Realtime.AllowedOrigins {
		origins[o] = true
	}

	return &Handler{
		hub:       hub,
		publisher: publisher,
		secret:    cfg.JWT.Secret,
		opts: ClientOptions{
			Buffer:         cfg.Realtime.ClientBuffer,
			WriteTimeout:   cfg.Realtime.WriteTimeout,
			PongTimeout:    cfg.Realtime.PongTimeout,
			MaxMessageSize: cfg.Realtime.MaxMessageSize,
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins["*"] || origins[origin]
			},
		},
		logger: log,
	}
}

// ServeWS accepts an optional access token in the token query parameter.
// Anonymous viewers receive updates; their selections carry no user id.
func (h *Handler) ServeWS(c *gin.Context) {
	var userID *uuid.UUID
	if token := c.Query("token"); token != "" {
		id, err := middleware.ParseAccessToken(h.secret, token)
		if err != nil {
			response.RespondError(c, "Invalid websocket token", apperr.Unauthorized("invalid or expired token"))
			return
		}
		userID = &id.UserID
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err.Error())
		return
	}

	client := newClient(conn, h.hub, h.publisher, userID, h.opts, h.logger)
	go client.run()
}
