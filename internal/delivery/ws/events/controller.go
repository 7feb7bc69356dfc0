package ws_events

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	http_common "github.com/cinematch/core/internal/delivery/http/common"
)

// Authenticator maps a bearer token to its user. Implemented by the
// HTTP auth middleware.
type Authenticator interface {
	UserIDFromToken(token string) (uuid.UUID, error)
}

type Controller struct {
	hub  *Hub
	auth Authenticator

	upgrader websocket.Upgrader
	logger   *slog.Logger
}

type ControllerOption func(*Controller)

func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

func NewController(hub *Hub, auth Authenticator, opts ...ControllerOption) *Controller {
	c := &Controller{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/ws", c.serve)
}

func (c *Controller) serve(ctx *gin.Context) {
	token := ctx.Query("token")
	if token == "" {
		ctx.JSON(http.StatusUnauthorized, http_common.ErrorResponse{
			Message: "token query param required",
		})
		return
	}

	userID, err := c.auth.UserIDFromToken(token)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, http_common.ErrorResponse{
			Message: "invalid token",
		})
		return
	}

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.logger.Error("websocket upgrade failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		return
	}

	client := newClient(c.hub, conn, userID)
	c.hub.register <- client

	go client.writePump()
	go client.readPump()
}
