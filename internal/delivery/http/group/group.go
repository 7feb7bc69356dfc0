package http_group

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	http_common "github.com/cinematch/core/internal/delivery/http/common"
	http_auth_middleware "github.com/cinematch/core/internal/delivery/http/middleware/auth"
	"github.com/cinematch/core/internal/model"
	usecase_group "github.com/cinematch/core/internal/usecase/group"
)

type GroupUsecase interface {
	Create(ctx context.Context, name string, creator uuid.UUID) (model.Group, error)
	AddMember(ctx context.Context, groupID model.GroupID, userID uuid.UUID) error
}

type Controller struct {
	groups GroupUsecase
	auth   gin.HandlerFunc

	logger *slog.Logger
}

type ControllerOption func(*Controller)

func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

func New(groups GroupUsecase, auth gin.HandlerFunc, opts ...ControllerOption) *Controller {
	c := &Controller{
		groups: groups,
		auth:   auth,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	groups := router.Group("groups")
	if c.auth != nil {
		groups.Use(c.auth)
	}
	groups.POST("", c.create)
	groups.POST("/:group_id/members", c.join)
}

type CreateGroupRequestDTO struct {
	Name string `json:"name" binding:"required"`
}

type GroupResponseDTO struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

func (c *Controller) create(ctx *gin.Context) {
	userID, ok := http_auth_middleware.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, http_common.ErrorResponse{
			Message: "authentication required",
		})
		return
	}

	var req CreateGroupRequestDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
			Message: "invalid request format",
		})
		return
	}

	group, err := c.groups.Create(ctx, req.Name, userID)
	if err != nil {
		if errors.Is(err, usecase_group.ErrEmptyName) {
			ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
				Message: "empty group name",
			})
			return
		}
		c.logger.Error("group creation failed",
			slog.String("error", err.Error()))
		ctx.JSON(http.StatusInternalServerError, http_common.ErrorResponse{
			Message: "internal error",
		})
		return
	}

	members := make([]string, 0, len(group.Members))
	for _, id := range group.Members {
		members = append(members, id.String())
	}
	ctx.JSON(http.StatusCreated, GroupResponseDTO{
		ID:      string(group.ID),
		Name:    group.Name,
		Members: members,
	})
}

// join adds the authenticated user to the group.
func (c *Controller) join(ctx *gin.Context) {
	userID, ok := http_auth_middleware.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, http_common.ErrorResponse{
			Message: "authentication required",
		})
		return
	}

	groupID := model.GroupID(ctx.Param("group_id"))
	if err := c.groups.AddMember(ctx, groupID, userID); err != nil {
		if errors.Is(err, usecase_group.ErrGroupNotFound) {
			ctx.JSON(http.StatusNotFound, http_common.ErrorResponse{
				Message: "group not found",
			})
			return
		}
		c.logger.Error("group join failed",
			slog.String("group_id", string(groupID)),
			slog.String("error", err.Error()))
		ctx.JSON(http.StatusInternalServerError, http_common.ErrorResponse{
			Message: "internal error",
		})
		return
	}

	ctx.Status(http.StatusNoContent)
}
