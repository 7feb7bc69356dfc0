package http_match

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
	usecase_session "github.com/cinematch/core/internal/usecase/session"
	usecase_vote "github.com/cinematch/core/internal/usecase/vote"
)

type SessionUsecase interface {
	CreateOrGet(ctx context.Context, groupID model.GroupID) (*model.Session, error)
	Get(ctx context.Context, groupID model.GroupID) (*model.Session, error)
	IsMember(ctx context.Context, groupID model.GroupID, userID uuid.UUID) (bool, error)
}

type VoteUsecase interface {
	Submit(ctx context.Context, groupID model.GroupID, userID, movieID uuid.UUID, liked model.Reaction) (usecase_vote.Outcome, error)
}

type Controller struct {
	sessions SessionUsecase
	votes    VoteUsecase
	auth     gin.HandlerFunc

	logger *slog.Logger
}

type ControllerOption func(*Controller)

func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

func New(
	sessions SessionUsecase,
	votes VoteUsecase,
	auth gin.HandlerFunc,
	opts ...ControllerOption,
) *Controller {
	c := &Controller{
		sessions: sessions,
		votes:    votes,
		auth:     auth,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	match := router.Group("match/:group_id")
	if c.auth != nil {
		match.Use(c.auth)
	}
	match.GET("/recommendations", c.recommendations)
	match.GET("/session", c.session)
	match.POST("/vote", c.vote)
}

type MovieMetaDTO struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Year       int      `json:"year"`
	Rating     float64  `json:"rating"`
	Genres     []string `json:"genres"`
	Overview   string   `json:"overview"`
	PosterLink string   `json:"poster_link"`
}

type RecommendationsResponseDTO struct {
	Movies []MovieMetaDTO `json:"movies"`
}

type SessionResponseDTO struct {
	GroupID     string          `json:"group_id"`
	Candidates  []MovieMetaDTO  `json:"candidates"`
	Winner      *MovieMetaDTO   `json:"winner,omitempty"`
	YourBallots map[string]bool `json:"your_ballots"`
}

type VoteRequestDTO struct {
	MovieID string `json:"movie_id" binding:"required"`
	Liked   *bool  `json:"liked" binding:"required"`
}

type VoteResponseDTO struct {
	Winner *MovieMetaDTO `json:"winner,omitempty"`
}

func toMovieDTO(mm *model.MovieMeta) MovieMetaDTO {
	return MovieMetaDTO{
		ID:         mm.ID.String(),
		Title:      mm.Title,
		Year:       mm.Year,
		Rating:     mm.Rating,
		Genres:     mm.Genres,
		Overview:   mm.Overview,
		PosterLink: mm.PosterLink,
	}
}

func (c *Controller) validateMember(ctx *gin.Context) (model.GroupID, uuid.UUID, bool) {
	groupID := model.GroupID(ctx.Param("group_id"))

	userID, ok := http_auth_middleware.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, http_common.ErrorResponse{
			Message: "authentication required",
		})
		return model.EmptyGroupID, uuid.Nil, false
	}

	isMember, err := c.sessions.IsMember(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, usecase_session.ErrGroupNotFound) {
			ctx.JSON(http.StatusNotFound, http_common.ErrorResponse{
				Message: "group not found",
			})
			return model.EmptyGroupID, uuid.Nil, false
		}
		c.logger.Error("membership check failed",
			slog.String("group_id", string(groupID)),
			slog.String("error", err.Error()))
		ctx.JSON(http.StatusInternalServerError, http_common.ErrorResponse{
			Message: "internal error",
		})
		return model.EmptyGroupID, uuid.Nil, false
	}
	if !isMember {
		ctx.JSON(http.StatusForbidden, http_common.ErrorResponse{
			Message: "user is not a member of this group",
		})
		return model.EmptyGroupID, uuid.Nil, false
	}

	return groupID, userID, true
}

// recommendations starts (or resumes) the group's session and returns
// the candidate queue in voting order.
func (c *Controller) recommendations(ctx *gin.Context) {
	groupID, _, ok := c.validateMember(ctx)
	if !ok {
		return
	}

	s, err := c.sessions.CreateOrGet(ctx, groupID)
	if err != nil {
		switch {
		case errors.Is(err, usecase_session.ErrGroupNotFound):
			ctx.JSON(http.StatusNotFound, http_common.ErrorResponse{
				Message: "group not found",
			})
		case errors.Is(err, usecase_session.ErrEmptyQueue):
			ctx.JSON(http.StatusNotFound, http_common.ErrorResponse{
				Message: "no candidates available",
			})
		default:
			c.logger.Error("failed to start session",
				slog.String("group_id", string(groupID)),
				slog.String("error", err.Error()))
			ctx.JSON(http.StatusInternalServerError, http_common.ErrorResponse{
				Message: "internal error",
			})
		}
		return
	}

	movies := make([]MovieMetaDTO, 0, len(s.Candidates))
	for _, mm := range s.Candidates {
		movies = append(movies, toMovieDTO(mm))
	}

	ctx.JSON(http.StatusOK, RecommendationsResponseDTO{Movies: movies})
}

// session returns the authoritative snapshot for reconnect/resync.
func (c *Controller) session(ctx *gin.Context) {
	groupID, userID, ok := c.validateMember(ctx)
	if !ok {
		return
	}

	s, err := c.sessions.Get(ctx, groupID)
	if err != nil {
		if errors.Is(err, usecase_session.ErrSessionNotFound) {
			ctx.JSON(http.StatusNotFound, http_common.ErrorResponse{
				Message: "session not found",
			})
			return
		}
		c.logger.Error("failed to get session",
			slog.String("group_id", string(groupID)),
			slog.String("error", err.Error()))
		ctx.JSON(http.StatusInternalServerError, http_common.ErrorResponse{
			Message: "internal error",
		})
		return
	}

	resp := SessionResponseDTO{
		GroupID:     string(s.GroupID),
		Candidates:  make([]MovieMetaDTO, 0, len(s.Candidates)),
		YourBallots: make(map[string]bool),
	}
	for _, mm := range s.Candidates {
		resp.Candidates = append(resp.Candidates, toMovieDTO(mm))
		if liked, ok := s.Ballot(userID, mm.ID); ok {
			resp.YourBallots[mm.ID.String()] = liked
		}
	}
	if s.Winner != nil {
		dto := toMovieDTO(s.Winner)
		resp.Winner = &dto
	}

	ctx.JSON(http.StatusOK, resp)
}

func (c *Controller) vote(ctx *gin.Context) {
	groupID, userID, ok := c.validateMember(ctx)
	if !ok {
		return
	}

	var req VoteRequestDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
			Message: "invalid request format",
		})
		return
	}

	movieID, err := uuid.Parse(req.MovieID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
			Message: "invalid movie id format",
		})
		return
	}

	outcome, err := c.votes.Submit(ctx, groupID, userID, movieID, *req.Liked)
	if err != nil {
		switch {
		case errors.Is(err, usecase_vote.ErrSessionNotFound):
			ctx.JSON(http.StatusNotFound, http_common.ErrorResponse{
				Message: "session not found",
			})
		case errors.Is(err, usecase_vote.ErrInvalidVote):
			ctx.JSON(http.StatusConflict, http_common.ErrorResponse{
				Message: "invalid vote",
			})
		case errors.Is(err, usecase_vote.ErrExhausted):
			ctx.JSON(http.StatusGone, http_common.ErrorResponse{
				Message: "no candidates left, no match",
			})
		default:
			c.logger.Error("vote failed",
				slog.String("group_id", string(groupID)),
				slog.String("user_id", userID.String()),
				slog.String("error", err.Error()))
			ctx.JSON(http.StatusInternalServerError, http_common.ErrorResponse{
				Message: "internal error",
			})
		}
		return
	}

	resp := VoteResponseDTO{}
	if outcome.Winner != nil {
		dto := toMovieDTO(outcome.Winner)
		resp.Winner = &dto
	}

	ctx.JSON(http.StatusOK, resp)
}
