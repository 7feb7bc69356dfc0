package http_movie

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	http_common "github.com/cinematch/core/internal/delivery/http/common"
	"github.com/cinematch/core/internal/model"
)

// Catalog is the movie write side, normally the postgres movie driver.
type Catalog interface {
	Add(ctx context.Context, mm *model.MovieMeta) error
}

// Controller ingests catalog entries. This is an operator surface:
// voters never write movies, the candidate queue is read-only for them.
type Controller struct {
	catalog Catalog
	auth    gin.HandlerFunc

	logger *slog.Logger
}

func New(catalog Catalog, auth gin.HandlerFunc) *Controller {
	return &Controller{
		catalog: catalog,
		auth:    auth,
		logger:  slog.Default(),
	}
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	movies := router.Group("movies")
	if c.auth != nil {
		movies.Use(c.auth)
	}
	movies.POST("", c.add)
}

type AddMovieRequestDTO struct {
	Title      string   `json:"title" binding:"required"`
	Year       int      `json:"year"`
	Rating     float64  `json:"rating"`
	Genres     []string `json:"genres"`
	Overview   string   `json:"overview"`
	PosterLink string   `json:"poster_link"`
}

type AddMovieResponseDTO struct {
	ID string `json:"id"`
}

func (c *Controller) add(ctx *gin.Context) {
	var req AddMovieRequestDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
			Message: "invalid request format",
		})
		return
	}

	mm := &model.MovieMeta{
		ID:         uuid.New(),
		Title:      req.Title,
		Year:       req.Year,
		Rating:     req.Rating,
		Genres:     req.Genres,
		Overview:   req.Overview,
		PosterLink: req.PosterLink,
	}
	if err := c.catalog.Add(ctx, mm); err != nil {
		c.logger.Error("catalog insert failed",
			slog.String("title", req.Title),
			slog.String("error", err.Error()))
		ctx.JSON(http.StatusInternalServerError, http_common.ErrorResponse{
			Message: "internal error",
		})
		return
	}

	ctx.JSON(http.StatusCreated, AddMovieResponseDTO{ID: mm.ID.String()})
}
