package http_group

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	http_auth_middleware "github.com/cinematch/core/internal/delivery/http/middleware/auth"
	"github.com/cinematch/core/internal/model"
	usecase_group "github.com/cinematch/core/internal/usecase/group"
)

type stubGroups struct {
	created []string
	joined  map[model.GroupID][]uuid.UUID
	known   map[model.GroupID]bool
}

func newStubGroups() *stubGroups {
	return &stubGroups{
		joined: make(map[model.GroupID][]uuid.UUID),
		known:  make(map[model.GroupID]bool),
	}
}

func (s *stubGroups) Create(_ context.Context, name string, creator uuid.UUID) (model.Group, error) {
	if name == "" {
		return model.Group{}, usecase_group.ErrEmptyName
	}
	s.created = append(s.created, name)
	group := model.Group{
		ID:      model.GroupID(uuid.NewString()),
		Name:    name,
		Members: []uuid.UUID{creator},
	}
	s.known[group.ID] = true
	return group, nil
}

func (s *stubGroups) AddMember(_ context.Context, groupID model.GroupID, userID uuid.UUID) error {
	if !s.known[groupID] {
		return usecase_group.ErrGroupNotFound
	}
	s.joined[groupID] = append(s.joined[groupID], userID)
	return nil
}

func headerAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID, err := uuid.Parse(ctx.GetHeader("X-Test-User"))
		if err != nil {
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		ctx.Set(http_auth_middleware.ContextUserID, userID)
		ctx.Next()
	}
}

func newEngine(groups GroupUsecase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	New(groups, headerAuth()).RegisterRoutes(engine.Group("/api/v1"))
	return engine
}

func do(engine *gin.Engine, userID uuid.UUID, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/v1"+path, strings.NewReader(body))
	req.Header.Set("X-Test-User", userID.String())
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestCreateGroup(t *testing.T) {
	t.Run("created with the caller as first member", func(t *testing.T) {
		groups := newStubGroups()
		engine := newEngine(groups)
		creator := uuid.New()

		rec := do(engine, creator, http.MethodPost, "/groups", `{"name":"movie night"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp GroupResponseDTO
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.ID)
		assert.Equal(t, "movie night", resp.Name)
		assert.Equal(t, []string{creator.String()}, resp.Members)
		assert.Equal(t, []string{"movie night"}, groups.created)
	})

	t.Run("missing name", func(t *testing.T) {
		engine := newEngine(newStubGroups())

		rec := do(engine, uuid.New(), http.MethodPost, "/groups", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestJoinGroup(t *testing.T) {
	t.Run("authenticated user joins", func(t *testing.T) {
		groups := newStubGroups()
		engine := newEngine(groups)

		rec := do(engine, uuid.New(), http.MethodPost, "/groups", `{"name":"movie night"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		var created GroupResponseDTO
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

		joiner := uuid.New()
		rec = do(engine, joiner, http.MethodPost, "/groups/"+created.ID+"/members", "")
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, []uuid.UUID{joiner}, groups.joined[model.GroupID(created.ID)])
	})

	t.Run("unknown group", func(t *testing.T) {
		engine := newEngine(newStubGroups())

		rec := do(engine, uuid.New(), http.MethodPost, "/groups/nope/members", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
