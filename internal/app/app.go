package app

import (
	"time"

	"github.com/cinematch/core/internal/config"
	http_group "github.com/cinematch/core/internal/delivery/http/group"
	http_init "github.com/cinematch/core/internal/delivery/http/init"
	http_match "github.com/cinematch/core/internal/delivery/http/match"
	http_movie "github.com/cinematch/core/internal/delivery/http/movie"
	http_auth_middleware "github.com/cinematch/core/internal/delivery/http/middleware/auth"
	ws_events "github.com/cinematch/core/internal/delivery/ws/events"
	infra_pg_init "github.com/cinematch/core/internal/infra/postgres/init"
	infra_postgres_group "github.com/cinematch/core/internal/infra/postgres/group"
	infra_postgres_movie "github.com/cinematch/core/internal/infra/postgres/movie"
	infra_postgres_session "github.com/cinematch/core/internal/infra/postgres/session"
	infra_redis_init "github.com/cinematch/core/internal/infra/redis/init"
	infra_membership_cache "github.com/cinematch/core/internal/infra/redis/membership"
	usecase_group "github.com/cinematch/core/internal/usecase/group"
	usecase_session "github.com/cinematch/core/internal/usecase/session"
	usecase_vote "github.com/cinematch/core/internal/usecase/vote"
)

func Go(cfg *config.Config) {
	redisConn := infra_redis_init.MustEstablishConn(cfg.Redis)
	pgConn := infra_pg_init.MustEstablishConn(cfg.Postgres)
	infra_pg_init.MustEnsureSchema(pgConn)

	groupRepository := infra_postgres_group.New(pgConn)
	membership := infra_membership_cache.New(redisConn, groupRepository, "membership", 5*time.Minute)
	movieRepository := infra_postgres_movie.New(pgConn)
	sessionRepository := infra_postgres_session.New(pgConn)

	sessionUC := usecase_session.New(sessionRepository, movieRepository, membership, 20 /* candidate queue size */)

	hub := ws_events.NewHub()
	go hub.Run()

	voteUC := usecase_vote.New(sessionRepository, membership, hub)
	groupUC := usecase_group.New(groupRepository, membership, membership, hub)

	authMiddleware := http_auth_middleware.New(cfg.Auth.JWTSecret)

	controllerPool := http_init.NewControllerPool()
	controllerPool.Add(http_match.New(sessionUC, voteUC, authMiddleware.Handler()))
	controllerPool.Add(http_group.New(groupUC, authMiddleware.Handler()))
	controllerPool.Add(http_movie.New(movieRepository, authMiddleware.Handler()))
	controllerPool.Add(ws_events.NewController(hub, authMiddleware))

	controllerPool.Register()
	controllerPool.RunAll(cfg.HTTP.Port)
}
