// Command server runs the check-in service HTTP API and its scheduled jobs.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/fx"

	"github.com/eventhub/checkin-service/internal/api"
	checkinapi "github.com/eventhub/checkin-service/internal/api/checkin"
	"github.com/eventhub/checkin-service/internal/api/dashboard"
	"github.com/eventhub/checkin-service/internal/cache"
	"github.com/eventhub/checkin-service/internal/config"
	"github.com/eventhub/checkin-service/internal/mattermost"
	"github.com/eventhub/checkin-service/internal/repository"
	"github.com/eventhub/checkin-service/internal/service/badges"
	"github.com/eventhub/checkin-service/internal/service/checkin"
	"github.com/eventhub/checkin-service/internal/service/fraud"
	"github.com/eventhub/checkin-service/internal/service/geo"
	"github.com/eventhub/checkin-service/internal/service/leaderboard"
	"github.com/eventhub/checkin-service/internal/service/scheduler"
	"github.com/eventhub/checkin-service/internal/service/streak"
	"github.com/eventhub/checkin-service/pkg/logger"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to the YAML config file")
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before the config")
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		fx.NopLogger,
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideDB,
			provideCache,
			provideLocker,
			repository.NewUserRepository,
			repository.NewCheckInRepository,
			repository.NewStreakRepository,
			repository.NewBadgeRepository,
			provideMattermost,
			provideBadgeService,
			provideLeaderboard,
			provideCheckInService,
			provideScheduler,
			checkinapi.NewHandler,
			dashboard.NewHandler,
			provideRouter,
		),
		fx.Invoke(registerScheduler, startServer),
	)

	app.Run()
}

func provideLogger(cfg *config.Config) *logger.Logger {
	logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	return logger.Get()
}

func provideDB(lc fx.Lifecycle, cfg *config.Config, log *logger.Logger) (*repository.DB, error) {
	db, err := repository.NewDB(&cfg.Database.Postgres, log)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Postgres.AutoMigrate {
		if err := db.Migrate(log); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	})
	return db, nil
}

func provideCache(lc fx.Lifecycle, cfg *config.Config, log *logger.Logger) (cache.Cache, error) {
	c, err := cache.NewRedisCache(&cfg.Database.Redis, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return c.Close()
		},
	})
	return c, nil
}

func provideLocker(cfg *config.Config, c cache.Cache) *cache.Locker {
	return cache.NewLocker(c, cfg.CheckIn.LockTTL, cfg.CheckIn.LockWait)
}

func provideMattermost(cfg *config.Config, log *logger.Logger) *mattermost.Client {
	return mattermost.NewClient(&cfg.Mattermost, log.Component("mattermost"))
}

func provideBadgeService(cfg *config.Config, repo *repository.BadgeRepository, log *logger.Logger) (*badges.Service, error) {
	catalog, err := badges.BuildCatalog(cfg.Badges)
	if err != nil {
		return nil, fmt.Errorf("invalid badge catalog: %w", err)
	}
	return badges.NewService(repo, catalog, log.Component("badges")), nil
}

func provideLeaderboard(
	cfg *config.Config,
	streaks *repository.StreakRepository,
	badgeRepo *repository.BadgeRepository,
	users *repository.UserRepository,
	c cache.Cache,
	log *logger.Logger,
) *leaderboard.Service {
	return leaderboard.NewService(streaks, badgeRepo, users, c, cfg.Leaderboard.Limit, cfg.Leaderboard.CacheTTL, log.Component("leaderboard"))
}

func provideCheckInService(
	lc fx.Lifecycle,
	cfg *config.Config,
	db *repository.DB,
	locker *cache.Locker,
	badgeService *badges.Service,
	mm *mattermost.Client,
	ranking *leaderboard.Service,
	log *logger.Logger,
) (*checkin.Service, error) {
	loc, err := cfg.CheckIn.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid check-in timezone: %w", err)
	}

	svc := checkin.NewService(
		db,
		locker,
		geo.NewVerifier(cfg.CheckIn.GPSRadiusMeters),
		fraud.NewScorer(fraud.RulesFromConfig(cfg.Fraud)),
		streak.NewTracker(cfg.CheckIn.PointsPerCheckIn),
		badgeService,
		mm,
		ranking,
		loc,
		cfg.CheckIn.MaxDeviceInfo,
		log.Component("checkin"),
	)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			svc.Close()
			return nil
		},
	})
	return svc, nil
}

func provideScheduler(
	cfg *config.Config,
	checkIns *repository.CheckInRepository,
	ranking *leaderboard.Service,
	badgeService *badges.Service,
	mm *mattermost.Client,
	log *logger.Logger,
) *scheduler.Service {
	return scheduler.NewService(cfg, checkIns, ranking, badgeService, mm, log.Component("scheduler"))
}

func provideRouter(
	cfg *config.Config,
	checkInHandler *checkinapi.Handler,
	dashboardHandler *dashboard.Handler,
	db *repository.DB,
	c cache.Cache,
	log *logger.Logger,
) *gin.Engine {
	checks := map[string]api.HealthCheck{
		"database": func(ctx context.Context) error { return db.Health() },
		"redis":    c.Health,
	}
	return api.NewRouter(cfg, checkInHandler, dashboardHandler, checks, log)
}

func registerScheduler(lc fx.Lifecycle, s *scheduler.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			s.Stop()
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, cfg *config.Config, engine *gin.Engine, log *logger.Logger) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info().Str("addr", srv.Addr).Msg("Starting HTTP server")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal().Err(err).Msg("HTTP server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
