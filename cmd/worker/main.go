// Package main - точка входа фоновых процессов (Worker) Arena Tournament Hub.
//
// Worker отвечает за периодические задачи:
// - Сброс истёкших предложений результата в PENDING
// - Полный Z-score пересчёт leaderboard-событий
// - Недельная свёртка нормализованных очков
// - Сверка журнала билетов с кешированными балансами
//
// Worker не обслуживает команды игроков: он держит рейтинги и журнал
// в согласованном состоянии между взаимодействиями.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	// Application layer
	"github.com/arena-hub/arena-tournament-hub/internal/application/query"

	// Infrastructure layer
	"github.com/arena-hub/arena-tournament-hub/internal/infrastructure/persistence/postgres"
	"github.com/arena-hub/arena-tournament-hub/internal/infrastructure/persistence/redis"
	"github.com/arena-hub/arena-tournament-hub/internal/infrastructure/scheduler"
	"github.com/arena-hub/arena-tournament-hub/internal/infrastructure/scheduler/jobs"

	// Domain layer
	"github.com/arena-hub/arena-tournament-hub/internal/domain/rating"

	// Packages
	"github.com/arena-hub/arena-tournament-hub/config"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Arena Tournament Hub Worker",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ (Worker также должен иметь актуальную схему)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisCache *redis.Cache
		lbCache    *redis.LeaderboardCache
		lock       *redis.RecomputeLock
	)

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, cross-instance coordination disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			lbCache = redis.NewLeaderboardCache(redisCache, cfg.Redis.LeaderboardTTL)
			lock = redis.NewRecomputeLock(redisCache, 0)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ И ДВИЖКОВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	playerRepo := postgres.NewPlayerRepository(dbConn)
	eventRepo := postgres.NewEventRepository(dbConn)
	matchRepo := postgres.NewMatchRepository(dbConn)
	statsRepo := postgres.NewStatsRepository(dbConn)
	historyRepo := postgres.NewHistoryRepository(dbConn)
	subRepo := postgres.NewSubmissionRepository(dbConn)
	ledgerRepo := postgres.NewLedgerRepository(dbConn)

	normalizer := rating.NewNormalizer(rating.NormalizerParams{
		BaseElo:     cfg.Scoring.BaseElo,
		EloPerSigma: cfg.Scoring.EloPerSigma,
	})

	verifier := query.NewVerifyLedgerHandler(ledgerRepo, playerRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:        log,
		Timezone:      cfg.App.Location,
		EnableMetrics: true,
	})

	if err := sched.Register(
		jobs.NewExpireProposalsJob(dbConn, matchRepo, log, jobs.DefaultExpireProposalsConfig()),
		scheduler.NewIntervalSchedule(cfg.Scheduler.ExpireProposalsInterval),
	); err != nil {
		return fmt.Errorf("failed to register expire_proposals: %w", err)
	}

	if err := sched.Register(
		jobs.NewRecomputeRatingsJob(
			dbConn, eventRepo, subRepo, statsRepo, historyRepo,
			normalizer, lbCache, lock, log,
			jobs.DefaultRecomputeRatingsConfig(),
		),
		scheduler.NewIntervalSchedule(cfg.Scheduler.RecomputeInterval),
	); err != nil {
		return fmt.Errorf("failed to register recompute_ratings: %w", err)
	}

	rollupExpr, err := scheduler.ParseCronExpression(fmt.Sprintf(
		"0 %d * * %d",
		cfg.Scheduler.WeeklyRollupHour,
		int(cfg.Scheduler.WeeklyRollupWeekday),
	))
	if err != nil {
		return fmt.Errorf("invalid weekly rollup schedule: %w", err)
	}
	if err := sched.Register(
		jobs.NewWeeklyRollupJob(
			dbConn, eventRepo, subRepo, statsRepo,
			normalizer, redisCache, log,
			jobs.DefaultWeeklyRollupConfig(),
		),
		rollupExpr,
	); err != nil {
		return fmt.Errorf("failed to register weekly_rollup: %w", err)
	}

	if err := sched.Register(
		jobs.NewLedgerAuditJob(verifier, log, jobs.DefaultLedgerAuditConfig()),
		scheduler.NewIntervalSchedule(cfg.Scheduler.LedgerAuditInterval),
	); err != nil {
		return fmt.Errorf("failed to register ledger_audit: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("Arena Tournament Hub Worker is running",
		"expire_interval", cfg.Scheduler.ExpireProposalsInterval.String(),
		"recompute_interval", cfg.Scheduler.RecomputeInterval.String(),
		"ledger_audit_interval", cfg.Scheduler.LedgerAuditInterval.String(),
		"weekly_rollup", rollupExpr.String(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	log.Info("stopping scheduler...", "timeout", cfg.App.ShutdownTimeout.String())
	if err := sched.Stop(); err != nil {
		log.Warn("scheduler stop failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Observability.LogLevel),
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

// parseLogLevel переводит строковый уровень в slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
