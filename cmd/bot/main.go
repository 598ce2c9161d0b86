// Package main - точка входа ядра Arena Tournament Hub.
//
// Процесс собирает рейтинговое ядро целиком: Elo-движок, конечный автомат
// матчей, Z-score нормализацию, агрегацию общего счёта, журнал билетов и
// сервисы запросов. Слой Discord-диспетчеризации подключается поверх этих
// обработчиков и не входит в данный процесс.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries)
// - Infrastructure: реализация репозиториев, кеши, планировщик
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	// Application layer
	"github.com/arena-hub/arena-tournament-hub/internal/application/command"
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
	log.Info("starting Arena Tournament Hub",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
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
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("running database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	status, err := migrator.Status(ctx)
	if err != nil {
		log.Warn("failed to get migration status", "error", err)
	} else {
		appliedCount := 0
		for _, m := range status {
			if m.IsApplied {
				appliedCount++
			}
		}
		log.Info("migrations completed", "applied", appliedCount, "total", len(status))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisCache  *redis.Cache
		lbCache     *redis.LeaderboardCache
		playerCache *redis.PlayerCache
	)

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		if cfg.Redis.PoolSize > 0 {
			redisCfg.PoolSize = cfg.Redis.PoolSize
		}

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			lbCache = redis.NewLeaderboardCache(redisCache, cfg.Redis.LeaderboardTTL)
			playerCache = redis.NewPlayerCache(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	playerRepo := postgres.NewPlayerRepository(dbConn)
	eventRepo := postgres.NewEventRepository(dbConn)
	matchRepo := postgres.NewMatchRepository(dbConn)
	statsRepo := postgres.NewStatsRepository(dbConn)
	historyRepo := postgres.NewHistoryRepository(dbConn)
	subRepo := postgres.NewSubmissionRepository(dbConn)
	ledgerRepo := postgres.NewLedgerRepository(dbConn)
	rankingRepo := postgres.NewRankingRepository(dbConn)
	feedRepo := postgres.NewFeedRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ РЕЙТИНГОВЫХ ДВИЖКОВ
	// ─────────────────────────────────────────────────────────────────────────
	calc, err := rating.NewCalculator(rating.CalculatorParams{
		Base:             cfg.Rating.Base,
		StandardK:        cfg.Rating.StandardK,
		ProvisionalK:     cfg.Rating.ProvisionalK,
		ProvisionalGames: cfg.Rating.ProvisionalGames,
		StartingElo:      cfg.Rating.StartingElo,
	})
	if err != nil {
		return fmt.Errorf("failed to build elo calculator: %w", err)
	}

	normalizer := rating.NewNormalizer(rating.NormalizerParams{
		BaseElo:     cfg.Scoring.BaseElo,
		EloPerSigma: cfg.Scoring.EloPerSigma,
	})

	agg, err := rating.NewAggregator(aggregatorParams(cfg))
	if err != nil {
		return fmt.Errorf("failed to build aggregator: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ИНИЦИАЛИЗАЦИЯ ОБРАБОТЧИКОВ (Commands/Queries)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing command and query handlers...")

	refresher := command.NewOverallRefresher(statsRepo, eventRepo, playerRepo, agg)
	finalizer := command.NewFinalizeMatchHandler(
		dbConn, matchRepo, statsRepo, historyRepo, ledgerRepo, playerRepo,
		refresher, calc, cfg.Features, lbCache, playerCache,
		cfg.Match.WinnerTickets, cfg.Match.ParticipationTickets,
	)

	handlers := struct {
		RegisterPlayer *command.RegisterPlayerHandler
		PlayerLife     *command.PlayerLifecycleHandler
		ImportEvents   *command.ImportEventsHandler
		OpenMatch      *command.OpenMatchHandler
		ProposeResult  *command.ProposeResultHandler
		ConfirmResult  *command.ConfirmResultHandler
		CancelMatch    *command.CancelMatchHandler
		SubmitScore    *command.SubmitScoreHandler
		GrantTickets   *command.GrantTicketsHandler

		Leaderboard  *query.GetLeaderboardHandler
		Profile      *query.GetProfileHandler
		History      *query.GetHistoryHandler
		Matches      *query.GetMatchHandler
		Ledger       *query.GetLedgerHandler
		VerifyLedger *query.VerifyLedgerHandler
	}{
		RegisterPlayer: command.NewRegisterPlayerHandler(playerRepo),
		PlayerLife:     command.NewPlayerLifecycleHandler(playerRepo, playerCache, lbCache),
		ImportEvents:   command.NewImportEventsHandler(eventRepo),
		OpenMatch:      command.NewOpenMatchHandler(dbConn, eventRepo, matchRepo, statsRepo, playerRepo, calc, cfg.Features),
		ProposeResult:  command.NewProposeResultHandler(dbConn, matchRepo),
		ConfirmResult:  command.NewConfirmResultHandler(dbConn, matchRepo, finalizer),
		CancelMatch:    command.NewCancelMatchHandler(dbConn, matchRepo),
		SubmitScore:    command.NewSubmitScoreHandler(dbConn, eventRepo, subRepo, statsRepo, historyRepo, normalizer, calc, lbCache, playerCache),
		GrantTickets:   command.NewGrantTicketsHandler(dbConn, ledgerRepo, refresher, playerCache, lbCache),

		Leaderboard:  query.NewGetLeaderboardHandler(rankingRepo, lbCache, cfg.Features),
		Profile:      query.NewGetProfileHandler(playerRepo, statsRepo, historyRepo, rankingRepo, eventRepo, agg, playerCache, cfg.Scoring.WeeklyBlend),
		History:      query.NewGetHistoryHandler(feedRepo),
		Matches:      query.NewGetMatchHandler(matchRepo),
		Ledger:       query.NewGetLedgerHandler(ledgerRepo, playerRepo),
		VerifyLedger: query.NewVerifyLedgerHandler(ledgerRepo, playerRepo),
	}

	// Точка подключения Discord-сессии: обработчики выше - весь контракт,
	// который нужен слою диспетчеризации.
	_ = handlers

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ПЛАНИРОВЩИК ФОНОВЫХ ЗАДАЧ
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		log.Info("starting scheduler...")
		sched = scheduler.NewScheduler(scheduler.SchedulerConfig{
			Logger:        log,
			Timezone:      cfg.App.Location,
			EnableMetrics: true,
		})

		if err := registerJobs(sched, cfg, log, jobDeps{
			conn:        dbConn,
			matchRepo:   matchRepo,
			eventRepo:   eventRepo,
			subRepo:     subRepo,
			statsRepo:   statsRepo,
			historyRepo: historyRepo,
			normalizer:  normalizer,
			verifier:    handlers.VerifyLedger,
			cache:       redisCache,
			lbCache:     lbCache,
		}); err != nil {
			return fmt.Errorf("failed to register jobs: %w", err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			if err := sched.Stop(); err != nil {
				log.Warn("scheduler stop failed", "error", err)
			}
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("Arena Tournament Hub is running",
		"scheduler", cfg.Scheduler.Enabled,
		"redis", redisCache != nil,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// jobDeps группирует зависимости фоновых задач для регистрации.
type jobDeps struct {
	conn        *postgres.Connection
	matchRepo   *postgres.MatchRepository
	eventRepo   *postgres.EventRepository
	subRepo     *postgres.SubmissionRepository
	statsRepo   *postgres.StatsRepository
	historyRepo *postgres.HistoryRepository
	normalizer  *rating.Normalizer
	verifier    *query.VerifyLedgerHandler
	cache       *redis.Cache
	lbCache     *redis.LeaderboardCache
}

// registerJobs регистрирует фоновые задачи по расписаниям из конфигурации.
func registerJobs(sched *scheduler.Scheduler, cfg *config.Config, log *slog.Logger, deps jobDeps) error {
	expireCfg := jobs.DefaultExpireProposalsConfig()
	if err := sched.Register(
		jobs.NewExpireProposalsJob(deps.conn, deps.matchRepo, log, expireCfg),
		scheduler.NewIntervalSchedule(cfg.Scheduler.ExpireProposalsInterval),
	); err != nil {
		return err
	}

	var lock *redis.RecomputeLock
	if deps.cache != nil {
		lock = redis.NewRecomputeLock(deps.cache, 0)
	}
	if err := sched.Register(
		jobs.NewRecomputeRatingsJob(
			deps.conn, deps.eventRepo, deps.subRepo, deps.statsRepo,
			deps.historyRepo, deps.normalizer, deps.lbCache, lock, log,
			jobs.DefaultRecomputeRatingsConfig(),
		),
		scheduler.NewIntervalSchedule(cfg.Scheduler.RecomputeInterval),
	); err != nil {
		return err
	}

	// Недельная свёртка: закрываем прошлую неделю раз в неделю по cron.
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
			deps.conn, deps.eventRepo, deps.subRepo, deps.statsRepo,
			deps.normalizer, deps.cache, log,
			jobs.DefaultWeeklyRollupConfig(),
		),
		rollupExpr,
	); err != nil {
		return err
	}

	return sched.Register(
		jobs.NewLedgerAuditJob(deps.verifier, log, jobs.DefaultLedgerAuditConfig()),
		scheduler.NewIntervalSchedule(cfg.Scheduler.LedgerAuditInterval),
	)
}

// aggregatorParams переводит конфигурацию уровней в параметры агрегатора.
func aggregatorParams(cfg *config.Config) rating.AggregatorParams {
	params := rating.DefaultAggregatorParams()
	if len(cfg.Aggregation.TierSizes) == len(cfg.Aggregation.TierWeights) && len(cfg.Aggregation.TierSizes) > 0 {
		tiers := make([]rating.Tier, len(cfg.Aggregation.TierSizes))
		for i := range cfg.Aggregation.TierSizes {
			tiers[i] = rating.Tier{
				Size:   cfg.Aggregation.TierSizes[i],
				Weight: cfg.Aggregation.TierWeights[i],
			}
		}
		params.Tiers = tiers
	}
	return params
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Observability.LogLevel),
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		// JSON формат по умолчанию (лучше для агрегаторов логов)
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
