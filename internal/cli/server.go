package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/config"
	"assessment-service/internal/infra/memory"
	mongostore "assessment-service/internal/infra/mongo"
	"assessment-service/internal/infra/postgres"
	redisstore "assessment-service/internal/infra/redis"
	transport "assessment-service/internal/transport/http"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// stores holds the backends picked from config plus the cleanup for each.
type stores struct {
	quizStore app.QuizStore
	loader    memory.QuizLoader
	catalog   app.Catalog
	quizzes   app.QuizRepository
	progress  app.ProgressStore
	closers   []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	feed := app.NewProgressFeed()
	quizService := app.NewQuizService(st.quizStore, st.quizzes, st.catalog, cfg.Quiz.DefaultTimeLimit)
	submissions := app.NewSubmissionService(st.quizzes, st.catalog, st.progress, feed, log, cfg.Progress.MaxRetries)
	tracker := app.NewProgressService(st.catalog, st.progress, feed, log, cfg.Progress.MaxRetries)

	if _, ok := st.quizStore.(*memory.QuizStore); ok {
		if err := seedDemoQuizzes(ctx, quizService, log); err != nil {
			return err
		}
	}

	if level, _ := logrus.ParseLevel(cfg.Log.Level); level < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := transport.NewHandler(quizService, submissions, tracker, feed, log)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"port": finalPort, "progressBackend": cfg.Progress.Backend}).Info("starting assessment service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStores(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*stores, error) {
	st := &stores{}
	ok := false
	defer func() {
		if !ok {
			st.close()
		}
	}()

	var db *bun.DB
	if cfg.Postgres.URL != "" {
		var err error
		if db, err = openBun(cfg); err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func() { _ = db.Close() })
		if err := runMigrations(ctx, db, log); err != nil {
			return nil, err
		}

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		st.closers = append(st.closers, pool.Close)

		store := postgres.NewQuizStore(pool)
		st.quizStore, st.loader = store, store
		st.catalog = postgres.NewCatalog(db)
	} else {
		store := memory.NewQuizStore()
		st.quizStore, st.loader = store, store
		sections, subs := demoCourse()
		st.catalog = memory.NewCatalog(sections, subs, store)
		log.Warn("postgres not configured, serving the in-memory demo course")
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		st.closers = append(st.closers, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if redisClient != nil {
		st.quizzes = redisstore.NewQuizRepository(redisClient, st.loader, config.TTLDuration(cfg.Redis.TTL, quizTTL), log)
	} else {
		st.quizzes = memory.NewQuizRepository(st.loader, quizTTL)
	}

	switch cfg.Progress.Backend {
	case config.BackendRedis:
		st.progress = redisstore.NewProgressStore(redisClient)
	case config.BackendPostgres:
		st.progress = postgres.NewProgressStore(db)
	case config.BackendMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		st.closers = append(st.closers, func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		})
		progress := mongostore.NewProgressStore(client.Database(cfg.Mongo.Database))
		if err := progress.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		st.progress = progress
	default:
		st.progress = memory.NewProgressStore()
	}

	ok = true
	return st, nil
}
