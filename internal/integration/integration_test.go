package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	mongostore "assessment-service/internal/infra/mongo"
	"assessment-service/internal/infra/postgres"
	pgmigrations "assessment-service/internal/infra/postgres/migrations"
	infraredis "assessment-service/internal/infra/redis"
	"assessment-service/internal/scoring"
	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const courseID = "course-it"

// env wires the Postgres-backed quiz store and catalog with a Redis quiz cache.
// Every resource is released through t.Cleanup.
type env struct {
	db      *bun.DB
	catalog *postgres.Catalog
	quizzes *app.QuizService
	cache   app.QuizRepository
	log     *logrus.Logger
}

func setup(t *testing.T, ctx context.Context) *env {
	t.Helper()
	requireDocker(t)

	e := &env{log: logrus.New()}
	e.log.SetOutput(io.Discard)

	pgURL := startPostgres(t, ctx)
	redisURL := startRedis(t, ctx)

	e.db = migrateDB(t, ctx, pgURL)
	t.Cleanup(func() { _ = e.db.Close() })

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	e.catalog = postgres.NewCatalog(e.db)
	seedCatalog(t, ctx, e.catalog)

	store := postgres.NewQuizStore(pool)
	e.cache = infraredis.NewQuizRepository(redisClient, store, 5*time.Minute, e.log)
	e.quizzes = app.NewQuizService(store, e.cache, e.catalog, 1800)
	return e
}

func TestQuizAuthoringAndCatalog(t *testing.T) {
	ctx := context.Background()
	e := setup(t, ctx)

	quiz := createQuiz(t, ctx, e.quizzes, "it-a")
	if _, err := e.quizzes.CreateQuiz(ctx, app.QuizDraft{SubSectionID: "it-a", Questions: quiz.Questions}); !errors.Is(err, domain.ErrQuizExists) {
		t.Fatalf("expected ErrQuizExists, got %v", err)
	}

	// Warm the Redis cache, then replace the questions.
	if _, err := e.quizzes.GetQuiz(ctx, quiz.ID); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	replacement := []domain.Question{domain.NewQuestion("only", "Just one", domain.FreeTextBody{Long: true})}
	if _, err := e.quizzes.UpdateQuiz(ctx, quiz.ID, app.QuizDraft{Questions: replacement}); err != nil {
		t.Fatalf("update quiz: %v", err)
	}
	got, err := e.quizzes.GetQuiz(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(got.Questions) != 1 || got.Questions[0].Type() != domain.LongAnswer {
		t.Fatalf("expected replaced questions, got %+v", got.Questions)
	}

	subs, err := e.catalog.ListSectionSubSections(ctx, "it-s1")
	if err != nil {
		t.Fatalf("list subsections: %v", err)
	}
	if len(subs) != 3 || subs[0].ID != "it-intro" || subs[1].QuizID != quiz.ID || subs[2].HasQuiz() {
		t.Fatalf("unexpected ordered subsections %+v", subs)
	}
	if _, err := e.catalog.GetSubSection(ctx, "missing"); !errors.Is(err, domain.ErrSubSectionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPostgresProgressConcurrentSubmissions(t *testing.T) {
	ctx := context.Background()
	e := setup(t, ctx)

	progress := postgres.NewProgressStore(e.db)
	runConcurrentSubmissions(t, ctx, e, progress)
	checkPairsIsolated(t, ctx, progress)
}

func TestMongoProgressConcurrentSubmissions(t *testing.T) {
	ctx := context.Background()
	e := setup(t, ctx)

	mongoURI := startMongo(t, ctx)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		t.Fatalf("connect mongo: %v", err)
	}
	defer client.Disconnect(ctx)

	store := mongostore.NewProgressStore(client.Database("assessment_it"))
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("indexes: %v", err)
	}
	runConcurrentSubmissions(t, ctx, e, store)
	checkPairsIsolated(t, ctx, store)
}

// runConcurrentSubmissions fires failing attempts from several "tabs" and
// then a passing one; exactly one result must exist and count every accepted attempt.
func runConcurrentSubmissions(t *testing.T, ctx context.Context, e *env, progress app.ProgressStore) {
	t.Helper()
	quiz := createQuiz(t, ctx, e.quizzes, "it-a")
	submissions := app.NewSubmissionService(e.cache, e.catalog, progress, nil, e.log, 20)
	tracker := app.NewProgressService(e.catalog, progress, nil, e.log, 20)
	learner := domain.Learner{UserID: "u1", Now: time.Now()}

	const tabs = 8
	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
	)
	for i := 0; i < tabs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := submissions.Submit(ctx, learner, app.Submission{
				QuizID:       quiz.ID,
				CourseID:     courseID,
				Answers:      scoring.Answers{"q-short": "x"},
				TimerExpired: true,
			})
			if err == nil {
				accepted.Add(1)
			} else if !errors.Is(err, domain.ErrConflict) {
				t.Errorf("submit: %v", err)
			}
		}()
	}
	wg.Wait()

	p, err := progress.Get(ctx, "u1", courseID)
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if len(p.QuizResults) != 1 || p.QuizResults[0].Attempts != int(accepted.Load()) {
		t.Fatalf("expected one result with %d attempts, got %+v", accepted.Load(), p.QuizResults)
	}

	res, err := submissions.Submit(ctx, learner, app.Submission{
		QuizID:   quiz.ID,
		CourseID: courseID,
		Answers:  scoring.Answers{"q-single": float64(1), "q-short": "x"},
	})
	if err != nil || !res.Grade.Passed {
		t.Fatalf("expected pass, got %+v err=%v", res, err)
	}
	if _, err := submissions.Submit(ctx, learner, app.Submission{QuizID: quiz.ID, CourseID: courseID}); !errors.Is(err, domain.ErrAlreadyPassed) {
		t.Fatalf("expected ErrAlreadyPassed, got %v", err)
	}

	decision, err := tracker.CheckAccess(ctx, learner, "it-b")
	if err != nil || !decision.CanAccess {
		t.Fatalf("expected it-b open after passing it-a, got %+v err=%v", decision, err)
	}
}

// checkPairsIsolated records a pass for ("alice:x", "c") and expects
// ("alice", "x:c") to start from an empty record.
func checkPairsIsolated(t *testing.T, ctx context.Context, progress app.ProgressStore) {
	t.Helper()
	_, err := progress.Update(ctx, "alice:x", "c", func(p *domain.CourseProgress) error {
		_, err := p.RecordAttempt(domain.Attempt{QuizID: "quiz-a", SubSectionID: "A", Score: 1, TotalMarks: 1, Percentage: 100, Passed: true, At: time.Now()})
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := progress.Get(ctx, "alice", "x:c"); !errors.Is(err, domain.ErrProgressNotFound) {
		t.Fatalf("expected no progress for (alice, x:c), got %v", err)
	}
	p, err := progress.Update(ctx, "alice", "x:c", func(p *domain.CourseProgress) error {
		p.CompleteLecture("intro", time.Now())
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.UserID != "alice" || p.HasPassed("A") {
		t.Fatalf("expected a separate record, got %+v", p)
	}
}

func createQuiz(t *testing.T, ctx context.Context, quizzes *app.QuizService, subSectionID string) domain.Quiz {
	t.Helper()
	single := domain.NewQuestion("q-single", "2 + 2?", domain.SingleAnswerBody{Options: []string{"3", "4"}, CorrectAnswer: 1})
	single.Marks = 5
	short := domain.NewQuestion("q-short", "Explain", domain.FreeTextBody{})
	short.Marks = 5
	quiz, err := quizzes.CreateQuiz(ctx, app.QuizDraft{SubSectionID: subSectionID, Questions: []domain.Question{single, short}})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	return quiz
}

func seedCatalog(t *testing.T, ctx context.Context, catalog *postgres.Catalog) {
	t.Helper()
	err := catalog.SeedSection(ctx, domain.Section{ID: "it-s1", CourseID: courseID, Title: "Intro", Position: 1}, []domain.SubSection{
		{ID: "it-intro", Title: "Welcome", Position: 1, HasVideo: true},
		{ID: "it-a", Title: "Check A", Position: 2},
		{ID: "it-b", Title: "Check B", Position: 3},
	})
	if err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "assess", "POSTGRES_PASSWORD": "assesspass", "POSTGRES_DB": "assessdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	host, port := startContainer(t, ctx, req, "5432/tcp")
	return fmt.Sprintf("postgres://assess:assesspass@%s:%s/assessdb?sslmode=disable", host, port)
}

func startRedis(t *testing.T, ctx context.Context) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	host, port := startContainer(t, ctx, req, "6379/tcp")
	return fmt.Sprintf("redis://%s:%s", host, port)
}

func startMongo(t *testing.T, ctx context.Context) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
	}
	host, port := startContainer(t, ctx, req, "27017/tcp")
	return fmt.Sprintf("mongodb://%s:%s", host, port)
}

func startContainer(t *testing.T, ctx context.Context, req tc.ContainerRequest, exposed string) (string, string) {
	t.Helper()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start %s: %v", req.Image, err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("%s host: %v", req.Image, err)
	}
	port, err := container.MappedPort(ctx, nat.Port(exposed))
	if err != nil {
		t.Fatalf("%s port: %v", req.Image, err)
	}
	return host, port.Port()
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
