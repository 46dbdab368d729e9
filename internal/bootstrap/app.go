package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"sorot-backend/internal/analyses"
	"sorot-backend/internal/briefing"
	"sorot-backend/internal/media"
	"sorot-backend/internal/queue"
	"sorot-backend/internal/shared/config"
	"sorot-backend/internal/shared/server"
	"sorot-backend/internal/shared/storage/db"
	"sorot-backend/internal/shared/storage/object"
	localstore "sorot-backend/internal/shared/storage/object/local"
	s3store "sorot-backend/internal/shared/storage/object/s3"
	"sorot-backend/internal/synthesis"
	"sorot-backend/internal/transcribe"
	"sorot-backend/internal/visual"
)

// App holds shared dependencies for the API server and the queue worker.
type App struct {
	Config  config.Config
	Router  *gin.Engine
	DB      *sql.DB
	Store   object.ObjectStore
	Queue   queue.Client
	Tracker analyses.Tracker

	AnalysesService *analyses.Service
	AnalysisHandler *analyses.Handler
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
	}

	if err := buildServices(ctx, app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(app.Config, app.AnalysisHandler)
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Printf("bootstrap: DATABASE_URL empty; progress is tracked in memory")
		return nil, nil
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; progress is tracked in memory: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context) (queue.Client, error) {
	if strings.TrimSpace(os.Getenv("SQS_QUEUE_URL")) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

func buildServices(ctx context.Context, app *App) error {
	cfg := app.Config

	var tracker analyses.Tracker
	if app.DB != nil {
		tracker = &analyses.PGTracker{DB: app.DB}
	} else {
		tracker = analyses.NewMemoryTracker()
	}

	svc := &analyses.Service{
		Tracker:        tracker,
		Downloader:     &media.YtDlp{BinaryPath: cfg.YtDlpPath},
		Queue:          app.Queue,
		UseRealAPIs:    cfg.UseRealAPIs,
		VisualFirst:    cfg.VisualFirst,
		StrictBriefing: cfg.StrictBriefing,
		WordThreshold:  cfg.WordThreshold,
		Voice:          cfg.PollyVoice,
	}

	if cfg.UseRealAPIs {
		transcriber, err := transcribe.NewAWS(ctx, cfg.AWSRegion, cfg.S3Bucket)
		if err != nil {
			return fmt.Errorf("build transcriber: %w", err)
		}
		analyzer, err := visual.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiRPM)
		if err != nil {
			return fmt.Errorf("build visual analyzer: %w", err)
		}
		primary, err := synthesis.NewDeepSeek(ctx, cfg.AWSRegion, cfg.BedrockModelID)
		if err != nil {
			return fmt.Errorf("build primary provider: %w", err)
		}
		fallback, err := synthesis.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiRPM)
		if err != nil {
			return fmt.Errorf("build fallback provider: %w", err)
		}
		brief, err := briefing.NewPolly(ctx, cfg.AWSRegion, cfg.PollyVoice, cfg.BriefingDelivery, app.Store)
		if err != nil {
			return fmt.Errorf("build briefing generator: %w", err)
		}
		svc.Transcriber = transcriber
		svc.Visual = analyzer
		svc.Primary = primary
		svc.Fallback = fallback
		svc.Briefing = brief
	} else {
		svc.Transcriber = &transcribe.Static{}
		svc.Visual = &visual.Static{Result: visual.MockAnalysis()}
		svc.Primary = &synthesis.Static{Result: synthesis.MockVerdict()}
		svc.Fallback = &synthesis.Static{Result: synthesis.MockVerdict()}
		svc.Briefing = &briefing.Static{}
	}

	app.Tracker = tracker
	app.AnalysesService = svc
	app.AnalysisHandler = analyses.NewHandler(svc)
	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
