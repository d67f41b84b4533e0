package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/riverojonathas/FDE-sub000/internal/corrections"
	"github.com/riverojonathas/FDE-sub000/internal/extract"
	"github.com/riverojonathas/FDE-sub000/internal/llm"
	openai "github.com/riverojonathas/FDE-sub000/internal/llm/openai"
	"github.com/riverojonathas/FDE-sub000/internal/services/health"
	"github.com/riverojonathas/FDE-sub000/internal/shared/config"
	"github.com/riverojonathas/FDE-sub000/internal/shared/server"
	"github.com/riverojonathas/FDE-sub000/internal/shared/storage/db"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB

	Repo      corrections.Repo
	History   corrections.HistoryRepo
	Templates corrections.TemplateRepo

	CorrectionsService *corrections.Service
	CorrectionsHandler *corrections.Handler
	HealthService      *health.Service
}

// Build prepares shared dependencies and wires routes.
func Build(cfg config.Config) (*App, error) {
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
	}

	if sqlDB != nil {
		app.Repo = &corrections.PGRepo{DB: sqlDB}
		app.History = &corrections.PGHistoryRepo{DB: sqlDB}
		app.Templates = &corrections.PGTemplateRepo{DB: sqlDB}
	} else {
		app.Repo = corrections.NewMemoryRepo()
		app.History = corrections.NewMemoryHistoryRepo()
		app.Templates = corrections.NewMemoryTemplateRepo()
	}

	llmClient, err := buildLLM(cfg)
	if err != nil {
		return nil, err
	}

	app.CorrectionsService = &corrections.Service{
		Repo:              app.Repo,
		History:           app.History,
		Templates:         app.Templates,
		LLM:               llmClient,
		AnalysisVersion:   cfg.AnalysisVersion,
		TimeBudget:        cfg.AgentTimeBudget,
		IncludeSubthemes:  cfg.IncludeSubthemes,
		IncludePlagiarism: cfg.IncludePlagiarism,
	}
	app.CorrectionsHandler = corrections.NewHandler(app.CorrectionsService)
	app.CorrectionsHandler.Extract = extract.Text
	app.HealthService = health.NewService(sqlDB)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:             cfg,
		CorrectionsHandler: app.CorrectionsHandler,
		HealthService:      app.HealthService,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: migrations failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildLLM(cfg config.Config) (llm.Client, error) {
	if cfg.LLMProvider == "openai" {
		if apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); apiKey != "" {
			return openai.NewClient(apiKey, cfg.LLMModel)
		}
		log.Printf("bootstrap: OPENAI_API_KEY empty; using placeholder LLM client")
	}
	return llm.PlaceholderClient{}, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
