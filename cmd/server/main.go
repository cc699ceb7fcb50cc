package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	githubplatform "github.com/complyops/autopilot/internal/platform/github"
	gitlabplatform "github.com/complyops/autopilot/internal/platform/gitlab"
	"github.com/complyops/autopilot/internal/platform/logger"
	"github.com/complyops/autopilot/internal/platform/mockremote"
	pgplatform "github.com/complyops/autopilot/internal/platform/postgres"
	"github.com/complyops/autopilot/internal/platform/telemetry"
	"github.com/complyops/autopilot/internal/platform/validation"
	"github.com/complyops/autopilot/internal/scan"
	"github.com/complyops/autopilot/internal/scan/handler"
	"github.com/complyops/autopilot/internal/scan/store"
	"github.com/complyops/autopilot/internal/scan/store/pgmigrations"
	"github.com/complyops/autopilot/schemas"
)

func main() {
	slog := logger.New()

	// --- Observability ---

	// Default the service name before any OTel init.
	if os.Getenv("OTEL_SERVICE_NAME") == "" {
		os.Setenv("OTEL_SERVICE_NAME", "autopilot-server") //nolint:errcheck
	}

	otelEnabled := os.Getenv("OTEL_ENABLED") == "true"
	ctx := context.Background()
	tel, err := telemetry.New(ctx, otelEnabled)
	if err != nil {
		slog.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown failed", "error", err)
		}
	}()

	// --- Platform: scan store ---

	scanStore, err := newStore(ctx)
	if err != nil {
		slog.Error("scan store init failed", "error", err)
		os.Exit(1) //nolint:gocritic // telemetry shutdown is best-effort at startup
	}

	// --- Platform: repository remote ---

	opener, err := newOpener()
	if err != nil {
		slog.Error("remote platform init failed", "error", err)
		os.Exit(1)
	}

	// --- Service + HTTP ---

	svc := &scan.Service{
		Opener: opener,
		Demo:   mockremote.Opener{},
		Store:  scanStore,
		Log:    slog,
	}

	router := gin.New()

	validator, err := validation.New(schemas.OpenAPISpec)
	if err != nil {
		slog.Error("openapi validation middleware init failed", "error", err)
		os.Exit(1)
	}

	router.Use(gin.Recovery(), otelgin.Middleware("autopilot-server"), validator)
	handler.RegisterRoutes(router, svc, slog)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	slog.Info("starting autopilot", "port", port, "store", storeKind(), "platform", platformKind())
	if err := router.Run(":" + port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func storeKind() string {
	kind := os.Getenv("SCAN_STORE")
	if kind == "" {
		kind = "memory"
	}
	return kind
}

// newStore selects the scan store backend from SCAN_STORE: memory (default),
// redis, or postgres.
func newStore(ctx context.Context) (scan.Store, error) {
	switch kind := storeKind(); kind {
	case "memory":
		return store.NewMemoryStore(), nil
	case "redis":
		addr := os.Getenv("REDIS_ADDR")
		if addr == "" {
			addr = "localhost:6379"
		}
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		return store.NewRedisStore(rdb), nil
	case "postgres":
		pool, err := pgplatform.New(ctx, os.Getenv("POSTGRES_URL"), pgmigrations.FS)
		if err != nil {
			return nil, err
		}
		return store.NewPGStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown SCAN_STORE %q", kind)
	}
}

func platformKind() string {
	kind := os.Getenv("PLATFORM")
	if kind == "" {
		kind = "gitlab"
	}
	return kind
}

// newOpener selects the repository platform from PLATFORM: gitlab (default)
// or github. GitHub supports token and App installation auth.
func newOpener() (scan.RemoteOpener, error) {
	switch kind := platformKind(); kind {
	case "gitlab":
		baseURL := os.Getenv("GITLAB_URL")
		if baseURL == "" {
			baseURL = "https://gitlab.com"
		}
		return gitlabplatform.NewHub(baseURL, os.Getenv("GITLAB_TOKEN")), nil
	case "github":
		baseURL := os.Getenv("GITHUB_BASE_URL")
		if appID := os.Getenv("GITHUB_APP_ID"); appID != "" {
			id, err := strconv.ParseInt(appID, 10, 64)
			if err != nil {
				return nil, err
			}
			installationID, err := strconv.ParseInt(os.Getenv("GITHUB_INSTALLATION_ID"), 10, 64)
			if err != nil {
				return nil, err
			}
			return githubplatform.NewAppHub(id, installationID, os.Getenv("GITHUB_PRIVATE_KEY_PATH"), baseURL)
		}
		return githubplatform.NewTokenHub(os.Getenv("GITHUB_TOKEN"), baseURL), nil
	case "mock":
		return mockremote.Opener{}, nil
	default:
		return nil, fmt.Errorf("unknown PLATFORM %q", kind)
	}
}
