package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"marginalia/internal/auth"
	"marginalia/internal/config"
	repo "marginalia/internal/domain/repositories/annotation"
	"marginalia/internal/handler"
	"marginalia/internal/middleware"
	"marginalia/internal/palette"
	"marginalia/internal/repository/memory"
	"marginalia/internal/repository/postgres"
	postgresAnnotation "marginalia/internal/repository/postgres/annotation"
	"marginalia/internal/repository/sqlite"
	serviceAnnotation "marginalia/internal/service/annotation"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logger, closeLog, err := config.NewLogger(cfg, "server")
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()
	slog.SetDefault(logger) // Set as default logger

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"storage", cfg.Storage,
		"table_prefix", cfg.TablePrefix,
	)

	// Create JWT verifier for Supabase authentication
	jwtVerifier, err := newVerifier(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	// Snapshot storage
	ctx := context.Background()
	snapshots, closeStore, err := openSnapshots(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open %s storage: %v", cfg.Storage, err)
	}
	defer closeStore()

	// Color palette
	registry, err := palette.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load palette: %v", err)
	}
	logger.Info("palette loaded", "colors", len(registry.Names()))

	// Per-reader annotation sessions
	sessions := serviceAnnotation.NewSessions(snapshots, registry, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux,
		handler.NewAnnotationHandler(sessions, logger),
		handler.NewPageHandler(sessions, logger),
		handler.NewPaletteHandler(registry),
	)

	// Build middleware chain
	var h http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Auth → Routes
	h = middleware.AuthMiddleware(jwtVerifier, logger, "/health", "/api/palette")(h)
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// newVerifier prefers the Supabase JWKS endpoint and falls back to a shared HS256 secret
func newVerifier(cfg *config.Config, logger *slog.Logger) (auth.JWTVerifier, error) {
	if cfg.SupabaseJWKSURL != "" {
		return auth.NewJWTVerifier(cfg.SupabaseJWKSURL, logger)
	}
	logger.Warn("SUPABASE_URL not set, verifying tokens with SUPABASE_JWT_SECRET")
	return auth.NewSecretVerifier(cfg.JWTSecret, logger)
}

// openSnapshots builds the configured snapshot repository. The returned func releases it.
func openSnapshots(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repo.SnapshotRepository, func(), error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		tables := postgres.NewTableNames(cfg.TablePrefix)
		if err := postgres.EnsureSchema(ctx, pool, tables); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logPool(logger, pool)

		snapshots := postgresAnnotation.NewSnapshotRepository(&postgres.RepositoryConfig{
			Pool:   pool,
			Tables: tables,
			Logger: logger,
		})
		return snapshots, pool.Close, nil

	case config.StorageSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("sqlite opened", "path", cfg.SQLitePath)
		return sqlite.NewSnapshotRepository(db, logger), closeDB(db, logger), nil

	case config.StorageMemory:
		logger.Warn("using in-memory storage, annotations are lost on restart")
		return memory.NewSnapshotRepository(), func() {}, nil
	}

	return nil, nil, fmt.Errorf("unknown STORAGE %q (want postgres, sqlite or memory)", cfg.Storage)
}

func logPool(logger *slog.Logger, pool *pgxpool.Pool) {
	c := pool.Config()
	logger.Info("database connected",
		"max_conns", c.MaxConns,
		"min_conns", c.MinConns,
	)
}

func closeDB(db *sql.DB, logger *slog.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close sqlite", "error", err)
		}
	}
}
