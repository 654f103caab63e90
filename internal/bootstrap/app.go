package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"docverify-backend/internal/batchexport"
	"docverify-backend/internal/documents"
	"docverify-backend/internal/shared/config"
	"docverify-backend/internal/shared/storage/db"
	"docverify-backend/internal/shared/storage/object"
	localstore "docverify-backend/internal/shared/storage/object/local"
	s3store "docverify-backend/internal/shared/storage/object/s3"
)

// App holds shared dependencies for headless entrypoints such as the batch
// export runner. The HTTP server wires its own dependencies in server.NewRouter.
type App struct {
	Config        config.Config
	DB            *sql.DB
	Store         object.ObjectStore
	DocumentsRepo documents.Repo
	ExportRepo    batchexport.Repo
	ExportService *batchexport.Service
}

// Build prepares shared dependencies without wiring routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
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

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
	}

	if sqlDB != nil {
		app.DocumentsRepo = &documents.PGRepo{DB: sqlDB}
		app.ExportRepo = &batchexport.PGRepo{DB: sqlDB}
	} else {
		app.DocumentsRepo = documents.NewMemoryRepo()
		app.ExportRepo = batchexport.NewMemoryRepo()
	}

	exportStore, err := buildExportStore(ctx, cfg, store)
	if err != nil {
		return nil, err
	}
	source, ok := app.DocumentsRepo.(documents.ConfirmedSource)
	if !ok {
		return nil, fmt.Errorf("documents repo does not support confirmed-window queries")
	}
	app.ExportService = &batchexport.Service{
		Repo:   app.ExportRepo,
		Source: source,
		Store:  exportStore,
		Prefix: cfg.ExportPrefix,
	}

	return app, nil
}

// Close releases held resources.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
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
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildExportStore(ctx context.Context, cfg config.Config, fallback object.ObjectStore) (object.KeySaver, error) {
	if cfg.ObjectStoreType == "s3" && cfg.ExportBucket != "" && cfg.ExportBucket != cfg.S3Bucket {
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.ExportBucket, "", cfg.SSEKMSKeyID)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	saver, ok := fallback.(object.KeySaver)
	if !ok {
		return nil, fmt.Errorf("object store %q cannot save export files", cfg.ObjectStoreType)
	}
	return saver, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
