package server

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"docverify-backend/internal/batchexport"
	"docverify-backend/internal/documents"
	"docverify-backend/internal/ocr"
	"docverify-backend/internal/shared/config"
	"docverify-backend/internal/shared/metrics"
	"docverify-backend/internal/shared/server/middleware"
	"docverify-backend/internal/shared/server/respond"
	"docverify-backend/internal/shared/storage/db"
	"docverify-backend/internal/shared/storage/object"
	localstore "docverify-backend/internal/shared/storage/object/local"
	s3store "docverify-backend/internal/shared/storage/object/s3"
	"docverify-backend/internal/uploads"
	"docverify-backend/internal/vision"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	ctx := context.Background()

	store := buildStore(ctx, cfg)
	sqlDB := buildDB(ctx, cfg)

	var docRepo documents.Repo
	if sqlDB != nil {
		docRepo = &documents.PGRepo{DB: sqlDB}
	} else {
		docRepo = documents.NewMemoryRepo()
	}
	docSvc := &documents.Service{Repo: docRepo, Store: store}
	docHandler := documents.NewHandler(docSvc)

	var detector ocr.TextDetector
	visionClient, err := vision.NewClient(cfg.VisionAPIKey, cfg.VisionEndpoint)
	switch {
	case err == nil:
		detector = visionClient
	case errors.Is(err, vision.ErrNotConfigured):
		log.Printf("vision api not configured; ocr requests will fall back to manual entry")
	default:
		log.Printf("vision client init failed; ocr requests will fall back to manual entry: %v", err)
	}
	ocrSvc := &ocr.Service{Repo: docRepo, Store: store, Vision: detector}
	ocrHandler := ocr.NewHandler(ocrSvc)

	var exportRepo batchexport.Repo
	if sqlDB != nil {
		exportRepo = &batchexport.PGRepo{DB: sqlDB}
	} else {
		exportRepo = batchexport.NewMemoryRepo()
	}
	confirmedSource, _ := docRepo.(documents.ConfirmedSource)
	exportSvc := &batchexport.Service{
		Repo:   exportRepo,
		Source: confirmedSource,
		Store:  buildExportStore(ctx, cfg, store),
		Prefix: cfg.ExportPrefix,
	}
	batchHandler := batchexport.NewHandler(exportSvc, cfg.BatchToken)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", metrics.Handler())

	// Scheduler endpoints authenticate with X-Batch-Token, not user JWTs.
	batchHandler.RegisterRoutes(api)

	authed := api.Group("")
	authed.Use(
		middleware.Auth(),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				"DEFAULT": {Rate: 5, Burst: 10},
				"POLLING": {Rate: 30, Burst: 60},
			},
			GroupFor: func(c *gin.Context) string {
				if c.Request.Method == http.MethodGet && c.FullPath() == "/api/v1/documents/:id/status" {
					return "POLLING"
				}
				return "DEFAULT"
			},
		}),
	)
	registerMeRoutes(authed)
	docHandler.RegisterRoutes(authed)
	ocrHandler.RegisterRoutes(authed)
	uploads.RegisterRoutes(authed)

	return r
}

func buildStore(ctx context.Context, cfg config.Config) object.ObjectStore {
	if cfg.ObjectStoreType == "s3" {
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
		if err != nil {
			log.Printf("failed to init s3 store, falling back to local: %v", err)
		} else {
			return store
		}
	}
	return localstore.New(cfg.LocalStoreDir)
}

// buildExportStore returns the destination for batch CSV files. Exports may
// target a different bucket than document images.
func buildExportStore(ctx context.Context, cfg config.Config, fallback object.ObjectStore) object.KeySaver {
	if cfg.ObjectStoreType == "s3" && cfg.ExportBucket != "" && cfg.ExportBucket != cfg.S3Bucket {
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.ExportBucket, "", cfg.SSEKMSKeyID)
		if err != nil {
			log.Printf("failed to init s3 export store, using document store: %v", err)
		} else {
			return store
		}
	}
	if saver, ok := fallback.(object.KeySaver); ok {
		return saver
	}
	return nil
}

func buildDB(ctx context.Context, cfg config.Config) *sql.DB {
	if cfg.DatabaseURL == "" {
		return nil
	}
	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("failed to connect database, falling back to memory: %v", err)
		return nil
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		log.Printf("failed to run migrations, falling back to memory: %v", err)
		sqlDB.Close()
		return nil
	}
	return sqlDB
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
