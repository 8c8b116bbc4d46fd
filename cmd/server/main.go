package main

import (
	"context"
	"log"

	"hemophilia-registry-api/config"
	"hemophilia-registry-api/internal/aggregate"
	"hemophilia-registry-api/internal/catalog"
	"hemophilia-registry-api/internal/database"
	"hemophilia-registry-api/internal/hospital"
	"hemophilia-registry-api/internal/importer"
	"hemophilia-registry-api/internal/logger"
	"hemophilia-registry-api/internal/logs"
	"hemophilia-registry-api/internal/middlewares"
	"hemophilia-registry-api/internal/organization"
	"hemophilia-registry-api/internal/record"
	"hemophilia-registry-api/internal/report"
	"hemophilia-registry-api/internal/schema"
	"hemophilia-registry-api/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	zl, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, "hemophilia-registry-api")
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer func() { _ = zl.Sync() }()

	resolver := database.NewResolver(database.Options{
		URL:        cfg.DatabaseURL,
		ForceIPv4:  cfg.ForceIPv4,
		SQLitePath: cfg.SQLitePath,
	}, zl)
	defer func() { _ = resolver.Close() }()

	db, err := resolver.Resolve()
	if err != nil {
		zl.Fatal("Failed to connect to database", zap.Error(err), zap.String("url", resolver.MaskedURL()))
	}
	zl.Info("database configured",
		zap.String("dialect", resolver.Dialect()),
		zap.String("source", cfg.DatabaseURLSource),
	)

	logService := &logs.LogService{DB: db}
	if err := logService.Migrate(); err != nil {
		zl.Fatal("Failed to migrate system logs", zap.Error(err))
	}

	registry := catalog.Default()
	schemaManager := schema.NewManager(db, zl)
	if err := schemaManager.EnsureAll(context.Background(), []schema.Table{catalog.Organizations, catalog.Hospitals}); err != nil {
		zl.Fatal("Failed to prepare directory tables", zap.Error(err))
	}
	store := record.NewStore(db, schemaManager, registry, zl)

	organizationService := organization.NewOrganizationService(store, logService)
	hospitalService := &hospital.HospitalService{Store: store, LogService: logService}
	importService := importer.NewImportService(store, organizationService, hospitalService, logService, zl)
	aggregateService := aggregate.NewAggregateService(store, logService, zl)

	var archive report.Archiver
	if cfg.ReportBucket != "" {
		archive = &util.GCSBucket{Name: cfg.ReportBucket}
		zl.Info("report archive enabled", zap.String("bucket", cfg.ReportBucket))
	}
	reportService := report.NewReportService(store, logService, archive, zl)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middlewares.RequestID(), middlewares.Recovery(zl), middlewares.RequestLogger(zl))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middlewares.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Disposition", "X-Report-Failed-Sheets", "X-Report-Archive-Url", middlewares.RequestIDHeader},
		AllowCredentials: true,
	}))

	database.RegisterRoutes(r, resolver)
	catalog.RegisterRoutes(r, registry)
	record.RegisterRoutes(r, store, logService)
	organization.RegisterRoutes(r, organizationService)
	hospital.RegisterRoutes(r, hospitalService)
	importer.RegisterRoutes(r, importService)
	report.RegisterRoutes(r, reportService)
	aggregate.RegisterRoutes(r, aggregateService)
	logs.RegisterRoutes(r, logService)

	// --- Cloud Run expects plain HTTP, on $PORT, bind to 0.0.0.0 ---
	zl.Info("Starting server", zap.String("addr", "0.0.0.0:"+cfg.Port))
	if err := r.Run("0.0.0.0:" + cfg.Port); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}
