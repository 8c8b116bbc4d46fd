package main

import (
	"fmt"

	"hemophilia-registry-api/config"
	"hemophilia-registry-api/internal/aggregate"
	"hemophilia-registry-api/internal/catalog"
	"hemophilia-registry-api/internal/database"
	"hemophilia-registry-api/internal/hospital"
	"hemophilia-registry-api/internal/importer"
	"hemophilia-registry-api/internal/logger"
	"hemophilia-registry-api/internal/logs"
	"hemophilia-registry-api/internal/organization"
	"hemophilia-registry-api/internal/record"
	"hemophilia-registry-api/internal/report"
	"hemophilia-registry-api/internal/schema"
	"hemophilia-registry-api/internal/util"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	databaseURL string
	sqlitePath  string
	verbose     bool
}

// app holds the services one command run needs. It is built after flags
// are parsed and closed when the command returns.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	resolver *database.Resolver

	registry   *catalog.Registry
	schema     *schema.Manager
	store      *record.Store
	logService *logs.LogService

	imports    *importer.ImportService
	reports    *report.ReportService
	aggregates *aggregate.AggregateService
}

func getRootCmd() *cobra.Command {
	opts := &rootOptions{}
	var a *app

	rootCmd := &cobra.Command{
		Use:   "registryctl",
		Short: "registryctl operates the hemophilia registry database",
		Long: `registryctl runs operator tasks against the registry database
without going through the HTTP service.

Configuration is read the same way the server reads it:
  1. DATABASE_URL from the secrets file (SECRETS_FILE, default .secrets.toml)
  2. DATABASE_URL from the environment (.env is loaded first)
  3. the embedded SQLite file at SQLITE_PATH

The --database-url and --sqlite-path flags override all of the above.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = newApp(opts)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a == nil {
				return nil
			}
			_ = a.log.Sync()
			return a.resolver.Close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "",
		"connection string (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&opts.sqlitePath, "sqlite-path", "",
		"embedded database file (overrides SQLITE_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"log at info level instead of warn")

	rootCmd.Flags().BoolP("version", "V", false, "version for registryctl")

	appFn := func() *app { return a }
	rootCmd.AddCommand(
		getPingCmd(appFn),
		getTablesCmd(appFn),
		getEnsureCmd(appFn),
		getReportCmd(appFn),
		getImportCmd(appFn),
		getRebuildSummaryCmd(appFn),
	)

	return rootCmd
}

func newApp(opts *rootOptions) (*app, error) {
	cfg := config.LoadConfig()
	if opts.databaseURL != "" {
		cfg.DatabaseURL = opts.databaseURL
		cfg.DatabaseURLSource = "flag"
	}
	if opts.sqlitePath != "" {
		cfg.SQLitePath = opts.sqlitePath
	}

	level := "warn"
	if opts.verbose {
		level = "info"
	}
	zl, err := logger.NewLogger(level, "console", "registryctl")
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	resolver := database.NewResolver(database.Options{
		URL:        cfg.DatabaseURL,
		ForceIPv4:  cfg.ForceIPv4,
		SQLitePath: cfg.SQLitePath,
	}, zl)
	db, err := resolver.Resolve()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %s: %w", resolver.MaskedURL(), err)
	}

	logService := &logs.LogService{DB: db}
	if err := logService.Migrate(); err != nil {
		_ = resolver.Close()
		return nil, fmt.Errorf("failed to migrate system logs: %w", err)
	}

	registry := catalog.Default()
	mgr := schema.NewManager(db, zl)
	store := record.NewStore(db, mgr, registry, zl)
	orgs := organization.NewOrganizationService(store, logService)
	hospitals := &hospital.HospitalService{Store: store, LogService: logService}

	var archive report.Archiver
	if cfg.ReportBucket != "" {
		archive = &util.GCSBucket{Name: cfg.ReportBucket}
	}

	return &app{
		cfg:        cfg,
		log:        zl,
		resolver:   resolver,
		registry:   registry,
		schema:     mgr,
		store:      store,
		logService: logService,
		imports:    importer.NewImportService(store, orgs, hospitals, logService, zl),
		reports:    report.NewReportService(store, logService, archive, zl),
		aggregates: aggregate.NewAggregateService(store, logService, zl),
	}, nil
}
