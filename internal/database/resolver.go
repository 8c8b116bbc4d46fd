package database

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"hemophilia-registry-api/internal/logger"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

type Options struct {
	URL        string
	ForceIPv4  bool
	SQLitePath string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

type PingResult struct {
	OK        bool   `json:"ok"`
	Dialect   string `json:"dialect"`
	URL       string `json:"url"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Resolver owns the single process-wide database handle. It opens lazily
// and keeps the handle for the lifetime of the process; a failed attempt is
// not cached.
type Resolver struct {
	opts Options
	log  *zap.Logger

	mu sync.Mutex
	db *gorm.DB
}

// lookupIPv4Hook resolves a host name to one IPv4 address.
var lookupIPv4Hook = func(ctx context.Context, host string) (string, error) {
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return "", err
	}
	if len(ips) == 0 {
		return "", fmt.Errorf("no IPv4 address for %s", host)
	}
	return ips[0].String(), nil
}

func NewResolver(opts Options, log *zap.Logger) *Resolver {
	if opts.SQLitePath == "" {
		opts.SQLitePath = "data/hemofilia.db"
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 5
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = 30 * time.Minute
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 10 * time.Second
	}
	return &Resolver{opts: opts, log: logger.OrNop(log)}
}

// Resolve returns the pooled handle, opening it on first use.
func (r *Resolver) Resolve() (*gorm.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		return r.db, nil
	}

	var (
		db  *gorm.DB
		err error
	)
	raw := strings.TrimSpace(r.opts.URL)
	switch {
	case raw == "":
		db, err = r.openSQLite(r.opts.SQLitePath)
	case IsServerURL(raw):
		db, err = r.openPostgres(raw)
	default:
		path, ok := sqlitePathFromURL(raw)
		if !ok {
			return nil, &ConfigError{Msg: "unsupported connection string scheme"}
		}
		db, err = r.openSQLite(path)
	}
	if err != nil {
		return nil, err
	}

	r.log.Info("database handle opened",
		zap.String("dialect", db.Dialector.Name()),
		zap.String("url", r.MaskedURL()),
	)
	r.db = db
	return db, nil
}

// Dialect is the dialect the configured URL selects, without connecting.
func (r *Resolver) Dialect() string {
	if IsServerURL(r.opts.URL) {
		return DialectPostgres
	}
	return DialectSQLite
}

func (r *Resolver) MaskedURL() string {
	if strings.TrimSpace(r.opts.URL) == "" {
		return "sqlite:///" + r.opts.SQLitePath
	}
	return MaskURL(r.opts.URL)
}

// Ping runs a SELECT 1 round trip. It reports failures in the result and
// never returns an error or panics.
func (r *Resolver) Ping(ctx context.Context) (res PingResult) {
	res = PingResult{Dialect: r.Dialect(), URL: r.MaskedURL()}
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			res.OK = false
			res.Error = r.scrub(fmt.Sprintf("ping panicked: %v", p))
		}
		res.LatencyMS = time.Since(start).Milliseconds()
	}()

	db, err := r.Resolve()
	if err != nil {
		res.Error = r.scrub(err.Error())
		return res
	}
	sqlDB, err := db.DB()
	if err != nil {
		res.Error = r.scrub(err.Error())
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.PingTimeout)
	defer cancel()

	var one int
	if err := sqlDB.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		res.Error = r.scrub(err.Error())
		return res
	}
	res.OK = true
	return res
}

// Close releases the pool; a later Resolve reopens it.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	r.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *Resolver) scrub(msg string) string {
	return scrubSecret(msg, passwordOf(r.opts.URL))
}

func (r *Resolver) openPostgres(raw string) (*gorm.DB, error) {
	u, err := NormalizeURL(raw)
	if err != nil {
		return nil, err
	}

	connCfg, err := pgx.ParseConfig(u.String())
	if err != nil {
		return nil, &ConfigError{Msg: r.scrub(err.Error())}
	}

	if r.opts.ForceIPv4 {
		if err := forceIPv4(connCfg); err != nil {
			return nil, err
		}
	}

	sqlDB := stdlib.OpenDB(*connCfg)
	sqlDB.SetMaxOpenConns(r.opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(r.opts.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(r.opts.ConnMaxLifetime)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormConfig())
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open postgres: %s", r.scrub(err.Error()))
	}
	return db, nil
}

// forceIPv4 dials the first IPv4 address of the host while keeping the
// host name for TLS verification and SNI.
func forceIPv4(connCfg *pgx.ConnConfig) error {
	host := connCfg.Host
	if host == "" || net.ParseIP(host) != nil || strings.HasPrefix(host, "/") {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ip, err := lookupIPv4Hook(ctx, host)
	if err != nil {
		return fmt.Errorf("resolve %s to IPv4: %w", host, err)
	}

	connCfg.Host = ip
	if connCfg.TLSConfig != nil {
		connCfg.TLSConfig.ServerName = host
	}
	for _, fb := range connCfg.Fallbacks {
		if fb.Host == host {
			fb.Host = ip
		}
		if fb.TLSConfig != nil {
			fb.TLSConfig.ServerName = host
		}
	}
	return nil
}

func (r *Resolver) openSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)"), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// one writer at a time on a file database
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
		DisableAutomaticPing: true,
	}
}
