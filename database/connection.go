package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Supported drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	Driver   string
	Host     string
	User     string
	Password string
	DBName   string
	// DSN overrides the individual fields when set.
	DSN string
}

// Connection is the SQL-backed Store.
type Connection struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

var _ Store = (*Connection)(nil)

// Open returns the Store selected by config.Driver.
func Open(config DatabaseConfig, logger *zap.Logger) (Store, error) {
	if config.Driver == DriverMemory {
		return NewMemoryStore(), nil
	}
	conn, err := NewConnection(config, logger)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func NewConnection(config DatabaseConfig, logger *zap.Logger) (*Connection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver := config.Driver
	if driver == "" {
		driver = DriverMySQL
	}
	dsn, err := buildDSN(driver, config)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	conn := &Connection{
		db:     db,
		driver: driver,
		logger: logger.With(zap.String("component", "database"), zap.String("driver", driver)),
	}

	if err := conn.ensureConnection(); err != nil {
		db.Close()
		return nil, err
	}

	return conn, nil
}

func buildDSN(driver string, config DatabaseConfig) (string, error) {
	if config.DSN != "" {
		return config.DSN, nil
	}
	switch driver {
	case DriverMySQL:
		cfg := mysql.NewConfig()
		cfg.User = config.User
		cfg.Passwd = config.Password
		cfg.Net = "tcp"
		cfg.Addr = config.Host
		cfg.DBName = config.DBName
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		return cfg.FormatDSN(), nil
	case DriverPostgres:
		return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
			config.User, config.Password, config.Host, config.DBName), nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

func (c *Connection) ensureConnection() error {
	var err error
	for retries := 0; retries < 3; retries++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = c.db.PingContext(ctx)
		cancel()

		if err == nil {
			return nil
		}

		c.logger.Warn("database ping failed",
			zap.Int("attempt", retries+1),
			zap.Error(err),
		)
		time.Sleep(time.Second * time.Duration(retries+1))
	}
	return fmt.Errorf("failed to establish database connection after 3 attempts: %w", err)
}

func (c *Connection) Close() error {
	return c.db.Close()
}

func (c *Connection) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Connection) GetDB() *sql.DB {
	return c.db
}

func (c *Connection) Driver() string {
	return c.driver
}

// rebind rewrites ? placeholders to $n for postgres.
func (c *Connection) rebind(query string) string {
	return rebind(c.driver, query)
}

func rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
