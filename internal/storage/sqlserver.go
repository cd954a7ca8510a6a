package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"comparativo/internal/query"
)

// ServerConfig holds connection settings shared by the server backends.
type ServerConfig struct {
	Server   string
	Port     int
	Database string
	User     string
	Password string
	MaxConns int
	Table    string
}

// SQLServerDSN builds a go-mssqldb connection URL. Server certificates are
// trusted as the upstream deployment does.
func SQLServerDSN(cfg ServerConfig) string {
	q := url.Values{}
	q.Set("database", cfg.Database)
	q.Set("TrustServerCertificate", "true")
	q.Set("app name", "comparativo")

	port := cfg.Port
	if port == 0 {
		port = 1433
	}
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Server, strconv.Itoa(port)),
		RawQuery: q.Encode(),
	}
	return u.String()
}

// NewSQLServerRepository opens a pool against SQL Server and verifies it.
func NewSQLServerRepository(ctx context.Context, cfg ServerConfig) (*SQLRepository, error) {
	db, err := sql.Open("sqlserver", SQLServerDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open sqlserver: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	repo, err := newSQLRepository(db, query.SQLServer, cfg.Table)
	if err != nil {
		db.Close()
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := repo.Ping(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}
