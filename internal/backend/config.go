package backend

import (
	"errors"
	"fmt"

	"comparativo/internal/config"
	"comparativo/internal/storage"
)

// Config selects and parameterizes one backend.
type Config struct {
	Type Type

	// sqlite
	SQLiteDBPath string

	// postgres, sqlserver
	Server   string
	Port     int
	Database string
	User     string
	Password string
	MaxConns int
	Table    string

	// memory
	DataDirectory string
}

// FromAppConfig extracts the backend settings from the application config.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, errors.New("nil application config")
	}
	c := Config{
		Type:          Type(cfg.DataBackend),
		SQLiteDBPath:  cfg.SQLiteDBPath,
		Server:        cfg.DatabaseServer,
		Port:          cfg.DatabasePort,
		Database:      cfg.DatabaseName,
		User:          cfg.DatabaseUser,
		Password:      cfg.DatabasePassword,
		MaxConns:      cfg.DatabaseMaxConns,
		Table:         cfg.SourceTable,
		DataDirectory: cfg.DataDir,
	}
	if c.DataDirectory == "" {
		c.DataDirectory = "data"
	}
	if !c.Type.valid() {
		return Config{}, fmt.Errorf("unknown backend %q: must be one of %v", cfg.DataBackend, Types())
	}
	return c, nil
}

// Validate checks the fields the selected backend needs.
func (c Config) Validate() error {
	switch c.Type {
	case Memory:
		if c.DataDirectory == "" {
			return errors.New("memory backend needs a data directory")
		}
	case SQLite:
		if c.SQLiteDBPath == "" {
			return errors.New("sqlite backend needs a database path")
		}
	case Postgres, SQLServer:
		if c.Server == "" || c.Database == "" {
			return fmt.Errorf("%s backend needs a server and a database", c.Type)
		}
		if c.Table == "" {
			return fmt.Errorf("%s backend needs a source table", c.Type)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Type)
	}
	return nil
}

func (c Config) server() storage.ServerConfig {
	return storage.ServerConfig{
		Server:   c.Server,
		Port:     c.Port,
		Database: c.Database,
		User:     c.User,
		Password: c.Password,
		MaxConns: c.MaxConns,
		Table:    c.Table,
	}
}
