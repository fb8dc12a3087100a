package datasource

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

func init() {
	Register("mysql", func() DataSource { return &MySQL{} })
}

// MySQL is a MySQL/MariaDB datasource.
type MySQL struct {
	db *sql.DB
}

// Connect establishes a connection to MySQL.
func (m *MySQL) Connect(ctx context.Context, cfg Config) error {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	mc.Addr = fmt.Sprintf("%s:%d", host, port)
	mc.DBName = cfg.Database
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.ParseTime = true
	if len(cfg.Options) > 0 {
		mc.Params = map[string]string{}
		for k, v := range cfg.Options {
			mc.Params[k] = v
		}
	}

	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return fmt.Errorf("failed to open mysql connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping mysql: %w", err)
	}

	m.db = db
	return nil
}

// Close closes the connection pool.
func (m *MySQL) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// DB returns the underlying pool.
func (m *MySQL) DB() *sql.DB { return m.db }

// Kind returns the dialect name.
func (m *MySQL) Kind() string { return "mysql" }

var _ DataSource = (*MySQL)(nil)
