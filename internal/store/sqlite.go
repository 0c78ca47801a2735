package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/tempvortex/internal/credential"
	"github.com/nhle/tempvortex/internal/model"
)

// SQLiteStore implements Store using a local SQLite database.
type SQLiteStore struct {
	db      *sqlx.DB
	secrets Secrets
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithSecrets moves account tokens out of the database into secrets.
func WithSecrets(s Secrets) SQLiteOption {
	return func(st *SQLiteStore) {
		st.secrets = s
	}
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string, opts ...SQLiteOption) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// LoadSession returns the saved session, or nil when none exists.
func (s *SQLiteStore) LoadSession(ctx context.Context) (*model.Session, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, "SELECT value FROM kv WHERE key = ?", SessionKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var rec model.Session
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}

	if s.secrets != nil && rec.Account != nil && rec.Account.Token == "" {
		token, err := s.secrets.Get(tokenKey(rec.Account))
		switch {
		case err == nil:
			rec.Account.Token = token
		case !credential.IsNotFound(err):
			return nil, fmt.Errorf("loading session token: %w", err)
		}
	}

	return &rec, nil
}

// SaveSession replaces the saved session. With a secrets backend the
// token is stored there and blanked in the database row.
func (s *SQLiteStore) SaveSession(ctx context.Context, rec *model.Session) error {
	out := model.Session{Provider: rec.Provider}
	if rec.Account != nil {
		acct := *rec.Account
		if s.secrets != nil && acct.Token != "" {
			if err := s.secrets.Set(tokenKey(&acct), acct.Token); err != nil {
				return fmt.Errorf("saving session token: %w", err)
			}
			acct.Token = ""
		}
		out.Account = &acct
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	const query = `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, SessionKey, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}
