// Package app wires configuration, seed data, the store and the journal
// into a runnable API.
package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"levelten/internal/config"
	"levelten/internal/db"
	"levelten/internal/domain"
	"levelten/internal/events"
	"levelten/internal/migrate"
	"levelten/internal/seed"
	"levelten/internal/server"
	"levelten/internal/store"
)

type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   *store.Store
	Journal *events.Journal

	conn   *sql.DB
	detach func()
}

// New builds the store from the configured seed and, when enabled, attaches
// an in-memory journal to it.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	fixture, err := seed.Load(cfg.Seed.File)
	if err != nil {
		return nil, fmt.Errorf("load seed: %w", err)
	}
	user := fixture.CurrentUser
	if cfg.User.Name != "" {
		user = domain.User{ID: cfg.User.ID, Name: cfg.User.Name}
	}
	a := &App{
		Config: cfg,
		Logger: logger,
		Store:  store.New(user, fixture.Meetings),
	}
	a.Store.Logger = logger
	if cfg.Journal.Enabled {
		conn, err := db.Open(db.Config{Name: cfg.Journal.Name})
		if err != nil {
			return nil, err
		}
		if err := migrate.Migrate(conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrate journal: %w", err)
		}
		a.conn = conn
		a.Journal = events.NewJournal(conn, logger)
		a.detach = a.Journal.Attach(a.Store)
	}
	logger.Info("store ready",
		"meetings", len(fixture.Meetings),
		"user", user.Name,
		"journal", cfg.Journal.Enabled,
	)
	return a, nil
}

// Handler returns the HTTP API over the app's store.
func (a *App) Handler() (http.Handler, error) {
	return server.New(server.Config{
		Store:    a.Store,
		Journal:  a.Journal,
		BasePath: a.Config.Server.BasePath,
		Logger:   a.Logger,
	})
}

// Close detaches the journal and releases its database.
func (a *App) Close() error {
	if a.detach != nil {
		a.detach()
		a.detach = nil
	}
	if a.conn != nil {
		err := a.conn.Close()
		a.conn = nil
		return err
	}
	return nil
}
