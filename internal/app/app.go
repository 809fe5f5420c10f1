// Package app wires the credential store, translation table, chat state,
// and TCP server together.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/beechat/beechat-server/internal/auth"
	"github.com/beechat/beechat-server/internal/config"
	"github.com/beechat/beechat-server/internal/core"
	"github.com/beechat/beechat-server/internal/store"
	"github.com/beechat/beechat-server/internal/store/credfile"
	"github.com/beechat/beechat-server/internal/translate"
	transporttcp "github.com/beechat/beechat-server/internal/transport/tcp"
)

// App ties the chat server to its collaborators for a single run.
type App struct {
	server          *transporttcp.Server
	store           store.CredentialStore
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := credfile.Open(cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("init credential store: %w", err)
	}
	logger.Info().Str("path", cfg.CredentialsPath).Int("users", st.Len()).Msg("credential store loaded")

	table, err := translate.LoadFile(cfg.DictionaryPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			st.Close()
			return nil, fmt.Errorf("load dictionary: %w", err)
		}
		// A missing dictionary just disables translation.
		logger.Warn().Str("path", cfg.DictionaryPath).Msg("dictionary missing, translation disabled")
		table = translate.NewTable(nil)
	} else {
		logger.Info().Str("path", cfg.DictionaryPath).Int("entries", table.Len()).Msg("dictionary loaded")
	}

	reg := core.NewRegistry()
	bcast := core.NewBroadcaster(reg, table, logger)
	authSvc := auth.NewService(st)

	server := transporttcp.NewServer(cfg.Addr, cfg.MaxConnections, cfg.AdminUser, authSvc, reg, bcast, logger)

	return &App{
		server:          server,
		store:           st,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}, nil
}

// Run starts the TCP server and blocks until context cancellation or fatal
// error.
func (a *App) Run(ctx context.Context) error {
	if err := a.server.Start(); err != nil {
		a.cleanup()
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Serve()
	}()

	select {
	case err := <-serverErr:
		// Internal shutdown (admin command) or accept failure; wait for
		// the remaining handlers either way.
		a.shutdownAndWait()
		a.cleanup()
		return err
	case <-ctx.Done():
		a.log.Info().Msg("shutting down chat server")
		a.shutdownAndWait()
		a.cleanup()
		return <-serverErr
	}
}

func (a *App) shutdownAndWait() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("handlers did not finish before timeout")
	}
}

// cleanup closes the credential store.
func (a *App) cleanup() {
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close credential store")
	}
}
