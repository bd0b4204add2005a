package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/levchenko/complychat/internal/backend"
	"github.com/levchenko/complychat/internal/chat"
	"github.com/levchenko/complychat/internal/config"
	"github.com/levchenko/complychat/internal/credstore"
	"github.com/levchenko/complychat/internal/probe"
	"github.com/levchenko/complychat/internal/storage"
)

// app bundles the pieces every command needs: loaded configuration, the
// persistent credential store, and the backend client wired to it.
type app struct {
	cfg    config.Config
	creds  *credstore.File
	client *backend.Client
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log.Level)

	creds, err := credstore.OpenFile(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}

	client := backend.New(cfg.Backend.BaseURL, creds,
		backend.WithTimeout(time.Duration(cfg.Backend.TimeoutSeconds)*time.Second),
		backend.WithInvalidationHook(func() {
			printWarning("Session expired. Please log in again with `complychat login`.")
		}),
	)

	return &app{cfg: cfg, creds: creds, client: client}, nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

var errNotLoggedIn = errors.New("not logged in; run `complychat login` first")

func (a *app) requireLogin() error {
	if _, ok := a.creds.Get(); !ok {
		return errNotLoggedIn
	}
	return nil
}

// wake probes the backend before an auth flow, narrating a cold start so a
// free-tier deployment spinning up does not look like a hang.
func (a *app) wake(ctx context.Context) probe.Result {
	p := probe.New(a.client)
	return p.Wake(ctx, probe.ListenerFunc(func(s probe.Status) {
		switch s.Stage {
		case probe.StageConnecting:
			printStep("%s", s.Message)
		case probe.StageUnreachable:
			printWarning("%s", s.Message)
		default:
			printSuccess("%s", s.Message)
		}
	}))
}

// openController builds the session controller backed by the local cache
// database. The caller owns closing the returned store.
func (a *app) openController() (*chat.Controller, *storage.Store, error) {
	store, err := storage.Open(a.cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, err
	}
	ctl := chat.NewController(a.client, chat.WithHistoryCache(store))
	return ctl, store, nil
}
