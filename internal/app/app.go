package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joho/godotenv"

	"marianchat/pkg/chat"
	"marianchat/pkg/config"
	"marianchat/pkg/logger"
	"marianchat/pkg/store"
	"marianchat/pkg/validation"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	svc *chat.Service
	srv *http.Server
}

// New initializes resources that do not require a running context (DB,
// validation rules, runtime keys, chat service). It does not start the
// HTTP server; call Run to start it and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	// validate effective config early and fail fast
	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	// runtime keys
	runtimeCfg := &config.RuntimeConfig{BackendKeys: map[string]struct{}{}, SigningKeys: map[string]struct{}{}}
	for _, k := range eff.Config.Security.APIKeys.Backend {
		runtimeCfg.BackendKeys[k] = struct{}{}
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	// validation rules
	validation.SetRules(validation.Rules{
		MaxBodyBytes: eff.Config.Chat.MaxBodyBytes.Int64(),
	})

	// open store
	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	// optional audit sink for edits and deletes
	if dir := eff.Config.Logging.AuditDir; dir != "" {
		if err := logger.AttachAuditFileSink(dir); err != nil {
			logger.Warn("audit_sink_unavailable", "dir", dir, "error", err)
		}
	}

	svc := chat.NewService(chat.Options{
		EditWindow: eff.Config.Chat.EditWindow.Duration(),
		BackoffMin: eff.Config.Chat.ResubscribeBackoffMin.Duration(),
		BackoffMax: eff.Config.Chat.ResubscribeBackoffMax.Duration(),
	})

	return &App{eff: eff, version: version, commit: commit, buildDate: buildDate, svc: svc}, nil
}

// Run starts the HTTP server and blocks until ctx is canceled or a
// fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		a.shutdownHTTP()
		return nil
	case err := <-errCh:
		return err
	}
}

// Close releases resources held by the app.
func (a *App) Close() error {
	return store.Close()
}
