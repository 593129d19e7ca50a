package cmd

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/arin/scribe-cli/internal/ai"
	"github.com/arin/scribe-cli/internal/config"
	"github.com/arin/scribe-cli/internal/conversation"
	"github.com/arin/scribe-cli/internal/logging"
	"github.com/arin/scribe-cli/internal/progress"
	"github.com/arin/scribe-cli/internal/session"
	"github.com/rs/zerolog"
)

// app is the wiring shared by the commands that talk to the service.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	client   *ai.Client
	store    *conversation.Store
	manager  *session.Manager
	progress *progressSink
}

// progressSink forwards simulated progress to whatever is displaying it.
type progressSink struct {
	mu sync.Mutex
	fn func(int)
}

func (p *progressSink) set(fn func(int)) {
	p.mu.Lock()
	p.fn = fn
	p.mu.Unlock()
}

func (p *progressSink) observe(v int) {
	p.mu.Lock()
	fn := p.fn
	p.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.Path()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(configPath())
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if apiURL != "" {
		cfg.APIURL = strings.TrimRight(apiURL, "/")
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("configuration error: %w", err)
		}
	}
	return cfg, nil
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logger := logging.New(os.Stderr, level)

	client := ai.NewClient(cfg, ai.WithLogger(logging.Component(logger, "client")))
	store := conversation.NewStore(client, conversation.WithLogger(logging.Component(logger, "store")))
	sink := &progressSink{}
	manager := session.NewManager(store, client,
		session.WithLogger(logging.Component(logger, "session")),
		session.WithRefreshInterval(cfg.RefreshInterval),
		session.WithProgress(
			progress.WithStep(cfg.ProgressStep),
			progress.WithInterval(cfg.ProgressInterval),
			progress.WithCeiling(cfg.ProgressCeiling),
			progress.WithObserver(sink.observe),
		),
	)

	logger.Debug().Str("url", cfg.APIURL).Msg("client configured")
	return &app{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		store:    store,
		manager:  manager,
		progress: sink,
	}, nil
}

// close stops running sessions and waits for background refreshes.
func (a *app) close() {
	a.manager.CancelAll()
	a.manager.Wait()
}
