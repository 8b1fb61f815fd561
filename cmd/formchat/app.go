package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/goliatone/go-formchat"
	"github.com/goliatone/go-formchat/internal/config"
	"github.com/goliatone/go-formchat/internal/httpapi"
	"github.com/goliatone/go-formchat/internal/logger"
	"github.com/goliatone/go-formchat/internal/session"
	"github.com/goliatone/go-formchat/internal/store"
	"github.com/goliatone/go-formchat/pkg/clarify"
	"github.com/goliatone/go-formchat/pkg/extract"
	"github.com/goliatone/go-formchat/pkg/forms"
	"github.com/goliatone/go-formchat/pkg/schema"
	"github.com/goliatone/go-formchat/pkg/turn"
)

// app holds the wired dependencies shared by the subcommands.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	forms    *forms.Registry
	form     *schema.Form
	sessions *session.Service
	closers  []func() error
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	log, err := logger.New(logger.Options{Mode: cfg.Log.Mode, Level: cfg.Log.Level})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}

	if err := a.wire(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	registry, err := loadRegistry(ctx, a.cfg.Forms, a.log.Named("forms"))
	if err != nil {
		return err
	}
	form, err := registry.Latest(a.cfg.Forms.Default)
	if err != nil {
		return fmt.Errorf("default form: %w", err)
	}
	a.forms = registry
	a.form = form

	engineOpts := []turn.Option{
		turn.WithLogger(a.log.Named("turn")),
		turn.WithTracer(otel.Tracer(httpapi.ServiceName)),
		turn.WithLanguage(a.cfg.Engine.Language),
		turn.WithConfidenceThreshold(a.cfg.Engine.ConfidenceThreshold),
		turn.WithDampening(a.cfg.Engine.Dampening),
		turn.WithHistoryLimit(a.cfg.Engine.HistoryLimit),
	}
	if len(a.cfg.Engine.PrimaryFields) > 0 {
		engineOpts = append(engineOpts, turn.WithPrimaryFields(a.cfg.Engine.PrimaryFields...))
	}
	if dir := strings.TrimSpace(a.cfg.Clarify.Catalog); dir != "" {
		catalog, err := clarify.LoadCatalog(clarify.EmbeddedFS(), os.DirFS(dir))
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, turn.WithComposer(clarify.NewComposer(catalog)))
	}

	sessionOpts := []session.Option{
		session.WithLogger(a.log.Named("session")),
		session.WithTurnTimeout(a.cfg.Engine.TurnTimeout),
	}
	if dsn := strings.TrimSpace(a.cfg.Store.SQLiteDSN); dsn != "" {
		subs, err := store.OpenSQLite(dsn, a.log.Named("store"))
		if err != nil {
			return err
		}
		a.closers = append(a.closers, subs.Close)
		engineOpts = append(engineOpts, turn.WithHistory(subs))
		sessionOpts = append(sessionOpts, session.WithSubmitter(subs))
	}

	snapshots, err := a.snapshots(ctx)
	if err != nil {
		return err
	}
	extractor, err := newExtractor(a.cfg.LLM, a.log.Named("extract"))
	if err != nil {
		return err
	}

	engine := turn.New(form, extractor, engineOpts...)
	a.sessions = session.New(engine, snapshots, sessionOpts...)
	a.log.Info("form chat ready",
		zap.String("form", form.ID()),
		zap.Int("forms", registry.Len()),
		zap.Bool("llm", strings.TrimSpace(a.cfg.LLM.APIKey) != ""),
	)
	return nil
}

func (a *app) snapshots(ctx context.Context) (store.Snapshots, error) {
	addr := strings.TrimSpace(a.cfg.Store.RedisAddr)
	if addr == "" {
		return store.NewMemorySnapshots(a.cfg.Store.SessionTTL, clock.New()), nil
	}
	rdb, err := store.DialRedis(ctx, addr, a.cfg.Store.RedisPassword, a.cfg.Store.RedisDB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rdb.Close)
	return store.NewRedisSnapshots(rdb, store.DefaultKeyPrefix, a.cfg.Store.SessionTTL), nil
}

// Close releases stores in reverse order and flushes the logger.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	_ = a.log.Sync()
	return errors.Join(errs...)
}

// loadRegistry reads forms from the configured directory, or the bundled
// forms when the directory does not exist.
func loadRegistry(ctx context.Context, cfg config.FormsConfig, log *zap.Logger) (*forms.Registry, error) {
	var fsys fs.FS
	if info, err := os.Stat(cfg.Dir); err == nil && info.IsDir() {
		fsys = os.DirFS(cfg.Dir)
	} else {
		log.Debug("forms directory not found, using bundled forms", zap.String("dir", cfg.Dir))
		fsys = formchat.FormsFS()
	}
	return formchat.LoadForms(ctx, fsys, ".", forms.LoadOptions{}, forms.WithLogger(log))
}

// newExtractor picks the LLM extractor when an API key is configured and the
// rule extractor otherwise.
func newExtractor(cfg config.LLMConfig, log *zap.Logger) (turn.Extractor, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return extract.NewRuleExtractor(), nil
	}
	model, err := extract.NewOpenRouterModel(cfg.APIKey, cfg.Model, cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	llm := extract.NewLLMExtractor(model,
		extract.WithLogger(log),
		extract.WithTemperature(cfg.Temperature),
		extract.WithMaxTokens(cfg.MaxTokens),
	)
	if cfg.Timeout <= 0 {
		return llm, nil
	}
	return turn.ExtractorFunc(func(ctx context.Context, req turn.ExtractRequest) (turn.Extraction, error) {
		ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		return llm.Extract(ctx, req)
	}), nil
}
