package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/vanderheijden86/ember/internal/datasource"
	"github.com/vanderheijden86/ember/pkg/config"
	"github.com/vanderheijden86/ember/pkg/debug"
	"github.com/vanderheijden86/ember/pkg/model"
	"github.com/vanderheijden86/ember/pkg/progress"
)

// app bundles the storage every command works against.
type app struct {
	cfg     config.Config
	cfgPath string

	layout   datasource.Layout
	cache    *datasource.ChatCache
	registry *datasource.ImportsRegistry
	analysis *datasource.AnalysisFile
	kv       progress.KV
	played   *progress.PlayedStore
	tracker  *progress.Tracker

	closeKV func() error
}

// openApp opens the data directory and the progress backend named in cfg.
func openApp(cfg config.Config, cfgPath string) (*app, error) {
	if cfg.DataDir == "" {
		return nil, errors.New("no data directory: set data_dir in the config or pass --data-dir")
	}
	layout := datasource.NewLayout(cfg.DataDir)
	a := &app{
		cfg:      cfg,
		cfgPath:  cfgPath,
		layout:   layout,
		cache:    datasource.NewChatCache(layout),
		registry: datasource.NewImportsRegistry(layout),
		analysis: datasource.NewAnalysisFile(layout),
		closeKV:  func() error { return nil },
	}

	statePath := cfg.StatePath()
	switch cfg.Progress.Backend {
	case config.BackendSQLite:
		db, err := datasource.OpenSQLiteKV(statePath)
		if err != nil {
			return nil, fmt.Errorf("opening progress database: %w", err)
		}
		a.kv = db
		a.closeKV = db.Close
	default:
		a.kv = datasource.NewFileKV(statePath)
	}
	debug.Log("app: data %s, progress %s (%s)", cfg.DataDir, statePath, cfg.Progress.Backend)

	a.played = progress.NewPlayedStore(a.kv)
	a.tracker = progress.LoadTracker(a.kv)
	return a, nil
}

func (a *app) Close() error {
	return a.closeKV()
}

// chats lists imported chats followed by chats that only have a cache.
func (a *app) chats() ([]string, error) {
	imports, err := a.registry.LoadImports()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	for _, ci := range imports {
		names = append(names, ci.Name)
		seen[model.SanitizeChatName(ci.Name)] = true
	}
	sort.Strings(names)

	cached, err := a.cache.Chats()
	if err != nil {
		return nil, err
	}
	for _, name := range cached {
		if !seen[name] {
			names = append(names, name)
		}
	}
	return names, nil
}

// saveLastChat remembers chat for the next launch. Failure only costs the
// preselection, so it is logged.
func (a *app) saveLastChat(chat string) {
	if a.cfg.LastChat == chat || a.cfgPath == "" {
		return
	}
	a.cfg.LastChat = chat
	if err := config.SaveTo(a.cfg, a.cfgPath); err != nil {
		debug.Log("app: saving last chat: %v", err)
	}
}

// extractorConfig layers the config file under the environment: variables
// that are set win, the file fills the rest.
func extractorConfig(c config.ExtractionConfig) datasource.ExtractorConfig {
	ec := datasource.ExtractorConfigFromEnv()
	if c.BaseURL != "" && !envSet("OPENROUTER_BASE_URL", "VITE_OPENROUTER_BASE_URL") {
		ec.BaseURL = c.BaseURL
	}
	if c.Model != "" && !envSet("OPENROUTER_MODEL", "VITE_OPENROUTER_MODEL") {
		ec.Model = c.Model
	}
	if c.RequestsPerMinute > 0 {
		ec.RequestsPerMinute = c.RequestsPerMinute
	}
	if c.MaxRetries > 0 {
		ec.MaxRetries = c.MaxRetries
	}
	if c.Timeout > 0 {
		ec.Timeout = c.Timeout
	}
	return ec
}

func envSet(keys ...string) bool {
	for _, k := range keys {
		if os.Getenv(k) != "" {
			return true
		}
	}
	return false
}

// offlineExtractor stands in when no API key is configured: cached chunks
// still play, anything else fails with the reason.
type offlineExtractor struct{ err error }

func (o offlineExtractor) Extract(ctx context.Context, chunk model.DayChunk) (model.CacheEntry, error) {
	return model.CacheEntry{}, o.err
}

// processor returns the chat processing service. The error is non-nil when
// extraction is unavailable; the processor is still usable for cached data.
func (a *app) processor() (*datasource.Processor, error) {
	ext, err := datasource.NewOpenAIExtractor(extractorConfig(a.cfg.Extraction))
	if err != nil {
		return datasource.NewProcessor(a.cache, offlineExtractor{err: err}), err
	}
	return datasource.NewProcessor(a.cache, ext), nil
}
