package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vanderheijden86/ember/pkg/debug"
	"github.com/vanderheijden86/ember/pkg/events"
	"github.com/vanderheijden86/ember/pkg/recall"
	"github.com/vanderheijden86/ember/pkg/store"
	"github.com/vanderheijden86/ember/pkg/ui"
	"github.com/vanderheijden86/ember/pkg/watcher"
)

// session is everything one open chat needs, built before the UI starts.
type session struct {
	chat     string
	bus      *events.Bus
	graph    *store.GraphStore
	analysis *store.AnalysisStore
	recall   *recall.Module
	watcher  *watcher.Watcher
	// warning explains a degraded start, e.g. no API key.
	warning string
}

// openSession wires the stores for chat. Recall is left nil for chats that
// only have a cache and no imported messages.
func openSession(a *app, chat string) (*session, error) {
	s := &session{chat: chat, bus: events.NewBus()}
	s.graph = store.NewGraphStore(s.bus, store.WithTracker(a.tracker), store.WithBloom(true))
	s.analysis = store.NewAnalysisStore(a.analysis, s.bus)
	if err := s.analysis.Load(); err != nil {
		return nil, fmt.Errorf("loading saved memories: %w", err)
	}

	ci, found, err := a.registry.Find(chat)
	if err != nil {
		return nil, err
	}
	if found && len(ci.Chunks) > 0 {
		proc, perr := a.processor()
		if perr != nil {
			s.warning = fmt.Sprintf("New scenes cannot be extracted: %v", perr)
		}
		s.recall = recall.New(ci.Name, ci.Chunks, proc, s.analysis, a.played, a.cfg.Recall)
	}

	w, err := watcher.NewWatcher(a.layout.ChatDir(chat),
		watcher.WithOnError(func(err error) { debug.Log("watcher: %v", err) }),
	)
	if err != nil {
		debug.Log("watcher: %v", err)
	} else if err := w.Start(); err != nil {
		debug.Log("watcher: start: %v", err)
	} else {
		s.watcher = w
	}
	return s, nil
}

func (s *session) Close() {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	s.bus.Close()
}

func runTUI(cmd *cobra.Command, opts *options, chat string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("the terminal UI needs a TTY; see 'ember --help' for batch commands")
	}

	a, err := opts.open()
	if err != nil {
		return err
	}
	defer a.Close()

	if chat == "" {
		names, err := a.chats()
		if err != nil {
			return err
		}
		chat, err = ui.PickChat(names, a.cfg.LastChat)
		if errors.Is(err, ui.ErrNoChats) {
			return errors.New("no chats yet: add one with 'ember import <file.json>'")
		}
		if err != nil {
			return err
		}
	}
	a.saveLastChat(chat)

	s, err := openSession(a, chat)
	if err != nil {
		return err
	}
	defer s.Close()
	if s.warning != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), s.warning)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	m := ui.NewModel(ui.Deps{
		Config:   a.cfg,
		Chat:     chat,
		Bus:      s.bus,
		Graph:    s.graph,
		Analysis: s.analysis,
		Recall:   s.recall,
		Cache:    a.cache,
		Watcher:  s.watcher,
	}).WithContext(ctx)

	return runTUIProgram(ctx, m)
}

func runTUIProgram(ctx context.Context, m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
		tea.WithContext(ctx),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM; a second signal or a stuck
	// shutdown kills the program.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for smoke tests: set EMBER_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("EMBER_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				select {
				case <-runDone:
				case <-time.After(time.Duration(ms) * time.Millisecond):
					p.Quit()
				}
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}
