package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/ember/internal/datasource"
	"github.com/vanderheijden86/ember/pkg/anim"
	"github.com/vanderheijden86/ember/pkg/camera"
	"github.com/vanderheijden86/ember/pkg/events"
	"github.com/vanderheijden86/ember/pkg/export"
	"github.com/vanderheijden86/ember/pkg/layout"
	"github.com/vanderheijden86/ember/pkg/model"
	"github.com/vanderheijden86/ember/pkg/scene"
	"github.com/vanderheijden86/ember/pkg/store"
)

func newChatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chats",
		Short: "List imported chats and their processing state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			names, err := a.chats()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(out, "No chats yet. Add one with 'ember import <file.json>'.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CHAT\tDAYS\tPROCESSED\tPLAYED")
			for _, name := range names {
				days := "-"
				if ci, ok, err := a.registry.Find(name); err == nil && ok {
					days = fmt.Sprint(len(ci.Chunks))
				}
				cached, err := a.cache.Indices(name)
				if err != nil {
					return err
				}
				played, err := a.played.LoadPlayed(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", name, days, len(cached), len(played))
			}
			return tw.Flush()
		},
	}
}

func newImportCmd(opts *options) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Register a chat from a JSON export of day chunks",
		Long: `Register a chat from a JSON file of the form

  {"name": "Lisbon trip", "chunks": [{"date": "2024-05-01", "messages": [...]}]}

Importing a name again replaces the earlier import; cached scenes stay.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var ci model.ChatImport
			if err := json.Unmarshal(data, &ci); err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}
			if name != "" {
				ci.Name = name
			}
			ci.Name = strings.TrimSpace(ci.Name)
			if ci.Name == "" {
				return errors.New("the import has no name; pass --name")
			}
			if len(ci.Chunks) == 0 {
				return fmt.Errorf("%s has no day chunks", args[0])
			}

			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.registry.Upsert(ci); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %q with %d days.\n", ci.Name, len(ci.Chunks))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Chat name (default: the name in the file)")
	return cmd
}

func newProcessCmd(opts *options) *cobra.Command {
	var chat string
	var count int
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Extract scenes from days that are not cached yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			ci, ok, err := a.registry.Find(chat)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no imported chat named %q", chat)
			}

			var todo []int
			for i := range ci.Chunks {
				if !a.cache.Has(ci.Name, i) {
					todo = append(todo, i)
				}
			}
			if count > 0 && len(todo) > count {
				todo = todo[:count]
			}
			out := cmd.OutOrStdout()
			if len(todo) == 0 {
				fmt.Fprintf(out, "All %d days of %q are processed.\n", len(ci.Chunks), ci.Name)
				return nil
			}

			proc, err := a.processor()
			if err != nil {
				return err
			}
			for n, idx := range todo {
				chunk := ci.Chunks[idx]
				batch := model.ChatBatch{Name: ci.Name, Start: idx, Chunks: []model.DayChunk{chunk}}
				if err := proc.ProcessChat(cmd.Context(), batch); err != nil {
					return fmt.Errorf("after %d of %d days: %w", n, len(todo), err)
				}
				fmt.Fprintf(out, "[%d/%d] %s\n", n+1, len(todo), chunk.Date)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&chat, "chat", "", "Chat to process")
	cmd.Flags().IntVar(&count, "count", 0, "Process at most this many days (0 = all)")
	_ = cmd.MarkFlagRequired("chat")
	return cmd
}

// settleFrames is enough frames for selection progress and scale easing to
// come to rest before a snapshot.
const settleFrames = 120

func newExportCmd(opts *options) *cobra.Command {
	var (
		chat, out, selected string
		zoom                float64
		width, height       int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the chat's graph to a PNG or SVG file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if width <= 0 || height <= 0 {
				return fmt.Errorf("invalid size %dx%d", width, height)
			}
			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.cache.LoadCache(cmd.Context(), chat)
			if err != nil {
				return err
			}
			frame, stats, err := renderFrame(chat, entries, frameOptions{
				Zoom:        zoom,
				Selected:    selected,
				Width:       float64(width),
				Height:      float64(height),
				FrustumSize: a.cfg.UI.FrustumSize,
			})
			if err != nil {
				return err
			}
			if err := export.SaveFrameSnapshot(export.SnapshotOptions{
				Path:  out,
				Chat:  chat,
				Frame: frame,
				Stats: stats,
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d nodes, %d edges)\n", out, stats.Nodes, stats.Edges)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&chat, "chat", "", "Chat to render")
	f.StringVar(&out, "out", "", "Output file; .png or .svg")
	f.StringVar(&selected, "select", "", "Entity to select before rendering")
	f.Float64Var(&zoom, "zoom", 1, "Zoom level")
	f.IntVar(&width, "width", 1600, "Image width in pixels")
	f.IntVar(&height, "height", 1000, "Image height in pixels")
	_ = cmd.MarkFlagRequired("chat")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

type frameOptions struct {
	Zoom          float64
	Selected      string
	Width, Height float64
	FrustumSize   float64
}

// renderFrame builds the graph for entries and settles it into one frame.
func renderFrame(chat string, entries []model.CacheEntry, o frameOptions) (scene.Frame, layout.Stats, error) {
	graph := store.NewGraphStore(events.NewBus())
	stats := graph.LoadGraph(chat, entries)
	if stats.Nodes == 0 {
		return scene.Frame{}, stats, export.ErrEmptyFrame
	}
	graph.SetZoomLevel(o.Zoom)
	if o.Selected != "" {
		if _, ok := graph.State().Nodes[o.Selected]; !ok {
			return scene.Frame{}, stats, fmt.Errorf("no entity %q in %s", o.Selected, chat)
		}
		graph.SelectGraphNode(o.Selected)
	}

	var engine anim.Engine
	for range settleFrames {
		engine.Step(graph.State())
	}

	cam := camera.ForState(o.Width, o.Height, graph.State())
	if o.FrustumSize > 0 {
		cam.FrustumSize = o.FrustumSize
	}
	frame := scene.Build(graph.State(), graph.Scenes(), cam, scene.Options{
		SceneColors: scene.SceneColors(graph.Scenes()),
	})
	return frame, stats, nil
}

func newMemoriesCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "memories",
		Short: "Print saved memories, newest day first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := a.analysis.LoadAnalysis()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(data)
			}

			dates := data.Dates()
			if len(dates) == 0 {
				fmt.Fprintln(out, "No memories saved yet.")
				return nil
			}
			for i := len(dates) - 1; i >= 0; i-- {
				fmt.Fprintln(out, dates[i])
				for _, s := range data.SavedMemories[dates[i]] {
					fmt.Fprintf(out, "  %s\n", s)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw analysis document")
	return cmd
}

func newDeleteCmd(opts *options) *cobra.Command {
	var chat string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a chat's import, cached scenes and recall progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := datasource.DeleteChat(a.cache, a.played, a.registry, chat); err != nil {
				return err
			}
			if a.cfg.LastChat == chat {
				a.saveLastChat("")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q.\n", chat)
			return nil
		},
	}
	cmd.Flags().StringVar(&chat, "chat", "", "Chat to delete")
	_ = cmd.MarkFlagRequired("chat")
	return cmd
}
