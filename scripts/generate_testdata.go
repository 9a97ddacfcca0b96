//go:build ignore

// generate_testdata.go seeds a data directory with synthetic chats whose
// scenes are already cached, so the TUI and export run without an API key.
// Usage: go run scripts/generate_testdata.go [data-dir]
//
// Creates, under data-dir (default testdata/demo):
//
//	imports/chat_imports.json   (four chats)
//	cache/<chat>/<index>.json   (one scene file per day)
package main

import (
	"fmt"
	"os"

	"github.com/vanderheijden86/ember/internal/datasource"
	"github.com/vanderheijden86/ember/pkg/testutil"
)

type datasetSpec struct {
	name  string
	build func(*testutil.Generator) testutil.Fixture
}

var datasets = []datasetSpec{
	{"demo-star", func(g *testutil.Generator) testutil.Fixture { return g.Star(12) }},
	{"demo-chain", func(g *testutil.Generator) testutil.Fixture { return g.Chain(20) }},
	{"demo-year", func(g *testutil.Generator) testutil.Fixture { return g.Random(365, 2, 150, 4) }},
	{"demo-huge", func(g *testutil.Generator) testutil.Fixture { return g.Random(1000, 3, 600, 5) }},
}

func main() {
	dir := "testdata/demo"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}
	layout := datasource.NewLayout(dir)
	cache := datasource.NewChatCache(layout)
	registry := datasource.NewImportsRegistry(layout)

	for i, ds := range datasets {
		gen := testutil.New(testutil.GeneratorConfig{Seed: uint64(i + 1), Chat: ds.name})
		f := ds.build(gen)
		fmt.Printf("Generating %s: %s...\n", ds.name, f.Description)

		if err := registry.Upsert(f.Import); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to register %s: %v\n", ds.name, err)
			os.Exit(1)
		}
		for idx, entry := range f.Entries {
			if err := cache.Write(ds.name, idx, entry); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to cache %s day %d: %v\n", ds.name, idx, err)
				os.Exit(1)
			}
		}
		fmt.Printf("  Written %d days\n", len(f.Entries))
	}

	fmt.Println("\nDone! Open with: ember --data-dir", dir)
}
