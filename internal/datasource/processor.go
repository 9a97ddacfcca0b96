package datasource

import (
	"context"
	"fmt"

	"github.com/vanderheijden86/ember/pkg/debug"
	"github.com/vanderheijden86/ember/pkg/metrics"
	"github.com/vanderheijden86/ember/pkg/model"
)

// Extractor turns one day chunk into scenes.
type Extractor interface {
	Extract(ctx context.Context, chunk model.DayChunk) (model.CacheEntry, error)
}

// Processor is the chat processing service: it extracts uncached chunks and
// serves the cache back.
type Processor struct {
	cache     *ChatCache
	extractor Extractor
}

// NewProcessor wires a cache to an extractor.
func NewProcessor(cache *ChatCache, extractor Extractor) *Processor {
	return &Processor{cache: cache, extractor: extractor}
}

// ProcessChat extracts every chunk of batch that is not cached yet, storing
// each result at its global index. Chunks are handled in order and the first
// failure stops the batch; chunks cached before it stay cached.
func (p *Processor) ProcessChat(ctx context.Context, batch model.ChatBatch) error {
	for i, chunk := range batch.Chunks {
		idx := batch.Start + i
		if p.cache.Has(batch.Name, idx) {
			metrics.ChunkCacheHits.Inc()
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		entry, err := p.extract(ctx, chunk)
		if err != nil {
			return fmt.Errorf("extracting chunk %d of %s: %w", idx, batch.Name, err)
		}
		if err := p.cache.Write(batch.Name, idx, entry); err != nil {
			return fmt.Errorf("caching chunk %d of %s: %w", idx, batch.Name, err)
		}
		debug.Log("processor: cached chunk %d of %s (%d scenes)", idx, batch.Name, len(entry.Scenes))
	}
	return nil
}

func (p *Processor) extract(ctx context.Context, chunk model.DayChunk) (model.CacheEntry, error) {
	defer metrics.Timer(metrics.ChunkExtraction)()
	entry, err := p.extractor.Extract(ctx, chunk)
	if err != nil {
		return model.CacheEntry{}, err
	}
	metrics.ChunkExtractions.Inc()
	return entry, nil
}

// LoadCache returns the cached entries for chat.
func (p *Processor) LoadCache(ctx context.Context, chat string) ([]model.CacheEntry, error) {
	return p.cache.LoadCache(ctx, chat)
}
