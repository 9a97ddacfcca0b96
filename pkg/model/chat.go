package model

import (
	"sort"
	"strconv"
	"strings"
)

// Message is one chat line.
type Message struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Author string `json:"author"`
	Text   string `json:"text"`
}

// DayChunk groups the messages of one calendar day.
type DayChunk struct {
	Date     string    `json:"date"`
	Messages []Message `json:"messages"`
}

// ChatImport is one imported chat with its day chunks.
type ChatImport struct {
	Name   string     `json:"name"`
	Chunks []DayChunk `json:"chunks"`
}

// ChatBatch asks the processing service to extract Chunks, which start at
// chunk index Start in the full chat.
type ChatBatch struct {
	Name   string     `json:"name"`
	Start  int        `json:"start"`
	Chunks []DayChunk `json:"chunks"`
}

// SceneEntity is one named thing extracted from a scene.
type SceneEntity struct {
	Text string `json:"text" validate:"required,min=1"`
	Type string `json:"type" validate:"required,min=1"`
}

// Scene is one memorable moment extracted from a day chunk.
type Scene struct {
	ID       int           `json:"id"`
	Memory   string        `json:"memory" validate:"required,min=1"`
	Entities []SceneEntity `json:"entities" validate:"required,min=1,dive"`
}

// CacheEntry is the extraction result for one day chunk.
type CacheEntry struct {
	Scenes []Scene `json:"scenes,omitempty" validate:"omitempty,dive"`
}

// AnalysisData holds saved memories keyed by YYYY-MM-DD.
type AnalysisData struct {
	SavedMemories map[string][]string `json:"saved_memories"`
}

// Dates returns the keys of SavedMemories in ascending order.
func (a AnalysisData) Dates() []string {
	dates := make([]string, 0, len(a.SavedMemories))
	for d := range a.SavedMemories {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// ScenesFromCache groups cache entities into layout scenes keyed by
// chat|chunkIndex. Entities of all scenes in a chunk share one key.
func ScenesFromCache(chat string, entries []CacheEntry) map[string][]EntityItem {
	out := make(map[string][]EntityItem, len(entries))
	for idx, entry := range entries {
		key := chunkKey(chat, idx)
		for _, sc := range entry.Scenes {
			for _, e := range sc.Entities {
				out[key] = append(out[key], EntityItem{
					ID:    strings.TrimSpace(e.Text),
					Text:  strings.TrimSpace(e.Text),
					Label: strings.ToLower(strings.TrimSpace(e.Type)),
				})
			}
		}
	}
	return out
}

func chunkKey(chat string, idx int) string {
	return chat + "|" + strconv.Itoa(idx)
}
