package datasource

import (
	"errors"
	"fmt"
	"os"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/ember/pkg/model"
)

// AnalysisFile persists saved memories in analysis.json.
type AnalysisFile struct {
	mu   sync.Mutex
	path string
}

// NewAnalysisFile returns the analysis document under layout.
func NewAnalysisFile(layout Layout) *AnalysisFile {
	return &AnalysisFile{path: layout.AnalysisPath()}
}

// LoadAnalysis reads the document. A missing file is an empty document.
func (f *AnalysisFile) LoadAnalysis() (model.AnalysisData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return model.AnalysisData{SavedMemories: map[string][]string{}}, nil
	}
	if err != nil {
		return model.AnalysisData{}, fmt.Errorf("reading analysis file: %w", err)
	}
	var out model.AnalysisData
	if err := json.Unmarshal(data, &out); err != nil {
		return model.AnalysisData{}, fmt.Errorf("parsing analysis JSON: %w", err)
	}
	if out.SavedMemories == nil {
		out.SavedMemories = map[string][]string{}
	}
	return out, nil
}

// SaveAnalysis replaces the document.
func (f *AnalysisFile) SaveAnalysis(a model.AnalysisData) error {
	if a.SavedMemories == nil {
		a.SavedMemories = map[string][]string{}
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding analysis: %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := writeFileAtomic(f.path, data); err != nil {
		return fmt.Errorf("writing analysis file: %w", err)
	}
	return nil
}

// ImportsRegistry persists imported chats in imports/chat_imports.json.
type ImportsRegistry struct {
	mu   sync.Mutex
	path string
}

// NewImportsRegistry returns the registry under layout.
func NewImportsRegistry(layout Layout) *ImportsRegistry {
	return &ImportsRegistry{path: layout.ImportsPath()}
}

// LoadImports returns every imported chat. A missing file is an empty list.
func (r *ImportsRegistry) LoadImports() ([]model.ChatImport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked()
}

func (r *ImportsRegistry) loadLocked() ([]model.ChatImport, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading imports file: %w", err)
	}
	var imports []model.ChatImport
	if err := json.Unmarshal(data, &imports); err != nil {
		return nil, fmt.Errorf("parsing imports JSON: %w", err)
	}
	return imports, nil
}

// SaveImports replaces the registry.
func (r *ImportsRegistry) SaveImports(imports []model.ChatImport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(imports)
}

func (r *ImportsRegistry) saveLocked(imports []model.ChatImport) error {
	if imports == nil {
		imports = []model.ChatImport{}
	}
	data, err := json.MarshalIndent(imports, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding imports: %w", err)
	}
	if err := writeFileAtomic(r.path, data); err != nil {
		return fmt.Errorf("writing imports file: %w", err)
	}
	return nil
}

// Find returns the import named name.
func (r *ImportsRegistry) Find(name string) (model.ChatImport, bool, error) {
	imports, err := r.LoadImports()
	if err != nil {
		return model.ChatImport{}, false, err
	}
	for _, ci := range imports {
		if ci.Name == name || model.SanitizeChatName(ci.Name) == name {
			return ci, true, nil
		}
	}
	return model.ChatImport{}, false, nil
}

// Upsert adds ci or replaces the import with the same name.
func (r *ImportsRegistry) Upsert(ci model.ChatImport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	imports, err := r.loadLocked()
	if err != nil {
		return err
	}
	for i := range imports {
		if imports[i].Name == ci.Name {
			imports[i] = ci
			return r.saveLocked(imports)
		}
	}
	return r.saveLocked(append(imports, ci))
}

// Remove drops the import named name. It reports whether one was removed.
func (r *ImportsRegistry) Remove(name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	imports, err := r.loadLocked()
	if err != nil {
		return false, err
	}
	kept := imports[:0]
	for _, ci := range imports {
		if ci.Name != name {
			kept = append(kept, ci)
		}
	}
	if len(kept) == len(imports) {
		return false, nil
	}
	return true, r.saveLocked(kept)
}

// PlayedClearer forgets a chat's played rounds.
type PlayedClearer interface {
	ClearPlayed(chat string) error
}

// DeleteChat removes a chat's cache directory, its played round ids and its
// registry entry. All three are attempted; the errors are joined.
func DeleteChat(cache *ChatCache, played PlayedClearer, registry *ImportsRegistry, chat string) error {
	var errs []error
	if err := cache.Delete(chat); err != nil {
		errs = append(errs, err)
	}
	if played != nil {
		if err := played.ClearPlayed(chat); err != nil {
			errs = append(errs, fmt.Errorf("clearing played rounds: %w", err))
		}
	}
	if registry != nil {
		if _, err := registry.Remove(chat); err != nil {
			errs = append(errs, fmt.Errorf("removing import: %w", err))
		}
	}
	return errors.Join(errs...)
}
