package concept

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/poiesic/ontoquery/core"
)

// Mappings holds named phenotype mappings, each a concept id to display
// term table.
type Mappings struct {
	byName map[string]map[core.ConceptID]string
}

// NewMappings wraps already inverted mappings.
func NewMappings(m map[string]map[core.ConceptID]string) *Mappings {
	if m == nil {
		m = map[string]map[core.ConceptID]string{}
	}
	return &Mappings{byName: m}
}

// Has reports whether name is a loaded mapping.
func (m *Mappings) Has(name string) bool {
	if m == nil {
		return false
	}
	_, ok := m.byName[name]
	return ok
}

// Concepts returns every concept id in the named mapping, sorted.
// Unknown names return nil.
func (m *Mappings) Concepts(name string) []core.ConceptID {
	if m == nil {
		return nil
	}
	terms, ok := m.byName[name]
	if !ok {
		return nil
	}
	ids := make([]core.ConceptID, 0, len(terms))
	for id := range terms {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Term returns the display term a mapping assigns to a concept.
func (m *Mappings) Term(name string, id core.ConceptID) (string, bool) {
	if m == nil {
		return "", false
	}
	term, ok := m.byName[name][id]
	return term, ok
}

// Names returns the loaded mapping names, sorted.
func (m *Mappings) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.byName))
	for name := range m.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ParseMapping inverts a term to id-list JSON object into id to term.
// List entries may be "CUI\tPREF\tSTY"; only the CUI is kept. When a
// concept appears under several terms the last term in key order wins.
func ParseMapping(data []byte) (map[core.ConceptID]string, error) {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMapping, err)
	}
	terms := make([]string, 0, len(raw))
	for term := range raw {
		terms = append(terms, term)
	}
	slices.Sort(terms)

	inverted := make(map[core.ConceptID]string)
	for _, term := range terms {
		for _, entry := range raw[term] {
			cui, _, _ := strings.Cut(entry, "\t")
			if cui = strings.TrimSpace(cui); cui != "" {
				inverted[core.ConceptID(cui)] = term
			}
		}
	}
	return inverted, nil
}

// LoadMappingsDir loads every *.json file in dir as a mapping named by
// the file's base name. Files load concurrently.
func LoadMappingsDir(ctx context.Context, dir string, opts ...LoaderOption) (*Mappings, error) {
	if dir == "" {
		return NewMappings(nil), nil
	}
	l, err := newLoader(opts)
	if err != nil {
		return nil, err
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	byName := make(map[string]map[core.ConceptID]string, len(files))
	jobs := make([]func() error, len(files))
	for i, file := range files {
		jobs[i] = func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			m, err := ParseMapping(data)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(file), err)
			}
			name := strings.TrimSuffix(filepath.Base(file), ".json")
			mu.Lock()
			byName[name] = m
			mu.Unlock()
			l.logger.Debug("loaded mapping", "name", name, "concepts", len(m))
			return nil
		}
	}
	if err := l.run(jobs); err != nil {
		return nil, err
	}

	l.logger.Info("loaded phenotype mappings", "dir", dir, "count", len(byName))
	return NewMappings(byName), nil
}
