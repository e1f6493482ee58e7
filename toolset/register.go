package toolset

import (
	"fmt"

	"github.com/jonwraymond/tooldiscovery/index"
	"github.com/jonwraymond/tooldiscovery/search"
	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/jonwraymond/toolfoundation/model"
)

// Register adds every tool to idx and, when docs is non-nil, its
// documentation to docs.
func (ts *Toolset) Register(idx index.Index, docs *tooldoc.InMemoryStore) error {
	for _, def := range ts.Defs() {
		if err := idx.RegisterTool(def.Tool(), model.NewLocalBackend(Namespace)); err != nil {
			return fmt.Errorf("register %s: %w", def.Name, err)
		}
		if docs == nil {
			continue
		}
		entry := tooldoc.DocEntry{Summary: def.Summary, Notes: def.Description, Examples: def.Examples}
		if err := docs.RegisterDoc(ToolID(def.Name), entry); err != nil {
			return fmt.Errorf("register doc %s: %w", def.Name, err)
		}
	}
	return nil
}

// NewIndex returns a BM25-searchable index and doc store holding the tools.
func (ts *Toolset) NewIndex() (index.Index, *tooldoc.InMemoryStore, error) {
	idx := index.NewInMemoryIndex(index.IndexOptions{
		Searcher: search.NewBM25Searcher(search.BM25Config{}),
	})
	docs := tooldoc.NewInMemoryStore(tooldoc.StoreOptions{Index: idx})
	if err := ts.Register(idx, docs); err != nil {
		return nil, nil, err
	}
	return idx, docs, nil
}
