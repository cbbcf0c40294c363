package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"picfinder/internal/database"
	"picfinder/internal/logging"
	"picfinder/internal/query"
	"picfinder/internal/vision"
)

// ErrBusy is returned when a root already has an indexing run or a search
// in flight. Callers retry later; nothing is queued.
var ErrBusy = errors.New("indexer: operation already in progress for this folder")

// StageFactory builds the inference stages for one run from its
// configuration. It is called once per run, after the configuration has
// been validated.
type StageFactory func(cfg vision.IndexConfig) (vision.Stages, error)

// rootState tracks what is currently happening to one folder's catalog.
type rootState struct {
	indexing  bool
	searching bool
	pipeline  *Pipeline
	summary   *Summary
	runErr    error
}

// Manager serializes catalog access per folder: at most one indexing run or
// one search at a time, never both. Concurrent requests for the same folder
// are rejected with ErrBusy.
type Manager struct {
	factory StageFactory
	opts    Options

	mu    sync.Mutex
	roots map[string]*rootState
}

// NewManager creates a manager. factory must not be nil.
func NewManager(factory StageFactory, opts Options) *Manager {
	return &Manager{
		factory: factory,
		opts:    opts,
		roots:   make(map[string]*rootState),
	}
}

func (m *Manager) state(root string) *rootState {
	st, ok := m.roots[root]
	if !ok {
		st = &rootState{}
		m.roots[root] = st
	}
	return st
}

// StartIndex validates cfg and starts an indexing run over root in the
// background, returning the run ID. ErrBusy is returned if the folder is
// already being indexed or searched.
func (m *Manager) StartIndex(ctx context.Context, root string, cfg vision.IndexConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	root = filepath.Clean(root)

	stages, err := m.factory(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to prepare inference stages: %w", err)
	}

	// The run outlives the call that started it. HTTP request contexts are
	// canceled as soon as the handler returns, so the store and the run
	// must not inherit that cancellation.
	ctx = context.WithoutCancel(ctx)

	store, err := database.Open(ctx, filepath.Join(root, database.DefaultFileName))
	if err != nil {
		return "", fmt.Errorf("failed to open catalog for %s: %w", root, err)
	}

	m.mu.Lock()
	st := m.state(root)
	if st.indexing || st.searching {
		m.mu.Unlock()
		store.Close()
		return "", ErrBusy
	}

	pipeline := NewPipeline(store, cfg, stages, m.opts)
	st.indexing = true
	st.pipeline = pipeline
	st.summary = nil
	st.runErr = nil
	m.mu.Unlock()

	go m.run(ctx, root, store, pipeline, cfg.FullRebuild)

	return pipeline.RunID(), nil
}

// run executes one indexing run to completion and records its outcome.
func (m *Manager) run(ctx context.Context, root string, store *database.Store, pipeline *Pipeline, fullRebuild bool) {
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error("failed to close catalog for %s: %v", root, err)
		}
	}()

	summary, err := func() (*Summary, error) {
		plan, err := NewSynchronizer(root).Plan(ctx, store, fullRebuild)
		if err != nil {
			return nil, fmt.Errorf("failed to plan run for %s: %w", root, err)
		}
		return pipeline.Run(ctx, plan)
	}()
	if err != nil {
		logging.Error("Indexing %s failed: %v", root, err)
	}

	m.mu.Lock()
	st := m.state(root)
	st.indexing = false
	st.summary = summary
	st.runErr = err
	m.mu.Unlock()
}

// Progress reports the latest snapshot for root. ok is false when the
// folder has never been indexed this process.
func (m *Manager) Progress(root string) (Progress, bool) {
	root = filepath.Clean(root)

	m.mu.Lock()
	defer m.mu.Unlock()
	st, found := m.roots[root]
	if !found || st.pipeline == nil {
		return Progress{}, false
	}
	return st.pipeline.Progress(), true
}

// LastRun returns the outcome of the most recently finished run for root.
func (m *Manager) LastRun(root string) (*Summary, error) {
	root = filepath.Clean(root)

	m.mu.Lock()
	defer m.mu.Unlock()
	st, found := m.roots[root]
	if !found {
		return nil, nil
	}
	return st.summary, st.runErr
}

// Search runs one query against root's catalog. It is rejected with
// ErrBusy while the folder is being indexed or another search is running.
func (m *Manager) Search(ctx context.Context, root, text string) ([]database.SearchResult, error) {
	var results []database.SearchResult
	err := m.withReadSession(ctx, root, func(ctx context.Context, store *database.Store) error {
		var err error
		results, err = query.NewEngine(store).Search(ctx, text)
		return err
	})
	return results, err
}

// History returns root's run log, newest first. Same busy contract as
// Search.
func (m *Manager) History(ctx context.Context, root string) ([]database.HistoryEntry, error) {
	var entries []database.HistoryEntry
	err := m.withReadSession(ctx, root, func(ctx context.Context, store *database.Store) error {
		var err error
		entries, err = store.History(ctx)
		return err
	})
	return entries, err
}

// withReadSession opens root's catalog for one read-side operation,
// rejecting it with ErrBusy while the folder is being indexed or another
// read session is open.
func (m *Manager) withReadSession(ctx context.Context, root string, fn func(context.Context, *database.Store) error) error {
	root = filepath.Clean(root)

	m.mu.Lock()
	st := m.state(root)
	if st.indexing || st.searching {
		m.mu.Unlock()
		return ErrBusy
	}
	st.searching = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		st.searching = false
		m.mu.Unlock()
	}()

	store, err := database.Open(ctx, filepath.Join(root, database.DefaultFileName))
	if err != nil {
		return fmt.Errorf("failed to open catalog for %s: %w", root, err)
	}
	defer store.Close()

	return fn(ctx, store)
}
