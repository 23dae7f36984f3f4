package source

import (
	"fmt"
	"log/slog"
	"sort"
)

// Registry holds the fetchers that passed registration validation. A
// fetcher that misbehaves during registration is excluded and logged
// without affecting the others.
type Registry struct {
	fetchers map[string]Fetcher
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		fetchers: make(map[string]Fetcher),
		logger:   logger.With("component", "registry"),
	}
}

// Register validates the fetcher's contract and adds it. Panics raised by
// the fetcher's own identity or metadata calls are contained here.
func (r *Registry) Register(f Fetcher) error {
	sourceID, err := probe(f)
	if err != nil {
		r.logger.Error("fetcher rejected", "error", err)
		return err
	}

	if _, dup := r.fetchers[sourceID]; dup {
		err := fmt.Errorf("duplicate source id %q", sourceID)
		r.logger.Error("fetcher rejected", "source", sourceID, "error", err)
		return err
	}

	r.fetchers[sourceID] = f
	r.logger.Info("fetcher registered", "source", sourceID)
	return nil
}

// probe exercises the identity and metadata members so a broken fetcher
// fails here instead of mid-job.
func probe(f Fetcher) (sourceID string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("fetcher panicked during registration: %v", rec)
		}
	}()

	if f == nil {
		return "", fmt.Errorf("nil fetcher")
	}

	sourceID = f.SourceID()
	if sourceID == "" {
		return "", fmt.Errorf("empty source id")
	}

	meta := f.Metadata()
	if meta.DisplayName == "" {
		return "", fmt.Errorf("source %q: empty display name", sourceID)
	}
	if len(meta.SupportedFormats) == 0 {
		return "", fmt.Errorf("source %q: no supported formats", sourceID)
	}

	return sourceID, nil
}

// Get returns a registered fetcher by source id.
func (r *Registry) Get(sourceID string) (Fetcher, bool) {
	f, ok := r.fetchers[sourceID]
	return f, ok
}

// SourceIDs lists registered ids in alphabetical order.
func (r *Registry) SourceIDs() []string {
	ids := make([]string, 0, len(r.fetchers))
	for id := range r.fetchers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
