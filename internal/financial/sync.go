package financial

import (
	"context"
	"path/filepath"
	"sync"

	"TdxBridge/internal/logging"
	"TdxBridge/internal/model"
)

// Fetcher is the part of the provider the Syncer needs.
type Fetcher interface {
	ListRemoteFiles(ctx context.Context) ([]model.RemoteFile, error)
	Fetch(ctx context.Context, dir, filename string) error
}

// Syncer downloads remote report archives missing from the Store.
type Syncer struct {
	src    Fetcher
	store  *Store
	logger *logging.Logger

	mu sync.Mutex
}

// NewSyncer creates a Syncer.
func NewSyncer(src Fetcher, store *Store, logger *logging.Logger) *Syncer {
	return &Syncer{src: src, store: store, logger: logger}
}

// Synchronize runs one pass. Per-file failures land in Missing; list and
// cache directory failures land in Error. Passes never overlap.
func (s *Syncer) Synchronize(ctx context.Context) model.SyncResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := model.SyncResult{Missing: []string{}}

	remote, err := s.src.ListRemoteFiles(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list remote report files")
		result.Error = err.Error()
		return result
	}
	result.TotalRemote = len(remote)
	if len(remote) == 0 {
		s.logger.Warn().Msg("remote report list is empty")
		return result
	}

	if err := s.store.Ensure(); err != nil {
		s.logger.Error().Err(err).Msg("cannot prepare cache directory")
		result.Error = err.Error()
		return result
	}

	for i, f := range remote {
		name := filepath.Base(f.Filename)
		if f.Filename == "" || name == "." || name == string(filepath.Separator) {
			continue
		}
		if s.store.Has(name) {
			continue
		}
		if err := ctx.Err(); err != nil {
			result.Missing = append(result.Missing, pending(remote[i:], s.store)...)
			result.Error = err.Error()
			s.logger.Warn().Err(err).Int("remaining", len(remote)-i).Msg("sync cancelled")
			break
		}
		if err := s.src.Fetch(ctx, s.store.Dir(), name); err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("download failed")
			result.Missing = append(result.Missing, name)
			continue
		}
		s.logger.Info().Str("file", name).Msg("downloaded report archive")
		result.Downloaded++
	}

	s.logger.Info().
		Int("downloaded", result.Downloaded).
		Int("total_remote", result.TotalRemote).
		Int("missing", len(result.Missing)).
		Msg("financial sync finished")
	return result
}

// pending lists the files not yet cached among remote.
func pending(remote []model.RemoteFile, store *Store) []string {
	var names []string
	for _, f := range remote {
		name := filepath.Base(f.Filename)
		if f.Filename == "" || store.Has(name) {
			continue
		}
		names = append(names, name)
	}
	return names
}
