package reports

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"riskquery-backend/internal/cache"
	"riskquery-backend/internal/config"
)

// ErrNoFileFound means no candidate file exists for a category. Readiness
// probes surface it as "not ready" rather than as an internal error.
var ErrNoFileFound = errors.New("no report file found")

// FileRecord describes the file currently considered latest for a category.
// Records are immutable; a newer discovery supersedes, never mutates.
type FileRecord struct {
	Category    Category
	Path        string
	ProducedAt  time.Time
	Fingerprint string
}

// RemoteStore is the subset of the drive client the index needs: a name
// listing and a name→local-path resolver.
type RemoteStore interface {
	FileNames(ctx context.Context) ([]string, error)
	EnsureLocal(ctx context.Context, name string) (string, error)
}

// Index resolves the latest report file per category, with a bounded-TTL
// cache so rotation is picked up without re-discovering on every request.
type Index struct {
	localDir string
	remote   RemoteStore
	records  *cache.TTL[Category, FileRecord]
}

func NewIndex(cfg *config.Config, remote RemoteStore, records *cache.TTL[Category, FileRecord]) *Index {
	return &Index{
		localDir: cfg.LocalReportDir,
		remote:   remote,
		records:  records,
	}
}

// Resolve returns the latest FileRecord for category, from cache when fresh.
func (ix *Index) Resolve(ctx context.Context, category Category) (FileRecord, error) {
	if record, ok := ix.records.Get(category); ok {
		return record, nil
	}

	record, err := ix.discover(ctx, category)
	if err != nil {
		return FileRecord{}, err
	}

	ix.records.Set(category, record)
	return record, nil
}

// ClearCache drops all cached records, forcing rediscovery on the next call.
func (ix *Index) ClearCache() {
	ix.records.Clear()
}

type candidate struct {
	name       string
	path       string
	producedAt time.Time
}

func (ix *Index) discover(ctx context.Context, category Category) (FileRecord, error) {
	var candidates []candidate
	var err error

	// A configured local directory takes full priority: remote discovery is
	// skipped even when the local directory yields zero matches.
	if ix.localDir != "" {
		candidates, err = ix.localCandidates(category)
	} else {
		candidates, err = ix.remoteCandidates(ctx, category)
	}
	if err != nil {
		return FileRecord{}, err
	}
	if len(candidates) == 0 {
		return FileRecord{}, fmt.Errorf("category %s: %w", category, ErrNoFileFound)
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.producedAt.After(best.producedAt) {
			best = c
		} else if c.producedAt.Equal(best.producedAt) && c.name > best.name {
			// Deterministic tie-break: lexicographically larger name wins.
			best = c
		}
	}

	fingerprint, err := computeFingerprint(best.name, best.path)
	if err != nil {
		return FileRecord{}, err
	}

	return FileRecord{
		Category:    category,
		Path:        best.path,
		ProducedAt:  best.producedAt,
		Fingerprint: fingerprint,
	}, nil
}

func (ix *Index) localCandidates(category Category) ([]candidate, error) {
	entries, err := os.ReadDir(ix.localDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read report directory %s: %w", ix.localDir, err)
	}

	var candidates []candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		producedAt, ok := MatchName(category, entry.Name())
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{
			name:       entry.Name(),
			path:       filepath.Join(ix.localDir, entry.Name()),
			producedAt: producedAt,
		})
	}
	return candidates, nil
}

func (ix *Index) remoteCandidates(ctx context.Context, category Category) ([]candidate, error) {
	if ix.remote == nil {
		return nil, nil
	}

	// One listing (cached inside the client) serves all four categories.
	names, err := ix.remote.FileNames(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []candidate
	for _, name := range names {
		producedAt, ok := MatchName(category, name)
		if !ok {
			continue
		}
		localPath, err := ix.remote.EnsureLocal(ctx, name)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate{
			name:       name,
			path:       localPath,
			producedAt: producedAt,
		})
	}
	return candidates, nil
}

// computeFingerprint derives the cheap identity token for a file. Name, size
// and mtime stand in for content: any rotation changes at least one of them.
func computeFingerprint(name, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return fmt.Sprintf("%s:%d:%d", name, info.Size(), info.ModTime().Unix()), nil
}
