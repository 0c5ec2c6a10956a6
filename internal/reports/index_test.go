package reports

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"riskquery-backend/internal/cache"
	"riskquery-backend/internal/config"
)

func writeReport(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func newLocalIndex(t *testing.T, dir string, ttl time.Duration) *Index {
	t.Helper()
	cfg := &config.Config{LocalReportDir: dir, FileIndexTTL: ttl}
	return NewIndex(cfg, nil, cache.NewTTL[Category, FileRecord](ttl))
}

func TestResolveSelectsLatestTimestamp(t *testing.T) {
	dir := t.TempDir()
	writeReport(t, dir, "RS_Action_Lvl_20240101_010000.txt", "User ID\nA\n")
	writeReport(t, dir, "RS_Action_Lvl_20240102_020000.txt", "User ID\nB\n")
	writeReport(t, dir, "unrelated.txt", "ignored")

	ix := newLocalIndex(t, dir, time.Minute)
	record, err := ix.Resolve(context.Background(), CategoryActions)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if filepath.Base(record.Path) != "RS_Action_Lvl_20240102_020000.txt" {
		t.Errorf("expected latest file, got %s", record.Path)
	}
	want := time.Date(2024, 1, 2, 2, 0, 0, 0, time.Local)
	if !record.ProducedAt.Equal(want) {
		t.Errorf("expected ProducedAt %v, got %v", want, record.ProducedAt)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeReport(t, dir, "RS_Action_Lvl_20240101_010000.txt", "h\nrow\n")

	ix := newLocalIndex(t, dir, time.Minute)
	first, err := ix.Resolve(context.Background(), CategoryActions)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	ix.ClearCache()
	second, err := ix.Resolve(context.Background(), CategoryActions)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if first.Path != second.Path {
		t.Errorf("resolution must be deterministic: %s vs %s", first.Path, second.Path)
	}
}

func TestFingerprintStableForUnchangedFile(t *testing.T) {
	dir := t.TempDir()
	writeReport(t, dir, "RS_Action_Lvl_20240101_010000.txt", "User ID\nA\n")

	ix := newLocalIndex(t, dir, time.Minute)
	first, err := ix.Resolve(context.Background(), CategoryActions)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	ix.ClearCache()
	second, err := ix.Resolve(context.Background(), CategoryActions)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if first.Fingerprint != second.Fingerprint {
		t.Errorf("fingerprint changed without file change: %s vs %s", first.Fingerprint, second.Fingerprint)
	}
}

func TestFingerprintChangesWithSize(t *testing.T) {
	dir := t.TempDir()
	name := "RS_Action_Lvl_20240101_010000.txt"
	writeReport(t, dir, name, "User ID\nA\n")

	ix := newLocalIndex(t, dir, time.Minute)
	before, err := ix.Resolve(context.Background(), CategoryActions)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	writeReport(t, dir, name, "User ID\nA\nB\nC\n")
	ix.ClearCache()

	after, err := ix.Resolve(context.Background(), CategoryActions)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if before.Fingerprint == after.Fingerprint {
		t.Error("fingerprint must change when file size changes")
	}
}

func TestResolveCachesUntilTTL(t *testing.T) {
	dir := t.TempDir()
	writeReport(t, dir, "RS_Action_Lvl_20240101_010000.txt", "User ID\nA\n")

	ix := newLocalIndex(t, dir, time.Minute)
	first, err := ix.Resolve(context.Background(), CategoryActions)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// A newer file appears but the cached record is still fresh.
	writeReport(t, dir, "RS_Action_Lvl_20240202_020000.txt", "User ID\nB\n")

	cached, err := ix.Resolve(context.Background(), CategoryActions)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cached.Path != first.Path {
		t.Error("expected cached record inside TTL")
	}

	ix.ClearCache()
	fresh, err := ix.Resolve(context.Background(), CategoryActions)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if filepath.Base(fresh.Path) != "RS_Action_Lvl_20240202_020000.txt" {
		t.Errorf("expected rediscovery after cache clear, got %s", fresh.Path)
	}
}

func TestResolveNoCandidates(t *testing.T) {
	ix := newLocalIndex(t, t.TempDir(), time.Minute)

	_, err := ix.Resolve(context.Background(), CategoryPerms)
	if !errors.Is(err, ErrNoFileFound) {
		t.Errorf("expected ErrNoFileFound, got %v", err)
	}
}

// failingRemote fails the test if any remote call is made.
type failingRemote struct {
	t *testing.T
}

func (f *failingRemote) FileNames(context.Context) ([]string, error) {
	f.t.Error("remote listing must not be called when a local directory is configured")
	return nil, nil
}

func (f *failingRemote) EnsureLocal(_ context.Context, name string) (string, error) {
	f.t.Errorf("remote download of %s must not happen when a local directory is configured", name)
	return "", nil
}

func TestLocalDirectorySkipsRemoteEntirely(t *testing.T) {
	// Empty local directory: resolution fails rather than falling back.
	cfg := &config.Config{LocalReportDir: t.TempDir()}
	ix := NewIndex(cfg, &failingRemote{t: t}, cache.NewTTL[Category, FileRecord](time.Minute))

	_, err := ix.Resolve(context.Background(), CategoryActions)
	if !errors.Is(err, ErrNoFileFound) {
		t.Errorf("expected ErrNoFileFound, got %v", err)
	}
}

// fakeRemote serves a fixed listing backed by local temp files.
type fakeRemote struct {
	names map[string]string // name -> local path
	lists int
}

func (f *fakeRemote) FileNames(context.Context) ([]string, error) {
	f.lists++
	names := make([]string, 0, len(f.names))
	for name := range f.names {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeRemote) EnsureLocal(_ context.Context, name string) (string, error) {
	path, ok := f.names[name]
	if !ok {
		return "", errors.New("unexpected download")
	}
	return path, nil
}

func TestRemoteDiscovery(t *testing.T) {
	dir := t.TempDir()
	older := writeReport(t, dir, "RS_Perm_Lvl_20240101_010000.txt", "User ID\nA\n")
	newer := writeReport(t, dir, "RS_Perm_Lvl_20240103_030000.txt", "User ID\nB\n")

	remote := &fakeRemote{names: map[string]string{
		"RS_Perm_Lvl_20240101_010000.txt": older,
		"RS_Perm_Lvl_20240103_030000.txt": newer,
		"unrelated.bin":                   older,
	}}

	cfg := &config.Config{} // no local directory
	ix := NewIndex(cfg, remote, cache.NewTTL[Category, FileRecord](time.Minute))

	record, err := ix.Resolve(context.Background(), CategoryPerms)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if record.Path != newer {
		t.Errorf("expected newest remote file, got %s", record.Path)
	}
}
