package wallpaper

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/waybg/waybg/config"
	"github.com/waybg/waybg/layer"
	"github.com/waybg/waybg/source"
	"github.com/waybg/waybg/state"
	"github.com/waybg/waybg/watcher"
)

func writeEmptyFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0o644); err != nil {
			t.Fatalf("WriteFile(%s): %v", n, err)
		}
	}
}

func newResumeStore(t *testing.T, output, path string) *state.Store {
	t.Helper()
	s, err := state.OpenAt(filepath.Join(t.TempDir(), "state.toml"))
	if err != nil {
		t.Fatalf("OpenAt: %v", err)
	}
	if path != "" {
		if err := s.SetCurrent(output, path); err != nil {
			t.Fatalf("SetCurrent: %v", err)
		}
	}
	return s
}

func TestLoadImagesDirectoryResumesPersistedImage(t *testing.T) {
	dir := t.TempDir()
	writeEmptyFiles(t, dir, "a.png", "b.png", "c.png")

	store := newResumeStore(t, "DP-1", filepath.Join(dir, "b.png"))

	entry := config.Entry{
		Output:         "DP-1",
		Source:         config.PathSource{Path: dir},
		SamplingMethod: config.Alphanumeric,
	}
	w := New("DP-1", entry, Deps{StateStore: store})

	if err := w.LoadImages(); err != nil {
		t.Fatalf("LoadImages: %v", err)
	}

	if w.currentPath != filepath.Join(dir, "b.png") {
		t.Fatalf("currentPath = %q, want b.png", w.currentPath)
	}
	want := []string{filepath.Join(dir, "c.png"), filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")}
	if len(w.imageQueue) != len(want) {
		t.Fatalf("imageQueue = %v, want %v", w.imageQueue, want)
	}
	for i, p := range want {
		if w.imageQueue[i] != p {
			t.Fatalf("imageQueue[%d] = %q, want %q", i, w.imageQueue[i], p)
		}
	}
}

func TestRotateAdvancesThroughRing(t *testing.T) {
	dir := t.TempDir()
	writeEmptyFiles(t, dir, "a.png", "b.png", "c.png")
	store := newResumeStore(t, "DP-1", filepath.Join(dir, "b.png"))

	entry := config.Entry{
		Output:         "DP-1",
		Source:         config.PathSource{Path: dir},
		SamplingMethod: config.Alphanumeric,
	}
	w := New("DP-1", entry, Deps{StateStore: store})
	if err := w.LoadImages(); err != nil {
		t.Fatalf("LoadImages: %v", err)
	}

	wantSequence := []string{"c.png", "a.png", "b.png"}
	for i, want := range wantSequence {
		if err := w.Rotate(); err != nil {
			t.Fatalf("Rotate #%d: %v", i, err)
		}
		got := filepath.Base(w.currentPath)
		if got != want {
			t.Fatalf("after rotate #%d: currentPath = %q, want %q", i, got, want)
		}
	}
}

func TestHandleWatchEventCreateAppendsToFront(t *testing.T) {
	dir := t.TempDir()
	writeEmptyFiles(t, dir, "a.png", "b.png")

	entry := config.Entry{Output: "DP-1", Source: config.PathSource{Path: dir}}
	w := New("DP-1", entry, Deps{})
	w.imageQueue = []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")}

	w.HandleWatchEvent(watcher.Event{Output: "DP-1", Kind: watcher.Create, Path: filepath.Join(dir, "c.png")})

	want := []string{"c.png", "a.png", "b.png"}
	if len(w.imageQueue) != len(want) {
		t.Fatalf("imageQueue = %v, want basenames %v", w.imageQueue, want)
	}
	for i, name := range want {
		if filepath.Base(w.imageQueue[i]) != name {
			t.Fatalf("imageQueue[%d] = %q, want %q", i, w.imageQueue[i], name)
		}
	}
}

func TestHandleWatchEventRemoveDropsPath(t *testing.T) {
	dir := t.TempDir()
	entry := config.Entry{Output: "DP-1", Source: config.PathSource{Path: dir}}
	w := New("DP-1", entry, Deps{})
	w.imageQueue = []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png"), filepath.Join(dir, "c.png")}

	w.HandleWatchEvent(watcher.Event{Output: "DP-1", Kind: watcher.Remove, Path: filepath.Join(dir, "b.png")})

	if len(w.imageQueue) != 2 {
		t.Fatalf("imageQueue = %v, want 2 entries", w.imageQueue)
	}
	for _, p := range w.imageQueue {
		if filepath.Base(p) == "b.png" {
			t.Fatal("b.png should have been removed from the queue")
		}
	}
}

func TestDrawColorSourceCommitsToSurface(t *testing.T) {
	black := source.RGB01{0, 0, 0}
	entry := config.Entry{
		Output: "DP-1",
		Source: config.ColorSourceConfig{Single: &black},
	}
	w := New("DP-1", entry, Deps{})
	if err := w.LoadImages(); err != nil {
		t.Fatalf("LoadImages: %v", err)
	}

	mgr := layer.NewSoftwareManager([]layer.Output{
		{Name: "DP-1", PhysicalWidth: 4, PhysicalHeight: 4, FractionalScale120: 120},
	})
	surf, ok := mgr.Surface("DP-1")
	if !ok {
		t.Fatal("expected a surface for DP-1")
	}

	w.Draw([]layer.Surface{surf})

	soft := surf.(*layer.SoftwareSurface)
	if soft.Commits() != 1 {
		t.Fatalf("Commits() = %d, want 1", soft.Commits())
	}
	buf, ok := soft.LastCommitted()
	if !ok {
		t.Fatal("expected a committed buffer")
	}
	if len(buf.Bytes()) != 4*4*4 {
		t.Fatalf("len(Bytes()) = %d, want %d", len(buf.Bytes()), 4*4*4)
	}
	if w.IsDirty() {
		t.Fatal("expected dirty flag cleared after Draw")
	}
}

func TestUpdateConfigSourceChangeTriggersReload(t *testing.T) {
	red := source.RGB01{1, 0, 0}
	blue := source.RGB01{0, 0, 1}

	entry := config.Entry{Output: "DP-1", Source: config.ColorSourceConfig{Single: &red}}
	w := New("DP-1", entry, Deps{})
	if err := w.LoadImages(); err != nil {
		t.Fatalf("LoadImages: %v", err)
	}

	newEntry := config.Entry{Output: "DP-1", Source: config.ColorSourceConfig{Single: &blue}}
	if err := w.UpdateConfig(newEntry); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}

	if w.colorSource == nil {
		t.Fatal("expected colorSource to be rebuilt after a source change")
	}
}

func TestReleaseClearsState(t *testing.T) {
	dir := t.TempDir()
	writeEmptyFiles(t, dir, "a.png")
	entry := config.Entry{Output: "DP-1", Source: config.PathSource{Path: dir}}
	w := New("DP-1", entry, Deps{})
	if err := w.LoadImages(); err != nil {
		t.Fatalf("LoadImages: %v", err)
	}

	w.Release()

	if w.currentPath != "" || w.imageQueue != nil {
		t.Fatalf("expected state cleared after Release, got currentPath=%q imageQueue=%v", w.currentPath, w.imageQueue)
	}
}

func TestWalkDirectorySyncOneLevelDoesNotDescendIntoSymlinkedDirectory(t *testing.T) {
	root := t.TempDir()
	real := filepath.Join(root, "real")
	if err := os.Mkdir(real, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	writeEmptyFiles(t, real, "a.png")
	if err := os.Symlink(real, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	paths, err := walkDirectorySync(root, false)
	if err != nil {
		t.Fatalf("walkDirectorySync: %v", err)
	}
	for _, p := range paths {
		if filepath.Base(filepath.Dir(p)) == "link" {
			t.Fatal("one-level walk should not descend into a symlinked directory")
		}
	}
}

func TestWalkDirectorySyncRecursiveFollowsSymlinkedDirectory(t *testing.T) {
	root := t.TempDir()
	real := filepath.Join(root, "real")
	if err := os.Mkdir(real, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	writeEmptyFiles(t, real, "a.png")
	link := filepath.Join(root, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	paths, err := walkDirectorySync(root, true)
	if err != nil {
		t.Fatalf("walkDirectorySync: %v", err)
	}

	found := false
	for _, p := range paths {
		if p == filepath.Join(link, "a.png") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the recursive walk to follow the symlinked directory, got %v", paths)
	}
}

func TestWalkDirectorySyncRecursiveSymlinkCycleTerminates(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	writeEmptyFiles(t, sub, "a.png")
	if err := os.Symlink(root, filepath.Join(sub, "cycle")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	done := make(chan struct{})
	go func() {
		walkDirectorySync(root, true)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("recursive walk did not terminate on a symlink cycle")
	}
}
