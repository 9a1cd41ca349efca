package kernelcache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPath(t *testing.T) {
	got := Path("/tmp/cache", "NVIDIA GeForce/7.5")
	exp := filepath.Join("/tmp/cache", "kernels-NVIDIA_GeForce_7.5.bin")
	if got != exp {
		t.Fatalf("expected %q; got %q", exp, got)
	}
}

func TestRoundTrip(t *testing.T) {
	cacheFile := Path(t.TempDir(), "go-amd64")
	blob := []byte("__kernel void shade() {}")

	if err := Store(cacheFile, blob); err != nil {
		t.Fatal(err)
	}
	got, err := Load(cacheFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(blob) {
		t.Fatalf("expected blob %q; got %q", blob, got)
	}

	raw, err := os.ReadFile(cacheFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 4+len(blob) || raw[0] != byte(len(blob)) || raw[1] != 0 {
		t.Fatalf("unexpected cache layout % x", raw[:4])
	}
}

func TestLoadCorrupted(t *testing.T) {
	cacheFile := filepath.Join(t.TempDir(), "kernels.bin")
	if err := os.WriteFile(cacheFile, []byte{10, 0, 0, 0, 'a'}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(cacheFile); !errors.Is(err, ErrCorrupted) {
		t.Fatalf("expected ErrCorrupted; got %v", err)
	}
}

func TestNeedsRecompile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "main.cl")
	cacheFile := Path(dir, "test")
	if err := os.WriteFile(src, []byte("src"), 0o644); err != nil {
		t.Fatal(err)
	}

	stale, err := NeedsRecompile(cacheFile, src)
	if err != nil || !stale {
		t.Fatalf("expected missing cache to need a recompile; got %t, %v", stale, err)
	}

	if err = Store(cacheFile, []byte("blob")); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)
	if err = os.Chtimes(src, past, past); err != nil {
		t.Fatal(err)
	}
	if stale, err = NeedsRecompile(cacheFile, src); err != nil || stale {
		t.Fatalf("expected fresh cache; got %t, %v", stale, err)
	}

	future := time.Now().Add(time.Hour)
	if err = os.Chtimes(src, future, future); err != nil {
		t.Fatal(err)
	}
	if stale, err = NeedsRecompile(cacheFile, src); err != nil || !stale {
		t.Fatalf("expected stale cache; got %t, %v", stale, err)
	}

	if _, err = NeedsRecompile(cacheFile, filepath.Join(dir, "missing.cl")); err == nil {
		t.Fatal("expected an error for a missing source")
	}
}
