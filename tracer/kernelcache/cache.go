// Package kernelcache persists kernel program blobs per device compute tier.
// The opencl backend stores the flattened kernel source, which spares
// re-reading and inlining the sources but not the driver compile. A cache
// file holds a little endian uint32 length followed by the program blob.
package kernelcache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrCorrupted = errors.New("kernelcache: corrupted cache file")
)

// Get the cache file path for a device compute tier.
func Path(dir, tier string) string {
	tier = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, tier)
	return filepath.Join(dir, "kernels-"+tier+".bin")
}

// Check whether the cache file is missing or older than any of the sources.
func NeedsRecompile(cacheFile string, sources ...string) (bool, error) {
	cacheInfo, err := os.Stat(cacheFile)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	} else if err != nil {
		return false, fmt.Errorf("kernelcache: %w", err)
	}

	for _, src := range sources {
		srcInfo, err := os.Stat(src)
		if err != nil {
			return false, fmt.Errorf("kernelcache: %w", err)
		}
		if srcInfo.ModTime().After(cacheInfo.ModTime()) {
			return true, nil
		}
	}
	return false, nil
}

// Read the program blob stored in a cache file.
func Load(cacheFile string) ([]byte, error) {
	f, err := os.Open(cacheFile)
	if err != nil {
		return nil, fmt.Errorf("kernelcache: %w", err)
	}
	defer f.Close()

	var size uint32
	if err = binary.Read(f, binary.LittleEndian, &size); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupted, cacheFile, err)
	}
	blob := make([]byte, size)
	if _, err = io.ReadFull(f, blob); err != nil {
		return nil, fmt.Errorf("%w: %s: expected %d bytes: %v", ErrCorrupted, cacheFile, size, err)
	}
	return blob, nil
}

// Write a program blob to a cache file. The file is replaced atomically.
func Store(cacheFile string, blob []byte) error {
	if err := os.MkdirAll(filepath.Dir(cacheFile), 0o755); err != nil {
		return fmt.Errorf("kernelcache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(cacheFile), ".kernels-*")
	if err != nil {
		return fmt.Errorf("kernelcache: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err = binary.Write(tmp, binary.LittleEndian, uint32(len(blob))); err == nil {
		_, err = tmp.Write(blob)
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("kernelcache: %w", err)
	}
	if err = os.Rename(tmp.Name(), cacheFile); err != nil {
		return fmt.Errorf("kernelcache: %w", err)
	}
	return nil
}
