package scene

import (
	"fmt"

	"github.com/achilleasa/wavefront/tracer/layout"
	"github.com/achilleasa/wavefront/types"
)

// Minimum number of texels allocated per texel pool.
const minPoolTexels = 16

// A texture. ARGB32 and NRM32 textures store their texels in Texels32; ARGB128
// textures use Texels128.
type Texture struct {
	Width   int
	Height  int
	Storage uint32

	Texels32  []uint32
	Texels128 []types.Vec4

	// Offset of the first texel in the texture's pool.
	firstPixel int
}

func (t *Texture) validate() error {
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrInvalidTexture, t.Width, t.Height)
	}
	texels := t.Width * t.Height
	switch t.Storage {
	case layout.StorageARGB32, layout.StorageNRM32:
		if len(t.Texels32) != texels {
			return fmt.Errorf("%w: expected %d texels; got %d", ErrInvalidTexture, texels, len(t.Texels32))
		}
	case layout.StorageARGB128:
		if len(t.Texels128) != texels {
			return fmt.Errorf("%w: expected %d texels; got %d", ErrInvalidTexture, texels, len(t.Texels128))
		}
	default:
		return fmt.Errorf("%w: unknown storage type %d", ErrInvalidTexture, t.Storage)
	}
	return nil
}

// Texel pools holding the texels of all textures grouped by storage type.
type TexelPools struct {
	ARGB32  []uint32
	ARGB128 []types.Vec4
	NRM32   []uint32
}

// Pack textures into texel pools and record the first texel of each texture.
func packTextures(textures []Texture) TexelPools {
	pools := TexelPools{
		ARGB32:  make([]uint32, 0, minPoolTexels),
		ARGB128: make([]types.Vec4, 0, minPoolTexels),
		NRM32:   make([]uint32, 0, minPoolTexels),
	}

	for i := range textures {
		tex := &textures[i]
		switch tex.Storage {
		case layout.StorageARGB32:
			tex.firstPixel = len(pools.ARGB32)
			pools.ARGB32 = append(pools.ARGB32, tex.Texels32...)
		case layout.StorageNRM32:
			tex.firstPixel = len(pools.NRM32)
			pools.NRM32 = append(pools.NRM32, tex.Texels32...)
		case layout.StorageARGB128:
			tex.firstPixel = len(pools.ARGB128)
			pools.ARGB128 = append(pools.ARGB128, tex.Texels128...)
		}
	}

	pools.ARGB32 = padPool(pools.ARGB32)
	pools.ARGB128 = padPool(pools.ARGB128)
	pools.NRM32 = padPool(pools.NRM32)
	return pools
}

func padPool[T any](pool []T) []T {
	if len(pool) < minPoolTexels {
		pool = append(pool, make([]T, minPoolTexels-len(pool))...)
	}
	return pool
}
