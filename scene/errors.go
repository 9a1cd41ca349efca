package scene

import "errors"

var (
	ErrIndexOutOfRange  = errors.New("scene: index out of range")
	ErrInvalidGeometry  = errors.New("scene: invalid geometry")
	ErrInvalidTexture   = errors.New("scene: invalid texture")
	ErrTextureNotSynced = errors.New("scene: material references a texture that has not been synced")
	ErrInvalidSky       = errors.New("scene: invalid sky data")
)
