package core

import (
	"context"

	"pkt.systems/idemy/schema"
)

// Filesystem is the file capability surface consumed by the registry and UI.
type Filesystem interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	CreateFile(ctx context.Context, path string) error
	CreateDirectory(ctx context.Context, path string) error
	Delete(ctx context.Context, path string) error
	ListChildren(ctx context.Context, path string) ([]schema.Entry, error)
}
