package alias

import "context"

// Store persists user-chosen display names for profiles. Keys are
// normalized profile folder paths, which stay stable across rescans of
// unchanged directories; that stability is the only contract the engine
// needs from the collaborator.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, alias string) error
	All(ctx context.Context) (map[string]string, error)
	Delete(ctx context.Context, key string) error
	Close() error
}
