package blob

import "context"

// Store holds uploaded attachment binaries and resolves durable
// references for them. A reference returned by ResolveURL must remain
// valid after the upload completes; message records are only appended once
// such a reference exists.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	ResolveURL(ctx context.Context, key string) (string, error)
}
