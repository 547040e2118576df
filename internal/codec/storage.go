package codec

import (
	"context"
	"fmt"
	"sync"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

// Storage is where a super-chunk's frame bytes live. InMemory keeps
// everything in a byte buffer; OpenFile opens a gocloud.dev/blob bucket
// so the same code path serves a local path, an s3:// URL, or a gs:// URL
// uniformly. Contiguous is handled one level up, in internal/container,
// as the in-memory row-major representation. There is no sparse storage
// kind.
type Storage struct {
	kind   storageKind
	bucket *blob.Bucket
	key    string

	mu  sync.Mutex
	mem map[string][]byte
}

type storageKind int

const (
	kindMemory storageKind = iota
	kindBlob
)

// InMemory returns a Storage backed by a process-local byte map.
func InMemory() Storage {
	return Storage{kind: kindMemory, mem: make(map[string][]byte)}
}

// OpenFile opens (creating if necessary) a gocloud.dev/blob-addressable
// location as persisted storage. url follows gocloud's bucket URL scheme,
// e.g. "file:///var/data/mydata" or "mem://" for an in-process bucket used
// by tests that want to exercise the blob path without touching disk.
func OpenFile(ctx context.Context, url, key string) (Storage, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return Storage{}, fmt.Errorf("codec: open storage %q: %w", url, err)
	}
	return Storage{kind: kindBlob, bucket: bucket, key: key}, nil
}

func (s *Storage) read(ctx context.Context) ([]byte, error) {
	switch s.kind {
	case kindMemory:
		s.mu.Lock()
		defer s.mu.Unlock()
		return append([]byte(nil), s.mem[s.key]...), nil
	default:
		if ok, _ := s.bucket.Exists(ctx, s.key); !ok {
			return nil, nil
		}
		return s.bucket.ReadAll(ctx, s.key)
	}
}

func (s *Storage) write(ctx context.Context, data []byte) error {
	switch s.kind {
	case kindMemory:
		s.mu.Lock()
		defer s.mu.Unlock()
		s.mem[s.key] = append([]byte(nil), data...)
		return nil
	default:
		return s.bucket.WriteAll(ctx, s.key, data, nil)
	}
}

func (s *Storage) removeAll() error {
	ctx := context.Background()
	switch s.kind {
	case kindMemory:
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.mem, s.key)
		return nil
	default:
		ok, err := s.bucket.Exists(ctx, s.key)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		return s.bucket.Delete(ctx, s.key)
	}
}

func (s *Storage) isPersisted() bool { return s.kind == kindBlob }

// IsPersisted reports whether this Storage survives process exit.
func (s Storage) IsPersisted() bool { return s.isPersisted() }

// WriteMeta persists an auxiliary metadata blob alongside the
// super-chunk's own frame data, under the same key with a ".meta" suffix.
// internal/container uses this to round-trip its shape record across
// Close/FromFile, since the codec frame itself only remembers Params.
func (s Storage) WriteMeta(ctx context.Context, data []byte) error {
	sub := s
	sub.key = s.key + ".meta"
	return sub.write(ctx, data)
}

// ReadMeta reads back what WriteMeta wrote, or nil if nothing was written.
func (s Storage) ReadMeta(ctx context.Context) ([]byte, error) {
	sub := s
	sub.key = s.key + ".meta"
	return sub.read(ctx)
}
