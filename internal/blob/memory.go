package blob

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MemoryStore keeps blobs in process. Used by tests and local runs without object storage.
type MemoryStore struct {
	Base string
	Now  func() time.Time

	mu      sync.Mutex
	objects map[string]memObject
}

type memObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

func NewMemoryStore(base string) *MemoryStore {
	return &MemoryStore{Base: strings.TrimRight(base, "/") + "/", Now: time.Now, objects: make(map[string]memObject)}
}

func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrapf(err, "read %s", key)
	}
	m.mu.Lock()
	m.objects[key] = memObject{data: data, contentType: contentType, modified: m.Now()}
	m.mu.Unlock()
	return m.URL(key), nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Object
	for k, o := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, Object{Key: k, Size: int64(len(o.data)), LastModified: o.modified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Get returns the stored bytes and content type.
func (m *MemoryStore) Get(key string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	return o.data, o.contentType, ok
}

func (m *MemoryStore) URL(key string) string { return m.Base + key }

func (m *MemoryStore) KeyFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, m.Base) {
		return "", false
	}
	return strings.TrimPrefix(url, m.Base), true
}
