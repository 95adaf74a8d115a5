package capture

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

const defaultChunkSize = 4096

// FileMicrophone replays an audio file as if it were captured live.
type FileMicrophone struct {
	Path      string
	ChunkSize int
}

func (m FileMicrophone) Open(ctx context.Context) (Stream, error) {
	f, err := os.Open(m.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", m.Path)
	}
	size := m.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}

	s := &fileStream{chunks: make(chan []byte), stop: make(chan struct{})}
	go s.run(ctx, f, size)
	return s, nil
}

type fileStream struct {
	chunks chan []byte
	stop   chan struct{}
	once   sync.Once
}

func (s *fileStream) run(ctx context.Context, r io.ReadCloser, size int) {
	defer close(s.chunks)
	defer r.Close()

	for {
		buf := make([]byte, size)
		n, err := r.Read(buf)
		if n > 0 {
			select {
			case s.chunks <- buf[:n]:
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			// hold the device open until the caller stops it
			select {
			case <-s.stop:
			case <-ctx.Done():
			}
			return
		}
	}
}

func (s *fileStream) Chunks() <-chan []byte { return s.chunks }

func (s *fileStream) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}
