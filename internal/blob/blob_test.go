package blob

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinioStore_URL(t *testing.T) {
	tests := []struct {
		name string
		cfg  MinioConfig
		want string
	}{
		{"endpoint", MinioConfig{Endpoint: "minio:9000", Bucket: "voice-messages"}, "http://minio:9000/voice-messages/u1/a1.mp3"},
		{"ssl", MinioConfig{Endpoint: "s3.local", Bucket: "voice-messages", UseSSL: true}, "https://s3.local/voice-messages/u1/a1.mp3"},
		{"public base", MinioConfig{Endpoint: "minio:9000", Bucket: "b", PublicBase: "https://cdn.example.org/media/"}, "https://cdn.example.org/media/u1/a1.mp3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MinioStore{cfg: tt.cfg}
			assert.Equal(t, tt.want, m.URL("u1/a1.mp3"))

			key, ok := m.KeyFromURL(tt.want)
			assert.True(t, ok)
			assert.Equal(t, "u1/a1.mp3", key)
		})
	}

	m := &MinioStore{cfg: MinioConfig{Endpoint: "minio:9000", Bucket: "b"}}
	_, ok := m.KeyFromURL("https://elsewhere/x.mp3")
	assert.False(t, ok)
}

func TestPublicReadPolicy(t *testing.T) {
	assert.Contains(t, publicReadPolicy("voice-messages"), "arn:aws:s3:::voice-messages/*")
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore("http://blobs/voice-messages")

	url, err := m.Put(ctx, "anonymous/a1.mp3", bytes.NewReader([]byte("mp3")), 3, "audio/mp3")
	require.NoError(t, err)
	assert.Equal(t, "http://blobs/voice-messages/anonymous/a1.mp3", url)

	data, ct, ok := m.Get("anonymous/a1.mp3")
	require.True(t, ok)
	assert.Equal(t, []byte("mp3"), data)
	assert.Equal(t, "audio/mp3", ct)

	_, err = m.Put(ctx, "u2/a2.mp3", bytes.NewReader(nil), 0, "audio/mp3")
	require.NoError(t, err)
	objs, err := m.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "anonymous/a1.mp3", objs[0].Key)

	require.NoError(t, m.Delete(ctx, "anonymous/a1.mp3"))
	_, _, ok = m.Get("anonymous/a1.mp3")
	assert.False(t, ok)

	key, ok := m.KeyFromURL(url)
	assert.True(t, ok)
	assert.Equal(t, "anonymous/a1.mp3", key)
}
