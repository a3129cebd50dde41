package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/govis/internal/logger"
)

func TestLocalSink_KeepsFileInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0o600))

	loc, err := NewLocalSink("").Publish(context.Background(), "job", path)
	require.NoError(t, err)
	assert.Equal(t, path, loc)
	assert.FileExists(t, path)
}

func TestLocalSink_MovesIntoDir(t *testing.T) {
	src := filepath.Join(t.TempDir(), "out.mp4")
	require.NoError(t, os.WriteFile(src, []byte("video"), 0o600))
	dir := filepath.Join(t.TempDir(), "exports")

	sink := NewLocalSink(dir)
	assert.Equal(t, "local", sink.Name())

	loc, err := sink.Publish(context.Background(), "job", src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out.mp4"), loc)
	assert.NoFileExists(t, src)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "video", string(data))
}

func TestLocalSink_Errors(t *testing.T) {
	_, err := NewLocalSink("").Publish(context.Background(), "job", filepath.Join(t.TempDir(), "missing.mp4"))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewLocalSink("").Publish(ctx, "job", "whatever.mp4")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "exports/abc/out.mp4", ObjectKey("/exports/", "abc", "/tmp/out.mp4"))
	assert.Equal(t, "abc/out.mp4", ObjectKey("", "abc", "out.mp4"))
	assert.Equal(t, "out.mp4", ObjectKey("", "", "dir/out.mp4"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "video/mp4", contentType("a.MP4"))
	assert.Equal(t, "video/webm", contentType("a.webm"))
	assert.Equal(t, "application/octet-stream", contentType("a.bin"))
}

func TestNewMinioSink(t *testing.T) {
	_, err := NewMinioSink(logger.NewTestLogger(), MinioConfig{Bucket: "exports"})
	assert.Error(t, err)

	_, err = NewMinioSink(logger.NewTestLogger(), MinioConfig{Endpoint: "localhost:9000"})
	assert.Error(t, err)

	sink, err := NewMinioSink(logger.NewTestLogger(), MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "exports",
	})
	require.NoError(t, err)
	assert.Equal(t, "minio", sink.Name())
}
