package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distribution-service/pkg/errno"
)

func TestLocalSink_AppendAndOverflow(t *testing.T) {
	ctx := context.Background()
	sink, err := NewLocalSink(t.TempDir())
	require.NoError(t, err)

	p, err := sink.Allocate(ctx, "v1")
	require.NoError(t, err)

	n, err := sink.Append(ctx, p, 0, strings.NewReader("hello"), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	// 超过剩余长度时回滚本次写入
	n, err = sink.Append(ctx, p, 5, strings.NewReader("world!!"), 5)
	assert.ErrorIs(t, err, errno.ErrPayloadTooLarge)
	assert.Zero(t, n)

	n, err = sink.Append(ctx, p, 5, strings.NewReader("world"), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	rc, err := sink.Open(ctx, p)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "helloworld", string(data))

	require.NoError(t, sink.Remove(ctx, p))
	require.NoError(t, sink.Remove(ctx, p))

	_, err = sink.Allocate(ctx, "../escape")
	assert.ErrorIs(t, err, errno.ErrInvalidParam)
}

func TestLocalSink_CancelledContextKeepsWrittenBytes(t *testing.T) {
	sink, err := NewLocalSink(t.TempDir())
	require.NoError(t, err)
	p, err := sink.Allocate(context.Background(), "v2")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := sink.Append(ctx, p, 0, strings.NewReader("data"), 4)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)

	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestLocalStorage_PutDownloadDelete(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewLocalStorage(root, "http://cdn.test/media/")
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "in.mp4")
	require.NoError(t, os.WriteFile(src, []byte("video-bytes"), 0o644))

	url, err := s.PutFile(ctx, src, "renditions/v1/tiktok.mp4", "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.test/media/renditions/v1/tiktok.mp4", url)

	dst := filepath.Join(t.TempDir(), "nested", "out.mp4")
	require.NoError(t, s.DownloadFile(ctx, "renditions/v1/tiktok.mp4", dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))

	// 键中的 .. 不会逃出根目录
	_, err = s.PutFile(ctx, src, "../../outside.mp4", "video/mp4")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "outside.mp4"))
	assert.NoError(t, err)

	require.NoError(t, s.DeleteObject(ctx, "renditions/v1/tiktok.mp4"))
	require.NoError(t, s.DeleteObject(ctx, "renditions/v1/tiktok.mp4"))

	plain, err := NewLocalStorage(root, "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(plain.ObjectURL("a/b.mp4"), "file://"))
}
