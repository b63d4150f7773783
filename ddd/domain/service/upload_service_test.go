package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/domain/vo"
	"distribution-service/ddd/infrastructure/memory"
	"distribution-service/ddd/infrastructure/storage"
	"distribution-service/pkg/errno"
	"distribution-service/pkg/keylock"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []vo.PipelineEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e vo.PipelineEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Events() []vo.PipelineEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]vo.PipelineEvent(nil), p.events...)
}

type countingStorage struct {
	*storage.LocalStorage
	mu   sync.Mutex
	puts int
}

func (s *countingStorage) PutFile(ctx context.Context, localPath, key, contentType string) (string, error) {
	s.mu.Lock()
	s.puts++
	s.mu.Unlock()
	return s.LocalStorage.PutFile(ctx, localPath, key, contentType)
}

type stubProbe struct{ err error }

func (p stubProbe) Probe(context.Context, string) (*vo.MediaInfo, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &vo.MediaInfo{DurationMs: 1000, Width: 1920, Height: 1080, VideoCodec: "h264"}, nil
}

type uploadFixture struct {
	svc      *UploadService
	videos   *memory.VideoRepo
	sessions *memory.UploadSessionRepo
	storage  *countingStorage
	events   *recordingPublisher
	root     string
}

func newUploadFixture(t *testing.T, maxSize int64) *uploadFixture {
	t.Helper()
	root := t.TempDir()
	sink, err := storage.NewLocalSink(filepath.Join(root, "tmp"))
	require.NoError(t, err)
	local, err := storage.NewLocalStorage(filepath.Join(root, "durable"), "")
	require.NoError(t, err)

	f := &uploadFixture{
		videos:   memory.NewVideoRepo(),
		sessions: memory.NewUploadSessionRepo(),
		storage:  &countingStorage{LocalStorage: local},
		events:   &recordingPublisher{},
		root:     root,
	}
	store := NewUploadSessionStore(f.sessions, keylock.New(), time.Second)
	f.svc = NewUploadService(store, f.videos, sink, f.storage, stubProbe{}, f.events, UploadOptions{
		MaxSize:           maxSize,
		AllowedExtensions: []string{"mp4", "mov"},
		SourcePrefix:      "sources",
	})
	return f
}

func (f *uploadFixture) newVideo(t *testing.T, owner string) *entity.Video {
	t.Helper()
	v, err := entity.NewVideo(owner, "clip", "")
	require.NoError(t, err)
	require.NoError(t, f.videos.CreateVideo(context.Background(), v))
	return v
}

func (f *uploadFixture) create(t *testing.T, videoID, owner string, length int64) *entity.UploadSession {
	t.Helper()
	s, err := f.svc.CreateSession(context.Background(), &CreateSessionCommand{
		VideoID:  videoID,
		OwnerID:  owner,
		Length:   length,
		Metadata: map[string]string{"filename": "clip.mp4", "filetype": "video/mp4"},
	})
	require.NoError(t, err)
	return s
}

func (f *uploadFixture) append(videoID, owner string, offset int64, data []byte) (*AppendResult, error) {
	return f.svc.AppendChunk(context.Background(), &AppendChunkCommand{
		VideoID:       videoID,
		OwnerID:       owner,
		Offset:        offset,
		ContentLength: int64(len(data)),
		Body:          bytes.NewReader(data),
	})
}

func TestCreateSession_Validation(t *testing.T) {
	f := newUploadFixture(t, 1000)
	v := f.newVideo(t, "alice")
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  CreateSessionCommand
		want *errno.Errno
	}{
		{"zero length", CreateSessionCommand{VideoID: v.VideoID(), OwnerID: "alice", Length: 0}, errno.ErrUploadLengthInvalid},
		{"negative length", CreateSessionCommand{VideoID: v.VideoID(), OwnerID: "alice", Length: -5}, errno.ErrUploadLengthInvalid},
		{"too large", CreateSessionCommand{VideoID: v.VideoID(), OwnerID: "alice", Length: 1001}, errno.ErrPayloadTooLarge},
		{"other owner", CreateSessionCommand{VideoID: v.VideoID(), OwnerID: "bob", Length: 10}, errno.ErrForbidden},
		{"unknown video", CreateSessionCommand{VideoID: "missing", OwnerID: "alice", Length: 10}, errno.ErrVideoNotFound},
		{"bad extension", CreateSessionCommand{VideoID: v.VideoID(), OwnerID: "alice", Length: 10,
			Metadata: map[string]string{"filename": "evil.exe"}}, errno.ErrFileNameIllegal},
		{"path in filename", CreateSessionCommand{VideoID: v.VideoID(), OwnerID: "alice", Length: 10,
			Metadata: map[string]string{"filename": "../clip.mp4"}}, errno.ErrFileNameIllegal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.cmd
			_, err := f.svc.CreateSession(ctx, &cmd)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	s := f.create(t, v.VideoID(), "alice", 1000)
	assert.Equal(t, int64(0), s.ReceivedOffset())
	info, err := os.Stat(s.TempSinkPath())
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())

	_, err = f.svc.CreateSession(ctx, &CreateSessionCommand{VideoID: v.VideoID(), OwnerID: "alice", Length: 10})
	assert.ErrorIs(t, err, errno.ErrUploadSessionExists)

	got, err := f.videos.GetVideo(ctx, v.VideoID())
	require.NoError(t, err)
	assert.Equal(t, vo.VideoStatusUploading, got.Status())
}

type brokenVideoRepo struct {
	*memory.VideoRepo
}

func (r brokenVideoRepo) UpdateVideo(context.Context, *entity.Video) error {
	return errors.New("connection reset")
}

func TestCreateSession_RollsBackWhenVideoUpdateFails(t *testing.T) {
	f := newUploadFixture(t, 1000)
	v := f.newVideo(t, "alice")
	ctx := context.Background()
	f.svc.videos = brokenVideoRepo{VideoRepo: f.videos}

	_, err := f.svc.CreateSession(ctx, &CreateSessionCommand{VideoID: v.VideoID(), OwnerID: "alice", Length: 10})
	require.Error(t, err)

	_, err = f.sessions.GetSession(ctx, v.VideoID())
	assert.ErrorIs(t, err, errno.ErrUploadNotFound)
	_, err = os.Stat(filepath.Join(f.root, "tmp", v.VideoID()+".part"))
	assert.True(t, os.IsNotExist(err))

	// 数据库恢复后可以重新创建
	f.svc.videos = f.videos
	s := f.create(t, v.VideoID(), "alice", 10)
	assert.Equal(t, int64(0), s.ReceivedOffset())
}

func TestAppendChunk_TwoChunksComplete(t *testing.T) {
	f := newUploadFixture(t, 10<<20)
	v := f.newVideo(t, "alice")
	f.create(t, v.VideoID(), "alice", 1000)

	payload := bytes.Repeat([]byte("0123456789"), 100)

	res, err := f.append(v.VideoID(), "alice", 0, payload[:500])
	require.NoError(t, err)
	assert.Equal(t, int64(500), res.Offset)
	assert.False(t, res.Completed)

	off, err := f.svc.QueryOffset(context.Background(), v.VideoID(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(500), off.ReceivedOffset())
	assert.Equal(t, int64(1000), off.DeclaredLength())

	res, err = f.append(v.VideoID(), "alice", 500, payload[500:])
	require.NoError(t, err)
	assert.Equal(t, int64(1000), res.Offset)
	assert.True(t, res.Completed)

	// 会话已删除
	_, err = f.append(v.VideoID(), "alice", 1000, []byte("x"))
	assert.ErrorIs(t, err, errno.ErrUploadNotFound)
	_, err = f.svc.QueryOffset(context.Background(), v.VideoID(), "alice")
	assert.ErrorIs(t, err, errno.ErrUploadNotFound)

	got, err := f.videos.GetVideo(context.Background(), v.VideoID())
	require.NoError(t, err)
	assert.True(t, got.IsSourceReady())
	assert.Equal(t, "sources/"+v.VideoID()+"/source.mp4", got.SourceKey())
	assert.Equal(t, int64(1000), got.SizeBytes())
	assert.Len(t, got.ContentHash(), 64)
	assert.Equal(t, 1920, got.Media().Width)

	stored, err := os.ReadFile(filepath.Join(f.root, "durable", "sources", v.VideoID(), "source.mp4"))
	require.NoError(t, err)
	assert.Equal(t, payload, stored)

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, vo.EventSourceReady, events[0].Type)
	assert.Equal(t, v.VideoID(), events[0].VideoID)
	assert.Equal(t, 1, f.storage.puts)
}

func TestAppendChunk_ManyChunksConcatenate(t *testing.T) {
	f := newUploadFixture(t, 10<<20)
	v := f.newVideo(t, "alice")
	s := f.create(t, v.VideoID(), "alice", 64)

	var want []byte
	var offset int64
	for i, size := range []int{1, 7, 13, 3, 20} {
		chunk := bytes.Repeat([]byte{byte('a' + i)}, size)
		want = append(want, chunk...)
		res, err := f.append(v.VideoID(), "alice", offset, chunk)
		require.NoError(t, err)
		offset = res.Offset
	}
	assert.Equal(t, int64(len(want)), offset)

	data, err := os.ReadFile(s.TempSinkPath())
	require.NoError(t, err)
	assert.Equal(t, want, data)
}

func TestAppendChunk_OffsetConflictDoesNotMutate(t *testing.T) {
	f := newUploadFixture(t, 10<<20)
	v := f.newVideo(t, "alice")
	s := f.create(t, v.VideoID(), "alice", 100)

	_, err := f.append(v.VideoID(), "alice", 0, []byte("hello"))
	require.NoError(t, err)

	for _, claimed := range []int64{0, 3, 6, 100} {
		_, err := f.append(v.VideoID(), "alice", claimed, []byte("zzzz"))
		assert.ErrorIs(t, err, errno.ErrOffsetConflict)
	}

	cur, err := f.sessions.GetSession(context.Background(), v.VideoID())
	require.NoError(t, err)
	assert.Equal(t, int64(5), cur.ReceivedOffset())
	data, err := os.ReadFile(s.TempSinkPath())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestAppendChunk_OverflowRejected(t *testing.T) {
	f := newUploadFixture(t, 10<<20)
	v := f.newVideo(t, "alice")
	s := f.create(t, v.VideoID(), "alice", 10)

	_, err := f.append(v.VideoID(), "alice", 0, []byte("12345"))
	require.NoError(t, err)

	// 声明长度超出
	_, err = f.append(v.VideoID(), "alice", 5, []byte("123456"))
	assert.ErrorIs(t, err, errno.ErrPayloadTooLarge)

	// 未声明长度，实际数据超出
	_, err = f.svc.AppendChunk(context.Background(), &AppendChunkCommand{
		VideoID:       v.VideoID(),
		OwnerID:       "alice",
		Offset:        5,
		ContentLength: -1,
		Body:          strings.NewReader("abcdefghij"),
	})
	assert.ErrorIs(t, err, errno.ErrPayloadTooLarge)

	cur, err := f.sessions.GetSession(context.Background(), v.VideoID())
	require.NoError(t, err)
	assert.Equal(t, int64(5), cur.ReceivedOffset())
	data, err := os.ReadFile(s.TempSinkPath())
	require.NoError(t, err)
	assert.Equal(t, "12345", string(data))
}

type failingReader struct {
	data []byte
	read bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.read {
		return 0, io.ErrUnexpectedEOF
	}
	r.read = true
	return copy(p, r.data), nil
}

func TestAppendChunk_InterruptedKeepsWrittenBytes(t *testing.T) {
	f := newUploadFixture(t, 10<<20)
	v := f.newVideo(t, "alice")
	f.create(t, v.VideoID(), "alice", 10)

	_, err := f.svc.AppendChunk(context.Background(), &AppendChunkCommand{
		VideoID:       v.VideoID(),
		OwnerID:       "alice",
		Offset:        0,
		ContentLength: 10,
		Body:          &failingReader{data: []byte("abcd")},
	})
	require.Error(t, err)

	off, err := f.svc.QueryOffset(context.Background(), v.VideoID(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(4), off.ReceivedOffset())

	res, err := f.append(v.VideoID(), "alice", 4, []byte("efghij"))
	require.NoError(t, err)
	assert.True(t, res.Completed)
}

func TestAppendChunk_Ownership(t *testing.T) {
	f := newUploadFixture(t, 10<<20)
	v := f.newVideo(t, "alice")
	f.create(t, v.VideoID(), "alice", 10)

	_, err := f.append(v.VideoID(), "mallory", 0, []byte("x"))
	assert.ErrorIs(t, err, errno.ErrForbidden)
	_, err = f.svc.QueryOffset(context.Background(), v.VideoID(), "mallory")
	assert.ErrorIs(t, err, errno.ErrForbidden)
	assert.ErrorIs(t, f.svc.CancelSession(context.Background(), v.VideoID(), "mallory"), errno.ErrForbidden)
}

func TestCompletion_Idempotent(t *testing.T) {
	f := newUploadFixture(t, 10<<20)
	v := f.newVideo(t, "alice")
	s := f.create(t, v.VideoID(), "alice", 4)
	ctx := context.Background()

	_, err := f.append(v.VideoID(), "alice", 0, []byte("data"))
	require.NoError(t, err)

	// 模拟入库后会话未被清理，再次触发完成
	require.NoError(t, os.WriteFile(s.TempSinkPath(), []byte("data"), 0o644))
	require.NoError(t, f.sessions.CreateSession(ctx, entity.NewUploadSessionWithDetails(
		v.VideoID(), "alice", 4, 4, s.TempSinkPath(), "video/mp4", "clip.mp4", time.Now(), time.Now())))

	res, err := f.append(v.VideoID(), "alice", 4, nil)
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, 1, f.storage.puts)
	assert.Len(t, f.events.Events(), 1)

	_, err = f.sessions.GetSession(ctx, v.VideoID())
	assert.ErrorIs(t, err, errno.ErrUploadNotFound)
}

type flakyStorage struct {
	*countingStorage
	fail bool
}

func (s *flakyStorage) PutFile(ctx context.Context, localPath, key, contentType string) (string, error) {
	if s.fail {
		return "", errors.New("storage unavailable")
	}
	return s.countingStorage.PutFile(ctx, localPath, key, contentType)
}

func TestCompletion_RetryAfterStorageFailure(t *testing.T) {
	f := newUploadFixture(t, 10<<20)
	flaky := &flakyStorage{countingStorage: f.storage, fail: true}
	f.svc.storage = flaky
	v := f.newVideo(t, "alice")
	f.create(t, v.VideoID(), "alice", 4)

	_, err := f.append(v.VideoID(), "alice", 0, []byte("data"))
	require.Error(t, err)

	off, err := f.svc.QueryOffset(context.Background(), v.VideoID(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(4), off.ReceivedOffset())

	flaky.fail = false
	res, err := f.append(v.VideoID(), "alice", 4, nil)
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, 1, f.storage.puts)
}

func TestCompletion_RetryRejectsTrailingBytes(t *testing.T) {
	f := newUploadFixture(t, 10<<20)
	flaky := &flakyStorage{countingStorage: f.storage, fail: true}
	f.svc.storage = flaky
	v := f.newVideo(t, "alice")
	f.create(t, v.VideoID(), "alice", 4)

	_, err := f.append(v.VideoID(), "alice", 0, []byte("data"))
	require.Error(t, err)

	flaky.fail = false
	_, err = f.append(v.VideoID(), "alice", 4, []byte("MORE"))
	assert.ErrorIs(t, err, errno.ErrPayloadTooLarge)
	assert.Equal(t, 0, f.storage.puts)
	assert.Empty(t, f.events.Events())

	got, err := f.videos.GetVideo(context.Background(), v.VideoID())
	require.NoError(t, err)
	assert.False(t, got.IsSourceReady())

	res, err := f.append(v.VideoID(), "alice", 4, nil)
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, 1, f.storage.puts)
}

func TestCompletion_DuplicateReusesSource(t *testing.T) {
	f := newUploadFixture(t, 10<<20)
	first := f.newVideo(t, "alice")
	second := f.newVideo(t, "alice")

	f.create(t, first.VideoID(), "alice", 4)
	_, err := f.append(first.VideoID(), "alice", 0, []byte("same"))
	require.NoError(t, err)

	f.create(t, second.VideoID(), "alice", 4)
	_, err = f.append(second.VideoID(), "alice", 0, []byte("same"))
	require.NoError(t, err)

	got, err := f.videos.GetVideo(context.Background(), second.VideoID())
	require.NoError(t, err)
	assert.Equal(t, first.VideoID(), got.DuplicateOf())
	assert.Equal(t, "sources/"+first.VideoID()+"/source.mp4", got.SourceKey())
	assert.Equal(t, 1, f.storage.puts)
}

func TestCompletion_ProbeFailureIsNotFatal(t *testing.T) {
	f := newUploadFixture(t, 10<<20)
	f.svc.probe = stubProbe{err: errors.New("ffprobe missing")}
	v := f.newVideo(t, "alice")
	f.create(t, v.VideoID(), "alice", 3)

	res, err := f.append(v.VideoID(), "alice", 0, []byte("abc"))
	require.NoError(t, err)
	assert.True(t, res.Completed)
}

func TestCancelSession(t *testing.T) {
	f := newUploadFixture(t, 10<<20)
	v := f.newVideo(t, "alice")
	s := f.create(t, v.VideoID(), "alice", 10)
	ctx := context.Background()

	require.NoError(t, f.svc.CancelSession(ctx, v.VideoID(), "alice"))
	require.NoError(t, f.svc.CancelSession(ctx, v.VideoID(), "alice"))
	require.NoError(t, f.svc.CancelSession(ctx, "never-existed", "alice"))

	_, err := os.Stat(s.TempSinkPath())
	assert.True(t, os.IsNotExist(err))
	got, err := f.videos.GetVideo(ctx, v.VideoID())
	require.NoError(t, err)
	assert.Equal(t, vo.VideoStatusDraft, got.Status())

	// 取消后可以重新创建
	f.create(t, v.VideoID(), "alice", 10)
}

// 阻塞在读取上的 PATCH 持有锁，取消必须等它结束
type gatedReader struct {
	started chan struct{}
	release chan struct{}
	data    []byte
	once    sync.Once
}

func (r *gatedReader) Read(p []byte) (int, error) {
	r.once.Do(func() { close(r.started) })
	<-r.release
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestCancelSession_WaitsForInFlightAppend(t *testing.T) {
	f := newUploadFixture(t, 10<<20)
	v := f.newVideo(t, "alice")
	f.create(t, v.VideoID(), "alice", 10)

	body := &gatedReader{started: make(chan struct{}), release: make(chan struct{}), data: []byte("abc")}
	appendDone := make(chan error, 1)
	go func() {
		_, err := f.svc.AppendChunk(context.Background(), &AppendChunkCommand{
			VideoID: v.VideoID(), OwnerID: "alice", Offset: 0, ContentLength: 3, Body: body,
		})
		appendDone <- err
	}()
	<-body.started

	cancelDone := make(chan error, 1)
	go func() { cancelDone <- f.svc.CancelSession(context.Background(), v.VideoID(), "alice") }()

	select {
	case <-cancelDone:
		t.Fatal("cancel finished while append was still writing")
	case <-time.After(50 * time.Millisecond):
	}

	close(body.release)
	require.NoError(t, <-appendDone)
	require.NoError(t, <-cancelDone)

	_, err := f.sessions.GetSession(context.Background(), v.VideoID())
	assert.ErrorIs(t, err, errno.ErrUploadNotFound)
}

func TestSweepExpired(t *testing.T) {
	f := newUploadFixture(t, 10<<20)
	ctx := context.Background()
	oldVideo := f.newVideo(t, "alice")
	freshVideo := f.newVideo(t, "alice")

	oldSink := filepath.Join(f.root, "old.part")
	require.NoError(t, os.WriteFile(oldSink, []byte("partial"), 0o644))
	created := time.Now().Add(-48 * time.Hour)
	require.NoError(t, f.sessions.CreateSession(ctx, entity.NewUploadSessionWithDetails(
		oldVideo.VideoID(), "alice", 100, 7, oldSink, "video/mp4", "a.mp4", created, created)))
	f.create(t, freshVideo.VideoID(), "alice", 100)

	removed, err := f.svc.SweepExpired(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = f.sessions.GetSession(ctx, oldVideo.VideoID())
	assert.ErrorIs(t, err, errno.ErrUploadNotFound)
	_, err = os.Stat(oldSink)
	assert.True(t, os.IsNotExist(err))
	_, err = f.sessions.GetSession(ctx, freshVideo.VideoID())
	assert.NoError(t, err)
}

func TestAppendChunk_ConcurrentSameOffset(t *testing.T) {
	f := newUploadFixture(t, 10<<20)
	v := f.newVideo(t, "alice")
	s := f.create(t, v.VideoID(), "alice", 100)

	const writers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, conflicts := 0, 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.append(v.VideoID(), "alice", 0, []byte("0123456789"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, errno.ErrOffsetConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, writers-1, conflicts)

	data, err := os.ReadFile(s.TempSinkPath())
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
}
