package storage

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distribution-service/ddd/domain/vo"
)

type fakeObjects struct {
	putErr    error
	removeErr error
	lastPut   minio.PutObjectOptions
}

func (f *fakeObjects) FPutObject(_ context.Context, _, _, _ string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.lastPut = opts
	return minio.UploadInfo{Size: 3}, f.putErr
}

func (f *fakeObjects) FGetObject(context.Context, string, string, string, minio.GetObjectOptions) error {
	return nil
}

func (f *fakeObjects) RemoveObject(context.Context, string, string, minio.RemoveObjectOptions) error {
	return f.removeErr
}

func newTestMinio(f *fakeObjects) *MinioStorage {
	return &MinioStorage{client: f, bucket: "b", urlFor: func(k string) string { return "http://cdn/" + k }}
}

func TestMinioStorage_PutInfersContentType(t *testing.T) {
	f := &fakeObjects{}
	url, err := newTestMinio(f).PutFile(context.Background(), "/tmp/x", "sources/v1.mov", "")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn/sources/v1.mov", url)
	assert.Equal(t, "video/quicktime", f.lastPut.ContentType)
}

func TestMinioStorage_ErrorClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind vo.ErrorKind
	}{
		{"server error", minio.ErrorResponse{StatusCode: http.StatusServiceUnavailable, Code: "ServiceUnavailable"}, vo.ErrorKindTransient},
		{"slow down", minio.ErrorResponse{StatusCode: http.StatusServiceUnavailable, Code: "SlowDown"}, vo.ErrorKindTransient},
		{"access denied", minio.ErrorResponse{StatusCode: http.StatusForbidden, Code: "AccessDenied"}, vo.ErrorKindPermanent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestMinio(&fakeObjects{putErr: tc.err}).PutFile(context.Background(), "/tmp/x", "k.mp4", "video/mp4")
			require.Error(t, err)
			assert.Equal(t, tc.kind, vo.KindOf(err))
		})
	}
}

func TestMinioStorage_DeleteMissingIsNoop(t *testing.T) {
	s := newTestMinio(&fakeObjects{removeErr: minio.ErrorResponse{StatusCode: http.StatusNotFound, Code: "NoSuchKey"}})
	assert.NoError(t, s.DeleteObject(context.Background(), "k"))

	s = newTestMinio(&fakeObjects{removeErr: errors.New("boom")})
	assert.Error(t, s.DeleteObject(context.Background(), "k"))
}
