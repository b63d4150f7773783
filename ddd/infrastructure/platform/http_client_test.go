package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distribution-service/ddd/domain/gateway"
	"distribution-service/ddd/domain/vo"
	"distribution-service/pkg/config"
	"distribution-service/pkg/errno"
)

func uploadReq() *gateway.PlatformUploadRequest {
	return &gateway.PlatformUploadRequest{
		AccessToken: "tok",
		Config: vo.PlatformUploadConfig{
			Platform: vo.PlatformVimeo,
			Title:    "clip",
			Tags:     []string{"a", "b"},
			Privacy:  vo.PrivacyUnlisted,
		},
		RenditionURL: "https://cdn.test/r.mp4",
	}
}

func TestHTTPClient_UploadVideo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/videos", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body uploadBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "clip", body.Title)
		assert.Equal(t, "unlisted", body.Privacy)
		assert.Equal(t, "https://cdn.test/r.mp4", body.SourceURL)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"v-9","url":"https://vimeo.test/v-9","status":"processing"}`))
	}))
	defer srv.Close()

	resp, err := NewHTTPClient(vo.PlatformVimeo, srv.URL+"/", time.Second).UploadVideo(context.Background(), uploadReq())
	require.NoError(t, err)
	assert.Equal(t, "v-9", resp.PlatformVideoID)
	assert.Equal(t, "https://vimeo.test/v-9", resp.URL)
	assert.Equal(t, "processing", resp.Status)
}

func TestHTTPClient_ErrorClassification(t *testing.T) {
	cases := []struct {
		code int
		kind vo.ErrorKind
	}{
		{http.StatusBadRequest, vo.ErrorKindPermanent},
		{http.StatusUnauthorized, vo.ErrorKindPermanent},
		{http.StatusRequestTimeout, vo.ErrorKindTransient},
		{http.StatusTooManyRequests, vo.ErrorKindTransient},
		{http.StatusBadGateway, vo.ErrorKindTransient},
		{http.StatusServiceUnavailable, vo.ErrorKindTransient},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.code)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			}))
			defer srv.Close()

			_, err := NewHTTPClient(vo.PlatformVimeo, srv.URL, time.Second).UploadVideo(context.Background(), uploadReq())
			require.Error(t, err)
			assert.Equal(t, tc.kind, vo.KindOf(err))
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestHTTPClient_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := NewHTTPClient(vo.PlatformYouTube, addr, time.Second).UploadVideo(context.Background(), uploadReq())
	require.Error(t, err)
	assert.Equal(t, vo.ErrorKindTransient, vo.KindOf(err))
}

func TestHTTPClient_StatusAndDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/videos/v-1":
			_, _ = w.Write([]byte(`{"id":"v-1","status":"live"}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/videos/v-1":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(vo.PlatformDailymotion, srv.URL, time.Second)
	status, err := c.GetStatus(context.Background(), "tok", "v-1")
	require.NoError(t, err)
	assert.Equal(t, "live", status)
	require.NoError(t, c.DeleteVideo(context.Background(), "tok", "v-1"))
	require.NoError(t, c.DeleteVideo(context.Background(), "tok", "gone"))

	_, err = c.GetStatus(context.Background(), "tok", "gone")
	assert.Equal(t, vo.ErrorKindPermanent, vo.KindOf(err))
}

func TestRegistry(t *testing.T) {
	r := NewRegistryFromConfig(config.PublishConfig{
		Endpoints: map[string]string{"youtube": "http://yt.test", "myspace": "http://x.test"},
	})
	assert.Equal(t, []string{"youtube"}, r.Platforms())

	c, err := r.Client(vo.PlatformYouTube)
	require.NoError(t, err)
	assert.Equal(t, vo.PlatformYouTube, c.Platform())

	_, err = r.Client(vo.PlatformTikTok)
	assert.ErrorIs(t, err, errno.ErrPlatformUnsupported)
}
