package vo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariantStatusTransitions(t *testing.T) {
	assert.True(t, VariantStatusPending.CanTransitionTo(VariantStatusProcessing))
	assert.True(t, VariantStatusProcessing.CanTransitionTo(VariantStatusCompleted))
	assert.True(t, VariantStatusProcessing.CanTransitionTo(VariantStatusFailed))
	assert.True(t, VariantStatusFailed.CanTransitionTo(VariantStatusPending))

	assert.False(t, VariantStatusPending.CanTransitionTo(VariantStatusCompleted))
	assert.False(t, VariantStatusFailed.CanTransitionTo(VariantStatusProcessing))
	assert.False(t, VariantStatusCompleted.CanTransitionTo(VariantStatusPending))
	assert.False(t, VariantStatusCompleted.CanTransitionTo(VariantStatusFailed))

	_, err := NewVariantStatusFromString("DONE")
	assert.Error(t, err)
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform(" TikTok ")
	require.NoError(t, err)
	assert.Equal(t, PlatformTikTok, p)

	p, err = ParsePlatform("x")
	require.NoError(t, err)
	assert.Equal(t, PlatformTwitter, p)

	_, err = ParsePlatform("myspace")
	assert.Error(t, err)

	assert.Len(t, AllPlatforms(), 11)
	assert.Equal(t, []Platform{PlatformYouTube, PlatformTikTok},
		DedupePlatforms([]Platform{PlatformYouTube, PlatformTikTok, PlatformYouTube}))
}

func TestSpecTableCoversAllPlatforms(t *testing.T) {
	table := DefaultSpecTable()
	for _, p := range AllPlatforms() {
		spec, ok := table.Lookup(p)
		require.True(t, ok, p)
		assert.Equal(t, p, spec.Platform)
		assert.Positive(t, spec.Width)
		assert.Positive(t, spec.Height)
	}
	tiktok, _ := table.Lookup(PlatformTikTok)
	assert.Equal(t, OrientationPortrait, tiktok.Orientation())
	yt, _ := table.Lookup(PlatformYouTube)
	assert.Equal(t, OrientationLandscape, yt.Orientation())
}

func TestSpecTableOverrides(t *testing.T) {
	table := DefaultSpecTable().WithOverrides(map[Platform]SpecOverride{
		PlatformTikTok:   {Width: 720, Height: 1280},
		Platform("nope"): {Width: 1},
	})
	spec, _ := table.Lookup(PlatformTikTok)
	assert.Equal(t, 720, spec.Width)
	assert.Equal(t, "6M", spec.VideoBitrate)
	_, ok := table.Lookup(Platform("nope"))
	assert.False(t, ok)

	orig, _ := DefaultSpecTable().Lookup(PlatformTikTok)
	assert.Equal(t, 1080, orig.Width)
}

func TestRetryPolicyDelay(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))

	n := RetryPolicy{}.Normalize()
	assert.Equal(t, 3, n.MaxAttempts)
	assert.Equal(t, time.Second, n.BaseDelay)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"tagged transient", Transient(errors.New("503")), ErrorKindTransient},
		{"tagged permanent", Permanent(errors.New("401")), ErrorKindPermanent},
		{"wrapped tag", fmt.Errorf("upload: %w", Transient(errors.New("reset"))), ErrorKindTransient},
		{"deadline", context.DeadlineExceeded, ErrorKindTransient},
		{"unexpected eof", fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), ErrorKindTransient},
		{"net timeout", timeoutErr{}, ErrorKindTransient},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, ErrorKindTransient},
		{"cancelled", context.Canceled, ErrorKindPermanent},
		{"untagged", errors.New("bad request"), ErrorKindPermanent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.Nil(t, Transient(nil))
	assert.ErrorIs(t, Transient(errors.New("x")), ErrTransient)
}

func TestParsePrivacy(t *testing.T) {
	p, err := ParsePrivacy("")
	require.NoError(t, err)
	assert.Equal(t, PrivacyPublic, p)
	_, err = ParsePrivacy("friends")
	assert.Error(t, err)
}
