package axbackend

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFakeBackend writes a tiny shell script that echoes fixed JSON and
// returns its path, exercising the real subprocess path without depending on
// an actual platform accessibility helper being installed.
func writeFakeBackend(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake backend script assumes a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-axbackend")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func TestCaptureStateDecodesSnapshot(t *testing.T) {
	bin := writeFakeBackend(t, `echo '{"success":true,"focusedApplication":"com.example.app"}'`)
	c := NewClient(bin)
	snap, err := c.CaptureState(context.Background(), Point{})
	require.NoError(t, err)
	assert.Equal(t, "com.example.app", snap.FocusedApplication)
	assert.False(t, snap.Timestamp.IsZero())
}

func TestCaptureStatePropagatesBackendError(t *testing.T) {
	bin := writeFakeBackend(t, `echo '{"success":false,"error":"no permission"}'`)
	c := NewClient(bin)
	_, err := c.CaptureState(context.Background(), Point{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSearchUIElementsDecodesList(t *testing.T) {
	bin := writeFakeBackend(t, `echo '{"success":true,"results":[{"role":"button","title":"Save","similarity":0.9}]}'`)
	c := NewClient(bin)
	results, err := c.SearchUIElements(context.Background(), "Save", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "button", results[0].Role)
}

func TestQueryDecodesNearbyElements(t *testing.T) {
	bin := writeFakeBackend(t, `echo '{"success":true,"queryX":100,"queryY":200,"nearbyElements":[{"role":"link","enabled":true}]}'`)
	c := NewClient(bin)
	res, err := c.Query(context.Background(), 100, 200, 5, 50, false)
	require.NoError(t, err)
	assert.Equal(t, 100, res.QueryX)
	require.Len(t, res.NearbyElements, 1)
	assert.Equal(t, "link", res.NearbyElements[0].Role)
}

func TestUnavailableWhenBinaryMissing(t *testing.T) {
	c := NewClient("definitely-not-a-real-binary-xyz")
	_, err := c.CaptureState(context.Background(), Point{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCaptureStateTimesOut(t *testing.T) {
	bin := writeFakeBackend(t, `sleep 5; echo '{"success":true}'`)
	c := NewClient(bin)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.CaptureState(ctx, Point{})
	assert.ErrorIs(t, err, ErrUnavailable)
}
