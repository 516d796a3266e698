package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/picamlab/session"
)

func TestMissingFileUsesDefaults(t *testing.T) {
	_, c, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	d := Default()
	assert.Equal(t, d.Linkage, c.Linkage)
	assert.Equal(t, d.Frames, c.Frames)
	assert.Equal(t, d.FallbackSerial, c.FallbackSerial)
	assert.Equal(t, "fits", c.Recorder.Ext)
}

func TestFileThenEnv(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "picam.yml")
	yml := "ExposureMs: 250\nFrames: 7\nRecorder:\n  Root: /data\n"
	require.NoError(t, os.WriteFile(fn, []byte(yml), 0o644))
	t.Setenv("PICAM_FRAMES", "9")
	t.Setenv("PICAM_RECORDER__PREFIX", "pixis")
	t.Setenv("PICAM_NOT_A_KEY", "ignored")

	_, c, err := Load(fn)
	require.NoError(t, err)
	assert.Equal(t, 250.0, c.ExposureMs)
	assert.Equal(t, int64(9), c.Frames)
	assert.Equal(t, "/data", c.Recorder.Root)
	assert.Equal(t, "pixis", c.Recorder.Prefix)
	assert.Equal(t, "fits", c.Recorder.Ext)
}

func TestWriteRoundTrip(t *testing.T) {
	c := Default()
	c.Linkage = "dlopen"
	c.TimeoutMs = -1
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, c))
	fn := filepath.Join(t.TempDir(), "picam.yml")
	require.NoError(t, os.WriteFile(fn, buf.Bytes(), 0o644))
	_, back, err := Load(fn)
	require.NoError(t, err)
	assert.Equal(t, "dlopen", back.Linkage)
	assert.Equal(t, -1, back.TimeoutMs)
	assert.Contains(t, buf.String(), "Linkage: dlopen")
}

func TestBadFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "picam.yml")
	require.NoError(t, os.WriteFile(fn, []byte("Frames: [1, 2\n"), 0o644))
	_, _, err := Load(fn)
	assert.Error(t, err)
}

func TestTimeout(t *testing.T) {
	c := Default()
	assert.Equal(t, 5*time.Second, c.Timeout())
	c.TimeoutMs = -1
	assert.Equal(t, time.Duration(-1), c.Timeout())
	p := c.Poller()
	assert.Equal(t, c.MaxTimeouts, p.MaxTimeouts)
	require.NotNil(t, p.Reporter)
	c.ReportSeconds = 0
	assert.Nil(t, c.Poller().Reporter)
}

func TestControllerFallsBackToDemo(t *testing.T) {
	c := Default()
	ctl, err := Controller(c)
	require.NoError(t, err)
	assert.Equal(t, session.Initialized, ctl.State())
	d, err := ctl.OpenFirst()
	require.NoError(t, err)
	assert.Equal(t, c.FallbackSerial, d.ID.SerialNumber)
	assert.NoError(t, Shutdown(ctl))
	assert.Equal(t, session.Uninitialized, ctl.State())
}

func TestControllerUnknownLinkage(t *testing.T) {
	c := Default()
	c.Linkage = "carrier-pigeon"
	_, err := Controller(c)
	assert.Error(t, err)
}
