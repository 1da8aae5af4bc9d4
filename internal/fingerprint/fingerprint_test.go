package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleSignals() Signals {
	return Signals{
		CanvasHash:          "a1b2c3",
		UserAgent:           "Mozilla/5.0 (X11; Linux x86_64)",
		Language:            "en-IN",
		Languages:           []string{"en-IN", "hi"},
		Platform:            "Linux x86_64",
		ScreenWidth:         1920,
		ScreenHeight:        1080,
		ColorDepth:          24,
		PixelRatio:          1.5,
		Timezone:            "Asia/Kolkata",
		HardwareConcurrency: 8,
		DeviceMemory:        8,
		Plugins:             []string{"PDF Viewer", "Chrome PDF Viewer"},
		WebGLVendor:         "Intel",
		WebGLRenderer:       "Mesa",
		SessionID:           "s-1",
	}
}

func TestComputeStable(t *testing.T) {
	a := sampleSignals()
	b := sampleSignals()
	b.SessionID = "s-2"
	b.Languages = []string{"HI", "en-in"}
	b.Plugins = []string{"Chrome PDF Viewer", "PDF Viewer"}

	fp := Compute(a)
	assert.True(t, Valid(fp), fp)
	assert.Equal(t, fp, Compute(b))
}

func TestComputeDiffersOnDeviceChange(t *testing.T) {
	a := sampleSignals()
	b := sampleSignals()
	b.ScreenWidth = 1366
	assert.NotEqual(t, Compute(a), Compute(b))
}

func TestResolve(t *testing.T) {
	signals := sampleSignals()
	computed := Compute(signals)

	assert.Equal(t, computed, Resolve(computed, nil, ""))
	assert.Equal(t, computed, Resolve("not-a-fingerprint", &signals, "s-1"))

	raw := Resolve("legacy-client-value", nil, "s-1")
	assert.True(t, Valid(raw))
	assert.Equal(t, raw, Resolve("legacy-client-value", nil, "s-9"))

	session := Resolve("", &Signals{}, "s-1")
	assert.True(t, Valid(session))
	assert.NotEqual(t, session, Resolve("", nil, "s-2"))

	assert.Empty(t, Resolve("", nil, ""))
}
