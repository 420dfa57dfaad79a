package backend_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/backend/backendtest"
)

func TestDecodeWAV(t *testing.T) {
	data := backendtest.EncodeWAV(t, make([]int, 8000), 16000)

	a, err := backend.DecodeWAV(data)
	require.NoError(t, err)

	assert.Equal(t, 16000, a.SampleRate)
	assert.Equal(t, 1, a.Channels)
	assert.Len(t, a.Samples, 8000)
	assert.Equal(t, 500*time.Millisecond, a.Duration())
	assert.Equal(t, data, a.Encoded)
}

func TestDecodeWAV_Invalid(t *testing.T) {
	_, err := backend.DecodeWAV([]byte("RIFF but not really"))
	assert.ErrorIs(t, err, backend.ErrInvalidAudio)
}

func TestAudioDuration_Empty(t *testing.T) {
	var a *backend.Audio
	assert.Zero(t, a.Duration())
	assert.Zero(t, (&backend.Audio{}).Duration())
}

func TestAudioWAV_EncodesSamples(t *testing.T) {
	src := &backend.Audio{Samples: []float32{0, 0.5, -0.5, 1.5}, SampleRate: 16000, Channels: 1, Format: "pcm"}

	data, err := src.WAV()
	require.NoError(t, err)

	a, err := backend.DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, 16000, a.SampleRate)
	require.Len(t, a.Samples, 4)
	assert.InDelta(t, 0.5, a.Samples[1], 0.001)
	assert.InDelta(t, 1.0, a.Samples[3], 0.001)
}

func TestAudioWAV_ReusesPayload(t *testing.T) {
	data := backendtest.EncodeWAV(t, []int{1, 2, 3}, 22050)
	a, err := backend.DecodeWAV(data)
	require.NoError(t, err)

	out, err := a.WAV()
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestAudioWAV_Invalid(t *testing.T) {
	var a *backend.Audio
	_, err := a.WAV()
	assert.ErrorIs(t, err, backend.ErrInvalidAudio)

	_, err = (&backend.Audio{Samples: []float32{0}}).WAV()
	assert.ErrorIs(t, err, backend.ErrInvalidAudio)
}
