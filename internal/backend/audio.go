package backend

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Audio is synthesized speech: normalized samples in [-1,1] plus the
// encoded payload the engine produced.
type Audio struct {
	Samples    []float32
	SampleRate int
	Channels   int
	Format     string
	Encoded    []byte
}

// Duration returns the playback length.
func (a *Audio) Duration() time.Duration {
	if a == nil || a.SampleRate == 0 || a.Channels == 0 {
		return 0
	}
	frames := len(a.Samples) / a.Channels
	return time.Duration(float64(frames) / float64(a.SampleRate) * float64(time.Second))
}

// DecodeWAV parses a PCM WAV payload.
func DecodeWAV(data []byte) (*Audio, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: not a PCM wav file", ErrInvalidAudio)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}
	if d.BitDepth == 0 {
		return nil, fmt.Errorf("%w: zero bit depth", ErrInvalidAudio)
	}

	scale := float32(int64(1) << (d.BitDepth - 1))
	samples := make([]float32, len(buf.Data))
	for i, s := range buf.Data {
		samples[i] = float32(s) / scale
	}

	return &Audio{
		Samples:    samples,
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		Format:     "wav",
		Encoded:    data,
	}, nil
}

// WAV returns the audio as a WAV file, reusing the engine payload when it
// already is one and encoding the samples as 16-bit PCM otherwise.
func (a *Audio) WAV() ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: no audio", ErrInvalidAudio)
	}
	if a.Format == "wav" && len(a.Encoded) > 0 {
		return a.Encoded, nil
	}
	if a.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidAudio, a.SampleRate)
	}

	channels := max(a.Channels, 1)
	data := make([]int, len(a.Samples))
	for i, s := range a.Samples {
		data[i] = int(math.Round(float64(min(max(s, -1), 1)) * math.MaxInt16))
	}

	// The encoder needs an io.WriteSeeker.
	f, err := os.CreateTemp("", "polyglot-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp wav: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	enc := wav.NewEncoder(f, a.SampleRate, 16, channels, 1)
	err = enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: a.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	})
	if err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}

	return os.ReadFile(f.Name())
}
