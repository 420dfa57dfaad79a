package catalog

import (
	"strings"
	"time"

	"github.com/ekisa-team/polyglot/internal/mapsafe"
)

// Kind is the capability a backend provides.
type Kind string

const (
	// KindGeneration is a text-generation backend (a chat model).
	KindGeneration Kind = "generation"

	// KindSynthesis is a speech-synthesis backend (a TTS engine or voice).
	KindSynthesis Kind = "synthesis"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Footprint describes the resources a backend needs. Informational only.
type Footprint struct {
	Size string `json:"size,omitempty" yaml:"size,omitempty"`
	RAM  string `json:"ram,omitempty"  yaml:"ram,omitempty"`
}

// Descriptor is the static attribute record of one backend.
type Descriptor struct {
	ID            string         `json:"id"`
	DisplayName   string         `json:"display_name,omitempty"`
	Kind          Kind           `json:"kind"`
	Tags          []string       `json:"tags"`
	SpeedRating   int            `json:"speed_rating"`
	QualityRating int            `json:"quality_rating"`
	Footprint     Footprint      `json:"footprint"`
	Params        map[string]any `json:"params,omitempty"`
}

// Name returns the display name, falling back to the id.
func (d *Descriptor) Name() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.ID
}

// HasAnyTag reports whether the descriptor carries at least one of tags.
func (d *Descriptor) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range d.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Temperature returns the sampling temperature parameter.
func (d *Descriptor) Temperature() float64 {
	return mapsafe.Get(d.Params, ParamTemperature, 0.7)
}

// ContextWindow returns the context size parameter in tokens.
func (d *Descriptor) ContextWindow() int {
	return mapsafe.Get(d.Params, ParamContextWindow, 0)
}

// SystemPrompt returns the system prompt parameter.
func (d *Descriptor) SystemPrompt() string {
	return mapsafe.Get(d.Params, ParamSystemPrompt, "")
}

// Voice returns the voice parameter of a speech backend.
func (d *Descriptor) Voice() string {
	return mapsafe.Get(d.Params, ParamVoice, "")
}

// Language returns the language parameter of a speech backend.
func (d *Descriptor) Language() string {
	return mapsafe.Get(d.Params, ParamLanguage, "")
}

// Parameter keys understood by adapters and the chat service.
const (
	ParamTemperature   = "temperature"
	ParamContextWindow = "context_window"
	ParamSystemPrompt  = "system_prompt"
	ParamVoice         = "voice"
	ParamLanguage      = "language"
)

// Performance holds measured or estimated generation speed.
type Performance struct {
	Latency    time.Duration `json:"latency"`
	Throughput float64       `json:"tokens_per_second"`
	Estimated  bool          `json:"estimated"`
	MeasuredAt time.Time     `json:"measured_at"`
}

// Info joins a descriptor with its runtime facts.
type Info struct {
	Descriptor
	Available   bool         `json:"available"`
	Active      bool         `json:"active"`
	Performance *Performance `json:"performance,omitempty"`
}

// NormalizeModelName maps a model name to the form used when comparing
// against an inventory, where "name" and "name:latest" are the same model.
func NormalizeModelName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ":latest")
}
