package orchestrator

import (
	"context"
	"maps"
	"time"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/catalog"
	"github.com/ekisa-team/polyglot/internal/probe"
)

// SynthesizeRequest is one speech-synthesis call.
type SynthesizeRequest struct {
	Text string

	// Engine forces a backend; a rejected override fails the call.
	Engine string

	// Language prefers the engine mapped to it, when available.
	Language string

	// Voice is passed to the engine as a voice hint.
	Voice string
}

// SynthesizeResult is the outcome of a speech dispatch.
type SynthesizeResult struct {
	Success   bool                `json:"success"`
	Engine    string              `json:"engine,omitempty"`
	Voice     string              `json:"voice,omitempty"`
	Language  string              `json:"language,omitempty"`
	Audio     *backend.Audio      `json:"-"`
	Info      backend.Description `json:"info"`
	Latency   time.Duration       `json:"latency"`
	ErrorKind ErrorKind           `json:"error_kind,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// Speech selects and calls speech-synthesis backends.
type Speech struct {
	*manager[backend.Synthesizer]

	languages     map[string]string
	demoteOnFatal bool
}

// Start probes the engines and seeds the active one.
func (s *Speech) Start(ctx context.Context) probe.Result {
	return s.Refresh(ctx)
}

// Languages returns the language → engine table.
func (s *Speech) Languages() map[string]string {
	return maps.Clone(s.languages)
}

// LanguageEngine returns the engine preferred for lang.
func (s *Speech) LanguageEngine(lang string) (string, bool) {
	id, ok := s.languages[lang]
	return id, ok
}

// Infos lists every engine with availability and active flag.
func (s *Speech) Infos() []catalog.Info {
	return s.manager.Infos(nil)
}

// Dispatch runs one synthesis call. Without an explicit engine, a language
// hint switches to that language's engine when it is available; otherwise
// the current engine is used. A failing call is not retried elsewhere.
func (s *Speech) Dispatch(ctx context.Context, req SynthesizeRequest) SynthesizeResult {
	start := time.Now()
	res := s.dispatch(ctx, req)
	res.Latency = time.Since(start)

	s.recorder.ObserveDispatch(catalog.KindSynthesis, res.Engine, res.ErrorKind, res.Latency)
	return res
}

func (s *Speech) dispatch(ctx context.Context, req SynthesizeRequest) SynthesizeResult {
	res := SynthesizeResult{Language: req.Language}

	switch {
	case req.Engine != "":
		if err := s.SwitchTo(req.Engine); err != nil {
			return s.fail(res, err)
		}
	case req.Language != "":
		if preferred, ok := s.languages[req.Language]; ok && s.available.Has(preferred) {
			if err := s.SwitchTo(preferred); err != nil {
				s.logger.Debug("Language engine switch skipped", "language", req.Language, "engine", preferred, "error", err)
			}
		}
	}

	id, syn, err := s.snapshot()
	res.Engine = id
	if err != nil {
		return s.fail(res, err)
	}

	desc, _ := s.catalog.Get(id)
	res.Voice = req.Voice
	if res.Voice == "" {
		res.Voice = desc.Voice()
	}
	if res.Language == "" {
		res.Language = desc.Language()
	}

	audio, err := backend.Guard(id, "synthesize", func() (*backend.Audio, error) {
		return syn.Synthesize(ctx, req.Text, req.Voice)
	})
	res.Info = backend.SafeDescribe(syn)
	if err != nil {
		s.logger.Error("Synthesis failed", "engine", id, "error", err)
		if s.demoteOnFatal && backend.IsFatal(err) {
			s.demote(id, err)
		}
		return s.fail(res, err)
	}

	res.Success = true
	res.Audio = audio
	return res
}

func (s *Speech) fail(res SynthesizeResult, err error) SynthesizeResult {
	res.Success = false
	res.ErrorKind = KindOf(err)
	res.Error = err.Error()
	return res
}
