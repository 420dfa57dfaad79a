package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/catalog"
	"github.com/ekisa-team/polyglot/internal/estimate"
	"github.com/ekisa-team/polyglot/internal/probe"
	"github.com/ekisa-team/polyglot/internal/selection"
)

// GenerateRequest is one text-generation call.
type GenerateRequest struct {
	Messages []backend.Message
	Options  backend.Options

	// Signal drives classification when AutoSelect is set.
	Signal selection.Signal

	// Category, when set, bypasses classification.
	Category selection.Category

	// Override forces a backend; a rejected override fails the call.
	Override string

	AutoSelect bool

	// SystemPrompt prepends the chosen backend's system prompt unless the
	// messages already start with one.
	SystemPrompt bool
}

// GenerateResult is the outcome of a generation dispatch. Failures are
// reported in the result, never as a panic or bare error.
type GenerateResult struct {
	Success   bool               `json:"success"`
	BackendID string             `json:"backend_id,omitempty"`
	// Category is the classification of this request. The backend that
	// served it is the one its own auto-selection picked, even when
	// concurrent requests move the active backend afterwards.
	Category  selection.Category `json:"category,omitempty"`
	Text      string             `json:"text,omitempty"`
	Latency   time.Duration      `json:"latency"`
	ErrorKind ErrorKind          `json:"error_kind,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Generation selects and calls text-generation backends.
type Generation struct {
	*manager[backend.Generator]

	classifier    *selection.Classifier
	estimator     *estimate.Estimator
	perf          *estimate.Table
	demoteOnFatal bool
}

// Start probes the backends, seeds the active one and gathers
// performance data.
func (g *Generation) Start(ctx context.Context) probe.Result {
	return g.Refresh(ctx)
}

// Refresh re-probes and re-estimates.
func (g *Generation) Refresh(ctx context.Context) probe.Result {
	res := g.manager.Refresh(ctx)
	if g.estimator != nil {
		g.estimator.Run(ctx, g.catalog, g.registry, g.available.IDs(), g.perf)
	}
	return res
}

// Classify maps a signal to a category.
func (g *Generation) Classify(sig selection.Signal) selection.Category {
	return g.classifier.Classify(sig)
}

// Rank returns the best available candidates for c.
func (g *Generation) Rank(c selection.Category) []string {
	return selection.Rank(g.catalog, g.available, c)
}

// Recommendations ranks every category.
func (g *Generation) Recommendations() map[selection.Category][]string {
	out := make(map[selection.Category][]string)
	for _, c := range selection.Categories() {
		out[c] = g.Rank(c)
	}
	return out
}

// AutoSelect classifies the signal (unless hint is set), ranks, and makes
// the first still-available candidate active. It returns the active id
// afterwards, which is unchanged when there is no candidate.
func (g *Generation) AutoSelect(sig selection.Signal, hint selection.Category) (string, selection.Category) {
	c := hint
	if c == "" {
		c = g.Classify(sig)
	}

	for _, id := range g.Rank(c) {
		if !g.available.Has(id) {
			continue
		}
		if err := g.SwitchTo(id); err != nil {
			// Lost a race with a refresh or demotion; try the next one.
			continue
		}
		return id, c
	}

	active, _ := g.Active()
	return active, c
}

// Performance returns the performance data of id.
func (g *Generation) Performance(id string) (catalog.Performance, bool) {
	return g.perf.Get(id)
}

// Infos lists every model with availability, active flag and performance.
func (g *Generation) Infos() []catalog.Info {
	return g.manager.Infos(g.perf.Get)
}

// Dispatch runs one generation call.
func (g *Generation) Dispatch(ctx context.Context, req GenerateRequest) GenerateResult {
	start := time.Now()
	res := g.dispatch(ctx, req)
	res.Latency = time.Since(start)

	g.recorder.ObserveDispatch(catalog.KindGeneration, res.BackendID, res.ErrorKind, res.Latency)
	return res
}

func (g *Generation) dispatch(ctx context.Context, req GenerateRequest) GenerateResult {
	var (
		res GenerateResult
		id  string
		gen backend.Generator
		err error
	)

	switch {
	case req.Override != "":
		if err := g.SwitchTo(req.Override); err != nil {
			return fail(res, err)
		}
		id, gen, err = g.snapshot()
	case req.AutoSelect:
		id, res.Category = g.AutoSelect(req.Signal, req.Category)
		gen, err = g.adapter(id)
	default:
		id, gen, err = g.snapshot()
	}

	res.BackendID = id
	if err != nil {
		return fail(res, err)
	}

	msgs := req.Messages
	if req.SystemPrompt {
		msgs = g.withSystemPrompt(id, msgs)
	}

	text, err := backend.Guard(id, "generate", func() (string, error) {
		return gen.Generate(ctx, msgs, req.Options)
	})
	if err != nil {
		g.logger.Error("Generation failed", "backend_id", id, "error", err)
		if g.demoteOnFatal && backend.IsFatal(err) {
			g.demote(id, err)
		}
		return fail(res, err)
	}

	res.Success = true
	res.Text = text
	return res
}

func (g *Generation) withSystemPrompt(id string, msgs []backend.Message) []backend.Message {
	if len(msgs) > 0 && msgs[0].Role == backend.RoleSystem {
		return msgs
	}
	desc, _ := g.catalog.Get(id)
	prompt := desc.SystemPrompt()
	if prompt == "" {
		return msgs
	}

	out := make([]backend.Message, 0, len(msgs)+1)
	out = append(out, backend.Message{Role: backend.RoleSystem, Content: prompt})
	return append(out, msgs...)
}

func fail(res GenerateResult, err error) GenerateResult {
	res.Success = false
	res.ErrorKind = KindOf(err)
	res.Error = err.Error()

	var ce *backend.CallError
	if errors.As(err, &ce) && ce.BackendID != "" {
		res.BackendID = ce.BackendID
	}
	return res
}
