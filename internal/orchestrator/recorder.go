package orchestrator

import (
	"time"

	"github.com/ekisa-team/polyglot/internal/catalog"
	"github.com/ekisa-team/polyglot/internal/probe"
)

// Recorder receives orchestration events, typically for metrics.
type Recorder interface {
	probe.Observer

	ObserveDispatch(kind catalog.Kind, backendID string, errKind ErrorKind, elapsed time.Duration)
	ObserveSwitch(kind catalog.Kind, from, to string)
	SetAvailable(kind catalog.Kind, n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveProbe(catalog.Kind, string, bool, time.Duration) {}
func (nopRecorder) ObserveDispatch(catalog.Kind, string, ErrorKind, time.Duration) {}
func (nopRecorder) ObserveSwitch(catalog.Kind, string, string) {}
func (nopRecorder) SetAvailable(catalog.Kind, int) {}
