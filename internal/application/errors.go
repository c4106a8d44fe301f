package application

import (
	"errors"
	"fmt"

	"github.com/danakj/fizz/internal/domain/model"
)

// ErrWakeUnavailable is returned by Wake when the request cannot be queued.
// Callers (the admin command layer) should retry shortly.
var ErrWakeUnavailable = errors.New("wake queue unavailable")

// CyclePhase names the pipeline stage a cycle failed in.
type CyclePhase string

const (
	PhaseFetch   CyclePhase = "fetch"
	PhaseDeliver CyclePhase = "deliver"
	PhaseConfig  CyclePhase = "config"
)

// CycleError wraps a failure of one report cycle with enough context to
// diagnose it: the phase and, when applicable, the guild being processed.
// The loop reacts to any CycleError the same way: log, back off, retry the
// same watermark.
type CycleError struct {
	Phase CyclePhase
	Guild model.GuildID
	Err   error
}

func (e *CycleError) Error() string {
	if e.Guild == "" {
		return fmt.Sprintf("report cycle %s: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("report cycle %s (guild %s): %v", e.Phase, e.Guild, e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }
