package chain

import "zerofield/domain/core"

// Phase is the sampler lifecycle state.
type Phase string

const (
	PhaseInitialized Phase = "initialized"
	PhaseBurnIn      Phase = "burn_in"
	PhaseProduction  Phase = "production"
	PhaseComplete    Phase = "complete"
	PhaseInterrupted Phase = "interrupted"
)

// next maps each phase to the only phase it may advance to.
var next = map[Phase]Phase{
	PhaseInitialized: PhaseBurnIn,
	PhaseBurnIn:      PhaseProduction,
	PhaseProduction:  PhaseComplete,
}

// Transition validates a move from p to to. Every non-terminal phase may
// also be interrupted.
func (p Phase) Transition(to Phase) (Phase, error) {
	if to == PhaseInterrupted && !p.Terminal() {
		return to, nil
	}
	if next[p] != to {
		return p, core.NewPhaseTransitionError(string(p), string(to))
	}
	return to, nil
}

// Terminal reports whether no further transitions are allowed.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseInterrupted
}

// Ordinal is used for the phase gauge.
func (p Phase) Ordinal() float64 {
	switch p {
	case PhaseInitialized:
		return 0
	case PhaseBurnIn:
		return 1
	case PhaseProduction:
		return 2
	case PhaseComplete:
		return 3
	}
	return -1
}
