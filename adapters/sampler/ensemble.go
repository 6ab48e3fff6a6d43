// Package sampler implements the affine-invariant ensemble sampler with the
// stretch move.
package sampler

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	"zerofield/adapters/rng"
	"zerofield/domain/chain"
	"zerofield/domain/core"
	"zerofield/domain/cosmo"
	"zerofield/internal"
	"zerofield/internal/metrics"
	"zerofield/ports"
)

// RNG stream names
const (
	streamInit    = "walker_init"
	streamStretch = "stretch_move"
)

// Result is the outcome of a run. After an interruption it holds every
// production step that completed.
type Result struct {
	Chain *chain.Chain
	Stats chain.RunStats
	Final []cosmo.ParameterVector // ensemble positions after the last step
}

// Sampler is the EnsembleSampler. A Sampler runs one chain at a time; the
// ensemble state and chain buffer are owned by Run and mutated only between
// generations.
type Sampler struct {
	config    Config
	posterior ports.Posterior
	rngPort   ports.RNGPort
	logger    *internal.Logger
}

// New creates a sampler. A nil rngPort uses PCG streams.
func New(config Config, posterior ports.Posterior, rngPort ports.RNGPort, logger *internal.Logger) (*Sampler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("sampler config: %w", err)
	}
	if posterior == nil {
		return nil, fmt.Errorf("sampler: posterior is required")
	}
	if rngPort == nil {
		rngPort = rng.NewPCGAdapter()
	}
	return &Sampler{
		config:    config,
		posterior: posterior,
		rngPort:   rngPort,
		logger:    internal.OrDefault(logger),
	}, nil
}

// run carries the mutable state of one Run call.
type run struct {
	*Sampler
	phase    chain.Phase
	pos      []cosmo.ParameterVector
	lp       []float64
	stats    chain.RunStats
	accepted []int64
	out      *chain.Chain
}

// Run seeds the ensemble around the fiducial point, then runs burn-in and
// production. If ctx ends between steps the run stops with phase Interrupted
// and the partial result is returned together with an error wrapping
// core.ErrRunInterrupted.
func (s *Sampler) Run(ctx context.Context) (*Result, error) {
	r := s.newRun()
	if err := r.seed(ctx); err != nil {
		if ctx.Err() != nil {
			return r.interrupt(ctx.Err())
		}
		return nil, err
	}
	return r.execute(ctx)
}

// RunFrom runs burn-in and production from a caller supplied ensemble. Every
// walker must have a finite log-probability.
func (s *Sampler) RunFrom(ctx context.Context, initial []cosmo.ParameterVector) (*Result, error) {
	if len(initial) != s.config.Walkers {
		return nil, fmt.Errorf("%w: expected %d walkers, got %d", core.ErrInvalidInitialState, s.config.Walkers, len(initial))
	}
	r := s.newRun()
	r.pos = append([]cosmo.ParameterVector(nil), initial...)
	evals := r.evaluateAll(r.pos)
	r.lp = make([]float64, len(evals))
	for k, ev := range evals {
		if !finite(ev.LogProb) {
			return nil, fmt.Errorf("%w: walker %d at %s has log-probability %g", core.ErrInvalidInitialState, k, initial[k], ev.LogProb)
		}
		r.lp[k] = ev.LogProb
	}
	if err := distinct(r.pos); err != nil {
		return nil, err
	}
	return r.execute(ctx)
}

func (s *Sampler) newRun() *run {
	metrics.Phase.Set(chain.PhaseInitialized.Ordinal())
	return &run{
		Sampler:  s,
		phase:    chain.PhaseInitialized,
		accepted: make([]int64, s.config.Walkers),
		out:      chain.New(s.config.Walkers),
	}
}

// seed draws fiducial + scatter·N(0,1) per walker and dimension, redrawing
// walkers whose log-probability is not finite.
func (r *run) seed(ctx context.Context) error {
	src, err := r.rngPort.SeededStream(ctx, streamInit, r.config.Seed)
	if err != nil {
		return err
	}
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	w := r.config.Walkers
	r.pos = make([]cosmo.ParameterVector, w)
	r.lp = make([]float64, w)
	pending := make([]int, w)
	for k := range pending {
		pending[k] = k
	}

	for attempt := 0; len(pending) > 0; attempt++ {
		if attempt >= r.config.MaxInitAttempts {
			return fmt.Errorf("%w: %d of %d walkers still invalid after %d attempts",
				core.ErrInvalidInitialState, len(pending), w, r.config.MaxInitAttempts)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		candidates := make([]cosmo.ParameterVector, len(pending))
		for i := range pending {
			for d := 0; d < cosmo.NDim; d++ {
				candidates[i][d] = r.config.Fiducial[d] + r.config.Scatter[d]*normal.Rand()
			}
		}
		evals := r.evaluateAll(candidates)

		var still []int
		for i, k := range pending {
			if !finite(evals[i].LogProb) {
				still = append(still, k)
				continue
			}
			r.pos[k] = candidates[i]
			r.lp[k] = evals[i].LogProb
		}
		pending = still
	}
	return distinct(r.pos)
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	if err := r.advance(chain.PhaseBurnIn); err != nil {
		return nil, err
	}
	stretch, err := r.rngPort.SeededStream(ctx, streamStretch, r.config.Seed)
	if err != nil {
		return nil, err
	}

	for t := 0; t < r.config.BurnIn; t++ {
		if err := ctx.Err(); err != nil {
			return r.interrupt(err)
		}
		r.step(stretch)
		r.stats.BurnInSteps++
		r.progress(t+1, r.config.BurnIn)
	}

	if err := r.advance(chain.PhaseProduction); err != nil {
		return nil, err
	}
	for t := 0; t < r.config.Steps; t++ {
		if err := ctx.Err(); err != nil {
			return r.interrupt(err)
		}
		r.step(stretch)
		if err := r.out.Append(r.pos, r.lp); err != nil {
			return nil, err
		}
		r.stats.ProductionSteps++
		r.progress(t+1, r.config.Steps)
	}

	if err := r.advance(chain.PhaseComplete); err != nil {
		return nil, err
	}
	r.logger.Info("ensemble run complete: %d samples, acceptance %.3f, fallback rate %.4f",
		r.out.Len(), r.stats.AcceptanceFraction(), r.stats.FallbackRate())
	return r.result(), nil
}

// step performs one synchronous generation. All random variates are drawn
// from the stream before any evaluation so the chain does not depend on the
// pool size. Proposals only see the step-t snapshot.
func (r *run) step(src *rand.Rand) {
	start := time.Now()
	defer metrics.ObserveSince(metrics.StepDuration, start)

	w := r.config.Walkers
	a := r.config.StretchScale
	uniform := distuv.Uniform{Min: 0, Max: 1, Src: src}

	proposals := make([]cosmo.ParameterVector, w)
	zs := make([]float64, w)
	logU := make([]float64, w)
	for k := 0; k < w; k++ {
		j := src.IntN(w - 1)
		if j >= k {
			j++
		}
		u := (a-1)*uniform.Rand() + 1
		z := u * u / a
		for d := 0; d < cosmo.NDim; d++ {
			proposals[k][d] = r.pos[j][d] + z*(r.pos[k][d]-r.pos[j][d])
		}
		zs[k] = z
		logU[k] = math.Log(uniform.Rand())
	}

	evals := r.evaluateAll(proposals)

	// barrier passed: apply acceptance to produce generation t+1
	production := r.phase == chain.PhaseProduction
	for k := 0; k < w; k++ {
		logRatio := float64(cosmo.NDim-1)*math.Log(zs[k]) + evals[k].LogProb - r.lp[k]
		ok := logU[k] < logRatio
		if ok {
			r.pos[k] = proposals[k]
			r.lp[k] = evals[k].LogProb
		}
		result := "rejected"
		if ok {
			result = "accepted"
		}
		metrics.Proposals.WithLabelValues(result, string(r.phase)).Inc()
		if production {
			r.stats.Proposed++
			if ok {
				r.stats.Accepted++
				r.accepted[k]++
			}
		}
	}
}

// evaluateAll evaluates every position in the worker pool and blocks until
// all of them are done. A panicking evaluation counts as a rejection.
func (r *run) evaluateAll(positions []cosmo.ParameterVector) []ports.Evaluation {
	evals := make([]ports.Evaluation, len(positions))
	var g errgroup.Group
	g.SetLimit(r.config.workers())
	for i := range positions {
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					evals[i] = ports.Evaluation{LogProb: math.Inf(-1), Reason: fmt.Errorf("panic evaluating %s: %v", positions[i], rec)}
				}
			}()
			evals[i] = r.posterior.Evaluate(positions[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, ev := range evals {
		r.stats.Evaluations++
		if ev.Degraded {
			r.stats.Fallbacks++
		}
		if ev.PriorViolation != "" {
			r.stats.PriorRejections++
		}
	}
	return evals
}

func (r *run) advance(to chain.Phase) error {
	next, err := r.phase.Transition(to)
	if err != nil {
		return err
	}
	r.logger.Info("sampler phase %s -> %s (walkers=%d)", r.phase, next, r.config.Walkers)
	r.phase = next
	metrics.Phase.Set(next.Ordinal())
	return nil
}

func (r *run) interrupt(cause error) (*Result, error) {
	from := r.phase
	if err := r.advance(chain.PhaseInterrupted); err != nil {
		return nil, err
	}
	r.logger.Warn("sampler interrupted during %s after %d production steps: %v", from, r.stats.ProductionSteps, cause)
	return r.result(), fmt.Errorf("%w during %s: %w", core.ErrRunInterrupted, from, cause)
}

func (r *run) progress(done, total int) {
	every := r.config.ProgressEvery
	if every <= 0 || done%every != 0 {
		return
	}
	r.logger.Info("%s step %d/%d, acceptance %.3f", r.phase, done, total, r.stats.AcceptanceFraction())
}

func (r *run) result() *Result {
	r.stats.Phase = r.phase
	r.stats.WalkerAcceptance = make([]float64, len(r.accepted))
	if r.stats.ProductionSteps > 0 {
		for k, n := range r.accepted {
			r.stats.WalkerAcceptance[k] = float64(n) / float64(r.stats.ProductionSteps)
		}
	}
	var final []cosmo.ParameterVector
	if r.pos != nil {
		final = append(final, r.pos...)
	}
	return &Result{Chain: r.out, Stats: r.stats, Final: final}
}

// distinct rejects ensembles with coincident walkers, which collapse the
// stretch move onto a lower-dimensional subspace.
func distinct(pos []cosmo.ParameterVector) error {
	for i := range pos {
		for j := i + 1; j < len(pos); j++ {
			if pos[i] == pos[j] {
				return fmt.Errorf("%w: walkers %d and %d coincide at %s", core.ErrInvalidInitialState, i, j, pos[i])
			}
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
