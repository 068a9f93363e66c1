// Package recon is the orchestrator: given a scene.Project, it runs the
// candidate branching pass (trying a short list of initialization
// strategies and keeping whichever converges to the lowest reprojection
// error), then the outlier detection and cleanup pass, and reports a
// Result describing what happened. Everything underneath --
// initialization, residual assembly, the LM solve itself -- is
// implemented by the initcam, residual, varlayout, solve, candidate, and
// outlier packages; this file is the thin top-level contract those
// packages compose behind.
package recon

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"github.com/scottlawsonbc/slam/code/photon/recon/candidate"
	"github.com/scottlawsonbc/slam/code/photon/recon/outlier"
	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
	"github.com/scottlawsonbc/slam/code/photon/recon/solve"
)

// Sentinel errors Result.Error / the returned error wrap, so callers can
// match on them with errors.Is rather than string comparison.
var (
	// ErrConfiguration reports that OptimizeOptions failed validation.
	ErrConfiguration = errors.New("recon: invalid configuration")
	// ErrNoCandidateConverged reports that every candidate plan's solve
	// either failed outright or did not converge.
	ErrNoCandidateConverged = errors.New("recon: no candidate plan converged")
	// ErrCancelled reports that hooks.ShouldCancel tripped mid-solve.
	ErrCancelled = errors.New("recon: cancelled")
)

// OptimizeOptions configures one Optimize call. Defaults mirror the
// standard practice DefaultOptimizeOptions documents.
type OptimizeOptions struct {
	Tolerance     float64
	MaxIterations int
	Damping       float64
	Verbose       bool

	AutoInitializeCameras     bool
	AutoInitializeWorldPoints bool

	DetectOutliers             bool
	OutlierThresholdMultiplier float64

	MaxAttempts int
}

// DefaultOptimizeOptions returns the documented defaults.
func DefaultOptimizeOptions() OptimizeOptions {
	return OptimizeOptions{
		Tolerance:                  1e-6,
		MaxIterations:              500,
		Damping:                    0.1,
		AutoInitializeCameras:      true,
		AutoInitializeWorldPoints:  true,
		DetectOutliers:             true,
		OutlierThresholdMultiplier: outlier.DefaultMultiplier,
		MaxAttempts:                3,
	}
}

// Validate checks that every option is in range, mirroring the
// Validate() convention every entity type in scene follows.
func (o OptimizeOptions) Validate() error {
	if o.Tolerance <= 0 {
		return fmt.Errorf("%w: tolerance must be positive, got %g", ErrConfiguration, o.Tolerance)
	}
	if o.MaxIterations <= 0 {
		return fmt.Errorf("%w: maxIterations must be positive, got %d", ErrConfiguration, o.MaxIterations)
	}
	if o.Damping <= 0 {
		return fmt.Errorf("%w: damping must be positive, got %g", ErrConfiguration, o.Damping)
	}
	if o.MaxAttempts <= 0 {
		return fmt.Errorf("%w: maxAttempts must be positive, got %d", ErrConfiguration, o.MaxAttempts)
	}
	return nil
}

// Hooks lets a host observe and steer a solve without recon depending on
// any particular logging or UI framework.
type Hooks struct {
	// Log receives one line of text per notable event, when non-nil.
	Log func(string)
	// Yield is called once per LM iteration so a host can stay responsive;
	// it may be nil, in which case no yield happens.
	Yield func()
	// ShouldCancel is polled between iterations and between candidate
	// attempts. A nil hook never cancels.
	ShouldCancel func() bool
}

func (h Hooks) log(format string, args ...any) {
	if h.Log != nil {
		h.Log(fmt.Sprintf(format, args...))
	}
}

func (h Hooks) cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return h.ShouldCancel != nil && h.ShouldCancel()
}

// Result reports how an Optimize call concluded.
type Result struct {
	Converged               bool
	Iterations              int
	Residual                float64
	MedianReprojectionError float64
	RMSReprojectionError    float64
	Outliers                []outlier.Observation
	CamerasInitialized      []string
	CamerasExcluded         []string
	Error                   string
}

// Optimize runs the full candidate-branching, solve, and outlier-cleanup
// pipeline over project, mutating its entities in place on success. On
// any failure -- configuration error, cancellation, or no candidate
// converging -- project is restored to exactly the state it was in when
// Optimize was called.
func Optimize(ctx context.Context, project *scene.Project, opts OptimizeOptions, hooks Hooks) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{Error: err.Error()}, err
	}
	snapshot := project.Snapshot()

	if hooks.cancelled(ctx) {
		return Result{Error: ErrCancelled.Error()}, ErrCancelled
	}

	solveOpts := solve.Options{
		Tolerance:     opts.Tolerance,
		MaxIterations: opts.MaxIterations,
		Damping:       opts.Damping,
		Verbose:       opts.Verbose,
		LogFunc:       hooks.Log,
		Yield:         hooks.Yield,
		ShouldCancel:  func() bool { return hooks.cancelled(ctx) },
	}

	plans := candidate.Enumerate(opts.MaxAttempts)
	var attempts []candidate.Attempt
	for _, plan := range plans {
		if hooks.cancelled(ctx) {
			project.Restore(snapshot)
			return Result{Error: ErrCancelled.Error()}, ErrCancelled
		}
		trial := snapshot.Snapshot()
		attemptID := uuid.New()
		hooks.log("recon[%s]: trying candidate %q", attemptID, plan.Description)
		attempt := candidate.Run(trial, plan, solveOpts)
		if errors.Is(attempt.Err, solve.ErrCancelled) {
			hooks.log("recon[%s]: candidate %q cancelled mid-solve", attemptID, plan.Description)
			project.Restore(snapshot)
			return Result{Error: ErrCancelled.Error()}, ErrCancelled
		}
		if attempt.Err != nil {
			hooks.log("recon[%s]: candidate %q failed: %v", attemptID, plan.Description, attempt.Err)
		} else {
			hooks.log("recon[%s]: candidate %q converged=%v median=%.3f rms=%.3f",
				attemptID, plan.Description, attempt.Converged, attempt.MedianError, attempt.RMSError)
		}
		attempts = append(attempts, attempt)
		if hooks.Yield != nil {
			hooks.Yield()
		}
	}

	best, err := candidate.Best(attempts)
	if err != nil {
		project.Restore(snapshot)
		return Result{Error: ErrNoCandidateConverged.Error()}, fmt.Errorf("%w", ErrNoCandidateConverged)
	}
	project.Restore(best.Project)

	result := Result{
		Converged:               best.SolveResult.Converged,
		Iterations:              best.SolveResult.Iterations,
		Residual:                best.SolveResult.FinalCost,
		MedianReprojectionError: best.MedianError,
		RMSReprojectionError:    best.RMSError,
		CamerasInitialized:      viewpointNames(project),
	}

	if opts.DetectOutliers {
		if hooks.cancelled(ctx) {
			project.Restore(snapshot)
			return Result{Error: ErrCancelled.Error()}, ErrCancelled
		}
		outliers, outlierResult, err := outlier.RemoveAndResolve(project, solveOpts, opts.OutlierThresholdMultiplier)
		if errors.Is(err, solve.ErrCancelled) {
			project.Restore(snapshot)
			return Result{Error: ErrCancelled.Error()}, ErrCancelled
		}
		if err != nil {
			hooks.log("recon: outlier pass failed: %v", err)
		} else if len(outliers) > 0 {
			hooks.log("recon: removed %d outlier observations and re-solved", len(outliers))
			result.Outliers = outliers
			result.Converged = outlerConvergedOr(outlierResult, result.Converged)
			result.Iterations += outlierResult.Iterations
			result.Residual = outlierResult.FinalCost
		}
	}

	project.RecomputeOptimizationInfo()
	return result, nil
}

func outlerConvergedOr(r solve.Result, fallback bool) bool {
	if r.X == nil {
		return fallback
	}
	return r.Converged
}

func viewpointNames(project *scene.Project) []string {
	var names []string
	for _, item := range project.Viewpoints() {
		if item.Item.EnabledInSolve {
			names = append(names, item.Item.Name)
		}
	}
	return names
}

// BatchResult pairs one project's Result with its index in the input
// slice passed to OptimizeBatch, since results may complete out of
// order.
type BatchResult struct {
	Index  int
	Result Result
	Err    error
}

// OptimizeBatch runs Optimize over many independent projects
// concurrently, bounded by runtime.NumCPU() workers -- the same tiled
// worker-pool shape phys/render.go's renderScene uses for parallel ray
// tracing, applied here to whole projects instead of image tiles, since
// each Optimize call already owns its project exclusively for the
// duration of the solve and projects share no mutable state with each
// other.
func OptimizeBatch(ctx context.Context, projects []*scene.Project, opts OptimizeOptions, hooks Hooks) []BatchResult {
	results := make([]BatchResult, len(projects))
	numWorkers := runtime.NumCPU()
	if numWorkers > len(projects) {
		numWorkers = len(projects)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	jobs := make(chan int, len(projects))
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := Optimize(ctx, projects[i], opts, hooks)
				results[i] = BatchResult{Index: i, Result: res, Err: err}
			}
		}()
	}
	for i := range projects {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}
