package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"redub/internal/config"
	"redub/internal/fingerprint"
	"redub/internal/logging"
	"redub/internal/manifest"
	"redub/internal/workspace"
)

// Runner executes an ordered set of phases against one episode workspace,
// skipping phases whose recorded fingerprints still match the world.
type Runner struct {
	ws       *workspace.Workspace
	manifest *manifest.Manifest
	cfg      *config.Config
	creds    config.Credentials
	logger   *slog.Logger
	phases   []Phase

	// external maps artifact keys that no phase produces (the source
	// video) to absolute paths.
	external map[string]string
}

// Options configures a pipeline run.
type Options struct {
	// From forces this phase and everything after it to run.
	From string
	// To stops the run after this phase. Empty means run everything.
	To string
}

// NewRunner builds a runner over the given phases in execution order.
func NewRunner(ws *workspace.Workspace, m *manifest.Manifest, cfg *config.Config, creds config.Credentials, logger *slog.Logger, phases []Phase) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		ws:       ws,
		manifest: m,
		cfg:      cfg,
		creds:    creds,
		logger:   logger,
		phases:   phases,
		external: map[string]string{KeySourceVideo: ws.Video},
	}
}

// KeySourceVideo names the externally supplied source video artifact.
const KeySourceVideo = "media.video"

// pathFor resolves an artifact key to an absolute path by consulting phase
// declarations, then the external artifacts.
func (r *Runner) pathFor(key string) (string, error) {
	for _, p := range r.phases {
		if rel, ok := p.Provides()[key]; ok {
			return r.ws.Path(rel), nil
		}
	}
	if path, ok := r.external[key]; ok {
		return path, nil
	}
	return "", fmt.Errorf("unknown artifact key %q", key)
}

// phaseByName returns the phase with the given name.
func (r *Runner) phaseByName(name string) (Phase, error) {
	for _, p := range r.phases {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("unknown phase %q", name)
}

// ShouldRun evaluates the skip rules for a phase in order; the first
// matching rule wins. The returned reason names the rule that fired.
func (r *Runner) ShouldRun(p Phase, forced bool) (bool, string, error) {
	if forced {
		return true, "forced", nil
	}

	rec, ok := r.manifest.Phase(p.Name())
	if !ok {
		return true, "no manifest record", nil
	}

	if rec.Version != p.Version() {
		return true, fmt.Sprintf("version changed %d -> %d", rec.Version, p.Version()), nil
	}

	for _, key := range p.Requires() {
		path, err := r.pathFor(key)
		if err != nil {
			return false, "", err
		}
		current, err := fingerprint.Path(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return true, fmt.Sprintf("input %s missing", key), nil
			}
			return false, "", err
		}
		if rec.InputFingerprints[key] != current {
			return true, fmt.Sprintf("input %s changed", key), nil
		}
	}

	cfgFP, err := fingerprint.Config(p.ConfigValue())
	if err != nil {
		return false, "", err
	}
	if rec.ConfigFingerprint != cfgFP {
		return true, "config changed", nil
	}

	for key, rel := range p.Provides() {
		path := r.ws.Path(rel)
		current, err := fingerprint.Path(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return true, fmt.Sprintf("output %s missing", key), nil
			}
			return false, "", err
		}
		if rec.OutputFingerprints[key] != current {
			return true, fmt.Sprintf("output %s edited", key), nil
		}
	}

	if rec.Status != manifest.StatusSucceeded {
		return true, fmt.Sprintf("status is %s", rec.Status), nil
	}

	return false, "up to date", nil
}

// Run executes the pipeline. A phase failure halts the run after committing
// the failed record; downstream phases do not execute.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	upTo := len(r.phases)
	if opts.To != "" {
		idx := r.indexOf(opts.To)
		if idx < 0 {
			return nil, fmt.Errorf("unknown phase %q", opts.To)
		}
		upTo = idx + 1
	}
	forceFrom := -1
	if opts.From != "" {
		forceFrom = r.indexOf(opts.From)
		if forceFrom < 0 {
			return nil, fmt.Errorf("unknown phase %q", opts.From)
		}
		if forceFrom >= upTo {
			return nil, fmt.Errorf("--from %q is after --to %q", opts.From, opts.To)
		}
	}

	summary := &Summary{}
	for i, p := range r.phases[:upTo] {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		forced := forceFrom >= 0 && i >= forceFrom

		run, reason, err := r.ShouldRun(p, forced)
		if err != nil {
			return summary, err
		}
		if !run {
			r.logger.Info("phase skipped",
				logging.String(logging.FieldPhase, p.Name()),
				logging.String("reason", reason))
			summary.add(PhaseOutcome{Name: p.Name(), Status: OutcomeSkipped, Reason: reason})
			continue
		}

		outcome, err := r.runPhase(ctx, p, reason)
		summary.add(outcome)
		if err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (r *Runner) indexOf(name string) int {
	for i, p := range r.phases {
		if p.Name() == name {
			return i
		}
	}
	return -1
}

func (r *Runner) runPhase(ctx context.Context, p Phase, reason string) (PhaseOutcome, error) {
	name := p.Name()
	phaseCtx := logging.WithPhase(ctx, name)
	logger := logging.WithContext(phaseCtx, r.logger)

	logger.Info("phase started",
		logging.String(logging.FieldEventType, "phase_start"),
		logging.String("reason", reason))
	started := time.Now()

	pc := &Context{
		Workspace:   r.ws,
		Config:      r.cfg,
		Credentials: r.creds,
		Logger:      logger,
		Inputs:      map[string]string{},
		Outputs:     map[string]string{},
	}

	inputFPs := map[string]string{}
	for _, key := range p.Requires() {
		path, err := r.pathFor(key)
		if err != nil {
			return PhaseOutcome{Name: name, Status: OutcomeFailed, Reason: err.Error()}, err
		}
		fp, err := fingerprint.Path(path)
		if err != nil {
			err = fmt.Errorf("%s: required artifact %s unavailable: %w", name, key, err)
			return r.commitFailure(p, started, err)
		}
		pc.Inputs[key] = path
		inputFPs[key] = fp
	}

	cfgFP, err := fingerprint.Config(p.ConfigValue())
	if err != nil {
		return PhaseOutcome{Name: name, Status: OutcomeFailed, Reason: err.Error()}, err
	}

	for key, rel := range p.Provides() {
		pc.Outputs[key] = r.ws.Path(rel)
	}

	if err := p.Run(phaseCtx, pc); err != nil {
		// A cancelled phase leaves no manifest update; the partial work is
		// invisible because outputs are written atomically.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return PhaseOutcome{Name: name, Status: OutcomeFailed, Reason: err.Error(), Duration: time.Since(started)}, err
		}
		logger.Error("phase failed",
			logging.String(logging.FieldEventType, "phase_failure"),
			logging.Error(err))
		rec := &manifest.Record{
			Status:            manifest.StatusFailed,
			Version:           p.Version(),
			ConfigFingerprint: cfgFP,
			InputFingerprints: inputFPs,
			StartedAt:         started.UTC().Format(time.RFC3339),
			FinishedAt:        manifest.Now(),
			Error:             err.Error(),
		}
		r.manifest.Put(name, rec)
		if saveErr := r.manifest.Save(); saveErr != nil {
			logger.Error("failed to persist phase failure", logging.Error(saveErr))
		}
		return PhaseOutcome{Name: name, Status: OutcomeFailed, Reason: err.Error(), Duration: time.Since(started)}, err
	}

	outputFPs := map[string]string{}
	for key, rel := range p.Provides() {
		path := r.ws.Path(rel)
		if _, statErr := os.Stat(path); statErr != nil {
			err := fmt.Errorf("%s: declared output %s was not written: %w", name, key, statErr)
			return r.commitFailure(p, started, err)
		}
		fp, fpErr := fingerprint.Path(path)
		if fpErr != nil {
			return r.commitFailure(p, started, fmt.Errorf("%s: fingerprint output %s: %w", name, key, fpErr))
		}
		outputFPs[key] = fp
	}

	rec := &manifest.Record{
		Status:             manifest.StatusSucceeded,
		Version:            p.Version(),
		ConfigFingerprint:  cfgFP,
		InputFingerprints:  inputFPs,
		OutputFingerprints: outputFPs,
		StartedAt:          started.UTC().Format(time.RFC3339),
		FinishedAt:         manifest.Now(),
	}
	r.manifest.Put(name, rec)
	if err := r.manifest.Save(); err != nil {
		return PhaseOutcome{Name: name, Status: OutcomeFailed, Reason: err.Error()}, err
	}

	duration := time.Since(started)
	logger.Info("phase completed",
		logging.String(logging.FieldEventType, "phase_complete"),
		logging.Duration("elapsed", duration))
	return PhaseOutcome{Name: name, Status: OutcomeRan, Reason: reason, Duration: duration}, nil
}

func (r *Runner) commitFailure(p Phase, started time.Time, err error) (PhaseOutcome, error) {
	rec := &manifest.Record{
		Status:     manifest.StatusFailed,
		Version:    p.Version(),
		StartedAt:  started.UTC().Format(time.RFC3339),
		FinishedAt: manifest.Now(),
		Error:      err.Error(),
	}
	r.manifest.Put(p.Name(), rec)
	if saveErr := r.manifest.Save(); saveErr != nil {
		r.logger.Error("failed to persist phase failure", logging.Error(saveErr))
	}
	return PhaseOutcome{Name: p.Name(), Status: OutcomeFailed, Reason: err.Error(), Duration: time.Since(started)}, err
}

// Bless re-reads the on-disk outputs of a named phase, recomputes their
// fingerprints, and writes them into the manifest's output record. This is
// how hand-edited authoritative documents survive subsequent runs.
func (r *Runner) Bless(name string) error {
	p, err := r.phaseByName(name)
	if err != nil {
		return err
	}
	rec, ok := r.manifest.Phase(name)
	if !ok {
		return fmt.Errorf("phase %q has never run; nothing to bless", name)
	}

	outputFPs := map[string]string{}
	for key, rel := range p.Provides() {
		path := r.ws.Path(rel)
		fp, err := fingerprint.Path(path)
		if err != nil {
			return fmt.Errorf("bless %s: output %s: %w", name, key, err)
		}
		outputFPs[key] = fp
	}
	rec.OutputFingerprints = outputFPs
	rec.Status = manifest.StatusSucceeded
	r.manifest.Put(name, rec)
	return r.manifest.Save()
}

// PhaseNames returns the names of the runner's phases in execution order.
func (r *Runner) PhaseNames() []string {
	names := make([]string, 0, len(r.phases))
	for _, p := range r.phases {
		names = append(names, p.Name())
	}
	return names
}
