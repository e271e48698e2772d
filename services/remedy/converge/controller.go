// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package converge drives the diagnose, classify, fix and reverify loop
// until the diagnostic count reaches zero, stops improving, regresses or
// the iteration budget runs out.
//
// Every dependency is injected. The controller owns no global state; one
// Controller may serve several sequential runs.
package converge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/remedy/pkg/fsutil"
	"github.com/AleutianAI/remedy/services/remedy/backup"
	"github.com/AleutianAI/remedy/services/remedy/classify"
	"github.com/AleutianAI/remedy/services/remedy/diagnostic"
	"github.com/AleutianAI/remedy/services/remedy/fix"
	"github.com/AleutianAI/remedy/services/remedy/learning"
	"github.com/AleutianAI/remedy/services/remedy/patch"
	"github.com/AleutianAI/remedy/services/remedy/telemetry"
)

// ErrInvalidConfig indicates a Config that cannot drive a run.
var ErrInvalidConfig = errors.New("invalid run config")

// DiagnosticRunner executes the checker.
type DiagnosticRunner interface {
	Run(ctx context.Context, argv []string, timeout time.Duration) (*diagnostic.Output, error)
}

// Classifier maps records to categories.
type Classifier interface {
	Classify(rec diagnostic.Record) classify.Category
}

// FixDispatcher proposes patches for classified records.
type FixDispatcher interface {
	AttemptFix(rec diagnostic.Record, category classify.Category, content []byte, iteration int) fix.Proposal
}

// PatchApplier reads and writes project files.
type PatchApplier interface {
	Reset()
	Begin()
	Read(path string) ([]byte, error)
	Apply(path string, next []byte) error
	SetGuard(guard func(rel string) bool)
	Changes() []patch.Change
}

// BackupManager snapshots and restores project files.
type BackupManager interface {
	Snapshot(ctx context.Context, files []string) (*backup.Manifest, error)
	Restore(ctx context.Context, manifest *backup.Manifest) error
}

// LearningStore receives verified fix outcomes.
type LearningStore interface {
	RecordAttempt(a learning.Attempt)
	Flush(ctx context.Context) error
}

// Config describes one run.
type Config struct {
	// Root is the absolute project root. Diagnostic paths are resolved
	// against it.
	Root string

	// Profile selects the checker and its output grammar.
	Profile *diagnostic.ToolProfile

	// MaxIterations bounds fixing passes. Zero diagnoses once and stops.
	MaxIterations int

	// Timeout per diagnostic run. Zero uses the profile's timeout.
	Timeout time.Duration

	// DryRun computes patches against an in-memory overlay and never
	// writes or backs up.
	DryRun bool

	// Files is the backup file set.
	Files []string
}

func (cfg Config) validate() error {
	switch {
	case cfg.Profile == nil || len(cfg.Profile.Command) == 0:
		return fmt.Errorf("%w: tool profile with a command is required", ErrInvalidConfig)
	case !filepath.IsAbs(cfg.Root):
		return fmt.Errorf("%w: root must be absolute: %q", ErrInvalidConfig, cfg.Root)
	case cfg.MaxIterations < 0:
		return fmt.Errorf("%w: max iterations must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Progress is reported to the observer on every state change.
type Progress struct {
	State      State
	Iteration  int
	ErrorCount int
}

// Controller runs the convergence loop.
type Controller struct {
	runner     DiagnosticRunner
	classifier Classifier
	dispatcher FixDispatcher
	applier    PatchApplier
	backups    BackupManager
	learning   LearningStore
	observer   func(Progress)
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithBackups sets the backup manager. Without one, every write outside
// dry-run is refused.
func WithBackups(b BackupManager) Option {
	return func(c *Controller) {
		c.backups = b
	}
}

// WithLearning sets the store that receives verified outcomes.
func WithLearning(l LearningStore) Option {
	return func(c *Controller) {
		c.learning = l
	}
}

// WithObserver registers a progress callback.
func WithObserver(fn func(Progress)) Option {
	return func(c *Controller) {
		c.observer = fn
	}
}

// WithClock overrides time.Now for attempt timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController wires the pipeline stages into a controller.
func NewController(runner DiagnosticRunner, classifier Classifier, dispatcher FixDispatcher, applier PatchApplier, opts ...Option) *Controller {
	c := &Controller{
		runner:     runner,
		classifier: classifier,
		dispatcher: dispatcher,
		applier:    applier,
		now:        time.Now,
		logger:     slog.Default().With("component", "converge.Controller"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes one convergence run.
//
// Description:
//
//	Takes the backup, diagnoses, then alternates fixing passes and fresh
//	diagnostic runs. A fixing pass classifies every record, orders them by
//	severity then file, line and column, and applies each accepted patch
//	immediately so later records see the updated file. After each fresh
//	run the accepted patches are verified: a patch succeeded only if the
//	number of records sharing its target's fingerprint went down.
//
//	A lower count continues while budget remains; an equal count stops
//	with BudgetExhausted; a higher count restores the backup and stops with
//	Regressed. A checker timeout stops with DiagnosticTimeout and keeps the
//	patches made so far; patches the timed-out run should have checked are
//	recorded as failed attempts. Cancellation is honoured between iterations.
//
// Outputs:
//
//	*Result - Always non-nil once the config is valid.
//	error - Launch failure, backup failure or restore failure. A failed
//	restore wraps backup.ErrRestoreFailed and needs manual attention.
func (c *Controller) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ctx, span := startRunSpan(ctx, cfg)
	defer span.End()
	start := time.Now()

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = cfg.Profile.EffectiveTimeout()
	}

	r := &run{
		c:       c,
		cfg:     cfg,
		argv:    cfg.Profile.Argv(cfg.Root),
		timeout: timeout,
		session: newSession(cfg.MaxIterations),
		res:     &Result{FinalState: StateInit, DryRun: cfg.DryRun},
		logger:  telemetry.LoggerWithTrace(ctx, c.logger).With(slog.String("profile", cfg.Profile.Name)),
	}

	err := r.execute(ctx)

	res := r.res
	res.InitialErrorCount = r.session.InitialErrorCount
	res.Iterations = r.session.Iteration
	res.History = append([]int(nil), r.session.History...)
	res.Changes = c.applier.Changes()
	if res.RolledBack {
		for i := range res.Changes {
			res.Changes[i].RolledBack = true
		}
	}
	res.Duration = time.Since(start)

	if !cfg.DryRun && c.learning != nil && r.session.Iteration > 0 {
		if ferr := c.learning.Flush(context.WithoutCancel(ctx)); ferr != nil {
			r.logger.Warn("failed to persist learning store", slog.String("error", ferr.Error()))
		}
	}

	setRunSpanResult(span, res, err)
	recordRunMetrics(ctx, res, res.Duration, err != nil)

	attrs := []any{
		slog.String("final_state", res.FinalState.String()),
		slog.Int("initial_errors", res.InitialErrorCount),
		slog.Int("final_errors", res.FinalErrorCount),
		slog.Int("iterations", res.Iterations),
		slog.Bool("rolled_back", res.RolledBack),
		slog.Duration("duration", res.Duration),
	}
	if err != nil {
		r.logger.Error("run failed", append(attrs, slog.String("error", err.Error()))...)
	} else {
		r.logger.Info("run finished", attrs...)
	}
	return res, err
}

// run holds the state of one Run call.
type run struct {
	c        *Controller
	cfg      Config
	argv     []string
	timeout  time.Duration
	session  *Session
	res      *Result
	manifest *backup.Manifest
	logger   *slog.Logger
}

// accepted is a patch applied during a fixing pass, awaiting verification.
type accepted struct {
	rec        diagnostic.Record
	category   classify.Category
	strategyID string
}

type classified struct {
	rec      diagnostic.Record
	category classify.Category
}

func (r *run) execute(ctx context.Context) error {
	c := r.c

	c.applier.Reset()
	switch {
	case r.cfg.DryRun:
		c.applier.SetGuard(nil)
	case c.backups == nil:
		r.logger.Warn("no backup manager configured, all patches will be refused")
		c.applier.SetGuard(func(string) bool { return false })
	default:
		manifest, err := c.backups.Snapshot(ctx, r.cfg.Files)
		if err != nil {
			return err
		}
		r.manifest = manifest
		r.res.BackupID = manifest.ID
		c.applier.SetGuard(manifest.Contains)
	}

	r.enter(StateDiagnosing)
	records, ok, err := r.diagnose(ctx)
	if err != nil || !ok {
		return err
	}
	if len(records) == 0 {
		r.enter(StateConverged)
		return nil
	}
	if r.session.MaxIterations == 0 {
		r.enter(StateBudgetExhausted)
		return nil
	}

	for {
		if ctx.Err() != nil {
			r.logger.Info("run cancelled between iterations", slog.Int("iteration", r.session.Iteration))
			r.enter(StateCancelled)
			return nil
		}

		r.session.Iteration++
		fixes := r.fixPass(ctx, records)

		if r.cfg.DryRun {
			// The tree is unchanged, so a fresh run would report the same.
			r.enter(StateBudgetExhausted)
			return nil
		}

		r.enter(StateReverifying)
		next, ok, err := r.diagnose(ctx)
		if err != nil || !ok {
			// The patches are on disk but nothing can confirm them.
			reason := "unverified: diagnostic timeout"
			if err != nil {
				reason = "unverified: diagnostic run failed"
			}
			r.unverified(ctx, fixes, reason)
			return err
		}

		prev, cur := r.session.previous(), r.session.CurrentErrorCount
		regressed := cur > prev
		r.verify(ctx, records, next, fixes, regressed)
		records = next

		switch {
		case cur == 0:
			r.enter(StateConverged)
			return nil
		case regressed:
			return r.rollback(ctx, cur-prev)
		case cur == prev:
			r.enter(StateBudgetExhausted)
			return nil
		case r.session.budgetSpent():
			r.enter(StateBudgetExhausted)
			return nil
		}
		r.enter(StateDiagnosing)
	}
}

func (r *run) enter(s State) {
	r.res.FinalState = s
	r.logger.Debug("state",
		slog.String("state", s.String()),
		slog.Int("iteration", r.session.Iteration),
		slog.Int("errors", r.session.CurrentErrorCount),
	)
	if r.c.observer != nil {
		r.c.observer(Progress{
			State:      s,
			Iteration:  r.session.Iteration,
			ErrorCount: r.session.CurrentErrorCount,
		})
	}
}

// diagnose runs the checker once. ok is false when the run timed out, in
// which case the terminal state has been entered.
func (r *run) diagnose(ctx context.Context) (records []diagnostic.Record, ok bool, err error) {
	out, err := r.c.runner.Run(ctx, r.argv, r.timeout)
	if err != nil {
		return nil, false, fmt.Errorf("diagnostic run: %w", err)
	}
	if out.TimedOut {
		r.logger.Warn("diagnostic run timed out",
			slog.Duration("timeout", r.timeout),
			slog.Int("iteration", r.session.Iteration),
		)
		r.enter(StateDiagnosticTimeout)
		return nil, false, nil
	}

	parsed := diagnostic.Parse(out.Raw, r.cfg.Profile)
	r.res.SkippedLines += parsed.SkippedLines

	records = make([]diagnostic.Record, len(parsed.Records))
	for i, rec := range parsed.Records {
		if rel, err := fsutil.RelPath(r.cfg.Root, rec.File); err == nil {
			rec.File = rel
		}
		records[i] = rec
	}

	r.session.observe(len(records))
	r.res.Remaining = records
	r.res.FinalErrorCount = len(records)
	r.logger.Info("diagnostics collected",
		slog.Int("iteration", r.session.Iteration),
		slog.Int("errors", len(records)),
		slog.Int("skipped_lines", parsed.SkippedLines),
		slog.Int("exit_code", out.ExitCode),
	)
	return records, true, nil
}

// fixPass classifies and patches records in priority order.
func (r *run) fixPass(ctx context.Context, records []diagnostic.Record) []accepted {
	c := r.c
	iteration := r.session.Iteration

	r.enter(StateClassifying)
	items := make([]classified, len(records))
	for i, rec := range records {
		items[i] = classified{rec: rec, category: c.classifier.Classify(rec)}
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if sa, sb := a.category.Severity(), b.category.Severity(); sa != sb {
			return sa > sb
		}
		if a.rec.File != b.rec.File {
			return a.rec.File < b.rec.File
		}
		if a.rec.Line != b.rec.Line {
			return a.rec.Line < b.rec.Line
		}
		return a.rec.Column < b.rec.Column
	})

	r.enter(StateFixing)
	_, span := tracer.Start(ctx, "Controller.fixPass")
	defer span.End()

	c.applier.Begin()
	r.res.Unresolved = nil
	edits := make(map[string][]fix.Edit)

	var fixes []accepted
	for _, it := range items {
		rec := it.rec
		if it.category == classify.Unclassified {
			r.unresolved(it, "unclassified")
			continue
		}

		line, ok := remapLine(edits[rec.File], rec.Line)
		if !ok {
			r.unresolved(it, "line was rewritten earlier in this iteration")
			continue
		}

		content, err := c.applier.Read(rec.File)
		if err != nil {
			r.unresolved(it, err.Error())
			continue
		}

		target := rec
		target.Line = line
		proposal := c.dispatcher.AttemptFix(target, it.category, content, iteration)
		if !proposal.OK() {
			r.unresolved(it, declineReason(proposal))
			continue
		}

		if err := c.applier.Apply(rec.File, proposal.NewContent); err != nil {
			r.logger.Warn("patch not applied",
				slog.String("location", rec.Location()),
				slog.String("strategy", proposal.StrategyID),
				slog.String("error", err.Error()),
			)
			r.unresolved(it, err.Error())
			continue
		}

		edits[rec.File] = append(edits[rec.File], proposal.Edit)
		fixes = append(fixes, accepted{rec: rec, category: it.category, strategyID: proposal.StrategyID})
		if r.cfg.DryRun {
			r.res.Proposed = append(r.res.Proposed, Proposal{
				Record:     rec,
				Category:   it.category,
				StrategyID: proposal.StrategyID,
			})
		}
	}

	r.logger.Info("fixing pass complete",
		slog.Int("iteration", iteration),
		slog.Int("patched", len(fixes)),
		slog.Int("unresolved", len(r.res.Unresolved)),
	)
	return fixes
}

func (r *run) unresolved(it classified, reason string) {
	r.res.Unresolved = append(r.res.Unresolved, Unresolved{
		Record:   it.rec,
		Category: it.category,
		Reason:   reason,
	})
}

func declineReason(p fix.Proposal) string {
	if len(p.Declined) == 0 {
		return "no strategy registered for category"
	}
	parts := make([]string, len(p.Declined))
	for i, d := range p.Declined {
		parts[i] = d.StrategyID + ": " + d.Reason
	}
	return "all strategies declined (" + strings.Join(parts, "; ") + ")"
}

// remapLine maps a line from the start of the iteration through the edits
// applied since, in order. ok is false if the line itself was replaced.
func remapLine(edits []fix.Edit, line int) (int, bool) {
	for _, e := range edits {
		switch {
		case e.Line == line:
			return 0, false
		case e.Line < line:
			line += e.Delta()
		}
	}
	return line, true
}

// verify records the outcome of each accepted patch against a fresh run.
func (r *run) verify(ctx context.Context, before, after []diagnostic.Record, fixes []accepted, regressed bool) {
	if len(fixes) == 0 {
		return
	}

	remaining := fingerprints(after)
	cleared := make(map[string]int)
	for fp, n := range fingerprints(before) {
		if d := n - remaining[fp]; d > 0 {
			cleared[fp] = d
		}
	}

	for _, f := range fixes {
		attempt := r.attempt(f)
		fp := f.rec.Fingerprint()
		switch {
		case regressed:
			attempt.Reason = "iteration regressed"
		case cleared[fp] > 0:
			cleared[fp]--
			attempt.Outcome = learning.OutcomeSuccess
			r.res.Resolved++
		default:
			attempt.Reason = "diagnostic still reported"
		}
		r.record(ctx, attempt)
	}
}

// unverified records the accepted patches of a pass whose follow-up run
// produced no diagnostics to check them against. They count as failures.
func (r *run) unverified(ctx context.Context, fixes []accepted, reason string) {
	for _, f := range fixes {
		attempt := r.attempt(f)
		attempt.Reason = reason
		r.record(ctx, attempt)
	}
}

// attempt builds a failed attempt for an accepted patch.
func (r *run) attempt(f accepted) learning.Attempt {
	return learning.Attempt{
		Record:     f.rec,
		Category:   f.category,
		StrategyID: f.strategyID,
		Outcome:    learning.OutcomeFailure,
		Iteration:  r.session.Iteration,
		Timestamp:  r.c.now().UTC(),
	}
}

func (r *run) record(ctx context.Context, attempt learning.Attempt) {
	r.res.Attempts = append(r.res.Attempts, attempt)
	if r.c.learning != nil {
		r.c.learning.RecordAttempt(attempt)
	}
	recordFixMetric(ctx, attempt)
}

func fingerprints(records []diagnostic.Record) map[string]int {
	out := make(map[string]int, len(records))
	for _, rec := range records {
		out[rec.Fingerprint()]++
	}
	return out
}

// rollback restores the backup after a regression.
func (r *run) rollback(ctx context.Context, introduced int) error {
	r.enter(StateRegressed)
	r.res.Regressed = introduced
	r.res.Resolved = 0

	r.logger.Warn("iteration regressed, restoring backup",
		slog.Int("iteration", r.session.Iteration),
		slog.Int("introduced", introduced),
		slog.String("backup_id", r.res.BackupID),
	)
	if r.manifest == nil {
		return nil
	}
	// The restore must complete even if the caller has given up.
	if err := r.c.backups.Restore(context.WithoutCancel(ctx), r.manifest); err != nil {
		r.logger.Error("restore failed, manual intervention required",
			slog.String("backup_id", r.manifest.ID),
			slog.String("error", err.Error()),
		)
		return err
	}
	r.res.RolledBack = true
	return nil
}
