// Package runner schedules scenarios onto a worker pool, drives each one
// through its lifecycle and collects results.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/v0xg/webscenario/internal/assert"
	"github.com/v0xg/webscenario/internal/browser"
	"github.com/v0xg/webscenario/internal/executor"
	"github.com/v0xg/webscenario/internal/failure"
	"github.com/v0xg/webscenario/internal/locator"
	"github.com/v0xg/webscenario/internal/metrics"
	"github.com/v0xg/webscenario/internal/scenario"
	"github.com/v0xg/webscenario/internal/session"
	"github.com/v0xg/webscenario/internal/telemetry"
	"github.com/v0xg/webscenario/internal/wait"
)

// ErrNoScenarios is returned when filtering leaves nothing to run.
var ErrNoScenarios = errors.New("no scenarios selected")

// screenshotTimeout bounds the failure screenshot.
const screenshotTimeout = 5 * time.Second

// Sessions opens and closes isolated browser contexts.
type Sessions interface {
	Acquire(ctx context.Context) (*session.Session, error)
	Release(s *session.Session) error
}

// Recorder captures the page after each step of one attempt.
type Recorder interface {
	Capture(ctx context.Context, page browser.Page, step string, point *browser.Point) error
	// Finish writes the recording and returns its path.
	Finish() (string, error)
}

// RecorderFactory returns a recorder for one attempt, or nil to skip.
type RecorderFactory func(suite, scenario string, attempt int) Recorder

// Options configures a run.
type Options struct {
	// Workers is the number of units run at once.
	Workers int
	// Retries is how many extra attempts a Failed scenario gets.
	Retries int
	// Timeout and Interval bound every wait point.
	Timeout  time.Duration
	Interval time.Duration
	// NavigationTimeout bounds each page load.
	NavigationTimeout time.Duration
	// Grep selects scenarios whose name matches this glob.
	Grep string
	// Screenshots captures the page when an attempt does not pass.
	Screenshots bool
	// Recorder, when set, records every attempt.
	Recorder RecorderFactory
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	// OnResult is called once per scenario as soon as it is final. Calls are
	// serialised.
	OnResult func(Result)
}

func (o Options) withDefaults() Options {
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.Timeout <= 0 {
		o.Timeout = wait.DefaultTimeout
	}
	if o.Interval <= 0 {
		o.Interval = wait.DefaultInterval
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = executor.DefaultNavigationTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Runner executes suites.
type Runner struct {
	sessions Sessions
	opts     Options

	emitMu sync.Mutex
}

func New(sessions Sessions, opts Options) *Runner {
	return &Runner{sessions: sessions, opts: opts.withDefaults()}
}

// job is one scenario and the slot its result goes to.
type job struct {
	suite *scenario.Suite
	sc    scenario.Scenario
	slot  int
}

// unit is scheduled on one worker and runs its jobs in order.
type unit []job

// plan turns suites into units: a serial suite is one unit, every other
// scenario is a unit of its own.
func plan(suites []*scenario.Suite, grep string) ([]unit, int, error) {
	var (
		units []unit
		slots int
	)
	for _, s := range suites {
		selected, err := s.Filter(grep)
		if err != nil {
			return nil, 0, err
		}
		if len(selected) == 0 {
			continue
		}
		if s.Serial {
			u := make(unit, 0, len(selected))
			for _, sc := range selected {
				u = append(u, job{suite: s, sc: sc, slot: slots})
				slots++
			}
			units = append(units, u)
			continue
		}
		for _, sc := range selected {
			units = append(units, unit{{suite: s, sc: sc, slot: slots}})
			slots++
		}
	}
	return units, slots, nil
}

// Run executes every selected scenario and returns their results in
// declaration order. The error is non-nil only when nothing could run.
func (r *Runner) Run(ctx context.Context, suites []*scenario.Suite) (*Summary, error) {
	units, total, err := plan(suites, r.opts.Grep)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, ErrNoScenarios
	}

	summary := &Summary{
		RunID:   ulid.Make().String(),
		Start:   time.Now(),
		Results: make([]Result, total),
	}
	for _, u := range units {
		for _, j := range u {
			summary.Results[j.slot] = Result{
				Suite: j.suite.Name,
				Group: j.suite.GroupName(),
				Name:  j.sc.Name,
				State: Pending,
			}
		}
	}

	r.opts.Logger.Info("run started",
		"run", summary.RunID,
		"scenarios", total,
		"units", len(units),
		"workers", r.opts.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for _, u := range units {
		u := u
		g.Go(func() error {
			for _, j := range u {
				res := summary.Results[j.slot]
				r.runScenario(gctx, j, &res)
				summary.Results[j.slot] = res
				r.emit(res)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary.Duration = time.Since(summary.Start)
	r.opts.Logger.Info("run finished",
		"run", summary.RunID,
		"passed", summary.Count(Passed),
		"failed", summary.Count(Failed),
		"errored", summary.Count(Errored),
		"duration", summary.Duration)
	return summary, nil
}

func (r *Runner) emit(res Result) {
	if r.opts.OnResult == nil {
		return
	}
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	r.opts.OnResult(res)
}

// runScenario moves res from Pending to exactly one terminal state.
func (r *Runner) runScenario(ctx context.Context, j job, res *Result) {
	log := r.opts.Logger.With("suite", j.suite.Name, "scenario", j.sc.Name)

	res.ID = ulid.Make().String()
	res.Start = time.Now()
	if err := res.transition(Running); err != nil {
		log.Error("state machine", "error", err)
		return
	}

	var out attemptOutcome
	for attempt := 1; ; attempt++ {
		res.Attempts = attempt
		out = r.attempt(ctx, j, attempt, log)
		if out.state != Failed || attempt > r.opts.Retries || ctx.Err() != nil {
			break
		}
		log.Info("retrying failed scenario", "attempt", attempt, "error", out.err)
		r.opts.Metrics.Retried()
	}

	res.Duration = time.Since(res.Start)
	if out.err != nil {
		res.FailureKind = failure.KindOf(out.err)
		res.FailureDetail = out.err.Error()
		res.FailedStep = out.failedStep
	}
	res.Screenshot = out.screenshot
	res.Recording = out.recording
	if err := res.transition(out.state); err != nil {
		log.Error("state machine", "error", err)
	}

	r.opts.Metrics.ScenarioFinished(j.suite.Name, string(res.State), res.Duration)
	log.Info("scenario finished",
		"state", res.State,
		"attempts", res.Attempts,
		"duration", res.Duration)
}

type attemptOutcome struct {
	state      State
	err        error
	failedStep string
	screenshot []byte
	recording  string
}

// attemptEnv is everything a step needs inside one attempt.
type attemptEnv struct {
	sess     *session.Session
	exec     *executor.Executor
	engine   *assert.Engine
	recorder Recorder
	log      *slog.Logger
}

type phase struct {
	name  string
	steps []scenario.Step
}

func (r *Runner) attempt(ctx context.Context, j job, attempt int, log *slog.Logger) (out attemptOutcome) {
	waitOpts := wait.Options{Timeout: j.sc.Timeout(r.opts.Timeout), Interval: r.opts.Interval}

	setup := []phase{
		{"beforeEach", j.suite.BeforeEach},
		{"setup", j.sc.Setup},
		{"steps", j.sc.Steps},
	}
	teardown := []phase{
		{"teardown", j.sc.Teardown},
		{"afterEach", j.suite.AfterEach},
	}

	ctx, span := telemetry.StartSpan(ctx, "scenario",
		telemetry.AttrSuite.String(j.suite.Name),
		telemetry.AttrScenario.String(j.sc.Name),
		telemetry.AttrAttempt.Int(attempt))
	defer func() {
		span.SetAttributes(telemetry.AttrState.String(string(out.state)))
		telemetry.End(span, out.err)
	}()

	runCtx, cancel := context.WithTimeout(ctx, r.budget(waitOpts.Timeout, setup))
	defer cancel()

	sess, err := r.sessions.Acquire(runCtx)
	if err != nil {
		return attemptOutcome{state: Errored, err: err}
	}
	r.opts.Metrics.SessionOpened()
	span.SetAttributes(telemetry.AttrSessionID.String(sess.ID))
	defer func() {
		if err := r.sessions.Release(sess); err != nil {
			log.Warn("release session", "session", sess.ID, "error", err)
		}
		r.opts.Metrics.SessionClosed()
	}()

	resolver := locator.New(waitOpts)
	env := &attemptEnv{
		sess: sess,
		exec: executor.New(resolver, executor.Options{
			Wait:              waitOpts,
			NavigationTimeout: r.opts.NavigationTimeout,
		}, log),
		engine: assert.New(resolver, waitOpts),
		log:    log.With("attempt", attempt),
	}
	if r.opts.Recorder != nil {
		env.recorder = r.opts.Recorder(j.suite.Name, j.sc.Name, attempt)
	}

	failedStep, runErr := r.runPhases(runCtx, env, setup, true)
	out.state = Classify(runErr)
	out.err = runErr
	out.failedStep = failedStep

	if runErr != nil && r.opts.Screenshots {
		shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), screenshotTimeout)
		shot, err := sess.Page.Screenshot(shotCtx)
		cancel()
		if err != nil {
			log.Warn("failure screenshot", "error", err)
		} else {
			out.screenshot = shot
		}
	}

	// Teardown runs whatever happened above, even when the scenario's own
	// budget is spent.
	tdCtx, tdCancel := context.WithTimeout(context.WithoutCancel(ctx), r.budget(waitOpts.Timeout, teardown))
	tdStep, tdErr := r.runPhases(tdCtx, env, teardown, false)
	tdCancel()
	if tdErr != nil {
		if runErr == nil {
			out.state = Errored
			out.err = fmt.Errorf("teardown: %w", tdErr)
			out.failedStep = tdStep
		} else {
			log.Warn("teardown failed after scenario error", "step", tdStep, "error", tdErr)
		}
	}

	if env.recorder != nil {
		path, err := env.recorder.Finish()
		if err != nil {
			log.Warn("write recording", "error", err)
		} else {
			out.recording = path
		}
	}
	return out
}

// budget bounds a list of phases: every step may wait twice (resolve, then
// actionability), navigations add a page load.
func (r *Runner) budget(waitTimeout time.Duration, phases []phase) time.Duration {
	d := waitTimeout
	for _, p := range phases {
		for _, st := range p.steps {
			d += 2 * waitTimeout
			if st.Kind == scenario.Navigate {
				d += r.opts.NavigationTimeout
			}
		}
	}
	return d
}

// runPhases runs steps in order. With stopOnError it returns at the first
// error; otherwise it runs every step and returns the first error.
func (r *Runner) runPhases(ctx context.Context, env *attemptEnv, phases []phase, stopOnError bool) (string, error) {
	var (
		firstErr  error
		firstStep string
	)
	for _, p := range phases {
		for i, st := range p.steps {
			err := r.runStep(ctx, env, i, st)
			if err == nil {
				continue
			}
			label := fmt.Sprintf("%s[%d] %s", p.name, i, st)
			env.log.Debug("step failed", "step", label, "error", err)
			if firstErr == nil {
				firstErr, firstStep = err, label
			}
			if stopOnError {
				return firstStep, firstErr
			}
		}
	}
	return firstStep, firstErr
}

func (r *Runner) runStep(ctx context.Context, env *attemptEnv, index int, st scenario.Step) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "step",
		telemetry.AttrStepKind.String(string(st.Kind)),
		telemetry.AttrStepIndex.Int(index))
	if st.Kind != scenario.Navigate && st.Kind != scenario.AssertTitle && st.Kind != scenario.AssertText {
		span.SetAttributes(telemetry.AttrSelector.String(st.Selector.String()))
	}
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = recovered(p)
		}
		r.opts.Metrics.StepFinished(string(st.Kind), err == nil, time.Since(start))
		telemetry.End(span, err)
	}()

	env.log.Debug("step", "index", index, "step", st.String())
	res, err := r.dispatch(ctx, env, st)
	if err != nil {
		return err
	}

	if env.recorder != nil {
		if rerr := env.recorder.Capture(ctx, env.sess.Page, st.String(), res.Point); rerr != nil {
			env.log.Warn("capture frame", "error", rerr)
		}
	}
	return nil
}

func (r *Runner) dispatch(ctx context.Context, env *attemptEnv, st scenario.Step) (executor.Result, error) {
	page := env.sess.Page
	switch st.Kind {
	case scenario.Navigate, scenario.Click, scenario.Fill:
		return env.exec.Perform(ctx, env.sess, st)
	case scenario.AssertTitle:
		return executor.Result{}, env.engine.Check(ctx, page, assert.TitleMatches, st.Pattern)
	case scenario.AssertText:
		return executor.Result{}, env.engine.Check(ctx, page, assert.TextPresent, st.Pattern)
	case scenario.AssertVisible:
		return executor.Result{}, env.engine.Visible(ctx, page, st.Selector)
	default:
		return executor.Result{}, fmt.Errorf("unknown step kind %q", st.Kind)
	}
}
