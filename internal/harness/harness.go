package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/vrtb/internal/bench"
	"github.com/roach88/vrtb/internal/codec"
	"github.com/roach88/vrtb/internal/compiler"
	"github.com/roach88/vrtb/internal/fault"
	"github.com/roach88/vrtb/internal/layouts"
	"github.com/roach88/vrtb/internal/sim"
	"github.com/roach88/vrtb/internal/store"
	"github.com/roach88/vrtb/internal/task"
	"github.com/roach88/vrtb/internal/testutil"
	"github.com/roach88/vrtb/internal/trace"
	"github.com/roach88/vrtb/internal/vr"
)

// TBEndpoint names the bench side of a link that no relay serves.
const TBEndpoint = "TB"

// TimeLimit bounds the simulated time of one scenario.
const TimeLimit = 10_000 * sim.Microsecond

type options struct {
	store  *store.Store
	runIDs store.RunIDGenerator
	logger *slog.Logger
}

// Option configures a scenario run.
type Option func(*options)

// WithStore records the run in st instead of a private in-memory store.
func WithStore(st *store.Store) Option {
	return func(o *options) {
		o.store = st
	}
}

// WithRunIDGenerator overrides run ID generation for scenarios that do not
// pin a run_id.
func WithRunIDGenerator(g store.RunIDGenerator) Option {
	return func(o *options) {
		o.runIDs = g
	}
}

// WithLogger sets the logger. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Harness holds the bench built for one scenario.
type Harness struct {
	scenario  *Scenario
	registry  *compiler.Registry
	design    *sim.Design
	bench     *bench.Bench
	producers map[string]*vr.Producer
	consumers map[string]*vr.Consumer
	relays    []*vr.Relay
	recorder  *trace.Recorder
	logger    *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database unless WithStore is
// given. A fixed run ID keeps traces reproducible.
//
// Execution flow:
// 1. Compile schemas and build the design, agents and relays
// 2. Begin a stored run and record every transfer into it
// 3. Run the steps inside the bench (reset, start, body, teardown)
// 4. Evaluate assertions against the trace and the stored run
// 5. Return result with pass/fail, trace, and errors
//
// The returned error reports a scenario that could not be built; faults
// raised while it runs are Result errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run with a context bounding the simulation.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	st := o.store
	if st == nil {
		mem, err := store.Open(store.Memory)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer mem.Close()
		st = mem
	}

	gen := o.runIDs
	if scenario.RunID != "" || gen == nil {
		gen = testutil.NewFixedRunIDGenerator(scenario.RunID)
	}
	run, err := st.BeginRun(ctx, store.Run{Scenario: scenario.Name}, gen)
	if err != nil {
		return nil, err
	}

	h, err := build(scenario, trace.NewRecorder(st.Sink(ctx, run.ID)), o.logger)
	if err != nil {
		if ferr := st.FinishRun(ctx, run.ID, err); ferr != nil {
			return nil, errors.Join(err, ferr)
		}
		return nil, err
	}

	result := NewResult(run.ID)
	runErr := h.bench.Execute(ctx, h.body)
	for _, leaf := range fault.Flatten(runErr) {
		result.AddError(formatLeaf(leaf))
	}
	result.Trace = h.recorder.Transfers()

	actx := &AssertionContext{Store: st, Ctx: ctx, RunID: run.ID}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	var failure error
	if !result.Pass {
		failure = errors.New(strings.Join(result.Errors, "\n"))
	}
	if err := st.FinishRun(ctx, run.ID, failure); err != nil {
		return nil, err
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"run_id", run.ID,
		"transfers", len(result.Trace),
		"pass", result.Pass,
	)
	return result, nil
}

// build creates the design and every task of a scenario.
func build(s *Scenario, rec *trace.Recorder, logger *slog.Logger) (*Harness, error) {
	registry := layouts.Registry()
	if s.Schemas != "" {
		r, err := compiler.LoadDir(s.Schemas)
		if err != nil {
			return nil, fmt.Errorf("failed to load schemas: %w", err)
		}
		registry = r
	}

	k := sim.NewKernel(sim.WithLogger(logger), sim.WithTimeLimit(TimeLimit))
	d := sim.NewDesign(k)
	if s.Clock.Physical {
		d.MustAdd("clk", 1)
	}
	d.MustAdd("rst_n", 1)

	period := task.DefaultPeriod
	if s.Clock.PeriodNS > 0 {
		period = sim.Time(s.Clock.PeriodNS) * sim.Nanosecond
	}
	b, err := bench.New(d, bench.WithClockPeriod(period), bench.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	h := &Harness{
		scenario:  s,
		registry:  registry,
		design:    d,
		bench:     b,
		producers: make(map[string]*vr.Producer),
		consumers: make(map[string]*vr.Consumer),
		recorder:  rec,
		logger:    logger.With("component", "harness", "scenario", s.Name),
	}

	drivenBy := make(map[string]string)
	consumedBy := make(map[string]string)
	for _, r := range s.Relays {
		consumedBy[r.From] = r.Name
		drivenBy[r.To] = r.Name
	}

	for _, l := range s.Links {
		if err := h.addLink(l, drivenBy[l.Name], consumedBy[l.Name]); err != nil {
			return nil, fmt.Errorf("link %s: %w", l.Name, err)
		}
	}

	for _, r := range s.Relays {
		relay, err := vr.NewRelay(r.Name, h.consumers[r.From], h.producers[r.To], nil, vr.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := b.Add(r.Name, relay); err != nil {
			return nil, err
		}
		h.relays = append(h.relays, relay)
	}
	return h, nil
}

// addLink declares a link's signals and its two agents. Agents serving a
// relay are owned by the relay; the others are bench tasks.
func (h *Harness) addLink(l LinkSpec, relayOut, relayIn string) error {
	schema, ok := h.registry.Lookup(l.Schema)
	if !ok {
		return fmt.Errorf("unknown schema %q", l.Schema)
	}
	width, err := codec.BitWidth(schema)
	if err != nil {
		return err
	}

	valid, err := h.design.Add(l.Name+"_valid", 1)
	if err != nil {
		return err
	}
	ready, err := h.design.Add(l.Name+"_ready", 1)
	if err != nil {
		return err
	}
	var data codec.Target
	if len(l.Signals) > 0 {
		if err := declareAlias(h.design, schema, l.Signals); err != nil {
			return err
		}
		if data, err = h.design.Alias(l.Signals); err != nil {
			return err
		}
	} else if data, err = h.design.Add(l.Name+"_data", width); err != nil {
		return err
	}

	iface := vr.Interface{
		Valid:        valid,
		Ready:        ready,
		Data:         data,
		ReadyIsAck:   l.ReadyIsAck,
		ProducerName: endpoint(relayOut),
		ConsumerName: endpoint(relayIn),
	}

	prod, err := vr.NewProducer(iface, schema, vr.WithName(l.Name+"_driver"), vr.WithLogger(h.logger))
	if err != nil {
		return err
	}
	cons, err := vr.NewConsumer(iface, schema,
		vr.WithName(l.Name),
		vr.WithCapacity(l.Capacity),
		vr.WithSink(h.recorder),
		vr.WithLogger(h.logger),
	)
	if err != nil {
		return err
	}
	h.producers[l.Name] = prod
	h.consumers[l.Name] = cons

	if relayOut == "" {
		if err := h.bench.Add(prod.Name(), prod); err != nil {
			return err
		}
	}
	if relayIn == "" {
		if err := h.bench.Add(cons.Name(), cons); err != nil {
			return err
		}
	}
	return nil
}

// declareAlias adds one signal per mapped field, as wide as the field.
func declareAlias(d *sim.Design, s *codec.Schema, mapping map[string]any) error {
	for name, target := range mapping {
		f, ok := s.Field(name)
		if !ok {
			return fmt.Errorf("signals: %s has no field %q", s, name)
		}
		switch x := target.(type) {
		case string:
			w, err := codec.BitWidth(f)
			if err != nil {
				return err
			}
			if _, err := d.Add(x, w); err != nil {
				return fmt.Errorf("signals: field %s: %w", name, err)
			}
		case map[string]any:
			if err := declareAlias(d, f, x); err != nil {
				return err
			}
		default:
			return fmt.Errorf("signals: field %s: want a signal name or a mapping, got %T", name, target)
		}
	}
	return nil
}

func endpoint(relay string) string {
	if relay == "" {
		return TBEndpoint
	}
	return relay
}

// body runs the scenario steps in order and stops at the first failure.
func (h *Harness) body(p *sim.Proc) error {
	for i, step := range h.scenario.Steps {
		if err := h.step(p, step); err != nil {
			return fault.AddNote(err, fmt.Sprintf("in step %d", i))
		}
	}
	return nil
}

func (h *Harness) step(p *sim.Proc, step Step) error {
	clk := h.bench.Clock()
	switch {
	case step.Send != nil:
		schema := h.producers[step.Send.Link].Schema()
		values, err := buildValues(schema, step.Send.Values)
		if err != nil {
			return fmt.Errorf("send on %s: %w", step.Send.Link, err)
		}
		return h.producers[step.Send.Link].EnqueueValues(p, values...)

	case step.Wait > 0:
		task.Edges(p, clk.RisingEdge(), step.Wait)
		return nil

	case step.Disable != nil:
		guard := h.consumers[step.Disable.Link].Disable()
		defer guard.Restore()
		task.Edges(p, clk.RisingEdge(), step.Disable.Cycles)
		return nil

	case step.Expect != nil:
		return h.expect(p, step.Expect)
	}
	return nil
}

func (h *Harness) expect(p *sim.Proc, e *ExpectStep) error {
	cons := h.consumers[e.Link]
	want, err := buildValues(cons.Schema(), e.Values)
	if err != nil {
		return fmt.Errorf("expect on %s: %w", e.Link, err)
	}
	within := e.Within
	if within == 0 {
		within = DefaultWithin
	}

	for i, w := range want {
		got, ok := cons.TryDequeue()
		if !ok {
			err := bench.PollUntil(p, h.bench.Clock(), within, func() (bool, error) {
				got, ok = cons.TryDequeue()
				return ok, nil
			})
			if err != nil {
				return fault.Assertf("%s: value %d did not arrive within %d cycles", e.Link, i, within)
			}
		}
		if !got.Equal(w) {
			return fault.Assertf("%s: value %d is %s, want %s", e.Link, i, got, w)
		}
	}
	return nil
}

// buildValues converts scenario values: a list is applied to the schema's
// quick order, a map is taken as flattened field names.
func buildValues(s *codec.Schema, raw []any) ([]codec.Value, error) {
	out := make([]codec.Value, len(raw))
	for i, r := range raw {
		var (
			v   codec.Value
			err error
		)
		switch x := r.(type) {
		case []any:
			v, err = codec.Quick(s, x...)
		case map[string]any:
			v, err = codec.FromFlat(s, x)
		default:
			v, err = codec.Quick(s, x)
		}
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func formatLeaf(l fault.Leaf) string {
	if len(l.Notes) == 0 {
		return l.Err.Error()
	}
	return fmt.Sprintf("%s (%s)", l.Err, strings.Join(l.Notes, "; "))
}
