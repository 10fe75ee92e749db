package vr

import (
	"fmt"
	"log/slog"

	"github.com/roach88/vrtb/internal/codec"
	"github.com/roach88/vrtb/internal/sim"
	"github.com/roach88/vrtb/internal/task"
	"github.com/roach88/vrtb/internal/trace"
)

// Monitor observes an interface and reports every transfer. It never
// drives a signal.
type Monitor struct {
	*task.Task
	task.Clocked

	link     string
	iface    Interface
	schema   *codec.Schema
	sink     trace.Sink
	logger   *slog.Logger
	observed int
}

// NewMonitor returns a monitor for iface labelled link in traces.
func NewMonitor(link string, iface Interface, schema *codec.Schema, opts ...Option) *Monitor {
	o := buildOptions(opts)
	m := &Monitor{
		link:   link,
		iface:  iface,
		schema: schema,
		sink:   o.sink,
		logger: o.logger.With("component", "monitor", "link", link),
	}
	m.Task = task.New(link+".monitor", m.run, task.WithLogger(m.logger))
	return m
}

// Observed returns the number of transfers seen so far.
func (m *Monitor) Observed() int { return m.observed }

func (m *Monitor) run(p *sim.Proc, t *task.Task) error {
	clk := m.Clock()
	if clk == nil {
		return fmt.Errorf("monitor %s: no clock bound", m.link)
	}
	m.logger.Info("started monitoring", "producer", m.iface.Producer(), "consumer", m.iface.Consumer())
	for {
		if p.Wait(clk.RisingEdge(), t.StopEvent()) == 1 {
			break
		}
		if !m.iface.Fire() {
			continue
		}
		v, err := codec.FromSignals(m.schema, m.iface.Data)
		if err != nil {
			return fmt.Errorf("monitor %s: %w", m.link, err)
		}
		m.observed++
		m.logger.Debug("transfer",
			"producer", m.iface.Producer(),
			"consumer", m.iface.Consumer(),
			"time", p.Now(),
			"value", v.String())
		if m.sink != nil {
			tr := trace.FromValue(m.link, m.iface.Producer(), m.iface.Consumer(), int64(p.Now()), v)
			if err := m.sink.Record(tr); err != nil {
				return fmt.Errorf("monitor %s: record transfer: %w", m.link, err)
			}
		}
	}
	m.logger.Info("stopped monitoring", "producer", m.iface.Producer(), "consumer", m.iface.Consumer(), "transfers", m.observed)
	return nil
}
