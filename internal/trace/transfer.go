package trace

import (
	"sync"
	"sync/atomic"

	"github.com/roach88/vrtb/internal/codec"
)

// Transfer is one observed valid/ready handshake.
type Transfer struct {
	// Seq orders transfers across every link of a run, starting at 1.
	Seq int64

	// TimePS is the simulated time of the sampling rising edge, in picoseconds.
	TimePS int64

	// Link names the monitored interface.
	Link string

	Producer string
	Consumer string

	// Schema is the schema name of the transferred value.
	Schema string

	// Bits is the packed value as 0x-prefixed hex.
	Bits string

	// Fields holds every leaf in declared order.
	Fields []Field
}

// Field is one flattened leaf of a transferred value.
type Field struct {
	Name  string
	Value string
}

// Field returns the hex value of the named leaf.
func (t Transfer) Field(name string) (string, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// FromValue builds a transfer record for v. Seq is assigned by the sink.
func FromValue(link, producer, consumer string, timePS int64, v codec.Value) Transfer {
	flat := v.Flatten()
	fields := make([]Field, len(flat))
	for i, f := range flat {
		fields[i] = Field{Name: f.Name, Value: f.Bits.Hex()}
	}
	return Transfer{
		TimePS:   timePS,
		Link:     link,
		Producer: producer,
		Consumer: consumer,
		Schema:   v.Schema().String(),
		Bits:     codec.ToBits(v).Hex(),
		Fields:   fields,
	}
}

// Sink receives transfers as monitors observe them.
type Sink interface {
	Record(t Transfer) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(t Transfer) error

// Record implements Sink.
func (f SinkFunc) Record(t Transfer) error { return f(t) }

// Seq is a monotonic logical counter for transfer ordering.
//
// Thread-safety: safe for concurrent use; the scheduler only ever calls it
// from one process at a time.
type Seq struct {
	n atomic.Int64
}

// Next returns the next sequence number, starting at 1.
func (s *Seq) Next() int64 { return s.n.Add(1) }

// Current returns the last issued number.
func (s *Seq) Current() int64 { return s.n.Load() }

// Recorder is an in-memory Sink that stamps sequence numbers and forwards
// each transfer to optional downstream sinks.
type Recorder struct {
	seq  Seq
	mu   sync.Mutex
	all  []Transfer
	next []Sink
}

// NewRecorder returns an empty recorder forwarding to next.
func NewRecorder(next ...Sink) *Recorder {
	return &Recorder{next: next}
}

// Record implements Sink.
func (r *Recorder) Record(t Transfer) error {
	t.Seq = r.seq.Next()
	r.mu.Lock()
	r.all = append(r.all, t)
	r.mu.Unlock()
	for _, s := range r.next {
		if err := s.Record(t); err != nil {
			return err
		}
	}
	return nil
}

// Transfers returns every recorded transfer in order.
func (r *Recorder) Transfers() []Transfer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transfer(nil), r.all...)
}

// OnLink returns the transfers observed on one link, in order.
func (r *Recorder) OnLink(link string) []Transfer {
	var out []Transfer
	for _, t := range r.Transfers() {
		if t.Link == link {
			out = append(out, t)
		}
	}
	return out
}
