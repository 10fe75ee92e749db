package layouts

import (
	"math/big"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vrtb/internal/codec"
)

type memPort struct {
	name  string
	value codec.Vector
}

func (m *memPort) Name() string              { return m.name }
func (m *memPort) Width() int                { return m.value.Width() }
func (m *memPort) Read() codec.Vector        { return m.value }
func (m *memPort) Write(v codec.Vector) error { m.value = v; return nil }

// tree builds a member-per-field target mirroring s.
func tree(t *testing.T, s *codec.Schema, prefix string) codec.Target {
	t.Helper()
	if s.IsLeaf() {
		w, err := codec.BitWidth(s)
		require.NoError(t, err)
		return codec.PortTarget(&memPort{name: prefix, value: codec.Zero(w)})
	}
	out := codec.Tree{}
	for _, f := range s.Fields() {
		out[f.Name] = tree(t, f.Schema, prefix+"_"+f.Name)
	}
	return out
}

func random(t *testing.T, rng *rand.Rand, s *codec.Schema) codec.Value {
	t.Helper()
	kv := map[string]any{}
	v := codec.Zeroed(s)
	for _, f := range v.Flatten() {
		n := new(big.Int)
		for i := 0; i < f.Bits.Width(); i++ {
			if rng.IntN(2) == 1 {
				n.SetBit(n, i, 1)
			}
		}
		kv[f.Name] = n
	}
	out, err := codec.FromFlat(s, kv)
	require.NoError(t, err)
	return out
}

func TestRegistry_Widths(t *testing.T) {
	tests := []struct {
		name   string
		schema *codec.Schema
		width  int
	}{
		{"UnitTestPassthrough", UnitTestPassthrough(), 5},
		{"RequestData", RequestData(), 3 + 64 + 64 + 5},
		{"MessageMetadata", MessageMetadata(), 64},
		{"Message", Message(), 128},
		{"SendQueueData", SendQueueData(), 133},
		{"ReceiveQueueData", ReceiveQueueData(), 1 + 64 + 64 + 5},
		{"WritebackArbiterData", WritebackArbiterData(), 69},
		{"InterfaceSendData", InterfaceSendData(), 128},
		{"InterfaceReceiveData", InterfaceReceiveData(), 128},
		{"OpenpitonData", OpenpitonData(), 192},
		{"CommitSafetyRequest", CommitSafetyRequest(), 1},
	}
	require.Len(t, tests, Registry().Len())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := codec.BitWidth(tt.schema)
			require.NoError(t, err)
			assert.Equal(t, tt.width, w)
			assert.Equal(t, tt.name, tt.schema.Name())
		})
	}
}

func TestRoundTrip_AllLayouts(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, name := range Registry().Names() {
		s := Registry().MustLookup(name)
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 16; i++ {
				v := random(t, rng, s)

				back, err := codec.FromBits(s, codec.ToBits(v))
				require.NoError(t, err)
				assert.True(t, v.Equal(back), "bits: %s != %s", v, back)

				target := tree(t, s, name)
				require.NoError(t, codec.ToSignals(v, target))
				read, err := codec.FromSignals(s, target)
				require.NoError(t, err)
				assert.True(t, v.Equal(read), "signals: %s != %s", v, read)

				w, err := codec.BitWidth(s)
				require.NoError(t, err)
				packed := &memPort{name: name, value: codec.Zero(w)}
				require.NoError(t, codec.ToSignals(v, codec.PortTarget(packed)))
				assert.True(t, codec.ToBits(v).Equal(packed.value))
			}
		})
	}
}

func TestQuickOrders(t *testing.T) {
	rq, err := codec.Quick(ReceiveQueueData(), 1, 2, 3, 4, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rq.Uint("meta-address"))
	assert.Equal(t, uint64(4), rq.Uint("meta_mask-tag"))
	assert.Equal(t, uint64(5), rq.Uint("passthrough-rd"))
	assert.Equal(t, uint64(1), rq.Uint("is_avail"))

	m, err := codec.Quick(Message(), 10, 42, 5)
	require.NoError(t, err)
	// meta.tag is declared first, so it sits above meta.address.
	assert.Equal(t, "0x0000002a0000000a0000000000000005", codec.ToBits(m).Hex())

	_, err = codec.Quick(InterfaceReceiveData(), 1)
	assert.True(t, codec.IsSchemaError(err, codec.ErrCodeNoQuickOrder))
}
