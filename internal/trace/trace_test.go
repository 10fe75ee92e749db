package trace

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vrtb/internal/codec"
)

var meta = codec.Record("MessageMetadata",
	codec.F("tag", codec.Leaf(32)),
	codec.F("address", codec.Leaf(32)),
)

func TestFromValue(t *testing.T) {
	v, err := codec.FromFlat(meta, map[string]any{"tag": 42, "address": 10})
	require.NoError(t, err)

	tr := FromValue("send", "TB", "DUT", 15000, v)
	assert.Equal(t, "MessageMetadata", tr.Schema)
	assert.Equal(t, "0x0000002a0000000a", tr.Bits)
	assert.Equal(t, []Field{{"tag", "0x0000002a"}, {"address", "0x0000000a"}}, tr.Fields)

	got, ok := tr.Field("address")
	require.True(t, ok)
	assert.Equal(t, "0x0000000a", got)
	_, ok = tr.Field("data")
	assert.False(t, ok)
}

func TestRecorder_StampsSeqAndForwards(t *testing.T) {
	var forwarded []int64
	r := NewRecorder(SinkFunc(func(t Transfer) error {
		forwarded = append(forwarded, t.Seq)
		return nil
	}))

	require.NoError(t, r.Record(Transfer{Link: "a"}))
	require.NoError(t, r.Record(Transfer{Link: "b"}))
	require.NoError(t, r.Record(Transfer{Link: "a"}))

	assert.Equal(t, []int64{1, 2, 3}, forwarded)
	assert.Len(t, r.OnLink("a"), 2)
	assert.Equal(t, int64(3), r.Transfers()[2].Seq)
}

func TestRecorder_PropagatesSinkError(t *testing.T) {
	boom := errors.New("disk full")
	r := NewRecorder(SinkFunc(func(Transfer) error { return boom }))
	assert.ErrorIs(t, r.Record(Transfer{}), boom)
}

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    string
		wantErr bool
	}{
		{"sorted keys", map[string]any{"b": 1, "a": "x"}, `{"a":"x","b":1}`, false},
		{"no html escape", "<&>", `"<&>"`, false},
		{"nfc", "é", "\"é\"", false},
		{"nested", []any{true, map[string]any{"k": int64(2)}}, `[true,{"k":2}]`, false},
		{"float", 1.5, "", true},
		{"null", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestTransferID_Stable(t *testing.T) {
	tr := Transfer{Seq: 1, TimePS: 10, Link: "l", Fields: []Field{{"x", "0x1"}}}
	a, err := tr.ID()
	require.NoError(t, err)
	b, err := tr.ID()
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	tr.Seq = 2
	c, err := tr.ID()
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestSnapshot(t *testing.T) {
	out, err := Snapshot([]Transfer{{
		Seq: 1, TimePS: 10000, Link: "send", Producer: "TB", Consumer: "DUT",
		Schema: "M", Bits: "0x01", Fields: []Field{{"v", "0x01"}},
	}})
	require.NoError(t, err)
	assert.Equal(t,
		`{"bits":"0x01","consumer":"DUT","fields":{"v":"0x01"},"link":"send","producer":"TB","schema":"M","seq":1,"time_ps":10000}`+"\n",
		string(out))
}
