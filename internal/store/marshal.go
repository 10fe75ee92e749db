package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/vrtb/internal/trace"
)

// marshalFields encodes transfer fields as canonical JSON pairs,
// [[name, value], ...], keeping declared order.
func marshalFields(fields []trace.Field) (string, error) {
	pairs := make([]any, len(fields))
	for i, f := range fields {
		pairs[i] = []any{f.Name, f.Value}
	}
	data, err := trace.MarshalCanonical(pairs)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

// unmarshalFields parses the output of marshalFields.
func unmarshalFields(data string) ([]trace.Field, error) {
	var pairs [][2]string
	if err := json.Unmarshal([]byte(data), &pairs); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	fields := make([]trace.Field, len(pairs))
	for i, p := range pairs {
		fields[i] = trace.Field{Name: p[0], Value: p[1]}
	}
	return fields, nil
}
