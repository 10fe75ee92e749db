package harness

import (
	"context"
	"fmt"
	"math/big"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/vrtb/internal/store"
	"github.com/roach88/vrtb/internal/trace"
)

// validIdentifier matches valid SQL identifiers (column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
// This prevents SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string           // Assertion type for categorization
	Expected string           // Human-readable expected outcome
	Actual   string           // Human-readable actual outcome
	Trace    []trace.Transfer // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, t := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s %s\n", t.Seq, t.Link, t.Producer, t.Consumer, t.Bits)
		}
	}

	return buf.String()
}

// assertTransferContains checks that some transfer on the link carries the
// expected field values (subset match, compared as numbers).
func assertTransferContains(tr []trace.Transfer, assertion Assertion) error {
	for _, t := range tr {
		if t.Link == assertion.Link && matchFields(t, assertion.Fields) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTransferContains,
		Expected: fmt.Sprintf("transfer on %s with fields %s", assertion.Link, formatWhereClause(assertion.Fields)),
		Actual:   "not found in trace",
		Trace:    tr,
	}
}

// assertTransferOrder checks that the first transfer of each link appears
// in the given order. Transfers on other links may come in between.
func assertTransferOrder(tr []trace.Transfer, assertion Assertion) error {
	positions := make(map[string]int64)
	for _, t := range tr {
		if _, seen := positions[t.Link]; !seen {
			positions[t.Link] = t.Seq
		}
	}

	for _, link := range assertion.Links {
		if _, ok := positions[link]; !ok {
			return &AssertionError{
				Type:     AssertTransferOrder,
				Expected: fmt.Sprintf("transfers on all links: %v", assertion.Links),
				Actual:   fmt.Sprintf("no transfer on %s", link),
				Trace:    tr,
			}
		}
	}

	for i := 1; i < len(assertion.Links); i++ {
		prev := assertion.Links[i-1]
		curr := assertion.Links[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTransferOrder,
				Expected: fmt.Sprintf("links in order: %v", assertion.Links),
				Actual: fmt.Sprintf("%s (seq %d) should be before %s (seq %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: tr,
			}
		}
	}

	return nil
}

// assertTransferCount checks the exact number of transfers on a link.
func assertTransferCount(tr []trace.Transfer, assertion Assertion) error {
	count := 0
	for _, t := range tr {
		if t.Link == assertion.Link {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTransferCount,
			Expected: fmt.Sprintf("%d transfers on %s", assertion.Count, assertion.Link),
			Actual:   fmt.Sprintf("%d transfers", count),
			Trace:    tr,
		}
	}

	return nil
}

// assertStored checks that exactly one stored transfer of the run matches
// Where and carries the Expect column values.
//
// Security: column names are validated against a whitelist pattern to
// prevent SQL injection via identifier interpolation.
func assertStored(ctx context.Context, st *store.Store, runID string, assertion Assertion) error {
	whereSQL, whereArgs, err := buildWhereClause(assertion.Where)
	if err != nil {
		return err
	}

	query := "SELECT * FROM transfers WHERE run_id = ?"
	if whereSQL != "" {
		query += " AND " + whereSQL
	}
	args := append([]any{runID}, whereArgs...)

	rows, err := st.Query(ctx, query, args...)
	if err != nil {
		return &AssertionError{
			Type:     AssertStored,
			Expected: "query stored transfers",
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	if !rows.Next() {
		return &AssertionError{
			Type:     AssertStored,
			Expected: fmt.Sprintf("stored transfer where %s", formatWhereClause(assertion.Where)),
			Actual:   "row not found",
		}
	}

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := rows.Scan(valuePtrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	if rows.Next() {
		return &AssertionError{
			Type:     AssertStored,
			Expected: fmt.Sprintf("exactly one stored transfer where %s", formatWhereClause(assertion.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actualRow := make(map[string]any, len(columns))
	for i, col := range columns {
		actualRow[col] = values[i]
	}

	keys := sortedKeys(assertion.Expect)
	for _, key := range keys {
		expectedValue := assertion.Expect[key]
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertStored,
				Expected: fmt.Sprintf("column %q to exist", key),
				Actual:   fmt.Sprintf("column %q not present in result columns: %v", key, columns),
			}
		}
		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertStored,
				Expected: fmt.Sprintf("column %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("column %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}

	return nil
}

// buildWhereClause constructs a parameterized WHERE fragment. Keys are
// sorted for determinism.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := sortedKeys(where)
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))

	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, toSQLValue(where[key]))
	}

	return strings.Join(clauses, " AND "), args, nil
}

// toSQLValue converts a YAML value to a SQL-compatible value.
func toSQLValue(v any) any {
	switch val := v.(type) {
	case string, int, int64, bool:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stateValuesEqual compares expected YAML values with stored column values.
// SQLite returns integers as int64 and may return text as []byte.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil && actual == nil {
		return true
	}
	if expected == nil || actual == nil {
		return false
	}
	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}

	switch exp := expected.(type) {
	case string:
		if actualStr, ok := actual.(string); ok {
			return exp == actualStr
		}
		return false
	case int:
		if actualInt, ok := actual.(int64); ok {
			return int64(exp) == actualInt
		}
		if actualInt, ok := actual.(int); ok {
			return exp == actualInt
		}
		return false
	case int64:
		if actualInt, ok := actual.(int64); ok {
			return exp == actualInt
		}
		return false
	case bool:
		if actualBool, ok := actual.(bool); ok {
			return exp == actualBool
		}
		if actualInt, ok := actual.(int64); ok {
			return exp == (actualInt != 0)
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

// matchFields checks that a transfer carries every expected leaf value.
// Extra fields are ignored.
func matchFields(t trace.Transfer, expected map[string]any) bool {
	for name, want := range expected {
		got, ok := t.Field(name)
		if !ok || !numbersEqual(got, want) {
			return false
		}
	}
	return true
}

// numbersEqual compares a hex field value with an integer or a numeric
// string (decimal, or prefixed 0x/0b/0o).
func numbersEqual(field string, want any) bool {
	g, ok := new(big.Int).SetString(field, 0)
	if !ok {
		return false
	}
	var w *big.Int
	switch x := want.(type) {
	case int:
		w = big.NewInt(int64(x))
	case int64:
		w = big.NewInt(x)
	case uint64:
		w = new(big.Int).SetUint64(x)
	case string:
		if w, ok = new(big.Int).SetString(x, 0); !ok {
			return false
		}
	default:
		return false
	}
	return g.Cmp(w) == 0
}

// AssertionContext provides database access for stored assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
	RunID string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTransferContains:
			err = assertTransferContains(result.Trace, assertion)
		case AssertTransferOrder:
			err = assertTransferOrder(result.Trace, assertion)
		case AssertTransferCount:
			err = assertTransferCount(result.Trace, assertion)
		case AssertStored:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: stored requires database context", i)
			} else {
				ctx := actx.Ctx
				if ctx == nil {
					ctx = context.Background()
				}
				err = assertStored(ctx, actx.Store, actx.RunID, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
