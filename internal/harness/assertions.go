package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/tickcore/internal/trace"
)

// AssertionError is returned when an assertion fails.
// It includes the full trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []trace.Entry
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, line := range strings.Split(strings.TrimRight(trace.FormatText(e.Trace), "\n"), "\n") {
		fmt.Fprintf(&buf, "  %s\n", line)
	}
	return buf.String()
}

func names(entries []trace.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

// assertTraceEquals checks that the call entries carry exactly the expected
// names, in order.
func assertTraceEquals(result *Result, a Assertion) error {
	got := names(result.Calls())
	if slices.Equal(got, a.Names) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceEquals,
		Expected: fmt.Sprintf("%v", a.Names),
		Actual:   fmt.Sprintf("%v", got),
		Trace:    result.Trace,
	}
}

// assertTraceOrder checks that the names occur as a subsequence of the call
// entries. Intervening entries are allowed.
func assertTraceOrder(result *Result, a Assertion) error {
	calls := result.Calls()
	next := 0
	for _, e := range calls {
		if next < len(a.Names) && e.Name == a.Names[next] {
			next++
		}
	}
	if next == len(a.Names) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("names in order: %v", a.Names),
		Actual:   fmt.Sprintf("matched %v, then no %q", a.Names[:next], a.Names[next]),
		Trace:    result.Trace,
	}
}

// assertTraceCount checks that entries of any kind named a.Name occur
// exactly a.Count times.
func assertTraceCount(result *Result, a Assertion) error {
	count := 0
	for _, e := range result.Trace {
		if e.Name == a.Name {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Name),
		Actual:   fmt.Sprintf("%d occurrences", count),
		Trace:    result.Trace,
	}
}

func assertTaskState(result *Result, a Assertion) error {
	state, ok := result.Tasks[a.Name]
	if !ok {
		state = "never started"
	}
	if state == a.State {
		return nil
	}
	return &AssertionError{
		Type:     AssertTaskState,
		Expected: fmt.Sprintf("task %s %s", a.Name, a.State),
		Actual:   state,
		Trace:    result.Trace,
	}
}

func assertHosts(result *Result, a Assertion) error {
	if result.Hosts == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertHosts,
		Expected: fmt.Sprintf("%d hosts", a.Count),
		Actual:   fmt.Sprintf("%d hosts", result.Hosts),
		Trace:    result.Trace,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceEquals:
			err = assertTraceEquals(result, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result, a)
		case AssertTraceCount:
			err = assertTraceCount(result, a)
		case AssertTaskState:
			err = assertTaskState(result, a)
		case AssertHosts:
			err = assertHosts(result, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
