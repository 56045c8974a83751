package harness

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// schemaSource is the CUE schema every scenario must satisfy, whichever
// format it was written in.
const schemaSource = `
#Channel: "tick" | "fixed_tick" | "post_tick"

#Wait: =~"^(next_tick|fixed_tick|end_of_frame|frames:[1-9][0-9]*|delay:.+)$"

#Listener: {
	name:               string & !=""
	channel:            #Channel
	once?:              bool
	only?:              bool
	fail?:              string
	panic?:             bool
	unsubscribe_after?: int & >=0
}

#Task: {
	name:    string & !=""
	waits?:  [...#Wait]
	manual?: bool
}

#Frame: {
	fixed_steps?:  int & >=0
	delta?:        string
	repeat?:       int & >=0
	subscribe?:    [...string]
	start?:        [...string]
	stop?:         [...string]
	unload_scene?: bool
	destroy?:      bool
}

#Assertion: {
	type:   "trace_equals" | "trace_order" | "trace_count" | "task_state" | "hosts"
	names?: [...string]
	name?:  string
	count?: int & >=0
	state?: "running" | "completed" | "stopped" | "cancelled" | "faulted"
}

#Scenario: {
	name:        string & !=""
	description: string
	policy?:     "recreate" | "fail"
	listeners?:  [...#Listener]
	tasks?:      [...#Task]
	frames?:     [...#Frame]
	assertions?: [...#Assertion]
}
`

// SchemaError is a schema violation with its source position, if known.
type SchemaError struct {
	Message string
	Pos     token.Pos
}

func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// schema compiles the scenario definition in ctx.
func schema(ctx *cue.Context) (cue.Value, error) {
	v := ctx.CompileString(schemaSource, cue.Filename("scenario_schema.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compile scenario schema: %w", err)
	}
	return v.LookupPath(cue.ParsePath("#Scenario")), nil
}

// decodeCUE reads a scenario from CUE source. The scenario is the value of
// a top-level scenario field, or the whole file if there is none.
func decodeCUE(path string, data []byte) (*Scenario, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", formatCUEError(err))
	}
	if sv := v.LookupPath(cue.ParsePath("scenario")); sv.Exists() {
		v = sv
	}

	def, err := schema(ctx)
	if err != nil {
		return nil, err
	}
	v = def.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("scenario does not match schema: %w", formatCUEError(err))
	}

	var scenario Scenario
	if err := v.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to decode CUE scenario: %w", formatCUEError(err))
	}
	return &scenario, nil
}

// ValidateSchema checks s against the CUE scenario schema.
func ValidateSchema(s *Scenario) error {
	ctx := cuecontext.New()
	def, err := schema(ctx)
	if err != nil {
		return err
	}
	v := def.Unify(ctx.Encode(s))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// ValidateFile loads the scenario at path and checks it against both the
// schema and the loader's reference checks.
func ValidateFile(path string) error {
	s, err := LoadScenario(path)
	if err != nil {
		return err
	}
	return ValidateSchema(s)
}

// formatCUEError returns the first CUE error with its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	se := &SchemaError{Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		se.Pos = positions[0]
	}
	return se
}
