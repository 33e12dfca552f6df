package types

import (
	"encoding/json"
	"fmt"
)

// TaskIO is the dynamic input/output bag carried by tasks. The known fields
// have typed accessors; arbitrary producer-supplied keys survive a round trip
// through Extra. Serialised as a single flat JSON object at the persistence
// boundary.
type TaskIO struct {
	Prompt         string
	Context        string
	ParentOutput   string
	PreviousErrors []string
	RetryHint      string
	Result         string
	Extra          map[string]interface{}
}

// known JSON keys lifted out of the flat object
const (
	ioKeyPrompt         = "prompt"
	ioKeyContext        = "context"
	ioKeyParentOutput   = "parent_output"
	ioKeyPreviousErrors = "previous_errors"
	ioKeyRetryHint      = "retry_hint"
	ioKeyResult         = "result"
)

// Clone returns a deep copy of the bag. A nil receiver yields an empty bag,
// so retry enrichment never has to nil-check.
func (io *TaskIO) Clone() *TaskIO {
	out := &TaskIO{}
	if io == nil {
		return out
	}
	out.Prompt = io.Prompt
	out.Context = io.Context
	out.ParentOutput = io.ParentOutput
	out.RetryHint = io.RetryHint
	out.Result = io.Result
	if len(io.PreviousErrors) > 0 {
		out.PreviousErrors = append([]string(nil), io.PreviousErrors...)
	}
	if len(io.Extra) > 0 {
		out.Extra = make(map[string]interface{}, len(io.Extra))
		for k, v := range io.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// MarshalJSON flattens known fields and passthrough keys into one object
func (io *TaskIO) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(io.Extra)+6)
	for k, v := range io.Extra {
		m[k] = v
	}
	if io.Prompt != "" {
		m[ioKeyPrompt] = io.Prompt
	}
	if io.Context != "" {
		m[ioKeyContext] = io.Context
	}
	if io.ParentOutput != "" {
		m[ioKeyParentOutput] = io.ParentOutput
	}
	if len(io.PreviousErrors) > 0 {
		m[ioKeyPreviousErrors] = io.PreviousErrors
	}
	if io.RetryHint != "" {
		m[ioKeyRetryHint] = io.RetryHint
	}
	if io.Result != "" {
		m[ioKeyResult] = io.Result
	}
	return json.Marshal(m)
}

// UnmarshalJSON lifts known keys into typed fields and keeps the rest in Extra
func (io *TaskIO) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("task io must be a JSON object: %w", err)
	}
	*io = TaskIO{}
	for k, v := range m {
		switch k {
		case ioKeyPrompt:
			io.Prompt, _ = v.(string)
		case ioKeyContext:
			io.Context, _ = v.(string)
		case ioKeyParentOutput:
			io.ParentOutput, _ = v.(string)
		case ioKeyRetryHint:
			io.RetryHint, _ = v.(string)
		case ioKeyResult:
			io.Result, _ = v.(string)
		case ioKeyPreviousErrors:
			items, ok := v.([]interface{})
			if !ok {
				continue
			}
			for _, item := range items {
				if s, ok := item.(string); ok {
					io.PreviousErrors = append(io.PreviousErrors, s)
				}
			}
		default:
			if io.Extra == nil {
				io.Extra = make(map[string]interface{})
			}
			io.Extra[k] = v
		}
	}
	return nil
}

// ResultOutput builds an output bag holding an agent result
func ResultOutput(result string) *TaskIO {
	return &TaskIO{Result: result}
}
