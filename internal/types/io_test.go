package types

import (
	"encoding/json"
	"testing"
)

func TestTaskIORoundTripKeepsExtraKeys(t *testing.T) {
	in := &TaskIO{
		Prompt:         "write the parser",
		Context:        "project uses Go",
		PreviousErrors: []string{"timeout", "ENOENT"},
		RetryHint:      "check the path",
		Extra: map[string]interface{}{
			"workflow_step": "step-3",
			"attempt_tag":   float64(2),
		},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out TaskIO
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if out.Prompt != in.Prompt || out.Context != in.Context || out.RetryHint != in.RetryHint {
		t.Errorf("typed fields lost: %+v", out)
	}
	if len(out.PreviousErrors) != 2 || out.PreviousErrors[1] != "ENOENT" {
		t.Errorf("previous errors = %v", out.PreviousErrors)
	}
	if out.Extra["workflow_step"] != "step-3" {
		t.Errorf("extra = %v", out.Extra)
	}
	if out.Extra["attempt_tag"] != float64(2) {
		t.Errorf("extra = %v", out.Extra)
	}
}

func TestTaskIOMarshalFlattensToOneObject(t *testing.T) {
	in := &TaskIO{Prompt: "p", Extra: map[string]interface{}{"source": "scanner"}}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("not a flat object: %v", err)
	}
	if m["prompt"] != "p" || m["source"] != "scanner" {
		t.Errorf("object = %v", m)
	}
	if _, ok := m["Extra"]; ok {
		t.Error("Extra must not appear as its own key")
	}
}

func TestTaskIOOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(&TaskIO{Result: "done"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"result":"done"}` {
		t.Errorf("encoded = %s", data)
	}
}

func TestTaskIOUnmarshalRejectsNonObject(t *testing.T) {
	var out TaskIO
	if err := json.Unmarshal([]byte(`["not", "an", "object"]`), &out); err == nil {
		t.Fatal("expected an error for a JSON array")
	}
}

func TestCloneIsDeepAndNilSafe(t *testing.T) {
	var nilBag *TaskIO
	if got := nilBag.Clone(); got == nil {
		t.Fatal("nil receiver should clone to an empty bag")
	}

	in := &TaskIO{
		PreviousErrors: []string{"one"},
		Extra:          map[string]interface{}{"k": "v"},
	}
	out := in.Clone()
	out.PreviousErrors = append(out.PreviousErrors, "two")
	out.Extra["k2"] = "v2"

	if len(in.PreviousErrors) != 1 {
		t.Error("clone shares the previous errors slice")
	}
	if _, ok := in.Extra["k2"]; ok {
		t.Error("clone shares the extra map")
	}
}
