package pipeline

import "testing"

func TestParseDocumentPreservesActionKeyOrder(t *testing.T) {
	doc, err := ParseDocument([]byte(`
steps:
  - match: "foo"
    set:
      a: "1"
    drop: {}
`))
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	if len(doc.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(doc.Steps))
	}

	actions := doc.Steps[0].Actions
	if len(actions) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(actions))
	}
	want := []string{"match", "set", "drop"}
	for i, name := range want {
		if actions[i].Name != name {
			t.Errorf("action[%d].Name = %q, want %q", i, actions[i].Name, name)
		}
	}
}

func TestParseDocumentInputsAsMapping(t *testing.T) {
	doc, err := ParseDocument([]byte(`
inputs:
  stdin: {}
  tail:
    filename: "/var/log/*.log"
steps: []
`))
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	if len(doc.Inputs) != 2 {
		t.Fatalf("expected 2 inputs, got %d", len(doc.Inputs))
	}
	if doc.Inputs[0].Name != "stdin" || doc.Inputs[1].Name != "tail" {
		t.Errorf("input names = %q, %q, want stdin, tail", doc.Inputs[0].Name, doc.Inputs[1].Name)
	}

	params, ok := doc.Inputs[1].Params.(map[string]any)
	if !ok {
		t.Fatalf("expected tail params to decode to a map, got %T", doc.Inputs[1].Params)
	}
	if params["filename"] != "/var/log/*.log" {
		t.Errorf("filename = %v, want /var/log/*.log", params["filename"])
	}
}

func TestParseDocumentInputsAsSequence(t *testing.T) {
	doc, err := ParseDocument([]byte(`
inputs:
  - stdin: {}
  - command:
      commandline: "uptime"
steps: []
`))
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	if len(doc.Inputs) != 2 {
		t.Fatalf("expected 2 inputs, got %d", len(doc.Inputs))
	}
	if doc.Inputs[0].Name != "stdin" || doc.Inputs[1].Name != "command" {
		t.Errorf("input names = %q, %q", doc.Inputs[0].Name, doc.Inputs[1].Name)
	}
}

func TestParseDocumentRejectsUnknownTopLevelKey(t *testing.T) {
	_, err := ParseDocument([]byte("bogus: true\n"))
	if err == nil {
		t.Error("expected an error for an unknown top-level key")
	}
}

func TestParseDocumentEmptyDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(""))
	if err != nil {
		t.Fatalf("ParseDocument failed on empty input: %v", err)
	}
	if len(doc.Steps) != 0 || len(doc.Inputs) != 0 {
		t.Errorf("expected an empty document, got %+v", doc)
	}
}
