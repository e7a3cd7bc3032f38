package rlm

import (
	"reflect"
	"testing"
)

func TestParseDirectiveFinal(t *testing.T) {
	d := ParseDirective("After checking the context, FINAL(the code is AZURE-FALCON-42)")
	if d.Kind != DirectiveFinal {
		t.Fatalf("expected final directive, got %s", d.Kind)
	}
	if d.Answer != "the code is AZURE-FALCON-42" {
		t.Fatalf("unexpected answer: %q", d.Answer)
	}
}

func TestParseDirectiveFinalSpansLines(t *testing.T) {
	d := ParseDirective("FINAL(first line\nsecond line)")
	if d.Kind != DirectiveFinal {
		t.Fatalf("expected final directive, got %s", d.Kind)
	}
	if d.Answer != "first line\nsecond line" {
		t.Fatalf("unexpected answer: %q", d.Answer)
	}
}

func TestParseDirectiveFinalVar(t *testing.T) {
	d := ParseDirective("The value is stored. FINAL_VAR( summary )")
	if d.Kind != DirectiveFinalVar {
		t.Fatalf("expected final_var directive, got %s", d.Kind)
	}
	if d.VarName != "summary" {
		t.Fatalf("unexpected variable name: %q", d.VarName)
	}
}

func TestParseDirectiveFinalBeatsFinalVar(t *testing.T) {
	d := ParseDirective("FINAL_VAR(x) but actually FINAL(42)")
	if d.Kind != DirectiveFinal {
		t.Fatalf("expected final directive to win, got %s", d.Kind)
	}
	if d.Answer != "42" {
		t.Fatalf("unexpected answer: %q", d.Answer)
	}
}

func TestParseDirectiveFinalBeatsCode(t *testing.T) {
	d := ParseDirective("```js\nresult = 1;\n```\nFINAL(done)")
	if d.Kind != DirectiveFinal {
		t.Fatalf("expected final directive to win over code, got %s", d.Kind)
	}
}

func TestParseDirectiveCodeBlocks(t *testing.T) {
	response := "First pass:\n```js\nvar a = 1;\n```\nThen:\n```javascript\nresult = a + 1;\n```\n"
	d := ParseDirective(response)
	if d.Kind != DirectiveCode {
		t.Fatalf("expected code directive, got %s", d.Kind)
	}
	want := []string{"var a = 1;", "result = a + 1;"}
	if !reflect.DeepEqual(d.Code, want) {
		t.Fatalf("unexpected snippets: %#v", d.Code)
	}
}

func TestParseDirectiveIgnoresUntaggedFences(t *testing.T) {
	d := ParseDirective("```python\nprint('hi')\n```")
	if d.Kind != DirectiveContinue {
		t.Fatalf("expected continue for untagged fence, got %s", d.Kind)
	}
}

func TestParseDirectiveContinue(t *testing.T) {
	d := ParseDirective("Let me think about the structure of the context first.")
	if d.Kind != DirectiveContinue {
		t.Fatalf("expected continue directive, got %s", d.Kind)
	}
}
