package rlm

import (
	"regexp"
	"strings"
)

// DirectiveKind enumerates the control meanings a model response can carry.
type DirectiveKind int

const (
	// DirectiveContinue means the response carried no control marker.
	DirectiveContinue DirectiveKind = iota
	// DirectiveFinal carries a verbatim final answer.
	DirectiveFinal
	// DirectiveFinalVar names a sandbox variable whose value is the answer.
	DirectiveFinalVar
	// DirectiveCode carries one or more snippets to execute in order.
	DirectiveCode
)

func (k DirectiveKind) String() string {
	switch k {
	case DirectiveFinal:
		return "final"
	case DirectiveFinalVar:
		return "final_var"
	case DirectiveCode:
		return "code"
	default:
		return "continue"
	}
}

// Directive is the parsed intent of one model response.
type Directive struct {
	Kind    DirectiveKind
	Answer  string   // DirectiveFinal
	VarName string   // DirectiveFinalVar
	Code    []string // DirectiveCode, in appearance order
}

var (
	finalRe     = regexp.MustCompile(`(?s)FINAL\((.*?)\)`)
	finalVarRe  = regexp.MustCompile(`FINAL_VAR\((.*?)\)`)
	codeFenceRe = regexp.MustCompile("(?s)```(?:js|javascript)[ \t]*\r?\n(.*?)\r?\n[ \t]*```")
)

// ParseDirective extracts the control directive from one model response.
// FINAL markers win over FINAL_VAR, which wins over code fences; surrounding
// prose never affects the outcome.
func ParseDirective(response string) Directive {
	if m := finalRe.FindStringSubmatch(response); m != nil {
		return Directive{Kind: DirectiveFinal, Answer: strings.TrimSpace(m[1])}
	}
	if m := finalVarRe.FindStringSubmatch(response); m != nil {
		return Directive{Kind: DirectiveFinalVar, VarName: strings.TrimSpace(m[1])}
	}

	var blocks []string
	for _, m := range codeFenceRe.FindAllStringSubmatch(response, -1) {
		blocks = append(blocks, m[1])
	}
	if len(blocks) > 0 {
		return Directive{Kind: DirectiveCode, Code: blocks}
	}
	return Directive{Kind: DirectiveContinue}
}
