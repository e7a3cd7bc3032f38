package rlm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"time"

	"github.com/dop251/goja"
)

const (
	// variablePreviewLimit bounds the textual preview recorded per variable.
	variablePreviewLimit = 200

	// maxSnippetCallStack limits interpreter recursion inside one snippet.
	maxSnippetCallStack = 500

	// DefaultExecTimeout is the wall-clock cap for one snippet execution.
	DefaultExecTimeout = 5 * time.Second
)

// ExecutionRecord captures one snippet run: the code, whether it succeeded,
// the surfaced output (the string form of a `result` variable, if bound), the
// error text if any, and a truncated preview of every stored variable.
type ExecutionRecord struct {
	Code      string            `json:"code"`
	Success   bool              `json:"success"`
	Output    string            `json:"output,omitempty"`
	Error     string            `json:"error,omitempty"`
	Variables map[string]string `json:"variables"`
}

// DispatchFunc issues a recursive sub-query on behalf of snippet code. Depth
// is the depth of the sandbox the snippet runs in, not of the sub-call.
type DispatchFunc func(ctx context.Context, query, contextSubset string, depth int) (string, error)

// Sandbox is the execution environment for one completion run. It holds the
// read-only context payload and a variable store that persists across
// snippets, and appends one ExecutionRecord per executed snippet.
//
// Snippets run on an embedded ECMAScript interpreter that exposes only the
// fixed built-in surface plus `context` and `recursive_lm`; there is no
// filesystem, network, or process access. Failed snippets are all-or-nothing:
// the store keeps its pre-snippet state and the interpreter is rebuilt from
// it, so partial mutations never leak into later snippets.
//
// A Sandbox is owned by a single completion invocation and is not safe for
// concurrent use.
type Sandbox struct {
	contextPayload any
	contextType    string
	contextText    string

	vm       *goja.Runtime
	baseline map[string]struct{}
	vars     map[string]any
	history  []ExecutionRecord

	dispatch DispatchFunc
	depth    int
	timeout  time.Duration

	regexCache map[string]*regexp.Regexp

	execCtx  context.Context
	fatalErr error
}

// NewSandbox builds a sandbox around the given context payload. A
// non-positive timeout falls back to DefaultExecTimeout.
func NewSandbox(contextPayload any, timeout time.Duration) *Sandbox {
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	typ, text := describeContext(contextPayload)
	s := &Sandbox{
		contextPayload: contextPayload,
		contextType:    typ,
		contextText:    text,
		vars:           map[string]any{"context": contextPayload},
		timeout:        timeout,
		regexCache:     map[string]*regexp.Regexp{},
	}
	s.buildVM()
	return s
}

// SetDispatch wires the recursive sub-query capability into snippet code. The
// depth is the nesting level of this sandbox (0 for the primary query).
func (s *Sandbox) SetDispatch(fn DispatchFunc, depth int) {
	s.dispatch = fn
	s.depth = depth
}

// Execute runs one snippet and appends exactly one ExecutionRecord to the
// history, success or failure. Snippet errors are captured in the record; the
// returned error is non-nil only when a recursive model call failed at the
// transport level, which is fatal to the whole completion.
func (s *Sandbox) Execute(ctx context.Context, code string) (ExecutionRecord, error) {
	rec := ExecutionRecord{Code: code, Variables: map[string]string{}}

	s.execCtx = ctx
	s.fatalErr = nil
	timer := time.AfterFunc(s.timeout, func() { s.vm.Interrupt("execution timed out") })
	_, err := s.vm.RunString(code)
	timer.Stop()
	s.vm.ClearInterrupt()
	s.execCtx = nil

	switch {
	case s.fatalErr != nil:
		rec.Error = s.fatalErr.Error()
		s.rebuildVM()
		s.snapshotPreviews(&rec)
		s.history = append(s.history, rec)
		return rec, s.fatalErr
	case err != nil:
		rec.Error = executionErrorText(err)
		// discard the interpreter so partially applied globals cannot
		// outlive the failed snippet
		s.rebuildVM()
		s.snapshotPreviews(&rec)
		s.history = append(s.history, rec)
		return rec, nil
	}

	s.harvest()
	rec.Success = true
	s.snapshotPreviews(&rec)
	if v, ok := s.vars["result"]; ok {
		rec.Output = valueString(v)
	}
	s.history = append(s.history, rec)
	return rec, nil
}

// Variable returns the raw value of a stored variable.
func (s *Sandbox) Variable(name string) (any, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// VariableString resolves a FINAL_VAR reference. A missing name yields an
// explicit miss marker rather than an error.
func (s *Sandbox) VariableString(name string) string {
	v, ok := s.vars[name]
	if !ok {
		return fmt.Sprintf("<no such variable: %s>", name)
	}
	return valueString(v)
}

// History returns the execution records appended so far, oldest first.
func (s *Sandbox) History() []ExecutionRecord {
	return s.history
}

// ContextType names the shape of the context payload (string, list, object).
func (s *Sandbox) ContextType() string { return s.contextType }

// ContextText is the full string form of the context payload.
func (s *Sandbox) ContextText() string { return s.contextText }

// ContextSize is the character length of the context's string form.
func (s *Sandbox) ContextSize() int { return len([]rune(s.contextText)) }

// Peek returns the first n characters of the context's string form, for use
// in prompt previews.
func (s *Sandbox) Peek(n int) string {
	return truncateRunes(s.contextText, n)
}

// buildVM constructs a fresh interpreter: built-ins first, then the context
// binding, then a baseline snapshot of the global namespace, then the stored
// variables. Anything in the baseline is reserved and never harvested back,
// which is what keeps built-ins and `context` shadow-proof across snippets.
func (s *Sandbox) buildVM() {
	vm := goja.New()
	vm.SetMaxCallStackSize(maxSnippetCallStack)

	// eval and the Function constructor are the only routes to dynamic code
	// outside the snippet text itself
	vm.Set("eval", goja.Undefined())
	vm.Set("Function", goja.Undefined())

	s.vm = vm
	s.bindBuiltins()
	vm.Set("context", s.contextPayload)

	baseline := make(map[string]struct{})
	for _, key := range vm.GlobalObject().Keys() {
		baseline[key] = struct{}{}
	}
	s.baseline = baseline

	for name, value := range s.vars {
		if name == "context" {
			continue
		}
		vm.Set(name, value)
	}
}

func (s *Sandbox) rebuildVM() {
	s.buildVM()
}

// harvest merges every newly bound or modified global back into the variable
// store, skipping reserved names and function values (functions stay alive in
// the interpreter but cannot survive a rebuild, so they are never stored).
func (s *Sandbox) harvest() {
	global := s.vm.GlobalObject()
	for _, key := range global.Keys() {
		if _, reserved := s.baseline[key]; reserved {
			continue
		}
		value := global.Get(key)
		if value == nil {
			continue
		}
		if _, isFunc := goja.AssertFunction(value); isFunc {
			continue
		}
		s.vars[key] = value.Export()
	}
	// the root binding stays authoritative even if a snippet reassigned it
	s.vm.Set("context", s.contextPayload)
}

func (s *Sandbox) snapshotPreviews(rec *ExecutionRecord) {
	for name, value := range s.vars {
		rec.Variables[name] = truncateRunes(valueString(value), variablePreviewLimit)
	}
}

func executionErrorText(err error) string {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return "execution timed out"
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return exception.Error()
	}
	return err.Error()
}

// describeContext names the payload shape and renders its canonical string
// form (strings verbatim, everything else as JSON).
func describeContext(payload any) (typ string, text string) {
	switch t := payload.(type) {
	case nil:
		return "string", ""
	case string:
		return "string", t
	}
	switch reflect.ValueOf(payload).Kind() {
	case reflect.Slice, reflect.Array:
		typ = "list"
	case reflect.Map:
		typ = "object"
	default:
		typ = "string"
	}
	if encoded, err := json.Marshal(payload); err == nil {
		return typ, string(encoded)
	}
	return typ, fmt.Sprintf("%v", payload)
}

// valueString renders a stored value the way it is reported to the model:
// strings verbatim, numbers in their shortest form, everything else as JSON.
func valueString(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		if encoded, err := json.Marshal(v); err == nil {
			return string(encoded)
		}
		return fmt.Sprintf("%v", v)
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
