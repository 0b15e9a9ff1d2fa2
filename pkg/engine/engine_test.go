package engine

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chazu/michelangelo/pkg/scene"
)

// ---------------------------------------------------------------------------
// Evaluate
// ---------------------------------------------------------------------------

func TestEvaluateBuildsNothing(t *testing.T) {
	// Programs that never call shape leave the tree empty but still succeed.
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"whitespace", "   \n\t  \n  "},
		{"arithmetic", "(+ 1 2)"},
		{"definitions", "(def x 10)\n(def y 20)\n(+ x y)"},
		{"unused primitive", "(def ball (sphere 0 0 0 1))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, evalErrs, err := NewEngine().Evaluate(tt.src)
			if err != nil {
				t.Fatalf("fatal error: %v", err)
			}
			if len(evalErrs) > 0 {
				t.Fatalf("eval errors: %v", evalErrs)
			}
			if s == nil || s.Tree == nil {
				t.Fatal("expected a scene with a tree")
			}
			if !s.Tree.Empty() {
				t.Errorf("tree has %d nodes, want 0", s.Tree.Len())
			}
		})
	}
}

func TestEvaluateReportsErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unmatched paren", "(+ 1 2"},
		{"undefined symbol", "(+ 1 undefined-symbol)"},
		{"error after a shape", "(shape (sphere 0 0 0 1))\n(+ 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, evalErrs, err := NewEngine().Evaluate(tt.src)
			if err != nil {
				t.Fatalf("fatal error: %v", err)
			}
			if s != nil {
				t.Fatal("expected nil scene")
			}
			if len(evalErrs) == 0 {
				t.Fatal("expected eval errors")
			}
			if evalErrs[0].Message == "" {
				t.Error("empty error message")
			}
			if evalErrs[0].Line < 0 {
				t.Errorf("line = %d", evalErrs[0].Line)
			}
		})
	}
}

func TestEvalErrorString(t *testing.T) {
	if got := (EvalError{Line: 5, Message: "bad radius"}).Error(); got != "line 5: bad radius" {
		t.Errorf("Error() = %q", got)
	}
	if got := (EvalError{Message: "no location"}).Error(); got != "no location" {
		t.Errorf("Error() = %q", got)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	src := `
(shape (sphere 0 0 0 1) :name "body")
(union (root) (box 1 0 0 0.5 0.5 0.5) :softness 0.1)
(subtract (root) (cube 0 0 1 0.4) :blend 0.5)
`
	eng := NewEngine()
	var first string
	for i := 0; i < 5; i++ {
		s, evalErrs, err := eng.Evaluate(src)
		if err != nil || len(evalErrs) > 0 {
			t.Fatalf("iteration %d: %v %v", i, err, evalErrs)
		}
		var buf strings.Builder
		if err := scene.Format(&buf, s.Tree); err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			first = buf.String()
			continue
		}
		if buf.String() != first {
			t.Fatalf("iteration %d built\n%s\nwant\n%s", i, buf.String(), first)
		}
	}
}

// ---------------------------------------------------------------------------
// Timeouts and generations
// ---------------------------------------------------------------------------

func TestEvaluateTimeout(t *testing.T) {
	// An infinite loop in user code is hard to write portably for zygomys,
	// so drive waitWithTimeout directly with a channel that never sends.
	var mu sync.Mutex
	var gen uint64 = 1
	ch := make(chan evalResult)

	start := time.Now()
	_, _, err := waitWithTimeout(ch, 1, &mu, &gen, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %s", elapsed)
	}
}

func TestEngineZeroTimeoutUsesDefault(t *testing.T) {
	eng := &Engine{}
	s, evalErrs, err := eng.Evaluate("(shape (sphere 0 0 0 1))")
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("Evaluate: %v %v", err, evalErrs)
	}
	if s.Tree.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Tree.Len())
	}
}

func TestEvaluateGenerationDiscardsStale(t *testing.T) {
	var mu sync.Mutex
	current := uint64(2)

	ch := make(chan evalResult, 1)
	ch <- evalResult{scene: &scene.Scene{}}

	s, _, err := waitWithTimeout(ch, 1, &mu, &current, time.Second)
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("err = %v, want ErrSuperseded", err)
	}
	if s != nil {
		t.Error("stale scene was returned")
	}
}

func TestParseZygomysError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantLine int
		wantMsg  string
	}{
		{
			name:     "error on line format",
			msg:      "Error on line 5: unexpected token\n",
			wantLine: 5,
			wantMsg:  "unexpected token",
		},
		{
			name:     "no line info",
			msg:      "some generic error",
			wantLine: 0,
			wantMsg:  "some generic error",
		},
		{
			name:     "line format lowercase",
			msg:      "error on line 12: missing paren",
			wantLine: 12,
			wantMsg:  "missing paren",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := parseZygomysError(errString(tt.msg))
			if len(errs) == 0 {
				t.Fatal("expected at least one error")
			}
			e := errs[0]
			if e.Line != tt.wantLine {
				t.Errorf("line = %d, want %d", e.Line, tt.wantLine)
			}
			if !strings.Contains(e.Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", e.Message, tt.wantMsg)
			}
		})
	}
}

// errString is a simple error type for testing.
type errString string

func (e errString) Error() string { return string(e) }
