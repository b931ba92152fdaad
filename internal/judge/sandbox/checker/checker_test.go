package checker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"olymp/internal/judge/sandbox/engine"
	"olymp/internal/judge/sandbox/result"
	"olymp/internal/judge/sandbox/spec"
	appErr "olymp/pkg/errors"
)

type fakeEngine struct {
	outcome engine.Outcome
	err     error
	specs   []spec.RunSpec
}

func (f *fakeEngine) Run(ctx context.Context, rs spec.RunSpec) (engine.Outcome, error) {
	f.specs = append(f.specs, rs)
	return f.outcome, f.err
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0755); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestTokensEqual(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a", "1 2\n3\r\n")
	writeFile(t, dir, "b", "  1\t2 3")
	writeFile(t, dir, "c", "1 2 4")
	writeFile(t, dir, "d", "1 2 3 4")
	cases := []struct {
		a, b string
		want bool
	}{
		{"a", "b", true},
		{"a", "c", false},
		{"a", "d", false},
		{"a", "missing", false},
		{"missing", "a", false},
	}
	for _, tc := range cases {
		if got := TokensEqual(filepath.Join(dir, tc.a), filepath.Join(dir, tc.b)); got != tc.want {
			t.Fatalf("%s vs %s: expected %v, got %v", tc.a, tc.b, tc.want, got)
		}
	}
}

func TestBuiltinComparison(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "output.txt", "42\n")
	writeFile(t, dir, "answer.txt", "42")
	eng := &fakeEngine{}
	c := NewInvoker(eng, "check")
	req := Request{WorkDir: dir, Input: "input.txt", Output: "output.txt", Answer: "answer.txt"}

	rep, err := c.Check(context.Background(), req)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !rep.Builtin || rep.Code != 0 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if len(eng.specs) != 0 {
		t.Fatal("builtin comparison must not launch processes")
	}

	writeFile(t, dir, "answer.txt", "43")
	if rep, _ := c.Check(context.Background(), req); rep.Code != 1 {
		t.Fatalf("expected code 1, got %+v", rep)
	}
}

func TestExternalChecker(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "check", "#!/bin/sh\nexit 2\n")
	eng := &fakeEngine{outcome: engine.Outcome{Solution: result.RunResult{Verdict: result.VerdictRE, ExitCode: 2, Exited: true}}}
	c := NewInvoker(eng, "check")

	rep, err := c.Check(context.Background(), Request{WorkDir: dir, Input: "input.txt", Output: "output.txt", Answer: "answer.txt"})
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if rep.Builtin || rep.Code != 2 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if len(eng.specs) != 1 {
		t.Fatalf("expected one run, got %d", len(eng.specs))
	}
	got := eng.specs[0]
	want := []string{"." + string(filepath.Separator) + "check", "input.txt", "output.txt", "answer.txt"}
	if len(got.Cmd) != len(want) {
		t.Fatalf("unexpected command %v", got.Cmd)
	}
	for i := range want {
		if got.Cmd[i] != want[i] {
			t.Fatalf("unexpected command %v", got.Cmd)
		}
	}
	if got.Limits.HasTime() || got.Limits.HasMemory() {
		t.Fatal("checker must run without limits")
	}

	eng.err = appErr.New(appErr.ProcessStartFailed)
	if _, err := c.Check(context.Background(), Request{WorkDir: dir}); !appErr.Is(err, appErr.CheckerFailed) {
		t.Fatalf("expected checker failure, got %v", err)
	}
}
