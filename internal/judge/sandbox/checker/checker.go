// Package checker runs the external checker or falls back to a token-wise comparison.
package checker

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"

	"olymp/internal/judge/sandbox/engine"
	"olymp/internal/judge/sandbox/spec"
	appErr "olymp/pkg/errors"
	"olymp/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	codeAccepted = 0
	codeWrong    = 1
)

// Checker judges a captured output against a reference answer and
// returns a checker exit code.
type Checker interface {
	Check(ctx context.Context, req Request) (Report, error)
}

// Request names the staged files. Relative paths are taken from WorkDir.
type Request struct {
	WorkDir string
	Input   string
	Output  string
	Answer  string
}

// Report is the checker's opinion.
type Report struct {
	Code int
	// Builtin is set when no checker executable was found.
	Builtin bool
}

// Invoker runs the checker executable through the engine.
type Invoker struct {
	engine engine.Engine
	name   string
}

// NewInvoker creates a checker that looks for the executable name in the work dir.
func NewInvoker(eng engine.Engine, name string) *Invoker {
	return &Invoker{engine: eng, name: name}
}

func (c *Invoker) Check(ctx context.Context, req Request) (Report, error) {
	exe, ok := Executable(req.WorkDir, c.name)
	if !ok {
		equal := TokensEqual(inDir(req.WorkDir, req.Output), inDir(req.WorkDir, req.Answer))
		code := codeWrong
		if equal {
			code = codeAccepted
		}
		return Report{Code: code, Builtin: true}, nil
	}

	out, err := c.engine.Run(ctx, spec.RunSpec{
		TestID:  "checker",
		WorkDir: req.WorkDir,
		Cmd:     []string{exe, req.Input, req.Output, req.Answer},
	})
	if err != nil {
		logger.Warn(ctx, "checker run failed", zap.String("checker", exe), zap.Error(err))
		return Report{}, appErr.Wrapf(err, appErr.CheckerFailed, "run checker failed")
	}
	return Report{Code: out.Solution.ExitCode}, nil
}

// Executable returns the command for name in dir if a regular file exists there.
// On Windows the .exe suffix is accepted too.
func Executable(dir, name string) (string, bool) {
	candidates := []string{name}
	if runtime.GOOS == "windows" {
		candidates = append(candidates, name+".exe")
	}
	for _, cand := range candidates {
		info, err := os.Stat(inDir(dir, cand))
		if err == nil && info.Mode().IsRegular() {
			return "." + string(filepath.Separator) + cand, true
		}
	}
	return "", false
}

// TokensEqual compares two files as whitespace-separated token sequences.
// An unreadable file never matches.
func TokensEqual(a, b string) bool {
	ad, err := os.ReadFile(a)
	if err != nil {
		return false
	}
	bd, err := os.ReadFile(b)
	if err != nil {
		return false
	}
	at, bt := bytes.Fields(ad), bytes.Fields(bd)
	if len(at) != len(bt) {
		return false
	}
	for i := range at {
		if !bytes.Equal(at[i], bt[i]) {
			return false
		}
	}
	return true
}

func inDir(dir, path string) string {
	if dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
