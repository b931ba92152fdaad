package sandbox

import (
	"context"
	"path/filepath"
	"strings"

	"olymp/internal/judge/sandbox/checker"
	"olymp/internal/judge/sandbox/engine"
	"olymp/internal/judge/sandbox/spec"
	appErr "olymp/pkg/errors"
	"olymp/pkg/utils/logger"

	"go.uber.org/zap"
)

// Helper runs the auxiliary programs of a problem directory.
type Helper interface {
	// Generate runs args in dir and stores its standard output in output.
	Generate(ctx context.Context, dir string, args []string, output string) error
	// Validate feeds input to the validator. found is false when the problem has none.
	Validate(ctx context.Context, dir, input string) (ok, found bool, err error)
}

// EngineHelper runs the generator and validator through the engine without limits.
type EngineHelper struct {
	engine    engine.Engine
	validator string
}

// NewEngineHelper creates a helper looking for the validator executable name.
func NewEngineHelper(eng engine.Engine, validator string) *EngineHelper {
	return &EngineHelper{engine: eng, validator: validator}
}

func (h *EngineHelper) Generate(ctx context.Context, dir string, args []string, output string) error {
	if len(args) == 0 {
		return appErr.ValidationError("generator", "required")
	}
	cmd := append([]string{localCommand(dir, args[0])}, args[1:]...)
	out, err := h.engine.Run(ctx, spec.RunSpec{
		TestID:     "generator",
		WorkDir:    dir,
		Cmd:        cmd,
		StdoutPath: output,
	})
	if err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "run generator failed")
	}
	if !out.Solution.Exited || out.Solution.ExitCode != 0 {
		return appErr.Newf(appErr.JudgeSystemError, "generator %v exited with code %d", cmd, out.Solution.ExitCode)
	}
	return nil
}

func (h *EngineHelper) Validate(ctx context.Context, dir, input string) (bool, bool, error) {
	exe, found := checker.Executable(dir, h.validator)
	if !found {
		return false, false, nil
	}
	out, err := h.engine.Run(ctx, spec.RunSpec{
		TestID:    "validator",
		WorkDir:   dir,
		Cmd:       []string{exe},
		StdinPath: input,
	})
	if err != nil {
		logger.Warn(ctx, "validator run failed", zap.String("input", input), zap.Error(err))
		return false, true, appErr.Wrapf(err, appErr.JudgeSystemError, "run validator failed")
	}
	return out.Solution.Exited && out.Solution.ExitCode == 0, true, nil
}

// localCommand prefers an executable of the problem directory over a PATH lookup.
func localCommand(dir, name string) string {
	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		return name
	}
	if exe, ok := checker.Executable(dir, name); ok {
		return exe
	}
	return name
}
