package engine

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"

	"olymp/internal/judge/sandbox/spec"
	appErr "olymp/pkg/errors"
	"olymp/pkg/utils/logger"

	"go.uber.org/zap"
)

// osProcess is a started child together with its optional cgroup.
type osProcess struct {
	cmd    *exec.Cmd
	cgroup *runCgroup
	reaped atomic.Bool
}

func (p *osProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *osProcess) Wait() exitStatus {
	_ = p.cmd.Wait()
	p.reaped.Store(true)
	st := exitStatus{Code: exitCodeOf(p.cmd.ProcessState)}
	if p.cmd.ProcessState != nil {
		st.UserTime = p.cmd.ProcessState.UserTime()
	}
	if p.cgroup != nil {
		st.PeakRSS = p.cgroup.memoryPeak()
	}
	return st
}

func (p *osProcess) Kill() error {
	if p.reaped.Load() {
		return nil
	}
	if p.cgroup != nil {
		if err := p.cgroup.kill(); err == nil {
			return nil
		}
	}
	return killGroup(p.cmd.Process)
}

func (p *osProcess) release() {
	if p.cgroup != nil {
		p.cgroup.remove()
	}
}

type launcher struct {
	cfg Config
}

// launch starts the processes of a run and returns them in slot order.
// The release func must be called once every process has been reaped.
func (l *launcher) launch(ctx context.Context, rs spec.RunSpec) ([]*slot, func(), error) {
	if rs.Interactive() {
		return l.launchInteractive(ctx, rs)
	}
	return l.launchBatch(ctx, rs)
}

func (l *launcher) launchBatch(ctx context.Context, rs spec.RunSpec) ([]*slot, func(), error) {
	var files fileSet
	defer files.close()

	stdin, err := files.open(rs.WorkDir, rs.StdinPath)
	if err != nil {
		return nil, nil, err
	}
	stdout, err := files.create(rs.WorkDir, rs.StdoutPath)
	if err != nil {
		return nil, nil, err
	}
	stderr, err := files.create(rs.WorkDir, rs.StderrPath)
	if err != nil {
		return nil, nil, err
	}

	cmd := command(rs.WorkDir, rs.Cmd, rs.Env)
	if rs.InheritStdio {
		stdin, stdout, stderr = os.Stdin, os.Stdout, os.Stderr
		cmd.SysProcAttr = terminalProcAttr()
	}
	attachStdio(cmd, stdin, stdout, stderr)
	proc, err := l.start(ctx, cmd, rs, spec.RoleSolution, rs.Limits)
	if err != nil {
		return nil, nil, err
	}
	slots := []*slot{newSlot(0, spec.RoleSolution, rs.Cmd, rs.Limits, proc)}
	return slots, proc.release, nil
}

// launchInteractive cross-connects the arbiter and the solution. The arbiter
// starts first so it is ready to talk when the solution begins.
func (l *launcher) launchInteractive(ctx context.Context, rs spec.RunSpec) ([]*slot, func(), error) {
	var files fileSet
	defer files.close()

	solIn, arbOut, err := files.pipe()
	if err != nil {
		return nil, nil, err
	}
	arbIn, solOut, err := files.pipe()
	if err != nil {
		return nil, nil, err
	}
	arbStderr, err := files.create(rs.WorkDir, rs.Arbiter.StderrPath)
	if err != nil {
		return nil, nil, err
	}
	solStderr, err := files.create(rs.WorkDir, rs.StderrPath)
	if err != nil {
		return nil, nil, err
	}

	base := rs.Limits
	if rs.Arbiter.BaseLimits != nil {
		base = *rs.Arbiter.BaseLimits
	}
	arbLimits := base.ForArbiter()
	arbCmd := command(rs.WorkDir, rs.Arbiter.Cmd, rs.Arbiter.Env)
	attachStdio(arbCmd, arbIn, arbOut, arbStderr)
	arbiter, err := l.start(ctx, arbCmd, rs, spec.RoleArbiter, arbLimits)
	if err != nil {
		return nil, nil, err
	}

	solCmd := command(rs.WorkDir, rs.Cmd, rs.Env)
	attachStdio(solCmd, solIn, solOut, solStderr)
	solution, err := l.start(ctx, solCmd, rs, spec.RoleSolution, rs.Limits)
	if err != nil {
		_ = arbiter.Kill()
		arbiter.Wait()
		arbiter.release()
		return nil, nil, err
	}

	slots := []*slot{
		newSlot(0, spec.RoleArbiter, rs.Arbiter.Cmd, arbLimits, arbiter),
		newSlot(1, spec.RoleSolution, rs.Cmd, rs.Limits, solution),
	}
	release := func() {
		arbiter.release()
		solution.release()
	}
	return slots, release, nil
}

func (l *launcher) start(ctx context.Context, cmd *exec.Cmd, rs spec.RunSpec, role spec.Role, limits spec.ResourceLimit) (*osProcess, error) {
	var cg *runCgroup
	if l.cfg.EnableCgroup {
		var err error
		cg, err = createRunCgroup(l.cfg.CgroupRoot, rs.TestID, role)
		if err != nil {
			return nil, err
		}
		if err := cg.applyLimits(limits); err != nil {
			cg.remove()
			return nil, err
		}
	}

	if !l.cfg.Quiet {
		logger.Info(ctx, "starting process",
			zap.String("role", string(role)),
			zap.String("cmd", strings.Join(cmd.Args, " ")),
			zap.String("limits", limits.String()),
		)
	}
	if err := cmd.Start(); err != nil {
		if cg != nil {
			cg.remove()
		}
		return nil, appErr.Wrapf(err, appErr.ProcessStartFailed, "start %s failed", role).
			WithDetail("cmd", cmd.Args)
	}
	if cg != nil {
		if err := cg.add(cmd.Process.Pid); err != nil {
			logger.Warn(ctx, "add process to cgroup failed", zap.String("cgroup", cg.path), zap.Error(err))
		}
	}
	return &osProcess{cmd: cmd, cgroup: cg}, nil
}

func command(dir string, argv []string, env []string) *exec.Cmd {
	cmd := &exec.Cmd{
		Path:        argv[0],
		Args:        argv,
		Dir:         dir,
		SysProcAttr: sysProcAttr(),
	}
	if !strings.ContainsRune(argv[0], filepath.Separator) {
		if lp, err := exec.LookPath(argv[0]); err == nil {
			cmd.Path = lp
		}
	}
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	return cmd
}

// attachStdio leaves nil streams unset so the child gets the null device.
func attachStdio(cmd *exec.Cmd, stdin, stdout, stderr *os.File) {
	if stdin != nil {
		cmd.Stdin = stdin
	}
	if stdout != nil {
		cmd.Stdout = stdout
	}
	if stderr != nil {
		cmd.Stderr = stderr
	}
}

// fileSet tracks the parent's copies of child stdio so they are closed once
// the children hold their own.
type fileSet struct {
	files []*os.File
}

func (f *fileSet) open(dir, path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(inDir(dir, path))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ArtifactStagingFailed, "open %s failed", path)
	}
	f.files = append(f.files, file)
	return file, nil
}

func (f *fileSet) create(dir, path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Create(inDir(dir, path))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ArtifactStagingFailed, "create %s failed", path)
	}
	f.files = append(f.files, file)
	return file, nil
}

func (f *fileSet) pipe() (*os.File, *os.File, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, appErr.Wrapf(err, appErr.JudgeSystemError, "create pipe failed")
	}
	f.files = append(f.files, r, w)
	return r, w, nil
}

func (f *fileSet) close() {
	for _, file := range f.files {
		_ = file.Close()
	}
}

func inDir(dir, path string) string {
	if dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
