//go:build linux

package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"olymp/internal/judge/sandbox/spec"
	appErr "olymp/pkg/errors"
)

// runCgroup is a per-process cgroup v2 directory.
type runCgroup struct {
	path string
}

func createRunCgroup(root, testID string, role spec.Role) (*runCgroup, error) {
	if root == "" {
		return nil, appErr.ValidationError("cgroupRoot", "required")
	}
	if testID == "" {
		testID = "run"
	}
	runDir := fmt.Sprintf("%s-%s-%d", testID, role, time.Now().UnixNano())
	path := filepath.Join(root, runDir)
	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, appErr.Wrapf(err, appErr.JudgeSystemError, "create cgroup path failed")
	}
	return &runCgroup{path: path}, nil
}

// applyLimits only caps the process count. Time and memory stay with the
// monitor so that violations surface as T and M rather than kernel kills.
func (c *runCgroup) applyLimits(limits spec.ResourceLimit) error {
	pidsValue := "max"
	if limits.PIDs > 0 {
		pidsValue = strconv.FormatInt(limits.PIDs, 10)
	}
	if err := c.write("pids.max", pidsValue); err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "write pids.max failed")
	}
	return nil
}

func (c *runCgroup) add(pid int) error {
	if pid <= 0 {
		return appErr.ValidationError("pid", "invalid")
	}
	if err := c.write("cgroup.procs", strconv.Itoa(pid)); err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "write cgroup.procs failed")
	}
	return nil
}

func (c *runCgroup) kill() error {
	killPath := filepath.Join(c.path, "cgroup.kill")
	if _, err := os.Stat(killPath); err != nil {
		return err
	}
	return os.WriteFile(killPath, []byte("1"), 0600)
}

// memoryPeak returns memory.peak in bytes, zero when unavailable.
func (c *runCgroup) memoryPeak() uint64 {
	val, err := c.readInt("memory.peak")
	if err != nil || val <= 0 {
		return 0
	}
	return uint64(val)
}

func (c *runCgroup) remove() {
	_ = os.Remove(c.path)
}

func (c *runCgroup) readInt(name string) (int64, error) {
	data, err := os.ReadFile(filepath.Join(c.path, name))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}

func (c *runCgroup) write(name, value string) error {
	return os.WriteFile(filepath.Join(c.path, name), []byte(value), 0640)
}
