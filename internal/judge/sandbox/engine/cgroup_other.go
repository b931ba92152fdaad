//go:build !linux

package engine

import (
	"olymp/internal/judge/sandbox/spec"
	appErr "olymp/pkg/errors"
)

type runCgroup struct{}

func createRunCgroup(root, testID string, role spec.Role) (*runCgroup, error) {
	return nil, appErr.Newf(appErr.ConfigInvalid, "cgroup placement is only supported on linux")
}

func (c *runCgroup) applyLimits(limits spec.ResourceLimit) error { return nil }
func (c *runCgroup) add(pid int) error                           { return nil }
func (c *runCgroup) kill() error                                 { return nil }
func (c *runCgroup) memoryPeak() uint64                          { return 0 }
func (c *runCgroup) remove()                                     {}
