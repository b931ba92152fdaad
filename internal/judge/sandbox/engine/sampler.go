package engine

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"time"

	psprocess "github.com/shirou/gopsutil/v3/process"
)

var (
	// errProcessGone means the process vanished between listing and sampling.
	errProcessGone = errors.New("process is gone")
	// errAccessDenied means the statistics exist but may not be read.
	errAccessDenied = errors.New("access denied")
)

// Sample is one observation of a live process.
type Sample struct {
	UserTime time.Duration
	RSSBytes uint64
}

// Sampler reads resource usage of a running process.
type Sampler interface {
	Sample(ctx context.Context, pid int) (Sample, error)
	Forget(pid int)
}

type processSampler struct {
	mu    sync.Mutex
	procs map[int]*psprocess.Process
}

// NewProcessSampler samples processes through gopsutil.
func NewProcessSampler() Sampler {
	return &processSampler{procs: make(map[int]*psprocess.Process)}
}

func (s *processSampler) Sample(ctx context.Context, pid int) (Sample, error) {
	p, err := s.lookup(ctx, pid)
	if err != nil {
		return Sample{}, err
	}
	times, err := p.TimesWithContext(ctx)
	if err != nil {
		return Sample{}, classifySampleErr(err)
	}
	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return Sample{}, classifySampleErr(err)
	}
	return Sample{
		UserTime: time.Duration(times.User * float64(time.Second)),
		RSSBytes: mem.RSS,
	}, nil
}

func (s *processSampler) Forget(pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.procs, pid)
}

func (s *processSampler) lookup(ctx context.Context, pid int) (*psprocess.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.procs[pid]; ok {
		return p, nil
	}
	p, err := psprocess.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, classifySampleErr(err)
	}
	s.procs[pid] = p
	return p, nil
}

func classifySampleErr(err error) error {
	switch {
	case errors.Is(err, psprocess.ErrorProcessNotRunning), errors.Is(err, fs.ErrNotExist):
		return errProcessGone
	case errors.Is(err, fs.ErrPermission):
		return errAccessDenied
	}
	return err
}
