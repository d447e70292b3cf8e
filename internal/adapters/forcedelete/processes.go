package forcedelete

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/process"
)

// Process is the view of an OS process the deleter needs.
type Process interface {
	PID() int32
	Name(ctx context.Context) (string, error)
	OpenFiles(ctx context.Context) ([]string, error)
	Cwd(ctx context.Context) (string, error)
	Terminate(ctx context.Context) error
	Kill(ctx context.Context) error
	IsRunning(ctx context.Context) (bool, error)
}

// ProcessTable enumerates running processes.
type ProcessTable interface {
	Processes(ctx context.Context) ([]Process, error)
}

// SystemProcesses returns the host process table backed by gopsutil.
func SystemProcesses() ProcessTable {
	return systemTable{}
}

type systemTable struct{}

func (systemTable) Processes(ctx context.Context) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		out = append(out, systemProcess{p: p})
	}
	return out, nil
}

type systemProcess struct {
	p *process.Process
}

func (s systemProcess) PID() int32 { return s.p.Pid }

func (s systemProcess) Name(ctx context.Context) (string, error) {
	return s.p.NameWithContext(ctx)
}

func (s systemProcess) OpenFiles(ctx context.Context) ([]string, error) {
	files, err := s.p.OpenFilesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out, nil
}

func (s systemProcess) Cwd(ctx context.Context) (string, error) {
	return s.p.CwdWithContext(ctx)
}

func (s systemProcess) Terminate(ctx context.Context) error {
	return s.p.TerminateWithContext(ctx)
}

func (s systemProcess) Kill(ctx context.Context) error {
	return s.p.KillWithContext(ctx)
}

func (s systemProcess) IsRunning(ctx context.Context) (bool, error) {
	return s.p.IsRunningWithContext(ctx)
}
