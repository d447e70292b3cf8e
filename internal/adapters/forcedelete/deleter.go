// Package forcedelete removes repository working trees even while other processes hold them open.
package forcedelete

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/target/repodoc/internal/core"
	"github.com/target/repodoc/internal/observability/metrics"
	"github.com/target/repodoc/internal/observability/statsd"
	"golang.org/x/sync/errgroup"
)

// ErrStillPresent is returned when every removal strategy ran and the path still exists.
var ErrStillPresent = errors.New("path still present after forceful deletion")

const (
	defaultGracePeriod = time.Second
	scanConcurrency    = 8
	deleteMeSuffix     = ".deleteme"
)

// Options configures a Deleter.
type Options struct {
	Processes ProcessTable
	// VCSNames are matched as substrings of process names. Defaults to "git".
	VCSNames    []string
	GracePeriod time.Duration
	Logger      *slog.Logger
	Metrics     statsd.Sink
	// SelfPID is never signalled. Defaults to os.Getpid().
	SelfPID int32
}

// Report describes what one deletion did.
type Report struct {
	KilledPIDs []int32
	Fallbacks  int
	BottomUp   bool
	Duration   time.Duration
}

// Deleter implements core.TreeDeleter.
type Deleter struct {
	procs   ProcessTable
	vcs     []string
	grace   time.Duration
	logger  *slog.Logger
	metrics statsd.Sink
	self    int32
}

var _ core.TreeDeleter = (*Deleter)(nil)

// New builds a Deleter. A nil process table disables process termination.
func New(opts Options) *Deleter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var vcs []string
	for _, n := range opts.VCSNames {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			vcs = append(vcs, n)
		}
	}
	if len(vcs) == 0 {
		vcs = []string{"git"}
	}
	grace := opts.GracePeriod
	if grace < 0 {
		grace = defaultGracePeriod
	}
	self := opts.SelfPID
	if self == 0 {
		self = int32(os.Getpid()) //nolint:gosec // pids fit in int32
	}
	return &Deleter{
		procs:   opts.Processes,
		vcs:     vcs,
		grace:   grace,
		logger:  logger.With("component", "force_delete"),
		metrics: opts.Metrics,
		self:    self,
	}
}

// Delete removes path and succeeds only if it no longer exists afterwards.
func (d *Deleter) Delete(ctx context.Context, path string) error {
	_, err := d.DeleteWithReport(ctx, path)
	return err
}

// DeleteWithReport is Delete returning details about processes killed and fallbacks used.
func (d *Deleter) DeleteWithReport(ctx context.Context, path string) (Report, error) {
	start := time.Now()
	var rep Report

	root, err := filepath.Abs(path)
	if err != nil {
		return rep, fmt.Errorf("resolve %s: %w", path, err)
	}
	if !exists(root) {
		d.logger.InfoContext(ctx, "path already absent", "path", root)
		return rep, nil
	}

	rep.KilledPIDs = d.killHolders(ctx, holderRoot(root))

	// A symlinked root is removed as a link; its target's contents stay.
	gitDir := filepath.Join(root, ".git")
	if !isSymlink(root) && exists(gitDir) {
		d.removeTolerant(ctx, gitDir, &rep)
	}
	d.removeTolerant(ctx, root, &rep)

	if exists(root) {
		rep.BottomUp = true
		d.logger.WarnContext(ctx, "tolerant removal left files behind; walking bottom-up", "path", root)
		d.removeBottomUp(ctx, root, &rep)
	}

	rep.Duration = time.Since(start)
	result := metrics.ResultSuccess
	if exists(root) {
		err = fmt.Errorf("%w: %s", ErrStillPresent, root)
		result = metrics.ResultError
	}
	metrics.EmitDeletion(d.metrics, metrics.DeletionMetric{
		Result:       result,
		KilledPIDs:   len(rep.KilledPIDs),
		Fallbacks:    rep.Fallbacks,
		UsedBottomUp: rep.BottomUp,
		Duration:     rep.Duration,
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "forceful deletion failed", "path", root, "error", err)
		return rep, err
	}
	d.logger.InfoContext(ctx, "repository deleted",
		"path", root,
		"killed", len(rep.KilledPIDs),
		"fallbacks", rep.Fallbacks,
		"bottom_up", rep.BottomUp,
		"duration", rep.Duration,
	)
	return rep, nil
}

type holder struct {
	proc   Process
	reason string
}

// holderRoot is root as the kernel reports it in process cwd and open file paths.
// Symlinks in the parent chain are resolved; root itself is kept so a symlinked root
// matches only holders of the link, never of its target.
func holderRoot(root string) string {
	parent, err := filepath.EvalSymlinks(filepath.Dir(root))
	if err != nil {
		return root
	}
	return filepath.Join(parent, filepath.Base(root))
}

// killHolders terminates VCS processes and any process with files or a working directory
// under root, waits the grace period, then kills whatever survived.
func (d *Deleter) killHolders(ctx context.Context, root string) []int32 {
	if d.procs == nil {
		return nil
	}
	procs, err := d.procs.Processes(ctx)
	if err != nil {
		d.logger.WarnContext(ctx, "cannot enumerate processes", "error", err)
		return nil
	}

	var (
		mu      sync.Mutex
		holders []holder
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for _, p := range procs {
		if p.PID() == d.self {
			continue
		}
		g.Go(func() error {
			if reason := d.holdReason(gctx, p, root); reason != "" {
				mu.Lock()
				holders = append(holders, holder{proc: p, reason: reason})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(holders) == 0 {
		return nil
	}
	sort.Slice(holders, func(i, j int) bool { return holders[i].proc.PID() < holders[j].proc.PID() })

	killed := make([]int32, 0, len(holders))
	for _, h := range holders {
		if termErr := h.proc.Terminate(ctx); termErr != nil {
			d.logger.DebugContext(ctx, "terminate failed", "pid", h.proc.PID(), "error", termErr)
			continue
		}
		d.logger.InfoContext(ctx, "terminated process", "pid", h.proc.PID(), "reason", h.reason)
		killed = append(killed, h.proc.PID())
	}

	d.wait(ctx)

	for _, h := range holders {
		running, runErr := h.proc.IsRunning(ctx)
		if runErr != nil || !running {
			continue
		}
		if killErr := h.proc.Kill(ctx); killErr != nil {
			d.logger.WarnContext(ctx, "force kill failed", "pid", h.proc.PID(), "error", killErr)
			continue
		}
		d.logger.InfoContext(ctx, "force killed surviving process", "pid", h.proc.PID())
		if !containsPID(killed, h.proc.PID()) {
			killed = append(killed, h.proc.PID())
		}
	}
	return killed
}

func (d *Deleter) holdReason(ctx context.Context, p Process, root string) string {
	if name, err := p.Name(ctx); err == nil {
		lower := strings.ToLower(name)
		for _, v := range d.vcs {
			if strings.Contains(lower, v) {
				return "vcs:" + name
			}
		}
	}
	if cwd, err := p.Cwd(ctx); err == nil && within(root, cwd) {
		return "cwd"
	}
	files, err := p.OpenFiles(ctx)
	if err != nil {
		// Access denied and vanished processes are expected while scanning.
		return ""
	}
	for _, f := range files {
		if within(root, f) {
			return "open_file"
		}
	}
	return ""
}

func (d *Deleter) wait(ctx context.Context) {
	if d.grace <= 0 {
		return
	}
	t := time.NewTimer(d.grace)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// removeTolerant deletes path depth-first. Every failure goes through onRemoveError, which
// logs and moves on, so a single stubborn entry never aborts the walk.
func (d *Deleter) removeTolerant(ctx context.Context, path string, rep *Report) {
	info, err := os.Lstat(path)
	if err != nil {
		return
	}
	if info.IsDir() {
		entries, readErr := os.ReadDir(path)
		if readErr != nil {
			// Unreadable directories usually just lack the x/r bits.
			relax(path)
			entries, readErr = os.ReadDir(path)
		}
		if readErr != nil {
			d.logger.DebugContext(ctx, "cannot list directory", "path", path, "error", readErr)
		}
		for _, e := range entries {
			d.removeTolerant(ctx, filepath.Join(path, e.Name()), rep)
		}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		d.onRemoveError(ctx, path, err, rep)
	}
}

// onRemoveError escalates: chmod and retry, then a direct recursive remove, then rename aside and remove.
func (d *Deleter) onRemoveError(ctx context.Context, path string, cause error, rep *Report) {
	rep.Fallbacks++
	d.logger.DebugContext(ctx, "remove failed; retrying with relaxed permissions", "path", path, "error", cause)

	relax(filepath.Dir(path))
	relax(path)
	if err := os.Remove(path); err == nil || errors.Is(err, fs.ErrNotExist) {
		return
	}

	err := os.RemoveAll(path)
	if err == nil && !exists(path) {
		return
	}
	if err != nil {
		d.logger.WarnContext(ctx, "direct removal failed", "path", path, "error", err)
	}

	aside := path + deleteMeSuffix
	if err = os.Rename(path, aside); err != nil {
		d.logger.WarnContext(ctx, "rename fallback failed", "path", path, "error", err)
		return
	}
	if err = os.RemoveAll(aside); err != nil {
		d.logger.WarnContext(ctx, "removing renamed path failed", "path", aside, "error", err)
	}
}

// removeBottomUp removes every file, then every directory deepest first, then root.
func (d *Deleter) removeBottomUp(ctx context.Context, root string, rep *Report) {
	var files, dirs []string
	_ = filepath.WalkDir(root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			relax(p)
			return nil
		}
		if p == root {
			return nil
		}
		if entry.IsDir() {
			dirs = append(dirs, p)
		} else {
			files = append(files, p)
		}
		return nil
	})

	for _, f := range files {
		relax(f)
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			rep.Fallbacks++
			d.logger.WarnContext(ctx, "unlink failed", "path", f, "error", err)
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return depth(dirs[i]) > depth(dirs[j]) })
	for _, dir := range dirs {
		relax(dir)
		if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			rep.Fallbacks++
			d.logger.WarnContext(ctx, "rmdir failed", "path", dir, "error", err)
		}
	}
	relax(root)
	if err := os.Remove(root); err != nil && !errors.Is(err, fs.ErrNotExist) {
		d.logger.WarnContext(ctx, "removing root failed", "path", root, "error", err)
	}
}

// relax opens up permissions on path. Symlinks are left alone: chmod would follow them
// out of the tree.
func relax(path string) {
	if !isSymlink(path) {
		_ = os.Chmod(path, 0o777)
	}
}

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&fs.ModeSymlink != 0
}

// exists treats any Lstat failure other than not-exist as present.
func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

func within(root, p string) bool {
	if p == "" {
		return false
	}
	rel, err := filepath.Rel(root, filepath.Clean(p))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func depth(p string) int {
	return strings.Count(filepath.Clean(p), string(filepath.Separator))
}

func containsPID(pids []int32, pid int32) bool {
	for _, p := range pids {
		if p == pid {
			return true
		}
	}
	return false
}
