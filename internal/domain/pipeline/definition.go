// Package pipeline describes the external programs that implement the documentation stages.
package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/target/repodoc/internal/domain/model"
)

// TargetPlaceholder is replaced with the stage's target path in command arguments.
const TargetPlaceholder = "{target}"

// ErrMissingCommand indicates a critical external stage has no command configured.
var ErrMissingCommand = errors.New("pipeline: missing command for critical stage")

// externalStages can be bound to commands. ARCHIVE_SEND and DELETE are internal.
var externalStages = []model.Stage{
	model.StageClone,
	model.StageClassify,
	model.StageDocProject,
	model.StageDocUAT,
	model.StageDocAPI,
}

// requiredStages must have a command; CLONE falls back to the built-in git clone.
var requiredStages = []model.Stage{
	model.StageClassify,
	model.StageDocProject,
	model.StageDocUAT,
}

// StageCommand is one external program invocation.
type StageCommand struct {
	Command []string          `yaml:"command"`
	Dir     string            `yaml:"dir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
	Timeout time.Duration     `yaml:"timeout,omitempty"`
}

// Argv expands the placeholder in every argument and appends extra args.
// When no argument references the placeholder the target is appended after the command.
func (c StageCommand) Argv(target string, extra []string) []string {
	out := make([]string, 0, len(c.Command)+len(extra)+1)
	substituted := false
	for _, arg := range c.Command {
		if strings.Contains(arg, TargetPlaceholder) {
			substituted = true
			arg = strings.ReplaceAll(arg, TargetPlaceholder, target)
		}
		out = append(out, arg)
	}
	if !substituted && target != "" {
		out = append(out, target)
	}
	return append(out, extra...)
}

// Definition binds external stages to commands.
type Definition struct {
	Stages map[string]StageCommand `yaml:"stages"`

	resolved map[model.Stage]StageCommand
}

// Normalized validates stage names and commands and returns a resolved copy.
func (d Definition) Normalized() (Definition, error) {
	resolved := make(map[model.Stage]StageCommand, len(d.Stages))
	for name, cmd := range d.Stages {
		stage, err := model.ParseStage(name)
		if err != nil {
			return Definition{}, fmt.Errorf("pipeline: %w", err)
		}
		if !slices.Contains(externalStages, stage) {
			return Definition{}, fmt.Errorf("pipeline: stage %s is built in and cannot be bound to a command", stage)
		}
		if _, dup := resolved[stage]; dup {
			return Definition{}, fmt.Errorf("pipeline: stage %s defined more than once", stage)
		}
		cmd.Command = trimArgs(cmd.Command)
		if len(cmd.Command) == 0 {
			return Definition{}, fmt.Errorf("pipeline: stage %s has an empty command", stage)
		}
		if cmd.Timeout < 0 {
			return Definition{}, fmt.Errorf("pipeline: stage %s has a negative timeout", stage)
		}
		cmd.Dir = strings.TrimSpace(cmd.Dir)
		resolved[stage] = cmd
	}
	d.resolved = resolved
	return d, nil
}

// Command returns the command bound to stage s.
func (d Definition) Command(s model.Stage) (StageCommand, bool) {
	cmd, ok := d.resolved[s]
	return cmd, ok
}

// Validate reports every critical external stage without a command.
func (d Definition) Validate() error {
	var missing []string
	for _, s := range requiredStages {
		if _, ok := d.resolved[s]; !ok {
			missing = append(missing, string(s))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCommand, strings.Join(missing, ", "))
	}
	return nil
}

func trimArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i, a := range args {
		// Only the program name is trimmed; arguments may legitimately carry spaces.
		if i == 0 {
			a = strings.TrimSpace(a)
			if a == "" {
				return nil
			}
		}
		out = append(out, a)
	}
	return out
}
