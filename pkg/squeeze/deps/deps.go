// Package deps checks that the external optimizers are installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/jamesainslie/squeeze/pkg/squeeze/config"
	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

// Tool is an external command a media class depends on.
type Tool struct {
	Class   types.MediaClass
	Command string
	Hint    string
}

// Status is the result of looking up a tool.
type Status struct {
	Tool  Tool
	Path  string
	Found bool
}

// MissingError lists every tool that could not be found.
type MissingError struct {
	Missing []Tool
}

func (e *MissingError) Error() string {
	names := make([]string, len(e.Missing))
	for i, t := range e.Missing {
		names[i] = fmt.Sprintf("%s (%s)", t.Command, t.Class)
	}
	return "missing required tools: " + strings.Join(names, ", ")
}

var hints = map[types.MediaClass]string{
	types.Image:    "gem install image_optim image_optim_pack",
	types.Video:    "install ffmpeg from your package manager",
	types.Document: "install ghostscript from your package manager",
}

// ToolsFor returns the tools needed by classes under cfg.
func ToolsFor(classes []types.MediaClass, cfg *config.Config) []Tool {
	tools := make([]Tool, 0, len(classes))
	for _, class := range classes {
		command := cfg.Class(class).Command
		if command == "" {
			command = defaultCommand(class)
		}
		tools = append(tools, Tool{Class: class, Command: command, Hint: hints[class]})
	}
	return tools
}

func defaultCommand(class types.MediaClass) string {
	switch class {
	case types.Image:
		return "image_optim"
	case types.Video:
		return "ffmpeg"
	default:
		return "gs"
	}
}

// Check looks up every tool on PATH.
func Check(tools []Tool) []Status {
	out := make([]Status, len(tools))
	for i, t := range tools {
		path, err := exec.LookPath(t.Command)
		out[i] = Status{Tool: t, Path: path, Found: err == nil}
	}
	return out
}

// Require returns a *MissingError if any tool is missing.
func Require(tools []Tool) error {
	var missing []Tool
	for _, s := range Check(tools) {
		if !s.Found {
			missing = append(missing, s.Tool)
		}
	}
	if len(missing) > 0 {
		return &MissingError{Missing: missing}
	}
	return nil
}
