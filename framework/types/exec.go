package types

import "context"

// ExecResult holds the output of a finished command.
type ExecResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// CommandRunner runs a command to completion. An error is returned only when the command
// could not be run at all; a command that ran and failed is reported through ExitCode.
type CommandRunner interface {
	Exec(ctx context.Context, cmd []string, env []string) (ExecResult, error)
}

// FileWriter places a file where a command run by a CommandRunner can read it.
type FileWriter interface {
	WriteFile(ctx context.Context, path string, content []byte) error
}
