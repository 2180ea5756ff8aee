package workerproc

import (
	"context"
	"os/exec"
	"runtime"
)

// shellCommand invokes the platform shell on command, preserving the
// "command is a shell line" contract: jobs submitted with shell operators
// (pipes, redirects, &&) keep working rather than being parsed and exec'd
// directly.
func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/c", command)
	}
	return exec.CommandContext(ctx, "/bin/sh", "-c", command)
}
