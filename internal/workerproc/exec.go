package workerproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"
)

// subprocessTimeout is the hard timeout for a single job's command.
const subprocessTimeout = time.Hour

// outcome is the classified result of running one job's command.
type outcome struct {
	exitCode int
	errMsg   string // empty on success
	stdout   string
}

// runCommand executes command through the platform shell with a one-hour
// hard timeout, classifying the result per the execution outcome state
// machine: success, non-zero exit, timeout, not-found, permission-denied,
// or any other spawn error.
func runCommand(ctx context.Context, command string) outcome {
	runCtx, cancel := context.WithTimeout(ctx, subprocessTimeout)
	defer cancel()

	cmd := shellCommand(runCtx, command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return outcome{exitCode: 0, stdout: stdout.String()}
	}

	if runCtx.Err() == context.DeadlineExceeded {
		return outcome{exitCode: -1, errMsg: "Command execution timed out after 1 hour"}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg == "" {
			msg = fmt.Sprintf("Command failed with exit code %d (no error output)", code)
		}
		return outcome{exitCode: code, errMsg: msg, stdout: stdout.String()}
	}

	if errors.Is(err, exec.ErrNotFound) {
		return outcome{exitCode: 127, errMsg: fmt.Sprintf("Command not found: '%s'. The command or executable does not exist.", command)}
	}

	if isPermissionError(err) {
		return outcome{exitCode: 126, errMsg: fmt.Sprintf("Permission denied executing command: '%s'", command)}
	}

	return outcome{exitCode: -1, errMsg: fmt.Sprintf("Error executing command: %s", err.Error())}
}

func isPermissionError(err error) bool {
	return errors.Is(err, fs.ErrPermission)
}
