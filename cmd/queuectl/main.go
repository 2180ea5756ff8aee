// Command queuectl is the command-line adapter: a single binary exposing the
// control-plane surface (internal/control) as a flag-parsed subcommand
// tree, plus a hidden worker re-exec entrypoint that internal/registry
// spawns.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 1
	}

	ctx := context.Background()
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "enqueue":
		return cmdEnqueue(ctx, rest)
	case "status":
		return cmdStatus(ctx, rest)
	case "list":
		return cmdList(ctx, rest)
	case "delete":
		return cmdDelete(ctx, rest)
	case "dlq":
		return cmdDLQ(ctx, rest)
	case "config":
		return cmdConfig(ctx, rest)
	case "worker":
		return cmdWorker(ctx, rest)
	case "serve":
		return cmdServe(ctx, rest)
	case "runworker":
		return cmdRunWorker(ctx, rest)
	case "help", "-h", "--help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "queuectl: unknown command %q\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: queuectl <command> [flags]

commands:
  enqueue    add a new job to the queue
  status     show job-state counts and registered workers
  list       list jobs, optionally filtered by state
  delete     delete a job by id
  dlq        dead-letter queue operations (list|retry|delete)
  config     manage queue configuration (get|set|list)
  worker     manage worker processes (start|stop|logs|list)
  serve      start the optional HTTP control-plane adapter

set QUEUECTL_HOME to choose the data root (default ~/.queuectl).`)
}

func fatalf(format string, args ...any) int {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	return 1
}
