package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rezkam/queuectl/internal/control"
)

func cmdWorker(ctx context.Context, args []string) int {
	if len(args) == 0 {
		return fatalf("queuectl worker: expected a subcommand (start|stop|logs|list)")
	}
	sub, rest := args[0], args[1:]

	switch sub {
	case "start":
		return cmdWorkerStart(ctx, rest)
	case "stop":
		return cmdWorkerStop(ctx, rest)
	case "logs":
		return cmdWorkerLogs(ctx, rest)
	case "list":
		return cmdWorkerList(ctx, rest)
	default:
		return fatalf("queuectl worker: unknown subcommand %q", sub)
	}
}

func cmdWorkerStart(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("worker start", flag.ContinueOnError)
	count := fs.Int("count", 1, "number of workers to start")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	p, err := openPlane(ctx)
	if err != nil {
		return fatalf("queuectl worker start: %s", describeErr(err))
	}
	defer p.Close()

	started, err := p.StartWorkers(ctx, *count)
	if err != nil {
		return fatalf("queuectl worker start: %s", describeErr(err))
	}
	for _, w := range started {
		fmt.Printf("Started worker %s (pid %d)\n", w.ID, w.PID)
	}
	return 0
}

func cmdWorkerStop(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("worker stop", flag.ContinueOnError)
	id := fs.String("id", "", "stop only this worker (default: all registered workers)")
	wait := fs.Bool("wait", false, "block until the targeted workers exit or the timeout elapses")
	timeoutSeconds := fs.Float64("timeout", 10, "wait timeout in seconds")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	p, err := openPlane(ctx)
	if err != nil {
		return fatalf("queuectl worker stop: %s", describeErr(err))
	}
	defer p.Close()

	req := control.StopWorkersRequest{
		ID:      *id,
		Wait:    *wait,
		Timeout: time.Duration(*timeoutSeconds * float64(time.Second)),
	}
	res, err := p.StopWorkers(ctx, req)
	if err != nil {
		return fatalf("queuectl worker stop: %s", describeErr(err))
	}
	if len(res.Survivors) > 0 {
		fmt.Printf("Timed out waiting for: %s\n", strings.Join(res.Survivors, ", "))
		return 0
	}
	fmt.Println("Stop signal sent")
	return 0
}

func cmdWorkerLogs(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("worker logs", flag.ContinueOnError)
	lines := fs.Int("lines", 50, "number of trailing log lines to print")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		return fatalf("queuectl worker logs: exactly one worker id is required")
	}
	id := fs.Arg(0)

	p, err := openPlane(ctx)
	if err != nil {
		return fatalf("queuectl worker logs: %s", describeErr(err))
	}
	defer p.Close()

	out, err := p.WorkerLogs(id, *lines)
	if err != nil {
		return fatalf("queuectl worker logs: %s", describeErr(err))
	}
	for _, line := range out {
		fmt.Println(line)
	}
	return 0
}

func cmdWorkerList(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("worker list", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	p, err := openPlane(ctx)
	if err != nil {
		return fatalf("queuectl worker list: %s", describeErr(err))
	}
	defer p.Close()

	workers, err := p.ListWorkers()
	if err != nil {
		return fatalf("queuectl worker list: %s", describeErr(err))
	}
	if len(workers) == 0 {
		fmt.Println("No workers registered")
		return 0
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPID\tSTARTED\tALIVE")
	for _, w := range workers {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%t\n", w.ID, w.PID, w.StartedAt, w.Alive)
	}
	tw.Flush()
	return 0
}
