package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rezkam/queuectl/internal/control"
	"github.com/rezkam/queuectl/internal/ptr"
)

func cmdEnqueue(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	id := fs.String("id", "", "job id (generated if omitted)")
	command := fs.String("command", "", "shell command to execute (required)")
	maxRetries := fs.Int("max-retries", -1, "override the configured default max retries")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *command == "" {
		return fatalf("queuectl enqueue: -command is required")
	}

	req := control.EnqueueRequest{ID: *id, Command: *command}
	if *maxRetries >= 0 {
		req.MaxRetries = ptr.To(*maxRetries)
	}

	p, err := openPlane(ctx)
	if err != nil {
		return fatalf("queuectl enqueue: %s", describeErr(err))
	}
	defer p.Close()

	job, err := p.Enqueue(ctx, req)
	if err != nil {
		return fatalf("queuectl enqueue: %s", describeErr(err))
	}
	fmt.Printf("Enqueued job %s\n", job.ID)
	return 0
}

func cmdStatus(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	p, err := openPlane(ctx)
	if err != nil {
		return fatalf("queuectl status: %s", describeErr(err))
	}
	defer p.Close()

	counts, err := p.CountByState(ctx)
	if err != nil {
		return fatalf("queuectl status: %s", describeErr(err))
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATE\tCOUNT")
	for _, state := range []string{"pending", "processing", "completed", "failed", "dead"} {
		if n := counts[state]; n > 0 {
			fmt.Fprintf(tw, "%s\t%d\n", state, n)
		}
	}
	tw.Flush()

	workers, err := p.ListWorkers()
	if err != nil {
		return fatalf("queuectl status: %s", describeErr(err))
	}
	if len(workers) == 0 {
		fmt.Println("\nNo active workers registered")
		return 0
	}

	fmt.Println()
	wtw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(wtw, "WORKER ID\tPID\tSTARTED\tALIVE")
	for _, w := range workers {
		fmt.Fprintf(wtw, "%s\t%d\t%s\t%t\n", w.ID, w.PID, w.StartedAt, w.Alive)
	}
	wtw.Flush()
	return 0
}

func cmdList(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	state := fs.String("state", "", "filter by job state")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	p, err := openPlane(ctx)
	if err != nil {
		return fatalf("queuectl list: %s", describeErr(err))
	}
	defer p.Close()

	jobs, err := p.ListJobs(ctx, *state)
	if err != nil {
		return fatalf("queuectl list: %s", describeErr(err))
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return 0
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tATTEMPTS\tMAX RETRIES\tCOMMAND")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", j.ID, j.State, j.Attempts, j.MaxRetries, j.Command)
	}
	tw.Flush()
	return 0
}

func cmdDelete(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		return fatalf("queuectl delete: exactly one job id is required")
	}
	id := fs.Arg(0)

	p, err := openPlane(ctx)
	if err != nil {
		return fatalf("queuectl delete: %s", describeErr(err))
	}
	defer p.Close()

	if err := p.DeleteJob(ctx, id); err != nil {
		return fatalf("queuectl delete: %s", describeErr(err))
	}
	fmt.Printf("Deleted job %s\n", id)
	return 0
}
