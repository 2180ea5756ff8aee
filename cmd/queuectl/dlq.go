package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
)

func cmdDLQ(ctx context.Context, args []string) int {
	if len(args) == 0 {
		return fatalf("queuectl dlq: expected a subcommand (list|retry|delete)")
	}
	sub, rest := args[0], args[1:]

	switch sub {
	case "list":
		return cmdDLQList(ctx, rest)
	case "retry":
		return cmdDLQRetry(ctx, rest)
	case "delete":
		return cmdDLQDelete(ctx, rest)
	default:
		return fatalf("queuectl dlq: unknown subcommand %q", sub)
	}
}

func cmdDLQList(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("dlq list", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	p, err := openPlane(ctx)
	if err != nil {
		return fatalf("queuectl dlq list: %s", describeErr(err))
	}
	defer p.Close()

	jobs, err := p.ListDLQ(ctx)
	if err != nil {
		return fatalf("queuectl dlq list: %s", describeErr(err))
	}
	if len(jobs) == 0 {
		fmt.Println("Dead letter queue empty")
		return 0
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tATTEMPTS\tCOMMAND\tERROR")
	for _, j := range jobs {
		lastErr := ""
		if j.LastError != nil {
			lastErr = *j.LastError
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", j.ID, j.Attempts, j.Command, lastErr)
	}
	tw.Flush()
	return 0
}

func cmdDLQRetry(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("dlq retry", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		return fatalf("queuectl dlq retry: exactly one job id is required")
	}
	id := fs.Arg(0)

	p, err := openPlane(ctx)
	if err != nil {
		return fatalf("queuectl dlq retry: %s", describeErr(err))
	}
	defer p.Close()

	if err := p.RetryDLQJob(ctx, id); err != nil {
		return fatalf("queuectl dlq retry: %s", describeErr(err))
	}
	fmt.Printf("Requeued job %s\n", id)
	return 0
}

func cmdDLQDelete(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("dlq delete", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		return fatalf("queuectl dlq delete: exactly one job id is required")
	}
	id := fs.Arg(0)

	p, err := openPlane(ctx)
	if err != nil {
		return fatalf("queuectl dlq delete: %s", describeErr(err))
	}
	defer p.Close()

	job, err := p.GetJob(ctx, id)
	if err != nil {
		return fatalf("queuectl dlq delete: %s", describeErr(err))
	}
	if job.State != "dead" {
		return fatalf("queuectl dlq delete: job %s is not in the dead-letter queue", id)
	}
	if err := p.DeleteJob(ctx, id); err != nil {
		return fatalf("queuectl dlq delete: %s", describeErr(err))
	}
	fmt.Printf("Deleted job %s from DLQ\n", id)
	return 0
}
