package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rezkam/queuectl/internal/qerr"
)

func cmdConfig(ctx context.Context, args []string) int {
	if len(args) == 0 {
		return fatalf("queuectl config: expected a subcommand (get|set|list)")
	}
	sub, rest := args[0], args[1:]

	switch sub {
	case "get":
		return cmdConfigGet(ctx, rest)
	case "set":
		return cmdConfigSet(ctx, rest)
	case "list":
		return cmdConfigList(ctx, rest)
	default:
		return fatalf("queuectl config: unknown subcommand %q", sub)
	}
}

func cmdConfigGet(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("config get", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		return fatalf("queuectl config get: exactly one key is required")
	}
	key := fs.Arg(0)

	p, err := openPlane(ctx)
	if err != nil {
		return fatalf("queuectl config get: %s", describeErr(err))
	}
	defer p.Close()

	value, err := p.GetConfig(ctx, key)
	if err != nil {
		if errors.Is(err, qerr.ErrNotFound) {
			fmt.Printf("No config value for %s\n", key)
			return 0
		}
		return fatalf("queuectl config get: %s", describeErr(err))
	}
	fmt.Printf("%s = %s\n", key, value)
	return 0
}

func cmdConfigSet(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("config set", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 2 {
		return fatalf("queuectl config set: exactly one key and one value are required")
	}
	key, value := fs.Arg(0), fs.Arg(1)

	p, err := openPlane(ctx)
	if err != nil {
		return fatalf("queuectl config set: %s", describeErr(err))
	}
	defer p.Close()

	if err := p.SetConfig(ctx, key, value); err != nil {
		return fatalf("queuectl config set: %s", describeErr(err))
	}
	fmt.Printf("Updated %s -> %s\n", key, value)
	return 0
}

func cmdConfigList(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("config list", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	p, err := openPlane(ctx)
	if err != nil {
		return fatalf("queuectl config list: %s", describeErr(err))
	}
	defer p.Close()

	entries, err := p.ListConfig(ctx)
	if err != nil {
		return fatalf("queuectl config list: %s", describeErr(err))
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tVALUE\tUPDATED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Key, e.Value, e.UpdatedAt)
	}
	tw.Flush()
	return 0
}
