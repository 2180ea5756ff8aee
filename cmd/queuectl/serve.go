package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rezkam/queuectl/internal/envconfig"
	"github.com/rezkam/queuectl/internal/httpapi"
	"github.com/rezkam/queuectl/internal/observability"
)

// shutdownTimeout bounds how long a graceful HTTP shutdown waits for
// in-flight requests to finish before cmdServe gives up.
const shutdownTimeout = 10 * time.Second

// cmdServe starts the optional HTTP control-plane adapter, serving
// until it receives SIGINT/SIGTERM.
func cmdServe(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", "", "address to listen on (default QUEUECTL_HTTP_ADDR or "+httpapi.DefaultAddr+")")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	var httpCfg httpapi.Config
	if err := envconfig.Load(&httpCfg); err != nil {
		return fatalf("queuectl serve: load http config: %v", err)
	}
	if *addr != "" {
		httpCfg.Addr = *addr
	}
	if httpCfg.Addr == "" {
		httpCfg.Addr = httpapi.DefaultAddr
	}

	var obsCfg observability.Config
	obsCfg.ServiceName = "queuectl-http"
	if err := envconfig.Load(&obsCfg); err != nil {
		return fatalf("queuectl serve: load observability config: %v", err)
	}
	providers, err := observability.Init(ctx, obsCfg)
	if err != nil {
		return fatalf("queuectl serve: init observability: %v", err)
	}
	defer providers.Shutdown(ctx) //nolint:errcheck

	plane, err := openPlane(ctx)
	if err != nil {
		return fatalf("queuectl serve: %v", err)
	}
	defer plane.Close()

	server := httpapi.NewServer(plane, httpCfg.Addr)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	fmt.Fprintf(os.Stderr, "queuectl serve: listening on %s\n", httpCfg.Addr)

	select {
	case err := <-errCh:
		if err != nil {
			return fatalf("queuectl serve: %v", err)
		}
		return 0
	case <-sigCtx.Done():
		fmt.Fprintln(os.Stderr, "queuectl serve: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fatalf("queuectl serve: shutdown: %v", err)
		}
		return 0
	}
}
