package main

import (
	"context"

	"github.com/rezkam/queuectl/internal/control"
	"github.com/rezkam/queuectl/internal/layout"
	"github.com/rezkam/queuectl/internal/qerr"
)

// openPlane resolves QUEUECTL_HOME and opens a control.Plane over it. The
// caller must defer p.Close() on success.
func openPlane(ctx context.Context) (*control.Plane, error) {
	paths, err := layout.Resolve()
	if err != nil {
		return nil, err
	}
	return control.New(ctx, paths)
}

// describeErr renders err the way a user should see it: a stable kind
// label plus the one-line message, following qerr.Error's taxonomy.
func describeErr(err error) string {
	if qe, ok := err.(*qerr.Error); ok {
		return qe.Error()
	}
	return err.Error()
}
