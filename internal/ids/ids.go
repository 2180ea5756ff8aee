// Package ids generates the opaque job and worker identifiers used across
// the store, the registry, and every adapter.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

// NewJobID returns a short opaque token such as "job-3f9a2c1e0b7d".
func NewJobID() string {
	return "job-" + token()
}

// NewWorkerID returns a short opaque token such as "worker-3f9a2c1e0b7d".
func NewWorkerID() string {
	return "worker-" + token()
}

func token() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return raw[:12]
}
