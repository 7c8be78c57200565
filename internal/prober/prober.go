// Package prober implements the HTTPProber collaborator contract (spec
// §6) behind two legs: a plain net/http leg for ordinary endpoint
// checks, and a gRPC leg that delegates to an external browser-
// rendering service. cmd/platform uses the gRPC leg for every monitor
// when a browser-service address is configured, and the net/http leg
// otherwise.
package prober

import (
	"context"
	"time"

	"github.com/duty-duck/uptimeengine/internal/domain/monitor"
)

// HTTPProber is the narrow contract the monitor executor depends on;
// it never imports net/http or grpc directly (spec §9's narrow-
// repository guidance generalized to collaborators).
type HTTPProber interface {
	Ping(ctx context.Context, endpoint string, timeout time.Duration, headers []monitor.Header) (monitor.PingResponse, error)
}

