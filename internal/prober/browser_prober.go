package prober

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/duty-duck/uptimeengine/internal/domain/monitor"
)

const (
	browserServiceMethod  = "/browserservice.BrowserService/Render"
	browserRetryAttempts  = 3
	browserRetryBackoff   = time.Second
)

type browserRenderRequest struct {
	Endpoint       string            `json:"endpoint"`
	TimeoutMs      int64             `json:"timeout_ms"`
	RequestHeaders map[string]string `json:"request_headers"`
}

type browserRenderResponse struct {
	HTTPCode     *int     `json:"http_code,omitempty"`
	ResponseIP   *string  `json:"response_ip,omitempty"`
	ResolvedIPs  []string `json:"resolved_ips,omitempty"`
	ResponseTime int64    `json:"response_time_ms"`
	Screenshot   []byte   `json:"screenshot,omitempty"`
	Body         []byte   `json:"body,omitempty"`
}

// BrowserServiceProber dials the external browser-rendering service
// over gRPC (spec §6's HTTPProber, screenshot-capable leg), making at
// most browserRetryAttempts attempts in total with a fixed backoff
// between them.
type BrowserServiceProber struct {
	conn *grpc.ClientConn
}

func DialBrowserService(ctx context.Context, address string) (*BrowserServiceProber, error) {
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &BrowserServiceProber{conn: conn}, nil
}

func (p *BrowserServiceProber) Close() error {
	return p.conn.Close()
}

func (p *BrowserServiceProber) Ping(ctx context.Context, endpoint string, timeout time.Duration, headers []monitor.Header) (monitor.PingResponse, error) {
	req := browserRenderRequest{
		Endpoint:       endpoint,
		TimeoutMs:      timeout.Milliseconds(),
		RequestHeaders: headerMap(headers),
	}

	var resp browserRenderResponse
	var lastErr error

	for attempt := 0; attempt < browserRetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(browserRetryBackoff):
			case <-ctx.Done():
				return monitor.PingResponse{}, ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		lastErr = p.conn.Invoke(callCtx, browserServiceMethod, &req, &resp, grpc.CallContentSubtype("json"))
		cancel()

		if lastErr == nil {
			break
		}
	}

	if lastErr != nil {
		return monitor.PingResponse{
			ErrorKind: monitor.ErrorKindBrowserServiceCallFailed,
		}, nil
	}

	return monitor.PingResponse{
		HTTPCode:     resp.HTTPCode,
		ErrorKind:    monitor.ErrorKindNone,
		ResponseTime: time.Duration(resp.ResponseTime) * time.Millisecond,
		ResolvedIPs:  resp.ResolvedIPs,
		ResponseIP:   resp.ResponseIP,
		BodySize:     int64(len(resp.Body)),
		Body:         resp.Body,
		Screenshot:   resp.Screenshot,
	}, nil
}

func headerMap(headers []monitor.Header) map[string]string {
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[h.Name] = h.Value
	}
	return m
}
