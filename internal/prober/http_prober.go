package prober

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/duty-duck/uptimeengine/internal/domain/monitor"
)

const maxBodyBytes = 2 << 20 // 2MiB, mirrors a conservative body cap for stored probe bodies

// HTTPClientProber pings endpoints over plain HTTP(S), grounded in the
// teacher's internal/queue/worker backoff/timeout style applied to one
// outbound call instead of a retry loop (spec §4.2's probing leg).
type HTTPClientProber struct {
	client *http.Client
}

func NewHTTPClientProber() *HTTPClientProber {
	return &HTTPClientProber{
		client: &http.Client{
			// Timeout is set per-request via context; CheckRedirect left at
			// the default (follow, capped at 10 redirects) since spec §6
			// doesn't call out redirect handling.
		},
	}
}

func (p *HTTPClientProber) Ping(ctx context.Context, endpoint string, timeout time.Duration, headers []monitor.Header) (monitor.PingResponse, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var resolvedIPs []string
	var connRemoteAddr string
	trace := &httptrace.ClientTrace{
		DNSDone: func(info httptrace.DNSDoneInfo) {
			for _, addr := range info.Addrs {
				resolvedIPs = append(resolvedIPs, addr.IP.String())
			}
		},
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Conn != nil {
				connRemoteAddr = info.Conn.RemoteAddr().String()
			}
		},
	}
	reqCtx = httptrace.WithClientTrace(reqCtx, trace)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return monitor.PingResponse{ErrorKind: monitor.ErrorKindConnectFailed}, nil
	}
	for _, h := range headers {
		req.Header.Add(h.Name, h.Value)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return monitor.PingResponse{
			ErrorKind:    classifyTransportError(err),
			ResponseTime: time.Since(start),
			ResolvedIPs:  resolvedIPs,
		}, nil
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	elapsed := time.Since(start)
	code := resp.StatusCode

	respHeaders := make([]monitor.Header, 0, len(resp.Header))
	for name, values := range resp.Header {
		for _, v := range values {
			respHeaders = append(respHeaders, monitor.Header{Name: name, Value: v})
		}
	}

	var responseIP *string
	if connRemoteAddr != "" {
		host := connRemoteAddr
		if h, _, err := net.SplitHostPort(connRemoteAddr); err == nil {
			host = h
		}
		responseIP = &host
	}

	if readErr != nil {
		return monitor.PingResponse{
			HTTPCode:     &code,
			ErrorKind:    monitor.ErrorKindBodyReadError,
			Headers:      respHeaders,
			ResponseTime: elapsed,
			ResponseIP:   responseIP,
			ResolvedIPs:  resolvedIPs,
		}, nil
	}

	return monitor.PingResponse{
		HTTPCode:     &code,
		ErrorKind:    monitor.ErrorKindNone,
		Headers:      respHeaders,
		ResponseTime: elapsed,
		ResponseIP:   responseIP,
		ResolvedIPs:  resolvedIPs,
		BodySize:     int64(len(body)),
		Body:         body,
	}, nil
}

func classifyTransportError(err error) monitor.ErrorKind {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return monitor.ErrorKindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return monitor.ErrorKindDNSError
	}

	var tlsErr *tls.CertificateVerificationError
	if errors.As(err, &tlsErr) {
		return monitor.ErrorKindTLSError
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return monitor.ErrorKindConnectFailed
	}

	return monitor.ErrorKindConnectFailed
}
