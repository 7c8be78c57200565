package monitor

import "time"

// ErrorKind ranges over the failure classes a probe can report, per
// spec §4.2.
type ErrorKind string

const (
	ErrorKindNone                    ErrorKind = ""
	ErrorKindTimeout                 ErrorKind = "timeout"
	ErrorKindConnectFailed           ErrorKind = "connect_failed"
	ErrorKindTLSError                ErrorKind = "tls_error"
	ErrorKindDNSError                ErrorKind = "dns_error"
	ErrorKindBodyReadError           ErrorKind = "body_read_error"
	ErrorKindHTTPCodeError           ErrorKind = "http_code_error"
	ErrorKindBrowserServiceCallFailed ErrorKind = "browser_service_call_failed"
)

// PingResponse is the narrow contract returned by the HTTPProber
// collaborator (spec §6).
type PingResponse struct {
	HTTPCode     *int
	ErrorKind    ErrorKind
	Headers      []Header
	ResponseTime time.Duration
	ResolvedIPs  []string
	ResponseIP   *string
	BodySize     int64
	Body         []byte
	Screenshot   []byte
}

// Successful reports whether a probe counts as up: no error and an HTTP
// code in [200, 399]. HTTPCodeError is derived here when a code is
// present but out of the success range and no other error was set.
func (p PingResponse) Successful() bool {
	return p.classify() == ErrorKindNone
}

// classify returns the effective error kind after deriving
// HTTPCodeError from an out-of-range status code.
func (p PingResponse) classify() ErrorKind {
	if p.ErrorKind != ErrorKindNone {
		return p.ErrorKind
	}
	if p.HTTPCode == nil {
		return ErrorKindHTTPCodeError
	}
	if *p.HTTPCode < 200 || *p.HTTPCode > 399 {
		return ErrorKindHTTPCodeError
	}
	return ErrorKindNone
}

// EffectiveErrorKind is the error kind to persist on the monitor row:
// empty on success, the classified kind otherwise.
func (p PingResponse) EffectiveErrorKind() ErrorKind {
	return p.classify()
}
