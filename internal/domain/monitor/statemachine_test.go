package monitor

import (
	"testing"
	"time"
)

func code(n int) *int { return &n }

func fixedNow() time.Time {
	return time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
}

func baseMonitor(status Status, counter int) HttpMonitor {
	return HttpMonitor{
		Status:                        status,
		StatusCounter:                 counter,
		RecoveryConfirmationThreshold: 2,
		DowntimeConfirmationThreshold: 2,
	}
}

func TestApply_UpToDown_RespectsDowntimeThreshold(t *testing.T) {
	m := baseMonitor(StatusUp, 0)
	fail := PingResponse{ErrorKind: ErrorKindConnectFailed}

	first := m.Apply(fail)
	if first.NextStatus != StatusSuspicious || first.SideEffect != SideEffectNone {
		t.Fatalf("first failure: got %+v, want suspicious/none", first)
	}

	m.Status, m.StatusCounter = first.NextStatus, first.NextCounter
	second := m.Apply(fail)
	if second.NextStatus != StatusDown || second.SideEffect != SideEffectOpenIncident {
		t.Fatalf("second failure: got %+v, want down/open_incident", second)
	}
}

func TestApply_ZeroDowntimeThreshold_OpensImmediately(t *testing.T) {
	m := baseMonitor(StatusUp, 0)
	m.DowntimeConfirmationThreshold = 0
	fail := PingResponse{ErrorKind: ErrorKindConnectFailed}

	got := m.Apply(fail)
	if got.NextStatus != StatusDown || got.SideEffect != SideEffectOpenIncident {
		t.Fatalf("got %+v, want immediate down/open_incident", got)
	}
}

func TestApply_DownToUp_RespectsRecoveryThreshold(t *testing.T) {
	m := baseMonitor(StatusDown, 0)
	ok := PingResponse{HTTPCode: code(200)}

	first := m.Apply(ok)
	if first.NextStatus != StatusRecovering || first.SideEffect != SideEffectNone {
		t.Fatalf("first success: got %+v, want recovering/none", first)
	}

	m.Status, m.StatusCounter = first.NextStatus, first.NextCounter
	second := m.Apply(ok)
	if second.NextStatus != StatusUp || second.SideEffect != SideEffectResolveIncident {
		t.Fatalf("second success: got %+v, want up/resolve_incident", second)
	}
}

func TestApply_Recovering_FailureReturnsToDown(t *testing.T) {
	m := baseMonitor(StatusRecovering, 1)
	fail := PingResponse{ErrorKind: ErrorKindTimeout}

	got := m.Apply(fail)
	if got.NextStatus != StatusDown || got.SideEffect != SideEffectNone {
		t.Fatalf("got %+v, want down/none (no re-open, already live)", got)
	}
}

func TestApply_Suspicious_SuccessResetsToUp(t *testing.T) {
	m := baseMonitor(StatusSuspicious, 1)
	ok := PingResponse{HTTPCode: code(200)}

	got := m.Apply(ok)
	if got.NextStatus != StatusUp || !got.StatusChanged {
		t.Fatalf("got %+v, want up/changed", got)
	}
}

func TestPingResponse_Successful_OutOfRangeCodeIsFailure(t *testing.T) {
	p := PingResponse{HTTPCode: code(500)}
	if p.Successful() {
		t.Fatalf("500 should not be successful")
	}
	if p.EffectiveErrorKind() != ErrorKindHTTPCodeError {
		t.Fatalf("got %q, want http_code_error", p.EffectiveErrorKind())
	}
}

func TestPingResponse_Successful_MissingCodeIsFailure(t *testing.T) {
	p := PingResponse{}
	if p.Successful() {
		t.Fatalf("missing code should not be successful")
	}
}

func TestPingResponse_Successful_ExplicitErrorWins(t *testing.T) {
	p := PingResponse{HTTPCode: code(200), ErrorKind: ErrorKindTLSError}
	if p.Successful() {
		t.Fatalf("explicit error kind should override a 200 code")
	}
	if p.EffectiveErrorKind() != ErrorKindTLSError {
		t.Fatalf("got %q, want tls_error", p.EffectiveErrorKind())
	}
}

func TestApplyProbeResult_AdvancesNextPingAndClearsErrorOnSuccess(t *testing.T) {
	m := baseMonitor(StatusUp, 0)
	m.Interval = 0
	now := fixedNow()

	tr := m.ApplyProbeResult(now, PingResponse{HTTPCode: code(200)})
	if tr.NextStatus != StatusUp {
		t.Fatalf("got %+v, want status up", tr)
	}
	if m.ErrorKind != nil {
		t.Fatalf("expected nil error kind on success, got %v", *m.ErrorKind)
	}
	if m.NextPingAt == nil || !m.NextPingAt.Equal(now) {
		t.Fatalf("expected next ping at %v, got %v", now, m.NextPingAt)
	}
}

func TestApplyProbeResult_SetsErrorKindOnFailure(t *testing.T) {
	m := baseMonitor(StatusUp, 0)
	now := fixedNow()

	m.ApplyProbeResult(now, PingResponse{ErrorKind: ErrorKindDNSError})
	if m.ErrorKind == nil || *m.ErrorKind != string(ErrorKindDNSError) {
		t.Fatalf("got %v, want dns_error", m.ErrorKind)
	}
}

func TestApplyProbeResult_MovesLastStatusChangeWhenStatusChanges(t *testing.T) {
	m := baseMonitor(StatusSuspicious, 1)
	original := fixedNow()
	m.LastStatusChangeAt = &original
	later := original.Add(1)

	m.ApplyProbeResult(later, PingResponse{ErrorKind: ErrorKindConnectFailed})
	if m.Status != StatusDown {
		t.Fatalf("expected down, got %v", m.Status)
	}
	if m.LastStatusChangeAt == nil || !m.LastStatusChangeAt.Equal(later) {
		t.Fatalf("expected last_status_change_at to move to %v, got %v", later, m.LastStatusChangeAt)
	}
}
