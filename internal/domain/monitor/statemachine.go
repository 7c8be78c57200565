package monitor

import "time"

// SideEffect names the incident-lifecycle action a transition requires.
// The monitor package stays free of any dependency on the incident
// package (per spec §9's narrow-repository guidance); the executor
// worker performs the named action using the incident package directly.
type SideEffect int

const (
	SideEffectNone SideEffect = iota
	SideEffectOpenIncident
	SideEffectResolveIncident
)

// Transition is the outcome of applying one probe result to a monitor's
// current state, per the table in spec §4.2.
type Transition struct {
	NextStatus    Status
	NextCounter   int
	StatusChanged bool
	SideEffect    SideEffect
}

// Apply computes the next status/counter/side-effect for a monitor
// given a probe result, following the confirmation-threshold table in
// spec §4.2. It never mutates m; callers persist the result themselves.
func (m HttpMonitor) Apply(probe PingResponse) Transition {
	success := probe.Successful()
	downtimeThreshold := m.DowntimeConfirmationThreshold
	recoveryThreshold := m.RecoveryConfirmationThreshold

	switch m.Status {
	case StatusUnknown, StatusUp:
		if success {
			return changed(StatusUp, 0, SideEffectNone, m.Status)
		}
		return failureTransition(m.Status, downtimeThreshold, 0)

	case StatusSuspicious:
		if success {
			return changed(StatusUp, 0, SideEffectNone, m.Status)
		}
		return failureTransition(m.Status, downtimeThreshold, m.StatusCounter)

	case StatusDown:
		if !success {
			return changed(StatusDown, 0, SideEffectNone, m.Status)
		}
		return recoveryTransition(m.Status, recoveryThreshold, 0)

	case StatusRecovering:
		if !success {
			return changed(StatusDown, 0, SideEffectNone, m.Status)
		}
		return recoveryTransition(m.Status, recoveryThreshold, m.StatusCounter)

	default:
		// Inactive/Archived monitors are never selected for probing; if
		// one reaches here it is a bug in the caller, not a state we
		// can transition from. Leave status untouched.
		return Transition{NextStatus: m.Status, NextCounter: m.StatusCounter}
	}
}

func failureTransition(current Status, threshold int, counter int) Transition {
	if threshold == 0 {
		return changed(StatusDown, 0, SideEffectOpenIncident, current)
	}

	next := counter + 1
	if next >= threshold {
		return changed(StatusDown, 0, SideEffectOpenIncident, current)
	}
	return changed(StatusSuspicious, next, SideEffectNone, current)
}

func recoveryTransition(current Status, threshold int, counter int) Transition {
	if threshold == 0 {
		return changed(StatusUp, 0, SideEffectResolveIncident, current)
	}

	next := counter + 1
	if next >= threshold {
		return changed(StatusUp, 0, SideEffectResolveIncident, current)
	}
	return changed(StatusRecovering, next, SideEffectNone, current)
}

func changed(next Status, counter int, effect SideEffect, current Status) Transition {
	return Transition{
		NextStatus:    next,
		NextCounter:   counter,
		StatusChanged: next != current,
		SideEffect:    effect,
	}
}

// ApplyProbeResult mutates m in place to reflect the probe outcome,
// returning the transition computed for side-effect dispatch. next_ping_at
// always advances to now+interval on a successful persist (spec §4.2);
// last_status_change_at only moves when the status value actually changes.
func (m *HttpMonitor) ApplyProbeResult(now time.Time, probe PingResponse) Transition {
	t := m.Apply(probe)

	if t.StatusChanged {
		m.LastStatusChangeAt = &now
	}
	m.Status = t.NextStatus
	m.StatusCounter = t.NextCounter
	m.NextPingAt = ptrTime(now.Add(m.Interval))

	if probe.HTTPCode != nil {
		m.LastHTTPCode = probe.HTTPCode
	} else {
		m.LastHTTPCode = nil
	}

	ek := probe.EffectiveErrorKind()
	if ek == ErrorKindNone {
		m.ErrorKind = nil
	} else {
		s := string(ek)
		m.ErrorKind = &s
	}

	return t
}

func ptrTime(t time.Time) *time.Time { return &t }
