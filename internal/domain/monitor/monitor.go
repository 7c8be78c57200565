// Package monitor models an HTTP monitor's entity and confirmation-
// threshold state machine (spec §3, §4.2), grounded in the teacher's
// internal/domain/job.Job entity shape and internal/jobs status/type enums.
package monitor

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MaximumRequestTimeout is the ceiling for request_timeout_ms. spec §9
// flags this constant as referenced-but-undefined in the source; we pick
// a conservative 60s ceiling.
const MaximumRequestTimeout = 60 * time.Second

type Status string

const (
	StatusUnknown     Status = "unknown"
	StatusInactive    Status = "inactive"
	StatusUp          Status = "up"
	StatusRecovering  Status = "recovering"
	StatusSuspicious  Status = "suspicious"
	StatusDown        Status = "down"
	StatusArchived    Status = "archived"
)

func (s Status) NeedsNextPing() bool {
	return s != StatusInactive && s != StatusArchived
}

var (
	ErrNotFound           = errors.New("monitor not found")
	ErrInvalidTimeout     = errors.New("request timeout exceeds maximum")
	ErrInvalidURL         = errors.New("monitor url is empty")
	ErrIllegalTransition  = errors.New("illegal monitor status transition")
)

// Header is one entry of the ordered request_headers list.
type Header struct {
	Name  string
	Value string
}

type HttpMonitor struct {
	OrganizationID uuid.UUID
	ID             uuid.UUID

	URL               string
	Interval          time.Duration
	RequestTimeout    time.Duration
	RequestHeaders    []Header

	RecoveryConfirmationThreshold int
	DowntimeConfirmationThreshold int

	Status              Status
	StatusCounter       int
	LastStatusChangeAt  *time.Time
	NextPingAt          *time.Time
	LastHTTPCode        *int
	ErrorKind           *string

	Metadata map[string]string

	NotifyEmail bool
	NotifySMS   bool
	NotifyPush  bool
}

type CreateRequest struct {
	OrganizationID                 uuid.UUID
	URL                            string
	Interval                       time.Duration
	RequestTimeout                 time.Duration
	RequestHeaders                 []Header
	RecoveryConfirmationThreshold  int
	DowntimeConfirmationThreshold  int
	Metadata                       map[string]string
	NotifyEmail, NotifySMS, NotifyPush bool
}

// New builds a fresh monitor in the Unknown status, due for its first
// ping immediately. Invariant (spec §3): next_ping_at is non-null iff
// status is neither Inactive nor Archived.
func New(req CreateRequest) (HttpMonitor, error) {
	if req.URL == "" {
		return HttpMonitor{}, ErrInvalidURL
	}
	if req.RequestTimeout > MaximumRequestTimeout {
		return HttpMonitor{}, ErrInvalidTimeout
	}

	now := time.Now().UTC()

	m := HttpMonitor{
		OrganizationID:                 req.OrganizationID,
		ID:                             uuid.New(),
		URL:                            req.URL,
		Interval:                       req.Interval,
		RequestTimeout:                 req.RequestTimeout,
		RequestHeaders:                 req.RequestHeaders,
		RecoveryConfirmationThreshold:  req.RecoveryConfirmationThreshold,
		DowntimeConfirmationThreshold:  req.DowntimeConfirmationThreshold,
		Status:                         StatusUnknown,
		StatusCounter:                  0,
		Metadata:                       req.Metadata,
		NotifyEmail:                    req.NotifyEmail,
		NotifySMS:                      req.NotifySMS,
		NotifyPush:                     req.NotifyPush,
	}
	m.NextPingAt = &now
	return m, nil
}

// Archive transitions the monitor to Archived from any non-archived
// status, clearing next_ping_at per the invariant.
func (m *HttpMonitor) Archive() {
	m.setStatus(StatusArchived)
	m.NextPingAt = nil
}

func (m *HttpMonitor) setStatus(next Status) {
	if m.Status == next {
		return
	}
	now := time.Now().UTC()
	m.Status = next
	m.StatusCounter = 0
	m.LastStatusChangeAt = &now
}
