package task

type Status string

const (
	StatusPending  Status = "pending"
	StatusDue      Status = "due"
	StatusLate     Status = "late"
	StatusAbsent   Status = "absent"
	StatusRunning  Status = "running"
	StatusHealthy  Status = "healthy"
	StatusFailing  Status = "failing"
	StatusArchived Status = "archived"
)

// archivable lists the statuses spec §4.3 allows archiving from. Pending
// and Running are deliberately absent: a never-due task has nothing to
// archive away from meaningfully, and a Running task cannot be archived
// per the explicit spec note.
var archivable = map[Status]bool{
	StatusDue:     true,
	StatusLate:    true,
	StatusAbsent:  true,
	StatusHealthy: true,
	StatusFailing: true,
}

// dueEligible lists the statuses the due collector (spec §4.4) may
// advance to Due.
var dueEligible = map[Status]bool{
	StatusPending: true,
	StatusHealthy: true,
	StatusFailing: true,
	StatusAbsent:  true,
}

// startEligible lists the statuses external start(task_id) may fire
// from (spec §4.3).
var startEligible = map[Status]bool{
	StatusPending: true,
	StatusDue:     true,
	StatusLate:    true,
	StatusAbsent:  true,
	StatusHealthy: true,
	StatusFailing: true,
}
