package models

type JobStatus string

const (
	JobOpen       JobStatus = "open"
	JobUnlocked   JobStatus = "unlocked"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobCancelled  JobStatus = "cancelled"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobOpen:       {JobUnlocked, JobCancelled},
	JobUnlocked:   {JobInProgress, JobOpen},
	JobInProgress: {JobCompleted},
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobOpen, JobUnlocked, JobInProgress, JobCompleted, JobCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a direct successor of s.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, candidate := range jobTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobCancelled
}

type LedgerKind string

const (
	LedgerTopUp        LedgerKind = "top_up"
	LedgerLeadPurchase LedgerKind = "lead_purchase"
	LedgerRefund       LedgerKind = "refund"
	LedgerAdjustment   LedgerKind = "adjustment"
)
