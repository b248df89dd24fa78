package enums

import "fmt"

// EmailJobStatus mirrors the delivery queue job states.
type EmailJobStatus string

const (
	EmailJobStatusPending   EmailJobStatus = "pending"
	EmailJobStatusInFlight  EmailJobStatus = "in_flight"
	EmailJobStatusCompleted EmailJobStatus = "completed"
	EmailJobStatusFailed    EmailJobStatus = "failed"
)

var validEmailJobStatuses = []EmailJobStatus{
	EmailJobStatusPending,
	EmailJobStatusInFlight,
	EmailJobStatusCompleted,
	EmailJobStatusFailed,
}

func (s EmailJobStatus) String() string {
	return string(s)
}

func (s EmailJobStatus) IsValid() bool {
	for _, candidate := range validEmailJobStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseEmailJobStatus(value string) (EmailJobStatus, error) {
	for _, candidate := range validEmailJobStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid email job status %q", value)
}
