package domain

type DeliveryStatus string

const (
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliverySkipped   DeliveryStatus = "skipped"
)

// DeliveryResult is the outcome of one channel for one recipient.
type DeliveryResult struct {
	Channel string         `json:"channel"`
	Status  DeliveryStatus `json:"status"`
	Detail  string         `json:"detail,omitempty"`
	// Blocked marks a skip caused by a missing credential rather than by
	// a dry run or an earlier delivery.
	Blocked bool `json:"blocked,omitempty"`
}

// RecipientReport collects everything that happened for one recipient.
type RecipientReport struct {
	Recipient string           `json:"recipient"`
	Results   []DeliveryResult `json:"results"`
	Err       error            `json:"-"`
}

// Failed reports whether nothing reached the recipient: the run for them
// aborted, or no channel delivered and at least one failed or was blocked.
func (r *RecipientReport) Failed() bool {
	if r.Err != nil {
		return true
	}
	failed := false
	for _, res := range r.Results {
		switch res.Status {
		case DeliveryDelivered:
			return false
		case DeliveryFailed:
			failed = true
		case DeliverySkipped:
			if res.Blocked {
				failed = true
			}
		}
	}
	return failed
}

// RunReport summarizes a whole run.
type RunReport struct {
	Recipients []*RecipientReport `json:"recipients"`
}

func (r *RunReport) Add(report *RecipientReport) {
	r.Recipients = append(r.Recipients, report)
}

// Count tallies channel results by status.
func (r *RunReport) Count(status DeliveryStatus) int {
	n := 0
	for _, rec := range r.Recipients {
		for _, res := range rec.Results {
			if res.Status == status {
				n++
			}
		}
	}
	return n
}

// AllFailed is true when there was at least one recipient and every one of them failed.
func (r *RunReport) AllFailed() bool {
	if len(r.Recipients) == 0 {
		return false
	}
	for _, rec := range r.Recipients {
		if !rec.Failed() {
			return false
		}
	}
	return true
}
