package verify

// Summary aggregates results for order reconciliation. Every pending and
// failed domain needs an operator to look at it.
type Summary struct {
	Total          int      `json:"total"`
	Success        int      `json:"success"`
	Pending        int      `json:"pending"`
	Failed         int      `json:"failed"`
	PendingDomains []string `json:"pending_domains"`
	FailedDomains  []string `json:"failed_domains"`
}

func Summarize(results []Result) Summary {
	s := Summary{
		Total:          len(results),
		PendingDomains: []string{},
		FailedDomains:  []string{},
	}
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			s.Success++
		case StatusPending:
			s.Pending++
			s.PendingDomains = append(s.PendingDomains, r.Domain)
		default:
			s.Failed++
			s.FailedDomains = append(s.FailedDomains, r.Domain)
		}
	}
	return s
}

// NeedsFollowUp reports whether any result is not a confirmed success.
func (s Summary) NeedsFollowUp() bool {
	return s.Pending > 0 || s.Failed > 0
}
