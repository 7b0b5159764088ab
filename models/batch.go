package models

// BatchFailure records why one id of a batch was not processed.
type BatchFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
	Err   error  `json:"-"`
}

// BatchResult summarizes a best-effort batch. Count is the number of
// transactions actually transitioned; Skipped ids were loaded but not
// eligible.
type BatchResult struct {
	Requested int            `json:"requested"`
	Count     int            `json:"count"`
	Skipped   []string       `json:"skipped"`
	Failures  []BatchFailure `json:"failures"`
}

func (r BatchResult) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		ids = append(ids, f.ID)
	}
	return ids
}
