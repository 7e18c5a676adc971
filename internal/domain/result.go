package domain

import "fmt"

// SenderResult is the collector's acknowledgement of a batch.
type SenderResult struct {
	Response  string
	Info      string
	Processed int
	Failed    int
	Total     int
	Spent     float64
}

// Success reports whether the collector accepted every item.
func (r SenderResult) Success() bool {
	return r.Response != "failed" && r.Failed == 0
}

func (r SenderResult) String() string {
	return fmt.Sprintf("response=%q processed=%d failed=%d total=%d spent=%gs",
		r.Response, r.Processed, r.Failed, r.Total, r.Spent)
}
