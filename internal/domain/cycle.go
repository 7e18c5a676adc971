package domain

// DiscoveryOutcome describes what the discovery step did during a cycle.
type DiscoveryOutcome string

const (
	// DiscoveryDisabled means no discovery generator is configured.
	DiscoveryDisabled DiscoveryOutcome = "disabled"
	// DiscoverySkipped means every key had already been announced.
	DiscoverySkipped DiscoveryOutcome = "skipped"
	// DiscoverySent means the payload was accepted and the key set replaced.
	DiscoverySent DiscoveryOutcome = "sent"
	// DiscoveryFailed means the payload could not be delivered or was rejected.
	DiscoveryFailed DiscoveryOutcome = "failed"
)

// CycleStatus is the outcome of the main batch send.
type CycleStatus string

const (
	StatusOK       CycleStatus = "ok"
	StatusEmpty    CycleStatus = "empty"
	StatusRejected CycleStatus = "rejected"
	StatusError    CycleStatus = "error"
)

// Cycle summarizes one report cycle.
type Cycle struct {
	Clock     int64            `json:"clock"`
	Host      string           `json:"host"`
	Records   int              `json:"records"`
	Keys      int              `json:"keys"`
	Discovery DiscoveryOutcome `json:"discovery"`
	Status    CycleStatus      `json:"status"`
	Processed int              `json:"processed"`
	Failed    int              `json:"failed"`
	Error     string           `json:"error,omitempty"`
}
