package constants

// RunStatus is the canonical status for rows in transfer_runs.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusRunning   RunStatus = "RUNNING"   // in progress
	RunStatusExtracted RunStatus = "EXTRACTED" // table built, destination untouched (dry run)
	RunStatusWritten   RunStatus = "WRITTEN"   // destination replaced
	RunStatusFailed    RunStatus = "FAILED"    // terminal failure
)
