package database

// Per-stage ingestion outcomes stored on the image row. Pending means the
// stage has not run yet, skipped means a prerequisite (usually a model
// failing to load, or an earlier stage erroring) prevented it from running.
const (
	StatusPending = "pending"
	StatusDone    = "done"
	StatusError   = "error"
	StatusSkipped = "skipped"
)
