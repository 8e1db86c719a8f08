package constants

// JobStatus is the outcome recorded for each document in a batch report.
type JobStatus string

// Stable values (these exact strings appear in batch reports).
const (
	JobStatusAnalyzed  JobStatus = "ANALYZED"  // session created
	JobStatusDuplicate JobStatus = "DUPLICATE" // same content as an earlier file in the run
	JobStatusFailed    JobStatus = "FAILED"    // terminal failure
)
