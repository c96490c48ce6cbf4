package errlog

import "time"

// Severity classifies how urgently an entry needs human attention.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Bucket groups entries by subsystem for triage.
type Bucket string

const (
	BucketPayment Bucket = "payment"
	BucketGeneric Bucket = "generic"
)

// Entry is a deduplicated error log record. Entries are keyed by
// (FunctionName, Message): repeated occurrences within the dedupe window
// increment Occurrences and bump LastSeen instead of creating a new row.
type Entry struct {
	ID           string    `bson:"_id"`
	FunctionName string    `bson:"function_name"`
	Message      string    `bson:"message"`
	Stack        string    `bson:"stack,omitempty"`
	Severity     Severity  `bson:"severity"`
	Bucket       Bucket    `bson:"bucket"`
	HumanMessage string    `bson:"human_message,omitempty"`
	Occurrences  int64     `bson:"occurrences"`
	FirstSeen    time.Time `bson:"first_seen"`
	LastSeen     time.Time `bson:"last_seen"`
}
