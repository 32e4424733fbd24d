package models

const (
	TaskStatusPending   = "pending"
	TaskStatusRetry     = "retry"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

const (
	// DefaultPhone is stored when the customer leaves the phone empty.
	DefaultPhone = "Not provided"

	// DefaultTimezone is the zone booking times are interpreted in.
	DefaultTimezone = "Asia/Kolkata"

	// DefaultSlotMinutes is the fixed length of a booking.
	DefaultSlotMinutes = 60

	// DateLayout is the wire format of calendar dates.
	DateLayout = "2006-01-02"

	// WorkerQueueSize is the in-memory notification queue capacity.
	WorkerQueueSize = 128

	// DefaultLockTTL bounds how long a date lock may be held, in seconds.
	DefaultLockTTL = 30

	// DefaultLockWait bounds how long a booking waits for a date lock, in seconds.
	DefaultLockWait = 10
)
