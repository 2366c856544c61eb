package domain

// AlertCondition is the crossing direction a threshold alert watches.
type AlertCondition string

const (
	ConditionAbove AlertCondition = "above"
	ConditionBelow AlertCondition = "below"
)

// String returns the string representation of AlertCondition.
func (c AlertCondition) String() string {
	return string(c)
}

// IsValid checks if the condition is a known value.
func (c AlertCondition) IsValid() bool {
	return c == ConditionAbove || c == ConditionBelow
}

// Alert is a one-shot price threshold watch.
// Corresponds to the alerts table in PostgreSQL. Created active; flipped
// inactive exactly once when it triggers, never reactivated.
type Alert struct {
	ID          string         // PRIMARY KEY, store-assigned
	UserID      string         // owning user, supplied by the identity layer
	Symbol      string         // watched ticker
	Condition   AlertCondition // above | below
	TargetValue float64        // threshold price, > 0
	Active      bool           // false once triggered
	CreatedAt   int64          // record creation timestamp (ms)
}

// Matches reports whether price crosses the alert's threshold.
func (a *Alert) Matches(price float64) bool {
	switch a.Condition {
	case ConditionAbove:
		return price >= a.TargetValue
	case ConditionBelow:
		return price <= a.TargetValue
	}
	return false
}

// Notification is the persisted record of a triggered alert.
// Corresponds to the notifications table in PostgreSQL. AlertID is nullable
// because the alert may be deleted after the notification exists.
type Notification struct {
	ID        string  // PRIMARY KEY, store-assigned
	UserID    string  // recipient
	AlertID   *string // source alert (nullable)
	Message   string  // human-readable trigger text
	ReadAt    *int64  // acknowledgment timestamp (ms), nil while unread
	CreatedAt int64   // record creation timestamp (ms)
}

// TriggerEvent is the push payload emitted when an alert fires.
type TriggerEvent struct {
	UserID    string         // alert owner
	Symbol    string         // watched ticker
	Condition AlertCondition // above | below
	Target    float64        // configured threshold
	Current   float64        // price that crossed it
	Message   string         // same text as the persisted notification
}
