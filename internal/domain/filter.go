package domain

import "time"

// FilterDecision is a write-only audit record for a rejected item. The
// pipeline never reads these back.
type FilterDecision struct {
	ID         int64     `db:"id"`
	SourceID   string    `db:"source_id"`
	ItemID     string    `db:"item_id"`
	FilterName string    `db:"filter_name"`
	Reason     string    `db:"reason"`
	FieldValue string    `db:"field_value"`
	CreatedAt  time.Time `db:"created_at"`
}
