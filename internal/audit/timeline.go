package audit

import (
	"encoding/json"
	"time"
)

// TimelineFilters holds the basic filters for the audit timeline.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Action   string
	ActorID  *int64
	Page     int
	PageSize int
}

// TimelineRow is one persisted audit entry as returned to readers.
type TimelineRow struct {
	ID        int64           `json:"id"`
	Action    string          `json:"action"`
	ActorID   *int64          `json:"actor_id,omitempty"`
	FileID    *int64          `json:"file_id,omitempty"`
	RecordID  *int64          `json:"record_id,omitempty"`
	Detail    json.RawMessage `json:"detail"`
	IP        string          `json:"ip_address"`
	UserAgent string          `json:"user_agent"`
	CreatedAt time.Time       `json:"created_at"`
}

// PagingInfo carries simple pagination metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}
