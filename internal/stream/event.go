package stream

import "time"

// Meta is the envelope metadata attached to every EventStreams message.
type Meta struct {
	URI       string    `json:"uri"`
	RequestID string    `json:"request_id"`
	ID        string    `json:"id"`
	DT        time.Time `json:"dt"`
	Domain    string    `json:"domain"`
	Stream    string    `json:"stream"`
}

// Revision holds the before/after revision IDs of an edit. Old is absent for
// page creations; the whole block is absent for non-revision actions such as
// moves and uploads.
type Revision struct {
	Old *int64 `json:"old,omitempty"`
	New int64  `json:"new"`
}

// RecentChange is one decoded recentchange event. ID is the recentchanges
// identifier and is a pointer so a payload that omits it can be told apart
// from rc_id 0.
type RecentChange struct {
	Schema     string    `json:"$schema"`
	Meta       Meta      `json:"meta"`
	ID         *int64    `json:"id"`
	Type       string    `json:"type"`
	Namespace  int       `json:"namespace"`
	Title      string    `json:"title"`
	Comment    string    `json:"comment"`
	Timestamp  int64     `json:"timestamp"`
	User       string    `json:"user"`
	Bot        bool      `json:"bot"`
	ServerName string    `json:"server_name"`
	Wiki       string    `json:"wiki"`
	Revision   *Revision `json:"revision,omitempty"`
}
