package release

import "time"

// Message is one chat post from the source channel. TS doubles as the
// unique id and sort key (Slack float-seconds timestamps are unique per
// channel). ThreadTS is zero for standalone posts.
type Message struct {
	Text     string
	TS       float64
	ThreadTS float64
}

// IsThreadRoot reports whether the message started a reply thread.
func (m Message) IsThreadRoot() bool {
	return m.ThreadTS != 0 && m.ThreadTS == m.TS
}

// IsStandalone reports whether the message belongs to no thread.
func (m Message) IsStandalone() bool {
	return m.ThreadTS == 0
}

// IsReplyOnly reports whether the message is a reply inside someone else's
// thread. Reply-only messages are never processed independently; they are
// consumed through the reply merger.
func (m Message) IsReplyOnly() bool {
	return m.ThreadTS != 0 && m.ThreadTS != m.TS
}

// Record is the structured output unit for one (application, version) pair.
// All fields except Timestamp are best-effort: an unmatched field stays
// empty. KeyChanges and Timeline are accumulate-only once the record enters
// the merge step.
type Record struct {
	App        string
	Version    string
	Build      string
	Platform   string
	Status     string
	Published  string
	Rollout    string
	KeyChanges []string
	Timeline   []string
	Timestamp  float64
}

// Key groups records for deduplication. An empty version is a valid
// grouping value.
func (r Record) Key() string {
	return r.App + "-" + r.Version
}

// AppendTimeline appends an event label, skipping labels already present so
// repeated reply phrasings do not pad the thread timeline.
func (r *Record) AppendTimeline(event string) {
	if event == "" {
		return
	}
	for _, existing := range r.Timeline {
		if existing == event {
			return
		}
	}
	r.Timeline = append(r.Timeline, event)
}

// PublishedStamp renders a message timestamp as the human-readable
// publication date carried on the record.
func PublishedStamp(ts float64) string {
	if ts == 0 {
		return ""
	}
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC().Format("2006-01-02 15:04")
}
