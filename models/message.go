package models

import "time"

// TimestampSentinel is the sort key used for records whose timestamp is
// missing or unparseable. It sorts before any real ISO-like date, so undated
// messages surface as the oldest in their thread.
const TimestampSentinel = "1900-01-01"

// MessageRecord represents one ingested email message with its threading
// headers. Records are annotated in place by the normalizer and the thread
// builder; thread_id stays empty until the record lands in a retained group.
type MessageRecord struct {
	MessageID         string   `json:"message_id"`
	InReplyTo         string   `json:"in_reply_to,omitempty"`
	References        []string `json:"references,omitempty"`
	SubjectRaw        string   `json:"subject_raw"`
	SubjectNormalized string   `json:"subject_normalized"`
	Timestamp         string   `json:"timestamp,omitempty"`
	SourceLocator     string   `json:"source_locator"`
	ThreadID          string   `json:"thread_id,omitempty"`
	IsThreadRoot      bool     `json:"is_thread_root"`
}

// SortKey returns the timestamp used for chronological ordering, falling
// back to the sentinel when the record carries no usable date.
func (m *MessageRecord) SortKey() string {
	if m.Timestamp == "" {
		return TimestampSentinel
	}
	return m.Timestamp
}

// IsOriginal reports whether the record is an original communication rather
// than a reply. The reply pointer is the authoritative signal; subject text
// and root flags play no part here.
func (m *MessageRecord) IsOriginal() bool {
	return m.InReplyTo == ""
}

// ThreadGroup is a set of records assigned the same thread identifier.
type ThreadGroup struct {
	ThreadID string           `json:"thread_id"`
	Messages []*MessageRecord `json:"messages"`
}

// Size returns the number of messages in the group.
func (g *ThreadGroup) Size() int {
	return len(g.Messages)
}

// Root returns the group's root message, or nil if roots have not been
// assigned yet.
func (g *ThreadGroup) Root() *MessageRecord {
	for _, m := range g.Messages {
		if m.IsThreadRoot {
			return m
		}
	}
	return nil
}

// BatchAnalysis is the persisted outcome of one threading run over a closed
// batch of messages.
type BatchAnalysis struct {
	BatchID    string           `json:"batch_id"`
	AnalyzedAt time.Time        `json:"analyzed_at"`
	Records    []*MessageRecord `json:"records"`
	Threads    []*ThreadGroup   `json:"threads"`
	Originals  []*MessageRecord `json:"originals"`
}
