package threading

import (
	"testing"

	"threadmail/models"
)

func record(id, inReplyTo, subject, timestamp string) *models.MessageRecord {
	return &models.MessageRecord{
		MessageID:     id,
		InReplyTo:     inReplyTo,
		SubjectRaw:    subject,
		Timestamp:     timestamp,
		SourceLocator: "mail/" + id + ".msg",
	}
}

func TestReplyPairGrouping(t *testing.T) {
	original := record("1", "", "Meeting", "2024-03-01T09:00:00Z")
	reply := record("2", "1", "RE: Meeting", "2024-03-01T10:00:00Z")

	builder := NewBuilder(DefaultOptions())
	analysis := builder.Analyze([]*models.MessageRecord{original, reply})

	if len(analysis.Threads) != 1 {
		t.Fatalf("expected 1 thread group, got %d", len(analysis.Threads))
	}
	group := analysis.Threads[0]
	if group.Size() != 2 {
		t.Fatalf("expected group of 2, got %d", group.Size())
	}
	if root := group.Root(); root == nil || root.MessageID != "1" {
		t.Errorf("expected record 1 as root, got %+v", root)
	}
	if original.ThreadID != reply.ThreadID || original.ThreadID == "" {
		t.Errorf("thread ids differ: %q vs %q", original.ThreadID, reply.ThreadID)
	}

	if len(analysis.Originals) != 1 || analysis.Originals[0].MessageID != "1" {
		t.Errorf("expected only record 1 in originals, got %d records", len(analysis.Originals))
	}
}

func TestHeaderLinkageTransitivity(t *testing.T) {
	// A and C both reply to B: star closure must land all three in one group.
	a := record("a", "b", "RE: Rollout", "2024-03-02T08:00:00Z")
	b := record("b", "", "Rollout", "2024-03-01T08:00:00Z")
	c := record("c", "b", "RE: Rollout", "2024-03-03T08:00:00Z")

	builder := NewBuilder(DefaultOptions())
	analysis := builder.Analyze([]*models.MessageRecord{a, b, c})

	if len(analysis.Threads) != 1 {
		t.Fatalf("expected 1 thread group, got %d", len(analysis.Threads))
	}
	if analysis.Threads[0].Size() != 3 {
		t.Errorf("expected 3 members, got %d", analysis.Threads[0].Size())
	}
	if root := analysis.Threads[0].Root(); root.MessageID != "b" {
		t.Errorf("expected b as root, got %s", root.MessageID)
	}
}

func TestReferencesLinkAcrossMissingParent(t *testing.T) {
	// c carries no In-Reply-To; its References chain names an ancestor that
	// is absent from the batch plus b. The absent id is skipped silently and
	// the b edge still forms the group.
	b := record("b", "", "Capacity planning", "2024-03-01T08:00:00Z")
	c := record("c", "", "RE: Capacity planning", "2024-03-02T08:00:00Z")
	c.References = []string{"missing-ancestor", "b"}

	builder := NewBuilder(Options{MinSubjectLength: 5, SubjectFallback: false})
	analysis := builder.Analyze([]*models.MessageRecord{b, c})

	if len(analysis.Threads) != 1 {
		t.Fatalf("expected 1 thread group via references, got %d", len(analysis.Threads))
	}
	if analysis.Threads[0].Size() != 2 {
		t.Errorf("expected 2 members, got %d", analysis.Threads[0].Size())
	}
}

func TestUnresolvedReplyPointerStaysSingleton(t *testing.T) {
	rec := record("1", "gone-from-batch", "RE: Old thread", "2024-03-01T08:00:00Z")

	builder := NewBuilder(DefaultOptions())
	analysis := builder.Analyze([]*models.MessageRecord{rec})

	if len(analysis.Threads) != 0 {
		t.Fatalf("expected no thread groups, got %d", len(analysis.Threads))
	}
	if rec.ThreadID != "" {
		t.Errorf("singleton should not get a thread id, got %q", rec.ThreadID)
	}
	// Still excluded from originals: the reply pointer is authoritative.
	if len(analysis.Originals) != 0 {
		t.Errorf("reply must not appear in originals, got %d", len(analysis.Originals))
	}
}

func TestSubjectFallbackGrouping(t *testing.T) {
	a := record("a", "", "Quarterly Report", "2024-03-01T08:00:00Z")
	b := record("b", "", "RE: Quarterly Report", "2024-03-02T08:00:00Z")

	builder := NewBuilder(DefaultOptions())
	analysis := builder.Analyze([]*models.MessageRecord{a, b})

	if len(analysis.Threads) != 1 {
		t.Fatalf("expected subject fallback to form 1 group, got %d", len(analysis.Threads))
	}
	if root := analysis.Threads[0].Root(); root.MessageID != "a" {
		t.Errorf("expected a as root, got %s", root.MessageID)
	}
	// Neither record carries a reply pointer, so both stay originals.
	if len(analysis.Originals) != 2 {
		t.Errorf("expected both records in originals, got %d", len(analysis.Originals))
	}
}

func TestSubjectFallbackRespectsFloor(t *testing.T) {
	a := record("a", "", "Hi!", "2024-03-01T08:00:00Z")
	b := record("b", "", "Hi!", "2024-03-02T08:00:00Z")

	builder := NewBuilder(DefaultOptions())
	analysis := builder.Analyze([]*models.MessageRecord{a, b})

	if len(analysis.Threads) != 0 {
		t.Fatalf("3-rune subject must not group, got %d groups", len(analysis.Threads))
	}
}

func TestSubjectFloorCountsRunes(t *testing.T) {
	// Five Korean syllables are five characters even though they are far
	// more than five bytes.
	a := record("a", "", "서버 점검", "2024-03-01T08:00:00Z")
	b := record("b", "", "회신: 서버 점검", "2024-03-02T08:00:00Z")

	builder := NewBuilder(DefaultOptions())
	analysis := builder.Analyze([]*models.MessageRecord{a, b})

	if len(analysis.Threads) != 1 {
		t.Fatalf("expected 1 group for 5-rune subject, got %d", len(analysis.Threads))
	}
}

func TestSubjectFallbackDisabled(t *testing.T) {
	a := record("a", "", "Quarterly Report", "2024-03-01T08:00:00Z")
	b := record("b", "", "Quarterly Report", "2024-03-02T08:00:00Z")

	builder := NewBuilder(Options{MinSubjectLength: 5, SubjectFallback: false})
	analysis := builder.Analyze([]*models.MessageRecord{a, b})

	if len(analysis.Threads) != 0 {
		t.Fatalf("fallback disabled but got %d groups", len(analysis.Threads))
	}
}

func TestHeaderGroupedRecordsSkipSubjectPass(t *testing.T) {
	// a/b thread by headers; c shares their normalized subject but has no
	// linkage, so it must not be pulled into their group.
	a := record("a", "", "Quarterly Report", "2024-03-01T08:00:00Z")
	b := record("b", "a", "RE: Quarterly Report", "2024-03-02T08:00:00Z")
	c := record("c", "", "Quarterly Report", "2024-03-03T08:00:00Z")

	builder := NewBuilder(DefaultOptions())
	analysis := builder.Analyze([]*models.MessageRecord{a, b, c})

	if len(analysis.Threads) != 1 {
		t.Fatalf("expected 1 group, got %d", len(analysis.Threads))
	}
	if analysis.Threads[0].Size() != 2 {
		t.Errorf("expected header group of 2, got %d", analysis.Threads[0].Size())
	}
	if c.ThreadID != "" {
		t.Errorf("record c should stay ungrouped, got thread %q", c.ThreadID)
	}
}

func TestMissingTimestampSortsOldest(t *testing.T) {
	a := record("a", "", "Incident follow-up", "2024-03-01T08:00:00Z")
	b := record("b", "a", "RE: Incident follow-up", "2024-03-02T08:00:00Z")
	late := record("zz", "a", "RE: Incident follow-up", "")

	builder := NewBuilder(DefaultOptions())
	analysis := builder.Analyze([]*models.MessageRecord{a, b, late})

	if len(analysis.Threads) != 1 || analysis.Threads[0].Size() != 3 {
		t.Fatalf("expected one group of 3")
	}
	// Known limitation carried over from the source behavior: the undated
	// record sorts as oldest and wins the root flag.
	if root := analysis.Threads[0].Root(); root.MessageID != "zz" {
		t.Errorf("expected undated record as root, got %s", root.MessageID)
	}
}

func TestEqualTimestampsTieBreakOnMessageID(t *testing.T) {
	ts := "2024-03-01T08:00:00Z"
	x := record("beta", "", "Deployment window", ts)
	y := record("alpha", "beta", "RE: Deployment window", ts)

	builder := NewBuilder(DefaultOptions())
	analysis := builder.Analyze([]*models.MessageRecord{x, y})

	if len(analysis.Threads) != 1 {
		t.Fatalf("expected 1 group, got %d", len(analysis.Threads))
	}
	if root := analysis.Threads[0].Root(); root.MessageID != "alpha" {
		t.Errorf("tie-break should pick lexically smaller id, got %s", root.MessageID)
	}
}

func TestRootUniqueness(t *testing.T) {
	records := []*models.MessageRecord{
		record("a", "", "Release plan", "2024-03-01T08:00:00Z"),
		record("b", "a", "RE: Release plan", "2024-03-02T08:00:00Z"),
		record("c", "a", "RE: Release plan", "2024-03-03T08:00:00Z"),
		record("d", "", "Quarterly Report", "2024-03-01T08:00:00Z"),
		record("e", "", "Quarterly Report", "2024-03-04T08:00:00Z"),
	}

	builder := NewBuilder(DefaultOptions())
	analysis := builder.Analyze(records)

	for _, group := range analysis.Threads {
		roots := 0
		for _, msg := range group.Messages {
			if msg.IsThreadRoot {
				roots++
			}
		}
		if roots != 1 {
			t.Errorf("group %s has %d roots, want exactly 1", group.ThreadID, roots)
		}
	}
}

func TestPartitionInvariant(t *testing.T) {
	records := []*models.MessageRecord{
		record("a", "", "Release plan", "2024-03-01T08:00:00Z"),
		record("b", "a", "RE: Release plan", "2024-03-02T08:00:00Z"),
		record("c", "", "Quarterly Report", "2024-03-01T08:00:00Z"),
		record("d", "", "Quarterly Report", "2024-03-04T08:00:00Z"),
		record("e", "gone", "RE: Ancient history", "2024-03-05T08:00:00Z"),
		record("f", "", "Hi!", "2024-03-06T08:00:00Z"),
	}

	builder := NewBuilder(DefaultOptions())
	analysis := builder.Analyze(records)

	seen := make(map[string]string) // message id -> thread id
	for _, group := range analysis.Threads {
		for _, msg := range group.Messages {
			if prev, dup := seen[msg.MessageID]; dup {
				t.Errorf("record %s in both %s and %s", msg.MessageID, prev, group.ThreadID)
			}
			seen[msg.MessageID] = group.ThreadID
		}
	}

	// Every input record is either in exactly one group or an ungrouped
	// singleton; nothing is lost and nothing appears twice.
	for _, rec := range records {
		threadID, grouped := seen[rec.MessageID]
		if grouped && rec.ThreadID != threadID {
			t.Errorf("record %s annotated with %q but stored in %q", rec.MessageID, rec.ThreadID, threadID)
		}
		if !grouped && rec.ThreadID != "" {
			t.Errorf("ungrouped record %s carries thread id %q", rec.MessageID, rec.ThreadID)
		}
	}
	if len(analysis.Records) != len(records) {
		t.Errorf("analysis returned %d records, want %d", len(analysis.Records), len(records))
	}
}

func TestReplyExclusion(t *testing.T) {
	records := []*models.MessageRecord{
		record("a", "", "Release plan", "2024-03-01T08:00:00Z"),
		record("b", "a", "RE: Release plan", "2024-03-02T08:00:00Z"),
		record("c", "missing", "RE: Elsewhere", "2024-03-03T08:00:00Z"),
		record("d", "", "Standalone note", "2024-03-04T08:00:00Z"),
	}

	builder := NewBuilder(DefaultOptions())
	analysis := builder.Analyze(records)

	for _, rec := range analysis.Originals {
		if rec.InReplyTo != "" {
			t.Errorf("record %s has in_reply_to=%q but passed the original filter", rec.MessageID, rec.InReplyTo)
		}
	}
	if len(analysis.Originals) != 2 {
		t.Errorf("expected 2 originals, got %d", len(analysis.Originals))
	}
}

func TestSyntheticIDAssignedDuringAnalyze(t *testing.T) {
	rec := &models.MessageRecord{
		SubjectRaw:    "No headers at all",
		Timestamp:     "2024-03-01T08:00:00Z",
		SourceLocator: "mail/raw_export_0042.msg",
	}

	builder := NewBuilder(DefaultOptions())
	builder.Analyze([]*models.MessageRecord{rec})
	first := rec.MessageID
	if first == "" {
		t.Fatal("expected synthetic message id")
	}

	again := &models.MessageRecord{
		SubjectRaw:    "No headers at all",
		Timestamp:     "2024-03-01T08:00:00Z",
		SourceLocator: "mail/raw_export_0042.msg",
	}
	builder.Analyze([]*models.MessageRecord{again})
	if again.MessageID != first {
		t.Errorf("synthetic id not reproducible: %q vs %q", again.MessageID, first)
	}
}

func TestThreadIDsAreSequential(t *testing.T) {
	records := []*models.MessageRecord{
		record("a", "", "Release plan", "2024-03-01T08:00:00Z"),
		record("b", "a", "RE: Release plan", "2024-03-02T08:00:00Z"),
		record("c", "", "Quarterly Report", "2024-03-01T08:00:00Z"),
		record("d", "", "Quarterly Report", "2024-03-04T08:00:00Z"),
	}

	builder := NewBuilder(DefaultOptions())
	analysis := builder.Analyze(records)

	if len(analysis.Threads) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(analysis.Threads))
	}
	if analysis.Threads[0].ThreadID != "thread_001" || analysis.Threads[1].ThreadID != "thread_002" {
		t.Errorf("unexpected thread ids %q, %q", analysis.Threads[0].ThreadID, analysis.Threads[1].ThreadID)
	}
}
