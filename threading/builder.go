package threading

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"threadmail/models"
	"threadmail/utils"
)

// DefaultMinSubjectLength is the floor below which normalized subjects are
// considered too short or generic to merge on.
const DefaultMinSubjectLength = 5

// Options tune the builder. SubjectFallback enables the secondary,
// subject-equality grouping pass for messages the headers could not place;
// MinSubjectLength is measured in runes.
type Options struct {
	MinSubjectLength int
	SubjectFallback  bool
}

// DefaultOptions returns the builder defaults.
func DefaultOptions() Options {
	return Options{
		MinSubjectLength: DefaultMinSubjectLength,
		SubjectFallback:  true,
	}
}

// Builder partitions a batch of message records into thread groups. A
// builder holds no state between batches, so independent batches may run
// concurrently on separate builders.
type Builder struct {
	opts Options
	log  *utils.Logger
}

// NewBuilder creates a thread builder with the given options.
func NewBuilder(opts Options) *Builder {
	if opts.MinSubjectLength <= 0 {
		opts.MinSubjectLength = DefaultMinSubjectLength
	}
	return &Builder{
		opts: opts,
		log:  utils.Log.WithField("component", "threading"),
	}
}

// Analysis bundles the annotated batch with its retained thread groups and
// the original-only subset handed to ticket creation.
type Analysis struct {
	Records   []*models.MessageRecord `json:"records"`
	Threads   []*models.ThreadGroup   `json:"threads"`
	Originals []*models.MessageRecord `json:"originals"`
}

// Analyze runs the full pipeline over one batch: synthetic id fallback and
// subject normalization, both grouping passes, thread id and root
// assignment, then the original-message filter.
func (b *Builder) Analyze(records []*models.MessageRecord) *Analysis {
	withHeaders := 0
	for _, rec := range records {
		if rec.MessageID == "" {
			rec.MessageID = DeriveMessageID(rec.SourceLocator, rec.Timestamp)
		}
		rec.SubjectNormalized = Normalize(rec.SubjectRaw)
		if rec.InReplyTo != "" || len(rec.References) > 0 {
			withHeaders++
			b.log.Debug("thread headers on %s: in_reply_to=%q references=%d",
				rec.SourceLocator, rec.InReplyTo, len(rec.References))
		}
	}
	b.log.Info("analyzing %d messages (%d carry thread headers)", len(records), withHeaders)

	groups := b.Group(records)
	b.Assign(groups)
	originals := OriginalOnly(records)

	b.log.Info("%d thread groups; %d originals selected, %d replies excluded",
		len(groups), len(originals), len(records)-len(originals))

	return &Analysis{Records: records, Threads: groups, Originals: originals}
}

// Group partitions records into thread groups. Pass one is a breadth-first
// closure over the undirected union of the replies-to and referenced-by
// relations; pass two clusters the leftovers by normalized subject equality.
// Only groups with more than one member are returned; everything else
// remains an unmaterialized singleton thread.
func (b *Builder) Group(records []*models.MessageRecord) []*models.ThreadGroup {
	idToRecord := make(map[string]*models.MessageRecord, len(records))
	for _, rec := range records {
		if rec.MessageID != "" {
			idToRecord[rec.MessageID] = rec
		}
	}

	adjacency := buildAdjacency(records)

	var groups []*models.ThreadGroup
	visited := make(map[string]bool, len(records))
	placed := make(map[string]bool, len(records))

	for _, rec := range records {
		if visited[rec.MessageID] {
			continue
		}
		members := collectLinked(rec, idToRecord, adjacency, visited)
		if len(members) > 1 {
			groups = append(groups, &models.ThreadGroup{Messages: members})
			for _, m := range members {
				placed[m.MessageID] = true
			}
		}
	}

	if b.opts.SubjectFallback {
		groups = append(groups, b.groupBySubject(records, placed)...)
	}

	return groups
}

// buildAdjacency maps each message id to the ids it is linked to, in both
// directions, so traversal never needs to re-scan the full batch. Pointers
// at identifiers outside the batch still get edges; they simply resolve to
// nothing during traversal.
func buildAdjacency(records []*models.MessageRecord) map[string][]string {
	adjacency := make(map[string][]string, len(records))
	addEdge := func(from, to string) {
		if from == "" || to == "" || from == to {
			return
		}
		adjacency[from] = append(adjacency[from], to)
		adjacency[to] = append(adjacency[to], from)
	}
	for _, rec := range records {
		addEdge(rec.MessageID, rec.InReplyTo)
		for _, ref := range rec.References {
			addEdge(rec.MessageID, ref)
		}
	}
	return adjacency
}

// collectLinked expands a work queue from the starting record and returns
// every batch member reachable through reply/reference linkage, regardless
// of link direction.
func collectLinked(start *models.MessageRecord, idToRecord map[string]*models.MessageRecord,
	adjacency map[string][]string, visited map[string]bool) []*models.MessageRecord {

	visited[start.MessageID] = true
	members := []*models.MessageRecord{start}
	queue := []string{start.MessageID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, linked := range adjacency[current] {
			if visited[linked] {
				continue
			}
			rec, ok := idToRecord[linked]
			if !ok {
				// Header points at a message outside this batch.
				continue
			}
			visited[linked] = true
			members = append(members, rec)
			queue = append(queue, linked)
		}
	}

	return members
}

// groupBySubject clusters records not placed by header linkage on exact
// equality of their normalized subject. Subjects shorter than the configured
// floor are skipped so generic one-word subjects never merge unrelated mail.
func (b *Builder) groupBySubject(records []*models.MessageRecord, placed map[string]bool) []*models.ThreadGroup {
	index := make(map[string][]*models.MessageRecord)
	var order []string

	for _, rec := range records {
		if placed[rec.MessageID] {
			continue
		}
		subject := rec.SubjectNormalized
		if utf8.RuneCountInString(subject) < b.opts.MinSubjectLength {
			continue
		}
		if _, seen := index[subject]; !seen {
			order = append(order, subject)
		}
		index[subject] = append(index[subject], rec)
	}

	var groups []*models.ThreadGroup
	for _, subject := range order {
		cluster := index[subject]
		if len(cluster) < 2 {
			continue
		}
		groups = append(groups, &models.ThreadGroup{Messages: cluster})
		for _, rec := range cluster {
			placed[rec.MessageID] = true
		}
		b.log.Debug("subject fallback thread %q (%d messages)", subject, len(cluster))
	}

	return groups
}

// Assign orders every group chronologically, hands out sequential thread
// identifiers, and flags each group's earliest message as the thread root.
// Records without a usable timestamp sort as oldest via the sentinel; equal
// sort keys fall back to message id order so the root is deterministic.
func (b *Builder) Assign(groups []*models.ThreadGroup) {
	for i, group := range groups {
		threadID := fmt.Sprintf("thread_%03d", i+1)
		sort.SliceStable(group.Messages, func(x, y int) bool {
			mx, my := group.Messages[x], group.Messages[y]
			if mx.SortKey() != my.SortKey() {
				return mx.SortKey() < my.SortKey()
			}
			return mx.MessageID < my.MessageID
		})
		group.ThreadID = threadID
		for j, msg := range group.Messages {
			msg.ThreadID = threadID
			msg.IsThreadRoot = j == 0
		}
	}
}

// OriginalOnly returns the records carrying no reply pointer. This is the
// filter ticket creation consumes: a message whose headers mark it as a
// reply is never promoted to a ticket, even when timestamp ordering made it
// the root of its own thread.
func OriginalOnly(records []*models.MessageRecord) []*models.MessageRecord {
	originals := make([]*models.MessageRecord, 0, len(records))
	for _, rec := range records {
		if rec.IsOriginal() {
			originals = append(originals, rec)
		}
	}
	return originals
}
