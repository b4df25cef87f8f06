package ingest

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"golang.org/x/time/rate"

	"threadmail/models"
	"threadmail/threading"
	"threadmail/utils"
)

// Client wraps an IMAP connection and converts fetched messages into
// MessageRecords for the thread detector. It realizes the header-extraction
// side of the pipeline; the threading core itself never touches the network.
type Client struct {
	client  *client.Client
	limiter *rate.Limiter
	cache   *RecordCache
	ttl     time.Duration
	log     *utils.Logger
}

// NewClient connects and authenticates against an IMAP server over TLS.
func NewClient(server string, port int, username, password string) (*Client, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", server, port), nil)
	if err != nil {
		return nil, utils.IngestError("connection failed", err).WithContext("server", server)
	}

	if err := c.Login(username, password); err != nil {
		c.Logout()
		return nil, utils.IngestError("login failed", err).WithContext("username", username)
	}

	return &Client{
		client:  c,
		limiter: rate.NewLimiter(rate.Every(time.Minute/60), 1),
		log:     utils.Log.WithField("component", "ingest"),
	}, nil
}

// SetFetchRate throttles fetch commands to perMinute requests per minute so
// large batch runs stay under server limits.
func (c *Client) SetFetchRate(perMinute int) {
	if perMinute < 1 {
		perMinute = 1
	}
	c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// UseCache enables reuse of recent folder fetches.
func (c *Client) UseCache(cache *RecordCache, ttl time.Duration) {
	c.cache = cache
	c.ttl = ttl
}

// Close closes the IMAP connection
func (c *Client) Close() error {
	return c.client.Logout()
}

// FetchRecords retrieves up to limit of the newest messages in the folder
// and returns them as MessageRecords carrying the threading headers.
func (c *Client) FetchRecords(folder string, limit uint32) ([]*models.MessageRecord, error) {
	cacheKey := fmt.Sprintf("records:%s:%d", folder, limit)
	if c.cache != nil {
		if records, ok := c.cache.Get(cacheKey); ok {
			c.log.Debug("cache hit for %s (%d records)", folder, len(records))
			return records, nil
		}
	}

	mbox, err := c.client.Select(folder, true)
	if err != nil {
		return nil, utils.IngestError("folder select failed", err).WithContext("folder", folder)
	}

	if mbox.Messages == 0 {
		return []*models.MessageRecord{}, nil
	}

	from := uint32(1)
	if mbox.Messages > limit {
		from = mbox.Messages - limit + 1
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, mbox.Messages)

	// The envelope carries Message-ID and In-Reply-To; References only
	// exists as a raw header, so fetch it as a peeked header section.
	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{
			Specifier: imap.HeaderSpecifier,
			Fields:    []string{"REFERENCES"},
		},
		Peek: true,
	}

	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchUid,
		section.FetchItem(),
	}

	if err := c.limiter.Wait(context.Background()); err != nil {
		return nil, utils.IngestError("rate limiter interrupted", err)
	}

	messages := make(chan *imap.Message, limit)
	done := make(chan error, 1)
	go func() {
		done <- c.client.Fetch(seqSet, items, messages)
	}()

	var records []*models.MessageRecord
	for msg := range messages {
		records = append(records, recordFromMessage(msg, folder, section))
	}

	if err := <-done; err != nil {
		return records, utils.IngestError("fetch failed", err).WithContext("folder", folder)
	}

	c.log.Info("fetched %d records from %s", len(records), folder)

	if c.cache != nil {
		c.cache.Set(cacheKey, records, c.ttl)
	}

	return records, nil
}

var angleID = regexp.MustCompile(`<([^>]+)>`)

// recordFromMessage maps one fetched message to a MessageRecord. Missing
// headers stay empty; a missing Message-ID gets a deterministic synthetic id
// derived from the source locator and timestamp.
func recordFromMessage(msg *imap.Message, folder string, section *imap.BodySectionName) *models.MessageRecord {
	rec := &models.MessageRecord{
		SourceLocator: fmt.Sprintf("%s/%d", folder, msg.Uid),
	}

	if msg.Envelope != nil {
		rec.SubjectRaw = msg.Envelope.Subject
		if !msg.Envelope.Date.IsZero() {
			rec.Timestamp = msg.Envelope.Date.UTC().Format(time.RFC3339)
		}
		rec.MessageID = strings.Trim(strings.TrimSpace(msg.Envelope.MessageId), "<>")
		rec.InReplyTo = firstAngleID(msg.Envelope.InReplyTo)
	}

	if r := msg.GetBody(section); r != nil {
		header, _ := io.ReadAll(r)
		rec.References = ParseReferences(string(header))
	}

	if rec.MessageID == "" {
		rec.MessageID = threading.DeriveMessageID(rec.SourceLocator, rec.Timestamp)
	}

	return rec
}

// firstAngleID extracts the first <message-id> token from a raw In-Reply-To
// value. Values without angle brackets are treated as absent.
func firstAngleID(raw string) string {
	if m := angleID.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

// ParseReferences extracts the ordered ancestor ids from a raw References
// header line. Bracketed ids are preferred; bare whitespace-separated tokens
// are accepted as a fallback for sloppy senders.
func ParseReferences(header string) []string {
	idx := strings.Index(header, ":")
	if idx < 0 {
		return nil
	}
	value := strings.TrimSpace(header[idx+1:])
	if value == "" {
		return nil
	}

	matches := angleID.FindAllStringSubmatch(value, -1)
	if len(matches) > 0 {
		refs := make([]string, 0, len(matches))
		for _, m := range matches {
			refs = append(refs, m[1])
		}
		return refs
	}

	return strings.Fields(value)
}
