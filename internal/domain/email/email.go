// Package email binds Email's filter/sort grammar, thread-keyword
// aggregation, and mailbox-count-aware create/destroy (spec §6, §4.6)
// onto the generic objects-table store, and keeps internal/domain/thread's
// membership index current as messages come and go.
package email

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"

	"github.com/brandon/jmap-core/internal/domain/thread"
	"github.com/brandon/jmap-core/internal/query"
	"github.com/brandon/jmap-core/internal/store"
	"github.com/brandon/jmap-core/internal/sync"
	"github.com/brandon/jmap-core/internal/verb"
)

// Capability implements verb.Capability and verb.Collapsible for Email.
type Capability struct {
	*store.TypeStore
	mailboxes *store.TypeStore
	threads   *thread.Index
	blobs     *store.BlobStore
	source    sync.EmailSynchronizer

	ctx       context.Context
	accountId string
}

// New creates an Email capability. mailboxes is the Mailbox type's
// store, used to validate mailboxIds; blobs backs Email/import; source
// may be nil for accounts with no external mail source.
func New(ts, mailboxes *store.TypeStore, threads *thread.Index, blobs *store.BlobStore, source sync.EmailSynchronizer) *Capability {
	return &Capability{TypeStore: ts, mailboxes: mailboxes, threads: threads, blobs: blobs, source: source}
}

func (c *Capability) bound(ctx context.Context, accountId string) *Capability {
	return &Capability{
		TypeStore: c.TypeStore, mailboxes: c.mailboxes, threads: c.threads, blobs: c.blobs, source: c.source,
		ctx: ctx, accountId: accountId,
	}
}

func (c *Capability) SupportsCollapseThreads() bool { return true }

// Materialize adds threadId, read from the objects-table thread_id
// column, to the projected object.
func (c *Capability) Materialize(row verb.Row, properties []string) verb.Object {
	obj := c.TypeStore.Materialize(row, properties)
	if properties == nil || containsStr(properties, "threadId") {
		obj["threadId"] = row.ThreadId
	}
	return obj
}

func containsStr(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// FilterPredicate implements every leaf condition spec §6 lists for
// Email.
func (c *Capability) FilterPredicate(row query.Row, condition map[string]interface{}, scratch *query.Storage) (bool, error) {
	for name, operand := range condition {
		ok, err := c.evalOne(row, name, operand, scratch)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (c *Capability) evalOne(row query.Row, name string, operand interface{}, scratch *query.Storage) (bool, error) {
	switch {
	case name == "inMailbox":
		id, _ := operand.(string)
		return inMailboxSet(row, id), nil
	case name == "inMailboxOtherThan":
		ids := stringList(operand)
		mailboxIds, _ := row.Fields["mailboxIds"].(map[string]interface{})
		for _, id := range ids {
			if truthy(mailboxIds[id]) {
				return false, nil
			}
		}
		return true, nil
	case name == "before", name == "after":
		return compareDate(row, name, operand)
	case name == "minSize", name == "maxSize":
		return compareSize(row, name, operand)
	case name == "hasKeyword":
		kw, _ := operand.(string)
		return hasKeyword(row, kw), nil
	case name == "notKeyword":
		kw, _ := operand.(string)
		return !hasKeyword(row, kw), nil
	case name == "hasAttachment":
		want, _ := operand.(bool)
		got, _ := row.Fields["hasAttachment"].(bool)
		return got == want, nil
	case name == "allInThreadHaveKeyword":
		kw, _ := operand.(string)
		agg := c.threadAgg(threadIdOf(row), scratch)
		return agg.total > 0 && agg.has[kw] == agg.total, nil
	case name == "someInThreadHaveKeyword":
		kw, _ := operand.(string)
		agg := c.threadAgg(threadIdOf(row), scratch)
		return agg.has[kw] > 0, nil
	case name == "noneInThreadHaveKeyword":
		kw, _ := operand.(string)
		agg := c.threadAgg(threadIdOf(row), scratch)
		return agg.has[kw] == 0, nil
	case name == "text":
		term, _ := operand.(string)
		return containsFold(subject(row), term) || containsFold(fromAddr(row), term) ||
			containsFold(strings.Join(addrList(row, "to"), " "), term) ||
			containsFold(strings.Join(addrList(row, "cc"), " "), term) ||
			containsFold(strings.Join(addrList(row, "bcc"), " "), term) ||
			containsFold(bodyText(row), term), nil
	case name == "from":
		term, _ := operand.(string)
		return containsFold(fromAddr(row), term), nil
	case name == "to":
		term, _ := operand.(string)
		return containsFold(strings.Join(addrList(row, "to"), " "), term), nil
	case name == "cc":
		term, _ := operand.(string)
		return containsFold(strings.Join(addrList(row, "cc"), " "), term), nil
	case name == "bcc":
		term, _ := operand.(string)
		return containsFold(strings.Join(addrList(row, "bcc"), " "), term), nil
	case name == "subject":
		term, _ := operand.(string)
		return containsFold(subject(row), term), nil
	case name == "body":
		term, _ := operand.(string)
		return containsFold(bodyText(row), term), nil
	case name == "header":
		return evalHeader(row, operand), nil
	default:
		return false, fmt.Errorf("invalidArguments: unknown Email filter predicate %q", name)
	}
}

func inMailboxSet(row query.Row, id string) bool {
	mailboxIds, _ := row.Fields["mailboxIds"].(map[string]interface{})
	return truthy(mailboxIds[id])
}

func truthy(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}

// stringList normalizes a scalar-or-list argument to []string, resolving
// the open question of inMailboxOtherThan's shape at the binding
// boundary (spec §9's Open Questions).
func stringList(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, it := range t {
			if s, ok := it.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func compareDate(row query.Row, name string, operand interface{}) (bool, error) {
	bound, ok := operand.(string)
	if !ok {
		return false, fmt.Errorf("invalidArguments: %s must be a date string", name)
	}
	boundT, err := time.Parse(time.RFC3339, bound)
	if err != nil {
		return false, fmt.Errorf("invalidArguments: %s is not a valid date: %w", name, err)
	}
	raw, _ := row.Fields["receivedAt"].(string)
	rowT, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return false, nil
	}
	if name == "before" {
		return rowT.Before(boundT), nil
	}
	return rowT.After(boundT), nil
}

func compareSize(row query.Row, name string, operand interface{}) (bool, error) {
	bound, ok := operand.(float64)
	if !ok {
		return false, fmt.Errorf("invalidArguments: %s must be a number", name)
	}
	size, _ := row.Fields["size"].(float64)
	if name == "minSize" {
		return size >= bound, nil
	}
	return size <= bound, nil
}

func hasKeyword(row query.Row, kw string) bool {
	kws, _ := row.Fields["keywords"].(map[string]interface{})
	return truthy(kws[kw])
}

func evalHeader(row query.Row, operand interface{}) bool {
	items := stringList(operand)
	if len(items) == 0 {
		return false
	}
	headers, _ := row.Fields["headers"].(map[string]interface{})
	name := items[0]
	val, _ := headers[name].(string)
	if len(items) == 1 {
		return val != ""
	}
	return containsFold(val, items[1])
}

func subject(row query.Row) string {
	s, _ := row.Fields["subject"].(string)
	return s
}

func fromAddr(row query.Row) string {
	s, _ := row.Fields["from"].(string)
	return s
}

func addrList(row query.Row, key string) []string {
	raw, _ := row.Fields[key].([]interface{})
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func bodyText(row query.Row) string {
	s, _ := row.Fields["textBody"].(string)
	return s
}

func containsFold(haystack, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(term))
}

func threadIdOf(row query.Row) string {
	s, _ := row.Fields["threadId"].(string)
	return s
}

type threadKeywordAgg struct {
	total int
	has   map[string]int
}

// threadAgg computes (once per thread per query, via scratch) how many
// of a thread's messages carry each keyword, grounding
// allInThreadHaveKeyword/someInThreadHaveKeyword/noneInThreadHaveKeyword
// (spec §4.6) without an O(rows²) scan.
func (c *Capability) threadAgg(threadId string, scratch *query.Storage) threadKeywordAgg {
	v := scratch.GetOrCompute("threadKeywords:"+threadId, func() interface{} {
		agg := threadKeywordAgg{has: make(map[string]int)}
		if c.ctx == nil || threadId == "" {
			return agg
		}
		rows, err := c.TypeStore.LoadAll(c.ctx, c.accountId)
		if err != nil {
			return agg
		}
		for _, r := range rows {
			if !r.Active || r.ThreadId != threadId {
				continue
			}
			agg.total++
			kws, _ := r.Fields["keywords"].(map[string]interface{})
			for k, val := range kws {
				if truthy(val) {
					agg.has[k]++
				}
			}
		}
		return agg
	})
	return v.(threadKeywordAgg)
}

// SortKey implements every sort field spec §6 lists for Email,
// including the ":keyword" suffixed fields.
func (c *Capability) SortKey(row query.Row, property string, scratch *query.Storage) (query.SortValue, error) {
	base, arg, hasArg := strings.Cut(property, ":")
	switch base {
	case "id":
		return query.SortValue{Str: row.Id}, nil
	case "receivedAt", "sentAt":
		raw, _ := row.Fields[base].(string)
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return query.SortValue{Num: 0, IsNumeric: true}, nil
		}
		return query.SortValue{Num: float64(t.Unix()), IsNumeric: true}, nil
	case "size":
		n, _ := row.Fields["size"].(float64)
		return query.SortValue{Num: n, IsNumeric: true}, nil
	case "isunread":
		n := 0.0
		if !hasKeyword(row, "$seen") {
			n = 1
		}
		return query.SortValue{Num: n, IsNumeric: true}, nil
	case "subject":
		return query.SortValue{Str: subject(row)}, nil
	case "from":
		return query.SortValue{Str: fromAddr(row)}, nil
	case "to":
		return query.SortValue{Str: strings.Join(addrList(row, "to"), ",")}, nil
	case "keyword":
		if !hasArg {
			return query.SortValue{}, fmt.Errorf("invalidArguments: keyword sort requires a :name suffix")
		}
		n := 0.0
		if hasKeyword(row, arg) {
			n = 1
		}
		return query.SortValue{Num: n, IsNumeric: true}, nil
	case "allInThreadHaveKeyword", "someInThreadHaveKeyword":
		if !hasArg {
			return query.SortValue{}, fmt.Errorf("invalidArguments: %s sort requires a :name suffix", base)
		}
		agg := c.threadAgg(threadIdOf(row), scratch)
		n := 0.0
		if base == "allInThreadHaveKeyword" {
			if agg.total > 0 && agg.has[arg] == agg.total {
				n = 1
			}
		} else if agg.has[arg] > 0 {
			n = 1
		}
		return query.SortValue{Num: n, IsNumeric: true}, nil
	default:
		return query.SortValue{}, fmt.Errorf("invalidArguments: unknown Email sort field %q", property)
	}
}

// Create validates mailboxIds, assigns a thread (reusing the caller's
// if given, otherwise starting a new one), and registers membership
// with the thread index.
func (c *Capability) Create(ctx context.Context, accountId string, props map[string]interface{}) (verb.Object, *verb.VerbError) {
	mailboxIds, _ := props["mailboxIds"].(map[string]interface{})
	if len(mailboxIds) == 0 {
		return nil, &verb.VerbError{Type: "invalidArguments", Description: "mailboxIds must not be empty"}
	}
	for id, v := range mailboxIds {
		if !truthy(v) {
			continue
		}
		if _, found, err := c.mailboxes.LoadOne(ctx, accountId, id); err != nil {
			return nil, &verb.VerbError{Type: "serverError", Description: err.Error()}
		} else if !found {
			return nil, &verb.VerbError{Type: "invalidMailboxes", Description: fmt.Sprintf("mailbox %s does not exist", id)}
		}
	}

	threadId, _ := props["threadId"].(string)
	if threadId == "" {
		threadId = uuid.NewString()
	}
	fields := make(map[string]interface{}, len(props)+1)
	for k, v := range props {
		fields[k] = v
	}
	fields["threadId"] = threadId

	id := uuid.NewString()
	obj, verr := c.TypeStore.CreateWithId(ctx, accountId, id, threadId, fields)
	if verr != nil {
		return nil, verr
	}
	obj["threadId"] = threadId
	if c.threads != nil {
		if err := c.threads.AddMember(ctx, accountId, threadId, id); err != nil {
			return nil, &verb.VerbError{Type: "serverError", Description: err.Error()}
		}
	}
	return obj, nil
}

// Update validates any mailboxIds the caller is moving the message
// into before delegating to the generic merge.
func (c *Capability) Update(ctx context.Context, accountId, id string, props map[string]interface{}) (verb.Object, *verb.VerbError) {
	if mailboxIds, ok := props["mailboxIds"].(map[string]interface{}); ok {
		for mid, v := range mailboxIds {
			if !truthy(v) {
				continue
			}
			if _, found, err := c.mailboxes.LoadOne(ctx, accountId, mid); err != nil {
				return nil, &verb.VerbError{Type: "serverError", Description: err.Error()}
			} else if !found {
				return nil, &verb.VerbError{Type: "invalidMailboxes", Description: fmt.Sprintf("mailbox %s does not exist", mid)}
			}
		}
	}
	return c.TypeStore.Update(ctx, accountId, id, props)
}

// Destroy removes threadId membership before destroying the row.
func (c *Capability) Destroy(ctx context.Context, accountId, id string) *verb.VerbError {
	row, ok, err := c.TypeStore.LoadOne(ctx, accountId, id)
	if err != nil {
		return &verb.VerbError{Type: "serverError", Description: err.Error()}
	}
	if !ok {
		return &verb.VerbError{Type: "notFound"}
	}
	if verr := c.TypeStore.Destroy(ctx, accountId, id); verr != nil {
		return verr
	}
	if c.threads != nil && row.ThreadId != "" {
		if err := c.threads.RemoveMember(ctx, accountId, row.ThreadId, id); err != nil {
			return &verb.VerbError{Type: "serverError", Description: err.Error()}
		}
	}
	return nil
}

// Sync pulls messages for every mailbox this account has from source,
// skipping messages the store already holds (by messageId).
func (c *Capability) Sync(ctx context.Context, accountId string) error {
	if c.source == nil {
		return nil
	}
	mailboxRows, err := c.mailboxes.LoadAll(ctx, accountId)
	if err != nil {
		return err
	}
	known, err := c.knownMessageIds(ctx, accountId)
	if err != nil {
		return err
	}

	for _, mb := range mailboxRows {
		if !mb.Active {
			continue
		}
		path, _ := mb.Fields["path"].(string)
		if path == "" {
			continue
		}
		messages, err := c.source.FetchMessages(ctx, accountId, path, 0)
		if err != nil {
			return fmt.Errorf("failed to sync mailbox %s: %w", path, err)
		}
		for _, m := range messages {
			if known[m.MessageId] {
				continue
			}
			props := map[string]interface{}{
				"mailboxIds":    map[string]interface{}{mb.Id: true},
				"keywords":      flagsToKeywords(m.Flags),
				"subject":       m.Subject,
				"from":          m.SenderEmail,
				"to":            toInterfaceList(m.To),
				"cc":            toInterfaceList(m.Cc),
				"bcc":           toInterfaceList(m.Bcc),
				"receivedAt":    m.Date.Format(time.RFC3339),
				"size":          float64(len(m.BodyText) + len(m.BodyHTML)),
				"hasAttachment": false,
				"textBody":      m.BodyText,
				"htmlBody":      m.BodyHTML,
				"messageId":     m.MessageId,
			}
			if _, verr := c.Create(ctx, accountId, props); verr != nil {
				return fmt.Errorf(verr.Error())
			}
			known[m.MessageId] = true
		}
	}
	return nil
}

func (c *Capability) knownMessageIds(ctx context.Context, accountId string) (map[string]bool, error) {
	rows, err := c.TypeStore.LoadAll(ctx, accountId)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(rows))
	for _, r := range rows {
		if id, ok := r.Fields["messageId"].(string); ok && id != "" {
			known[id] = true
		}
	}
	return known, nil
}

func flagsToKeywords(flags []string) map[string]interface{} {
	out := make(map[string]interface{}, len(flags))
	for _, f := range flags {
		out[imapFlagToKeyword(f)] = true
	}
	return out
}

func imapFlagToKeyword(flag string) string {
	switch strings.TrimPrefix(flag, "\\") {
	case "Seen":
		return "$seen"
	case "Answered":
		return "$answered"
	case "Flagged":
		return "$flagged"
	case "Draft":
		return "$draft"
	default:
		return flag
	}
}

func toInterfaceList(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// ImportSpec describes one message Email/import is asked to materialize
// from an already-uploaded blob.
type ImportSpec struct {
	BlobId     string
	MailboxIds map[string]interface{}
	Keywords   map[string]interface{}
	ReceivedAt string
}

// Import parses blobId's raw RFC 5322 content with enmime and creates an
// Email row from it, placed into MailboxIds with Keywords set. Email/import
// is not one of the uniform verbs (spec §6), since its input is a blob
// rather than a property bag.
func (c *Capability) Import(ctx context.Context, accountId string, spec ImportSpec) (verb.Object, *verb.VerbError) {
	if c.blobs == nil {
		return nil, &verb.VerbError{Type: "serverError", Description: "no blob store configured"}
	}
	if len(spec.MailboxIds) == 0 {
		return nil, &verb.VerbError{Type: "invalidArguments", Description: "mailboxIds must not be empty"}
	}
	raw, err := c.blobs.GetBlob(ctx, accountId, spec.BlobId)
	if err != nil {
		return nil, &verb.VerbError{Type: "blobNotFound", Description: err.Error()}
	}
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, &verb.VerbError{Type: "invalidEmail", Description: err.Error()}
	}

	receivedAt := spec.ReceivedAt
	if receivedAt == "" {
		receivedAt = time.Now().UTC().Format(time.RFC3339)
	}
	keywords := spec.Keywords
	if keywords == nil {
		keywords = map[string]interface{}{}
	}
	props := map[string]interface{}{
		"mailboxIds":    spec.MailboxIds,
		"keywords":      keywords,
		"subject":       env.GetHeader("Subject"),
		"from":          env.GetHeader("From"),
		"to":            []interface{}{env.GetHeader("To")},
		"cc":            []interface{}{env.GetHeader("Cc")},
		"receivedAt":    receivedAt,
		"size":          float64(len(raw)),
		"hasAttachment": len(env.Attachments) > 0,
		"textBody":      env.Text,
		"htmlBody":      env.HTML,
	}
	return c.Create(ctx, accountId, props)
}

// CopySpec describes one message Email/copy is asked to duplicate from
// another account.
type CopySpec struct {
	SourceId   string
	MailboxIds map[string]interface{}
	Keywords   map[string]interface{}
}

// Copy materializes spec.SourceId from fromAccountId's store into
// accountId, overriding mailboxIds/keywords if given. Email/copy, like
// Email/import, carries a fromAccountId the uniform /set verb has no
// slot for (spec §6).
func (c *Capability) Copy(ctx context.Context, fromAccountId, accountId string, spec CopySpec) (verb.Object, *verb.VerbError) {
	row, ok, err := c.TypeStore.LoadOne(ctx, fromAccountId, spec.SourceId)
	if err != nil {
		return nil, &verb.VerbError{Type: "serverError", Description: err.Error()}
	}
	if !ok {
		return nil, &verb.VerbError{Type: "notFound", Description: spec.SourceId}
	}
	props := c.Materialize(row, nil)
	delete(props, "id")
	delete(props, "threadId")
	if spec.MailboxIds != nil {
		props["mailboxIds"] = spec.MailboxIds
	}
	if spec.Keywords != nil {
		props["keywords"] = spec.Keywords
	}
	return c.Create(ctx, accountId, props)
}
