// Package submission binds EmailSubmission (spec §6) onto the generic
// objects-table store. Creating a submission sends the referenced
// email through an EmailSynchronizer and records the outcome;
// EmailSubmission/set's onSuccessUpdateEmail and onSuccessDestroyEmail
// arguments are handled by the handler layer, which runs an implicit
// Email/set against the emails named by succeeded submissions.
package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brandon/jmap-core/internal/query"
	"github.com/brandon/jmap-core/internal/store"
	"github.com/brandon/jmap-core/internal/sync"
	"github.com/brandon/jmap-core/internal/verb"
)

// EmailLookup is the narrow view of Email this package needs: reading
// an email's current fields (to build the outgoing message and the
// submission's denormalized threadId) without importing
// internal/domain/email and creating an import cycle the other way.
type EmailLookup interface {
	LoadOne(ctx context.Context, accountId, id string) (verb.Row, bool, error)
}

// Capability implements verb.Capability for EmailSubmission.
type Capability struct {
	*store.TypeStore
	emails EmailLookup
	source sync.EmailSynchronizer
}

func New(ts *store.TypeStore, emails EmailLookup, source sync.EmailSynchronizer) *Capability {
	return &Capability{TypeStore: ts, emails: emails, source: source}
}

func (c *Capability) FilterPredicate(row query.Row, condition map[string]interface{}, scratch *query.Storage) (bool, error) {
	for name, operand := range condition {
		switch name {
		case "emailIds":
			want, _ := operand.(string)
			got, _ := row.Fields["emailId"].(string)
			if got != want {
				return false, nil
			}
		case "threadIds":
			want, _ := operand.(string)
			got, _ := row.Fields["threadId"].(string)
			if got != want {
				return false, nil
			}
		case "undoStatus":
			want, _ := operand.(string)
			got, _ := row.Fields["undoStatus"].(string)
			if got != want {
				return false, nil
			}
		default:
			return false, fmt.Errorf("invalidArguments: unknown EmailSubmission filter predicate %q", name)
		}
	}
	return true, nil
}

// SortKey implements emailId, threadId, and sentAt; the implicit final
// tie-break on submission id ascending is handled by query.Sort itself.
func (c *Capability) SortKey(row query.Row, property string, scratch *query.Storage) (query.SortValue, error) {
	switch property {
	case "emailId":
		s, _ := row.Fields["emailId"].(string)
		return query.SortValue{Str: s}, nil
	case "threadId":
		s, _ := row.Fields["threadId"].(string)
		return query.SortValue{Str: s}, nil
	case "sentAt":
		raw, _ := row.Fields["sentAt"].(string)
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return query.SortValue{Num: 0, IsNumeric: true}, nil
		}
		return query.SortValue{Num: float64(t.Unix()), IsNumeric: true}, nil
	default:
		return query.SortValue{}, fmt.Errorf("invalidArguments: unknown EmailSubmission sort field %q", property)
	}
}

// Create looks up the referenced email, sends it through source (if
// configured), and records the submission with the email's threadId
// denormalized in for the threadId sort key and filter.
func (c *Capability) Create(ctx context.Context, accountId string, props map[string]interface{}) (verb.Object, *verb.VerbError) {
	emailId, _ := props["emailId"].(string)
	if emailId == "" {
		return nil, &verb.VerbError{Type: "invalidArguments", Description: "emailId is required"}
	}
	emailRow, found, err := c.emails.LoadOne(ctx, accountId, emailId)
	if err != nil {
		return nil, &verb.VerbError{Type: "serverError", Description: err.Error()}
	}
	if !found {
		return nil, &verb.VerbError{Type: "invalidEmail", Description: "emailId does not reference an existing email"}
	}

	if c.source != nil {
		if err := c.source.Send(ctx, accountId, outgoingFromEmail(emailRow)); err != nil {
			return nil, &verb.VerbError{Type: "serverError", Description: fmt.Sprintf("failed to send message: %v", err)}
		}
	}

	fields := make(map[string]interface{}, len(props)+3)
	for k, v := range props {
		fields[k] = v
	}
	fields["threadId"] = emailRow.ThreadId
	fields["sentAt"] = time.Now().UTC().Format(time.RFC3339)
	fields["undoStatus"] = "final"

	return c.TypeStore.CreateWithId(ctx, accountId, uuid.NewString(), emailRow.ThreadId, fields)
}

func outgoingFromEmail(row verb.Row) sync.OutgoingMessage {
	return sync.OutgoingMessage{
		To:       stringsOf(row.Fields["to"]),
		Cc:       stringsOf(row.Fields["cc"]),
		Bcc:      stringsOf(row.Fields["bcc"]),
		Subject:  strOf(row.Fields["subject"]),
		BodyText: strOf(row.Fields["textBody"]),
		BodyHTML: strOf(row.Fields["htmlBody"]),
	}
}

func strOf(v interface{}) string {
	s, _ := v.(string)
	return s
}

func stringsOf(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, it := range raw {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
