// Package contact binds Addressbook, Contact, and ContactGroup (spec
// §6) onto the generic objects-table store. Contact's /query grammar
// mirrors Email's text/name/email leaf predicates at reduced scope.
package contact

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/brandon/jmap-core/internal/query"
	"github.com/brandon/jmap-core/internal/store"
	"github.com/brandon/jmap-core/internal/sync"
	"github.com/brandon/jmap-core/internal/verb"
)

// AddressbookCapability implements verb.Capability for Addressbook,
// which has no /query or /set grammar (spec §6 lists only get/changes)
// but may be populated by a CollabSynchronizer.
type AddressbookCapability struct {
	*store.TypeStore
	source sync.CollabSynchronizer
}

func NewAddressbook(ts *store.TypeStore, source sync.CollabSynchronizer) *AddressbookCapability {
	return &AddressbookCapability{TypeStore: ts, source: source}
}

func (c *AddressbookCapability) FilterPredicate(query.Row, map[string]interface{}, *query.Storage) (bool, error) {
	return false, fmt.Errorf("invalidArguments: Addressbook has no query grammar")
}

func (c *AddressbookCapability) SortKey(query.Row, string, *query.Storage) (query.SortValue, error) {
	return query.SortValue{}, fmt.Errorf("invalidArguments: Addressbook has no sort grammar")
}

func (c *AddressbookCapability) Sync(ctx context.Context, accountId string) error {
	if c.source == nil {
		return nil
	}
	_, err := c.source.SyncAddressbooks(ctx, accountId)
	return err
}

// ContactCapability implements verb.Capability for Contact.
type ContactCapability struct {
	*store.TypeStore
	addressbooks *store.TypeStore
}

func NewContact(ts, addressbooks *store.TypeStore) *ContactCapability {
	return &ContactCapability{TypeStore: ts, addressbooks: addressbooks}
}

func (c *ContactCapability) FilterPredicate(row query.Row, condition map[string]interface{}, scratch *query.Storage) (bool, error) {
	for name, operand := range condition {
		switch name {
		case "inAddressbook":
			want, _ := operand.(string)
			got, _ := row.Fields["addressbookId"].(string)
			if got != want {
				return false, nil
			}
		case "text":
			term, _ := operand.(string)
			if !matchesText(row, term) {
				return false, nil
			}
		case "name":
			term, _ := operand.(string)
			name, _ := row.Fields["name"].(string)
			if !containsFold(name, term) {
				return false, nil
			}
		case "email":
			term, _ := operand.(string)
			if !containsFold(emailsOf(row), term) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("invalidArguments: unknown Contact filter predicate %q", name)
		}
	}
	return true, nil
}

func matchesText(row query.Row, term string) bool {
	name, _ := row.Fields["name"].(string)
	return containsFold(name, term) || containsFold(emailsOf(row), term)
}

func emailsOf(row query.Row) string {
	raw, _ := row.Fields["emails"].([]interface{})
	parts := make([]string, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(map[string]interface{}); ok {
			if addr, ok := m["value"].(string); ok {
				parts = append(parts, addr)
			}
		}
	}
	return strings.Join(parts, " ")
}

func containsFold(haystack, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(term))
}

func (c *ContactCapability) SortKey(row query.Row, property string, scratch *query.Storage) (query.SortValue, error) {
	switch property {
	case "name":
		name, _ := row.Fields["name"].(string)
		return query.SortValue{Str: name}, nil
	default:
		return query.SortValue{}, fmt.Errorf("invalidArguments: unknown Contact sort field %q", property)
	}
}

// Create validates addressbookId references an existing addressbook.
func (c *ContactCapability) Create(ctx context.Context, accountId string, props map[string]interface{}) (verb.Object, *verb.VerbError) {
	addressbookId, _ := props["addressbookId"].(string)
	if addressbookId == "" {
		return nil, &verb.VerbError{Type: "invalidArguments", Description: "addressbookId is required"}
	}
	if _, found, err := c.addressbooks.LoadOne(ctx, accountId, addressbookId); err != nil {
		return nil, &verb.VerbError{Type: "serverError", Description: err.Error()}
	} else if !found {
		return nil, &verb.VerbError{Type: "invalidArguments", Description: "addressbookId does not reference an existing addressbook"}
	}
	return c.TypeStore.CreateWithId(ctx, accountId, uuid.NewString(), "", props)
}

// ContactGroupCapability implements verb.Capability for ContactGroup.
type ContactGroupCapability struct {
	*store.TypeStore
}

func NewContactGroup(ts *store.TypeStore) *ContactGroupCapability {
	return &ContactGroupCapability{TypeStore: ts}
}

func (c *ContactGroupCapability) FilterPredicate(query.Row, map[string]interface{}, *query.Storage) (bool, error) {
	return false, fmt.Errorf("invalidArguments: ContactGroup has no query grammar")
}

func (c *ContactGroupCapability) SortKey(query.Row, string, *query.Storage) (query.SortValue, error) {
	return query.SortValue{}, fmt.Errorf("invalidArguments: ContactGroup has no sort grammar")
}
