// Package verb implements the uniform-verb framework shared by every
// data type's /get, /changes, /query, /queryChanges, and /set handler.
// Domain packages plug in a Capability and the framework supplies the
// rest: property projection, delta reconstruction, filter/sort
// evaluation, and the create/update/destroy orchestration.
package verb

import (
	"context"

	"github.com/brandon/jmap-core/internal/query"
)

// Row is one object of a data type as the verb framework needs to see
// it: enough bookkeeping to classify it for /changes and /queryChanges,
// plus the domain's own property bag for filtering, sorting, and
// materializing a /get result.
type Row struct {
	Id string

	// Active is false for a row that has been destroyed but is still
	// tracked so /changes can report its removal.
	Active bool

	// CreatedAt is the state token value in effect when this row was
	// first created. Used to distinguish "created since sinceState"
	// from "updated since sinceState" in /changes.
	CreatedAt int64

	// ModSeq is the state token value of this row's most recent
	// non-count property change.
	ModSeq int64

	// CountModSeq is the state token value of this row's most recent
	// count-only change (Mailbox's totalEmails/unreadEmails/etc). Zero
	// for types that have no count properties.
	CountModSeq int64

	// ThreadId groups rows for collapsed Email queries. Empty for
	// types that are never thread-collapsed.
	ThreadId string

	// Fields holds every domain property keyed by its JMAP name,
	// including "id". FilterPredicate and SortKey read from here;
	// Materialize projects a copy of it.
	Fields map[string]interface{}
}

// LastModSeq is the modseq /changes classification uses: the more
// recent of a property change or a count-only change.
func (r Row) LastModSeq() int64 {
	if r.CountModSeq > r.ModSeq {
		return r.CountModSeq
	}
	return r.ModSeq
}

// QueryRow narrows a Row to the shape internal/query's filter and sort
// engine operate on.
func (r Row) QueryRow() query.Row {
	return query.Row{Id: r.Id, Fields: r.Fields}
}

// ChangeRow narrows a Row to the shape internal/query's queryChanges
// engine operates on, given whether it currently matches a query.
func (r Row) ChangeRow(isIn bool) query.ChangeRow {
	return query.ChangeRow{Id: r.Id, IsIn: isIn, ModSeq: r.LastModSeq(), ThreadId: r.ThreadId}
}

// Object is a fully materialized result object: server-assigned
// properties keyed by JMAP name, always including "id".
type Object map[string]interface{}

// VerbError is the {type, description} shape every per-call and
// per-entity failure in the uniform-verb framework takes (spec §7).
type VerbError struct {
	Type        string
	Description string
}

func (e *VerbError) Error() string {
	if e.Description == "" {
		return e.Type
	}
	return e.Type + ": " + e.Description
}

func errType(t string) *VerbError { return &VerbError{Type: t} }

func errTypef(t, description string) *VerbError {
	return &VerbError{Type: t, Description: description}
}

// Capability is the set of operations a domain type must provide for
// the uniform-verb framework to implement all five verbs against it
// (spec §9's "loadAll, loadOne, filterPredicate, sortKey, create,
// update, destroy, stateToken").
type Capability interface {
	// LoadAll returns every row of this type currently known to the
	// backing store, active or not — /changes and /queryChanges need
	// to see inactive rows to report their removal.
	LoadAll(ctx context.Context, accountId string) ([]Row, error)

	// LoadOne returns a single active row by id. ok is false if no
	// such row exists (or it is inactive).
	LoadOne(ctx context.Context, accountId, id string) (Row, bool, error)

	// Materialize projects row's Fields into a result Object,
	// restricted to properties if non-nil. "id" is always included.
	Materialize(row Row, properties []string) Object

	// FilterPredicate evaluates one leaf filter condition against row.
	FilterPredicate(row query.Row, condition map[string]interface{}, scratch *query.Storage) (bool, error)

	// SortKey computes the comparison key for row's named property.
	SortKey(row query.Row, property string, scratch *query.Storage) (query.SortValue, error)

	// Create makes a new row from props and returns the server-assigned
	// fields a /set response should report for its placeholder.
	Create(ctx context.Context, accountId string, props map[string]interface{}) (Object, *VerbError)

	// Update applies an (already patch-expanded) flat property map to
	// the row named by id and returns the server-assigned fields a
	// /set response should report for it (often empty).
	Update(ctx context.Context, accountId, id string, props map[string]interface{}) (Object, *VerbError)

	// Destroy removes the row named by id.
	Destroy(ctx context.Context, accountId, id string) *VerbError

	// StateToken returns the data type's current state token for this
	// account.
	StateToken(ctx context.Context, accountId string) (string, error)

	// DeletedModSeq returns the deleted-state horizon: /changes cannot
	// reconstruct a delta from a sinceState at or below it.
	DeletedModSeq(ctx context.Context, accountId string) (int64, error)

	// Sync refreshes the backing store from any external source
	// (IMAP, CalDAV) before a read-modify-write window. Types with no
	// external source (preferences, quota, ...) implement this as a
	// no-op.
	Sync(ctx context.Context, accountId string) error

	// Lock acquires this data type's process-wide write superlock for
	// the duration of a /set call (spec §5) and returns the function
	// that releases it. Called on every exit path, including error
	// returns.
	Lock(ctx context.Context) (release func(), err error)
}

// Collapsible is implemented by capabilities whose /query and
// /queryChanges support collapseThreads (Email only).
type Collapsible interface {
	SupportsCollapseThreads() bool
}

// ChangedPropertiesReporter is implemented by the one capability
// (Mailbox) whose /changes response carries an extra closed-set
// changedProperties list when every updated row's change was
// count-only (spec §4.4).
type ChangedPropertiesReporter interface {
	// CountOnlyCounters returns the four-element closed set
	// [totalEmails, unreadEmails, totalThreads, unreadThreads] for
	// accountId, used verbatim as changedProperties.
	CountOnlyCounters(ctx context.Context, accountId string) ([]interface{}, error)
}
