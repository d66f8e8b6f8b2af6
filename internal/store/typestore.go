package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"github.com/brandon/jmap-core/internal/verb"
)

// TypeStore is a generic Capability over the shared objects table for
// one data type. It implements every Capability method except
// FilterPredicate and SortKey, which are domain-specific; a domain
// package embeds *TypeStore and supplies those two (and overrides
// Create, Update, or Sync when the type needs more than generic
// CRUD/no-op behavior).
type TypeStore struct {
	store    *Store
	typeName string
}

func (t *TypeStore) LoadAll(ctx context.Context, accountId string) ([]verb.Row, error) {
	rows, err := t.store.db.QueryContext(ctx, `
		SELECT id, active, created_at, modseq, count_modseq, thread_id, fields_json
		FROM objects WHERE type = ? AND account_id = ?
	`, t.typeName, accountId)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s rows", t.typeName)
	}
	defer rows.Close()

	var out []verb.Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (t *TypeStore) LoadOne(ctx context.Context, accountId, id string) (verb.Row, bool, error) {
	row := t.store.db.QueryRowContext(ctx, `
		SELECT id, active, created_at, modseq, count_modseq, thread_id, fields_json
		FROM objects WHERE type = ? AND account_id = ? AND id = ?
	`, t.typeName, accountId, id)
	r, err := scanRow(row)
	if err == sql.ErrNoRows {
		return verb.Row{}, false, nil
	}
	if err != nil {
		return verb.Row{}, false, errors.Wrapf(err, "failed to load %s %s", t.typeName, id)
	}
	if !r.Active {
		return verb.Row{}, false, nil
	}
	return r, true, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(s scanner) (verb.Row, error) {
	var r verb.Row
	var active int
	var fieldsJSON string
	if err := s.Scan(&r.Id, &active, &r.CreatedAt, &r.ModSeq, &r.CountModSeq, &r.ThreadId, &fieldsJSON); err != nil {
		return verb.Row{}, err
	}
	r.Active = active != 0
	fields, err := unmarshalFields(fieldsJSON)
	if err != nil {
		return verb.Row{}, errors.Wrap(err, "failed to decode stored fields")
	}
	r.Fields = fields
	return r, nil
}

func (t *TypeStore) Materialize(row verb.Row, properties []string) verb.Object {
	if properties == nil {
		obj := make(verb.Object, len(row.Fields)+1)
		for k, v := range row.Fields {
			obj[k] = v
		}
		obj["id"] = row.Id
		return obj
	}
	obj := make(verb.Object, len(properties)+1)
	obj["id"] = row.Id
	for _, p := range properties {
		if p == "id" {
			continue
		}
		if v, ok := row.Fields[p]; ok {
			obj[p] = v
		}
	}
	return obj
}

// Create inserts a new active row with a server-assigned id. Domain
// types that need computed defaults (Mailbox's myRights, Email's
// derived threadId) override this and call CreateWithId after
// preparing props.
func (t *TypeStore) Create(ctx context.Context, accountId string, props map[string]interface{}) (verb.Object, *verb.VerbError) {
	return t.CreateWithId(ctx, accountId, newObjectId(), "", props)
}

// CreateWithId inserts a new active row under an explicit id and
// thread id, letting domain overrides control id assignment.
func (t *TypeStore) CreateWithId(ctx context.Context, accountId, id, threadId string, props map[string]interface{}) (verb.Object, *verb.VerbError) {
	fields := make(map[string]interface{}, len(props)+1)
	for k, v := range props {
		fields[k] = v
	}
	fields["id"] = id
	fieldsJSON, err := marshalFields(fields)
	if err != nil {
		return nil, &verb.VerbError{Type: "serverError", Description: err.Error()}
	}

	state, err := t.store.bumpState(accountId, t.typeName)
	if err != nil {
		return nil, &verb.VerbError{Type: "serverError", Description: err.Error()}
	}

	_, err = t.store.db.ExecContext(ctx, `
		INSERT INTO objects (type, account_id, id, active, created_at, modseq, count_modseq, thread_id, fields_json)
		VALUES (?, ?, ?, 1, ?, ?, 0, ?, ?)
	`, t.typeName, accountId, id, state, state, threadId, fieldsJSON)
	if err != nil {
		return nil, &verb.VerbError{Type: "serverError", Description: errors.Wrapf(err, "failed to create %s", t.typeName).Error()}
	}
	return verb.Object{"id": id}, nil
}

func (t *TypeStore) Update(ctx context.Context, accountId, id string, props map[string]interface{}) (verb.Object, *verb.VerbError) {
	row, ok, err := t.LoadOne(ctx, accountId, id)
	if err != nil {
		return nil, &verb.VerbError{Type: "serverError", Description: err.Error()}
	}
	if !ok {
		return nil, &verb.VerbError{Type: "notFound"}
	}
	for k, v := range props {
		if v == nil {
			delete(row.Fields, k)
			continue
		}
		row.Fields[k] = v
	}
	fieldsJSON, err := marshalFields(row.Fields)
	if err != nil {
		return nil, &verb.VerbError{Type: "serverError", Description: err.Error()}
	}

	state, err := t.store.bumpState(accountId, t.typeName)
	if err != nil {
		return nil, &verb.VerbError{Type: "serverError", Description: err.Error()}
	}

	_, err = t.store.db.ExecContext(ctx, `
		UPDATE objects SET modseq = ?, fields_json = ? WHERE type = ? AND account_id = ? AND id = ?
	`, state, fieldsJSON, t.typeName, accountId, id)
	if err != nil {
		return nil, &verb.VerbError{Type: "serverError", Description: errors.Wrapf(err, "failed to update %s", t.typeName).Error()}
	}
	return verb.Object{}, nil
}

func (t *TypeStore) Destroy(ctx context.Context, accountId, id string) *verb.VerbError {
	_, ok, err := t.LoadOne(ctx, accountId, id)
	if err != nil {
		return &verb.VerbError{Type: "serverError", Description: err.Error()}
	}
	if !ok {
		return &verb.VerbError{Type: "notFound"}
	}

	state, err := t.store.bumpState(accountId, t.typeName)
	if err != nil {
		return &verb.VerbError{Type: "serverError", Description: err.Error()}
	}
	if err := t.store.markDeleted(accountId, t.typeName, state); err != nil {
		return &verb.VerbError{Type: "serverError", Description: err.Error()}
	}

	_, err = t.store.db.ExecContext(ctx, `
		UPDATE objects SET active = 0, modseq = ? WHERE type = ? AND account_id = ? AND id = ?
	`, state, t.typeName, accountId, id)
	if err != nil {
		return &verb.VerbError{Type: "serverError", Description: errors.Wrapf(err, "failed to destroy %s", t.typeName).Error()}
	}
	return nil
}

func (t *TypeStore) StateToken(ctx context.Context, accountId string) (string, error) {
	state, err := t.store.currentState(accountId, t.typeName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", state), nil
}

func (t *TypeStore) DeletedModSeq(ctx context.Context, accountId string) (int64, error) {
	return t.store.deletedModSeq(accountId, t.typeName)
}

// Sync is a no-op by default; types backed by an external source
// (Mailbox, Email, Calendar, Addressbook/Contact) override it to call
// their Synchronizer first.
func (t *TypeStore) Sync(ctx context.Context, accountId string) error {
	return nil
}

func (t *TypeStore) Lock(ctx context.Context) (func(), error) {
	l := t.store.lockFor(t.typeName)
	l.Lock()
	return l.Unlock, nil
}

// BumpCountOnly records a count-only change (Mailbox's
// totalEmails/unreadEmails/etc) without touching the row's other
// properties or its general modseq, so /changes can later tell
// count-only updates apart from property updates (spec §4.4).
func (t *TypeStore) BumpCountOnly(ctx context.Context, accountId, id string, counts map[string]interface{}) error {
	row, ok, err := t.LoadOne(ctx, accountId, id)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("%s %s not found", t.typeName, id)
	}
	for k, v := range counts {
		row.Fields[k] = v
	}
	fieldsJSON, err := marshalFields(row.Fields)
	if err != nil {
		return err
	}
	state, err := t.store.bumpState(accountId, t.typeName)
	if err != nil {
		return err
	}
	_, err = t.store.db.ExecContext(ctx, `
		UPDATE objects SET count_modseq = ?, fields_json = ? WHERE type = ? AND account_id = ? AND id = ?
	`, state, fieldsJSON, t.typeName, accountId, id)
	return err
}
