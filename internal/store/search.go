package store

import (
	"context"
	"fmt"
)

// IndexEmail (re-)indexes one email's searchable fields into the FTS5
// virtual table, lifted from the teacher's emails_fts trigger pair in
// cache/schema.go, adapted from triggers to an explicit call the Email
// domain package makes after create/update/sync.
func (s *Store) IndexEmail(ctx context.Context, accountId, emailId, subject, sender, body string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM emails_fts WHERE account_id = ? AND email_id = ?`, accountId, emailId)
	if err != nil {
		return fmt.Errorf("failed to clear email index: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO emails_fts (account_id, email_id, subject, sender, body) VALUES (?, ?, ?, ?, ?)
	`, accountId, emailId, subject, sender, body)
	if err != nil {
		return fmt.Errorf("failed to index email: %w", err)
	}
	return nil
}

// ImapSearch implements spec §6's imap_search(field, term): a
// full-text query over one indexed field, returning the matching
// email ids. field must be "subject", "sender", or "body".
func (s *Store) ImapSearch(ctx context.Context, accountId, field, term string) ([]string, error) {
	column := map[string]string{"subject": "subject", "sender": "sender", "body": "body"}[field]
	if column == "" {
		return nil, fmt.Errorf("invalidArguments: unknown search field %q", field)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT email_id FROM emails_fts WHERE account_id = ? AND %s MATCH ?
	`, column), accountId, term)
	if err != nil {
		return nil, fmt.Errorf("failed to search emails: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
