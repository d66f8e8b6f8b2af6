package contact

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/brandon/jmap-core/internal/query"
	"github.com/brandon/jmap-core/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestContactCreateRejectsUnknownAddressbook(t *testing.T) {
	s := newTestStore(t)
	contacts := NewContact(s.Type("Contact"), s.Type("Addressbook"))
	_, verr := contacts.Create(context.Background(), "a1", map[string]interface{}{"addressbookId": "missing"})
	require.NotNil(t, verr)
}

func TestContactFilterPredicateNameAndEmail(t *testing.T) {
	s := newTestStore(t)
	contacts := NewContact(s.Type("Contact"), s.Type("Addressbook"))
	row := query.Row{Fields: map[string]interface{}{
		"name":   "Alice Smith",
		"emails": []interface{}{map[string]interface{}{"value": "alice@example.com"}},
	}}

	ok, err := contacts.FilterPredicate(row, map[string]interface{}{"name": "smith"}, query.NewStorage())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = contacts.FilterPredicate(row, map[string]interface{}{"email": "alice@example.com"}, query.NewStorage())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = contacts.FilterPredicate(row, map[string]interface{}{"email": "bob@example.com"}, query.NewStorage())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAddressbookHasNoQueryGrammar(t *testing.T) {
	s := newTestStore(t)
	books := NewAddressbook(s.Type("Addressbook"), nil)
	_, err := books.FilterPredicate(query.Row{}, map[string]interface{}{}, query.NewStorage())
	require.Error(t, err)
}

func TestContactGroupHasNoQueryGrammar(t *testing.T) {
	s := newTestStore(t)
	groups := NewContactGroup(s.Type("ContactGroup"))
	_, err := groups.SortKey(query.Row{}, "name", query.NewStorage())
	require.Error(t, err)
}
