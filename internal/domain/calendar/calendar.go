// Package calendar binds Calendar, CalendarEvent, and
// CalendarPreferences (spec §6) onto the generic objects-table store.
// Calendar's Sync pulls the calendar list from a CollabSynchronizer,
// currently backed by the documented CalDAV gap stub.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brandon/jmap-core/internal/domain/shared"
	"github.com/brandon/jmap-core/internal/query"
	"github.com/brandon/jmap-core/internal/store"
	"github.com/brandon/jmap-core/internal/sync"
	"github.com/brandon/jmap-core/internal/verb"
)

// Capability implements verb.Capability for Calendar.
type Capability struct {
	*store.TypeStore
	source sync.CollabSynchronizer
}

func NewCalendar(ts *store.TypeStore, source sync.CollabSynchronizer) *Capability {
	return &Capability{TypeStore: ts, source: source}
}

func (c *Capability) FilterPredicate(row query.Row, condition map[string]interface{}, scratch *query.Storage) (bool, error) {
	for name, operand := range condition {
		switch name {
		case "isVisible":
			want, _ := operand.(bool)
			got, _ := row.Fields["isVisible"].(bool)
			if got != want {
				return false, nil
			}
		default:
			return false, fmt.Errorf("invalidArguments: unknown Calendar filter predicate %q", name)
		}
	}
	return true, nil
}

func (c *Capability) SortKey(row query.Row, property string, scratch *query.Storage) (query.SortValue, error) {
	switch property {
	case "name":
		name, _ := row.Fields["name"].(string)
		return query.SortValue{Str: name}, nil
	case "sortOrder":
		n, _ := row.Fields["sortOrder"].(float64)
		return query.SortValue{Num: n, IsNumeric: true}, nil
	default:
		return query.SortValue{}, fmt.Errorf("invalidArguments: unknown Calendar sort field %q", property)
	}
}

// Create fills in the defaults every new calendar needs.
func (c *Capability) Create(ctx context.Context, accountId string, props map[string]interface{}) (verb.Object, *verb.VerbError) {
	merged := map[string]interface{}{
		"isVisible": true,
		"isSubscribed": true,
		"myRights": map[string]interface{}{
			"mayReadFreeBusy": true, "mayReadItems": true, "mayAddItems": true,
			"mayModifyItems": true, "mayRemoveItems": true, "mayRename": true, "mayDelete": true,
		},
	}
	for k, v := range props {
		merged[k] = v
	}
	return c.TypeStore.Create(ctx, accountId, merged)
}

// Sync pulls the calendar list from source, if one is configured.
func (c *Capability) Sync(ctx context.Context, accountId string) error {
	if c.source == nil {
		return nil
	}
	_, err := c.source.SyncCalendars(ctx, accountId)
	return err
}

// EventCapability implements verb.Capability for CalendarEvent.
type EventCapability struct {
	*store.TypeStore
	calendars *store.TypeStore
}

func NewEvent(ts, calendars *store.TypeStore) *EventCapability {
	return &EventCapability{TypeStore: ts, calendars: calendars}
}

func (c *EventCapability) FilterPredicate(row query.Row, condition map[string]interface{}, scratch *query.Storage) (bool, error) {
	for name, operand := range condition {
		switch name {
		case "inCalendar":
			want, _ := operand.(string)
			got, _ := row.Fields["calendarId"].(string)
			if got != want {
				return false, nil
			}
		case "after":
			ok, err := compareTime(row, "start", operand, false)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		case "before":
			ok, err := compareTime(row, "start", operand, true)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		case "text":
			term, _ := operand.(string)
			title, _ := row.Fields["title"].(string)
			desc, _ := row.Fields["description"].(string)
			if !containsFold(title, term) && !containsFold(desc, term) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("invalidArguments: unknown CalendarEvent filter predicate %q", name)
		}
	}
	return true, nil
}

func compareTime(row query.Row, field string, operand interface{}, before bool) (bool, error) {
	bound, ok := operand.(string)
	if !ok {
		return false, fmt.Errorf("invalidArguments: expected a date string")
	}
	boundT, err := time.Parse(time.RFC3339, bound)
	if err != nil {
		return false, fmt.Errorf("invalidArguments: not a valid date: %w", err)
	}
	raw, _ := row.Fields[field].(string)
	rowT, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return false, nil
	}
	if before {
		return rowT.Before(boundT), nil
	}
	return rowT.After(boundT), nil
}

func containsFold(haystack, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(term))
}

func (c *EventCapability) SortKey(row query.Row, property string, scratch *query.Storage) (query.SortValue, error) {
	switch property {
	case "start", "created":
		raw, _ := row.Fields[property].(string)
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return query.SortValue{Num: 0, IsNumeric: true}, nil
		}
		return query.SortValue{Num: float64(t.Unix()), IsNumeric: true}, nil
	case "title":
		title, _ := row.Fields["title"].(string)
		return query.SortValue{Str: title}, nil
	default:
		return query.SortValue{}, fmt.Errorf("invalidArguments: unknown CalendarEvent sort field %q", property)
	}
}

// Create validates calendarId references an existing calendar.
func (c *EventCapability) Create(ctx context.Context, accountId string, props map[string]interface{}) (verb.Object, *verb.VerbError) {
	calendarId, _ := props["calendarId"].(string)
	if calendarId == "" {
		return nil, &verb.VerbError{Type: "invalidArguments", Description: "calendarId is required"}
	}
	if _, found, err := c.calendars.LoadOne(ctx, accountId, calendarId); err != nil {
		return nil, &verb.VerbError{Type: "serverError", Description: err.Error()}
	} else if !found {
		return nil, &verb.VerbError{Type: "invalidArguments", Description: "calendarId does not reference an existing calendar"}
	}
	id := uuid.NewString()
	return c.TypeStore.CreateWithId(ctx, accountId, id, "", props)
}

// NewPreferences builds the CalendarPreferences singleton capability.
func NewPreferences(s *store.Store) *verb.SingletonCapability {
	return &verb.SingletonCapability{Store: shared.NewSingletonStore(s.Type("CalendarPreferences"))}
}
