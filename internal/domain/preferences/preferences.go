// Package preferences implements the three free-form singleton
// settings bags spec §6 names: UserPreferences, ClientPreferences, and
// VacationResponse. Each is a verb.SingletonCapability over its own
// single-row table, sharing the read-merge-write helper spec §4.8
// describes.
package preferences

import (
	"context"

	"github.com/brandon/jmap-core/internal/domain/shared"
	"github.com/brandon/jmap-core/internal/jmap"
	"github.com/brandon/jmap-core/internal/store"
	"github.com/brandon/jmap-core/internal/verb"
)

// Bundle holds the three preferences-family capabilities, constructed
// together since they share no state but are always registered
// together.
type Bundle struct {
	UserPreferences   *verb.SingletonCapability
	ClientPreferences *verb.SingletonCapability
	VacationResponse  *verb.SingletonCapability
}

// New builds the bundle from the store's per-type tables.
func New(s *store.Store) *Bundle {
	return &Bundle{
		UserPreferences:   &verb.SingletonCapability{Store: shared.NewSingletonStore(s.Type("UserPreferences"))},
		ClientPreferences: &verb.SingletonCapability{Store: shared.NewSingletonStore(s.Type("ClientPreferences"))},
		VacationResponse:  vacationCapability(s),
	}
}

// vacationCapability serves the stored VacationResponse row when one
// exists and otherwise the defaults (an always-off auto-responder),
// without writing them, since it has no /set method to populate it with.
func vacationCapability(s *store.Store) *verb.SingletonCapability {
	ts := s.Type("VacationResponse")
	return &verb.SingletonCapability{Store: shared.NewComputedSingletonStore(ts, func(ctx context.Context, accountId string) (map[string]interface{}, error) {
		row, ok, err := ts.LoadOne(ctx, accountId, "singleton")
		if err != nil {
			return nil, err
		}
		if ok {
			delete(row.Fields, "id")
			return row.Fields, nil
		}
		return map[string]interface{}{
			"isEnabled": false,
			"fromDate":  nil,
			"toDate":    nil,
			"subject":   nil,
			"textBody":  nil,
			"htmlBody":  nil,
		}, nil
	})}
}

// Register binds UserPreferences/{get,set}, ClientPreferences/{get,set},
// and VacationResponse/get onto reg.
func Register(reg *jmap.Registry, b *Bundle) {
	shared.RegisterGetSet(reg, "UserPreferences", b.UserPreferences)
	shared.RegisterGetSet(reg, "ClientPreferences", b.ClientPreferences)
	shared.RegisterGetOnly(reg, "VacationResponse", b.VacationResponse)
}
