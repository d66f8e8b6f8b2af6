// Package identity implements the read-only Identity/get singleton
// (spec §6), deriving its value from the account's configured IMAP
// username rather than storing one.
package identity

import (
	"context"

	"github.com/brandon/jmap-core/internal/config"
	"github.com/brandon/jmap-core/internal/domain/shared"
	"github.com/brandon/jmap-core/internal/jmap"
	"github.com/brandon/jmap-core/internal/store"
	"github.com/brandon/jmap-core/internal/verb"
)

// New builds the Identity capability, looking up each account's
// configured email address from cfg.
func New(s *store.Store, cfg *config.Config) *verb.SingletonCapability {
	ts := s.Type("Identity")
	return &verb.SingletonCapability{Store: shared.NewComputedSingletonStore(ts, func(ctx context.Context, accountId string) (map[string]interface{}, error) {
		acc, err := cfg.GetAccountByName(accountId)
		if err != nil {
			return map[string]interface{}{
				"name":  accountId,
				"email": "",
			}, nil
		}
		return map[string]interface{}{
			"name":     acc.Name,
			"email":    acc.IMAPUsername,
			"replyTo":  nil,
			"bcc":      nil,
			"mayDelete": false,
		}, nil
	})}
}

// Register binds Identity/get onto reg.
func Register(reg *jmap.Registry, cap *verb.SingletonCapability) {
	shared.RegisterGetOnly(reg, "Identity", cap)
}
