// Package quota implements the read-only Quota/get singleton (spec
// §6), reporting blob storage usage against a fixed per-account limit.
package quota

import (
	"context"

	"github.com/brandon/jmap-core/internal/domain/shared"
	"github.com/brandon/jmap-core/internal/jmap"
	"github.com/brandon/jmap-core/internal/store"
	"github.com/brandon/jmap-core/internal/verb"
)

// defaultLimit is the per-account storage ceiling reported until
// accounts carry their own configured quota.
const defaultLimit = int64(1 << 30) // 1 GiB

// New builds the Quota capability, computing "used" from blobs.
func New(s *store.Store, blobs *store.BlobStore) *verb.SingletonCapability {
	ts := s.Type("Quota")
	return &verb.SingletonCapability{Store: shared.NewComputedSingletonStore(ts, func(ctx context.Context, accountId string) (map[string]interface{}, error) {
		used, err := blobs.TotalSize(ctx, accountId)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"resourceType": "count",
			"used":         float64(used),
			"hardLimit":    float64(defaultLimit),
			"scope":        "account",
			"name":         "storage",
		}, nil
	})}
}

// Register binds Quota/get onto reg.
func Register(reg *jmap.Registry, cap *verb.SingletonCapability) {
	shared.RegisterGetOnly(reg, "Quota", cap)
}
