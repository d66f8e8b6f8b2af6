package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
)

// blobCacheSize bounds the in-memory blob content cache. Email/get with
// bodyValues, SearchSnippet/get, and Email/import each re-read the same
// blobs within a single batch, so a small LRU avoids redundant disk I/O.
const blobCacheSize = 128

// BlobStore implements spec §6's get_blob/get_file/put_file trio as a
// small wrapper over local filesystem paths, grounded in the teacher's
// NewCache os.MkdirAll + path-join pattern.
type BlobStore struct {
	store *Store
	root  string
	cache *lru.Cache[string, []byte]
}

// Blobs returns the blob I/O helper rooted at dir, creating it if
// necessary.
func (s *Store) Blobs(dir string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	cache, err := lru.New[string, []byte](blobCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob cache: %w", err)
	}
	return &BlobStore{store: s, root: dir, cache: cache}, nil
}

// PutFile writes data under a new blob id for accountId and records it
// in the blobs table.
func (b *BlobStore) PutFile(ctx context.Context, accountId string, data []byte) (string, error) {
	id := newObjectId()
	path := filepath.Join(b.root, accountId, id)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create blob path: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	_, err := b.store.db.ExecContext(ctx, `
		INSERT INTO blobs (account_id, blob_id, path, size) VALUES (?, ?, ?, ?)
	`, accountId, id, path, len(data))
	if err != nil {
		return "", fmt.Errorf("failed to record blob: %w", err)
	}
	b.cache.Add(accountId+"/"+id, data)
	return id, nil
}

// GetFile returns the path of the file stored under blobId.
func (b *BlobStore) GetFile(ctx context.Context, accountId, blobId string) (string, error) {
	var path string
	err := b.store.db.QueryRowContext(ctx, `
		SELECT path FROM blobs WHERE account_id = ? AND blob_id = ?
	`, accountId, blobId).Scan(&path)
	if err != nil {
		return "", fmt.Errorf("blob not found: %s", blobId)
	}
	return path, nil
}

// TotalSize sums the size of every blob stored for accountId, backing
// Quota/get's "used" property.
func (b *BlobStore) TotalSize(ctx context.Context, accountId string) (int64, error) {
	var total sql.NullInt64
	err := b.store.db.QueryRowContext(ctx, `
		SELECT SUM(size) FROM blobs WHERE account_id = ?
	`, accountId).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum blob sizes: %w", err)
	}
	return total.Int64, nil
}

// BlobMeta is one row of blob storage metadata, backing StorageNode/get
// and StorageNode/query.
type BlobMeta struct {
	BlobId string
	Size   int64
}

// ListMeta returns every blob recorded for accountId.
func (b *BlobStore) ListMeta(ctx context.Context, accountId string) ([]BlobMeta, error) {
	rows, err := b.store.db.QueryContext(ctx, `
		SELECT blob_id, size FROM blobs WHERE account_id = ? ORDER BY blob_id
	`, accountId)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	defer rows.Close()

	var metas []BlobMeta
	for rows.Next() {
		var m BlobMeta
		if err := rows.Scan(&m.BlobId, &m.Size); err != nil {
			return nil, fmt.Errorf("failed to scan blob metadata: %w", err)
		}
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// GetBlob reads the full content stored under blobId, serving from the
// in-memory cache when present.
func (b *BlobStore) GetBlob(ctx context.Context, accountId, blobId string) ([]byte, error) {
	key := accountId + "/" + blobId
	if data, ok := b.cache.Get(key); ok {
		return data, nil
	}
	path, err := b.GetFile(ctx, accountId, blobId)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	b.cache.Add(key, data)
	return data, nil
}
