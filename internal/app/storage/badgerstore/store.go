// Package badgerstore implements the storage interfaces on top of Badger,
// an embedded key-value store. Logical keys follow the market key space:
//
//	asset:{id}         serialized asset
//	asset_index        list of all asset ids
//	category:{name}    list of asset ids tagged with the category
//	portfolio:{userId} per-user holdings
//	schedule:{id}      revaluation schedule record
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/memestreet/market_layer/internal/app/domain/asset"
	"github.com/memestreet/market_layer/internal/app/domain/portfolio"
	"github.com/memestreet/market_layer/internal/app/domain/schedule"
	"github.com/memestreet/market_layer/internal/app/storage"
)

// conflictRetries bounds optimistic transaction retries on contended keys.
const conflictRetries = 64

// Store is a Badger-backed implementation of the storage interfaces.
type Store struct {
	db *badger.DB
}

var _ storage.AssetStore = (*Store)(nil)
var _ storage.IndexStore = (*Store)(nil)
var _ storage.PortfolioStore = (*Store)(nil)
var _ storage.ScheduleStore = (*Store)(nil)

// Options configures the embedded database.
type Options struct {
	Path     string
	InMemory bool
}

// Open opens or creates the database at the configured path.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("badgerstore: path is required")
	}
	bopts := badger.DefaultOptions(opts.Path).
		WithLogger(nil).
		WithInMemory(opts.InMemory)
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func assetKey(id string) []byte     { return []byte("asset:" + id) }
func portfolioKey(id string) []byte { return []byte("portfolio:" + id) }
func scheduleKey(id string) []byte  { return []byte("schedule:" + id) }
func indexKey(index string) []byte  { return []byte(index) }

// AssetStore implementation -------------------------------------------------

func (s *Store) CreateAsset(ctx context.Context, a asset.Asset) (asset.Asset, error) {
	if a.ID == "" {
		return asset.Asset{}, fmt.Errorf("asset id is required")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	err := s.update(ctx, func(txn *badger.Txn) error {
		key := assetKey(a.ID)
		if _, err := txn.Get(key); err == nil {
			// Idempotent re-create during an issuance retry.
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return setJSON(txn, key, a)
	})
	if err != nil {
		return asset.Asset{}, err
	}
	return s.GetAsset(ctx, a.ID)
}

func (s *Store) UpdateAsset(ctx context.Context, a asset.Asset) (asset.Asset, error) {
	err := s.update(ctx, func(txn *badger.Txn) error {
		key := assetKey(a.ID)
		var stored asset.Asset
		if err := getJSON(txn, key, &stored); err != nil {
			return fmt.Errorf("asset %s: %w", a.ID, err)
		}
		a.CreatedAt = stored.CreatedAt
		return setJSON(txn, key, a)
	})
	if err != nil {
		return asset.Asset{}, err
	}
	return a, nil
}

func (s *Store) GetAsset(_ context.Context, id string) (asset.Asset, error) {
	var a asset.Asset
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, assetKey(id), &a)
	})
	if err != nil {
		return asset.Asset{}, fmt.Errorf("asset %s: %w", id, err)
	}
	return a, nil
}

// IndexStore implementation -------------------------------------------------

// AddToIndex appends the id to the index list unless already present. The
// read-modify-write runs inside one Badger transaction; conflicting writers
// are retried, so concurrent issuances cannot lose entries.
func (s *Store) AddToIndex(ctx context.Context, index, id string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		key := indexKey(index)
		var ids []string
		if err := getJSON(txn, key, &ids); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		for _, existing := range ids {
			if existing == id {
				return nil
			}
		}
		return setJSON(txn, key, append(ids, id))
	})
}

func (s *Store) ListIndex(_ context.Context, index string) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, indexKey(index), &ids)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// PortfolioStore implementation ---------------------------------------------

func (s *Store) GetPortfolio(_ context.Context, userID string) (portfolio.Portfolio, error) {
	var p portfolio.Portfolio
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, portfolioKey(userID), &p)
	})
	if err != nil {
		return portfolio.Portfolio{}, fmt.Errorf("portfolio %s: %w", userID, err)
	}
	return p, nil
}

func (s *Store) Grant(ctx context.Context, userID, assetID string, shares int64, pricePerShare float64) (portfolio.Portfolio, error) {
	var out portfolio.Portfolio
	err := s.update(ctx, func(txn *badger.Txn) error {
		key := portfolioKey(userID)
		p := portfolio.Portfolio{UserID: userID}
		if err := getJSON(txn, key, &p); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		p.Grant(assetID, shares, pricePerShare)
		p.UpdatedAt = time.Now().UTC()
		out = p
		return setJSON(txn, key, p)
	})
	if err != nil {
		return portfolio.Portfolio{}, err
	}
	return out, nil
}

// ScheduleStore implementation ----------------------------------------------

func (s *Store) PutSchedule(ctx context.Context, rec schedule.Record) error {
	rec.UpdatedAt = time.Now().UTC()
	return s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, scheduleKey(rec.AssetID), rec)
	})
}

func (s *Store) GetSchedule(_ context.Context, assetID string) (schedule.Record, error) {
	var rec schedule.Record
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, scheduleKey(assetID), &rec)
	})
	if err != nil {
		return schedule.Record{}, fmt.Errorf("schedule %s: %w", assetID, err)
	}
	return rec, nil
}

func (s *Store) ListSchedules(_ context.Context) ([]schedule.Record, error) {
	var records []schedule.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("schedule:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec schedule.Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Helpers --------------------------------------------------------------------

// update runs fn in a read-write transaction, retrying on optimistic
// conflicts.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func getJSON(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, raw)
}
