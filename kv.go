package rowstore

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// KeyValueTable is the private table behind KeyValueStorage.
const KeyValueTable = "__Key_Value_Storage__"

type kvRecord struct {
	ID   string `rowstore:"id,pk"`
	Data []byte `rowstore:"data"`
}

func (kvRecord) TableName() string { return KeyValueTable }

var (
	kvID   = NewField[kvRecord, string]("id")
	kvData = NewField[kvRecord, []byte]("data")
)

// KeyValueStorage stores JSON-encoded values under string keys.
type KeyValueStorage struct {
	db    *DB
	store *Store[kvRecord]
}

// KeyValueStorage returns the key-value façade of the database.
func (d *DB) KeyValueStorage() *KeyValueStorage {
	s, err := NewStore[kvRecord](d)
	if err != nil {
		// kvRecord is a fixed, valid record type.
		panic(err)
	}
	return &KeyValueStorage{db: d, store: s}
}

// Store overwrites the value stored under key.
func (kv *KeyValueStorage) Store(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encoding value for key %s", key)
	}
	return errors.WithMessagef(kv.store.Save(ctx, kvRecord{ID: key, Data: data}), "storing key %s", key)
}

// Value decodes the value stored under key into dst. It reports false, and
// leaves dst untouched, when nothing is stored under key.
func (kv *KeyValueStorage) Value(ctx context.Context, key string, dst any) (bool, error) {
	data, ok, err := kv.raw(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, errors.Wrapf(err, "decoding value for key %s", key)
	}
	return true, nil
}

// Raw returns the JSON stored under key.
func (kv *KeyValueStorage) Raw(ctx context.Context, key string) (json.RawMessage, bool, error) {
	data, ok, err := kv.raw(ctx, key)
	return json.RawMessage(data), ok, err
}

func (kv *KeyValueStorage) raw(ctx context.Context, key string) ([]byte, bool, error) {
	recs, err := kv.store.Get(ctx, Where(kvID.Is(Equal(key))))
	if err != nil {
		return nil, false, errors.WithMessagef(err, "reading key %s", key)
	}
	if len(recs) == 0 {
		return nil, false, nil
	}
	return recs[0].Data, true, nil
}

// Remove deletes the value stored under key. Removing a missing key is not
// an error.
func (kv *KeyValueStorage) Remove(ctx context.Context, key string) error {
	return errors.WithMessagef(kv.store.Delete(ctx, kvRecord{ID: key}), "removing key %s", key)
}

// Keys lists the stored keys in ascending order.
func (kv *KeyValueStorage) Keys(ctx context.Context) ([]string, error) {
	return Distinct(ctx, kv.store, kvID, All[kvRecord]().SortBy(kvID, Ascending))
}

// Merge sets the given top-level members of the JSON object stored under
// key, keeping its other members. A missing key starts from an empty object.
func (kv *KeyValueStorage) Merge(ctx context.Context, key string, partial map[string]any) error {
	if len(partial) == 0 {
		return nil
	}
	return kv.db.WithTransaction(ctx, func(ctx context.Context) error {
		current := make(map[string]any)
		data, ok, err := kv.raw(ctx, key)
		if err != nil {
			return err
		}
		if ok {
			if err := json.Unmarshal(data, &current); err != nil {
				return errors.Wrapf(err, "decoding existing value for key %s", key)
			}
		}
		for k, v := range partial {
			current[k] = v
		}
		merged, err := json.Marshal(current)
		if err != nil {
			return errors.Wrapf(err, "encoding merged value for key %s", key)
		}
		if ok {
			_, err = kv.store.Apply(ctx, UpdateByID[kvRecord](key).Set(kvData.To(merged)))
			return err
		}
		return kv.store.Save(ctx, kvRecord{ID: key, Data: merged})
	})
}
