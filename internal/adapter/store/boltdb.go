// Package store persists trained intent parsers in a bbolt database.
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"nlu/internal/domain"
)

var (
	bucketMeta       = []byte("meta")
	bucketClassifier = []byte("classifier")
	bucketTaggers    = []byte("taggers")
	bucketSlots      = []byte("slots")

	keyClassName  = []byte("class_name")
	keyClassifier = []byte("intent_classifier")
	keyTrainedAt  = []byte("trained_at")
)

// BoltStore keeps one serialized parser. The classifier, each intent's
// tagger and the slot mapping live in separate buckets so they can be
// inspected without decoding the whole model.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketMeta, bucketClassifier, bucketTaggers, bucketSlots}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

// SaveParser replaces the stored parser in a single transaction.
func (s *BoltStore) SaveParser(d domain.ParserDict) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := clearBuckets(tx, bucketClassifier, bucketTaggers, bucketSlots); err != nil {
			return err
		}

		data, err := json.Marshal(d.IntentClassifier)
		if err != nil {
			return fmt.Errorf("failed to encode intent classifier: %w", err)
		}
		if err := tx.Bucket(bucketClassifier).Put(keyClassifier, data); err != nil {
			return err
		}

		taggers := tx.Bucket(bucketTaggers)
		for intent, td := range d.CRFTaggers {
			data, err := json.Marshal(td)
			if err != nil {
				return fmt.Errorf("failed to encode tagger for intent %s: %w", intent, err)
			}
			if err := taggers.Put([]byte(intent), data); err != nil {
				return err
			}
		}

		slots := tx.Bucket(bucketSlots)
		for slotName, entity := range d.SlotNameToEntityMapping {
			if err := slots.Put([]byte(slotName), []byte(entity)); err != nil {
				return err
			}
		}

		meta := tx.Bucket(bucketMeta)
		if err := meta.Put(keyClassName, []byte(d.ClassName)); err != nil {
			return err
		}
		return meta.Put(keyTrainedAt, []byte(time.Now().UTC().Format(time.RFC3339)))
	})
}

// LoadParser returns the stored parser, or domain.ErrNotFitted when
// nothing has been saved yet.
func (s *BoltStore) LoadParser() (domain.ParserDict, error) {
	var d domain.ParserDict
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketClassifier).Get(keyClassifier)
		if data == nil {
			return fmt.Errorf("%w: no parser stored", domain.ErrNotFitted)
		}
		if err := json.Unmarshal(data, &d.IntentClassifier); err != nil {
			return fmt.Errorf("failed to decode intent classifier: %w", err)
		}

		d.ClassName = string(tx.Bucket(bucketMeta).Get(keyClassName))

		d.CRFTaggers = make(map[string]domain.Dict)
		err := tx.Bucket(bucketTaggers).ForEach(func(k, v []byte) error {
			var td domain.Dict
			if err := json.Unmarshal(v, &td); err != nil {
				return fmt.Errorf("failed to decode tagger for intent %s: %w", k, err)
			}
			d.CRFTaggers[string(k)] = td
			return nil
		})
		if err != nil {
			return err
		}

		d.SlotNameToEntityMapping = make(map[string]string)
		return tx.Bucket(bucketSlots).ForEach(func(k, v []byte) error {
			d.SlotNameToEntityMapping[string(k)] = string(v)
			return nil
		})
	})
	return d, err
}

// ModelInfo summarizes the stored parser without decoding it.
type ModelInfo struct {
	ClassName string
	TrainedAt time.Time
	Intents   []string
	Slots     map[string]string
}

func (s *BoltStore) Info() (ModelInfo, error) {
	var info ModelInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		info.ClassName = string(meta.Get(keyClassName))
		if raw := meta.Get(keyTrainedAt); raw != nil {
			t, err := time.Parse(time.RFC3339, string(raw))
			if err != nil {
				return fmt.Errorf("invalid trained_at: %w", err)
			}
			info.TrainedAt = t
		}

		if err := tx.Bucket(bucketTaggers).ForEach(func(k, _ []byte) error {
			info.Intents = append(info.Intents, string(k))
			return nil
		}); err != nil {
			return err
		}

		info.Slots = make(map[string]string)
		return tx.Bucket(bucketSlots).ForEach(func(k, v []byte) error {
			info.Slots[string(k)] = string(v)
			return nil
		})
	})
	sort.Strings(info.Intents)
	return info, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func clearBuckets(tx *bbolt.Tx, names ...[]byte) error {
	for _, name := range names {
		if tx.Bucket(name) != nil {
			if err := tx.DeleteBucket(name); err != nil {
				return fmt.Errorf("failed to clear bucket %s: %w", name, err)
			}
		}
		if _, err := tx.CreateBucket(name); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", name, err)
		}
	}
	return nil
}
