package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"nlu/config"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var keySchema = []byte("schema")

// SchemaInfo records the storage format and the configuration the stored
// model was trained under.
type SchemaInfo struct {
	Version    int    `json:"version"`
	ConfigHash string `json:"config_hash"`
}

// GetSchemaInfo returns the zero SchemaInfo for a database that predates
// schema tracking.
func (s *BoltStore) GetSchemaInfo() (*SchemaInfo, error) {
	info := &SchemaInfo{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketMeta).Get(keySchema)
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, info); err != nil {
			return fmt.Errorf("corrupt schema info: %w", err)
		}
		return nil
	})
	return info, err
}

func (s *BoltStore) SetSchemaInfo(info *SchemaInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keySchema, raw)
	})
}

// ComputeConfigHash hashes the settings a trained model depends on.
// A different hash means the stored model must be retrained.
func ComputeConfigHash(cfg *config.Config) string {
	relevant := struct {
		Language      string `json:"language"`
		TaggingScheme string `json:"tagging_scheme"`
		Stemming      bool   `json:"stemming"`
	}{
		Language:      cfg.Parser.Language,
		TaggingScheme: cfg.Parser.TaggingScheme,
		Stemming:      cfg.Parser.Stemming,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// MigrationResult describes the result of a migration check.
type MigrationResult struct {
	NeedsMigration bool
	NeedsRetrain   bool
	OldVersion     int
	NewVersion     int
	Reason         string
}

// CheckMigration checks if migration or retraining is needed.
func (s *BoltStore) CheckMigration(cfg *config.Config) (*MigrationResult, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &MigrationResult{
		OldVersion: info.Version,
		NewVersion: CurrentSchemaVersion,
	}

	switch {
	case info.Version == 0:
		result.NeedsMigration = true
		result.Reason = "initializing schema version"
	case info.Version < CurrentSchemaVersion:
		result.NeedsMigration = true
		result.Reason = fmt.Sprintf("schema upgrade from v%d to v%d", info.Version, CurrentSchemaVersion)
	case info.Version > CurrentSchemaVersion:
		result.NeedsRetrain = true
		result.Reason = fmt.Sprintf("database created by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
		return result, nil
	}

	if info.ConfigHash != "" && info.ConfigHash != ComputeConfigHash(cfg) {
		result.NeedsRetrain = true
		result.Reason = "parser configuration changed"
	}

	return result, nil
}

// Migrate performs any necessary schema migrations and records the
// configuration the stored model was trained with.
func (s *BoltStore) Migrate(cfg *config.Config) error {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return err
	}

	for v := info.Version; v < CurrentSchemaVersion; v++ {
		if err := s.runMigration(v, v+1); err != nil {
			return fmt.Errorf("migration from v%d to v%d failed: %w", v, v+1, err)
		}
	}

	return s.SetSchemaInfo(&SchemaInfo{
		Version:    CurrentSchemaVersion,
		ConfigHash: ComputeConfigHash(cfg),
	})
}

func (s *BoltStore) runMigration(from, to int) error {
	switch {
	case from == 0 && to == 1:
		return s.db.Update(func(tx *bbolt.Tx) error {
			for _, b := range [][]byte{bucketMeta, bucketClassifier, bucketTaggers, bucketSlots} {
				if _, err := tx.CreateBucketIfNotExists(b); err != nil {
					return err
				}
			}
			return nil
		})
	default:
		return nil
	}
}

// Clear removes the stored parser, keeping schema info.
func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := clearBuckets(tx, bucketClassifier, bucketTaggers, bucketSlots); err != nil {
			return err
		}
		meta := tx.Bucket(bucketMeta)
		if err := meta.Delete(keyClassName); err != nil {
			return err
		}
		return meta.Delete(keyTrainedAt)
	})
}

// NeedsRetrain checks if the stored model was trained under a different
// configuration.
func (s *BoltStore) NeedsRetrain(cfg *config.Config) (bool, string, error) {
	result, err := s.CheckMigration(cfg)
	if err != nil {
		return false, "", err
	}
	return result.NeedsRetrain, result.Reason, nil
}
