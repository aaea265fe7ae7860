package fs

import (
	"encoding/json"
	"fmt"
	"os"

	"nlu/internal/domain"
	"nlu/internal/port"
)

// ReadDataset decodes one dataset JSON file. Unknown top-level keys such
// as "entities" or "language" are ignored.
func ReadDataset(path string) (domain.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Dataset{}, err
	}
	var ds domain.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return domain.Dataset{}, fmt.Errorf("failed to decode dataset %s: %w", path, err)
	}
	if ds.Intents == nil {
		return domain.Dataset{}, fmt.Errorf("%w: dataset %s has no \"intents\" key", domain.ErrInvalidInput, path)
	}
	for name, intent := range ds.Intents {
		for i, u := range intent.Utterances {
			for j, chunk := range u.Data {
				if chunk.HasSlot() && chunk.Entity == "" {
					return domain.Dataset{}, fmt.Errorf("%w: %s: intent %s utterance %d chunk %d has slot %q without entity",
						domain.ErrInvalidInput, path, name, i, j, chunk.SlotName)
				}
			}
		}
	}
	return ds, nil
}

// LoadDataset reads path as a single dataset file, or merges every file the
// walker finds when path is a directory. An intent defined in two files is
// an error.
func LoadDataset(path string, walker port.FileWalker) (domain.Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("dataset path does not exist: %w", err)
	}
	if !info.IsDir() {
		return ReadDataset(path)
	}

	files, err := walker.Walk(path)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("failed to walk dataset directory: %w", err)
	}
	if len(files) == 0 {
		return domain.Dataset{}, fmt.Errorf("%w: no dataset files under %s", domain.ErrInvalidInput, path)
	}

	merged := domain.Dataset{Intents: make(map[string]domain.Intent)}
	origin := make(map[string]string)
	for _, f := range files {
		ds, err := ReadDataset(f.Path)
		if err != nil {
			return domain.Dataset{}, err
		}
		for name, intent := range ds.Intents {
			if prev, ok := origin[name]; ok {
				return domain.Dataset{}, fmt.Errorf("%w: intent %q defined in both %s and %s",
					domain.ErrInvalidInput, name, prev, f.Path)
			}
			origin[name] = f.Path
			merged.Intents[name] = intent
		}
	}
	return merged, nil
}
