package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"nlu/config"
	"nlu/internal/adapter/analyzer"
	"nlu/internal/adapter/classifier"
	"nlu/internal/adapter/stems"
	"nlu/internal/adapter/store"
	"nlu/internal/adapter/tagger"
	"nlu/internal/domain"
	"nlu/internal/port"
	"nlu/internal/usecase"
)

// components holds the language-dependent pieces every command shares.
type components struct {
	analyzer analyzer.Analyzer
	stems    *stems.Cache
}

func newComponents(cfg *config.Config) (*components, error) {
	an, err := analyzer.NewTokenizerForLanguage(cfg.Parser.Language)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer: %w", err)
	}
	return &components{
		analyzer: an,
		stems:    stems.NewCache(stems.NewFileLoader(resourcesDir(cfg), cfg.Resources.StemPattern), log),
	}, nil
}

func resourcesDir(cfg *config.Config) string {
	if filepath.IsAbs(cfg.Resources.Dir) {
		return cfg.Resources.Dir
	}
	return filepath.Join(GetRootDir(), cfg.Resources.Dir)
}

func (c *components) classifierOptions(cfg *config.Config) []classifier.Option {
	if !cfg.Parser.Stemming {
		return nil
	}
	return []classifier.Option{classifier.WithStemming(c.stems, cfg.Parser.Language)}
}

// newParser builds an unfitted parser with one tagger per intent.
func (c *components) newParser(cfg *config.Config, intents []string) (*usecase.IntentParser, error) {
	scheme, err := cfg.Scheme()
	if err != nil {
		return nil, err
	}

	taggers := make(map[string]port.SequenceTagger, len(intents))
	for _, name := range intents {
		taggers[name] = tagger.NewLexicon(scheme)
	}
	cls := classifier.NewNaiveBayes(c.analyzer, c.classifierOptions(cfg)...)
	return usecase.NewIntentParser(cls, taggers, c.analyzer, usecase.WithLogger(log)), nil
}

// restoreParser rebuilds a parser from a stored dict. The stem cache is
// always offered; a classifier trained without stemming ignores it.
func (c *components) restoreParser(cfg *config.Config, d domain.ParserDict) (*usecase.IntentParser, error) {
	return usecase.ParserFromDict(d, c.analyzer, usecase.Restorers{
		Classifier: func(d domain.Dict) (port.IntentClassifier, error) {
			return classifier.NaiveBayesFromDict(d, c.analyzer, classifier.WithStemming(c.stems, cfg.Parser.Language))
		},
		Tagger: tagger.Restore,
	}, usecase.WithLogger(log))
}

// openModel opens the model database, failing if nothing was trained yet.
func openModel(cfg *config.Config) (*store.BoltStore, error) {
	dbPath := cfg.ModelDBPath(GetRootDir())
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no model found at %s. Run 'nlu train' first", dbPath)
	}
	st, err := store.NewBoltStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}
	return st, nil
}

// loadParser restores the stored parser, warning when the configuration
// has changed since training.
func loadParser(cfg *config.Config, comps *components) (*usecase.IntentParser, error) {
	st, err := openModel(cfg)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	if retrain, reason, err := st.NeedsRetrain(cfg); err != nil {
		return nil, err
	} else if retrain {
		log.Warn("stored model does not match configuration, run 'nlu train' again", "reason", reason)
	}

	d, err := st.LoadParser()
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	return comps.restoreParser(cfg, d)
}
