package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"nlu/config"
	"nlu/internal/adapter/fs"
	"nlu/internal/adapter/memstore"
	"nlu/internal/adapter/store"
	"nlu/internal/adapter/watch"
	"nlu/internal/domain"
	"nlu/internal/port"
)

var (
	trainWatch    bool
	trainDryRun   bool
	trainDebounce time.Duration
)

var trainCmd = &cobra.Command{
	Use:   "train [path]",
	Short: "Train the intent parser on a dataset",
	Long: `Train the intent parser on a dataset file, or on every dataset file
under a directory. The model is stored in .nlu/model.db within the project
directory.

Examples:
  nlu train dataset.json       # Train from one file
  nlu train data/              # Merge every dataset under data/
  nlu train data/ --watch      # Retrain whenever a dataset changes
  nlu train data/ --dry-run    # Check the dataset trains without storing`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
	trainCmd.Flags().BoolVarP(&trainWatch, "watch", "w", false, "retrain when dataset files change")
	trainCmd.Flags().BoolVar(&trainDryRun, "dry-run", false, "train in memory and check the model restores, without storing it")
	trainCmd.Flags().DurationVar(&trainDebounce, "debounce", 500*time.Millisecond, "quiet period before retraining in watch mode")
}

func runTrain(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	cfg := GetConfig()

	if trainDryRun {
		return runDryRun(cfg, path)
	}

	if err := config.EnsureNLUDir(GetRootDir()); err != nil {
		return fmt.Errorf("failed to create .nlu directory: %w", err)
	}

	dbPath := cfg.ModelDBPath(GetRootDir())
	st, err := store.NewBoltStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open model store: %w", err)
	}
	defer st.Close()

	migration, err := st.CheckMigration(cfg)
	if err != nil {
		return fmt.Errorf("failed to check migration: %w", err)
	}
	if migration.NeedsRetrain {
		log.Info("discarding stored model", "reason", migration.Reason)
		if err := st.Clear(); err != nil {
			return fmt.Errorf("failed to clear model: %w", err)
		}
	} else if migration.NeedsMigration {
		log.Info("running schema migration", "reason", migration.Reason)
		if err := st.Migrate(cfg); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	comps, err := newComponents(cfg)
	if err != nil {
		return err
	}
	walker := fs.NewWalker(cfg.Dataset.Includes, cfg.Dataset.Excludes)

	if err := trainOnce(cfg, comps, st, walker, path); err != nil {
		return err
	}
	fmt.Printf("\nModel stored at: %s\n", dbPath)

	if !trainWatch {
		return nil
	}
	return watchAndRetrain(cmd.Context(), cfg, comps, st, walker, path)
}

func trainOnce(cfg *config.Config, comps *components, st port.ModelStore, walker port.FileWalker, path string) error {
	start := time.Now()

	dataset, err := fs.LoadDataset(path, walker)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	intents := make([]string, 0, len(dataset.Intents))
	utterances := 0
	for name, intent := range dataset.Intents {
		intents = append(intents, name)
		utterances += len(intent.Utterances)
	}
	sort.Strings(intents)

	parser, err := comps.newParser(cfg, intents)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(intents),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Training[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)

	err = parser.Fit(dataset, func(done, total int, intent string) {
		bar.Describe(fmt.Sprintf("[cyan]Training[reset] %s", intent))
		bar.Set(done)
	})
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	d, err := parser.ToDict()
	if err != nil {
		return fmt.Errorf("failed to serialize model: %w", err)
	}
	if err := st.SaveParser(d); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}
	if bolt, ok := st.(*store.BoltStore); ok {
		if err := bolt.Migrate(cfg); err != nil {
			return fmt.Errorf("failed to update schema info: %w", err)
		}
	}

	fmt.Printf("\nTraining complete:\n")
	fmt.Printf("  Intents:    %d\n", len(intents))
	fmt.Printf("  Utterances: %d\n", utterances)
	fmt.Printf("  Slots:      %d\n", len(parser.SlotNameToEntityMapping()))
	fmt.Printf("  Tagging:    %s\n", cfg.Parser.TaggingScheme)
	fmt.Printf("  Duration:   %s\n", formatDuration(time.Since(start)))
	return nil
}

// runDryRun trains into a memory store and restores the result, so
// serialization problems surface without touching the stored model.
func runDryRun(cfg *config.Config, path string) error {
	comps, err := newComponents(cfg)
	if err != nil {
		return err
	}
	walker := fs.NewWalker(cfg.Dataset.Includes, cfg.Dataset.Excludes)

	mem := memstore.NewMemoryStore()
	defer mem.Close()

	if err := trainOnce(cfg, comps, mem, walker, path); err != nil {
		return err
	}

	d, err := mem.LoadParser()
	if err != nil {
		return fmt.Errorf("failed to reload model: %w", err)
	}
	parser, err := comps.restoreParser(cfg, d)
	if err != nil {
		return fmt.Errorf("model does not restore: %w", err)
	}
	if !parser.Fitted() {
		return fmt.Errorf("%w: restored model is not fitted", domain.ErrNotFitted)
	}

	fmt.Println("\nDry run: model restores cleanly and was not stored.")
	return nil
}

func watchAndRetrain(ctx context.Context, cfg *config.Config, comps *components, st port.ModelStore, walker *fs.Walker, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir, match := path, watch.Matcher(walker.Matches)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		dir = filepath.Dir(path)
		base := filepath.Base(path)
		match = func(relPath string) bool { return relPath == base }
	}

	w, err := watch.NewFSNotifyWatcher(match, log)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Stop()

	events, err := w.Watch(ctx, dir)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	log.Info("watching for dataset changes", "path", dir)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			log.Debug("dataset changed", "path", ev.Path, "op", ev.Operation.String())
			if timer == nil {
				timer = time.NewTimer(trainDebounce)
			} else {
				timer.Reset(trainDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := trainOnce(cfg, comps, st, walker, path); err != nil {
				log.Error("retraining failed", "error", err)
			}
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}
