package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"nlu/internal/adapter/cache"
	"nlu/internal/domain"
)

var (
	parseText   string
	parseIntent string
	parseJSON   bool
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse utterances with the trained model",
	Long: `Classify an utterance and extract its slots. Without -q, one utterance
is read per line from stdin.

Examples:
  nlu parse -q "book a flight to Paris"
  nlu parse -q "to Paris" --intent book_flight --json
  cat utterances.txt | nlu parse --json`,
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringVarP(&parseText, "query", "q", "", "utterance to parse (default: read lines from stdin)")
	parseCmd.Flags().StringVar(&parseIntent, "intent", "", "skip classification and extract slots for this intent")
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "output as JSON")
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	comps, err := newComponents(cfg)
	if err != nil {
		return err
	}
	parser, err := loadParser(cfg, comps)
	if err != nil {
		return err
	}

	cached := cache.NewCachedParser(parser, cache.NewParseCache(cfg.Cache.Size, time.Duration(cfg.Cache.TTLSeconds)*time.Second))
	parse := func(text string) (domain.ParseResult, error) {
		if parseIntent != "" {
			return cached.ParseAs(text, parseIntent)
		}
		return cached.Parse(text)
	}

	out := cmd.OutOrStdout()
	if parseText != "" {
		result, err := parse(parseText)
		if err != nil {
			return fmt.Errorf("parse failed: %w", err)
		}
		return printResult(out, result)
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		result, err := parse(line)
		if err != nil {
			log.Error("parse failed", "input", line, "error", err)
			continue
		}
		if err := printResult(out, result); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func printResult(w io.Writer, result domain.ParseResult) error {
	if parseJSON {
		data, err := json.Marshal(result)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	fmt.Fprintf(w, "%s\n  intent: %s\n", result.Input, displayIntent(result.Intent))
	if len(result.Slots) == 0 {
		fmt.Fprintln(w, "  slots:  (none)")
		return nil
	}
	for _, s := range result.Slots {
		fmt.Fprintf(w, "  slot:   %s = %q (%s) [%d:%d]\n", s.SlotName, s.Value, s.Entity, s.Range.Start, s.Range.End)
	}
	return nil
}

func displayIntent(intent string) string {
	if intent == "" {
		return "(none)"
	}
	return intent
}

