package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var stemLang string

var stemCmd = &cobra.Command{
	Use:   "stem <word>...",
	Short: "Look up the stems of inflected verbs",
	Long: `Resolve words to their stems using the conjugation table of a language.
Words missing from the table are printed unchanged.

Examples:
  nlu stem running flew
  nlu stem --lang fr mangeons`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStem,
}

func init() {
	rootCmd.AddCommand(stemCmd)
	stemCmd.Flags().StringVar(&stemLang, "lang", "", "language code (default from config)")
}

func runStem(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	lang := stemLang
	if lang == "" {
		lang = cfg.Parser.Language
	}

	comps, err := newComponents(cfg)
	if err != nil {
		return err
	}
	if len(comps.stems.Table(lang)) == 0 {
		log.Warn("no conjugation table found", "lang", lang, "dir", resourcesDir(cfg))
	}

	out := cmd.OutOrStdout()
	for _, word := range args {
		fmt.Fprintf(out, "%s\t%s\n", word, comps.stems.Stem(strings.ToLower(word), lang))
	}
	return nil
}
