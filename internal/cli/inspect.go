package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show what the stored model was trained on",
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output as JSON")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	st, err := openModel(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	info, err := st.Info()
	if err != nil {
		return fmt.Errorf("failed to read model: %w", err)
	}
	schema, err := st.GetSchemaInfo()
	if err != nil {
		return fmt.Errorf("failed to read schema info: %w", err)
	}
	retrain, reason, err := st.NeedsRetrain(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if inspectJSON {
		data, err := json.MarshalIndent(map[string]any{
			"class_name":                  info.ClassName,
			"trained_at":                  info.TrainedAt,
			"intents":                     info.Intents,
			"slot_name_to_entity_mapping": info.Slots,
			"schema_version":              schema.Version,
			"needs_retrain":               retrain,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "Model:          %s\n", info.ClassName)
	fmt.Fprintf(out, "Trained at:     %s\n", info.TrainedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Schema version: %d\n", schema.Version)
	fmt.Fprintf(out, "Intents (%d):\n", len(info.Intents))
	for _, name := range info.Intents {
		fmt.Fprintf(out, "  - %s\n", name)
	}

	slots := make([]string, 0, len(info.Slots))
	for name := range info.Slots {
		slots = append(slots, name)
	}
	sort.Strings(slots)
	fmt.Fprintf(out, "Slots (%d):\n", len(slots))
	for _, name := range slots {
		fmt.Fprintf(out, "  - %s -> %s\n", name, info.Slots[name])
	}

	if retrain {
		fmt.Fprintf(out, "\nRetrain required: %s\n", reason)
	}
	return nil
}
