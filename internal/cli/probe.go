package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opendatalabcz/emissions-etl/internal/config"
	"github.com/opendatalabcz/emissions-etl/internal/flatten"
	"github.com/opendatalabcz/emissions-etl/internal/inspect"
)

func init() {
	var recordTag string

	probeCmd := &cobra.Command{
		Use:   "probe <document.xml>",
		Short: "Print the discovered structure of an XML document",
		Long: `probe inventories the element paths found under the repeated record tag
of one document, with counts, example texts, and attribute value samples.
Useful when a new schema version lands and the projection needs checking.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tag := recordTag
			if tag == "" {
				tag = flatten.InspectionElement
				if cfg.Family == config.FamilyMeasurements {
					tag = flatten.MeasurementElement
				}
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			rep, err := inspect.Discover(f, tag)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(rep, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	probeCmd.Flags().StringVar(&recordTag, "record-tag", "", "repeated record element (default by --family)")
	rootCmd.AddCommand(probeCmd)
}
