package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	recordsLimit int
	recordsJSON  bool
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List persisted health records, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if a.Records == nil {
			return errors.New("persistence is disabled (HEALTHRAG_ENABLE_PERSISTENCE=false)")
		}

		records, err := a.Records.ListRecords(cmd.Context(), recordsLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if recordsJSON {
			return printJSON(out, records)
		}
		if len(records) == 0 {
			fmt.Fprintln(out, "No records stored.")
			return nil
		}
		for _, r := range records {
			fmt.Fprintf(out, "%s  %s\n", defaultTheme.hintStyle().Render(r.CreatedAt.Format("2006-01-02 15:04:05")), r.ID)
			fmt.Fprintf(out, "   %s\n\n", r.ReportText)
		}
		return nil
	},
}

func init() {
	recordsCmd.Flags().IntVarP(&recordsLimit, "limit", "n", 20, "max records")
	recordsCmd.Flags().BoolVar(&recordsJSON, "json", false, "print records as JSON")
}
