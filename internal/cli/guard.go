package cli

import (
	"github.com/spf13/cobra"
)

var guardJSON bool

var guardCmd = &cobra.Command{
	Use:   "guard <text>",
	Short: "Run the safety guard over a text",
	Long: `Check text for diagnoses, prescriptions, emergency signals and PHI.
PHI is masked; diagnoses and prescriptions block the text.

Examples:
  healthrag guard "You have diabetes, take 500 mg metformin"
  healthrag guard "Call me at 555-123-4567" --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		res := a.Reports.Guard(args[0])
		if guardJSON {
			return printJSON(cmd.OutOrStdout(), res)
		}
		defaultTheme.renderGuard(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	guardCmd.Flags().BoolVar(&guardJSON, "json", false, "print the result as JSON")
}
