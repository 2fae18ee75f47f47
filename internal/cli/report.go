package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/healthrag-go/internal/models"
	"github.com/raphaelgruber/healthrag-go/internal/service"
)

var (
	reportConsent bool
	reportSource  string
	reportType    string
	reportUser    string
	reportRAG     bool
	reportJSON    bool
)

var reportCmd = &cobra.Command{
	Use:   "report <text>",
	Short: "Run the full pipeline on a health statement",
	Long: `Run intake, structuring, optional retrieval and report generation on
one health statement and print the result.

Examples:
  healthrag report "Feeling tired and dizzy for three days"
  healthrag report "My phone is 555-123-4567, chest feels tight" --consent
  healthrag report "Headache after screens" --rag=false --json`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	addIntakeFlags(reportCmd, &reportConsent, &reportSource, &reportType, &reportUser)
	reportCmd.Flags().BoolVar(&reportRAG, "rag", true, "enable retrieval (overrides configuration when set)")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print the full trace as JSON")
}

func addIntakeFlags(cmd *cobra.Command, consent *bool, source, inputType, user *string) {
	cmd.Flags().BoolVar(consent, "consent", false, "consent to processing statements that contain PHI")
	cmd.Flags().StringVar(source, "source", "", "input channel: web, sms, voice, api, email")
	cmd.Flags().StringVarP(inputType, "type", "t", "", "input type: chat, intake, survey, referral")
	cmd.Flags().StringVar(user, "user", "", "user id (generated when empty)")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if cmd.Flags().Changed("rag") {
		cfg.EnableRAG = reportRAG
	}
	a, err := getApp(ctx)
	if err != nil {
		return err
	}

	trace, runErr := a.Reports.Generate(ctx, service.ReportRequest{
		RawText:        args[0],
		Source:         models.Source(reportSource),
		InputType:      models.InputType(reportType),
		ConsentGranted: reportConsent,
		UserID:         reportUser,
	})

	out := cmd.OutOrStdout()
	if reportJSON {
		if err := printJSON(out, trace); err != nil {
			return err
		}
	} else {
		defaultTheme.renderTrace(out, trace)
	}

	if runErr != nil {
		return fmt.Errorf("report: %w", runErr)
	}
	return nil
}
