package cli

import (
	"github.com/spf13/cobra"

	"github.com/raphaelgruber/healthrag-go/internal/models"
	"github.com/raphaelgruber/healthrag-go/internal/service"
)

var (
	intakeConsent bool
	intakeSource  string
	intakeType    string
	intakeUser    string
)

var intakeCmd = &cobra.Command{
	Use:   "intake <text>",
	Short: "Validate a statement and print the intake record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		rec, err := a.Reports.Intake(service.ReportRequest{
			RawText:        args[0],
			Source:         models.Source(intakeSource),
			InputType:      models.InputType(intakeType),
			ConsentGranted: intakeConsent,
			UserID:         intakeUser,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rec)
	},
}

func init() {
	addIntakeFlags(intakeCmd, &intakeConsent, &intakeSource, &intakeType, &intakeUser)
}
