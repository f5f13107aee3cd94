package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newReleaseCommand(ctx *commandContext) *cobra.Command {
	var operator string
	var reason string

	cmd := &cobra.Command{
		Use:   "release <project-id>",
		Short: "Принудительно выплатить исполнителю деньги по проекту",
		Long:  "Повторный вызов по уже выплаченному проекту ничего не меняет.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("project-id должен быть UUID: %w", err)
			}
			operatorID, err := uuid.Parse(operator)
			if err != nil {
				return errors.New("--operator должен быть UUID оператора")
			}

			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			result, err := a.Escrow.AdminRelease(cmd.Context(), projectID, operatorID, reason)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !result.Released {
				fmt.Fprintf(out, "проект %s уже выплачен, изменений нет\n", projectID)
				return nil
			}
			fmt.Fprintf(out, "выплачено %s %s (комиссия %s)\n",
				result.Payout.String(), result.Currency, result.Fee.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&operator, "operator", "", "UUID оператора, от имени которого выполняется выплата")
	cmd.Flags().StringVar(&reason, "reason", "", "Причина выплаты для журнала")
	_ = cmd.MarkFlagRequired("operator")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}
