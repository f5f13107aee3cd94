package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

// newTokenCommand выпуск access токенов для локальной разработки.
func newTokenCommand(ctx *commandContext) *cobra.Command {
	var user string
	var role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Выпустить access токен (только development)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Env == "production" {
				return errors.New("выпуск токенов в production запрещён")
			}
			if role != service.RoleUser && role != service.RoleAdmin {
				return fmt.Errorf("роль должна быть %s или %s", service.RoleUser, service.RoleAdmin)
			}

			userID := uuid.New()
			if user != "" {
				if userID, err = uuid.Parse(user); err != nil {
					return fmt.Errorf("--user должен быть UUID: %w", err)
				}
			}

			token, exp, err := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL).GenerateAccess(userID, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user=%s role=%s expires=%s\n%s\n", userID, role, exp.UTC().Format("2006-01-02T15:04:05Z"), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "UUID пользователя (по умолчанию новый)")
	cmd.Flags().StringVar(&role, "role", service.RoleUser, "Роль: user или admin")

	return cmd
}
