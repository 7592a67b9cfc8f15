package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

func signInCmd() *cobra.Command {
	var (
		id       string
		email    string
		name     string
		verified bool
	)
	cmd := &cobra.Command{
		Use:   "sign-in",
		Short: "Start a session on this device",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := app.Users.SignIn(cmd.Context(), core.User{
				ID:            id,
				Email:         email,
				DisplayName:   name,
				EmailVerified: verified,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Signed in as %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "existing user id (default: a new id)")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().BoolVar(&verified, "verified", true, "whether the email address is confirmed")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func signOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sign-out",
		Short: "End the session on this device",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.Users.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Signed out")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	var (
		theme    string
		locale   string
		currency string
	)
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the session user and their preferences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			u, err := currentUser(ctx)
			if err != nil {
				return err
			}
			data, err := runOnce(ctx, app.UseCases.UserData, services.UserDataRequest{UserID: u.ID})
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("theme") || flags.Changed("locale") || flags.Changed("currency") {
				if flags.Changed("theme") {
					data.Theme = theme
				}
				if flags.Changed("locale") {
					data.Locale = locale
				}
				if flags.Changed("currency") {
					data.Currency = currency
				}
				data.UserID = u.ID
				if data, err = runOnce(ctx, app.UseCases.UpdateUserData, data); err != nil {
					return err
				}
			}

			fmt.Printf("User:     %s <%s>\n", u.DisplayName, u.Email)
			fmt.Printf("ID:       %s\n", u.ID)
			fmt.Printf("Theme:    %s\n", data.Theme)
			fmt.Printf("Locale:   %s\n", data.Locale)
			fmt.Printf("Currency: %s\n", data.Currency)
			return nil
		},
	}
	cmd.Flags().StringVar(&theme, "theme", "", "set the theme preference")
	cmd.Flags().StringVar(&locale, "locale", "", "set the locale preference")
	cmd.Flags().StringVar(&currency, "currency", "", "set the currency preference")
	return cmd
}
