package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ratiofetcher/internal/model"
	"ratiofetcher/internal/resolver"
)

var resolveMode string

var resolveCmd = &cobra.Command{
	Use:   "resolve identifier...",
	Short: "Show how identifiers resolve to listing codes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := cfg.ResolveMode()
		if resolveMode != "" {
			m, err := model.ParseResolveMode(resolveMode)
			if err != nil {
				return err
			}
			mode = m
		}

		dir, _, err := loadDirectory(cmd.Context(), cfg, newLimiter(cfg))
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for _, t := range resolver.New(dir).Resolve(args, mode) {
			switch {
			case t.Resolved():
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.Query, t.CanonicalCode, t.DisplayName)
			case t.DisplayName != "":
				fmt.Fprintf(w, "%s\t-\t%s (no listing code)\n", t.Query, t.DisplayName)
			default:
				fmt.Fprintf(w, "%s\t-\tnot found\n", t.Query)
			}
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveMode, "mode", "", "auto, name or code (default from config)")
	rootCmd.AddCommand(resolveCmd)
}
