/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/havenhub/apiserver/config"
	"github.com/havenhub/apiserver/internal/db"
	"github.com/havenhub/apiserver/internal/services"
	"github.com/havenhub/apiserver/internal/store"
	"github.com/spf13/cobra"
)

// auditCmd runs the read-only role/profile consistency check and prints
// the report as JSON. Exit code 1 when drift is found.
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check role/profile consistency",
	Long: `Scans users against agent profiles and tenant leases and reports
any drift between the role flags and the satellite records. Read-only.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer dbConn.Close()

		svc := services.NewConsistencyService(
			store.NewUserRepository(dbConn),
			store.NewAgentRepository(dbConn),
			store.NewTenantRepository(dbConn),
		)
		report, err := svc.CheckRoleConsistency(cmd.Context())
		if err != nil {
			return fmt.Errorf("consistency check: %w", err)
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			return err
		}
		if !report.Consistent() {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
