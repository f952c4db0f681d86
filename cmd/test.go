package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var forceRefresh bool

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test connection to Fortnox",
	Long: `Obtain an access token from the credential store, refreshing it when
needed, and display basic company information.`,
	RunE: runTest,
}

func init() {
	testCmd.Flags().BoolVar(&forceRefresh, "refresh", false, "refresh the access token even if it is still valid")
}

func runTest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Testing connection to Fortnox at %s...\n", cfg.Fortnox.APIURL)

	c, err := connect(ctx)
	if err != nil {
		return err
	}

	if forceRefresh {
		if _, err := c.Tokens().ForceRefresh(ctx); err != nil {
			return fmt.Errorf("failed to refresh token: %w", err)
		}
		fmt.Fprintln(out, "✓ Token refreshed")
	}

	company, err := c.Company(ctx)
	if err != nil {
		return fmt.Errorf("failed to get company information: %w", err)
	}

	fmt.Fprintln(out, "✓ Connection successful!")
	fmt.Fprintf(out, "\nCompany:\n")
	fmt.Fprintf(out, "- Name: %s\n", company.CompanyName)
	if company.OrganizationNumber != "" {
		fmt.Fprintf(out, "- Organization number: %s\n", company.OrganizationNumber)
	}
	if company.City != "" {
		fmt.Fprintf(out, "- City: %s\n", company.City)
	}
	fmt.Fprintf(out, "- Credential store: %s\n", cfg.Store.Backend)
	fmt.Fprintf(out, "- Rate limit: %d requests per %s\n", cfg.RateLimit.Requests, cfg.RateLimit.Window)

	return nil
}
