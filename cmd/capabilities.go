// File: cmd/capabilities.go
package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/selharness/internal/capabilities"
	"github.com/xkilldash9x/selharness/internal/config"
	"github.com/xkilldash9x/selharness/internal/observability"
)

// platformLister is satisfied by *capabilities.Client.
type platformLister interface {
	Platforms(ctx context.Context) ([]capabilities.Platform, error)
}

var newLister = func(cfg *config.Config) platformLister {
	return newCapabilitiesClient(cfg, observability.GetLogger())
}

func newCapabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "List the platforms the cloud farm offers",
		Long: `List the (OS, browser, version) combinations the cloud farm currently
offers, newest first. --os narrows the list; --browser narrows it only when
given explicitly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}

			var os, browser string
			if cfg.Selenium.OS != "" {
				o, err := config.ParseOS(cfg.Selenium.OS)
				if err != nil {
					return err
				}
				os = string(o)
			}
			if cmd.Flags().Changed("browser") {
				b, err := config.ParseBrowser(cfg.Selenium.Browser)
				if err != nil {
					return err
				}
				browser = b.WebDriverName()
			}

			platforms, err := newLister(cfg).Platforms(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list cloud platforms: %w", err)
			}
			platforms = capabilities.Filter(platforms, os, browser)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "OS\tBROWSER\tVERSION\tNAME")
			for _, p := range platforms {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.OS, p.APIName, p.ShortVersion, p.LongName)
			}
			return w.Flush()
		},
	}
}
