package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-assessor/internal/service"
)

func newConfigCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every configuration setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := c.cfg.Settings()
			fmt.Fprintln(c.stdout, "Assessor configuration:")

			current := ""
			for _, key := range settings.Keys() {
				section, option, found := strings.Cut(key, ".")
				if !found {
					fmt.Fprintf(c.stdout, "%s = %s\n", key, settings.Display(key))
					continue
				}
				if section != current {
					fmt.Fprintf(c.stdout, "[%s]\n", section)
					current = section
				}
				fmt.Fprintf(c.stdout, "  %s = %s\n", option, settings.Display(key))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get SECTION.KEY",
		Short: "Print one configuration setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			if !strings.Contains(key, ".") {
				return c.fail(fmt.Errorf("%w: key %q should look like Section.Option", service.ErrValidation, key), "invalid key")
			}

			settings := c.cfg.Settings()
			if _, ok := settings.Lookup(key); !ok {
				return c.fail(fmt.Errorf("setting %s is not set", key), "unknown setting")
			}
			fmt.Fprintf(c.stdout, "%s = %s\n", key, settings.Display(key))
			return nil
		},
	})

	return cmd
}
