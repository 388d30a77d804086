package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-assessor/internal/service"
)

const defaultProfilePath = "grading_profile.json"

func newProfileCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage grading profiles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write a default grading profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultProfilePath
			if len(args) == 1 {
				path = args[0]
			}
			if err := service.WriteDefaultProfile(path); err != nil {
				return c.fail(err, "failed to write profile")
			}
			fmt.Fprintf(c.stdout, "Profile written to: %s\n", path)
			return nil
		},
	})

	return cmd
}
