package main

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-assessor/internal/bootstrap"
	"github.com/noah-isme/gema-assessor/internal/config"
	"github.com/noah-isme/gema-assessor/pkg/ai"
)

// cli carries the collaborators shared by every subcommand.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	loadConfig   func() (config.Config, error)
	newGenerator func(config.Config, zerolog.Logger) (ai.Generator, error)

	verbose bool
	cfg     config.Config
	logger  zerolog.Logger
}

func newCLI(stdout, stderr io.Writer) *cli {
	return &cli{
		stdout:       stdout,
		stderr:       stderr,
		loadConfig:   config.Load,
		newGenerator: bootstrap.NewGenerator,
		logger:       zerolog.Nop(),
	}
}

func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "assessor",
		Short:         "Grade student document submissions with a language model",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := zerolog.InfoLevel
			if c.verbose {
				level = zerolog.DebugLevel
			}
			c.logger = zerolog.New(zerolog.ConsoleWriter{Out: c.stderr, TimeFormat: time.Kitchen}).
				Level(level).With().Timestamp().Logger()

			cfg, err := c.loadConfig()
			if err != nil {
				c.logger.Error().Err(err).Msg("failed to load configuration")
				return err
			}
			c.cfg = cfg
			return nil
		},
	}

	root.SetOut(c.stdout)
	root.SetErr(c.stderr)
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newGradeCommand(c), newConfigCommand(c), newProfileCommand(c))
	return root
}

// fail logs err to stderr and returns it so cobra exits non-zero.
func (c *cli) fail(err error, msg string) error {
	c.logger.Error().Err(err).Msg(msg)
	return err
}
