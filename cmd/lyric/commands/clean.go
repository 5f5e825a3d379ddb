package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/lyric/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the artifact cache and installed artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cacheOnly, _ := cmd.Flags().GetBool("cache")
			installOnly, _ := cmd.Flags().GetBool("install")

			opts := app.CleanOptions{Cache: true, Install: true}
			switch {
			case cacheOnly && !installOnly:
				opts.Install = false
			case installOnly && !cacheOnly:
				opts.Cache = false
			}

			return c.app.Clean(cmd.Context(), opts)
		},
	}

	cmd.Flags().Bool("cache", false, "Only remove the artifact cache")
	cmd.Flags().Bool("install", false, "Only remove the install root")

	return cmd
}
