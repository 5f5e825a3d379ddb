package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/lyric/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// diagnosticsDTO is the YAML form of one target's diagnostics.
type diagnosticsDTO struct {
	Target string         `yaml:"target"`
	Status string         `yaml:"status"`
	Hash   string         `yaml:"hash,omitempty"`
	Error  string         `yaml:"error,omitempty"`
	Spans  domain.SpanSet `yaml:"diagnostics"`
}

func (c *CLI) newDiagnosticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnostics domain:id...",
		Short: "Print the stored diagnostics of the given targets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := parseTargets(args)
			if err != nil {
				return err
			}
			opts, err := buildOptions(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("output") {
				opts.OutputMode = "quiet"
			}

			diags, err := c.app.Diagnostics(cmd.Context(), targets, opts)
			if err != nil {
				return err
			}

			out := make([]diagnosticsDTO, 0, len(diags))
			for _, d := range diags {
				dto := diagnosticsDTO{
					Target: d.Key.String(),
					Status: d.Status.String(),
					Hash:   d.Hash,
					Spans:  d.Spans,
				}
				if d.Err != nil {
					dto.Error = d.Err.Error()
				}
				out = append(out, dto)
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(out); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	addBuildFlags(cmd)
	return cmd
}
