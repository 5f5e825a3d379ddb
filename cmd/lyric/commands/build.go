package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"go.trai.ch/lyric/internal/app"
	"go.trai.ch/lyric/internal/core/domain"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [domain:id...]",
		Short: "Build the given targets",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return nil
			}
			targets, err := parseTargets(args)
			if err != nil {
				return err
			}
			opts, err := buildOptions(cmd)
			if err != nil {
				return err
			}

			if watch, _ := cmd.Flags().GetBool("watch"); watch {
				return c.app.Watch(cmd.Context(), targets, opts)
			}
			_, err = c.app.Build(cmd.Context(), targets, opts)
			return err
		},
	}
	addBuildFlags(cmd)
	cmd.Flags().StringP("install-dir", "i", "", "Directory target artifacts are installed to")
	cmd.Flags().BoolP("watch", "w", false, "Rebuild when module sources change")
	return cmd
}

// addBuildFlags registers the flags shared by commands that compute targets.
func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("jobs", "j", 0, "Number of parallel workers (negative: number of CPUs)")
	cmd.Flags().String("cache-mode", "", "Cache mode: memory or persistent")
	cmd.Flags().StringArrayP("param", "p", nil, "Target parameter as key=value")
	cmd.Flags().StringArray("set", nil, "Settings override as key=value, domain.key=value or domain:id.key=value")
	cmd.Flags().StringP("output", "o", "auto", "Output mode: auto, tui, terminal, plain, ci or quiet")
}

func buildOptions(cmd *cobra.Command) (app.BuildOptions, error) {
	jobs, _ := cmd.Flags().GetInt("jobs")
	cacheMode, _ := cmd.Flags().GetString("cache-mode")
	output, _ := cmd.Flags().GetString("output")
	params, _ := cmd.Flags().GetStringArray("param")
	sets, _ := cmd.Flags().GetStringArray("set")

	opts := app.BuildOptions{
		Jobs:       jobs,
		CacheMode:  cacheMode,
		OutputMode: output,
	}
	if cmd.Flags().Lookup("install-dir") != nil {
		opts.InstallRoot, _ = cmd.Flags().GetString("install-dir")
	}

	if len(params) > 0 {
		opts.Params = domain.ConfigMap{}
		for _, p := range params {
			key, value, err := domain.ParseParam(p)
			if err != nil {
				return app.BuildOptions{}, err
			}
			opts.Params[key] = value
		}
	}

	overrides, err := parseOverrides(sets)
	if err != nil {
		return app.BuildOptions{}, err
	}
	opts.Overrides = overrides
	return opts, nil
}

func parseTargets(args []string) ([]domain.TaskID, error) {
	targets := make([]domain.TaskID, 0, len(args))
	for _, arg := range args {
		id, err := domain.ParseTaskID(arg)
		if err != nil {
			return nil, err
		}
		targets = append(targets, id)
	}
	return targets, nil
}

// parseOverrides turns --set values into task settings. The scope before the
// last dot selects the layer: none is global, "domain" a domain and
// "domain:id" a single task.
func parseOverrides(sets []string) (*domain.TaskSettings, error) {
	if len(sets) == 0 {
		return nil, nil
	}
	settings := domain.NewTaskSettings()
	for _, s := range sets {
		path, value, err := domain.ParseParam(s)
		if err != nil {
			return nil, err
		}

		i := strings.LastIndex(path, ".")
		if i < 0 {
			settings.Global[path] = value
			continue
		}
		scope, key := path[:i], path[i+1:]
		if scope == "" || key == "" {
			return nil, domain.Detail(domain.ErrInvalidParam, "param", s)
		}

		if strings.Contains(scope, ":") {
			id, err := domain.ParseTaskID(scope)
			if err != nil {
				return nil, err
			}
			if settings.Tasks[id] == nil {
				settings.Tasks[id] = domain.ConfigMap{}
			}
			settings.Tasks[id][key] = value
			continue
		}
		if settings.Domains[scope] == nil {
			settings.Domains[scope] = domain.ConfigMap{}
		}
		settings.Domains[scope][key] = value
	}
	return settings, nil
}
