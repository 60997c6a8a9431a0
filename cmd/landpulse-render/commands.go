package main

import (
	"fmt"
	"strings"

	"landpulse/internal/adapters/imagery/earthengine"
	"landpulse/internal/core/imagery"
	"landpulse/internal/core/locality"
	"landpulse/internal/core/version"
	"landpulse/internal/platform/config"
	"landpulse/internal/platform/logger"
	pdom "landpulse/internal/services/pipeline/domain"
	pipelinemod "landpulse/internal/services/pipeline/module"
	psvc "landpulse/internal/services/pipeline/service"

	"github.com/spf13/cobra"
)

// settings are the flags shared by every command
type settings struct {
	geojson  string
	nameProp string
}

// RootCommand creates and returns the root command
func RootCommand(cfg config.Conf) *cobra.Command {
	lp := cfg.Prefix("LANDPULSE_")
	s := &settings{}

	rootCmd := &cobra.Command{
		Use:           "landpulse-render",
		Short:         "Render NDVI and NDWI animations for a locality",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&s.geojson, "geojson", lp.MayString("GEOJSON_PATH", ""), "Path to the locality FeatureCollection")
	rootCmd.PersistentFlags().StringVar(&s.nameProp, "name-property", lp.MayString("NAME_PROPERTY", locality.DefaultNameProperty), "Feature property holding the locality name")

	rootCmd.AddCommand(
		listCommand(s),
		renderCommand(cfg, s),
		versionCommand(),
	)
	return rootCmd
}

func (s *settings) localities() (*locality.Store, error) {
	if strings.TrimSpace(s.geojson) == "" {
		return nil, fmt.Errorf("--geojson or LANDPULSE_GEOJSON_PATH is required")
	}
	return locality.Load(s.geojson, locality.WithNameProperty(s.nameProp))
}

func listCommand(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the known locality names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			locs, err := s.localities()
			if err != nil {
				return err
			}
			for _, n := range locs.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

// renderFlags override the LANDPULSE_ config when set
type renderFlags struct {
	out   string
	mode  string
	label bool
}

func renderCommand(cfg config.Conf, s *settings) *cobra.Command {
	f := &renderFlags{}

	cmd := &cobra.Command{
		Use:   "render <locality>",
		Short: "Render both animations of one locality",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.Named("render")
			opts, err := f.options(cmd, cfg)
			if err != nil {
				return err
			}

			locs, err := s.localities()
			if err != nil {
				return err
			}
			ee := cfg.Prefix("EARTHENGINE_")
			project := ee.MayString("PROJECT", "")
			if project == "" {
				return fmt.Errorf("%s is required", ee.Key("PROJECT"))
			}
			client, err := earthengine.New(cmd.Context(), earthengine.Config{
				Project:         project,
				CredentialsFile: ee.MayString("CREDENTIALS_FILE", ""),
				Endpoint:        ee.MayString("ENDPOINT", ""),
				Collection:      ee.MayString("COLLECTION", ""),
			})
			if err != nil {
				return err
			}

			res, err := psvc.New(client, locs, opts.Service()).Process(cmd.Context(), args[0])
			if err != nil {
				log.Error().Err(err).Str("locality", args[0]).Str("run_id", res.RunID).Msg("render failed")
				return err
			}
			return printResult(cmd, res)
		},
	}

	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Directory the {locality}_gifs folder is written to (default LANDPULSE_OUTPUT_DIR or outputs)")
	cmd.Flags().StringVar(&f.mode, "mode", "", "Render mode: palette or mask (default LANDPULSE_RENDER_MODE or palette)")
	cmd.Flags().BoolVar(&f.label, "label", false, "Stamp YYYY-MM on every frame")
	return cmd
}

// options reads the pipeline options and applies the flags on top.
// an invalid LANDPULSE_RENDER_MODE is reported as an error before FromConfig can panic on it
func (f *renderFlags) options(cmd *cobra.Command, cfg config.Conf) (pipelinemod.Options, error) {
	lp := cfg.Prefix("LANDPULSE_")
	if _, err := imagery.ParseRenderMode(lp.MayString("RENDER_MODE", "")); err != nil {
		return pipelinemod.Options{}, fmt.Errorf("%s: %w", lp.Key("RENDER_MODE"), err)
	}
	opts := pipelinemod.FromConfig(cfg)

	if f.mode != "" {
		m, err := imagery.ParseRenderMode(f.mode)
		if err != nil {
			return pipelinemod.Options{}, err
		}
		opts.Mode = m
	}
	if f.out != "" {
		opts.OutputDir = f.out
	}
	if cmd.Flags().Changed("label") {
		opts.Labels = f.label
	}
	return opts, nil
}

func printResult(cmd *cobra.Command, res pdom.Result) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s  %s\n", res.RunID, res.Locality)
	for _, ir := range res.Run.Indices {
		line := fmt.Sprintf("  %-4s %2d frames  %s", ir.Index, ir.Frames, ir.Output)
		if len(ir.Skipped) > 0 {
			line += "  (skipped: " + strings.Join(ir.Skipped, ", ") + ")"
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "landpulse-render", version.Info().String())
		},
	}
}
