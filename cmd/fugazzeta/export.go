package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SyedDaiam9101/fugazzeta-service/internal/app"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/artifact"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/config"
)

func newExportCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Re-export the configured model as a full learner artifact",
		Long: "Loads the configured model (any artifact shape) and writes it back as a full learner " +
			"carrying its architecture, vocab and weights.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				return fmt.Errorf("--out is required")
			}

			cfg := *c.cfg
			cfg.Engine = config.EngineNative
			a, err := app.New(cmd.Context(), &cfg, app.WithLogger(c.log), app.WithoutCache())
			if err != nil {
				return fmt.Errorf("failed to load model: %w", err)
			}
			defer a.Close()

			m := a.Model
			data, err := artifact.EncodeLearner(m.Spec(), m.Labels(), m.Weights())
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}

			c.log.Info("model exported",
				zap.String("out", out),
				zap.Stringer("from", m.Kind()),
				zap.String("arch", m.Spec().Name))
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s -> %s\n", cfg.Model, out)
			return nil
		},
	}

	cmd.Flags().String("out", "export.pkl", "Output path for the exported artifact")
	return cmd
}
