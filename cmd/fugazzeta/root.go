package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SyedDaiam9101/fugazzeta-service/internal/config"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/logger"
)

const serviceName = "fugazzeta-service"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// cli carries the state PersistentPreRunE prepares for every subcommand.
type cli struct {
	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "fugazzeta",
		Short:         "Pizza vs fugazzeta image classifier",
		Long:          "Loads a trained classifier artifact and serves predictions over gRPC, HTTP and the command line.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Runs before this command and any subcommands
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := config.LoadEnvFile(envFile); err != nil {
				return err
			}

			var (
				cfg *config.Config
				err error
			)
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				cfg, err = config.LoadWithConfigFile(path, cmd.Flags())
			} else {
				cfg, err = config.Load(cmd.Flags())
			}
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log, err := logger.New(cfg.Environment)
			if err != nil {
				return err
			}
			c.cfg, c.log = cfg, log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}

	pflags := root.PersistentFlags()
	pflags.String("config", "", "Path to config file (optional)")
	pflags.String("env-file", "", "Path to a .env file (default: ./.env when present)")
	pflags.String("environment", "development", "Environment (production, development, test)")
	pflags.String("model", "model.pkl", "Path or s3:// URI of the model artifact")
	pflags.String("engine", config.EngineAuto, "Inference engine: auto, native, onnx or mock")
	pflags.StringSlice("labels", []string{"fugazzeta", "pizza"}, "Labels in model output order")
	pflags.String("arch", "tinyconv", "Architecture to build before loading: tinyconv or pooled-linear")
	pflags.Int("arch-features", 8, "Feature maps of the tinyconv body")

	root.AddCommand(
		newServeCmd(c),
		newPredictCmd(c),
		newInspectCmd(c),
		newExportCmd(c),
	)
	root.CompletionOptions.HiddenDefaultCmd = true
	return root
}
