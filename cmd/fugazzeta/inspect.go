package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"lukechampine.com/blake3"

	"github.com/SyedDaiam9101/fugazzeta-service/internal/artifact"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/storage"
)

func newInspectCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [artifact]",
		Short: "Describe a model artifact without loading it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			location := c.cfg.Model
			if len(args) == 1 {
				location = args[0]
			}
			path, err := storage.NewResolver(c.cfg.S3, c.log).Resolve(cmd.Context(), location)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read artifact: %w", err)
			}
			a, err := artifact.Decode(data)
			if err != nil {
				return fmt.Errorf("failed to decode artifact %s: %w", path, err)
			}

			sum := blake3.Sum256(data)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "path:\t%s\n", location)
			fmt.Fprintf(w, "kind:\t%s\n", a.Kind)
			fmt.Fprintf(w, "digest:\t%s\n", hex.EncodeToString(sum[:]))
			if a.Arch != nil {
				fmt.Fprintf(w, "arch:\t%s (in=%d classes=%d features=%d dropout=%g)\n",
					a.Arch.Name, a.Arch.InChannels, a.Arch.NumClasses, a.Arch.Features, a.Arch.Dropout)
			}
			if len(a.Vocab) > 0 {
				fmt.Fprintf(w, "vocab:\t%v\n", a.Vocab)
			}

			names := make([]string, 0, len(a.Weights))
			for name := range a.Weights {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Fprintf(w, "parameters:\t%d\n", len(names))
			for _, name := range names {
				fmt.Fprintf(w, "  %s\t%v\n", name, a.Weights[name].Shape)
			}
			return w.Flush()
		},
	}
}
