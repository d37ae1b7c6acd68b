package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gammazero/workerpool"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
	"go.uber.org/zap"

	"github.com/SyedDaiam9101/fugazzeta-service/internal/app"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/predictor"
)

type fileResult struct {
	path string
	dist predictor.Distribution
	err  error
}

func newPredictCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict <image>...",
		Short: "Classify image files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), c.cfg, app.WithLogger(c.log), app.WithoutCache())
			if err != nil {
				return fmt.Errorf("failed to load model: %w", err)
			}
			defer a.Close()

			noProgress, _ := cmd.Flags().GetBool("no-progress")
			results := classifyFiles(cmd.Context(), a.Predictor, args, c.cfg.Workers, !noProgress && len(args) > 1, cmd.ErrOrStderr(), c.log)
			return printResults(cmd.OutOrStdout(), a.Predictor.Labels(), results)
		},
	}

	cmd.Flags().Int("workers", 4, "Number of images classified concurrently")
	cmd.Flags().Bool("no-progress", false, "Disable the progress bar")
	return cmd
}

// classifyFiles runs the predictor over paths on a worker pool. Results keep
// the order of paths.
func classifyFiles(ctx context.Context, p *predictor.Predictor, paths []string, workers int, progress bool, progressOut io.Writer, log *zap.Logger) []fileResult {
	results := make([]fileResult, len(paths))

	var (
		pb  *mpb.Progress
		bar *mpb.Bar
	)
	if progress {
		pb = mpb.New(
			mpb.WithOutput(progressOut),
			mpb.WithWidth(60),
		)
		bar = pb.AddBar(int64(len(paths)),
			mpb.PrependDecorators(
				decor.Name("classifying", decor.WC{W: 12, C: decor.DidentRight}),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(decor.Percentage()),
		)
	}

	wp := workerpool.New(workers)
	for i, path := range paths {
		wp.Submit(func() {
			defer func() {
				if bar != nil {
					bar.Increment()
				}
			}()

			data, err := os.ReadFile(path)
			if err != nil {
				results[i] = fileResult{path: path, err: err}
				return
			}
			dist, err := p.PredictBytes(ctx, data)
			if err != nil {
				log.Debug("prediction failed", zap.String("path", path), zap.Error(err))
			}
			results[i] = fileResult{path: path, dist: dist, err: err}
		})
	}
	wp.StopWait()

	if pb != nil {
		pb.Wait()
	}
	return results
}

func printResults(w io.Writer, labels []string, results []fileResult) error {
	fmt.Fprintf(w, "Labels: %v\n", labels)

	failed := 0
	for _, r := range results {
		name := filepath.Base(r.path)
		if r.err != nil {
			failed++
			fmt.Fprintf(w, "%s: error: %v\n", name, r.err)
			continue
		}
		best, ok := r.dist.Best()
		if !ok {
			fmt.Fprintf(w, "%s: empty image\n", name)
			continue
		}
		fmt.Fprintf(w, "%s: This is a: %s.\n", name, best.Label)
		for _, p := range r.dist {
			fmt.Fprintf(w, "  %s: %.4f\n", p.Label, p.Probability)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(results))
	}
	return nil
}
