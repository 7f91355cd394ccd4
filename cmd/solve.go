package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kilianp07/dcopf/app"
	"github.com/kilianp07/dcopf/config"
	"github.com/kilianp07/dcopf/core/study"
	"github.com/kilianp07/dcopf/internal/netfile"
	"github.com/kilianp07/dcopf/pkg/export"
)

var (
	networkPaths []string
	outDir       string
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Dispatch one or more networks and export prices, flows and settlement",
	RunE:  solve,
}

func init() {
	solveCmd.Flags().StringSliceVarP(&networkPaths, "network", "n", nil, "network file (repeatable)")
	solveCmd.Flags().StringVarP(&outDir, "out", "o", "out", "output directory")
	_ = solveCmd.MarkFlagRequired("network")
	rootCmd.AddCommand(solveCmd)
}

func solve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	zerolog.SetGlobalLevel(cfg.Logging.ZerologLevel())

	files := make([]*netfile.File, 0, len(networkPaths))
	for _, p := range networkPaths {
		f, err := netfile.Load(p)
		if err != nil {
			return err
		}
		files = append(files, f)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	outcomes := svc.Run(ctx, files)
	return report(cmd.OutOrStdout(), outcomes, len(files) > 1)
}

// report exports every optimal study and returns the first failure.
func report(w io.Writer, outcomes []study.Outcome, perNetwork bool) error {
	var first error
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(w, "%s\t%s\t%v\n", o.Name, o.Status, o.Err)
			if first == nil {
				first = o.Err
			}
			continue
		}
		dir := outDir
		if perNetwork {
			dir = filepath.Join(outDir, o.Name)
		}
		if err := export.WriteDir(dir, o.Result); err != nil {
			return fmt.Errorf("export %s: %w", o.Name, err)
		}
		fmt.Fprintf(w, "%s\t%s\ttotal_cost=%g\tcongested=%d\twarnings=%d\t%s\n",
			o.Name, o.Status, o.Result.TotalCost, len(o.Result.CongestedLines()), len(o.Result.Warnings), dir)
	}
	return first
}
