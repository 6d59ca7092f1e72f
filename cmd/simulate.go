package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/verticore/liftd/infra/logger"
	"github.com/verticore/liftd/simulator"
)

var (
	simCalls       int
	simSeed        int64
	simConcurrency int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run synthetic call traffic and report dispatch statistics",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().IntVar(&simCalls, "calls", 100, "number of calls to generate")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 1, "workload seed")
	simulateCmd.Flags().IntVar(&simConcurrency, "concurrency", 8, "concurrent callers")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rep, err := simulator.Run(ctx, simulator.Config{
		NumFloors:    cfg.Fleet.NumFloors,
		NumElevators: cfg.Fleet.NumElevators,
		Calls:        simCalls,
		Concurrency:  simConcurrency,
		Seed:         simSeed,
	}, logger.New("simulator"))
	if err != nil {
		return err
	}
	fmt.Println(rep)
	return nil
}
