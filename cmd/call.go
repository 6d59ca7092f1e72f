package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/verticore/liftd/app"
	"github.com/verticore/liftd/core/dispatch"
	"github.com/verticore/liftd/core/model"
	"github.com/verticore/liftd/infra/logger"
)

var (
	callFrom   int
	callTo     int
	callCaller string
	callKey    string
)

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Request a ride and wait for it to finish",
	RunE:  runCall,
}

func init() {
	callCmd.Flags().IntVar(&callFrom, "from", 1, "pickup floor")
	callCmd.Flags().IntVar(&callTo, "to", 1, "destination floor")
	callCmd.Flags().StringVar(&callCaller, "caller", "cli", "caller identifier")
	callCmd.Flags().StringVar(&callKey, "idempotency-key", "", "optional idempotency key")
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("call-command").Errorf("service close: %v", err)
		}
	}()

	asg, err := svc.Dispatcher.Assign(ctx, model.CallRequest{
		FromFloor:      callFrom,
		ToFloor:        callTo,
		CallerID:       callCaller,
		IdempotencyKey: callKey,
	})
	if err != nil {
		if errors.Is(err, dispatch.ErrNoAvailableUnit) {
			return fmt.Errorf("no elevator can serve %d->%d right now", callFrom, callTo)
		}
		return err
	}
	fmt.Printf("elevator %d assigned, task %s, eta %.1fs\n", asg.ElevatorID, asg.TaskID, asg.EstimatedArrivalTime)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		rec := svc.Dispatcher.GetTaskStatus(asg.TaskID)
		if rec.Status != model.TaskRunning {
			fmt.Printf("task %s: %s", asg.TaskID, rec.Status)
			if rec.Reason != "" {
				fmt.Printf(" (%s)", rec.Reason)
			}
			fmt.Println()
			if rec.Status == model.TaskFailed {
				return fmt.Errorf("ride failed: %s", rec.Reason)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
