package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/timeguardian/internal/clock"
	"github.com/goodtune/timeguardian/internal/engine"
	"github.com/goodtune/timeguardian/internal/notify"
	"github.com/goodtune/timeguardian/internal/storage/memory"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	simulateTicks    int
	simulateSeed     int64
	simulateAutoLock bool
	simulateQuiet    bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the engine offline against a virtual clock",
	Long: `Run the usage engine against a virtual clock and an in-memory store,
printing notifications as they are raised and the state after every tick.`,
	Example: `  timeguardian simulate --ticks 30 --seed 42
  timeguardian simulate --ticks 120 --auto-lock`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().IntVar(&simulateTicks, "ticks", 60, "Number of ticks to simulate")
	simulateCmd.Flags().Int64Var(&simulateSeed, "seed", 1, "Seed for the synthetic usage (0 picks a random seed)")
	simulateCmd.Flags().BoolVar(&simulateAutoLock, "auto-lock", false, "Accept every notification action (grant permissions, lock apps)")
	simulateCmd.Flags().BoolVar(&simulateQuiet, "quiet", false, "Only print the final state")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simulateTicks <= 0 {
		return fmt.Errorf("--ticks must be positive, got %d", simulateTicks)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel).With().Timestamp().Logger()
	ctx := context.Background()
	clk := clock.FixedClock()

	cfg := engine.DefaultConfig()
	cfg.Seed = simulateSeed

	var pending []notify.Notification
	sink := notify.SinkFunc(func(n notify.Notification) {
		if !simulateQuiet {
			printNotification(n)
		}
		if simulateAutoLock && n.Action != nil {
			pending = append(pending, n)
		}
	})

	eng, err := engine.New(ctx, cfg, engine.Deps{
		Clock: clk,
		Store: memory.New(),
		Sink:  sink,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	eng.Start(ctx)
	defer eng.Stop()

	bold := color.New(color.Bold)
	for i := 1; i <= simulateTicks; i++ {
		clk.Advance(eng.Policy().TickPeriod)

		// Actions may raise further notifications with actions of their own.
		for len(pending) > 0 {
			n := pending[0]
			pending = pending[1:]
			if !simulateQuiet {
				fmt.Fprintf(os.Stdout, "    -> %s\n", n.Action.Label)
			}
			n.Action.Callback()
		}

		if simulateQuiet {
			continue
		}
		_, _ = bold.Fprintf(os.Stdout, "tick %3d  %s  coins=%d  %s\n",
			i, clk.Now().Format("15:04"), eng.Balance(), bandSummary(eng))
	}

	fmt.Fprintln(os.Stdout)
	state := eng.Snapshot()
	printState(os.Stdout, &state)
	return nil
}

func bandSummary(eng *engine.Engine) string {
	parts := make([]string, 0, 3)
	for _, a := range eng.Today() {
		parts = append(parts, fmt.Sprintf("%s=%s(%.0f%%)", a.AppName, a.Formatted, a.PercentUsed))
	}
	return strings.Join(parts, " ")
}

func printNotification(n notify.Notification) {
	c := color.New(color.FgCyan)
	switch n.Severity {
	case notify.SeverityDestructive:
		c = color.New(color.FgRed)
	case notify.SeveritySuccess:
		c = color.New(color.FgGreen)
	}
	_, _ = c.Fprintf(os.Stdout, "  [%s] %s: %s\n", n.Severity, n.Title, n.Description)
}
