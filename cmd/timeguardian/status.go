package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/go-resty/resty/v2"
	"github.com/goodtune/timeguardian/internal/config"
	"github.com/goodtune/timeguardian/internal/engine"
	"github.com/goodtune/timeguardian/internal/usage"
	"github.com/spf13/cobra"
)

var (
	statusAddr    string
	statusTimeout time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running daemon",
	Long:  `Fetch the current usage, balance and rewards from a running TimeGuardian daemon.`,
	Example: `  timeguardian status
  timeguardian status --addr http://127.0.0.1:8080`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "API base URL (defaults to the configured bind address and port)")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 5*time.Second, "Request timeout")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr := statusAddr
	if addr == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration (use --addr to skip): %w", err)
		}
		addr = fmt.Sprintf("http://%s:%d", cfg.Server.BindAddress, cfg.Server.APIPort)
	}

	state, err := fetchState(cmd.Context(), addr, statusTimeout)
	if err != nil {
		return err
	}

	printState(os.Stdout, state)
	return nil
}

func fetchState(ctx context.Context, addr string, timeout time.Duration) (*engine.State, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	client := resty.New().
		SetBaseURL(addr).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	var state engine.State
	resp, err := client.R().
		SetContext(ctx).
		SetResult(&state).
		Get("/api/v1/state")
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s: %w", addr, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected response from %s: %s", addr, resp.Status())
	}

	return &state, nil
}

// printState renders a snapshot for the terminal.
func printState(w io.Writer, s *engine.State) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed, color.Bold)

	_, _ = cyan.Fprintf(w, "TimeGuardian @ %s\n", s.Time.Format(time.RFC1123))
	fmt.Fprintf(w, "  FocusCoins: %d   streak: %d (best %d)   days under limit: %d\n",
		s.Stats.Coins, s.Stats.Streak, s.Stats.HighestStreak, s.Stats.DaysUnderLimit)
	fmt.Fprintf(w, "  notifications: %v   usage stats: %v   device admin: %v\n",
		s.Settings.NotificationsEnabled, s.Permissions.UsageStats, s.Permissions.DeviceAdmin)

	_, _ = cyan.Fprintln(w, "\nToday")
	for _, a := range s.Today {
		c := green
		switch a.Band {
		case usage.Approaching:
			c = yellow
		case usage.Exceeded:
			c = red
		}
		_, _ = c.Fprintf(w, "  %-12s %8s / %3dm  %5.1f%%  %s\n", a.AppName, a.Formatted, a.LimitMinutes, a.PercentUsed, a.Band)
	}

	_, _ = cyan.Fprintln(w, "\nRewards")
	rewards := append(s.Rewards[:0:0], s.Rewards...)
	sort.SliceStable(rewards, func(i, j int) bool { return rewards[i].PointCost < rewards[j].PointCost })
	for _, r := range rewards {
		mark := " "
		if r.Unlocked {
			mark = "✓"
		}
		fmt.Fprintf(w, "  [%s] %-22s %4d  %s\n", mark, r.Name, r.PointCost, r.ID)
	}
}
