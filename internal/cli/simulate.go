package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/perfguard/internal/core/domain"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [detector] [level]",
	Short: "Inject a synthetic performance error into a running controller",
	Long: `Inject a synthetic performance error into a running controller.
Detectors: frameRate, memory, rendering, network, javascript, resource.
Levels: critical (default), warning, info.`,
	Args: cobra.RangeArgs(1, 2),
	Run:  runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) {
	d := domain.Domain(args[0])
	level := domain.LevelCritical
	if len(args) == 2 {
		level = domain.DetectionLevel(args[1])
	}

	base, err := baseURL()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := postSimulate(ctx, base, d, level); err != nil {
		slog.Error("Failed to simulate error", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Dispatched %s %s error\n", level, d)
}
