package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vietddude/perfguard/internal/core/domain"
	redisclient "github.com/vietddude/perfguard/internal/infra/redis"
	"github.com/vietddude/perfguard/internal/infra/storage"
	"github.com/vietddude/perfguard/internal/infra/storage/postgres"
)

var resetLevelCmd = &cobra.Command{
	Use:   "reset-level [level]",
	Short: "Overwrite the persisted degradation level used on next start",
	Args:  cobra.ExactArgs(1),
	Run:   runResetLevel,
}

func init() {
	rootCmd.AddCommand(resetLevelCmd)
}

func runResetLevel(cmd *cobra.Command, args []string) {
	level, err := strconv.Atoi(args[0])
	if err != nil || level < domain.LevelNormal || level > domain.LevelEmergency {
		fmt.Printf("Invalid level %q: want %d-%d\n", args[0], domain.LevelNormal, domain.LevelEmergency)
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var store storage.LevelStore
	var closer func() error
	switch {
	case cfg.Database.URL != "":
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		repo := postgres.NewEventRepo(db)
		store, closer = repo, repo.Close
	case cfg.Redis.URL != "":
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		store, closer = client, client.Close
	default:
		fmt.Println("No persistent storage configured; the level is not saved between runs")
		os.Exit(1)
	}
	defer func() {
		_ = closer()
	}()

	if err := store.SaveLevel(ctx, level); err != nil {
		slog.Error("Failed to reset level", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully reset degradation level to %d\n", level)
}
