package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/perfguard/internal/core/domain"
	"github.com/vietddude/perfguard/internal/degradation"
	"github.com/vietddude/perfguard/internal/health"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current health, degradation level and detector state",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	base, err := baseURL()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	report, err := fetchReport(ctx, base)
	if err != nil {
		slog.Error("Failed to fetch status", "error", err)
		os.Exit(1)
	}

	printReport(os.Stdout, report)
}

func printReport(out io.Writer, r health.Report) {
	_, _ = fmt.Fprintf(out, "Status: %s (score %d)\n", r.Status, r.Score)
	_, _ = fmt.Fprintf(out, "Level:  %d %s\n", r.Level, degradation.LevelDescription(r.Level))
	_, _ = fmt.Fprintf(out, "Recovery: %d/%d succeeded\n\n", r.Recovery.Successful, r.Recovery.Total)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "DETECTOR\tAVAILABLE\tLAST VALUE\tDETECTIONS\tCRITICAL\tWARNING")
	for _, d := range domain.Domains {
		st, ok := r.Detection.Detectors[d]
		if !ok {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%t\t%.2f\t%d\t%v\t%v\n",
			d, st.Available, st.LastValue, st.Detections, st.Thresholds.Critical, st.Thresholds.Warning)
	}
	_ = w.Flush()

	if len(r.Degradation.DisabledFeatures) > 0 {
		disabled := slices.Clone(r.Degradation.DisabledFeatures)
		slices.Sort(disabled)
		_, _ = fmt.Fprintf(out, "\nDisabled: %v\n", disabled)
	}
	if len(r.Degradation.ActiveModes) > 0 {
		_, _ = fmt.Fprintf(out, "Modes:    %v\n", r.Degradation.ActiveModes)
	}
}
