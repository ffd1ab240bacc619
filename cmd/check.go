package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/xhad/sitecheck/pkg/checker"
)

var jsonOutput bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the content tree without rendering",
	Long: `check loads every content source, resolves the site, classifies chart
embeds and validates page headers. It exits non-zero when any problem is found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		report, err := runCheck(ctx, !jsonOutput)
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report.Summary()); err != nil {
				return err
			}
		} else {
			printReport(report)
		}

		if !report.OK() {
			return errFailed
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the report as JSON")
}

// runCheck runs one check against appConfig, showing progress when
// interactive is set.
func runCheck(ctx context.Context, interactive bool) (*checker.Report, error) {
	cc := checker.CheckerConfig{
		Config: appConfig,
		Logger: logger,
	}

	var (
		mu    sync.Mutex
		bar   *progressbar.ProgressBar
		total int
	)
	if interactive {
		bar = getSpinner("🔍 Discovering documents...")
		cc.OnDiscover = func(n int) {
			mu.Lock()
			defer mu.Unlock()
			total = n
			bar.Finish()
			bar = getProgressBar(total, "📄 Reading documents...")
		}
		cc.OnStage = func(stage string) {
			mu.Lock()
			defer mu.Unlock()
			switch stage {
			case checker.StageProcess:
				bar.Finish()
				bar = getProgressBar(total, "🔄 Classifying embeds...")
			case checker.StageAssets:
				bar.Finish()
				bar = getSpinner("🌐 Checking chart assets...")
			}
		}
		cc.OnProgress = func(string) {
			mu.Lock()
			defer mu.Unlock()
			bar.Add(1)
		}
	}

	c, err := checker.NewWithConfig(cc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize checker: %v", err)
	}

	report, err := c.Run(ctx)
	if bar != nil {
		mu.Lock()
		bar.Finish()
		mu.Unlock()
		fmt.Fprintln(color.Error)
	}
	if err != nil {
		return nil, fmt.Errorf("check failed to run: %w", err)
	}
	return report, nil
}

func printReport(report *checker.Report) {
	summary := report.Summary()

	for _, o := range summary.Overwrites {
		color.Yellow("! overwrite %s\n", o)
	}

	for _, p := range summary.Problems {
		loc := p.Path
		if p.Line > 0 {
			loc = fmt.Sprintf("%s:%d", p.Path, p.Line)
		}
		if loc == "" {
			loc = "-"
		}
		color.Red("✗ [%s] %s\n", p.Kind, loc)
		fmt.Printf("    %s\n", p.Message)
	}

	took := report.Duration.Round(time.Millisecond)
	switch {
	case report.OK():
		color.Green("\n✓ %d documents resolved, %d embeds classified in %s\n",
			report.Resolved, report.Embeds, took)
	case !report.Publishable:
		color.Red("\n✗ content tree is ambiguous: %d problem(s) across %d candidates (%s)\n",
			len(report.Problems), report.Candidates, took)
	default:
		color.Red("\n✗ %d problem(s) in %d documents (%s)\n",
			len(report.Problems), report.Resolved, took)
	}
}
