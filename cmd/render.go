package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/sitecheck/pkg/render"
)

var (
	outPath string
	rawHTML bool
)

var renderCmd = &cobra.Command{
	Use:   "render <path>",
	Short: "Render one page after a clean check",
	Long: `render runs a full check first and refuses to render anything when the
content tree is ambiguous. Pages with malformed embeds still render, with
each embed marked or omitted. The page is written with a preview layout
unless --raw is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		report, err := runCheck(ctx, outPath != "")
		if err != nil {
			return err
		}
		docs, err := report.ProcessedFor(args[0])
		if err != nil {
			if !report.Publishable {
				printReport(report)
				color.Red("refusing to render %s\n", args[0])
				return errFailed
			}
			return err
		}
		if n := len(docs[0].Problems); n > 0 {
			action := "marked"
			if appConfig.Render.Malformed == render.OmitMalformed {
				action = "omitted"
			}
			// stderr, so a page written to stdout stays clean
			fmt.Fprintln(color.Error, color.YellowString("! %s has %d problem(s); malformed embeds are %s",
				docs[0].Path, n, action))
		}

		r := render.New(appConfig.Site, render.Options{
			Malformed: appConfig.Render.Malformed,
			Logger:    logger,
		})
		page, err := r.Render(docs[0])
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if outPath != "" {
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outPath, err)
			}
			defer f.Close()
			w = f
		}

		if rawHTML {
			_, err = io.WriteString(w, string(page.HTML))
		} else {
			err = r.WritePage(w, page)
		}
		if err != nil {
			return fmt.Errorf("failed to write page: %w", err)
		}

		if outPath != "" {
			color.Green("✓ Rendered %s (%s) to %s\n", page.Path, page.Permalink, outPath)
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVarP(&outPath, "out", "o", "", "write the page to this file instead of stdout")
	renderCmd.Flags().BoolVar(&rawHTML, "raw", false, "write the page body without the preview layout")
}
