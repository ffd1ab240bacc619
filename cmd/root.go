package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xhad/sitecheck/pkg/config"
	"github.com/xhad/sitecheck/pkg/logging"
)

var (
	cfgFile     string
	sources     []string
	policy      string
	checkAssets bool
	logLvl      string

	appConfig *config.Config
	logger    *logrus.Logger
)

// errFailed is returned once a command has already printed its failure.
var errFailed = errors.New("check failed")

var rootCmd = &cobra.Command{
	Use:   "sitecheck",
	Short: "Build checks for a Jekyll content tree",
	Long: `sitecheck resolves the documents of a Jekyll site, rejects duplicate
content, classifies chart embeds and renders pages with the site config
threaded through explicitly.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./sitecheck.yaml)")
	rootCmd.PersistentFlags().StringSliceVarP(&sources, "source", "s", nil, "content source directory, repeatable; later sources overlay earlier ones")
	rootCmd.PersistentFlags().StringVar(&policy, "policy", "", "duplicate resolution policy: fail-fast or last-wins")
	rootCmd.PersistentFlags().BoolVar(&checkAssets, "check-assets", false, "check that framed chart sources exist")
	rootCmd.PersistentFlags().StringVar(&logLvl, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(checkCmd, renderCmd, serveCmd)
}

func initializeConfig(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.Content.Sources = cfg.Content.Sources[:0]
		for _, dir := range sources {
			cfg.Content.Sources = append(cfg.Content.Sources, config.SourceConfig{Dir: dir})
		}
	}
	if flags.Changed("policy") {
		cfg.Resolution.Policy = policy
	}
	if flags.Changed("check-assets") {
		cfg.Assets.Check = checkAssets
		if checkAssets && cfg.Assets.Root == "" && !cfg.Assets.Remote && len(cfg.Content.Sources) > 0 {
			cfg.Assets.Root = cfg.Content.Sources[0].Dir
		}
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLvl
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "config: %v\n", e)
		}
		return fmt.Errorf("invalid configuration (%d error(s))", len(errs))
	}

	l, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}

	appConfig = cfg
	logger = l
	return nil
}
