package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"retail-crawler/adapters"
	"retail-crawler/config"
	"retail-crawler/extractor"
	"retail-crawler/internal/types"
	"retail-crawler/utils"
)

var (
	configDir  string
	outputDir  string
	siteNames  []string
	resultPath string
	devMode    bool
	pageLimit  int
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "retail-crawler",
	Short: "retail-crawler scrapes product listings from configured retailers into gzip CSV files.",
}

var runCmd = &cobra.Command{
	Use:   "run [--site <name>]...",
	Short: "Crawls every enabled retailer, or only the named ones.",
	RunE:  runCrawl,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Loads and validates every site configuration without crawling.",
	RunE:  runValidate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Directory holding the site configuration files")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")

	runCmd.Flags().StringSliceVar(&siteNames, "site", nil, "Site to crawl (repeatable, default: all enabled sites)")
	runCmd.Flags().StringVar(&outputDir, "output-dir", "", "Root directory of the dated output files")
	runCmd.Flags().StringVar(&resultPath, "result", "", "Write the run summary as JSON to this file (default: stdout)")
	runCmd.Flags().BoolVar(&devMode, "dev", false, "Dev mode: stop after --page-limit pages per site")
	runCmd.Flags().IntVar(&pageLimit, "page-limit", 0, "Page ceiling in dev mode")

	rootCmd.AddCommand(runCmd, validateCmd)
}

// processConfig merges environment and flags into the process configuration
func processConfig(cmd *cobra.Command) *types.Config {
	cfg := config.FromEnv()
	if configDir != "" {
		cfg.ConfigDir = configDir
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if cmd.Flags().Changed("dev") {
		cfg.DevMode = devMode
	}
	if pageLimit > 0 {
		cfg.PageLimit = pageLimit
	}
	if verbose && os.Getenv(config.EnvLogLevel) == "" {
		cfg.LogLevel = "debug"
	}
	return cfg
}

// loadSites loads the requested sites. Sites with configuration errors
// are reported and skipped; an empty selection is an error.
func loadSites(cfg *types.Config, logger *logrus.Logger) ([]*types.SiteConfig, error) {
	var (
		sites []*types.SiteConfig
		err   error
	)
	if len(siteNames) == 0 {
		sites, err = config.LoadDir(cfg.ConfigDir)
	} else {
		var errs []error
		for _, name := range siteNames {
			site, loadErr := config.LoadSite(cfg.ConfigDir, name)
			if loadErr != nil {
				errs = append(errs, loadErr)
				continue
			}
			sites = append(sites, site)
		}
		err = errors.Join(errs...)
	}
	if err != nil {
		logger.Errorf("Configuration errors: %v", err)
	}
	if len(sites) == 0 {
		return nil, fmt.Errorf("no usable site configurations in %s", cfg.ConfigDir)
	}

	for _, site := range sites {
		config.ApplyEnv(site, cfg)
	}
	return sites, nil
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg := processConfig(cmd)
	logger := utils.NewLogger(cfg.LogLevel)

	sites, err := loadSites(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startTime := time.Now()
	logger.Infof("Starting crawl for %d sites (dev mode: %v)", len(sites), cfg.DevMode)

	result := extractor.RunAll(ctx, sites, extractor.OptionsFromConfig(cfg))

	logger.Infof("Crawl completed in %v", time.Since(startTime))

	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if resultPath != "" {
		if err := os.WriteFile(resultPath, jsonData, 0644); err != nil {
			return fmt.Errorf("failed to write result file: %w", err)
		}
		logger.Infof("Results written to: %s", resultPath)
	} else {
		fmt.Println(string(jsonData))
	}

	// Print summary
	failed := 0
	for _, store := range result.Stores {
		if store.Error != "" {
			failed++
		}
	}
	logger.Infof("Total sites processed: %d", len(result.Stores))
	logger.Infof("Sites with errors: %d", failed)
	logger.Infof("Total products saved: %d", result.Total())
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg := processConfig(cmd)
	logger := utils.NewLogger(cfg.LogLevel)

	sites, err := config.LoadDir(cfg.ConfigDir)
	if err != nil {
		logger.Errorf("Configuration errors: %v", err)
	}

	invalid := 0
	for _, site := range sites {
		if _, mapErr := adapters.NewMapper(site, logger); mapErr != nil {
			logger.Errorf("%s: %v", site.Name, mapErr)
			invalid++
			continue
		}
		logger.Infof("%s: OK (%s, enabled: %v)", site.Name, site.ScraperType, site.IsEnabled())
	}

	if err != nil || invalid > 0 {
		return fmt.Errorf("configuration in %s is invalid", cfg.ConfigDir)
	}
	return nil
}

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
