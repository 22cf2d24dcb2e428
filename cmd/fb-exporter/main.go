package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	fbexporter "github.com/hellenic-development/fb-exporter"
	"github.com/hellenic-development/fb-exporter/pkg/config"
	"github.com/hellenic-development/fb-exporter/pkg/graph"
	"github.com/hellenic-development/fb-exporter/pkg/report"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

// tokenEnvVar is the only place the access token is read from besides the
// --token flag. It is never written anywhere.
const tokenEnvVar = "FB_PAGE_ACCESS_TOKEN"

var (
	accessToken  string
	pageID       string
	adAccountID  string
	graphVersion string
	since        string
	until        string
	outputFile   string
	configFile   string
	envFile      string
	dryRunLimit  int
	debug        bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fb-exporter",
		Short: "Export Facebook Page post metrics to spreadsheet files",
		Long: "A read-only tool that exports Facebook Page post metadata with " +
			"engagement insights (CSV) or attributed ad spend (XLSX) via the Graph API",
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&accessToken, "token", "t", "", "Page access token (defaults to "+tokenEnvVar+")")
	flags.StringVarP(&pageID, "page-id", "p", "", "Facebook Page id (required)")
	flags.StringVar(&graphVersion, "graph-version", "", "Graph API version (default "+graph.DefaultVersion+")")
	flags.StringVar(&since, "since", "", "Start date, YYYY-MM-DD (required)")
	flags.StringVar(&until, "until", "", "End date, YYYY-MM-DD (required)")
	flags.StringVarP(&configFile, "config", "c", "", "Optional YAML run configuration file")
	flags.StringVar(&envFile, "env-file", "", "Optional .env file to load before reading "+tokenEnvVar)
	flags.IntVar(&dryRunLimit, "dry-run-limit", 0, "Stop the posts listing after N posts and skip per-post work")

	postsCmd := &cobra.Command{
		Use:   "posts",
		Short: "Export posts with engagement insights to CSV",
		Run:   runPosts,
	}
	postsCmd.Flags().StringVarP(&outputFile, "output", "o", "fb_page_posts_report.csv", "Output CSV file")

	spendCmd := &cobra.Command{
		Use:   "spend",
		Short: "Export spent-per-post ad attribution to XLSX",
		Run:   runSpend,
	}
	spendCmd.Flags().StringVarP(&adAccountID, "ad-account-id", "a", os.Getenv("AD_ACCOUNT_ID"), "Ad account id, \"123\" or \"act_123\"")
	spendCmd.Flags().StringVarP(&outputFile, "output", "o", "fb_post_spend_report.xlsx", "Output XLSX file")
	spendCmd.Flags().BoolVar(&debug, "debug", false, "Also write a spend_debug.json diagnostic artifact")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fb-exporter version %s\n", version)
		},
	}

	rootCmd.AddCommand(postsCmd, spendCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// buildOptions merges defaults, the optional config file, the environment
// and the flags (highest precedence) into run options. Exits with status 2
// on configuration problems, matching the usage-error convention.
func buildOptions() fbexporter.Options {
	red := color.New(color.FgRed)

	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			red.Printf("Error: %v\n", err)
			os.Exit(2)
		}
		cfg = loaded
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			red.Printf("Error: load %s: %v\n", envFile, err)
			os.Exit(2)
		}
	}

	token := accessToken
	if token == "" {
		token = os.Getenv(tokenEnvVar)
	}

	opts := fbexporter.Options{
		AccessToken:  token,
		PageID:       firstOf(pageID, cfg.PageID),
		AdAccountID:  firstOf(adAccountID, cfg.AdAccountID),
		GraphVersion: firstOf(graphVersion, cfg.GraphVersion),
		Since:        firstOf(since, cfg.Since),
		Until:        firstOf(until, cfg.Until),
		DryRunLimit:  dryRunLimit,
		Request:      cfg.Request,
		Logger:       &cliLogger{},
	}

	if outputFile == "" {
		outputFile = cfg.Output
	}
	return opts
}

func runPosts(cmd *cobra.Command, args []string) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)

	cyan.Println("\nFacebook Page engagement export (read-only)")
	cyan.Println("===========================================")

	opts := buildOptions()
	result, err := fbexporter.RunEngagement(context.Background(), opts)
	if err != nil {
		fail(err)
	}

	if opts.DryRunLimit > 0 {
		cyan.Printf("\nDry run: would export %d posts to %s.\n", len(result.Posts), outputFile)
		return
	}

	if err := report.WriteEngagementCSV(outputFile, result.Rows); err != nil {
		red.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	cyan.Println("\nExport summary:")
	fmt.Printf("  - Page: %s\n", result.PageName)
	fmt.Printf("  - Posts fetched: %d\n", len(result.Posts))
	fmt.Printf("  - Valid metrics: %d\n", len(result.ValidMetrics))
	green.Printf("\nWrote %d rows to %s\n", len(result.Rows), outputFile)
}

func runSpend(cmd *cobra.Command, args []string) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)

	cyan.Println("\nFacebook Page spend attribution export (read-only)")
	cyan.Println("==================================================")

	opts := buildOptions()
	result, err := fbexporter.RunSpend(context.Background(), opts)
	if err != nil {
		fail(err)
	}

	if err := report.WriteSpendXLSX(outputFile, result.Rows); err != nil {
		red.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	cyan.Println("\nExport summary:")
	fmt.Printf("  - Posts fetched: %d\n", result.Stats.PostsFetched)
	fmt.Printf("  - Ads scanned: %d\n", result.Stats.AdsScanned)
	fmt.Printf("  - Ads with a join key: %d\n", result.Stats.AdsWithStoryID)
	fmt.Printf("  - Posts matched to ads: %d\n", result.Stats.PostsMatched)
	green.Printf("\nWrote %d rows to %s\n", len(result.Rows), outputFile)

	if debug {
		accountID, _ := fbexporter.NormalizeAdAccountID(opts.AdAccountID)
		artifact := report.NewDebugArtifact(
			opts.GraphVersion, opts.PageID, accountID,
			result.Stats, result.Mapping, result.SampleSpend,
		)
		if err := report.WriteDebugJSON("spend_debug.json", artifact); err != nil {
			red.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		green.Println("Wrote debug artifact: spend_debug.json")
	}
}

// fail prints err and exits: status 2 for configuration mistakes, 1 for
// everything else. Error text is already token-free.
func fail(err error) {
	red := color.New(color.FgRed)
	red.Printf("Error: %v\n", err)
	if errors.Is(err, fbexporter.ErrMissingToken) {
		os.Exit(2)
	}
	os.Exit(1)
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// cliLogger implements fbexporter.Logger with colored terminal output.
type cliLogger struct{}

func (l *cliLogger) Infof(format string, args ...any) {
	color.New(color.FgYellow).Printf(format+"\n", args...)
}

func (l *cliLogger) Warnf(format string, args ...any) {
	color.New(color.FgYellow).Printf("! "+format+"\n", args...)
}

func (l *cliLogger) Errorf(format string, args ...any) {
	color.New(color.FgRed).Printf("x "+format+"\n", args...)
}
