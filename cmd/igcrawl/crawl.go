package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/simonseo/instagram-hashtag-crawler/pkg/auth"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/config"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/crawler"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/export"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/instagram"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/logger"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/models"
)

var (
	// Crawl command flags
	targetsFile       string
	andSearch         bool
	outputDir         string
	maxPosts          int
	minPosts          int
	sinceStr          string
	cookiesFile       string
	accountName       string
	requestsPerMinute int
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl [hashtag...]",
	Short: "Collect recent posts for one or more hashtags",
	Long: `Collect recent Instagram posts for each given hashtag and write them
to <output-dir>/<hashtag>.json.

With --and, a single search runs across all given hashtags and keeps only
posts whose caption carries every one of them, written to a single file
named after the sorted hashtags joined with "_AND_".

Hashtags can be given as arguments or read from a file with --targets-file,
one hashtag per line. The leading '#' is optional either way.

Valid Instagram credentials are required, from one of:
  - A stored account (use 'igcrawl auth login' to store)
  - A Netscape cookies.txt file (--cookies)
  - Environment variables (IGCRAWL_SESSION_ID and IGCRAWL_CSRF_TOKEN)
  - The configuration file`,
	Example: `  # Collect up to 100 recent posts for two hashtags separately
  igcrawl crawl food pizza

  # Only posts carrying both #food and #pizza
  igcrawl crawl food pizza --and

  # Read hashtags from a file, keep posts from the last week
  igcrawl crawl --targets-file tags.txt --since 168h

  # Authenticate from an exported cookies.txt
  igcrawl crawl food --cookies ~/cookies.txt --max-posts 50`,
	Args: cobra.ArbitraryArgs,
	Run:  runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVarP(&targetsFile, "targets-file", "t", "", "file with one hashtag per line")
	crawlCmd.Flags().BoolVar(&andSearch, "and", false, "keep only posts tagged with every given hashtag")
	crawlCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory for JSON output (default: ./hashtags)")
	crawlCmd.Flags().IntVar(&maxPosts, "max-posts", 0, "stop after this many posts per target")
	crawlCmd.Flags().IntVar(&minPosts, "min-posts", 0, "write no output when fewer posts were found")
	crawlCmd.Flags().StringVar(&sinceStr, "since", "", "only posts newer than this age (e.g. 72h) or RFC 3339 time")
	crawlCmd.Flags().StringVar(&cookiesFile, "cookies", "", "Netscape cookies.txt file with Instagram session cookies")
	crawlCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored account")
	crawlCmd.Flags().IntVar(&requestsPerMinute, "requests-per-minute", 0, "request budget per minute")
}

func runCrawl(cmd *cobra.Command, args []string) {
	targets, err := resolveTargets(args, targetsFile)
	if err != nil {
		printError("Failed to read targets", err.Error())
		os.Exit(1)
	}
	if len(targets) == 0 {
		printError("No hashtags given", "pass hashtags as arguments or use --targets-file")
		os.Exit(1)
	}

	cfg, err := loadCrawlConfig()
	if err != nil {
		printError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	logger.Initialize(&logger.Options{Level: cfg.Logging.Level, File: cfg.Logging.File})
	log := logger.GetLogger()
	log.WithField("version", version).Info("igcrawl starting")

	if err := resolveCredentials(cfg); err != nil {
		printError("No Instagram credentials found", err.Error())
		fmt.Fprintln(os.Stderr, "\nTo store credentials securely, run:")
		fmt.Fprintln(os.Stderr, "  igcrawl auth login")
		fmt.Fprintln(os.Stderr, "\nAlternatively pass --cookies with an exported cookies.txt, or set:")
		fmt.Fprintln(os.Stderr, "  export IGCRAWL_SESSION_ID=your_session_id")
		fmt.Fprintln(os.Stderr, "  export IGCRAWL_CSRF_TOKEN=your_csrf_token")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := instagram.NewClientFromConfig(cfg, log)
	if err := client.VerifySession(ctx); err != nil {
		log.WithError(err).Error("session verification failed")
		printError("Instagram login failed", err.Error())
		os.Exit(1)
	}
	log.Info("session verified")

	sink := export.NewJSONSink(log)
	c := crawler.New(client, client, sink, &cfg.RateLimit, log)

	if andSearch {
		runAndCrawl(ctx, c, targets, cfg.Collection, log)
		return
	}

	failed := 0
	for _, target := range targets {
		ok, err := c.Crawl(ctx, target, cfg.Collection)
		switch {
		case err != nil:
			log.WithError(err).WithField("hashtag", target).Error("crawl failed")
			fmt.Printf("#%s: failed: %v\n", target, err)
			failed++
		case !ok:
			fmt.Printf("#%s: not enough posts found, no output written\n", target)
			failed++
		default:
			fmt.Printf("#%s: done\n", target)
		}
		if ctx.Err() != nil {
			printError("Interrupted", "")
			os.Exit(1)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func runAndCrawl(ctx context.Context, c *crawler.Crawler, targets []string, cfg config.CollectionConfig, log logger.Logger) {
	ok, err := c.CrawlAll(ctx, targets, cfg)
	if err != nil {
		log.WithError(err).Error("search failed")
		printError("Search failed", err.Error())
		os.Exit(1)
	}
	if !ok {
		fmt.Printf("%s: not enough posts found, no output written\n", strings.Join(targets, " AND "))
		os.Exit(1)
	}
	fmt.Printf("%s: done\n", strings.Join(targets, " AND "))
}

// loadCrawlConfig builds the effective configuration from file, environment
// and the crawl command's flags.
func loadCrawlConfig() (*config.Config, error) {
	flags := make(map[string]interface{})
	if outputDir != "" {
		flags["output-dir"] = outputDir
	}
	if maxPosts > 0 {
		flags["max-posts"] = maxPosts
	}
	if minPosts > 0 {
		flags["min-posts"] = minPosts
	}
	if cookiesFile != "" {
		flags["cookies"] = cookiesFile
	}
	if requestsPerMinute > 0 {
		flags["requests-per-minute"] = requestsPerMinute
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}
	if logFile != "" {
		flags["log-file"] = logFile
	}
	if sinceStr != "" {
		since, err := parseSince(sinceStr, time.Now())
		if err != nil {
			return nil, fmt.Errorf("invalid --since value %q: %w", sinceStr, err)
		}
		flags["since"] = since
	}

	return config.Load(configFile, flags)
}

// parseSince accepts either a duration (posts newer than now minus the
// duration) or an absolute RFC 3339 timestamp.
func parseSince(value string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(value); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("duration must be positive")
		}
		return now.Add(-d), nil
	}
	return time.Parse(time.RFC3339, value)
}

// resolveTargets merges hashtags from the command line and the targets file,
// normalized so "#Food" and "food" name the same target.
func resolveTargets(args []string, path string) ([]string, error) {
	targets := make([]string, 0, len(args))
	for _, arg := range args {
		if t := models.NormalizeTag(strings.TrimSpace(arg)); t != "" {
			targets = append(targets, t)
		}
	}

	if path != "" {
		fileTargets, err := readTargetsFile(path)
		if err != nil {
			return nil, err
		}
		targets = append(targets, fileTargets...)
	}
	return targets, nil
}

// readTargetsFile reads one hashtag per line, skipping blank lines.
func readTargetsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var targets []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := models.NormalizeTag(strings.TrimSpace(scanner.Text())); line != "" {
			targets = append(targets, line)
		}
	}
	return targets, scanner.Err()
}

// resolveCredentials fills cfg.Instagram from, in order: a cookies file, a
// named stored account, values already present in the config, or the
// default stored account.
func resolveCredentials(cfg *config.Config) error {
	if cfg.Instagram.CookiesFile != "" {
		session, err := instagram.LoadNetscapeCookies(cfg.Instagram.CookiesFile)
		if err != nil {
			return err
		}
		cfg.Instagram.SessionID = session.SessionID
		cfg.Instagram.CSRFToken = session.CSRFToken
		cfg.Instagram.UserID = session.UserID
		return nil
	}

	if accountName != "" {
		manager, err := auth.NewManager()
		if err != nil {
			return err
		}
		account, err := manager.Retrieve(accountName)
		if err != nil {
			return fmt.Errorf("account %q not found, use 'igcrawl auth list' to see stored accounts", accountName)
		}
		applyAccount(cfg, account)
		return nil
	}

	if cfg.Instagram.SessionID != "" && cfg.Instagram.CSRFToken != "" {
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return err
	}
	account, err := manager.RetrieveDefault()
	if err != nil {
		return err
	}
	applyAccount(cfg, account)
	return nil
}

func applyAccount(cfg *config.Config, account *auth.Account) {
	cfg.Instagram.SessionID = account.SessionID
	cfg.Instagram.CSRFToken = account.CSRFToken
	if account.UserID != "" {
		cfg.Instagram.UserID = account.UserID
	}
	if account.UserAgent != "" {
		cfg.Instagram.UserAgent = account.UserAgent
	}
}
