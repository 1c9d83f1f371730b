package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/simonseo/instagram-hashtag-crawler/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igcrawl configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (IGCRAWL_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'igcrawl.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration merged from all sources.

Sensitive values like credentials are masked.`,
	Run: runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Required fields
  - Value types and ranges
  - Path accessibility`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = "igcrawl.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		printError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	exampleConfig := `# igcrawl configuration file
#
# All options can also be set through environment variables prefixed
# with IGCRAWL_, for example IGCRAWL_SESSION_ID and IGCRAWL_CSRF_TOKEN.

# Instagram session
instagram:
  # Session ID from the sessionid cookie (required unless a stored
  # account or cookies file is used)
  session_id: ""

  # CSRF token from the csrftoken cookie
  csrf_token: ""

  # User ID from the ds_user_id cookie (optional)
  user_id: ""

  # User agent string, leave empty to use the default
  user_agent: ""

  # Netscape cookies.txt file to read the session from (optional)
  cookies_file: ""

# Collection defaults, overridable per crawl from the CLI
collection:
  # Directory for JSON result files
  output_dir: "./hashtags"

  # Write no output when fewer posts were found
  min_records: 1

  # Stop after this many posts per hashtag
  max_records: 100

# Rate limiting and retries
rate_limit:
  # Request budget per minute
  requests_per_minute: 60

  # Profile lookups under rate limiting: attempts and backoff base
  profile_max_attempts: 3
  profile_backoff_base: 5s

  # Wait before retrying a rate limited feed page
  feed_retry_wait: 60s

  # Pause between profile lookups
  courtesy_delay: 50ms

  # HTTP request timeout
  request_timeout: 30s

# Logging
logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log file path, leave empty for console only
  file: ""
`

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		printError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	fmt.Println("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the configuration file or run 'igcrawl auth login'")
	fmt.Println("2. Run 'igcrawl config validate' to check the configuration")
	fmt.Println("3. Start collecting with 'igcrawl crawl <hashtag>'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		printError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	displayCfg := *cfg
	displayCfg.Instagram.SessionID = maskValue(displayCfg.Instagram.SessionID)
	displayCfg.Instagram.CSRFToken = maskValue(displayCfg.Instagram.CSRFToken)

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		printError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	fmt.Println("Current configuration:")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (IGCRAWL_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (not specified)")
	}
	fmt.Println("4. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if configFile == "" {
		possiblePaths := []string{
			"igcrawl.yaml",
			"igcrawl.yml",
			".igcrawl.yaml",
			".igcrawl.yml",
			filepath.Join(os.Getenv("HOME"), ".igcrawl.yaml"),
			filepath.Join(os.Getenv("HOME"), ".config", "igcrawl", "config.yaml"),
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}

		if configFile == "" {
			printError("No configuration file found", "specify a file with the --config flag")
			os.Exit(1)
		}
	}

	fmt.Println("Validating configuration: " + configFile)

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		printError("Configuration validation failed", err.Error())
		os.Exit(1)
	}

	var warnings []string
	var problems []string

	if cfg.Instagram.SessionID == "" && cfg.Instagram.CookiesFile == "" {
		warnings = append(warnings, "no Instagram session configured, a stored account or --cookies will be needed")
	}

	if cfg.Collection.OutputDir != "" {
		if err := os.MkdirAll(cfg.Collection.OutputDir, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create output directory: %v", err))
		}
	}
	if cfg.Logging.File != "" {
		dir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(dir, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if cfg.RateLimit.RequestsPerMinute < 1 || cfg.RateLimit.RequestsPerMinute > 120 {
		problems = append(problems, "requests_per_minute must be between 1 and 120")
	}
	if cfg.RateLimit.ProfileMaxAttempts < 1 || cfg.RateLimit.ProfileMaxAttempts > 10 {
		problems = append(problems, "profile_max_attempts must be between 1 and 10")
	}

	if len(problems) > 0 {
		printError("Configuration has errors", "")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		fmt.Println("Configuration warnings:")
		for _, warn := range warnings {
			fmt.Printf("  - %s\n", warn)
		}
		fmt.Println()
	}

	fmt.Println("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Output directory: %s\n", cfg.Collection.OutputDir)
	fmt.Printf("  Posts per hashtag: %d to %d\n", cfg.Collection.MinRecords, cfg.Collection.MaxRecords)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Profile retry attempts: %d\n", cfg.RateLimit.ProfileMaxAttempts)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}

func maskValue(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 8 {
		return "***"
	}
	return value[:4] + "..." + value[len(value)-4:]
}
