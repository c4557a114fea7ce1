package cmd

import (
	"fmt"
	u "net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tanq16/rfidrop/internal/config"
	"github.com/tanq16/rfidrop/internal/output"
	"github.com/tanq16/rfidrop/internal/utils"
)

var (
	apiURL        string
	workers       int
	concurrency   int
	maxRetries    int
	apiRetries    int
	timeout       time.Duration
	kaTimeout     time.Duration
	userAgent     string
	proxyURL      string
	proxyUsername string
	proxyPassword string
	headers       []string
	debug         bool
	fileLog       bool
	configPath    string
)

var (
	cfg              = config.Default()
	globalHTTPConfig utils.HTTPClientConfig
)

var RfidropVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "rfidrop",
	Short:   "rfidrop uploads RFI evidence archives through chunked multipart transfers",
	Version: RfidropVersion,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := utils.InitLogger(debug, fileLog); err != nil {
			return err
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		applyFlagOverrides(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}
		globalHTTPConfig = buildHTTPConfig()
		return nil
	},
}

// applyFlagOverrides lets explicitly set flags win over config file and environment
func applyFlagOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("api") {
		cfg.APIURL = apiURL
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = concurrency
	}
	if flags.Changed("retries") {
		cfg.MaxRetries = maxRetries
	}
	if flags.Changed("api-retries") {
		cfg.APIRetries = apiRetries
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("keep-alive-timeout") {
		cfg.KeepAlive = kaTimeout
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = userAgent
	}
}

func buildHTTPConfig() utils.HTTPClientConfig {
	// Move credentials embedded in the proxy URL into the dedicated fields
	parsedProxy, err := u.Parse(proxyURL)
	if err == nil && parsedProxy.User != nil && proxyUsername == "" {
		proxyUsername = parsedProxy.User.Username()
		if password, set := parsedProxy.User.Password(); set {
			proxyPassword = password
		}
		parsedProxy.User = nil
		proxyURL = parsedProxy.String()
	}
	return utils.HTTPClientConfig{
		Timeout:       cfg.Timeout,
		KATimeout:     cfg.KeepAlive,
		ProxyURL:      proxyURL,
		ProxyUsername: proxyUsername,
		ProxyPassword: proxyPassword,
		UserAgent:     cfg.UserAgent,
		Headers:       utils.ParseHeaderArgs(headers),
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		output.PrintError(fmt.Sprintf("Error: %v", err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "Base URL of the upload authorization service")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 1, "Number of files to upload in parallel")
	rootCmd.PersistentFlags().IntVarP(&concurrency, "concurrency", "c", utils.DefaultConcurrency, "Number of parts uploaded in parallel per file")
	rootCmd.PersistentFlags().IntVarP(&maxRetries, "retries", "r", utils.DefaultMaxRetries, "Retries per part after the first attempt")
	rootCmd.PersistentFlags().IntVar(&apiRetries, "api-retries", utils.DefaultAPIRetries, "Retries for authorization service calls")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", utils.DefaultRequestTimeout, "Request timeout (eg. 5s, 10m)")
	rootCmd.PersistentFlags().DurationVarP(&kaTimeout, "keep-alive-timeout", "k", utils.DefaultKeepAlive, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	rootCmd.PersistentFlags().StringVarP(&userAgent, "user-agent", "a", utils.ToolUserAgent, "User agent")
	rootCmd.PersistentFlags().StringVarP(&proxyURL, "proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	rootCmd.PersistentFlags().StringVar(&proxyUsername, "proxy-username", "", "Proxy username (if not provided in proxy URL)")
	rootCmd.PersistentFlags().StringVar(&proxyPassword, "proxy-password", "", "Proxy password (if not provided in proxy URL)")
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers for the authorization service (like 'Authorization: Bearer abc'); can be specified multiple times")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.rfidrop.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&fileLog, "log", false, "Write logs to .rfidrop.log instead of stderr")

	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newRfisCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newServeCmd())
}

func newJob(jobType, filePath string) utils.DropJob {
	return utils.DropJob{
		JobType:          jobType,
		FilePath:         filePath,
		APIBaseURL:       cfg.APIURL,
		APIRetries:       cfg.APIRetries,
		Concurrency:      cfg.Concurrency,
		Retry:            cfg.RetryConfig(),
		HTTPClientConfig: globalHTTPConfig,
		Metadata:         make(map[string]any),
	}
}
