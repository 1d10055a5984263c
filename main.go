package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tml-rank-card/config"
	"tml-rank-card/fetcher"
	"tml-rank-card/models"
	"tml-rank-card/parser"
	"tml-rank-card/pipeline"
	"tml-rank-card/publisher"
	"tml-rank-card/render"
	"tml-rank-card/scheduler"
	"tml-rank-card/selector"
	"tml-rank-card/server"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	noPublish  bool
	asJSON     bool
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	rootCmd := &cobra.Command{
		Use:   "rank-card",
		Short: "Render tModLoader mod ranking cards",
		Long: `rank-card fetches the mod ranking report for a Steam ID 64,
draws the top mod onto a card template and publishes the image.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	renderCmd := &cobra.Command{
		Use:   "render <steamid64>",
		Short: "Render and publish a card, then print its link",
		Args:  cobra.ExactArgs(1),
		RunE:  runRender,
	}
	renderCmd.Flags().BoolVar(&noPublish, "no-publish", false, "Only render the card and print the file path")

	recordsCmd := &cobra.Command{
		Use:   "records <steamid64>",
		Short: "Print the ranking records for a Steam ID",
		Args:  cobra.ExactArgs(1),
		RunE:  runRecords,
	}
	recordsCmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve cards over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	botCmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		Args:  cobra.NoArgs,
		RunE:  runBot,
	}

	rootCmd.AddCommand(renderCmd, recordsCmd, serveCmd, botCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads .env, the config file (or defaults) and env overrides
func loadConfig(configPath string) (*config.Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	var cfg *config.Config
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
	} else {
		log.Info().Str("path", configPath).Msg("Config file not found. Using default configuration.")
		cfg = config.GetDefaultConfig()
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// newFetcher returns the configured fetcher and a function releasing it
func newFetcher(cfg *config.Config) (fetcher.Fetcher, func(), error) {
	if cfg.Report.FetchMode == config.FetchModeBrowser {
		log.Info().Msg("Launching headless browser")
		rf, err := fetcher.NewRodFetcher(cfg.Report.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create browser fetcher: %w", err)
		}
		return rf, func() {
			if err := rf.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close browser")
			}
		}, nil
	}
	return fetcher.NewCollyFetcher(cfg.Report.UserAgent, cfg.Report.Timeout), func() {}, nil
}

// newPublisher builds the configured backend wrapped in retries
func newPublisher(ctx context.Context, cfg *config.Config) (publisher.Publisher, error) {
	var pub publisher.Publisher
	switch cfg.Publisher.Backend {
	case config.BackendImgur:
		pub = publisher.NewImgurPublisher(cfg.Publisher.ImgurClientID, "")
	case config.BackendDrive:
		dp, err := publisher.NewDrivePublisher(ctx, cfg.Publisher.CredentialsPath, cfg.Publisher.DriveFolderID)
		if err != nil {
			return nil, err
		}
		pub = dp
	case config.BackendLocal:
		// Local files are already on disk; nothing to retry
		return publisher.NewLocalPublisher(cfg.Server.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown publisher backend %q", cfg.Publisher.Backend)
	}
	return publisher.NewRetrying(pub, cfg.Publisher.Backend, cfg.Publisher.Retries), nil
}

// buildPipeline wires every stage from the configuration
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	textColor, err := cfg.TextColor()
	if err != nil {
		return nil, nil, err
	}
	assets, err := render.LoadAssets(cfg.Render.TemplatePath, cfg.Render.FontPath, cfg.Render.FontSize)
	if err != nil {
		return nil, nil, err
	}
	renderer := render.NewRenderer(assets, render.Options{
		OutputDir: cfg.Render.OutputDir,
		AnchorX:   cfg.Render.AnchorX,
		AnchorY:   cfg.Render.AnchorY,
		TextColor: textColor,
	})

	pub, err := newPublisher(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	f, closeFetcher, err := newFetcher(cfg)
	if err != nil {
		return nil, nil, err
	}

	p := pipeline.New(
		f,
		parser.NewParser(cfg.Report.TableSelector),
		selector.NewSelector(cfg),
		renderer,
		pub,
		pipelineOptions(cfg),
	)
	return p, closeFetcher, nil
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		ReportURL:     cfg.Report.URL,
		IDParam:       cfg.Report.IDParam,
		KeepArtifacts: cfg.KeepArtifacts(),
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if noPublish {
		// Publisher settings are irrelevant when nothing is uploaded
		cfg.Publisher.Backend = config.BackendLocal
	}

	ctx, cancel := signalContext()
	defer cancel()

	p, closeFetcher, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFetcher()

	if noPublish {
		art, err := p.RenderCard(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(art.Path)
		return nil
	}

	res, err := p.Run(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(res.URL)
	return nil
}

func runRecords(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	f, closeFetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	defer closeFetcher()

	// Records only fetches and extracts; no renderer or publisher needed
	p := pipeline.New(f, parser.NewParser(cfg.Report.TableSelector), nil, nil, nil, pipelineOptions(cfg))

	records, err := p.Records(ctx, args[0])
	if err != nil {
		return err
	}

	if asJSON {
		return writeRecordsJSON(os.Stdout, records)
	}
	formatRecordsConsole(os.Stdout, records)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	p, closeFetcher, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFetcher()

	opts := server.Options{Addr: ":" + cfg.Server.Port}
	if cfg.Server.UseHTTPS {
		opts.CertPath = cfg.Server.CertPath
		opts.KeyPath = cfg.Server.KeyPath
	}
	if cfg.Publisher.Backend == config.BackendLocal {
		opts.ArtifactsDir = cfg.Render.OutputDir
	}

	return server.New(p, opts).ListenAndServe(ctx)
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	ctx, cancel := signalContext()
	defer cancel()

	p, closeFetcher, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFetcher()

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("failed to initialize bot: %w", err)
	}
	log.Info().Str("account", api.Self.UserName).Msg("Authorized on account")

	sched := scheduler.NewScheduler(p, api, 16)
	sched.Start()
	defer sched.Stop()

	bot := scheduler.NewBot(api, sched, cfg.Telegram.AllowedUsers)

	// Offset -1 skips updates sent while the bot was down
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updateConfig.Offset = -1
	updates := api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			bot.HandleUpdate(update)
		}
	}
}

func writeRecordsJSON(w io.Writer, records models.RecordSet) error {
	if records == nil {
		records = models.RecordSet{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// formatRecordsConsole prints records in report order
func formatRecordsConsole(w io.Writer, records models.RecordSet) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No mods found.")
		return
	}

	fmt.Fprintf(w, "Found %d mods\n", len(records))
	for _, r := range records {
		fmt.Fprintf(w, "\n#%s %s\n", r.RankTotal, r.DisplayName)
		fmt.Fprintf(w, "   Downloads: %s\n", r.DownloadsTotal)
		fmt.Fprintf(w, "   Yesterday: %s\n", r.DownloadsYesterday)
	}
}
