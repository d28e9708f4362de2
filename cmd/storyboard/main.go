package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"storyforge/internal/config"
	"storyforge/internal/export"
	"storyforge/internal/httpclient"
	"storyforge/internal/imagegen"
	"storyforge/internal/orchestrator"
	"storyforge/internal/planstore"
	"storyforge/internal/preset"
	"storyforge/internal/render"
	"storyforge/internal/storyboard"
	"storyforge/internal/telegram"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	switch os.Args[1] {
	case "init":
		initCmd(os.Args[2:])
	case "generate":
		generateCmd(os.Args[2:])
	case "edit":
		editCmd(os.Args[2:])
	case "export":
		exportCmd(os.Args[2:])
	case "publish":
		publishCmd(os.Args[2:])
	case "presets":
		presetsCmd(os.Args[2:])
	case "-h", "--help", "help":
		printUsage()
	default:
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `storyboard

Usage:
  storyboard init
  storyboard generate -brief <text> -image <path> [-style <name>] [-color <#RRGGBB>]
  storyboard edit <panel_id> <instruction>
  storyboard export [-narration] [-voice-id <id>]
  storyboard publish
  storyboard presets

Commands:
  init       Check the API credential and create the working directories.
  generate   Plan a six-panel storyboard from a brief and render every panel.
  edit       Rewrite one panel from a natural-language instruction and re-render it.
  export     Assemble the rendered panels into storyboard.mp4 and shot_list.txt.
  publish    Send the exported video and shot list to the configured Telegram chat.
  presets    List the available visual styles.

`)
}

func initCmd(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	_ = fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create directories: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration OK (%s, model %s)\n", cfg.APIFormat, cfg.Model)
	fmt.Printf("Working directory ready: %s\n", cfg.WorkDir)
}

func generateCmd(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	briefText := fs.String("brief", "", "One-sentence brief, e.g. \"Idea; target: students; mood: warm; cta: 'buy now'\"")
	imagePath := fs.String("image", "", "Path to the product photo")
	style := fs.String("style", preset.DefaultStyle, "Visual style preset (run: storyboard presets)")
	color := fs.String("color", "", "Optional brand accent color, #RGB or #RRGGBB")
	_ = fs.Parse(args)

	if strings.TrimSpace(*briefText) == "" || strings.TrimSpace(*imagePath) == "" {
		fs.Usage()
		os.Exit(2)
	}
	if info, err := os.Stat(*imagePath); err != nil || info.IsDir() {
		fmt.Fprintf(os.Stderr, "product image %q does not exist\n", *imagePath)
		os.Exit(2)
	}
	if _, err := storyboard.NormalizeBrandColor(*color); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	cfg, logger := mustSetup()
	catalog := mustCatalog(cfg, logger)
	selected, ok := catalog.Lookup(*style)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown style %q; choose one of: %s\n", *style, strings.Join(catalog.Names(), ", "))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := mustOrchestrator(cfg, logger, catalog, nil)
	ok = orch.Generate(ctx, orchestrator.GenerateRequest{
		Brief:      *briefText,
		ImagePath:  *imagePath,
		Style:      selected.Name,
		BrandColor: *color,
	})
	finish(ok, "Storyboard generated. Plan saved to "+cfg.PlanPath(), "Storyboard generation failed.")
}

func editCmd(args []string) {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: storyboard edit <panel_id 1-%d> <instruction>\n", config.MaxPanels)
	}
	_ = fs.Parse(args)

	rest := fs.Args()
	if len(rest) < 2 {
		fs.Usage()
		os.Exit(2)
	}
	panelID, err := strconv.Atoi(rest[0])
	if err != nil || panelID < 1 || panelID > config.MaxPanels {
		fmt.Fprintf(os.Stderr, "panel id must be between 1 and %d, got %q\n", config.MaxPanels, rest[0])
		os.Exit(2)
	}
	instruction := strings.Join(rest[1:], " ")
	if strings.TrimSpace(instruction) == "" {
		fs.Usage()
		os.Exit(2)
	}

	cfg, logger := mustSetup()
	catalog := mustCatalog(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := mustOrchestrator(cfg, logger, catalog, nil)
	finish(orch.Edit(ctx, panelID, instruction),
		fmt.Sprintf("Panel %d updated.", panelID),
		fmt.Sprintf("Editing panel %d failed.", panelID))
}

func exportCmd(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	narration := fs.Bool("narration", false, "Request a narration track (accepted, not synthesized yet)")
	voiceID := fs.String("voice-id", "default", "Narration voice id")
	_ = fs.Parse(args)

	cfg, logger := mustSetup()
	catalog := mustCatalog(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := mustOrchestrator(cfg, logger, catalog, nil)
	finish(orch.Export(ctx, *narration, *voiceID),
		"Export complete: "+cfg.ExportsDir(),
		"Export failed.")
}

func publishCmd(args []string) {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	_ = fs.Parse(args)

	cfg, logger := mustSetup()
	if !cfg.TelegramConfigured() {
		fmt.Fprintln(os.Stderr, "TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required for publish")
		os.Exit(1)
	}
	catalog := mustCatalog(cfg, logger)

	tg, err := telegram.New(telegram.Options{
		Token:      cfg.TelegramToken,
		ChatID:     cfg.TelegramChatID,
		HTTPClient: newHTTPClient(cfg),
		Logger:     logger,
		Debug:      cfg.LogLevel == "debug",
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}
	logger.Info("telegram ready", "username", tg.Username())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := mustOrchestrator(cfg, logger, catalog, tg)
	finish(orch.Publish(ctx), "Storyboard published.", "Publish failed.")
}

func presetsCmd(args []string) {
	fs := flag.NewFlagSet("presets", flag.ExitOnError)
	_ = fs.Parse(args)

	cfg, err := config.Load()
	if err != nil && !errors.Is(err, config.ErrMissingAPIKey) {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	catalog := mustCatalog(cfg, newLogger(cfg))

	for _, p := range catalog.All() {
		marker := " "
		if strings.EqualFold(p.Name, preset.DefaultStyle) {
			marker = "*"
		}
		fmt.Printf("%s %s: %s\n", marker, p.Name, p.Description)
		fmt.Printf("    lighting: %s\n    background: %s\n    mood: %s\n", p.Lighting, p.Background, p.Mood)
	}
}

func mustSetup() (config.Config, *slog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	if err := cfg.EnsureDirs(); err != nil {
		logger.Error("create working directories failed", "err", err)
		os.Exit(1)
	}
	return cfg, logger
}

func mustCatalog(cfg config.Config, logger *slog.Logger) *preset.Catalog {
	if cfg.PresetsFile == "" {
		return preset.Builtin()
	}
	catalog, err := preset.LoadFile(cfg.PresetsFile)
	if err != nil {
		logger.Error("load presets failed", "path", cfg.PresetsFile, "err", err)
		os.Exit(1)
	}
	return catalog
}

func mustOrchestrator(cfg config.Config, logger *slog.Logger, catalog *preset.Catalog, publisher orchestrator.Publisher) *orchestrator.Orchestrator {
	generator := imagegen.New(imagegen.Options{
		Format:     cfg.APIFormat,
		APIKey:     cfg.APIKey,
		URL:        cfg.APIURL,
		Model:      cfg.Model,
		HTTPClient: newHTTPClient(cfg),
		Retries:    cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		DebugDir:   cfg.CacheDir(),
		Logger:     logger,
	})

	renderer, err := render.New(render.Options{
		Generator: generator,
		PanelsDir: cfg.PanelsDir(),
		Logger:    logger,
	})
	if err != nil {
		logger.Error("renderer init failed", "err", err)
		os.Exit(1)
	}

	exporter, err := export.New(export.Options{
		Encoder: export.NewFFmpegEncoder(export.FFmpegOptions{
			Path:   cfg.FFmpegPath,
			FPS:    cfg.VideoFPS,
			Width:  cfg.VideoWidth,
			Height: cfg.VideoHeight,
			Logger: logger,
		}),
		ExportsDir:         cfg.ExportsDir(),
		PanelDuration:      cfg.PanelDuration,
		TransitionDuration: cfg.TransitionDuration,
		Logger:             logger,
	})
	if err != nil {
		logger.Error("exporter init failed", "err", err)
		os.Exit(1)
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Planner: storyboard.NewPlanner(storyboard.Options{
			Presets: catalog,
			Logger:  logger,
		}),
		Store: planstore.New(planstore.Options{
			Path:   cfg.PlanPath(),
			Logger: logger,
		}),
		Renderer:   renderer,
		Exporter:   exporter,
		Publisher:  publisher,
		ExportsDir: cfg.ExportsDir(),
		Logger:     logger,
	})
	if err != nil {
		logger.Error("orchestrator init failed", "err", err)
		os.Exit(1)
	}
	return orch
}

func newHTTPClient(cfg config.Config) *http.Client {
	return httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})
}

func finish(ok bool, success, failure string) {
	if !ok {
		fmt.Fprintln(os.Stderr, failure)
		os.Exit(1)
	}
	fmt.Println(success)
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
