package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jask/formdesk/internal/catalog"
	"github.com/jask/formdesk/internal/chat"
	"github.com/jask/formdesk/internal/config"
	"github.com/jask/formdesk/internal/database"
	"github.com/jask/formdesk/internal/devserver"
	"github.com/jask/formdesk/internal/document"
	"github.com/jask/formdesk/internal/httpapi"
	"github.com/jask/formdesk/internal/llm"
	"github.com/jask/formdesk/internal/logging"
	"github.com/jask/formdesk/internal/prompt"
	"github.com/jask/formdesk/internal/tui"
	"github.com/jask/formdesk/internal/workflow"
)

const usage = `usage: formdesk [command]

commands:
  tui        interactive terminal UI (default)
  fill       step-by-step prompts
  devserver  run the local reference backend
`

func main() {
	cmd := "tui"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logPath := cfg.Log.Path
	if cmd == "devserver" {
		logPath = "-"
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, logPath)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "tui":
		err = runTUI(ctx, cfg, logger)
	case "fill":
		err = runFill(ctx, cfg, logger)
	case "devserver":
		err = runDevServer(ctx, cfg, logger)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("exit", zap.String("command", cmd), zap.Error(err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type clients struct {
	wf   *workflow.Controller
	chat *chat.Session
}

func newClients(cfg config.Config, logger *zap.Logger) clients {
	t := httpapi.New(cfg.API.BaseURL, cfg.API.Timeout, logger)
	wf := workflow.New(
		catalog.NewClient(t),
		document.NewPreviewer(t),
		document.NewFormDownloader(t, cfg.Download.Dir, logger),
		logger,
	)
	var cs *chat.Session
	if cfg.Chat.Enabled {
		cs = chat.NewSession(chat.NewClient(t), logger)
	}
	return clients{wf: wf, chat: cs}
}

func runTUI(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	c := newClients(cfg, logger)
	p := tea.NewProgram(tui.New(ctx, c.wf, c.chat, logger), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func runFill(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	c := newClients(cfg, logger)
	err := prompt.NewFlow(prompt.NewSurveyDriver(os.Stdout), c.wf, c.chat, logger).Run(ctx)
	if errors.Is(err, prompt.ErrAborted) {
		return nil
	}
	return err
}

func runDevServer(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	var seed *database.Seed
	if cfg.DevServer.Seed {
		s, err := database.DefaultSeed()
		if err != nil {
			return err
		}
		seed = &s
	}
	db, err := database.OpenCatalog(ctx, cfg.DevServer.DatabasePath, seed)
	if err != nil {
		return err
	}
	defer db.Close()

	deps := devserver.Dependencies{DB: db, Log: logger, Metrics: devserver.NewMetrics()}
	if cfg.Chat.Enabled {
		kb, err := llm.DefaultKnowledgeBase()
		if err != nil {
			return err
		}
		deps.Assistant = llm.NewKeywordProvider(kb)
	}
	h, err := devserver.Routes(deps)
	if err != nil {
		return err
	}
	return devserver.Serve(ctx, cfg.DevServer.Addr, h, logger)
}
