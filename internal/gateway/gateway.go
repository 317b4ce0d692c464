// Package gateway assembles the bot: tracker client, column monitor,
// reminder engine, Telegram service and status endpoint, with one
// signal-driven lifecycle around them.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zxz-qa/deskwatch/internal/bot"
	"github.com/zxz-qa/deskwatch/internal/config"
	"github.com/zxz-qa/deskwatch/internal/monitor"
	"github.com/zxz-qa/deskwatch/internal/reminder"
	"github.com/zxz-qa/deskwatch/internal/status"
	"github.com/zxz-qa/deskwatch/internal/tracker"
)

const startupMessage = "🤖 Бот запущен! Мониторинг активен."

// Options for creating a Gateway.
type Options struct {
	BotFactory bot.BotFactory // for testing
	SignalChan chan os.Signal // for testing signal handling
}

type Gateway struct {
	cfg *config.Config
	log *slog.Logger

	cookies *tracker.CookieStore
	client  *tracker.Client
	differ  *monitor.Differ
	monitor *monitor.Service
	engine  *reminder.Engine
	bot     *bot.Service
	status  *status.Server

	signalChan chan os.Signal
}

// New creates a Gateway with default options.
func New(cfg *config.Config, log *slog.Logger) (*Gateway, error) {
	return NewWithOptions(cfg, log, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing.
func NewWithOptions(cfg *config.Config, log *slog.Logger, opts Options) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	boards, err := config.LoadBoards(config.BoardsPath())
	if err != nil {
		return nil, err
	}
	apiURL := boards[cfg.Tracker.Board]
	if apiURL == "" {
		return nil, fmt.Errorf("no API URL for board %q (boards.yaml or DESKWATCH_BOARD_URL_%s)",
			cfg.Tracker.Board, cfg.Tracker.Board)
	}

	remindEvery, err := time.ParseDuration(cfg.Monitor.RemindEvery)
	if err != nil {
		return nil, fmt.Errorf("bad remindEvery %q: %w", cfg.Monitor.RemindEvery, err)
	}

	g := &Gateway{cfg: cfg, log: log.With("component", "gateway"), signalChan: opts.SignalChan}

	g.cookies = tracker.NewCookieStore(cfg.Tracker.CookieFile, log)
	refresher := tracker.NewCommandRefresher(cfg.Tracker.RefreshCommand, log)
	g.client = tracker.NewClient(apiURL, g.cookies, refresher, log)

	g.differ = monitor.NewDiffer(cfg.Monitor.Column)
	g.engine = reminder.NewEngine(g.client, cfg.Monitor.Column, remindEvery, log)

	botSvc, err := bot.NewService(bot.Options{
		Token:          cfg.Telegram.Token,
		WorkChatID:     cfg.Telegram.WorkChatID,
		Boards:         boards,
		TrackerBaseURL: cfg.Tracker.BaseURL,
		Fetcher:        g.client,
		Engine:         g.engine,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	if opts.BotFactory != nil {
		botSvc.SetFactory(opts.BotFactory)
	}
	g.bot = botSvc

	g.engine.OnEscalate = botSvc.SendReminder

	g.monitor = monitor.NewService(g.client, g.differ, cfg.Monitor.CheckEvery, log)
	g.monitor.OnIncrease = botSvc.NotifyIncrease

	g.status = status.NewServer(cfg.Status.Host, cfg.Status.Port, g.statusPayload, log)

	return g, nil
}

func (g *Gateway) statusPayload() status.Payload {
	count, observed := g.differ.LastCount()
	return status.Payload{
		Column:          g.cfg.Monitor.Column,
		CheckEvery:      g.cfg.Monitor.CheckEvery,
		LastKnownCount:  count,
		Observed:        observed,
		ActiveReminders: g.engine.ActiveCount(),
	}
}

// Run starts every component and blocks until SIGINT/SIGTERM.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := g.cookies.Watch(); err != nil {
		g.log.Warn("cookie watch unavailable", "err", err)
	}

	g.engine.Start(ctx)

	if err := g.bot.Start(ctx); err != nil {
		return fmt.Errorf("start telegram: %w", err)
	}
	if err := g.monitor.Start(ctx); err != nil {
		g.bot.Stop()
		return fmt.Errorf("start monitor: %w", err)
	}
	g.status.Start()

	if g.cfg.Monitor.AnnounceStart {
		if err := g.bot.Announce(startupMessage); err != nil {
			g.log.Warn("startup announcement failed", "err", err)
		}
	}

	g.log.Info("running",
		"column", g.cfg.Monitor.Column,
		"check", g.cfg.Monitor.CheckEvery,
		"remind", g.cfg.Monitor.RemindEvery)

	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	<-sigCh

	g.log.Info("shutting down...")
	return g.Shutdown()
}

func (g *Gateway) Shutdown() error {
	g.monitor.Stop()
	g.engine.Shutdown()
	g.bot.Stop()
	g.status.Stop()
	if err := g.cookies.Close(); err != nil {
		g.log.Warn("close cookie watcher", "err", err)
	}
	g.log.Info("shutdown complete")
	return nil
}
