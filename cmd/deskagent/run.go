package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/axbackend"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/config"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/core"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/logging"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/mail"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/notify"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/outbound"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/overlay"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/platform"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/queue"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/registry"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/tools"
)

// run wires every collaborator together and drives the agent loop until it
// finishes the task (non-interactive) or the process receives SIGINT/SIGTERM
// (interactive, or the overlay/mail/notify channels keep it alive).
func run(ctx context.Context, opts runOptions) error {
	logger := logging.Init(logging.Options{Verbose: opts.verbose})

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		logger.Warn("config: failed to load, using defaults", "path", opts.configPath, "error", err)
		cfg = defaultConfig()
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(cfg.Agent.DataDir, 0o755); err != nil {
		return fmt.Errorf("deskagent: create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.Tools.ScreenshotDir, 0o755); err != nil {
		return fmt.Errorf("deskagent: create screenshot dir: %w", err)
	}

	inbound, err := queue.Open(filepath.Join(cfg.Agent.DataDir, "inbound.db"))
	if err != nil {
		return fmt.Errorf("deskagent: open inbound queue: %w", err)
	}
	defer inbound.Close()

	if err := inbound.ResetProcessing(ctx); err != nil {
		logger.Warn("deskagent: failed to reset in-flight inbound messages", "error", err)
	}
	if opts.clear {
		if err := inbound.ClearPending(ctx); err != nil {
			logger.Warn("deskagent: failed to clear inbound queue", "error", err)
		}
	}

	var overlaySrv *overlay.Server
	if !opts.noUI {
		overlaySrv = overlay.New(cfg.Channels.Overlay.Addr, overlay.Handlers{
			OnSendToAgent: func(ctx context.Context, content string) {
				if _, err := inbound.Push(ctx, model.SourceGUI, content); err != nil {
					logger.Error("overlay: push inbound failed", "error", err)
				}
			},
		}, logger)
		if err := overlaySrv.Start(ctx); err != nil {
			logger.Warn("overlay: failed to start, continuing without UI", "error", err)
			overlaySrv = nil
		}
	}

	outboundRouter, err := outbound.Open(filepath.Join(cfg.Agent.DataDir, "outbound.db"), outbound.RouterConfig{
		TUI: func(content string, attachments []string) {
			fmt.Println(content)
		},
		GUI: func(content string, attachments []string) bool {
			if overlaySrv == nil {
				return false
			}
			return overlaySrv.Broadcast(overlay.Frame{Role: overlay.RoleAssistant, Content: content, Attachments: attachments})
		},
		DeadLetter: inbound,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("deskagent: open outbound router: %w", err)
	}
	defer outboundRouter.Close()
	go outboundRouter.Run(ctx)

	driver, err := platform.NewDriver()
	if err != nil {
		logger.Warn("platform: no driver for this OS, computer-use tools will error", "error", err)
	}

	var ax *axbackend.Client
	if binPath := os.Getenv("DESKAGENT_AXBACKEND"); binPath != "" {
		ax = axbackend.NewClient(binPath)
	}

	reg := registry.New()
	tools.Register(reg, tools.Deps{Driver: driver, AX: ax, TodoPath: cfg.Tools.TodoPath})

	provider, err := buildProvider(cfg, opts.resolveProvider(cfg.LLM.DefaultProvider))
	if err != nil {
		return fmt.Errorf("deskagent: build LLM provider: %w", err)
	}

	loop := core.New(core.Deps{
		Provider: provider,
		Tools:    reg,
		Inbound:  inbound,
		Outbound: outboundRouter,
		AX:       ax,
		Driver:   driver,
		Logger:   logger,
		OverlayActive: func() bool {
			return overlaySrv != nil && overlaySrv.Active()
		},
		ForwardToGUI: func(msg model.Message) {
			if overlaySrv == nil {
				return
			}
			overlaySrv.Broadcast(overlay.FrameFromMessage(msg))
		},
	}, core.Config{
		MaxSteps:         cfg.Agent.MaxSteps,
		Interactive:      opts.interactive || cfg.Agent.Interactive,
		WhitelistedApps:  cfg.Agent.WhitelistedApps,
		Model:            cfg.LLM.Model,
		MaxTokens:        cfg.LLM.MaxTokens,
		StepDelay:        cfg.Agent.StepDelay,
		IdlePollInterval: cfg.Agent.IdlePollInterval,
		StepsDir:         filepath.Join(cfg.Agent.DataDir, "memory", "steps"),
		ScreenshotDir:    cfg.Tools.ScreenshotDir,
		Workspace:        cfg.Agent.Workspace,
	})
	loop.SetTask(opts.task)

	if cfg.Channels.Mail.Enabled {
		uidStore, err := mail.LoadUIDStore(cfg.Channels.Mail.UIDStorePath)
		if err != nil {
			logger.Warn("mail: failed to load UID store", "error", err)
		} else {
			watcher := &mail.Watcher{Inbound: inbound, UIDs: uidStore, Schedule: cfg.Channels.Mail.PollSchedule, Logger: logger}
			go watcher.Run(ctx)
		}
	}

	if cfg.Channels.Notify.Enabled {
		notifyWatcher := &notify.Watcher{
			BinaryPath:  cfg.Channels.Notify.BinaryPath,
			Inbound:     inbound,
			Logger:      logger,
			MinInterval: cfg.Channels.Notify.MinInterval,
		}
		go notifyWatcher.Run(ctx)
	}

	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("deskagent: agent loop: %w", err)
	}
	return nil
}

func defaultConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Agent.Workspace = "."
	cfg.Agent.DataDir = "data"
	cfg.Agent.MaxSteps = 200
	cfg.LLM.DefaultProvider = "anthropic"
	cfg.LLM.MaxTokens = 4096
	cfg.Channels.Overlay.Addr = fmt.Sprintf("127.0.0.1:%d", overlay.DefaultPort)
	cfg.Channels.Mail.PollSchedule = mail.DefaultPollSchedule
	cfg.Channels.Mail.UIDStorePath = "data/mail-uids.json"
	cfg.Tools.ScreenshotDir = "data/memory/screenshots"
	cfg.Tools.TodoPath = "data/TODOLIST.md"
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	return cfg
}
