package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	config "concierge/app/configs"
	"concierge/app/core/dispatch"
	"concierge/app/core/executor"
	"concierge/app/core/intent"
	"concierge/app/core/interaction/cli"
	"concierge/app/core/interaction/http"
	"concierge/app/core/orchestrator/db"
	"concierge/app/core/orchestrator/task"
	"concierge/app/core/provider"
	"concierge/app/core/scheduler"
	"concierge/app/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfgManager, err := config.NewManager(config.DefaultPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := cfgManager.Get()

	if err := logger.Init(cfg.Paths.LogDir); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.Info("Concierge starting...")

	database, err := db.NewSQLiteDB(cfg.Paths.DataDir)
	if err != nil {
		logger.Error("Failed to initialize DB: %v", err)
		os.Exit(1)
	}
	defer database.Close()
	logger.Info("Database initialized")

	var llm *intent.OpenAIClient
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		llm = intent.NewOpenAIClient(apiKey, cfg.LLM.Model)
	} else {
		logger.Warn("OPENAI_API_KEY not set, commands are parsed with the keyword fallback only")
	}

	var completionClient intent.CompletionClient
	var drafterClient executor.Completer
	if llm != nil {
		completionClient = llm
		drafterClient = llm
	}
	parser := intent.NewParser(completionClient, time.Duration(cfg.LLM.ParseTimeoutSec)*time.Second)
	drafter := executor.NewDrafter(drafterClient)

	// Provider accounts are not connected in this build; calendar and
	// mail run against the local in-memory provider.
	local := provider.NewLocal(time.Now())
	registry := executor.NewRegistry(
		executor.NewCalendarExecutor(local, local),
		executor.NewEmailExecutor(local, local, drafter),
		executor.NewBookingExecutor(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := dispatch.New(cfg.Task.DispatchBufferSize)
	if err := dispatcher.Start(ctx, cfg.Task.DispatchWorkers); err != nil {
		logger.Error("Failed to start dispatcher: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := dispatcher.Stop(3 * time.Second); err != nil {
			logger.Error("Dispatcher shutdown: %v", err)
		}
	}()

	store := task.NewStore(database)
	service := task.NewService(store, parser, provider.NewInbox(local, local), drafter, registry, dispatcher, task.Options{
		ExecuteTimeout:   time.Duration(cfg.Task.ExecuteTimeoutSec) * time.Second,
		RecentEmailLimit: cfg.Task.RecentEmailLimit,
	})

	jobScheduler := scheduler.New()
	stuckMaxAge := time.Duration(cfg.Task.StuckMaxAgeSec) * time.Second
	if err := jobScheduler.Register(scheduler.JobSpec{
		Name:       "stuck-task-reaper",
		Interval:   time.Duration(cfg.Task.ReaperIntervalSec) * time.Second,
		Timeout:    30 * time.Second,
		RunOnStart: true,
		Run: func(jobCtx context.Context) error {
			reaped, err := service.ReapStuck(jobCtx, stuckMaxAge)
			if reaped > 0 {
				logger.Info("reaped %d stuck tasks", reaped)
			}
			return err
		},
	}); err != nil {
		logger.Error("Failed to register reaper: %v", err)
		os.Exit(1)
	}
	if err := jobScheduler.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := jobScheduler.Stop(3 * time.Second); err != nil {
			logger.Error("Scheduler shutdown: %v", err)
		}
	}()

	httpServer := http.NewServer(cfg.Server.Port, service, cfg.Task.CLIUserID)
	go func() {
		if err := httpServer.Start(ctx); err != nil {
			logger.Error("HTTP server crashed: %v", err)
			os.Exit(1)
		}
	}()

	cliChannel := cli.NewCLIChannel(cfg.Task.CLIUserID, service)
	go func() {
		if err := cliChannel.Start(ctx); err != nil {
			logger.Error("CLI crashed: %v", err)
		}
	}()

	logger.Info("Concierge is ready.")
	fmt.Println("- CLI Interface: Interactive")
	fmt.Printf("- HTTP Interface: http://localhost:%d/api/tasks (POST)\n", cfg.Server.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received signal: %v. Shutting down...", sig)
	cancel()
}
