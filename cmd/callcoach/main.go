package main

import (
	"context"
	"embed"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/acc-projects/callcoach/internal/audio"
	"github.com/acc-projects/callcoach/internal/config"
	"github.com/acc-projects/callcoach/internal/dialer"
	"github.com/acc-projects/callcoach/internal/gdrive"
	"github.com/acc-projects/callcoach/internal/grading"
	"github.com/acc-projects/callcoach/internal/server"
	"github.com/acc-projects/callcoach/internal/session"
	"github.com/acc-projects/callcoach/internal/storage"
	"github.com/acc-projects/callcoach/internal/telephony"
	"github.com/acc-projects/callcoach/internal/transcribe"
)

//go:embed static/*
var staticFiles embed.FS

func main() {
	log.Println("callcoach: starting")

	configPath := os.Getenv(config.EnvPrefix + "CONFIG")
	if configPath == "" {
		configPath = "callcoach.yaml"
	}

	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, warning := range warnings {
		slog.Warn(warning)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("static assets init failed: %v", err)
	}

	if err := portaudio.Initialize(); err != nil {
		log.Printf("warning: audio subsystem init failed, capture disabled: %v", err)
	} else {
		defer func() { _ = portaudio.Terminate() }()
	}

	hub := server.NewHub()
	recorder := audio.NewRecorder(cfg.AudioDir)

	dialerClient := dialer.NewClient(cfg.DialerAPIKey)

	transcriber, err := transcribe.New(cfg.STTProvider, cfg.STTAPIKey, cfg.STTModel)
	if err != nil {
		log.Fatalf("transcriber init failed: %v", err)
	}

	grader := grading.NewEngine(defaultScript())
	var coach session.Coach
	if cfg.STTProvider == "openai" && cfg.STTAPIKey != "" {
		coach = grading.NewCoach(cfg.STTAPIKey, "gpt-4o-mini")
	}

	controller := session.NewController(session.Deps{
		Dialer:      dialerClient,
		Transcriber: transcriber,
		Store:       store,
		Recorder:    recorder,
		Grader:      grader,
		Coach:       coach,
		Hub:         hub,
		Credentials: cfg.ValidateCredentials,
	}, session.Options{
		WebhookURL:     cfg.WebhookURL,
		ChunkInterval:  cfg.ParsedChunkInterval(),
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.ParsedRetryBaseDelay(),
		SampleRates:    cfg.SampleRateCandidates(),
		IdleTimeout:    cfg.ParsedIdleTimeout(),
	})

	dispatcher := telephony.NewDispatcher(cfg.WebhookSecret)
	dispatcher.AddListener(hub.BroadcastCallEvent)
	dispatcher.AddListener(func(event telephony.Event) {
		if event.Kind != telephony.KindCallCompleted {
			return
		}
		if event.SessionID == "" || event.SessionID != controller.CurrentSession() {
			return
		}
		// The provider hung up before the agent pressed stop.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := controller.Stop(ctx); err != nil && err != session.ErrNoActiveSession {
				log.Printf("remote hangup stop failed: %v", err)
			}
		}()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := server.Handler(assets, hub, store, controller, dispatcher, server.ControlHooks{
		Warnings:   func() []string { return warnings },
		EventStats: dispatcher.Stats,
	})

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
		}
	}()

	if cfg.GDriveFolderID != "" {
		syncer, syncErr := gdrive.NewSyncer(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if syncErr != nil {
			log.Printf("warning: drive backup disabled: %v", syncErr)
		} else {
			go runBackups(ctx, syncer, cfg.DBPath)
		}
	}

	log.Printf("callcoach: listening on %s", cfg.ListenAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("callcoach: shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := controller.Stop(shutdownCtx); err != nil && err != session.ErrNoActiveSession {
		log.Printf("warning: stop live session failed: %v", err)
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("warning: http shutdown failed: %v", err)
	}
}

func runBackups(ctx context.Context, syncer *gdrive.Syncer, dbPath string) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			date := time.Now().UTC().Format("2006-01-02")
			if err := syncer.BackupDatabase(date, dbPath); err != nil {
				log.Printf("drive backup error: %v", err)
			}
		}
	}
}

func defaultScript() grading.Script {
	return grading.Script{
		ID:   "default",
		Name: "Default Sales Script",
		Content: "thank you for calling\n" +
			"how can i help you today\n" +
			"let me explain how this works\n" +
			"would you be interested\n" +
			"is there anything else i can help with",
		Objections: grading.ObjectionMap{
			"pricing": {
				"too expensive": {"value over time", "flexible payment options"},
				"no budget":     {"free trial", "revisit next quarter"},
			},
			"timing": {
				"not a good time": {"quick follow up", "schedule a call"},
			},
		},
	}
}
