package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"cloudesk/internal/cache"
	"cloudesk/internal/config"
	"cloudesk/internal/handlers"
	"cloudesk/internal/jobs"
	"cloudesk/internal/knowledge"
	"cloudesk/internal/llm"
	"cloudesk/internal/logging"
	"cloudesk/internal/metrics"
	"cloudesk/internal/middleware"
	"cloudesk/internal/monitor"
	"cloudesk/internal/notify"
	"cloudesk/internal/pipeline"
	"cloudesk/internal/retrieval"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	log.Println("🚀 Starting Cloudesk Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, Env: %s)", cfg.Port, cfg.Environment)

	// Knowledge base. A missing or broken knowledge path degrades to an
	// empty index rather than refusing to start: status queries and
	// alerting still work without it.
	store := loadKnowledgeStore(cfg.KnowledgePath)

	// Model fallback chain. Optional: without it the pipeline answers
	// from the knowledge base only.
	var generator pipeline.Generator
	var usage *llm.UsageCounter
	var embedder retrieval.Embedder
	if modelsCfg, err := config.LoadModels(cfg.ModelsPath); err != nil {
		log.Printf("⚠️  No model chain loaded (%v), running knowledge-only", err)
	} else {
		usage = llm.NewUsageCounter()
		generator = llm.NewClient(cfg, modelsCfg.Models, usage)
		log.Printf("🤖 Model chain loaded: %d models, primary %s", len(modelsCfg.Models), modelsCfg.Models[0].ID)
	}
	if cfg.EmbeddingModel != "" {
		embedder = llm.NewEmbeddingClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModel, cfg.LLMTimeout)
		log.Printf("🧭 Semantic retrieval enabled (model: %s)", cfg.EmbeddingModel)
	}

	// Cache tiers, fastest first. Disk and remote are optional; either
	// failing to come up just narrows the cache to the faster tiers.
	tiers := []cache.Tier{cache.NewMemoryTier(cfg.MemoryTTL, cfg.MemoryMaxEntries)}
	var diskTier *cache.DiskTier
	if cfg.DiskCachePath != "" {
		d, err := cache.NewDiskTier(cfg.DiskCachePath, cfg.DiskTTL)
		if err != nil {
			log.Printf("⚠️  Disk cache disabled: %v", err)
		} else {
			diskTier = d
			tiers = append(tiers, d)
			defer d.Close()
		}
	}
	if cfg.RedisURL != "" {
		r, err := cache.NewRemoteTier(cfg.RedisURL, cfg.RemoteTTL)
		if err != nil {
			log.Printf("⚠️  Remote cache disabled: %v", err)
		} else {
			log.Println("✅ Redis connection established")
			tiers = append(tiers, r)
			defer r.Close()
		}
	}
	tieredCache := cache.NewTiered(tiers...)
	log.Printf("📦 Tiered cache ready (%d tiers)", len(tiers))

	// Notification channels.
	dispatcher, audit := buildDispatcher(cfg)
	if audit != nil {
		defer audit.Close()
	}

	// Pipeline.
	engine := retrieval.NewEngine(store, embedder, retrieval.Options{
		FuzzyThreshold:      cfg.FuzzyThreshold,
		SimilarityThreshold: cfg.SimilarityThreshold,
		TopK:                cfg.TopK,
	})
	classifier := pipeline.NewClassifier(pipeline.KnowledgeProbe(store, cfg.FuzzyThreshold))
	pipe := pipeline.New(engine, generator, tieredCache, dispatcher, classifier, pipeline.Options{
		RequestTimeout: cfg.RequestTimeout,
		Monitor: monitor.Options{
			ErrorThreshold: cfg.MonitorErrorThreshold,
			RecencyWindow:  cfg.MonitorRecencyWindow,
		},
	})

	// Cache janitor sweeps the disk tier.
	var janitor *jobs.CacheJanitor
	if diskTier != nil {
		j, err := jobs.NewCacheJanitor(diskTier, cfg.CacheCleanupCron, cfg.DiskMaxEntries)
		if err != nil {
			log.Printf("⚠️  Cache janitor disabled: %v", err)
		} else if err := j.Start(); err != nil {
			log.Printf("⚠️  Cache janitor failed to start: %v", err)
		} else {
			janitor = j
		}
	}

	// Knowledge hot reload.
	go watchKnowledge(cfg.KnowledgePath, store)

	// HTTP server.
	app := fiber.New(fiber.Config{
		AppName:      "Cloudesk",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	prometheus := fiberprometheus.New("cloudesk")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-API-Key",
	}))

	app.Get("/health", handlers.NewHealthHandler(store, usage).Handle)

	api := app.Group("/api", middleware.APIKeyMiddleware(cfg.APIKey))
	api.Post("/cases", handlers.NewCaseHandler(pipe).Handle)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if janitor != nil {
			if err := janitor.Stop(); err != nil {
				log.Printf("⚠️ Error stopping cache janitor: %v", err)
			}
		}

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// loadKnowledgeStore loads the knowledge base, falling back to an empty
// index when the path is missing or unparseable.
func loadKnowledgeStore(path string) *knowledge.Store {
	entries, err := knowledge.Load(path)
	if err != nil {
		log.Printf("⚠️  Failed to load knowledge base from %s: %v (starting with empty index)", path, err)
		return knowledge.NewStore(knowledge.NewIndex(nil))
	}
	log.Printf("📚 Knowledge base loaded: %d entries", len(entries))
	metrics.KnowledgeEntries.Set(float64(len(entries)))
	return knowledge.NewStore(knowledge.NewIndex(entries))
}

// buildDispatcher wires every configured alert channel.
func buildDispatcher(cfg *config.Config) (*notify.Dispatcher, *notify.AuditLog) {
	var notifiers []notify.Notifier

	if cfg.FeishuWebhookURL != "" {
		notifiers = append(notifiers, notify.NewFeishuNotifier(cfg.FeishuWebhookURL, cfg.NotifyDryRun, cfg.NotifyTimeout))
	}
	if cfg.SMTPHost != "" && len(cfg.SMTPTo) > 0 {
		notifiers = append(notifiers, notify.NewEmailNotifier(
			cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom, cfg.SMTPTo, cfg.NotifyDryRun))
	}
	if cfg.ApifoxToken != "" {
		notifiers = append(notifiers, notify.NewApifoxNotifier(cfg.ApifoxURL, cfg.ApifoxToken, cfg.NotifyDryRun, cfg.NotifyTimeout))
	}

	if len(notifiers) == 0 {
		log.Println("⚠️  No alert channels configured")
		return nil, nil
	}

	audit, err := notify.NewAuditLog(cfg.AuditLogPath)
	if err != nil {
		log.Printf("⚠️  Audit log disabled: %v", err)
		audit = nil
	}

	log.Printf("📣 Alert channels enabled: %d (dry_run: %v)", len(notifiers), cfg.NotifyDryRun)
	return notify.NewDispatcher(notifiers, cfg.NotifyTimeout, audit), audit
}

// watchKnowledge hot-reloads the knowledge base when its files change.
func watchKnowledge(path string, store *knowledge.Store) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  Failed to create file watcher: %v", err)
		return
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		log.Printf("⚠️  Failed to get absolute path for %s: %v", path, err)
		watcher.Close()
		return
	}

	// Watch the containing directory; editors replace files instead of
	// writing them in place.
	watchDir := absPath
	if info, err := os.Stat(absPath); err != nil || !info.IsDir() {
		watchDir = filepath.Dir(absPath)
	}

	if err := watcher.Add(watchDir); err != nil {
		log.Printf("⚠️  Failed to watch %s: %v", watchDir, err)
		watcher.Close()
		return
	}

	log.Printf("👁️  Watching %s for knowledge changes (hot-reload enabled)", path)

	// Debounce rapid successive writes into one reload.
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}

				debounceTimer = time.AfterFunc(debounceDuration, func() {
					entries, err := knowledge.Load(path)
					if err != nil {
						log.Printf("❌ Failed to reload knowledge base: %v", err)
						return
					}
					store.Swap(knowledge.NewIndex(entries))
					metrics.KnowledgeEntries.Set(float64(len(entries)))
					log.Printf("✅ Knowledge base reloaded: %d entries", len(entries))
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  File watcher error: %v", err)
		}
	}
}
