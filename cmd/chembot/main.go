// Command chembot runs the marketplace ordering chatbot service.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/redis/go-redis/v9"

	"github.com/chemfalcon/chembot/agent"
	"github.com/chemfalcon/chembot/config"
	"github.com/chemfalcon/chembot/engine"
	"github.com/chemfalcon/chembot/logging"
	"github.com/chemfalcon/chembot/marketplace"
	"github.com/chemfalcon/chembot/model"
	anthropicmodel "github.com/chemfalcon/chembot/model/anthropic"
	openaimodel "github.com/chemfalcon/chembot/model/openai"
	"github.com/chemfalcon/chembot/server"
	"github.com/chemfalcon/chembot/session"
	"github.com/chemfalcon/chembot/translate"
)

func main() {
	cfg := config.Load()

	logger := logging.New(&logging.Config{
		Level:     logging.ParseLevel(cfg.App.LogLevel),
		Format:    "json",
		Output:    os.Stdout,
		Component: "chembot",
	})

	llm := buildModel(cfg)

	market := marketplace.NewClient(func(o *marketplace.Options) {
		o.BaseURL = cfg.Marketplace.BaseURL
		o.InsecureSkipTLSVerify = cfg.Marketplace.InsecureSkipTLSVerify
		o.Logger = logger
	})

	store := buildStore(cfg, logger)

	translator := translate.NewModelTranslator(llm, &translate.Options{
		Queue:  translate.NewQueue(cfg.Translation.QueueLimit, cfg.Translation.QueueWindow),
		Logger: logger,
	})
	defer translator.Close()

	eng := engine.New([]*agent.Agent{
		agent.NewProductAgent(llm, market, logger),
		agent.NewDetailsAgent(llm, logger),
		agent.NewFinalizeAgent(llm, market, logger),
	}, &engine.Options{
		Store:      store,
		Translator: translator,
		Logger:     logger,
	})

	srv := server.New(eng, &server.Options{
		CORSAllowOrigins: cfg.App.CorsAllowedOrigins,
		Logger:           logger,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("main.shutdown")
		if err := srv.Shutdown(); err != nil {
			logger.Error("main.shutdown.failed", "error", err.Error())
		}
	}()

	if err := srv.Listen(":" + cfg.App.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func buildModel(cfg *config.Config) model.Model {
	switch cfg.Model.Provider {
	case "anthropic":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if cfg.Model.Name != "" {
				o.Model = anthropic.Model(cfg.Model.Name)
			}
			o.Temperature = cfg.Model.Temperature
			o.APIKey = cfg.Model.APIKey
		})
	default:
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			if cfg.Model.Name != "" {
				o.Model = cfg.Model.Name
			}
			o.Temperature = cfg.Model.Temperature
		})
	}
}

func buildStore(cfg *config.Config, logger logging.Logger) session.Store {
	if cfg.Redis.Addr == "" {
		logger.Info("main.sessions.in_memory")
		return session.NewInMemoryStore()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	logger.Info("main.sessions.redis", "addr", cfg.Redis.Addr)
	return session.NewRedisStore(client, session.DefaultTTL)
}
