package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"lungscan-server-go/src/api"
	"lungscan-server-go/src/configs"
	"lungscan-server-go/src/core/analysis"
	"lungscan-server-go/src/core/chat"
	"lungscan-server-go/src/core/classifier"
	"lungscan-server-go/src/core/modelhub"
	"lungscan-server-go/src/core/providers/llm"
	"lungscan-server-go/src/core/providers/vlllm"
	"lungscan-server-go/src/core/utils"
	"lungscan-server-go/src/store"

	// import providers so their init functions register the factories
	_ "lungscan-server-go/src/core/providers/llm/openai"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func LoadConfigAndLogger() (*configs.Config, *utils.Logger, error) {
	config, configPath, err := configs.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger, err := utils.NewLogger(config)
	if err != nil {
		return nil, nil, err
	}
	logger.Info(fmt.Sprintf("logger initialized, config loaded from %s", configPath))

	return config, logger, nil
}

// initClassifier ensures the model artifact is cached locally, connects to
// the inference runtime and verifies the label mapping. All failures here
// are fatal: the service does not start without a working classifier.
func initClassifier(ctx context.Context, config *configs.Config, logger *utils.Logger) (*classifier.Service, error) {
	hub := modelhub.NewHub(&config.Model, logger)
	artifactPath, err := hub.EnsureLocal(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info(fmt.Sprintf("model artifact available at %s", artifactPath))

	engine := classifier.NewServingEngine(&config.Model, logger)
	service := classifier.NewService(engine, config.Model.ClassNames, config.Model.InputSize, logger)

	if err := service.VerifyLabels(ctx); err != nil {
		return nil, err
	}

	return service, nil
}

func initLLMServices(config *configs.Config, logger *utils.Logger) (*chat.Service, *analysis.Analyzer, error) {
	selectedLLM := config.SelectedModule["LLM"]
	llmConfig, ok := config.LLM[selectedLLM]
	if !ok {
		return nil, nil, fmt.Errorf("no LLM config named %q", selectedLLM)
	}

	llmProvider, err := llm.Create(llmConfig.Type, &llm.Config{
		Type:        llmConfig.Type,
		ModelName:   llmConfig.ModelName,
		BaseURL:     llmConfig.BaseURL,
		APIKey:      llmConfig.APIKey,
		Temperature: llmConfig.Temperature,
		MaxTokens:   llmConfig.MaxTokens,
		TopP:        llmConfig.TopP,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create LLM provider: %w", err)
	}

	selectedVLLLM := config.SelectedModule["VLLLM"]
	vlllmConfig, ok := config.VLLLM[selectedVLLLM]
	if !ok {
		return nil, nil, fmt.Errorf("no VLLLM config named %q", selectedVLLLM)
	}

	visionProvider, err := vlllm.NewProvider(&vlllm.Config{
		Type:        vlllmConfig.Type,
		ModelName:   vlllmConfig.ModelName,
		BaseURL:     vlllmConfig.BaseURL,
		APIKey:      vlllmConfig.APIKey,
		Temperature: vlllmConfig.Temperature,
		MaxTokens:   vlllmConfig.MaxTokens,
		TopP:        vlllmConfig.TopP,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create VLLLM provider: %w", err)
	}
	if err := visionProvider.Initialize(); err != nil {
		return nil, nil, fmt.Errorf("initialize VLLLM provider: %w", err)
	}

	return chat.NewService(llmProvider, logger), analysis.NewAnalyzer(visionProvider, logger), nil
}

func StartHttpServer(config *configs.Config, logger *utils.Logger, gateway *api.Service, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	if config.Log.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.SetTrustedProxies([]string{"0.0.0.0"})

	if err := gateway.Start(groupCtx, router); err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:    config.Server.IP + ":" + strconv.Itoa(config.Server.Port),
		Handler: router,
	}

	g.Go(func() error {
		logger.Info(fmt.Sprintf("HTTP server listening on %s", httpServer.Addr))

		go func() {
			<-groupCtx.Done()
			logger.Info("shutdown signal received, stopping HTTP server")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error(fmt.Sprintf("HTTP server shutdown failed: %v", err))
			} else {
				logger.Info("HTTP server stopped")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(fmt.Sprintf("HTTP server failed: %v", err))
			return err
		}
		return nil
	})

	return httpServer, nil
}

func GracefulShutdown(cancel context.CancelFunc, logger *utils.Logger, g *errgroup.Group) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	logger.Info(fmt.Sprintf("received signal %v, shutting down", sig))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Error(fmt.Sprintf("shutdown finished with error: %v", err))
			os.Exit(1)
		}
		logger.Info("all services stopped")
	case <-time.After(15 * time.Second):
		logger.Error("shutdown timed out, forcing exit")
		os.Exit(1)
	}
}

func main() {
	config, logger, err := LoadConfigAndLogger()
	if err != nil {
		fmt.Println("failed to load config or initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Close()

	if err := godotenv.Load(); err != nil {
		logger.Warn("no .env file found, using process environment")
	}

	if err := config.ResolveSecrets(); err != nil {
		logger.Error(fmt.Sprintf("configuration error: %v", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	classifierService, err := initClassifier(ctx, config, logger)
	if err != nil {
		logger.Error(fmt.Sprintf("classifier initialization failed: %v", err))
		os.Exit(1)
	}

	chatService, analyzer, err := initLLMServices(config, logger)
	if err != nil {
		logger.Error(fmt.Sprintf("LLM initialization failed: %v", err))
		os.Exit(1)
	}

	// Optional audit log; absent DATABASE_URL disables it.
	var auditor *store.Auditor
	db, dbType, err := store.OpenDB()
	if err != nil {
		logger.Error(fmt.Sprintf("database connection failed: %v", err))
		os.Exit(1)
	}
	if db != nil {
		auditor, err = store.NewAuditor(db, logger)
		if err != nil {
			logger.Error(fmt.Sprintf("auditor initialization failed: %v", err))
			os.Exit(1)
		}
		defer auditor.Close()
		logger.Info(fmt.Sprintf("request audit log enabled (%s)", dbType))
	}

	gateway := api.NewService(config, logger, classifierService, analyzer, chatService, auditor)

	g, groupCtx := errgroup.WithContext(ctx)
	if _, err := StartHttpServer(config, logger, gateway, g, groupCtx); err != nil {
		logger.Error(fmt.Sprintf("failed to start HTTP server: %v", err))
		cancel()
		os.Exit(1)
	}

	GracefulShutdown(cancel, logger, g)

	logger.Info("exited cleanly")
}
