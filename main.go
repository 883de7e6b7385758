package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/zhenyu92/memchat/api"
	"github.com/zhenyu92/memchat/config"
	"github.com/zhenyu92/memchat/llm"
	"github.com/zhenyu92/memchat/memory"
	"github.com/zhenyu92/memchat/relay"
	"github.com/zhenyu92/memchat/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()

	log.Printf("Starting inference service...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Qdrant URL: %s", cfg.QdrantURL)
	log.Printf("Collection: %s", cfg.Collection)
	log.Printf("LLM Model: %s", cfg.LLMModel)

	// Initialize LLM client
	llmClient := llm.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.LLMTimeout)

	// Initialize record store
	recordStore := store.NewQdrantStore(cfg.QdrantURL, cfg.Collection, cfg.VectorSize, llmClient, cfg.EmbeddingModel, cfg.StoreTimeout)

	// Initialize memory services
	dir := memory.NewDirectory(recordStore)
	titler := memory.NewTitleInferencer(llmClient, cfg.LLMModel)
	tlog := memory.NewTranscriptLog(recordStore, dir, titler)

	// Initialize relay
	rly := relay.New(tlog, dir, llmClient, cfg.LLMModel, cfg.SystemPrompt)

	// Initialize handlers
	h := api.NewHandler(dir, tlog, rly)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Register routes
	h.RegisterRoutes(e)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Inference service started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down inference service...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Inference service stopped")
}
