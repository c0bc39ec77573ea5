package main

import (
	"context"
	"log"
	"net/http"

	httpadapter "github.com/taskchat/taskchat/internal/adapters/http"
	"github.com/taskchat/taskchat/internal/adapters/llm"
	firestorestore "github.com/taskchat/taskchat/internal/adapters/storage/firestore"
	memstore "github.com/taskchat/taskchat/internal/adapters/storage/memory"
	sqlitestore "github.com/taskchat/taskchat/internal/adapters/storage/sqlite"
	"github.com/taskchat/taskchat/internal/app/agent"
	"github.com/taskchat/taskchat/internal/app/memory"
	"github.com/taskchat/taskchat/internal/app/sessions"
	"github.com/taskchat/taskchat/internal/app/tools"
	"github.com/taskchat/taskchat/internal/config"
	"github.com/taskchat/taskchat/internal/domain"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	store := buildStore(ctx, cfg)
	model := buildModel(ctx, cfg)

	registry := tools.NewTaskRegistry(store)
	mgr := sessions.NewManager(cfg.SessionCap, memory.Config{})
	svc := agent.NewService(model, registry, mgr, agent.Config{
		MaxSteps:        cfg.MaxTurnSteps,
		ProviderTimeout: cfg.ProviderTimeout,
		MaxTokens:       cfg.MaxTokens,
	})

	handler := httpadapter.NewServer(svc, store)

	addr := ":" + cfg.Port
	log.Println("TaskChat API listening on", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatal(err)
	}
}

func buildStore(ctx context.Context, cfg *config.Config) domain.TaskStore {
	switch cfg.StorageBackend {
	case "sqlite":
		log.Printf("[STORE] Using SQLite storage (path=%s)", cfg.SQLitePath)
		store, err := sqlitestore.New(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("error initializing SQLite store: %v", err)
		}
		return store

	case "firestore":
		log.Printf("[STORE] Using Firestore storage (project=%s)", cfg.GCPProjectID)
		store, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Fatalf("error initializing Firestore store: %v", err)
		}
		return store

	default:
		log.Println("[STORE] Using in-memory storage")
		return memstore.NewTaskStore()
	}
}

func buildModel(ctx context.Context, cfg *config.Config) domain.ModelClient {
	switch cfg.ModelProvider {
	case "anthropic":
		log.Println("[LLM] Using Anthropic client")
		return llm.NewAnthropicClient(cfg.ModelName)

	case "vertex":
		log.Println("[LLM] Using Vertex LLM client")
		client, err := llm.NewVertexClient(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.ModelName)
		if err != nil {
			log.Fatalf("error initializing Vertex LLM client: %v", err)
		}
		return client

	default:
		log.Println("[LLM] Using MOCK LLM client")
		return llm.NewMockModel()
	}
}
