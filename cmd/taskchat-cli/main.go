// taskchat-cli is an interactive chat client that runs the agent
// in-process, useful for local testing without the HTTP layer.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/taskchat/taskchat/internal/adapters/llm"
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
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigch)
	go func() {
		<-sigch
		fmt.Println("\nExiting...")
		cancel()
	}()

	cfg := config.Load()

	var store domain.TaskStore
	if cfg.StorageBackend == "sqlite" {
		s, err := sqlitestore.New(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("error opening SQLite store: %v", err)
		}
		defer s.Close()
		store = s
	} else {
		store = memstore.NewTaskStore()
	}

	var model domain.ModelClient
	switch cfg.ModelProvider {
	case "anthropic":
		model = llm.NewAnthropicClient(cfg.ModelName)
	case "vertex":
		v, err := llm.NewVertexClient(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.ModelName)
		if err != nil {
			log.Fatalf("error initializing Vertex client: %v", err)
		}
		model = v
	default:
		model = llm.NewMockModel()
	}

	registry := tools.NewTaskRegistry(store)
	mgr := sessions.NewManager(cfg.SessionCap, memory.Config{})
	svc := agent.NewService(model, registry, mgr, agent.Config{
		MaxSteps:        cfg.MaxTurnSteps,
		ProviderTimeout: cfg.ProviderTimeout,
		MaxTokens:       cfg.MaxTokens,
	})

	user := domain.UserID(envOr("TASKCHAT_USER", "local-user"))
	session := svc.CreateSession(user)

	fmt.Println("TaskChat: talk to your todo list. Type 'exit' to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\u001b[94mYou\u001b[0m: ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if ctx.Err() != nil {
			break
		}

		out, err := svc.ProcessTurn(ctx, user, session.ID, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
			continue
		}

		for _, call := range out.ToolCalls {
			status := "ok"
			if !call.Result.Success {
				status = "error"
			}
			fmt.Printf("  [tool] %s (%s)\n", call.Tool, status)
		}
		fmt.Printf("\u001b[93mTaskChat\u001b[0m: %s\n", out.Reply)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
