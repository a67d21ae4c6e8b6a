package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/freightlens/reconciler/internal/api"
	"github.com/freightlens/reconciler/internal/assistant"
	"github.com/freightlens/reconciler/internal/config"
	"github.com/freightlens/reconciler/internal/domain"
	"github.com/freightlens/reconciler/internal/notify"
	"github.com/freightlens/reconciler/internal/repository"
	"github.com/freightlens/reconciler/internal/snapshot"
)

var configPath = flag.String("config", "", "path to optional YAML config file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Initializing warehouse database at %s", cfg.Warehouse.DBPath)
	db, err := repository.InitDB(cfg.Warehouse.DBPath)
	if err != nil {
		log.Fatalf("Failed to init DB: %v", err)
	}
	defer db.Close()

	orderRepo := repository.NewOrderRepo(db)

	// Seed orders if the DB is empty.
	if cfg.Warehouse.Seed {
		count, err := orderRepo.Count()
		if err != nil {
			log.Fatalf("Failed to count orders: %v", err)
		}
		if count == 0 {
			log.Println("Database is empty, seeding orders from testdata...")
			if err := seedOrders(orderRepo); err != nil {
				log.Printf("WARNING: Failed to seed orders: %v", err)
			}
		} else {
			log.Printf("Database already has %d orders, skipping seed", count)
		}
	}

	// Alert sink: Telegram when configured, otherwise a no-op.
	var notifier snapshot.Notifier = snapshot.NopNotifier{}
	if cfg.Telegram.Enabled {
		tn, err := notify.NewTelegramNotifier(
			cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase,
		)
		if err != nil {
			log.Fatalf("Failed to init Telegram notifier: %v", err)
		}
		notifier = tn
		log.Printf("Telegram alerts enabled")
	}

	store := snapshot.New(notifier)

	completer := assistant.NewClient(
		cfg.Assistant.BaseURL, cfg.Assistant.APIKey,
		cfg.Assistant.Model, cfg.Assistant.Timeout,
	)
	assistantSvc := assistant.NewService(store, completer)

	router := api.NewRouter(store, orderRepo, assistantSvc)

	log.Printf("FreightLens Billing Reconciler")
	log.Printf("Listening on http://localhost:%s", cfg.Server.Port)
	log.Printf("API base: http://localhost:%s/api/v1", cfg.Server.Port)
	log.Printf("")
	log.Printf("Endpoints:")
	log.Printf("  GET    /api/v1/stats")
	log.Printf("  GET    /api/v1/customers")
	log.Printf("  GET    /api/v1/customers/{name}/orders")
	log.Printf("  POST   /api/v1/upload")
	log.Printf("  POST   /api/v1/clear")
	log.Printf("  POST   /api/v1/refresh")
	log.Printf("  POST   /api/v1/chat")

	if err := http.ListenAndServe(":"+cfg.Server.Port, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func seedOrders(repo *repository.OrderRepo) error {
	// Try multiple possible locations for testdata.
	candidates := []string{
		"testdata/orders.json",
		filepath.Join(".", "testdata", "orders.json"),
	}

	// Also try to find relative to the executable.
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(dir, "testdata", "orders.json"),
			filepath.Join(dir, "..", "..", "testdata", "orders.json"),
		)
	}

	var data []byte
	var loadErr error
	for _, path := range candidates {
		data, loadErr = os.ReadFile(path)
		if loadErr == nil {
			log.Printf("Loaded orders from %s", path)
			break
		}
	}
	if loadErr != nil {
		return fmt.Errorf("could not find orders.json in any candidate path: %w", loadErr)
	}

	var orders []domain.OrderRecord
	if err := json.Unmarshal(data, &orders); err != nil {
		return fmt.Errorf("unmarshal orders: %w", err)
	}

	inserted, err := repo.BulkInsert(orders)
	if err != nil {
		return fmt.Errorf("bulk insert: %w", err)
	}

	log.Printf("Seeded %d orders (out of %d in file)", inserted, len(orders))
	return nil
}
