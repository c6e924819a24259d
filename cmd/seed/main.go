package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"giftcards/internal/config"
	"giftcards/internal/db"
	"giftcards/internal/model"
	"giftcards/internal/repository"
	"giftcards/internal/service"
)

func main() {
	source := flag.String("catalog", "catalog.json", "catalog JSON file or http(s) URL")
	adminEmail := flag.String("admin-email", os.Getenv("SEED_ADMIN_EMAIL"), "email of the admin operator to create or update")
	adminPassword := flag.String("admin-password", os.Getenv("SEED_ADMIN_PASSWORD"), "password of the admin operator")
	flag.Parse()

	log.Println("Starting seed script...")

	cfg := config.Load()

	gormDB, err := db.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	log.Printf("Loading catalog from: %s", *source)
	catalog, err := loadCatalog(*source)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	log.Printf("Loaded %d companies and %d offers", len(catalog.Companies), len(catalog.Offers))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store := repository.NewStore(gormDB)
	catalogService := service.NewCatalogService(store, nil)

	seeded, err := catalogService.SeedCatalog(ctx, catalog)
	if err != nil {
		log.Fatalf("Failed to seed catalog: %v", err)
	}
	log.Printf("  - Catalog rows upserted: %d", seeded)

	if *adminEmail != "" {
		if err := seedAdmin(ctx, store.Operators(), *adminEmail, *adminPassword); err != nil {
			log.Fatalf("Failed to seed admin operator: %v", err)
		}
		log.Printf("  - Admin operator ready: %s", *adminEmail)
	}

	log.Printf("Seed completed successfully!")
}

// loadCatalog reads the catalog from a local file or fetches it over HTTP.
func loadCatalog(source string) (service.Catalog, error) {
	var body []byte
	var err error
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		body, err = fetch(source)
	} else {
		body, err = os.ReadFile(source)
	}
	if err != nil {
		return service.Catalog{}, err
	}

	var catalog service.Catalog
	if err := json.Unmarshal(body, &catalog); err != nil {
		return service.Catalog{}, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return catalog, nil
}

func fetch(url string) ([]byte, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog source returned status code: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// seedAdmin creates the admin operator or resets its password.
func seedAdmin(ctx context.Context, repo repository.OperatorRepository, email, password string) error {
	if len(password) < 8 {
		return fmt.Errorf("admin password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return repo.Upsert(ctx, &model.Operator{
		ID:           uuid.New(),
		Name:         "Administrator",
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		Role:         model.OperatorRoleAdmin,
		Active:       true,
	})
}
