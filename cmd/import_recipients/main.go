package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/greeting-push-go/internal/config"
	"github.com/kapu/greeting-push-go/internal/domain"
	"github.com/kapu/greeting-push-go/internal/service/database"
	"github.com/kapu/greeting-push-go/internal/service/recipient"
)

// CLI flags
var (
	dryRun      = flag.Bool("dry-run", false, "Validate and print a summary without touching the database")
	file        = flag.String("file", "config.json", "Recipients file with a friends list")
	requireUser = flag.Bool("require-touser", false, "Reject recipients without a WeChat openid")
	dbHost      = flag.String("db-host", "localhost", "PostgreSQL host")
	dbPort      = flag.Int("db-port", 5432, "PostgreSQL port")
	dbUser      = flag.String("db-user", "greeter", "PostgreSQL user")
	dbPass      = flag.String("db-pass", "", "PostgreSQL password")
	dbName      = flag.String("db-name", "greeter", "PostgreSQL database")
	timeout     = flag.Duration("timeout", 30*time.Second, "Overall import timeout")
)

func main() {
	flag.Parse()

	log.Println("===========================")
	log.Println("Recipients to PostgreSQL Import")
	log.Println("===========================")

	if *dryRun {
		log.Println("[DRY RUN MODE] No database changes will be made")
	}

	// Step 1: Load recipients
	recipients, err := config.ReadRecipients(*file)
	if err != nil {
		log.Fatalf("Failed to load %s: %v", *file, err)
	}
	log.Printf("✓ Loaded %d recipients from %s", len(recipients), *file)

	// Step 2: Validate
	if len(recipients) == 0 {
		log.Fatalf("No recipients found in %s", *file)
	}
	if err := config.ValidateRecipients(recipients, *requireUser); err != nil {
		log.Fatalf("Recipient validation failed: %v", err)
	}
	log.Println("✓ Recipient validation passed")

	if *dryRun {
		log.Println("✓ Dry-run completed successfully")
		printSummary(recipients)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Step 3: Connect and import
	postgres, err := database.NewPostgresService(ctx, database.PostgresConfig{
		Host:     *dbHost,
		Port:     *dbPort,
		User:     *dbUser,
		Password: *dbPass,
		Database: *dbName,
	}, zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer postgres.Close()

	repo := recipient.NewRepository(postgres.DB(), zap.NewNop())
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to prepare schema: %v", err)
	}
	log.Println("✓ Schema ready")

	if err := repo.Upsert(ctx, recipients); err != nil {
		log.Fatalf("Failed to import recipients: %v", err)
	}

	log.Println("✓ Import completed successfully")
	printSummary(recipients)
}

func printSummary(recipients []domain.Recipient) {
	log.Println("\n===== Import Summary =====")
	log.Printf("Total recipients: %d", len(recipients))

	withBirthday := 0
	withLoveDate := 0
	withOpenID := 0
	withPushPlus := 0

	for _, r := range recipients {
		if r.HasBirthday() {
			withBirthday++
		}
		if r.HasLoveDate() {
			withLoveDate++
		}
		if r.WeChatOpenID != "" {
			withOpenID++
		}
		if r.PushPlusTo != "" {
			withPushPlus++
		}
	}

	log.Printf("Dates: %d with birthday, %d with love_date", withBirthday, withLoveDate)
	log.Printf("Channels: %d with touser, %d with pushplus to", withOpenID, withPushPlus)
	log.Println("==========================")
}
