package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"billpay/internal/domain/notification"
	"billpay/internal/domain/plaidsync"
	"billpay/internal/infrastructure/crypto"
	"billpay/internal/infrastructure/firebase"
	plaidclient "billpay/internal/infrastructure/plaid"
	"billpay/internal/infrastructure/postgres"
	"billpay/internal/shared/config"
)

const usage = `BillPay Admin CLI - Management commands for the BillPay API

Usage:
  admin <command> [options]

Commands:
  resync   Run a full provider sync for linked users
  notify   Send a push notification to every user with an active device

Examples:
  # Resync a specific user
  admin resync --user-id=1

  # Resync multiple users
  admin resync --user-id=1,2,3

  # Resync all linked users with higher concurrency
  admin resync --all --workers=8

  # Resync with a timeout
  admin resync --user-id=1 --timeout=5m

  # Broadcast an announcement
  admin notify --title="Scheduled maintenance" --body="Syncing pauses at 02:00 UTC"
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "resync":
		runResync(os.Args[2:])
	case "notify":
		runNotify(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage)
		os.Exit(1)
	}
}

func runResync(args []string) {
	fs := flag.NewFlagSet("resync", flag.ExitOnError)

	userIDStr := fs.String("user-id", "", "User ID(s) to resync (comma-separated for multiple)")
	allUsers := fs.Bool("all", false, "Resync all linked users")
	workers := fs.Int("workers", 4, "Number of concurrent workers")
	timeoutStr := fs.String("timeout", "30m", "Timeout for the operation (e.g., 5m, 1h)")

	fs.Usage = func() {
		fmt.Println("Usage: admin resync [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Println("  admin resync --user-id=1")
		fmt.Println("  admin resync --user-id=1,2,3")
		fmt.Println("  admin resync --all --workers=8 --timeout=1h")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *userIDStr == "" && !*allUsers {
		fmt.Println("Error: must specify --user-id or --all")
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.Plaid.Enabled {
		log.Fatal("Plaid integration is not configured")
	}
	// Stored tokens are sealed under the configured key; an ephemeral key
	// cannot open them, so resync requires ENCRYPTION_KEY.
	if cfg.Encryption.Key == "" {
		log.Fatal("ENCRYPTION_KEY is required for resync")
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	vault, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		log.Fatalf("Failed to create encryptor: %v", err)
	}

	userRepo := postgres.NewUserRepository(db)
	syncService := plaidsync.NewService(
		cfg.Plaid,
		plaidclient.NewClient(cfg.Plaid),
		vault,
		postgres.NewUserLocks(db),
		userRepo,
		postgres.NewAccountRepository(db),
		postgres.NewTransactionRepository(db),
		postgres.NewBillRepository(db),
		postgres.NewIncomeRepository(db),
		nil,
	)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var userIDs []int64
	if *allUsers {
		users, err := userRepo.ListLinked(ctx)
		if err != nil {
			log.Fatalf("Failed to list linked users: %v", err)
		}
		for _, u := range users {
			userIDs = append(userIDs, u.ID)
		}
		log.Printf("Found %d linked users", len(userIDs))
	} else {
		for _, p := range strings.Split(*userIDStr, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			id, err := strconv.ParseInt(p, 10, 64)
			if err != nil {
				log.Fatalf("Invalid user ID '%s': %v", p, err)
			}
			userIDs = append(userIDs, id)
		}
	}

	if len(userIDs) == 0 {
		log.Println("No users to process")
		return
	}

	log.Printf("Starting resync for %d user(s) with %d workers", len(userIDs), *workers)
	startTime := time.Now()

	type result struct {
		userID  int64
		summary *plaidsync.SyncSummary
		err     error
	}

	jobs := make(chan int64)
	results := make(chan result, len(userIDs))

	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for uid := range jobs {
				summary, err := syncService.SyncAll(ctx, uid)
				results <- result{userID: uid, summary: summary, err: err}
			}
		}()
	}

	for _, uid := range userIDs {
		jobs <- uid
	}
	close(jobs)
	wg.Wait()
	close(results)

	failed := 0
	for res := range results {
		if res.err != nil {
			failed++
			fmt.Printf("\n=== User %d ===\n  Error: %v\n", res.userID, res.err)
			continue
		}
		printSummary(res.userID, res.summary)
	}

	log.Printf("Resync completed in %v (%d ok, %d failed)", time.Since(startTime), len(userIDs)-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func printSummary(userID int64, summary *plaidsync.SyncSummary) {
	fmt.Printf("\n=== User %d ===\n", userID)
	if summary == nil {
		return
	}
	if summary.Accounts != nil {
		fmt.Printf("  Accounts:     %d found, %d created, %d updated\n",
			summary.Accounts.Found, summary.Accounts.Created, summary.Accounts.Updated)
	}
	if summary.Transactions != nil {
		fmt.Printf("  Transactions: %d found, %d created, %d updated\n",
			summary.Transactions.Found, summary.Transactions.Created, summary.Transactions.Updated)
	}
	if summary.Liabilities != nil {
		fmt.Printf("  Liabilities:  %d found, %d created, %d updated\n",
			summary.Liabilities.Found, summary.Liabilities.Created, summary.Liabilities.Updated)
	}
	if summary.Income != nil {
		fmt.Printf("  Income:       %d deposits, %d created, %d updated\n",
			summary.Income.Deposits, summary.Income.Created, summary.Income.Updated)
	}
	if summary.RelinkRequired {
		fmt.Println("  Relink required")
	}
	for _, w := range summary.Warnings {
		fmt.Printf("  Warning: %s\n", w)
	}
}

func runNotify(args []string) {
	fs := flag.NewFlagSet("notify", flag.ExitOnError)

	title := fs.String("title", "", "Notification title")
	body := fs.String("body", "", "Notification body")
	category := fs.String("category", notification.CategoryGeneral, "Notification category")
	timeoutStr := fs.String("timeout", "5m", "Timeout for the operation")

	fs.Usage = func() {
		fmt.Println("Usage: admin notify [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *title == "" || *body == "" {
		fmt.Println("Error: --title and --body are required")
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Firebase.CredentialsFile == "" {
		log.Fatal("FIREBASE_CREDENTIALS_FILE is required for notify")
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	notificationRepo := postgres.NewNotificationRepository(db)
	fcm, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile, notificationRepo.DeactivateToken)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	svc := notification.NewService(notificationRepo, fcm)
	if err := svc.SendToAll(ctx, *title, *body, *category, nil); err != nil {
		log.Fatalf("Failed to send notification: %v", err)
	}

	log.Println("Notification sent")
}
