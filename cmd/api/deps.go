package main

import (
	"context"
	"log"

	"billpay/internal/domain/account"
	"billpay/internal/domain/notification"
	"billpay/internal/domain/plaidsync"
	"billpay/internal/infrastructure/crypto"
	"billpay/internal/infrastructure/firebase"
	plaidclient "billpay/internal/infrastructure/plaid"
	"billpay/internal/infrastructure/postgres"
	httphandlers "billpay/internal/interfaces/http"
	"billpay/internal/shared/auth"
	"billpay/internal/shared/config"
	"billpay/internal/shared/messages"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Handlers
	AuthHandler         *httphandlers.AuthHandler
	UserHandler         *httphandlers.UserHandler
	AccountHandler      *httphandlers.AccountHandler
	TransactionHandler  *httphandlers.TransactionHandler
	BillHandler         *httphandlers.BillHandler
	IncomeHandler       *httphandlers.IncomeHandler
	PlaidHandler        *httphandlers.PlaidHandler
	NotificationHandler *httphandlers.NotificationHandler

	// Auth
	JWT *auth.JWT

	// Sync service, exposed for webhook-driven syncs
	SyncService *plaidsync.Service
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	// Connect to database
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to database")

	// Token vault. Without ENCRYPTION_KEY a random process-lifetime key is
	// used; sealed tokens will not survive a restart in that mode.
	encKey := cfg.Encryption.Key
	if encKey == "" {
		encKey, err = crypto.GenerateKey()
		if err != nil {
			db.Close()
			return nil, err
		}
		log.Println("ENCRYPTION_KEY not set: using ephemeral key, linked items will require relink after restart")
	}
	vault, err := crypto.NewEncryptor(encKey)
	if err != nil {
		db.Close()
		return nil, err
	}

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	billRepo := postgres.NewBillRepository(db)
	incomeRepo := postgres.NewIncomeRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	userLocks := postgres.NewUserLocks(db)

	// Push notifications are optional; without Firebase credentials the
	// notification service stores records but sends nothing.
	var messenger notification.Messenger
	if cfg.Firebase.CredentialsFile != "" {
		fcm, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile, notificationRepo.DeactivateToken)
		if err != nil {
			log.Printf("Warning: Firebase initialization failed, push notifications disabled: %v", err)
		} else {
			messenger = fcm
		}
	}
	notificationService := notification.NewService(notificationRepo, messenger)

	// Sync notifier is best-effort; missing message texts disable it.
	var notifier plaidsync.Notifier
	msgs, err := messages.Load("configs/notifications.json")
	if err != nil {
		log.Printf("Warning: notification messages unavailable, sync notifications disabled: %v", err)
	} else {
		notifier = notification.NewSyncNotifier(notificationService, msgs)
	}

	// Link/sync service
	syncService := plaidsync.NewService(
		cfg.Plaid,
		plaidclient.NewClient(cfg.Plaid),
		vault,
		userLocks,
		userRepo,
		accountRepo,
		transactionRepo,
		billRepo,
		incomeRepo,
		notifier,
	)
	if cfg.Plaid.WebhookURL != "" {
		syncService.SetWebhookURL(cfg.Plaid.WebhookURL)
	}

	// Initialize domain services
	accountService := account.NewService(accountRepo)

	// Initialize auth components
	jwt := auth.NewJWT(cfg.JWT.Secret)

	// Initialize handlers
	return &Dependencies{
		DB:                  db,
		AuthHandler:         httphandlers.NewAuthHandler(userRepo, jwt),
		UserHandler:         httphandlers.NewUserHandler(userRepo),
		AccountHandler:      httphandlers.NewAccountHandler(accountService),
		TransactionHandler:  httphandlers.NewTransactionHandler(transactionRepo),
		BillHandler:         httphandlers.NewBillHandler(billRepo),
		IncomeHandler:       httphandlers.NewIncomeHandler(incomeRepo),
		PlaidHandler:        httphandlers.NewPlaidHandler(syncService),
		NotificationHandler: httphandlers.NewNotificationHandler(notificationService),
		JWT:                 jwt,
		SyncService:         syncService,
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
