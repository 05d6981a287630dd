package main

import (
	"log"
	"net/http"

	httphandlers "billpay/internal/interfaces/http"
	"billpay/internal/shared/config"
	"billpay/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", httphandlers.HandleHealth)

	// Public auth routes
	mux.HandleFunc("/api/auth/register", deps.AuthHandler.HandleRegister)
	mux.HandleFunc("/api/auth/login", deps.AuthHandler.HandleLogin)
	mux.HandleFunc("/api/auth/logout", deps.AuthHandler.HandleLogout)

	// Aggregator webhook: authenticated by item id lookup, not by session
	mux.HandleFunc("/api/plaid/webhook", deps.PlaidHandler.HandleWebhook)

	// Protected routes
	authMiddleware := middleware.Auth(deps.JWT)

	mux.Handle("/api/users/me", authMiddleware(http.HandlerFunc(deps.UserHandler.HandleMe)))
	mux.Handle("/api/accounts/", authMiddleware(http.HandlerFunc(deps.AccountHandler.HandleListAccounts)))
	mux.Handle("/api/accounts/{id}", authMiddleware(http.HandlerFunc(deps.AccountHandler.HandleAccountByID)))
	mux.Handle("/api/transactions/", authMiddleware(http.HandlerFunc(deps.TransactionHandler.HandleListTransactions)))
	mux.Handle("/api/transactions/{id}", authMiddleware(http.HandlerFunc(deps.TransactionHandler.HandleTransactionByID)))
	mux.Handle("/api/bills/", authMiddleware(http.HandlerFunc(deps.BillHandler.HandleBills)))
	mux.Handle("/api/bills/{id}", authMiddleware(http.HandlerFunc(deps.BillHandler.HandleBillByID)))
	mux.Handle("/api/incomes/", authMiddleware(http.HandlerFunc(deps.IncomeHandler.HandleIncomes)))
	mux.Handle("/api/incomes/{id}", authMiddleware(http.HandlerFunc(deps.IncomeHandler.HandleIncomeByID)))

	mux.Handle("/api/plaid/link-token", authMiddleware(http.HandlerFunc(deps.PlaidHandler.HandleCreateLinkToken)))
	mux.Handle("/api/plaid/exchange-token", authMiddleware(http.HandlerFunc(deps.PlaidHandler.HandleExchangeToken)))
	mux.Handle("/api/plaid/unlink", authMiddleware(http.HandlerFunc(deps.PlaidHandler.HandleUnlink)))
	mux.Handle("/api/plaid/status", authMiddleware(http.HandlerFunc(deps.PlaidHandler.HandleStatus)))
	mux.Handle("/api/plaid/refresh", authMiddleware(http.HandlerFunc(deps.PlaidHandler.HandleRefresh)))
	mux.Handle("/api/plaid/refresh/accounts", authMiddleware(http.HandlerFunc(deps.PlaidHandler.HandleRefreshAccounts)))
	mux.Handle("/api/plaid/refresh/transactions", authMiddleware(http.HandlerFunc(deps.PlaidHandler.HandleRefreshTransactions)))

	mux.Handle("/api/notifications/register-device/", authMiddleware(http.HandlerFunc(deps.NotificationHandler.HandleRegisterDevice)))
	mux.Handle("/api/notifications/preferences/", authMiddleware(http.HandlerFunc(deps.NotificationHandler.HandlePreferences)))
	mux.Handle("/api/notifications/open/", authMiddleware(http.HandlerFunc(deps.NotificationHandler.HandleOpen)))
	mux.Handle("/api/notifications/{id}", authMiddleware(http.HandlerFunc(deps.NotificationHandler.HandleNotificationByID)))
	mux.Handle("/api/notifications/", authMiddleware(http.HandlerFunc(deps.NotificationHandler.HandleNotifications)))

	// Apply global middleware
	var handler http.Handler = mux
	if cfg.Telemetry.Enabled {
		handler = middleware.Telemetry(middleware.Tracing(handler))
	}
	handler = middleware.RequestID(middleware.Logging(middleware.CORS(cfg.Server.AllowedHosts)(handler)))

	// Apply security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		handler = middleware.HSTS(middleware.SecureCookies(handler))
		log.Println("TLS security middleware enabled (HSTS + SecureCookies)")
	}

	return handler
}
