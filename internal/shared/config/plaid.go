package config

import (
	"fmt"
	"log"
	"strings"
)

const (
	PlaidEnvSandbox    = "sandbox"
	PlaidEnvProduction = "production"
)

// Advanced products need explicit enablement on the Plaid dashboard; in
// sandbox they are filtered out of link requests unless allowed by config.
var advancedProducts = map[string]struct{}{
	"liabilities": {},
	"income":      {},
}

// PlaidConfig is the resolved credential set for the aggregation API.
// When Enabled is false the integration is inert and the rest of the app
// runs in manual-entry mode.
type PlaidConfig struct {
	Enabled               bool
	Environment           string // sandbox or production
	ClientID              string
	Secret                string
	Products              []string
	CountryCodes          []string
	RedirectURI           string
	WebhookURL            string
	AllowAdvancedProducts bool

	// TransactionWindowDays bounds the fetch window for transaction syncs.
	TransactionWindowDays int
}

// ResolvePlaid reads the Plaid environment variables and resolves the active
// credential set. Secret precedence: environment-specific secret
// (PLAID_SECRET_SANDBOX / PLAID_SECRET_PRODUCTION), then generic
// PLAID_SECRET, then disabled.
func ResolvePlaid() PlaidConfig {
	env := strings.ToLower(strings.TrimSpace(getEnv("PLAID_ENV", PlaidEnvSandbox)))
	if env != PlaidEnvSandbox {
		// Anything that is not sandbox is treated as production.
		env = PlaidEnvProduction
	}

	clientID := getEnv("PLAID_CLIENT_ID", "")

	var secret string
	switch env {
	case PlaidEnvSandbox:
		secret = getEnv("PLAID_SECRET_SANDBOX", "")
	case PlaidEnvProduction:
		secret = getEnv("PLAID_SECRET_PRODUCTION", "")
	}
	if secret == "" {
		secret = getEnv("PLAID_SECRET", "")
	}

	cfg := PlaidConfig{
		Environment:           env,
		ClientID:              clientID,
		Secret:                secret,
		Products:              splitCSV(getEnv("PLAID_PRODUCTS", "transactions,auth,liabilities")),
		CountryCodes:          splitCSV(getEnv("PLAID_COUNTRY_CODES", "US")),
		RedirectURI:           getEnv("PLAID_REDIRECT_URI", ""),
		WebhookURL:            getEnv("PLAID_WEBHOOK_URL", ""),
		AllowAdvancedProducts: getBoolEnv("PLAID_ALLOW_ADVANCED_PRODUCTS", false),
		TransactionWindowDays: 30,
	}

	if clientID == "" || secret == "" {
		log.Printf("Plaid integration disabled: client id or secret missing (manual entry mode)")
		return cfg
	}

	if env == PlaidEnvProduction && strings.Contains(secret, "sandbox") {
		log.Printf("Warning: PLAID_ENV=production but resolved secret (%s) looks like a sandbox secret", MaskSecret(secret))
	}

	cfg.Enabled = true
	log.Printf("Plaid integration enabled: env=%s client_id=%s secret=%s products=%v",
		env, clientID, MaskSecret(secret), cfg.Products)
	return cfg
}

// SanitizedProducts returns the product list with advanced products dropped
// unless they are explicitly allowed, logging anything removed.
func (c PlaidConfig) SanitizedProducts() []string {
	if c.AllowAdvancedProducts {
		return c.Products
	}

	var kept, dropped []string
	for _, p := range c.Products {
		if _, advanced := advancedProducts[p]; advanced {
			dropped = append(dropped, p)
			continue
		}
		kept = append(kept, p)
	}
	if len(dropped) > 0 {
		log.Printf("Plaid: dropping advanced products %v (set PLAID_ALLOW_ADVANCED_PRODUCTS=true to keep)", dropped)
	}
	if len(kept) == 0 {
		kept = []string{"transactions"}
	}
	return kept
}

// ProductEnabled reports whether a product survived sanitization.
func (c PlaidConfig) ProductEnabled(product string) bool {
	for _, p := range c.SanitizedProducts() {
		if p == product {
			return true
		}
	}
	return false
}

// SecretLooksValid applies the production secret heuristic: modern production
// secrets carry a "production-" prefix or are at least 40 characters long.
// Sandbox secrets are not checked.
func (c PlaidConfig) SecretLooksValid() bool {
	if c.Environment != PlaidEnvProduction {
		return true
	}
	return strings.Contains(c.Secret, "production-") || len(c.Secret) >= 40
}

// MaskSecret renders a secret as its length plus last four characters.
// Never returns the full value.
func MaskSecret(secret string) string {
	if secret == "" {
		return "len=0"
	}
	tail := secret
	if len(tail) > 4 {
		tail = tail[len(tail)-4:]
	}
	return fmt.Sprintf("len=%d ****%s", len(secret), tail)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
