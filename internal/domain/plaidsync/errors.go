package plaidsync

import "errors"

// Sentinel errors for the link and sync workflow. The HTTP layer maps these
// onto status codes; everything else surfaces as a generic failure.
var (
	// ErrCredentialsMissing means the aggregation credentials are absent or
	// misconfigured for the active environment. Linking is impossible until
	// the operator fixes the configuration.
	ErrCredentialsMissing = errors.New("aggregation credentials not configured")

	// ErrNotLinked means the user has no stored institution link.
	ErrNotLinked = errors.New("no institution link")

	// ErrProductRejected means the upstream rejected the requested products
	// and the single retry with the rejected products removed also failed.
	ErrProductRejected = errors.New("requested products rejected by provider")

	// ErrExchangeFailed means the public token exchange failed. No link
	// state was changed and nothing was stored.
	ErrExchangeFailed = errors.New("public token exchange failed")

	// ErrUpstreamUnavailable wraps transient upstream failures. Retryable.
	ErrUpstreamUnavailable = errors.New("aggregation provider unavailable")

	// ErrSyncInProgress means another sync or unlink currently holds the
	// user's lock. The caller should retry after the running operation ends.
	ErrSyncInProgress = errors.New("a sync is already running for this user")

	// ErrRelinkRequired means the stored sealed token cannot be opened with
	// the current vault key. Retrying cannot help; the user must relink.
	ErrRelinkRequired = errors.New("stored access token unreadable, relink required")
)
