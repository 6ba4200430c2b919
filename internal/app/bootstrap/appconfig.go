// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//   - Database connection timeouts
//
// AppConfig is where everything specific to UploadHub lives: the audit
// database, the session cookies, and how to reach the records platform.
type AppConfig struct {
	// MongoDB connection configuration (upload job audit trail)
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: uploadhub-session)
	SessionDomain string // Cookie domain (blank means current host)

	// Acting-organization cookie keys. The block key is optional; when set
	// the selection cookie is encrypted as well as signed.
	ActingOrgHashKey  string
	ActingOrgBlockKey string

	// Records platform configuration
	RecordsBaseURL string        // e.g., https://records.example.com/api
	RecordsAppID   string        // X-App-Id header value
	RecordsAPIKey  string        // X-Api-Key header value
	RecordsTimeout time.Duration // per-request HTTP timeout

	// Identity resolution retry policy
	IdentityMaxAttempts int
	IdentityBackoff     time.Duration
}
