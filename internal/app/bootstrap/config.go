// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for UploadHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: UPLOADHUB_MONGO_URI, UPLOADHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "upload_hub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "uploadhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},

	{Name: "acting_org_hash_key", Default: "dev-only-acting-org-hash-0123456789AB", Desc: "Signing key for the acting-organization cookie"},
	{Name: "acting_org_block_key", Default: "", Desc: "Optional encryption key for the acting-organization cookie (16/24/32 bytes)"},

	// Records platform
	{Name: "records_base_url", Default: "http://localhost:9000/api", Desc: "Base URL of the records platform API"},
	{Name: "records_app_id", Default: "", Desc: "Application id sent with every records platform request"},
	{Name: "records_api_key", Default: "", Desc: "API key sent with every records platform request"},
	{Name: "records_timeout", Default: "30s", Desc: "Per-request timeout for records platform calls"},

	// Identity resolution retry policy
	{Name: "identity_max_attempts", Default: 5, Desc: "Max identity resolution attempts before disabling submissions"},
	{Name: "identity_backoff", Default: "500ms", Desc: "Base backoff between identity resolution attempts (grows linearly)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, UPLOADHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "UPLOADHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),

		ActingOrgHashKey:  appValues.String("acting_org_hash_key"),
		ActingOrgBlockKey: appValues.String("acting_org_block_key"),

		RecordsBaseURL: appValues.String("records_base_url"),
		RecordsAppID:   appValues.String("records_app_id"),
		RecordsAPIKey:  appValues.String("records_api_key"),
		RecordsTimeout: appValues.Duration("records_timeout", 30*time.Second),

		IdentityMaxAttempts: appValues.Int("identity_max_attempts"),
		IdentityBackoff:     appValues.Duration("identity_backoff", 500*time.Millisecond),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// UploadHub validates the MongoDB URI and the records platform settings to
// catch configuration errors early, before attempting to connect.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.RecordsBaseURL == "" {
		return fmt.Errorf("records_base_url must be set")
	}
	if appCfg.IdentityMaxAttempts < 1 {
		return fmt.Errorf("identity_max_attempts must be at least 1")
	}

	if coreCfg.Env == "prod" {
		if appCfg.RecordsAppID == "" || appCfg.RecordsAPIKey == "" {
			return fmt.Errorf("records_app_id and records_api_key must be set in prod")
		}
	}

	return nil
}
