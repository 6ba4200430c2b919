// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	healthfeature "github.com/vespahq/uploadhub/internal/app/features/health"
	jobsfeature "github.com/vespahq/uploadhub/internal/app/features/jobs"
	loginfeature "github.com/vespahq/uploadhub/internal/app/features/login"
	wizardfeature "github.com/vespahq/uploadhub/internal/app/features/wizard"
	"github.com/vespahq/uploadhub/internal/app/records"
	jobstore "github.com/vespahq/uploadhub/internal/app/store/jobs"
	"github.com/vespahq/uploadhub/internal/app/system/actingorg"
	"github.com/vespahq/uploadhub/internal/app/system/auth"
	"github.com/vespahq/uploadhub/internal/app/system/dispatch"
	"github.com/vespahq/uploadhub/internal/app/system/identity"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: any DB or backend clients bundled in DBDeps
//   - logger: the fully configured zap.Logger for this app
//
// UploadHub applies session middleware and mounts the wizard, login,
// job-history, and health routers.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Create the session manager using app config.
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Records platform client shared by identity resolution, remote
	// validation, and dispatch.
	recordsClient := records.New(records.Config{
		BaseURL: appCfg.RecordsBaseURL,
		AppID:   appCfg.RecordsAppID,
		APIKey:  appCfg.RecordsAPIKey,
		Timeout: appCfg.RecordsTimeout,
	}, logger)

	var blockKey []byte
	if appCfg.ActingOrgBlockKey != "" {
		blockKey = []byte(appCfg.ActingOrgBlockKey)
	}
	actingCodec := actingorg.NewCodec([]byte(appCfg.ActingOrgHashKey), blockKey)

	jobs := jobstore.New(deps.UploadHubMongoDatabase)
	dispatcher := dispatch.New(recordsClient, jobs, logger)
	resolver := identity.New(recordsClient, appCfg.IdentityMaxAttempts, appCfg.IdentityBackoff, logger)

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if signed in.
	// This makes the current user available to all handlers via auth.CurrentUser(r).
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.UploadHubMongoClient, appCfg.RecordsBaseURL, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication
	loginHandler := &loginfeature.Handler{Sessions: sessionMgr, Resolver: resolver, Log: logger}
	r.Mount("/", loginfeature.Routes(loginHandler))

	// The upload wizard
	wizardHandler := &wizardfeature.Handler{
		Sessions:   wizardfeature.NewSessionStore(),
		Records:    recordsClient,
		Dispatcher: dispatcher,
		Acting:     actingCodec,
		Log:        logger,
	}
	r.Mount("/wizard", wizardfeature.Routes(wizardHandler, sessionMgr))

	// Job history
	jobsHandler := &jobsfeature.Handler{Jobs: jobs, Log: logger}
	r.Mount("/jobs", jobsfeature.Routes(jobsHandler, sessionMgr))

	return r, nil
}
