package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"digest-backend/internal/ingest"
	"digest-backend/internal/notify"
	"digest-backend/internal/records"
	"digest-backend/internal/scheduler"
	"digest-backend/internal/shared/config"
	"digest-backend/internal/shared/faults"
	"digest-backend/internal/shared/server"
	"digest-backend/internal/shared/server/middleware"
	"digest-backend/internal/shared/storage/db"
	localstore "digest-backend/internal/shared/storage/object/local"
	s3store "digest-backend/internal/shared/storage/object/s3"
	"digest-backend/internal/shared/telemetry"
	"digest-backend/internal/source"
	"digest-backend/internal/source/drive"
	localsrc "digest-backend/internal/source/local"
	s3src "digest-backend/internal/source/s3"
	"digest-backend/internal/tenants"
)

// defaultTenant keeps a dev process usable when no tenant directory is configured.
var defaultTenant = tenants.Tenant{ID: "default", Name: "Default"}

// App holds shared dependencies.
type App struct {
	Config    config.Config
	Router    *gin.Engine
	DB        *sql.DB
	Records   records.Repo
	Tenants   tenants.Repo
	Source    source.Source
	Ingest    *ingest.Service
	Notify    *notify.Service
	Scheduler *scheduler.Scheduler
	Jobs      scheduler.Jobs

	closers []func() error
}

// Build wires the record store, tenant directory, source adapter, services,
// scheduler presets and router from cfg. The scheduler is left stopped.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.RecordStore) == "" {
		cfg.RecordStore = "memory"
	}
	if strings.TrimSpace(cfg.SourceType) == "" {
		cfg.SourceType = "local"
	}

	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = app.Close()
		}
	}()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB
	if sqlDB != nil {
		app.closers = append(app.closers, sqlDB.Close)
	}

	if err := app.buildRecords(); err != nil {
		return nil, err
	}
	if err := app.buildTenants(); err != nil {
		return nil, err
	}
	app.Source = buildSource(ctx, cfg)

	svc, err := ingest.NewService(app.Source, app.Records, app.Tenants,
		ingest.WithWindow(cfg.ScanWindow),
		ingest.WithTempDir(cfg.TempDir),
		ingest.WithWorkers(cfg.ScanWorkers),
	)
	if err != nil {
		return nil, err
	}
	app.Ingest = svc
	app.closers = append(app.closers, func() error { svc.Release(); return nil })

	publisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Notify = notify.NewService(app.Tenants, svc, publisher, notify.WithWindow(cfg.ScanWindow))

	app.Scheduler = scheduler.New()
	app.Jobs = scheduler.Jobs{
		Scan:      app.sweepJob,
		Summaries: app.digestJob,
	}
	if err := scheduler.RegisterMode(app.Scheduler, cfg.ScheduleMode, app.Jobs, cfg.Location()); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config: cfg,
		Ingest: ingest.NewHandler(svc),
		Jobs: &scheduler.Handler{
			Sched:    app.Scheduler,
			Jobs:     app.Jobs,
			Location: cfg.Location(),
			ScanNow:  func(ctx context.Context) any { return svc.ScanAll(ctx) },
			SendNow:  func(ctx context.Context) any { return gin.H{"results": app.Notify.SendDigests(ctx)} },
		},
		Drive: buildAuthorizer(cfg),
		Health: &server.HealthHandler{
			DB:          sqlDB,
			RecordStore: cfg.RecordStore,
			SourceType:  cfg.SourceType,
			Jobs:        func() int { return len(app.Scheduler.List()) },
		},
		Limiter: middleware.NewRateLimiter(nil),
	})

	ok = true
	return app, nil
}

// Start launches the scheduler loop.
func (a *App) Start() {
	if a.Scheduler != nil {
		a.Scheduler.Start()
	}
}

// Close stops the scheduler and releases stores in reverse build order.
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	var errs error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	a.closers = nil
	telemetry.Sync()
	return errs
}

func (a *App) sweepJob(ctx context.Context) error {
	report := a.Ingest.ScanAll(ctx)
	if n := len(report.Errors); n > 0 {
		return errors.Newf("sweep of %d tenants finished with %d faults", report.Tenants, n)
	}
	return nil
}

func (a *App) digestJob(ctx context.Context) error {
	results := a.Notify.SendDigests(ctx)
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	telemetry.Info("notify.job", map[string]any{"tenants": len(results), "failed": failed})
	if failed > 0 {
		return errors.Newf("%d of %d digests not delivered", failed, len(results))
	}
	return nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.RecordStore == "postgres" && !isDevLike(cfg.Env) {
			return nil, faults.Configuration("RECORD_STORE=postgres requires DATABASE_URL")
		}
		return nil, nil
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
		if err != nil {
			sqlDB.Close()
			sqlDB = nil
		}
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db_unavailable", map[string]any{"error": err})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func (a *App) buildRecords() error {
	switch a.Config.RecordStore {
	case "postgres":
		if a.DB != nil {
			a.Records = &records.PGRepo{DB: a.DB}
			return nil
		}
		telemetry.Warn("bootstrap.records_fallback", map[string]any{"wanted": "postgres", "using": "memory"})
		a.Config.RecordStore = "memory"
		a.Records = records.NewMemoryRepo()
	case "badger":
		repo, err := records.OpenBadger(a.Config.BadgerDir)
		if err != nil {
			return err
		}
		a.Records = repo
		a.closers = append(a.closers, repo.Close)
	default:
		a.Records = records.NewMemoryRepo()
	}
	return nil
}

func (a *App) buildTenants() error {
	switch {
	case strings.TrimSpace(a.Config.TenantsFile) != "":
		repo, err := tenants.LoadFile(a.Config.TenantsFile)
		if err != nil {
			return err
		}
		a.Tenants = repo
	case a.DB != nil:
		a.Tenants = &tenants.PGRepo{DB: a.DB}
	case isDevLike(a.Config.Env):
		a.Tenants = tenants.NewMemoryRepo(defaultTenant)
	default:
		return faults.Configuration("a tenant directory is required: set TENANTS_FILE or DATABASE_URL")
	}
	return nil
}

// buildSource never fails: an adapter that cannot be built is replaced by
// source.Unconfigured so scans and uploads report the configuration fault.
func buildSource(ctx context.Context, cfg config.Config) source.Source {
	var (
		src source.Source
		err error
	)
	switch cfg.SourceType {
	case "s3":
		src, err = newS3Source(ctx, cfg)
	case "drive":
		src, err = drive.New(context.Background(), cfg.GoogleCredsFile, cfg.GoogleTokenFile)
	default:
		src, err = localsrc.New(cfg.LocalSourceDir)
	}
	if err != nil {
		telemetry.Warn("bootstrap.source_unconfigured", map[string]any{"source": cfg.SourceType, "error": err})
		return source.Unconfigured{Err: err}
	}
	return src
}

func newS3Source(ctx context.Context, cfg config.Config) (source.Source, error) {
	if strings.TrimSpace(cfg.S3Bucket) == "" {
		return nil, faults.Configuration("SOURCE_TYPE=s3 requires S3_BUCKET")
	}
	client, err := s3store.LoadClient(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}
	return s3src.New(client, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
}

// buildPublisher always logs digests and also writes them to an outbox:
// S3 when DIGEST_S3_PREFIX and S3_BUCKET are set, a local directory otherwise.
func buildPublisher(ctx context.Context, cfg config.Config) (notify.Publisher, error) {
	pubs := notify.MultiPublisher{notify.LogPublisher{}}
	switch {
	case strings.TrimSpace(cfg.DigestS3Prefix) != "" && strings.TrimSpace(cfg.S3Bucket) != "":
		client, err := s3store.LoadClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		store, err := s3store.New(client, cfg.S3Bucket, "", cfg.SSEKMSKeyID)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, notify.OutboxPublisher{Store: store, Prefix: cfg.DigestS3Prefix})
	case strings.TrimSpace(cfg.OutboxDir) != "":
		pubs = append(pubs, notify.OutboxPublisher{Store: localstore.New(cfg.OutboxDir), Prefix: "digests"})
	}
	return pubs, nil
}

func buildAuthorizer(cfg config.Config) *drive.Authorizer {
	if cfg.SourceType != "drive" {
		return nil
	}
	oauthCfg, err := drive.LoadOAuthConfig(cfg.GoogleCredsFile, cfg.GoogleRedirect)
	if err != nil {
		telemetry.Warn("bootstrap.drive_oauth_unconfigured", map[string]any{"error": err})
	}
	return drive.NewAuthorizer(oauthCfg, cfg.GoogleTokenFile)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}

// Describe summarizes the wiring for startup logs.
func (a *App) Describe() string {
	return fmt.Sprintf("records=%s source=%s schedule=%s jobs=%d",
		a.Config.RecordStore, a.Config.SourceType, a.Config.ScheduleMode, len(a.Scheduler.List()))
}
