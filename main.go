package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/cache"
	"social-publisher/infrastructure/clients/google"
	"social-publisher/infrastructure/clients/graph"
	"social-publisher/infrastructure/configuration"
	"social-publisher/infrastructure/logger"
	"social-publisher/infrastructure/media"
	"social-publisher/infrastructure/metrics"
	"social-publisher/infrastructure/persistence"
	"social-publisher/infrastructure/pubsub"
	"social-publisher/infrastructure/realtime"
	"social-publisher/infrastructure/servicebus"
	"social-publisher/infrastructure/storage"
	"social-publisher/infrastructure/utils"
	httpHandler "social-publisher/interfaces/http"
	"social-publisher/server"
	"social-publisher/usecase"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"golang.org/x/sync/errgroup"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

// pingFunc adapts clients with other ping signatures to the health handler.
type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	app := configuration.C.App
	publishCfg := configuration.PublishSettings()
	clock := utils.RealClock{}
	m := metrics.NewMetrics("social_publisher")
	health := map[string]httpHandler.Pinger{}

	psqlDb, mssqlDb, err := InitiateDatabase()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Database initialization failed")
	}
	tokenStore, err := InitiateTokenStore(psqlDb, mssqlDb)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("No credential store available")
		os.Exit(2)
	}
	if psqlDb != nil {
		health["postgres"] = psqlDb
		defer psqlDb.Close()
	}
	if mssqlDb != nil {
		health["mssql"] = mssqlDb
		defer mssqlDb.Close()
	}

	var ledger repository.IPublish
	if psqlDb != nil {
		if err := persistence.EnsurePublishSchema(psqlDb); err != nil {
			logger.GetLogger().WithField("error", err).Error("failed ensuring publish schema")
		} else {
			ledger = persistence.NewPublishRepository(psqlDb)
		}
	} else {
		logger.GetLogger().Info("PostgreSQL not available in this environment; publish ledger and job queue disabled")
	}

	mongoClient := InitiateMongo(ctx)
	var mongoDb *mongo.Database
	if mongoClient != nil {
		mongoDb = mongoClient.Database(configuration.C.Database.Mongo.Name)
		health["mongo"] = pingFunc(func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) })
		defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	}
	diagnostics := persistence.NewDiagnosticsRepository(mongoDb)

	redisClient := InitiateRedis(ctx)
	if redisClient != nil {
		health["redis"] = pingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
		defer redisClient.Close()
	}
	tokens := cache.NewTokenCache(tokenStore, redisClient)

	events, closeEvents := InitiateEventPublishers(ctx)
	defer closeEvents()

	igAPI := newGraphClient(configuration.C.Graph.PrimaryHost, configuration.C.Graph.SecondaryHost, configuration.C.Graph.Version, publishCfg, clock, m)
	fbAPI := newGraphClient(configuration.C.Graph.FacebookHost, "", configuration.C.Graph.Version, publishCfg, clock, m)
	// refresh_access_token is served without a version prefix.
	igRefreshAPI := newGraphClient(configuration.C.Graph.PrimaryHost, "", "", publishCfg, clock, m)

	refreshers := map[model.Platform]repository.ITokenRefresher{
		model.PlatformInstagram: graph.NewInstagramRefresher(igRefreshAPI, clock),
	}
	if fb := configuration.C.OAuth.Facebook; fb.ClientID != "" && fb.ClientSecret != "" {
		refreshers[model.PlatformFacebook] = graph.NewFacebookRefresher(fbAPI, fb.ClientID, fb.ClientSecret, clock)
	} else {
		logger.GetLogger().Info("Facebook app credentials not configured; expiring Facebook tokens will require reconnecting")
	}
	if gc := configuration.C.OAuth.Google; gc.ClientID != "" && gc.ClientSecret != "" {
		refreshers[model.PlatformGoogle] = google.NewRefresher(gc.ClientID, gc.ClientSecret, nil)
	}

	tokenUsecase := usecase.NewTokenUsecase(tokens, refreshers, publishCfg, clock, m)
	capabilityUsecase := usecase.NewCapabilityUsecase(map[model.Platform]usecase.CapabilityTarget{
		model.PlatformInstagram: {Profile: usecase.InstagramProfile, API: igAPI},
		model.PlatformFacebook:  {Profile: usecase.FacebookPageProfile, API: fbAPI},
	}, diagnostics, clock)

	objectStorage, mediaDir := InitiateStorage(ctx, app.Port)
	transcoder := media.NewTranscoder(objectStorage, media.TranscoderOptions{
		FetchTimeout: publishCfg.MediaFetchTimeout,
		Quality:      publishCfg.JPEGQuality,
		MaxWidth:     publishCfg.MaxImageWidth,
		PathPrefix:   "transcoded",
	})

	hub := realtime.NewPublishHub()
	publishUsecase := usecase.NewPublishUsecase(usecase.PublishDeps{
		Tokens:       tokenUsecase,
		Capabilities: capabilityUsecase,
		Publishers: map[model.Platform]repository.IContainerPublisher{
			model.PlatformInstagram: graph.NewInstagramPublisher(igAPI),
			model.PlatformFacebook:  graph.NewFacebookPagePublisher(fbAPI),
		},
		Preflight:   media.NewPreflight(nil, publishCfg.PreflightTimeout),
		Transcoder:  transcoder,
		Ledger:      ledger,
		Recorder:    usecase.NewRecorder(ledger, hub, m, clock, events...),
		Clock:       clock,
		Config:      publishCfg,
		Concurrency: configuration.C.Jobs.Concurrency,
	})

	router := server.InitiateRouter(server.Handlers{
		Publish:    httpHandler.NewPublishHandler(publishUsecase),
		Token:      httpHandler.NewTokenHandler(tokenUsecase),
		Capability: httpHandler.NewCapabilityHandler(tokenUsecase, capabilityUsecase),
		Health:     httpHandler.NewHealthHandler(health),
		Stream:     hub.Serve,
	}, server.RouterOptions{
		SecretKey:      app.SecretKey,
		AllowedOrigins: app.AllowedOrigins,
		Metrics:        m,
		MediaDir:       mediaDir,
	})

	// Background publish job processor (simple ticker loop)
	if configuration.C.Jobs.Enabled && ledger != nil {
		jobs := configuration.C.Jobs
		g.Go(func() error {
			ticker := time.NewTicker(time.Duration(jobs.IntervalSeconds) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					// One batch may poll several containers to their full budget.
					procCtx, cancelProc := context.WithTimeout(ctx, 2*time.Minute)
					if _, err := publishUsecase.ProcessPending(procCtx, jobs.BatchSize); err != nil {
						logger.GetLogger().WithField("error", err).Error("Publish job batch failed")
					}
					cancelProc()
				}
			}
		})
	}

	port := app.Port
	logger.GetLogger().WithFields(map[string]interface{}{"port": port, "tls": app.TLSEnabled}).Info("Starting application")
	g.Go(func() error {
		httpServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		if app.TLSEnabled {
			cert := app.TLSCertFile
			key := app.TLSKeyFile
			if cert == "" || key == "" {
				logger.GetLogger().Error("TLS enabled but cert or key path empty; falling back to HTTP")
				if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			} else {
				logger.GetLogger().WithFields(map[string]interface{}{"cert": cert, "key": key}).Info("Serving HTTPS")
				if err := httpServer.ListenAndServeTLS(cert, key); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			}
		} else {
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
	logger.GetLogger().Info("Application stopped")
}

// InitiateDatabase opens PostgreSQL when configured, and SQL Server when it is the
// selected credential store. Either may be nil.
func InitiateDatabase() (*sql.DB, *sql.DB, error) {
	var errs []error
	var psqlDb, mssqlDb *sql.DB

	if configuration.C.Database.Psql.Host != "" {
		db, err := persistence.NewPostgreSQLDB()
		if err != nil {
			logger.GetLogger().WithField("error", err).Error("Cannot connect to PostgreSQL")
			errs = append(errs, err)
		} else {
			psqlDb = db
		}
	}

	if configuration.C.App.TokenStore == "mssql" {
		db, err := persistence.NewMSSQLDB()
		if err != nil {
			logger.GetLogger().WithField("error", err).Error("Cannot connect to MSSQL (TOKEN_STORE=mssql)")
			errs = append(errs, err)
		} else {
			mssqlDb = db
		}
	}

	logger.GetLogger().
		WithField("psql", psqlDb != nil).
		WithField("mssql", mssqlDb != nil).
		Info("Database connected.")
	return psqlDb, mssqlDb, errors.Join(errs...)
}

// InitiateTokenStore picks the credential repository and ensures its schema.
func InitiateTokenStore(psqlDb, mssqlDb *sql.DB) (repository.IOAuthToken, error) {
	if mssqlDb != nil {
		if err := persistence.EnsureOAuthTokenSchemaMSSQL(mssqlDb); err != nil {
			return nil, fmt.Errorf("ensure mssql oauth schema: %w", err)
		}
		return persistence.NewOAuthTokenRepositoryMSSQL(mssqlDb), nil
	}
	if psqlDb != nil {
		if err := persistence.EnsureOAuthTokenSchema(psqlDb); err != nil {
			return nil, fmt.Errorf("ensure oauth schema: %w", err)
		}
		return persistence.NewOAuthTokenRepository(psqlDb), nil
	}
	return nil, errors.New("neither PostgreSQL nor MSSQL is configured")
}

func InitiateMongo(ctx context.Context) *mongo.Client {
	cfg := configuration.C.Database.Mongo
	if cfg.Host == "" {
		logger.GetLogger().Info("MongoDB not configured - diagnostics snapshots will not be stored")
		return nil
	}
	client, err := persistence.NewMongoDb(cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("MongoDB not available - continuing without diagnostics history")
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		logger.GetLogger().WithField("error", err).Warn("MongoDB ping failed - continuing without diagnostics history")
		_ = client.Disconnect(context.Background())
		return nil
	}
	logger.GetLogger().Info("MongoDB connected successfully")
	return client
}

func InitiateRedis(ctx context.Context) *redis.Client {
	cfg := configuration.C.RedisClient
	if cfg.Host == "" {
		logger.GetLogger().Info("Redis not configured - token reads go straight to the database")
		return nil
	}
	client, err := cache.NewCache(ctx, fmt.Sprintf("%s:%s", cfg.Host, cfg.Port), cfg.Username, cfg.Password)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not reachable - token cache disabled")
		_ = client.Close()
		return nil
	}
	logger.GetLogger().Info("Redis client initialized successfully.")
	return client
}

// InitiateEventPublishers connects the configured brokers. The returned func releases them.
func InitiateEventPublishers(ctx context.Context) ([]repository.IEventPublisher, func()) {
	var out []repository.IEventPublisher
	var closers []func()

	if project := configuration.C.Pubsub.ProjectID; project != "" {
		client, err := pubsub.NewPubSub(ctx, project)
		if err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while instantiate PubSub")
		} else {
			topic := configuration.C.Pubsub.Topic
			if topic == "" {
				topic = pubsub.DefaultTopic
			}
			pub := pubsub.NewEventPublisher(client, topic)
			out = append(out, pub)
			closers = append(closers, func() {
				pub.Stop()
				_ = client.Close()
			})
		}
	}

	if ns := configuration.C.ServiceBus.Namespace; ns != "" {
		client, err := servicebus.NewServiceBus(ctx, ns)
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - continuing without Service Bus events")
		} else {
			queue := configuration.C.ServiceBus.Queue
			if queue == "" {
				queue = servicebus.DefaultQueue
			}
			pub, err := servicebus.NewEventPublisher(client, queue)
			if err != nil {
				logger.GetLogger().WithField("error", err).Warn("Azure Service Bus sender not created")
			} else {
				out = append(out, pub)
				closers = append(closers, func() {
					closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = pub.Close(closeCtx)
					_ = client.Close(closeCtx)
				})
			}
		}
	}

	logger.GetLogger().WithField("brokers", len(out)).Info("Publish event brokers initialized")
	return out, func() {
		for _, c := range closers {
			c()
		}
	}
}

// InitiateStorage returns where transcoded media is re-hosted and, for the local
// driver, the directory to serve under /media.
func InitiateStorage(ctx context.Context, port int) (repository.IObjectStorage, string) {
	cfg := configuration.C.Storage
	if cfg.Driver == "gcs" {
		gcs, err := storage.NewGCSStorage(ctx, cfg.Bucket, cfg.PublicBaseURL)
		if err == nil {
			logger.GetLogger().WithField("bucket", cfg.Bucket).Info("Transcoded media stored in GCS")
			return gcs, ""
		}
		logger.GetLogger().WithField("error", err).Error("GCS storage unavailable; falling back to local storage")
	}
	base := cfg.PublicBaseURL
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d/media", port)
	}
	logger.GetLogger().WithField("dir", cfg.LocalDir).WithField("base_url", base).Info("Transcoded media stored locally")
	return storage.NewLocalStorage(cfg.LocalDir, base), cfg.LocalDir
}

func newGraphClient(primary, secondary, version string, cfg configuration.PublishConfig, clock utils.Clock, m *metrics.Metrics) *graph.Client {
	opts := graph.OptionsFromConfig(primary, secondary, version, cfg)
	opts.Clock = clock
	opts.Metrics = m
	return graph.NewClient(opts)
}
