package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/SwiftFiat/taskmarket-ledger/internal/auth"
	campaignhandler "github.com/SwiftFiat/taskmarket-ledger/internal/campaign/handler"
	campaignservice "github.com/SwiftFiat/taskmarket-ledger/internal/campaign/service"
	"github.com/SwiftFiat/taskmarket-ledger/internal/common/models"
	requesthandler "github.com/SwiftFiat/taskmarket-ledger/internal/moneyrequest/handler"
	requestservice "github.com/SwiftFiat/taskmarket-ledger/internal/moneyrequest/service"
	wallethandler "github.com/SwiftFiat/taskmarket-ledger/internal/wallet/handler"
	walletservice "github.com/SwiftFiat/taskmarket-ledger/internal/wallet/service"
	workhandler "github.com/SwiftFiat/taskmarket-ledger/internal/work/handler"
	workservice "github.com/SwiftFiat/taskmarket-ledger/internal/work/service"
	"github.com/SwiftFiat/taskmarket-ledger/middleware"
	"github.com/SwiftFiat/taskmarket-ledger/services/cache"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/logging"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/metrics"
	"github.com/SwiftFiat/taskmarket-ledger/services/notification"
	"github.com/SwiftFiat/taskmarket-ledger/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router *gin.Engine
	store  store.Store
	cache  *cache.Cache
	config *utils.Config
	logger *logging.Logger
	tokens *utils.JWTToken
}

func NewServer(envPath string) *Server {
	c, err := utils.LoadConfig(envPath)
	if err != nil {
		panic(fmt.Sprintf("Could not load config: %v", err))
	}

	l := logging.NewLogger(c)
	l.WithFields(logrus.Fields{"config": c.Redact()}).Info("configuration loaded")

	ctx := context.Background()
	s, err := OpenStore(ctx, c)
	if err != nil {
		panic(fmt.Sprintf("Could not open store: %v", err))
	}

	var n notification.Notifier = notification.NopNotifier{}
	if c.PushNotifications {
		push, err := notification.NewPushNotifier(ctx, c.FirebaseCredentials, s, l)
		if err != nil {
			l.WithError(err).Error("push notifications disabled")
		} else {
			n = push
		}
	}

	return NewServerWithStore(c, s, n, l)
}

// NewServerWithStore wires every service and route on top of s.
func NewServerWithStore(c *utils.Config, s store.Store, n notification.Notifier, l *logging.Logger) *Server {
	if c.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	g := gin.New()
	g.Use(gin.Recovery())
	g.Use(CORSMiddleware())
	g.Use(metrics.Middleware())
	g.Use(l.LoggingMiddleWare())
	g.Use(middleware.NewActivityLogMiddleware(s, l).ActivityLogger())

	server := &Server{
		router: g,
		store:  s,
		cache:  cache.New(cache.Options{TTL: c.CacheTTL, MaxEntries: c.CacheMaxEntries}),
		config: c,
		logger: l,
		tokens: utils.NewJWTToken(c),
	}
	server.routes(n)
	return server
}

// OpenStore connects to the backend named by STORE_DRIVER.
func OpenStore(ctx context.Context, c *utils.Config) (store.Store, error) {
	switch c.StoreDriver {
	case utils.StoreDriverMemory:
		s := store.NewMemoryStore()
		s.SetRetries(c.StoreTxRetries)
		return s, nil

	case utils.StoreDriverFirebase:
		return store.NewFirebaseStore(ctx, &store.FirebaseConfig{
			DatabaseURL:     c.FirebaseDatabaseURL,
			CredentialsFile: c.FirebaseCredentials,
		})

	case utils.StoreDriverRedis:
		s, err := store.NewRedisStore(&store.RedisConfig{
			Host:     c.RedisHost,
			Port:     c.RedisPort,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		s.SetRetries(c.StoreTxRetries)
		return s, nil

	case utils.StoreDriverPostgres:
		if err := store.Migrate(c.MigrationsPath, c.PostgresURL()); err != nil {
			return nil, err
		}
		conn, err := sql.Open("postgres", c.PostgresURL())
		if err != nil {
			return nil, fmt.Errorf("could not open database: %w", err)
		}
		if err := conn.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("could not reach database: %w", err)
		}
		s := store.NewPostgresStore(conn)
		s.SetRetries(c.StoreTxRetries)
		return s, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", c.StoreDriver)
}

func (s *Server) routes(n notification.Notifier) {
	dr := models.NewSuccess("Welcome to the task marketplace ledger", nil)
	s.router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, dr)
	})
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	guard := auth.NewGuard(s.store, s.logger)
	ledger := walletservice.NewLedger(s.store, guard, s.cache, s.logger)

	/// Register Object Routers Below
	wallethandler.NewWalletHandler(&wallethandler.WalletDependencies{
		Router: s.router,
		Logger: s.logger,
		Tokens: s.tokens,
		Ledger: ledger,
	}).RegisterRoutes()

	campaignhandler.NewCampaignHandler(&campaignhandler.CampaignDependencies{
		Router:    s.router,
		Logger:    s.logger,
		Tokens:    s.tokens,
		Campaigns: campaignservice.NewCampaignService(s.store, ledger, guard, s.cache, s.logger),
	}).RegisterRoutes()

	workhandler.NewWorkHandler(&workhandler.WorkDependencies{
		Router: s.router,
		Logger: s.logger,
		Tokens: s.tokens,
		Works:  workservice.NewWorkService(s.store, ledger, guard, s.cache, n, s.logger),
	}).RegisterRoutes()

	requesthandler.NewRequestHandler(&requesthandler.RequestDependencies{
		Router:    s.router,
		Logger:    s.logger,
		Tokens:    s.tokens,
		Processor: requestservice.NewProcessor(s.store, ledger, guard, s.cache, n, s.logger),
	}).RegisterRoutes()
}

// ServeHTTP lets the server be driven directly, without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Start() error {
	s.logger.WithField("port", s.config.ServerPort).Info("starting server")
	return s.router.Run(fmt.Sprintf(":%v", s.config.ServerPort))
}
