package surveyforge

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/surveyforge/surveyforge/config"
	"github.com/surveyforge/surveyforge/dashboard"
	"github.com/surveyforge/surveyforge/surveys"
	"github.com/surveyforge/surveyforge/votes"
)

const readHeaderTimeout = time.Second * 30

// Container Container.
type Container struct {
	config              config.Config
	db                  *sql.DB
	goquDB              *goqu.Database
	redis               *redis.Client
	auth                *Auth
	hub                 *Hub
	dashboard           *dashboard.Dashboard
	surveysRepository   *surveys.Repository
	votesRepository     *votes.Repository
	votesService        *votes.Service
	votesController     *VotesController
	surveysController   *SurveysController
	analyticsController *AnalyticsController
	publicHTTPServer    *http.Server
	privateHTTPServer   *http.Server
}

// NewContainer constructor.
func NewContainer(cfg config.Config) *Container {
	return &Container{
		config: cfg,
	}
}

func (s *Container) Close() error {
	s.surveysRepository = nil
	s.votesRepository = nil
	s.votesService = nil
	s.dashboard = nil
	s.hub = nil
	s.goquDB = nil

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logrus.Error(err.Error())
		}

		s.db = nil
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			logrus.Error(err.Error())
		}

		s.redis = nil
	}

	return nil
}

func (s *Container) Config() config.Config {
	return s.config
}

func (s *Container) DB() (*sql.DB, error) {
	if s.db != nil {
		return s.db, nil
	}

	start := time.Now()

	const (
		connectionTimeout = 60 * time.Second
		reconnectDelay    = 100 * time.Millisecond
	)

	logrus.Info("Waiting for postgres")

	var (
		db  *sql.DB
		err error
	)

	for {
		db, err = sql.Open("postgres", s.config.PostgresDSN)
		if err != nil {
			return nil, err
		}

		err = db.Ping()
		if err == nil {
			logrus.Info("Started.")

			break
		}

		if time.Since(start) > connectionTimeout {
			return nil, err
		}

		logrus.Info(".")
		time.Sleep(reconnectDelay)
	}

	s.db = db

	return s.db, nil
}

func (s *Container) GoquDB() (*goqu.Database, error) {
	if s.goquDB == nil {
		db, err := s.DB()
		if err != nil {
			return nil, err
		}

		s.goquDB = goqu.New("postgres", db)
	}

	return s.goquDB, nil
}

func (s *Container) Redis() (*redis.Client, error) {
	if s.redis == nil {
		opts, err := redis.ParseURL(s.Config().Redis)
		if err != nil {
			return nil, err
		}

		s.redis = redis.NewClient(opts)
	}

	return s.redis, nil
}

func (s *Container) Auth() *Auth {
	if s.auth == nil {
		s.auth = NewAuth(s.Config().Auth)
	}

	return s.auth
}

func (s *Container) SurveysRepository() (*surveys.Repository, error) {
	if s.surveysRepository == nil {
		db, err := s.GoquDB()
		if err != nil {
			return nil, err
		}

		s.surveysRepository = surveys.NewRepository(db)
	}

	return s.surveysRepository, nil
}

func (s *Container) VotesRepository() (*votes.Repository, error) {
	if s.votesRepository == nil {
		db, err := s.GoquDB()
		if err != nil {
			return nil, err
		}

		s.votesRepository = votes.NewRepository(db)
	}

	return s.votesRepository, nil
}

func (s *Container) Dashboard() (*dashboard.Dashboard, error) {
	if s.dashboard == nil {
		redisClient, err := s.Redis()
		if err != nil {
			return nil, err
		}

		surveysRepository, err := s.SurveysRepository()
		if err != nil {
			return nil, err
		}

		votesRepository, err := s.VotesRepository()
		if err != nil {
			return nil, err
		}

		s.dashboard = dashboard.NewDashboard(redisClient, surveysRepository, votesRepository)
	}

	return s.dashboard, nil
}

func (s *Container) Hub() (*Hub, error) {
	if s.hub == nil {
		dashboardService, err := s.Dashboard()
		if err != nil {
			return nil, err
		}

		votesRepository, err := s.VotesRepository()
		if err != nil {
			return nil, err
		}

		s.hub = NewHub(dashboardService, votesRepository)
	}

	return s.hub, nil
}

func (s *Container) VotesService() (*votes.Service, error) {
	if s.votesService == nil {
		surveysRepository, err := s.SurveysRepository()
		if err != nil {
			return nil, err
		}

		votesRepository, err := s.VotesRepository()
		if err != nil {
			return nil, err
		}

		dashboardService, err := s.Dashboard()
		if err != nil {
			return nil, err
		}

		hub, err := s.Hub()
		if err != nil {
			return nil, err
		}

		s.votesService = votes.NewService(surveysRepository, votesRepository, dashboardService, hub)
	}

	return s.votesService, nil
}

func (s *Container) VotesController() (*VotesController, error) {
	if s.votesController == nil {
		service, err := s.VotesService()
		if err != nil {
			return nil, err
		}

		repository, err := s.VotesRepository()
		if err != nil {
			return nil, err
		}

		s.votesController, err = NewVotesController(service, repository, s.Auth())
		if err != nil {
			return nil, err
		}
	}

	return s.votesController, nil
}

func (s *Container) SurveysController() (*SurveysController, error) {
	if s.surveysController == nil {
		repository, err := s.SurveysRepository()
		if err != nil {
			return nil, err
		}

		dashboardService, err := s.Dashboard()
		if err != nil {
			return nil, err
		}

		s.surveysController, err = NewSurveysController(repository, dashboardService, s.Auth())
		if err != nil {
			return nil, err
		}
	}

	return s.surveysController, nil
}

func (s *Container) AnalyticsController() (*AnalyticsController, error) {
	if s.analyticsController == nil {
		dashboardService, err := s.Dashboard()
		if err != nil {
			return nil, err
		}

		repository, err := s.VotesRepository()
		if err != nil {
			return nil, err
		}

		s.analyticsController, err = NewAnalyticsController(dashboardService, repository, s.Auth())
		if err != nil {
			return nil, err
		}
	}

	return s.analyticsController, nil
}

func (s *Container) ginEngine(restCfg config.RestConfig) (*gin.Engine, error) {
	gin.SetMode(s.Config().GinMode)

	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())

	err := ginEngine.SetTrustedProxies([]string{s.Config().TrustedNetwork})
	if err != nil {
		return nil, fmt.Errorf("SetTrustedProxies(): %w", err)
	}

	if len(restCfg.Cors.Origin) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = restCfg.Cors.Origin
		corsConfig.AllowCredentials = true
		corsConfig.AddAllowHeaders("X-Session-Id")
		ginEngine.Use(cors.New(corsConfig))
	}

	ginEngine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	return ginEngine, nil
}

// PublicRouter serves voters: survey reads, vote submission and the
// websocket feed.
func (s *Container) PublicRouter() (http.Handler, error) {
	ginEngine, err := s.ginEngine(s.Config().PublicRest)
	if err != nil {
		return nil, err
	}

	redisClient, err := s.Redis()
	if err != nil {
		return nil, err
	}

	rateCfg := s.Config().RateLimit
	window := time.Duration(rateCfg.WindowSeconds) * time.Second

	apiLimiter := NewRateLimiter(redisClient, "api", rateCfg.APILimit, window)

	apiGroup := ginEngine.Group("/api/v1")
	apiGroup.Use(apiLimiter.Middleware())

	surveysController, err := s.SurveysController()
	if err != nil {
		return nil, fmt.Errorf("SurveysController(): %w", err)
	}

	surveysController.SetupPublicRouter(apiGroup)

	votesController, err := s.VotesController()
	if err != nil {
		return nil, fmt.Errorf("VotesController(): %w", err)
	}

	// votes pass both the general limiter and the stricter vote one
	voteGroup := ginEngine.Group("/api/v1")
	voteGroup.Use(
		apiLimiter.Middleware(),
		NewRateLimiter(redisClient, "vote", rateCfg.VoteLimit, window).Middleware(),
	)
	votesController.SetupPublicRouter(voteGroup)

	hub, err := s.Hub()
	if err != nil {
		return nil, fmt.Errorf("Hub(): %w", err)
	}

	hub.SetupRouter(ginEngine)

	return ginEngine, nil
}

// PrivateRouter serves the admin API and operational endpoints.
func (s *Container) PrivateRouter() (http.Handler, error) {
	ginEngine, err := s.ginEngine(s.Config().PrivateRest)
	if err != nil {
		return nil, err
	}

	ginEngine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := ginEngine.Group("/api/v1/admin")

	surveysController, err := s.SurveysController()
	if err != nil {
		return nil, fmt.Errorf("SurveysController(): %w", err)
	}

	surveysController.SetupPrivateRouter(apiGroup)

	votesController, err := s.VotesController()
	if err != nil {
		return nil, fmt.Errorf("VotesController(): %w", err)
	}

	votesController.SetupPrivateRouter(apiGroup)

	analyticsController, err := s.AnalyticsController()
	if err != nil {
		return nil, fmt.Errorf("AnalyticsController(): %w", err)
	}

	analyticsController.SetupRouter(apiGroup)

	return ginEngine, nil
}

func (s *Container) PublicHTTPServer() (*http.Server, error) {
	if s.publicHTTPServer == nil {
		handler, err := s.PublicRouter()
		if err != nil {
			return nil, fmt.Errorf("PublicRouter(): %w", err)
		}

		s.publicHTTPServer = &http.Server{
			Addr:              s.Config().PublicRest.Listen,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		}
	}

	return s.publicHTTPServer, nil
}

func (s *Container) PrivateHTTPServer() (*http.Server, error) {
	if s.privateHTTPServer == nil {
		handler, err := s.PrivateRouter()
		if err != nil {
			return nil, fmt.Errorf("PrivateRouter(): %w", err)
		}

		s.privateHTTPServer = &http.Server{
			Addr:              s.Config().PrivateRest.Listen,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		}
	}

	return s.privateHTTPServer, nil
}
