package appbuilder

import (
	"errors"
	"fmt"
	"io/fs"

	"idp-node/pkg/logger"
	"idp-node/pkg/rabbitmq"
	"idp-node/pkg/rest"
	"idp-node/pkg/utilities"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
)

type AppConfig interface {
	GetLoggerConfig() logger.LoggerConfig
	GetRabbitmqConfig() rabbitmq.RabbitmqConfig
	GetRestApiPort() uint16
}

type AppBuilder[T utilities.JsonConfigObj[U], U AppConfig] struct {
	logger         *logger.Logger
	config         U
	conn           *amqp.Connection
	registry       *rabbitmq.Registry
	workerServices []rabbitmq.WorkerService
	middlewares    []rest.Middleware
	routes         []rest.Route
	engine         *gin.Engine
	closers        []func()
}

type AppBuilderInterface[T utilities.JsonConfigObj[U], U AppConfig] interface {
	InitLogger(loggerArgs logger.GlobalLoggerConfig) AppBuilderInterface[T, U]
	ResolveEnvironment(envFiles ...string) AppBuilderInterface[T, U]
	LoadConfig(configPath string) AppBuilderInterface[T, U]
	WithOption(option func(a *AppBuilder[T, U])) AppBuilderInterface[T, U]
	InitRabbitmqConnection() AppBuilderInterface[T, U]
	InitRabbitmqRegistries() AppBuilderInterface[T, U]
	AddWorkerServices(workerServices ...rabbitmq.WorkerService) AppBuilderInterface[T, U]
	AddGinMiddleware(middlewares ...rest.Middleware) AppBuilderInterface[T, U]
	AddGinRoutes(routes ...rest.Route) AppBuilderInterface[T, U]
	InitGinRouter() AppBuilderInterface[T, U]
	Build() ApplicationInterface
}

func New[T utilities.JsonConfigObj[U], U AppConfig]() AppBuilderInterface[T, U] {
	return &AppBuilder[T, U]{}
}

func (a *AppBuilder[T, U]) Logger() *logger.Logger {
	return a.logger
}

func (a *AppBuilder[T, U]) Config() U {
	return a.config
}

// Registry is nil until InitRabbitmqRegistries has run.
func (a *AppBuilder[T, U]) Registry() *rabbitmq.Registry {
	return a.registry
}

// OnShutdown registers fn to run after every worker has stopped. Closers run
// in reverse registration order.
func (a *AppBuilder[T, U]) OnShutdown(fn func()) {
	a.closers = append(a.closers, fn)
}

// Must stops startup when err is not nil.
func (a *AppBuilder[T, U]) Must(err error, msg string) {
	if err != nil {
		a.logger.Error(err, msg)
		panic(fmt.Errorf("%s: %w", msg, err))
	}
}

func (a *AppBuilder[T, U]) InitLogger(loggerArgs logger.GlobalLoggerConfig) AppBuilderInterface[T, U] {
	logger.InitDefaultLogger(loggerArgs)
	a.logger = logger.Default()
	a.logger.Info("Logger initialized")

	return a
}

func (a *AppBuilder[T, U]) ResolveEnvironment(envFiles ...string) AppBuilderInterface[T, U] {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		err := godotenv.Load(file)
		switch {
		case err == nil:
			a.logger.Infof("Environment loaded from %s", file)
		case errors.Is(err, fs.ErrNotExist):
			a.logger.Debugf("No %s file, using process environment", file)
		default:
			a.Must(err, "Failed to load environment file "+file)
		}
	}
	return a
}

func (a *AppBuilder[T, U]) LoadConfig(filePath string) AppBuilderInterface[T, U] {
	a.logger.Infof("Preparing to load config from %s ...", filePath)
	jsonConfig, err := utilities.ReadConfig[T, U](filePath)
	a.Must(err, "Failed to load config")

	a.config = jsonConfig
	a.logger.Info("Config successfully loaded.")
	return a
}

func (a *AppBuilder[T, U]) WithOption(option func(a *AppBuilder[T, U])) AppBuilderInterface[T, U] {
	option(a)
	return a
}

func (a *AppBuilder[T, U]) InitRabbitmqConnection() AppBuilderInterface[T, U] {
	a.logger.Info("Preparing to connect to Rabbitmq server...")
	rabbitmqConfig := a.config.GetRabbitmqConfig()
	conn, err := rabbitmq.ConnectToRabbitmq(rabbitmqConfig)
	a.Must(err, "Failed to connect to Rabbitmq")

	a.Must(rabbitmq.SetupTopology(conn, rabbitmqConfig), "Failed to declare Rabbitmq topology")

	a.conn = conn
	a.logger.Info("Connection with Rabbitmq server established")

	return a
}

func (a *AppBuilder[T, U]) InitRabbitmqRegistries() AppBuilderInterface[T, U] {
	a.logger.Info("Initializing Rabbitmq registries from config")

	registry, err := rabbitmq.NewRegistry(a.conn, a.config.GetRabbitmqConfig(), a.logger)
	a.Must(err, "Failed to initialize Rabbitmq registries")

	a.registry = registry
	a.logger.Info("Successfully initialized Rabbitmq registries from config")

	return a
}

func (a *AppBuilder[T, U]) AddWorkerServices(workerServices ...rabbitmq.WorkerService) AppBuilderInterface[T, U] {
	a.logger.Info("Adding Worker Services to Application...")
	a.workerServices = append(a.workerServices, workerServices...)
	return a
}

func (a *AppBuilder[T, U]) AddGinMiddleware(middlewares ...rest.Middleware) AppBuilderInterface[T, U] {
	a.middlewares = append(a.middlewares, middlewares...)
	return a
}

func (a *AppBuilder[T, U]) AddGinRoutes(routes ...rest.Route) AppBuilderInterface[T, U] {
	a.logger.Info("Adding Gin REST API routes to Application...")
	a.routes = append(a.routes, routes...)
	return a
}

func (a *AppBuilder[T, U]) InitGinRouter() AppBuilderInterface[T, U] {
	a.logger.Info("Initializing Gin Router...")
	router := gin.New()
	router.Use(gin.Recovery())

	a.logger.Info("Registering REST API routes...")
	a.Must(rest.Register(router, a.middlewares, a.routes), "Failed to register REST API routes")

	a.engine = router
	a.logger.Info("Successfully registered REST API routes.")
	return a
}

func (a *AppBuilder[T, U]) Build() ApplicationInterface {
	return &Application{
		Logger:         a.logger,
		Addr:           fmt.Sprintf("0.0.0.0:%d", a.config.GetRestApiPort()),
		Conn:           a.conn,
		WorkerServices: a.workerServices,
		Engine:         a.engine,
		closers:        a.closers,
	}
}
