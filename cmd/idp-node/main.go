package main

import (
	"idp-node/internal/app/config"
	appbuilder "idp-node/pkg/app_builder"
	"idp-node/pkg/logger"
	"idp-node/pkg/utilities"
)

type nodeBuilder = appbuilder.AppBuilder[config.AppConfigJson, config.AppConfig]

func main() {
	appbuilder.New[config.AppConfigJson, config.AppConfig]().
		InitLogger(logger.GlobalLoggerConfig{
			Args: []logger.LoggerArg{{Key: "service", Value: "idp-node"}},
		}).
		ResolveEnvironment().
		LoadConfig(utilities.EnvOrDefault("CONFIG_PATH", "config.json")).
		// ----- RABBITMQ -----
		InitRabbitmqConnection().
		InitRabbitmqRegistries().
		WithOption(attachLogSink).
		// ----- STORAGE, CHAIN, SERVICES -----
		WithOption(wire).
		InitGinRouter().
		Build().
		Start()
}
