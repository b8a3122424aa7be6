package config

import (
	"time"

	"idp-node/internal/app/callback"
	"idp-node/internal/app/chain"
	"idp-node/internal/app/idp"
	"idp-node/internal/app/keys"
	"idp-node/internal/app/onboarding"
	"idp-node/internal/app/store"
	"idp-node/pkg/logger"
	"idp-node/pkg/rabbitmq"
	"idp-node/pkg/utilities"
)

type AppConfigJson struct {
	NodeID         string                          `json:"node_id"`
	LoggerConf     logger.LoggerConfigJson         `json:"logger"`
	RabbitmqConf   rabbitmq.RabbimqConfigJson      `json:"rabbitmq"`
	RestConf       RestConfigJson                  `json:"rest"`
	DatabaseConf   store.DatabaseConfigJson        `json:"database"`
	SolanaConf     chain.SolanaConfigJson          `json:"solana"`
	KeysConf       keys.KeysConfigJson             `json:"keys"`
	SyncConf       idp.SyncConfigJson              `json:"sync"`
	CallbackConf   callback.CallbackConfigJson     `json:"callback"`
	OnboardingConf onboarding.OnboardingConfigJson `json:"onboarding"`
	MqAddressConf  MqAddressConfigJson             `json:"mq_address"`
}

func (acj AppConfigJson) ConvertToDomain() AppConfig {
	return AppConfig{
		NodeID:         utilities.EnvOrDefault("NODE_ID", acj.NodeID),
		LoggerConf:     acj.LoggerConf.ConvertToDomain(),
		RabbitmqConf:   acj.RabbitmqConf.ConvertToDomain(),
		RestConf:       acj.RestConf.ConvertToDomain(),
		DatabaseConf:   acj.DatabaseConf.ConvertToDomain(),
		SolanaConf:     acj.SolanaConf.ConvertToDomain(),
		KeysConf:       acj.KeysConf.ConvertToDomain(),
		SyncConf:       acj.SyncConf.ConvertToDomain(),
		CallbackConf:   acj.CallbackConf.ConvertToDomain(),
		OnboardingConf: acj.OnboardingConf.ConvertToDomain(),
		MqAddressConf:  acj.MqAddressConf.ConvertToDomain(),
	}
}

type AppConfig struct {
	NodeID         string
	LoggerConf     logger.LoggerConfig
	RabbitmqConf   rabbitmq.RabbitmqConfig
	RestConf       RestConfig
	DatabaseConf   store.DatabaseConfig
	SolanaConf     chain.SolanaConfig
	KeysConf       keys.KeysConfig
	SyncConf       idp.SyncConfig
	CallbackConf   callback.CallbackConfig
	OnboardingConf onboarding.OnboardingConfig
	MqAddressConf  MqAddressConfig
}

func (ac AppConfig) GetLoggerConfig() logger.LoggerConfig {
	return ac.LoggerConf
}

func (ac AppConfig) GetRabbitmqConfig() rabbitmq.RabbitmqConfig {
	return ac.RabbitmqConf
}

func (ac AppConfig) GetRestApiPort() uint16 {
	return ac.RestConf.Port
}

type RestConfigJson struct {
	Port uint16 `json:"port"`
}

type RestConfig struct {
	Port uint16
}

func (rcj RestConfigJson) ConvertToDomain() RestConfig {
	port := rcj.Port
	if port == 0 {
		port = 8100
	}
	return RestConfig{Port: port}
}

// MqAddressConfigJson is the address other nodes use to reach this node's
// queue. It is registered on chain at startup.
type MqAddressConfigJson struct {
	IP                     string `json:"ip"`
	Port                   uint16 `json:"port"`
	RegisterTimeoutSeconds int    `json:"register_timeout_seconds"`
}

type MqAddressConfig struct {
	IP              string
	Port            uint16
	RegisterTimeout time.Duration
}

func (macj MqAddressConfigJson) ConvertToDomain() MqAddressConfig {
	cfg := MqAddressConfig{
		IP:              utilities.ResolveLanHost(macj.IP),
		Port:            macj.Port,
		RegisterTimeout: 2 * time.Minute,
	}
	if cfg.Port == 0 {
		cfg.Port = 5672
	}
	if macj.RegisterTimeoutSeconds > 0 {
		cfg.RegisterTimeout = time.Duration(macj.RegisterTimeoutSeconds) * time.Second
	}
	return cfg
}
