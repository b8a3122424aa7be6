package main

import (
	"context"
	"fmt"

	"idp-node/internal/app/callback"
	"idp-node/internal/app/chain"
	"idp-node/internal/app/handlers"
	"idp-node/internal/app/idp"
	"idp-node/internal/app/keys"
	"idp-node/internal/app/onboarding"
	"idp-node/internal/app/proof"
	"idp-node/internal/app/store"
	"idp-node/internal/app/workers"
	"idp-node/pkg/logger"
	"idp-node/pkg/rabbitmq"
	"idp-node/pkg/rest"

	"github.com/rs/zerolog"
)

const (
	incomingConsumer rabbitmq.ConsumerAlias  = "IncomingConsumer"
	relayPublisher   rabbitmq.PublisherAlias = "RelayPublisher"
	logPublisher     rabbitmq.PublisherAlias = "LogPublisher"
)

// attachLogSink forwards warnings and errors to the log exchange when a
// LogPublisher is configured.
func attachLogSink(a *nodeBuilder) {
	publisher, ok := a.Registry().GetPublisher(logPublisher)
	if !ok {
		a.Logger().Info("No LogPublisher configured, log sink disabled")
		return
	}
	sink := rabbitmq.CreateRabbitmqLoggerSink(publisher, a.Config().NodeID)
	logger.AddSinkToLoggerInstance(a.Logger(), zerolog.WarnLevel, sink)
}

func wire(a *nodeBuilder) {
	cfg := a.Config()
	log := a.Logger().WithStr("node_id", cfg.NodeID)
	ctx := context.Background()

	if cfg.NodeID == "" {
		a.Must(fmt.Errorf("node_id is empty"), "Invalid configuration")
	}

	// ----- DATABASE -----
	db, err := store.ConnectToDatabase(cfg.DatabaseConf, log)
	a.Must(err, "Failed to connect to database")
	a.OnShutdown(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	requestStore := store.NewGormStore(db)

	// ----- BLOCKCHAIN -----
	solanaKeys, err := chain.LoadSolanaKeys(cfg.SolanaConf, log)
	a.Must(err, "Failed to load Solana keys")
	gateway := chain.NewSolanaGateway(cfg.SolanaConf, solanaKeys, log)
	a.Must(chain.ValidateProgramExecutable(ctx, gateway.RpcClient(), solanaKeys.ProgramID), "Program is not deployed")

	ledger, err := chain.NewLedger(gateway, chain.NewNonceSource())
	a.Must(err, "Failed to create ledger")
	a.OnShutdown(ledger.Close)

	// ----- KEYS -----
	nodeKeys := keys.NewFileProvider(cfg.KeysConf, cfg.NodeID, log)
	a.Must(nodeKeys.Load(), "Failed to load node keys")

	// ----- CALLBACKS -----
	urls := callback.NewURLs(requestStore, cfg.NodeID)
	a.Must(urls.Load(ctx), "Failed to load callback urls")
	dispatcher := callback.NewDispatcher(urls, cfg.CallbackConf, log)
	a.OnShutdown(dispatcher.Drain)

	// ----- SERVICES -----
	engine := proof.NewEngine(nodeKeys, requestStore, ledger, log)

	continuations := onboarding.NewContinuations()
	onboarding.RegisterDefaults(continuations, dispatcher)
	machine := onboarding.NewMachine(cfg.NodeID, requestStore, engine, ledger, dispatcher, continuations, log)

	pipeline := idp.NewPipeline(
		requestStore,
		gateway,
		idp.NewRequestIntegrity(ledger, log),
		machine,
		dispatcher,
		cfg.SyncConf,
		log,
	)
	a.OnShutdown(pipeline.Drain)

	relay, ok := a.Registry().GetPublisher(relayPublisher)
	if !ok {
		a.Must(fmt.Errorf("publisher %s is not configured", relayPublisher), "Invalid rabbitmq configuration")
	}
	responder := idp.NewResponder(cfg.NodeID, requestStore, ledger, engine, relay, log)
	identities := idp.NewIdentityService(cfg.NodeID, ledger, dispatcher, log)

	_, err = identities.RegisterNode(ctx, cfg.MqAddressConf.IP, cfg.MqAddressConf.Port, cfg.MqAddressConf.RegisterTimeout)
	a.Must(err, "Failed to register message queue address")

	// ----- WORKERS -----
	consumer, ok := a.Registry().GetConsumer(incomingConsumer)
	if !ok {
		a.Must(fmt.Errorf("consumer %s is not configured", incomingConsumer), "Invalid rabbitmq configuration")
	}
	a.AddWorkerServices(
		workers.NewQueueConsumerWorker(consumer, pipeline, log),
		workers.NewBlockSubscriberWorker(gateway, pipeline.OnNewBlockHeader, log),
		workers.NewOnboardingRecoveryWorker(
			machine,
			cfg.OnboardingConf.RecoverySchedule,
			cfg.OnboardingConf.Retention,
			log,
		),
	)

	// ----- ROUTES -----
	routes := handlers.Handlers{
		Callback: handlers.NewCallbackHandler(urls, log),
		Response: handlers.NewResponseHandler(responder, log),
		Identity: handlers.NewIdentityHandler(identities, machine, log),
		Health:   handlers.NewHealthHandler(cfg.NodeID, gateway),
	}
	a.AddGinMiddleware(rest.NewMiddleware(rest.AllGroups, rest.RequestLogger(log)))
	a.AddGinRoutes(routes.Routes()...)
}
