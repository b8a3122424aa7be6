package workers

import (
	"context"
	"sync/atomic"
	"time"

	"idp-node/pkg/logger"
	"idp-node/pkg/rabbitmq"

	"github.com/robfig/cron"
)

const onboardingRecoveryName = "OnboardingRecoveryCron"

type Recoverer interface {
	Recover(ctx context.Context, retention time.Duration) error
}

// OnboardingRecoveryWorker resumes onboarding sessions left behind by a
// restart or an unavailable chain. It runs once at startup and then on schedule.
type OnboardingRecoveryWorker struct {
	recoverer Recoverer
	schedule  string
	retention time.Duration
	cron      *cron.Cron
	running   atomic.Bool
	log       *logger.Logger
}

func NewOnboardingRecoveryWorker(recoverer Recoverer, schedule string, retention time.Duration, log *logger.Logger) rabbitmq.WorkerService {
	return &OnboardingRecoveryWorker{
		recoverer: recoverer,
		schedule:  schedule,
		retention: retention,
		cron:      cron.New(),
		log:       log.WithStr("worker", onboardingRecoveryName),
	}
}

func (orw *OnboardingRecoveryWorker) GetServiceName() string {
	return onboardingRecoveryName
}

func (orw *OnboardingRecoveryWorker) StartService(ctx context.Context) error {
	err := orw.cron.AddFunc(orw.schedule, func() { orw.runRecovery(ctx) })
	if err != nil {
		orw.log.Errorf(err, "Could not add function to %s", onboardingRecoveryName)
		return err
	}

	orw.runRecovery(ctx)
	orw.cron.Start()

	<-ctx.Done()
	orw.cron.Stop()
	return nil
}

func (orw *OnboardingRecoveryWorker) runRecovery(ctx context.Context) {
	if !orw.running.CompareAndSwap(false, true) {
		orw.log.Debug("Previous recovery still running, skipping")
		return
	}
	defer orw.running.Store(false)

	if err := orw.recoverer.Recover(ctx, orw.retention); err != nil && ctx.Err() == nil {
		orw.log.Error(err, "Onboarding recovery failed")
	}
}
