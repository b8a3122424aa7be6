package onboarding

import "time"

type OnboardingConfigJson struct {
	RecoverySchedule string `json:"recovery_schedule"`
	RetentionMinutes int    `json:"retention_minutes"`
}

type OnboardingConfig struct {
	RecoverySchedule string
	Retention        time.Duration
}

func (ocj OnboardingConfigJson) ConvertToDomain() OnboardingConfig {
	cfg := OnboardingConfig{
		RecoverySchedule: "@every 1m",
		Retention:        24 * time.Hour,
	}
	if ocj.RecoverySchedule != "" {
		cfg.RecoverySchedule = ocj.RecoverySchedule
	}
	if ocj.RetentionMinutes > 0 {
		cfg.Retention = time.Duration(ocj.RetentionMinutes) * time.Minute
	}
	return cfg
}
