package callback

import "time"

type CallbackConfigJson struct {
	TimeoutSeconds      int `json:"timeout_seconds"`
	MaxRetries          int `json:"max_retries"`
	RetryIntervalMillis int `json:"retry_interval_millis"`
}

type CallbackConfig struct {
	Timeout       time.Duration
	MaxRetries    uint64
	RetryInterval time.Duration
}

func (ccj CallbackConfigJson) ConvertToDomain() CallbackConfig {
	cfg := CallbackConfig{
		Timeout:       10 * time.Second,
		MaxRetries:    3,
		RetryInterval: time.Second,
	}
	if ccj.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(ccj.TimeoutSeconds) * time.Second
	}
	if ccj.MaxRetries > 0 {
		cfg.MaxRetries = uint64(ccj.MaxRetries)
	}
	if ccj.RetryIntervalMillis > 0 {
		cfg.RetryInterval = time.Duration(ccj.RetryIntervalMillis) * time.Millisecond
	}
	return cfg
}
