package configuration

import "time"

// PublishConfig is the single timing policy injected into the Graph client and the
// publish orchestrator.
type PublishConfig struct {
	RetryDelays       []time.Duration
	MaxRetries        int
	PreflightTimeout  time.Duration
	MediaFetchTimeout time.Duration
	PollingInterval   time.Duration
	PollingBudget     time.Duration
	JPEGQuality       int
	MaxImageWidth     int
	RefreshHorizon    time.Duration
	GraceWindow       time.Duration
}

// DefaultPublishConfig returns the production defaults.
func DefaultPublishConfig() PublishConfig {
	return PublishConfig{
		RetryDelays:       []time.Duration{500 * time.Millisecond, 1500 * time.Millisecond, 3 * time.Second, 6 * time.Second},
		MaxRetries:        4,
		PreflightTimeout:  10 * time.Second,
		MediaFetchTimeout: 30 * time.Second,
		PollingInterval:   2 * time.Second,
		PollingBudget:     10 * time.Second,
		JPEGQuality:       90,
		MaxImageWidth:     1440,
		RefreshHorizon:    7 * 24 * time.Hour,
		GraceWindow:       24 * time.Hour,
	}
}

// PublishSettings converts the loaded millisecond fields, falling back to defaults
// for anything unset.
func PublishSettings() PublishConfig {
	return C.Publish.toConfig()
}

func (p Publish) toConfig() PublishConfig {
	out := DefaultPublishConfig()
	if len(p.RetryDelaysMs) > 0 {
		out.RetryDelays = make([]time.Duration, 0, len(p.RetryDelaysMs))
		for _, ms := range p.RetryDelaysMs {
			out.RetryDelays = append(out.RetryDelays, millis(ms))
		}
	}
	if p.MaxRetries != nil && *p.MaxRetries >= 0 {
		out.MaxRetries = *p.MaxRetries
	}
	if p.PreflightTimeoutMs > 0 {
		out.PreflightTimeout = millis(p.PreflightTimeoutMs)
	}
	if p.MediaFetchTimeoutMs > 0 {
		out.MediaFetchTimeout = millis(p.MediaFetchTimeoutMs)
	}
	if p.PollingIntervalMs > 0 {
		out.PollingInterval = millis(p.PollingIntervalMs)
	}
	if p.PollingBudgetMs > 0 {
		out.PollingBudget = millis(p.PollingBudgetMs)
	}
	if p.JPEGQuality > 0 && p.JPEGQuality <= 100 {
		out.JPEGQuality = p.JPEGQuality
	}
	if p.MaxImageWidth > 0 {
		out.MaxImageWidth = p.MaxImageWidth
	}
	if p.RefreshHorizonHours > 0 {
		out.RefreshHorizon = time.Duration(p.RefreshHorizonHours) * time.Hour
	}
	if p.GraceWindowHours > 0 {
		out.GraceWindow = time.Duration(p.GraceWindowHours) * time.Hour
	}
	return out
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
