package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Keys of the settings table.
const (
	KeyAlertThreshold          = "alert_threshold"
	KeyTargetDomain            = "target_domain"
	KeySERPLocationCode        = "serp_location_code"
	KeySERPLanguageCode        = "serp_language_code"
	KeySERPDepth               = "serp_depth"
	KeyArchiveWeeks            = "archive_weeks"
	KeyAutoDiscovery           = "auto_discovery"
	KeyMaxKeywordsPerURL       = "max_keywords_per_url"
	KeyDiscoveryMinImpressions = "discovery_min_impressions"
	KeyDiscoveryMaxPerRun      = "discovery_max_per_run"
	KeyDiscoveryExclude        = "discovery_exclude"
)

// SettingKeys lists every key understood by ParseSettings.
var SettingKeys = []string{
	KeyAlertThreshold,
	KeyTargetDomain,
	KeySERPLocationCode,
	KeySERPLanguageCode,
	KeySERPDepth,
	KeyArchiveWeeks,
	KeyAutoDiscovery,
	KeyMaxKeywordsPerURL,
	KeyDiscoveryMinImpressions,
	KeyDiscoveryMaxPerRun,
	KeyDiscoveryExclude,
}

// IsSettingKey reports whether key is a known setting.
func IsSettingKey(key string) bool {
	for _, k := range SettingKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Settings is the typed view of the settings table, read once per run.
type Settings struct {
	AlertThreshold          int
	TargetDomain            string
	SERPLocationCode        int
	SERPLanguageCode        string
	SERPDepth               int
	ArchiveWeeks            int
	AutoDiscovery           bool
	MaxKeywordsPerURL       int
	DiscoveryMinImpressions int
	DiscoveryMaxPerRun      int
	DiscoveryExclude        string
}

// DefaultSettings returns the values used for keys absent from the table.
func DefaultSettings() Settings {
	return Settings{
		AlertThreshold:          3,
		SERPLocationCode:        2840,
		SERPLanguageCode:        "en",
		SERPDepth:               100,
		ArchiveWeeks:            52,
		MaxKeywordsPerURL:       20,
		DiscoveryMinImpressions: 10,
		DiscoveryMaxPerRun:      5,
	}
}

// ParseSettings builds Settings from raw key/value pairs. Unknown keys are
// ignored; empty values keep the default.
func ParseSettings(raw map[string]string) (Settings, error) {
	s := DefaultSettings()

	ints := map[string]*int{
		KeyAlertThreshold:          &s.AlertThreshold,
		KeySERPLocationCode:        &s.SERPLocationCode,
		KeySERPDepth:               &s.SERPDepth,
		KeyArchiveWeeks:            &s.ArchiveWeeks,
		KeyMaxKeywordsPerURL:       &s.MaxKeywordsPerURL,
		KeyDiscoveryMinImpressions: &s.DiscoveryMinImpressions,
		KeyDiscoveryMaxPerRun:      &s.DiscoveryMaxPerRun,
	}
	for key, dst := range ints {
		v := strings.TrimSpace(raw[key])
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
	}

	if v := strings.TrimSpace(raw[KeyAutoDiscovery]); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid %s %q: %w", KeyAutoDiscovery, v, err)
		}
		s.AutoDiscovery = b
	}
	if v := strings.TrimSpace(raw[KeySERPLanguageCode]); v != "" {
		s.SERPLanguageCode = v
	}
	s.TargetDomain = NormalizeDomain(raw[KeyTargetDomain])
	s.DiscoveryExclude = raw[KeyDiscoveryExclude]

	if s.AlertThreshold < 1 {
		return Settings{}, fmt.Errorf("%s must be at least 1", KeyAlertThreshold)
	}
	if s.ArchiveWeeks < 1 {
		return Settings{}, fmt.Errorf("%s must be at least 1", KeyArchiveWeeks)
	}
	return s, nil
}
