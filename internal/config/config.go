// Package config loads configuration from the environment, following the
// teacher's getenv(key, def) idiom throughout rather than a config-file
// parser or flag package, since every knob here is meant for a container
// environment variable, not a CLI flag.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chimewatch/calendar-assistant/internal/model"
)

type HTTPConfig struct {
	Addr string
}

type RefreshConfig struct {
	Interval time.Duration
}

type RRuleConfig struct {
	Concurrency          int64
	YieldEvery           int
	MaxOccurrences       int
	PerRuleBudgetMillis  time.Duration
	ExdateToleranceSecs  int
	InfiniteRuleLookback time.Duration
}

type FetchConfig struct {
	Concurrency        int64
	RequestTimeout     time.Duration
	MaxRetries         int
	RetryBackoffFactor float64
}

type WindowConfig struct {
	ExpansionDays   int
	SizeLimitEvents int
}

type AuthConfig struct {
	BearerToken string
}

type Config struct {
	Timezone string
	HTTP     HTTPConfig
	Refresh  RefreshConfig
	RRule    RRuleConfig
	Fetch    FetchConfig
	Window   WindowConfig
	Auth     AuthConfig
	ICS      ICSConfig
	Sources  []model.SourceSpec

	LogLevel   string
	Debug      bool
	Production bool
	TestTime   *time.Time

	ExdateMatchToleranceSecs int
	VendorMarkers            map[string]string
	FocusTimeKeywords        []string
	FollowUpPrefixes         []string

	SkipStorePath string // empty means in-memory only
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvInt64(key string, def int64) int64 {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getenvBool(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	return v == "true" || v == "1"
}

// loadSources reads ICS_SOURCES_0_URL, ICS_SOURCES_1_URL, ... following the
// teacher's loadAddressbookFilters indexed-env-var pattern. When none is set
// it reads the comma-separated ICS_SOURCES list, and failing that the single
// ICS_URL var for a one-source deployment.
func loadSources() []model.SourceSpec {
	var sources []model.SourceSpec

	for i := 0; i < 50; i++ {
		prefix := fmt.Sprintf("ICS_SOURCES_%d", i)
		url := os.Getenv(prefix + "_URL")
		if url == "" {
			if len(sources) == 0 {
				continue
			}
			break
		}

		spec := model.SourceSpec{
			ID:              getenv(prefix+"_ID", fmt.Sprintf("source_%d", i)),
			URL:             url,
			RequestTimeout:  getenvDuration(prefix+"_TIMEOUT", 10*time.Second),
			RefreshInterval: getenvDuration(prefix+"_REFRESH_INTERVAL", 0),
			TLSVerify:       getenvBool(prefix+"_TLS_VERIFY", true),
		}
		switch strings.ToLower(getenv(prefix+"_AUTH", "none")) {
		case "basic":
			spec.Auth = model.SourceAuthBasic
			spec.Username = getenv(prefix+"_USERNAME", "")
			spec.Password = getenv(prefix+"_PASSWORD", "")
		case "bearer":
			spec.Auth = model.SourceAuthBearer
			spec.Token = getenv(prefix+"_TOKEN", "")
		default:
			spec.Auth = model.SourceAuthNone
		}
		sources = append(sources, spec)
	}

	if len(sources) == 0 {
		for i, url := range splitCSV(getenv("ICS_SOURCES", "")) {
			sources = append(sources, model.SourceSpec{
				ID:             fmt.Sprintf("source_%d", i),
				URL:            url,
				RequestTimeout: time.Duration(getenvInt("REQUEST_TIMEOUT", 30)) * time.Second,
				TLSVerify:      true,
			})
		}
	}

	if len(sources) == 0 {
		if url := getenv("ICS_URL", ""); url != "" {
			sources = append(sources, model.SourceSpec{
				ID:             "default",
				URL:            url,
				RequestTimeout: time.Duration(getenvInt("REQUEST_TIMEOUT", 30)) * time.Second,
				TLSVerify:      true,
			})
		}
	}

	return sources
}

func loadVendorMarkers() map[string]string {
	return map[string]string{
		"busy_status_prop": getenv("VENDOR_BUSY_STATUS_PROP", "X-MICROSOFT-CDO-BUSYSTATUS"),
		"deleted_prop":     getenv("VENDOR_DELETED_PROP", "X-MICROSOFT-CDO-DELETED-OCCURRENCE"),
	}
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func Load() (*Config, error) {
	cfg := &Config{
		Timezone: getenv("TZ", "America/New_York"),
		HTTP: HTTPConfig{
			Addr: getenv("SERVER_BIND", "0.0.0.0") + ":" + getenv("SERVER_PORT", "8080"),
		},
		Refresh: RefreshConfig{
			Interval: time.Duration(getenvInt("REFRESH_INTERVAL", 300)) * time.Second,
		},
		RRule: RRuleConfig{
			Concurrency:          getenvInt64("RRULE_WORKER_CONCURRENCY", 1),
			YieldEvery:           getenvInt("EXPANSION_YIELD_FREQUENCY", 50),
			MaxOccurrences:       getenvInt("MAX_OCCURRENCES_PER_RULE", 250),
			PerRuleBudgetMillis:  time.Duration(getenvInt("EXPANSION_TIME_BUDGET_MS_PER_RULE", 200)) * time.Millisecond,
			ExdateToleranceSecs:  getenvInt("EXDATE_MATCH_TOLERANCE_SECONDS", 60),
			InfiniteRuleLookback: getenvDuration("RRULE_INFINITE_LOOKBACK", 7*24*time.Hour),
		},
		Fetch: FetchConfig{
			Concurrency:        getenvInt64("FETCH_CONCURRENCY", 2),
			RequestTimeout:     time.Duration(getenvInt("REQUEST_TIMEOUT", 30)) * time.Second,
			MaxRetries:         getenvInt("MAX_RETRIES", 3),
			RetryBackoffFactor: getenvFloat("RETRY_BACKOFF_FACTOR", 1.5),
		},
		Window: WindowConfig{
			ExpansionDays:   getenvInt("RRULE_EXPANSION_DAYS", 365),
			SizeLimitEvents: getenvInt("EVENT_WINDOW_SIZE", 50),
		},
		Auth: AuthConfig{
			BearerToken: getenv("ALEXA_BEARER_TOKEN", ""),
		},
		ICS: ICSConfig{
			CompanyName: getenv("ICS_COMPANY_NAME", "calendar-assistant"),
			ProductName: getenv("ICS_PRODUCT_NAME", "calendar-assistant"),
			Version:     getenv("ICS_VERSION", "1.0.0"),
			Language:    getenv("ICS_LANGUAGE", "EN"),
		},
		Sources:           loadSources(),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		Debug:             getenvBool("DEBUG", false),
		Production:        getenvBool("PRODUCTION", false),
		VendorMarkers:     loadVendorMarkers(),
		FocusTimeKeywords: splitCSV(getenv("FOCUS_TIME_KEYWORDS", "focus time,deep work,do not disturb,no meetings")),
		FollowUpPrefixes:  splitCSV(getenv("FOLLOW_UP_PREFIXES", "following:")),
		SkipStorePath:     getenv("SKIP_STORE_PATH", ""),
	}
	cfg.ExdateMatchToleranceSecs = cfg.RRule.ExdateToleranceSecs
	if cfg.Fetch.Concurrency < 1 {
		cfg.Fetch.Concurrency = 1
	} else if cfg.Fetch.Concurrency > 3 {
		cfg.Fetch.Concurrency = 3
	}

	if raw := getenv("TEST_TIME", ""); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("config: invalid TEST_TIME %q: %w", raw, err)
		}
		cfg.TestTime = &t
	}

	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("config: no ICS sources configured (set ICS_URL or ICS_SOURCES_0_URL)")
	}
	if cfg.Auth.BearerToken == "" {
		return nil, fmt.Errorf("config: ALEXA_BEARER_TOKEN must be set")
	}

	return cfg, nil
}
