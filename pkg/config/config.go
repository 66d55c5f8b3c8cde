// Package config turns viper settings into a typed configuration.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goblinsan/ado-report/pkg/azure"
	"github.com/goblinsan/ado-report/pkg/engine"
	"github.com/goblinsan/ado-report/pkg/types"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Setting keys. Environment variables use the ADO_REPORT_ prefix with
// dashes replaced by underscores, e.g. ADO_REPORT_AREA_PATH.
const (
	KeyToken          = "token"
	KeyAccessToken    = "access-token"
	KeyOrganization   = "org"
	KeyProject        = "project"
	KeyBaseURL        = "base-url"
	KeyAreaPath       = "area-path"
	KeyRootType       = "root-type"
	KeyBudgetType     = "budget-type"
	KeyExcludedStates = "excluded-states"
	KeyBatchSize      = "batch-size"
	KeyConcurrency    = "concurrency"
	KeyHTTPTimeout    = "http-timeout"
	KeyTimezone       = "timezone"
	KeyHTTPAddr       = "http-addr"
	KeyRefreshCron    = "refresh-cron"
	KeyLogLevel       = "log-level"
	KeyLogFormat      = "log-format"
	KeyLogFile        = "log-file"
)

// Config is the resolved configuration of a run.
type Config struct {
	Token          string
	AccessToken    string
	Organization   string
	Project        string
	BaseURL        string
	AreaPath       string
	RootType       string
	BudgetType     string
	ExcludedStates []string
	BatchSize      int
	Concurrency    int
	HTTPTimeout    time.Duration
	Timezone       string
	HTTPAddr       string
	RefreshCron    string
	LogLevel       string
	LogFormat      string
	LogFile        string
}

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyBaseURL, azure.DefaultBaseURL)
	v.SetDefault(KeyAreaPath, "Soporte")
	v.SetDefault(KeyRootType, types.TypeProductBacklogItem)
	v.SetDefault(KeyBudgetType, types.TypeFeature)
	v.SetDefault(KeyExcludedStates, []string{"Removed", "Cut"})
	v.SetDefault(KeyBatchSize, azure.MaxBatchSize)
	v.SetDefault(KeyConcurrency, 8)
	v.SetDefault(KeyHTTPTimeout, "30s")
	v.SetDefault(KeyTimezone, "UTC")
	v.SetDefault(KeyHTTPAddr, ":8080")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
}

// Load reads the configuration from v. Defaults are applied first.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	timeout, err := time.ParseDuration(v.GetString(KeyHTTPTimeout))
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPTimeout, err)
	}

	return Config{
		Token:          strings.TrimSpace(v.GetString(KeyToken)),
		AccessToken:    strings.TrimSpace(v.GetString(KeyAccessToken)),
		Organization:   strings.TrimSpace(v.GetString(KeyOrganization)),
		Project:        strings.TrimSpace(v.GetString(KeyProject)),
		BaseURL:        v.GetString(KeyBaseURL),
		AreaPath:       v.GetString(KeyAreaPath),
		RootType:       v.GetString(KeyRootType),
		BudgetType:     v.GetString(KeyBudgetType),
		ExcludedStates: stringList(v, KeyExcludedStates),
		BatchSize:      v.GetInt(KeyBatchSize),
		Concurrency:    v.GetInt(KeyConcurrency),
		HTTPTimeout:    timeout,
		Timezone:       v.GetString(KeyTimezone),
		HTTPAddr:       v.GetString(KeyHTTPAddr),
		RefreshCron:    strings.TrimSpace(v.GetString(KeyRefreshCron)),
		LogLevel:       v.GetString(KeyLogLevel),
		LogFormat:      v.GetString(KeyLogFormat),
		LogFile:        v.GetString(KeyLogFile),
	}, nil
}

// stringList accepts both YAML lists and comma separated values from the environment.
func stringList(v *viper.Viper, key string) []string {
	if s, ok := v.Get(key).(string); ok {
		return splitList([]string{s})
	}
	return splitList(v.GetStringSlice(key))
}

func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate returns every problem found in the configuration.
func (c Config) Validate() []string {
	var errs []string

	if c.Organization == "" {
		errs = append(errs, "organization is required (--org or ADO_REPORT_ORG)")
	}
	if c.Project == "" {
		errs = append(errs, "project is required (--project or ADO_REPORT_PROJECT)")
	}
	if c.Token == "" && c.AccessToken == "" {
		errs = append(errs, "a personal access token is required (--token, ADO_REPORT_TOKEN or login --remember)")
	}
	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("base-url %q must be an absolute http(s) URL", c.BaseURL))
	}
	if c.AreaPath == "" {
		errs = append(errs, "area-path is required")
	}
	if c.RootType == "" {
		errs = append(errs, "root-type is required")
	}
	if c.BatchSize < 1 || c.BatchSize > azure.MaxBatchSize {
		errs = append(errs, fmt.Sprintf("batch-size %d must be between 1 and %d", c.BatchSize, azure.MaxBatchSize))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Sprintf("concurrency %d must be at least 1", c.Concurrency))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, "http-timeout must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("timezone %q is not a known location", c.Timezone))
	}
	if c.RefreshCron != "" {
		if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
			errs = append(errs, fmt.Sprintf("refresh-cron %q: %v", c.RefreshCron, err))
		}
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("log-level %q is not a valid level", c.LogLevel))
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("log-format %q must be console or json", c.LogFormat))
	}

	return errs
}

// Location returns the configured time zone, UTC when it cannot be loaded.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ClientOptions builds the gateway options.
func (c Config) ClientOptions(log zerolog.Logger) azure.Options {
	return azure.Options{
		Organization: c.Organization,
		Project:      c.Project,
		BaseURL:      c.BaseURL,
		Token:        c.Token,
		AccessToken:  c.AccessToken,
		Timeout:      c.HTTPTimeout,
		BatchSize:    c.BatchSize,
		Concurrency:  c.Concurrency,
		Logger:       log,
	}
}

// SessionOptions builds the root and budget queries.
func (c Config) SessionOptions(log zerolog.Logger) engine.SessionOptions {
	return engine.SessionOptions{
		Roots: azure.Criteria{
			AreaPath:       c.AreaPath,
			WorkItemType:   c.RootType,
			ExcludedStates: c.ExcludedStates,
		},
		Budgets: azure.Criteria{
			WorkItemType:   c.BudgetType,
			ExcludedStates: c.ExcludedStates,
		},
		Logger: log,
	}
}
