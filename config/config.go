package config

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/monsterutils/adrefresh/errortypes"
	"github.com/spf13/viper"
)

// DefaultReloadIntervalSeconds is used by slots that do not set reload_interval_seconds.
const DefaultReloadIntervalSeconds = 10.0

// Provider types.
const (
	ProviderORTB = "ortb"
	ProviderFake = "fake"
)

// Widget names a slot can bind.
const (
	WidgetIcon         = "icon"
	WidgetHeadline     = "headline"
	WidgetCallToAction = "call_to_action"
	WidgetAdChoices    = "ad_choices"
)

// AllWidgets returns every bindable widget name.
func AllWidgets() []string {
	return []string{WidgetIcon, WidgetHeadline, WidgetCallToAction, WidgetAdChoices}
}

// Configuration
type Configuration struct {
	Host      string `mapstructure:"host"`
	AdminPort int    `mapstructure:"admin_port"`
	// FrameRate is the number of host loop frames per second.
	FrameRate               int             `mapstructure:"frame_rate"`
	ReadinessTimeoutSeconds float64         `mapstructure:"readiness_timeout_seconds"`
	Provider                Provider        `mapstructure:"provider"`
	Initializer             Initializer     `mapstructure:"initializer"`
	Store                   Store           `mapstructure:"store"`
	Metrics                 Metrics         `mapstructure:"metrics"`
	Slots                   map[string]Slot `mapstructure:"slots"`

	// Warnings holds the non-fatal validation results of New.
	Warnings []error `mapstructure:"-"`
}

type Provider struct {
	Type           string   `mapstructure:"type"`
	Endpoint       string   `mapstructure:"endpoint"`
	StatusEndpoint string   `mapstructure:"status_endpoint"`
	TimeoutMS      int      `mapstructure:"timeout_ms"`
	Adapters       []string `mapstructure:"adapters"`
	App            App      `mapstructure:"app"`
	// AdChoicesLogoURL is shown next to ads that carry a privacy link.
	AdChoicesLogoURL    string `mapstructure:"adchoices_logo_url"`
	ImageCacheSizeBytes int    `mapstructure:"image_cache_size_bytes"`
	ImageCacheTTLSecs   int    `mapstructure:"image_cache_ttl_seconds"`
}

// Timeout returns the per request timeout.
func (p Provider) Timeout() time.Duration {
	return time.Duration(p.TimeoutMS) * time.Millisecond
}

type App struct {
	Bundle   string `mapstructure:"bundle"`
	Name     string `mapstructure:"name"`
	StoreURL string `mapstructure:"store_url"`
	Version  string `mapstructure:"version"`
}

type Initializer struct {
	MaxRetries      int `mapstructure:"max_retries"`
	RetryIntervalMS int `mapstructure:"retry_interval_ms"`
}

type Store struct {
	DeveloperID string `mapstructure:"developer_id"`
	URLTemplate string `mapstructure:"url_template"`
	// Opener is "log" or "system".
	Opener string `mapstructure:"opener"`
}

type Metrics struct {
	Prometheus PrometheusMetrics `mapstructure:"prometheus"`
	Influxdb   InfluxMetrics     `mapstructure:"influxdb"`
}

type PrometheusMetrics struct {
	Port      int    `mapstructure:"port"`
	Namespace string `mapstructure:"namespace"`
	Subsystem string `mapstructure:"subsystem"`
	// TimeoutMillisRaw is the timeout for the /metrics handler.
	TimeoutMillisRaw int `mapstructure:"timeout_ms"`
}

func (cfg *PrometheusMetrics) Timeout() time.Duration {
	return time.Duration(cfg.TimeoutMillisRaw) * time.Millisecond
}

type InfluxMetrics struct {
	Host            string `mapstructure:"host"`
	Database        string `mapstructure:"database"`
	Measurement     string `mapstructure:"measurement"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	AlignTimestamps bool   `mapstructure:"align_timestamps"`
	IntervalSecs    int    `mapstructure:"interval_seconds"`
}

// Slot configures one native ad slot.
type Slot struct {
	AdUnitID string `mapstructure:"ad_unit_id"`
	// ReloadIntervalSeconds of zero or less disables the slot; nil means the default.
	ReloadIntervalSeconds *float64 `mapstructure:"reload_interval_seconds"`
	PlaceholderImages     []string `mapstructure:"placeholder_images"`
	// Widgets lists the widgets bound to the slot. Empty binds all of them.
	Widgets []string `mapstructure:"widgets"`
}

// ReloadInterval returns the configured reload interval.
func (s Slot) ReloadInterval() time.Duration {
	seconds := DefaultReloadIntervalSeconds
	if s.ReloadIntervalSeconds != nil {
		seconds = *s.ReloadIntervalSeconds
	}
	return time.Duration(seconds * float64(time.Second))
}

// HasWidget reports whether the named widget should be bound.
func (s Slot) HasWidget(name string) bool {
	return len(s.Widgets) == 0 || slices.Contains(s.Widgets, name)
}

// FrameInterval returns the duration of one host loop frame.
func (cfg *Configuration) FrameInterval() time.Duration {
	if cfg.FrameRate <= 0 {
		return time.Second
	}
	return time.Second / time.Duration(cfg.FrameRate)
}

// ReadinessTimeout returns the bound on how long slots wait for the provider. Zero waits forever.
func (cfg *Configuration) ReadinessTimeout() time.Duration {
	return time.Duration(cfg.ReadinessTimeoutSeconds * float64(time.Second))
}

// SlotNames returns the configured slot names in sorted order.
func (cfg *Configuration) SlotNames() []string {
	names := make([]string, 0, len(cfg.Slots))
	for name := range cfg.Slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (cfg *Configuration) validate() []error {
	var errs []error
	if cfg.AdminPort < 0 || cfg.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("admin_port must be between 0 and 65535. Got %d", cfg.AdminPort))
	}
	if cfg.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("frame_rate must be positive. Got %d", cfg.FrameRate))
	}
	if cfg.ReadinessTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("readiness_timeout_seconds must not be negative. Got %g", cfg.ReadinessTimeoutSeconds))
	} else {
		errs = checkSeconds("readiness_timeout_seconds", cfg.ReadinessTimeoutSeconds, errs)
	}
	errs = cfg.Provider.validate(errs)
	errs = cfg.Initializer.validate(errs)
	errs = cfg.Store.validate(errs)
	errs = cfg.Metrics.validate(errs)
	for _, name := range cfg.SlotNames() {
		errs = cfg.Slots[name].validate(name, errs)
	}
	return errs
}

func (p *Provider) validate(errs []error) []error {
	switch p.Type {
	case ProviderFake:
	case ProviderORTB:
		if p.Endpoint == "" {
			errs = append(errs, fmt.Errorf("provider.endpoint is required when provider.type is %q", ProviderORTB))
		}
		if p.TimeoutMS <= 0 {
			errs = append(errs, fmt.Errorf("provider.timeout_ms must be positive. Got %d", p.TimeoutMS))
		}
	default:
		errs = append(errs, fmt.Errorf("provider.type must be one of %q or %q. Got %q", ProviderORTB, ProviderFake, p.Type))
	}
	if p.ImageCacheSizeBytes < 0 {
		errs = append(errs, fmt.Errorf("provider.image_cache_size_bytes must not be negative. Got %d", p.ImageCacheSizeBytes))
	}
	return errs
}

func (i *Initializer) validate(errs []error) []error {
	if i.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("initializer.max_retries must not be negative. Got %d", i.MaxRetries))
	}
	if i.MaxRetries > 0 && i.RetryIntervalMS <= 0 {
		errs = append(errs, fmt.Errorf("initializer.retry_interval_ms must be positive when retries are enabled. Got %d", i.RetryIntervalMS))
	}
	return errs
}

func (s *Store) validate(errs []error) []error {
	switch s.Opener {
	case "", "log", "system":
	default:
		errs = append(errs, fmt.Errorf("store.opener must be \"log\" or \"system\". Got %q", s.Opener))
	}
	if s.URLTemplate != "" && !strings.Contains(s.URLTemplate, "%s") {
		errs = append(errs, fmt.Errorf("store.url_template must contain %%s. Got %q", s.URLTemplate))
	}
	if s.DeveloperID == "" {
		errs = append(errs, &errortypes.Warning{
			Message:     "store.developer_id is empty; store buttons will not open anything",
			WarningCode: errortypes.MissingDeveloperIDWarningCode,
		})
	}
	return errs
}

func (m *Metrics) validate(errs []error) []error {
	if m.Prometheus.Port < 0 || m.Prometheus.Port > 65535 {
		errs = append(errs, fmt.Errorf("metrics.prometheus.port must be between 0 and 65535. Got %d", m.Prometheus.Port))
	}
	if m.Influxdb.Host != "" && m.Influxdb.IntervalSecs <= 0 {
		errs = append(errs, fmt.Errorf("metrics.influxdb.interval_seconds must be positive when metrics.influxdb.host is set. Got %d", m.Influxdb.IntervalSecs))
	}
	return errs
}

func (s Slot) validate(name string, errs []error) []error {
	if s.AdUnitID == "" {
		// The slot still starts, logs and stays disabled.
		errs = append(errs, &errortypes.Warning{
			Message:     fmt.Sprintf("slots.%s.ad_unit_id is empty; the slot will never request ads", name),
			WarningCode: errortypes.MissingAdUnitIDWarningCode,
		})
	}
	if s.ReloadIntervalSeconds != nil {
		errs = checkSeconds(fmt.Sprintf("slots.%s.reload_interval_seconds", name), *s.ReloadIntervalSeconds, errs)
	}
	for i, img := range s.PlaceholderImages {
		if strings.TrimSpace(img) == "" {
			errs = append(errs, fmt.Errorf("slots.%s.placeholder_images[%d] is empty", name, i))
		}
	}
	for _, w := range s.Widgets {
		if !isKnownWidget(w) {
			errs = append(errs, fmt.Errorf("slots.%s.widgets contains unknown widget %q. Expected one of %v", name, w, AllWidgets()))
		}
	}
	return errs
}

// maxSeconds is the longest time.Duration in seconds.
var maxSeconds = time.Duration(math.MaxInt64).Seconds()

// checkSeconds rejects second counts that do not convert to the time.Duration they describe.
func checkSeconds(field string, seconds float64, errs []error) []error {
	switch {
	case math.IsNaN(seconds) || math.IsInf(seconds, 0):
		errs = append(errs, fmt.Errorf("%s must be a finite number. Got %g", field, seconds))
	case seconds >= maxSeconds || seconds <= -maxSeconds:
		errs = append(errs, fmt.Errorf("%s must be between %g and %g. Got %g", field, -maxSeconds, maxSeconds, seconds))
	case seconds > 0 && seconds*float64(time.Second) < 1:
		errs = append(errs, fmt.Errorf("%s must be at least one nanosecond when positive. Got %g", field, seconds))
	}
	return errs
}

func isKnownWidget(name string) bool {
	return slices.Contains(AllWidgets(), name)
}

// New uses viper to build the configuration. It returns the parsed configuration
// along with any fatal validation errors. Warnings are logged and kept in
// Configuration.Warnings.
func New(v *viper.Viper) (*Configuration, error) {
	var c Configuration
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("viper failed to unmarshal app config: %v", err)
	}

	glog.Infof("Resolved configuration: host=%q admin_port=%d frame_rate=%d provider=%s slots=%v",
		c.Host, c.AdminPort, c.FrameRate, c.Provider.Type, c.SlotNames())

	errs := c.validate()
	for _, err := range errs {
		if errortypes.IsWarning(err) {
			glog.Warning(err.Error())
			c.Warnings = append(c.Warnings, err)
		}
	}
	if errortypes.ContainsFatalError(errs) {
		return &c, errortypes.NewAggregateErrors("validation errors", errortypes.FatalOnly(errs))
	}
	return &c, nil
}

// SetupViper registers the configuration defaults and sources. If filename is
// empty no config file is read.
func SetupViper(v *viper.Viper, filename string) {
	if filename != "" {
		v.SetConfigName(filename)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/config")
	}

	v.SetDefault("host", "")
	v.SetDefault("admin_port", 6060)
	v.SetDefault("frame_rate", 30)
	v.SetDefault("readiness_timeout_seconds", 0)

	v.SetDefault("provider.type", ProviderFake)
	v.SetDefault("provider.endpoint", "")
	v.SetDefault("provider.status_endpoint", "")
	v.SetDefault("provider.timeout_ms", 2000)
	v.SetDefault("provider.adapters", []string{})
	v.SetDefault("provider.app.bundle", "")
	v.SetDefault("provider.app.name", "")
	v.SetDefault("provider.app.store_url", "")
	v.SetDefault("provider.app.version", "")
	v.SetDefault("provider.adchoices_logo_url", "")
	v.SetDefault("provider.image_cache_size_bytes", 8*1024*1024)
	v.SetDefault("provider.image_cache_ttl_seconds", 3600)

	v.SetDefault("initializer.max_retries", 0)
	v.SetDefault("initializer.retry_interval_ms", 1000)

	v.SetDefault("store.developer_id", "")
	v.SetDefault("store.url_template", "")
	v.SetDefault("store.opener", "log")

	v.SetDefault("metrics.prometheus.port", 0)
	v.SetDefault("metrics.prometheus.namespace", "")
	v.SetDefault("metrics.prometheus.subsystem", "")
	v.SetDefault("metrics.prometheus.timeout_ms", 10000)
	v.SetDefault("metrics.influxdb.host", "")
	v.SetDefault("metrics.influxdb.database", "")
	v.SetDefault("metrics.influxdb.measurement", "adrefresh")
	v.SetDefault("metrics.influxdb.username", "")
	v.SetDefault("metrics.influxdb.password", "")
	v.SetDefault("metrics.influxdb.align_timestamps", false)
	v.SetDefault("metrics.influxdb.interval_seconds", 10)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("ADREFRESH")
	v.AutomaticEnv()
	if filename != "" {
		if err := v.ReadInConfig(); err != nil {
			glog.Warningf("Config file %s not loaded: %v", filename, err)
		}
	}
}
