// Package config provides configuration management for meshgraph.
//
// Settings are layered: defaults, then the YAML config file, then
// MESHGRAPH_* environment variables, then command line flags that were set
// explicitly.
//
// Config file locations (priority order):
//  1. $MESHGRAPH_CONFIG
//  2. ./meshgraph.yaml
//  3. $XDG_CONFIG_HOME/meshgraph/config.yaml
//  4. ~/.config/meshgraph/config.yaml
//  5. /etc/meshgraph/config.yaml
package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/basicflag"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/mkmik/multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"meshgraph/internal/domain"
	"meshgraph/internal/selector"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates nesting levels: MESHGRAPH_BACKEND__URL sets backend.url.
const EnvPrefix = "MESHGRAPH_"

const (
	DefaultListenAddr      = ":8080"
	DefaultBackendURL      = "http://localhost:20001/kiali"
	DefaultBackendTimeout  = 30 * time.Second
	DefaultRefreshInterval = 15 * time.Second
	DefaultHistoryPath     = "./meshgraph.db"
	DefaultHistoryRetain   = 1000
)

// Config is the service configuration
type Config struct {
	ListenAddr string        `yaml:"listen_addr" koanf:"listen_addr" validate:"required"`
	Backend    BackendConfig `yaml:"backend" koanf:"backend"`
	Refresh    RefreshConfig `yaml:"refresh" koanf:"refresh"`
	View       ViewConfig    `yaml:"view" koanf:"view"`
	History    HistoryConfig `yaml:"history" koanf:"history"`
	Log        LogConfig     `yaml:"log" koanf:"log"`
}

// BackendConfig locates the mesh observability backend
type BackendConfig struct {
	URL     string        `yaml:"url" koanf:"url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" koanf:"timeout"`
}

// RefreshConfig controls the refresh ticker. A zero interval pauses it.
type RefreshConfig struct {
	Interval time.Duration `yaml:"interval" koanf:"interval"`
}

// ViewConfig is the view a fresh session starts with
type ViewConfig struct {
	Namespaces       []string      `yaml:"namespaces" koanf:"namespaces" validate:"dive,required,max=63"`
	Duration         time.Duration `yaml:"duration" koanf:"duration"`
	GraphType        string        `yaml:"graph_type" koanf:"graph_type" validate:"oneof=app service versionedApp workload"`
	EdgeLabelMode    string        `yaml:"edge_label_mode" koanf:"edge_label_mode" validate:"oneof=noLabel requestRate requestDistribution throughput responseTime95thPercentile"`
	Layout           string        `yaml:"layout" koanf:"layout" validate:"oneof=dagre cose-bilkent cola"`
	ShowServiceNodes bool          `yaml:"show_service_nodes" koanf:"show_service_nodes"`
	ShowSecurity     bool          `yaml:"show_security" koanf:"show_security"`
	ShowUnusedNodes  bool          `yaml:"show_unused_nodes" koanf:"show_unused_nodes"`
	Node             NodeConfig    `yaml:"node" koanf:"node"`
}

// NodeConfig names the node the service starts focused on. It is read like a
// navigation event, so an empty block means the namespace graph.
type NodeConfig struct {
	App       string `yaml:"app" koanf:"app"`
	Namespace string `yaml:"namespace" koanf:"namespace"`
	Service   string `yaml:"service" koanf:"service"`
	Version   string `yaml:"version" koanf:"version"`
	Workload  string `yaml:"workload" koanf:"workload"`
}

// HistoryConfig holds fetch history settings. An empty path disables history.
type HistoryConfig struct {
	Path   string `yaml:"path" koanf:"path"`
	Retain int    `yaml:"retain" koanf:"retain" validate:"min=0"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level" validate:"oneof=trace debug info warn warning error"`
	Format string `yaml:"format" koanf:"format" validate:"oneof=text json"`
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: DefaultListenAddr,
		Backend: BackendConfig{
			URL:     DefaultBackendURL,
			Timeout: DefaultBackendTimeout,
		},
		Refresh: RefreshConfig{Interval: DefaultRefreshInterval},
		View: ViewConfig{
			Namespaces:       []string{},
			Duration:         time.Minute,
			GraphType:        string(domain.GraphTypeVersionedApp),
			EdgeLabelMode:    string(domain.EdgeLabelNone),
			Layout:           string(domain.LayoutDagre),
			ShowServiceNodes: true,
		},
		History: HistoryConfig{
			Path:   DefaultHistoryPath,
			Retain: DefaultHistoryRetain,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// applyDefaults fills in values a partial config file left empty
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.Backend.URL == "" {
		c.Backend.URL = def.Backend.URL
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = def.Backend.Timeout
	}
	if c.View.Namespaces == nil {
		c.View.Namespaces = []string{}
	}
	if c.View.Duration == 0 {
		c.View.Duration = def.View.Duration
	}
	if c.View.GraphType == "" {
		c.View.GraphType = def.View.GraphType
	}
	if c.View.EdgeLabelMode == "" {
		c.View.EdgeLabelMode = def.View.EdgeLabelMode
	}
	if c.View.Layout == "" {
		c.View.Layout = def.View.Layout
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Options select the sources layered over the config file
type Options struct {
	// Path skips the search path when set
	Path string
	// Flags contributes the flags that were set explicitly, optional
	Flags *flag.FlagSet
}

// Load finds and loads the config file, falling back to defaults when none
// exists, and layers the overrides on top. It returns the path it read.
func Load(opts Options) (*Config, string, error) {
	path := opts.Path
	if path == "" {
		path = FindConfigPath()
	}

	cfg := DefaultConfig()
	if path != "" {
		fromFile, err := LoadFromPath(path)
		if err != nil {
			return nil, path, err
		}
		cfg = fromFile
	}

	if err := cfg.overlay(opts); err != nil {
		return nil, path, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// LoadFromPath loads the config file at path without overrides
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	cfg.applyDefaults()

	return cfg, nil
}

// overlay applies environment variables, then explicitly set flags
func (c *Config) overlay(opts Options) error {
	k := koanf.New(".")

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return errors.Wrap(err, "load environment overrides")
	}

	if set := explicitFlags(opts.Flags); set != nil {
		if err := k.Load(basicflag.Provider(set, "."), nil); err != nil {
			return errors.Wrap(err, "load flag overrides")
		}
	}

	if len(k.Keys()) == 0 {
		return nil
	}

	err := k.UnmarshalWithConf("", c, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
			Result:           c,
		},
	})
	return errors.Wrap(err, "apply overrides")
}

// envKey maps MESHGRAPH_BACKEND__URL to backend.url. The config path
// variable is not a setting and is skipped.
func envKey(name string) string {
	if name == EnvConfigPath {
		return ""
	}
	key := strings.TrimPrefix(name, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

// explicitFlags copies the flags that were set on the command line, so flag
// defaults never override the config file
func explicitFlags(fs *flag.FlagSet) *flag.FlagSet {
	if fs == nil || !fs.Parsed() {
		return nil
	}
	set := flag.NewFlagSet(fs.Name(), flag.ContinueOnError)
	fs.Visit(func(f *flag.Flag) {
		if f.Name == FlagConfig {
			return
		}
		set.Var(f.Value, f.Name, f.Usage)
	})
	return set
}

// Validate checks every field and reports all failures together
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return errors.Wrap(err, "validate config")
		}
		for _, fe := range verrs {
			errs = append(errs, errors.Errorf("%s: failed %q (%v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}

	if c.Backend.Timeout <= 0 {
		errs = append(errs, errors.Errorf("backend.timeout must be positive, got %s", c.Backend.Timeout))
	}
	if c.Refresh.Interval < 0 {
		errs = append(errs, errors.Errorf("refresh.interval must not be negative, got %s", c.Refresh.Interval))
	}
	if c.View.Duration < time.Second {
		errs = append(errs, errors.Errorf("view.duration must be at least 1s, got %s", c.View.Duration))
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Wrap(multierror.Join(errs), "invalid config")
}

var validate = validator.New()

// InitialParams returns the query params a fresh session starts with
func (c *Config) InitialParams() domain.GraphQueryParams {
	p := domain.DefaultGraphQueryParams()
	p.Namespaces = domain.NewNamespaceSet(c.View.Namespaces...)
	p.Duration = c.View.Duration
	p.GraphType = domain.ParseGraphType(c.View.GraphType)
	p.EdgeLabelMode = domain.ParseEdgeLabelMode(c.View.EdgeLabelMode)
	p.ShowServiceNodes = c.View.ShowServiceNodes
	p.ShowSecurity = c.View.ShowSecurity
	p.ShowUnusedNodes = c.View.ShowUnusedNodes
	return p
}

// StartNode returns the configured start node, nil when none is configured
func (c *Config) StartNode() *domain.FocusedNode {
	n := c.View.Node
	return selector.DeriveFocusedNode(selector.RawParams{
		App:       n.App,
		Namespace: n.Namespace,
		Service:   n.Service,
		Version:   n.Version,
		Workload:  n.Workload,
	})
}

// InitialView returns the UI state a fresh session starts with
func (c *Config) InitialView() domain.ViewState {
	v := domain.DefaultViewState()
	v.Layout = domain.ParseLayout(c.View.Layout)
	return v
}
