package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/access-cli/internal/dataset"
)

// Config holds the full application configuration.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Input    InputConfig    `yaml:"input" mapstructure:"input"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Report   ReportConfig   `yaml:"report" mapstructure:"report"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// Coverage thresholds used when analysis.threshold is unset.
const (
	DefaultDistanceThreshold = 1000.0 // meters
	DefaultTravelThreshold   = 15.0   // minutes
)

// AnalysisConfig controls distance computation. Mode is "euclidean" or the
// name of a loaded street network. Threshold is read in ThresholdUnit when
// set, otherwise in the mode's own unit (meters in euclidean mode, minutes
// over a travel-time network). Zero selects the mode default.
type AnalysisConfig struct {
	Study         string   `yaml:"study" mapstructure:"study"`
	Categories    []string `yaml:"categories" mapstructure:"categories"`
	Threshold     float64  `yaml:"threshold" mapstructure:"threshold"`
	ThresholdUnit string   `yaml:"threshold_unit" mapstructure:"threshold_unit"`
	Mode          string   `yaml:"mode" mapstructure:"mode"`
	Metric        string   `yaml:"metric" mapstructure:"metric"`
	Direction     string   `yaml:"direction" mapstructure:"direction"`
	SRID          int      `yaml:"srid" mapstructure:"srid"`
	Workers       int      `yaml:"workers" mapstructure:"workers"`
}

// InputConfig names the population, services and street network inputs.
type InputConfig struct {
	Population      string `yaml:"population" mapstructure:"population"`
	PopulationTable string `yaml:"population_table" mapstructure:"population_table"`
	Services        string `yaml:"services" mapstructure:"services"`
	ServicesTable   string `yaml:"services_table" mapstructure:"services_table"`
	Network         string `yaml:"network" mapstructure:"network"`
	Nodes           string `yaml:"nodes" mapstructure:"nodes"`
	Edges           string `yaml:"edges" mapstructure:"edges"`
}

// StoreConfig holds database connection settings.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// ReportConfig controls report output.
type ReportConfig struct {
	Format         string `yaml:"format" mapstructure:"format"`
	Output         string `yaml:"output" mapstructure:"output"`
	Table          string `yaml:"table" mapstructure:"table"`
	DistancesTable string `yaml:"distances_table" mapstructure:"distances_table"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ThresholdIn returns the coverage threshold expressed in unit. A threshold
// given in a length unit cannot be used with a travel-time unit, or the
// reverse.
func (a AnalysisConfig) ThresholdIn(unit dataset.Unit) (float64, error) {
	d := dataset.Distance{Value: a.Threshold, Unit: unit}
	switch {
	case a.Threshold == 0 && unit.IsTime():
		d = dataset.MinutesOf(DefaultTravelThreshold)
	case a.Threshold == 0:
		d = dataset.MetersOf(DefaultDistanceThreshold)
	case a.ThresholdUnit != "":
		from, err := dataset.ParseUnit(a.ThresholdUnit)
		if err != nil {
			return 0, eris.Wrap(err, "config: analysis.threshold_unit")
		}
		d.Unit = from
	}
	out, err := d.In(unit)
	if err != nil {
		return 0, err
	}
	return out.Value, nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ACCESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("analysis.study", "default")
	v.SetDefault("analysis.threshold", 0.0)
	v.SetDefault("analysis.threshold_unit", "")
	v.SetDefault("analysis.mode", "euclidean")
	v.SetDefault("analysis.metric", "travel_time")
	v.SetDefault("analysis.direction", "to_sources")
	v.SetDefault("analysis.srid", 3857)
	v.SetDefault("analysis.workers", 0)
	v.SetDefault("input.network", "drive")
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("report.format", "table")
	v.SetDefault("report.table", "access.coverage")
	v.SetDefault("report.distances_table", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields a command needs. mode is "coverage" or
// "equity".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "coverage":
		if c.Analysis.Threshold < 0 {
			errs = append(errs, "analysis.threshold must be >= 0")
		}
		if c.Analysis.ThresholdUnit != "" {
			if _, err := dataset.ParseUnit(c.Analysis.ThresholdUnit); err != nil {
				errs = append(errs, "analysis.threshold_unit must be meters, seconds or minutes")
			}
		}
		if c.Analysis.Mode != "euclidean" {
			if c.Analysis.Mode != c.Input.Network {
				errs = append(errs, fmt.Sprintf("analysis.mode must be euclidean or %q, got %q", c.Input.Network, c.Analysis.Mode))
			}
			if c.Input.Nodes == "" || c.Input.Edges == "" {
				errs = append(errs, "input.nodes and input.edges are required in network mode")
			}
		}
	case "equity":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Input.Population == "" && c.Input.PopulationTable == "" {
		errs = append(errs, "input.population or input.population_table is required")
	}
	if c.Input.Services == "" && c.Input.ServicesTable == "" {
		errs = append(errs, "input.services or input.services_table is required")
	}
	if c.Input.PopulationTable != "" || c.Input.ServicesTable != "" || (mode == "coverage" && c.graphFromStore()) {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required for table inputs")
			}
		case "sqlite":
			if c.Store.SQLitePath == "" {
				errs = append(errs, "store.sqlite_path is required for table inputs")
			}
		default:
			errs = append(errs, fmt.Sprintf("store.driver must be postgres or sqlite, got %q", c.Store.Driver))
		}
	}
	if c.Analysis.SRID <= 0 {
		errs = append(errs, "analysis.srid must be > 0")
	}
	if c.Analysis.Workers < 0 {
		errs = append(errs, "analysis.workers must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// graphFromStore reports whether network mode reads nodes and edges from
// store tables. Only a pair of .csv files is read from disk.
func (c *Config) graphFromStore() bool {
	if c.Analysis.Mode == "euclidean" || c.Input.Nodes == "" || c.Input.Edges == "" {
		return false
	}
	return !isCSV(c.Input.Nodes) || !isCSV(c.Input.Edges)
}

func isCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
