package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is constructed once at
// the start of a run and passed explicitly into each component; nothing
// mutates it afterwards.
type Config struct {
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Metro   MetroConfig   `yaml:"metro" mapstructure:"metro"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Spatial SpatialConfig `yaml:"spatial" mapstructure:"spatial"`
	Schema  SchemaConfig  `yaml:"schema" mapstructure:"schema"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// TierConfig declares one geometry-resolution tier. Tiers are consulted in
// the order they appear; the first table that knows a record's derived key
// wins. Exactly one of URL or ShapefilePath supplies the geometry table.
type TierConfig struct {
	Name          string `yaml:"name" mapstructure:"name"`
	URL           string `yaml:"url" mapstructure:"url"`
	ShapefilePath string `yaml:"shapefile_path" mapstructure:"shapefile_path"`
	KeyField      string `yaml:"key_field" mapstructure:"key_field"`
	KeyWidth      int    `yaml:"key_width" mapstructure:"key_width"`
	// TruncateTo > 0 derives the lookup key by truncating the record's
	// normalized key to the leading N characters.
	TruncateTo int `yaml:"truncate_to" mapstructure:"truncate_to"`
}

// SourcesConfig points at the upstream datasets.
type SourcesConfig struct {
	CrimeURL    string       `yaml:"crime_url" mapstructure:"crime_url"`
	CrimeFormat string       `yaml:"crime_format" mapstructure:"crime_format"` // csv or xlsx
	Tiers       []TierConfig `yaml:"tiers" mapstructure:"tiers"`
	RoutesURL   string       `yaml:"routes_url" mapstructure:"routes_url"`
	StopsURL    string       `yaml:"stops_url" mapstructure:"stops_url"`
	RouteMode   string       `yaml:"route_mode" mapstructure:"route_mode"`
	Label       string       `yaml:"label" mapstructure:"label"`

	// Attribute names on the route/stop feature layers.
	RouteIDField    string `yaml:"route_id_field" mapstructure:"route_id_field"`
	RouteModeField  string `yaml:"route_mode_field" mapstructure:"route_mode_field"`
	StopIDField     string `yaml:"stop_id_field" mapstructure:"stop_id_field"`
	StopRoutesField string `yaml:"stop_routes_field" mapstructure:"stop_routes_field"`
}

// MetroConfig restricts crime records to the target metropolitan area.
type MetroConfig struct {
	Districts []string `yaml:"districts" mapstructure:"districts"`
}

// FetchConfig tunes the paginated feature fetch.
type FetchConfig struct {
	PageSize       int     `yaml:"page_size" mapstructure:"page_size"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// SpatialConfig tunes the association engine. BufferMeters 0 means exact
// polygon/line intersection; a positive value associates any crime area
// within that distance of the route line.
type SpatialConfig struct {
	ProjectedEPSG int     `yaml:"projected_epsg" mapstructure:"projected_epsg"`
	BufferMeters  float64 `yaml:"buffer_meters" mapstructure:"buffer_meters"`
	UseStopMethod bool    `yaml:"use_stop_method" mapstructure:"use_stop_method"`
}

// SchemaConfig locates the column-alias mapping file. An empty path uses the
// built-in defaults.
type SchemaConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// OutputConfig names the produced artifacts.
type OutputConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	GeoJSONFile string `yaml:"geojson_file" mapstructure:"geojson_file"`
	StatsFile   string `yaml:"stats_file" mapstructure:"stats_file"`
	DebugCSV    string `yaml:"debug_csv" mapstructure:"debug_csv"`
}

// StoreConfig configures the run-diagnostics store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the artifact server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRANSIT_CRIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("sources.crime_format", "csv")
	v.SetDefault("sources.route_mode", "Bus")
	v.SetDefault("sources.route_id_field", "ROUTENUMBER")
	v.SetDefault("sources.route_mode_field", "MODE")
	v.SetDefault("sources.stop_id_field", "STOPCODE")
	v.SetDefault("sources.stop_routes_field", "ROUTES")
	v.SetDefault("sources.label", "NZ Police (Full Available Dataset) merged with NZ Meshblock/Area Unit Geometry")
	v.SetDefault("metro.districts", []string{"Auckland", "Waitemata", "Counties Manukau", "Franklin", "Auckland City"})
	v.SetDefault("fetch.page_size", 2000)
	v.SetDefault("fetch.requests_per_sec", 2.0)
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "transit-crime-cli/1.0")
	v.SetDefault("spatial.projected_epsg", 2193)
	v.SetDefault("spatial.buffer_meters", 0.0)
	v.SetDefault("spatial.use_stop_method", true)
	v.SetDefault("output.dir", "data")
	v.SetDefault("output.geojson_file", "route_crime_stats.geojson")
	v.SetDefault("output.stats_file", "crime_breakdown.json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "transit-crime.db")
	v.SetDefault("server.port", 8080)
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
