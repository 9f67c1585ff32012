package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported data source backends.
const (
	BackendGeoServer = "geoserver"
	BackendStore     = "store"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Backend   string
	Dashboard DashboardConfig
	Database  DatabaseConfig
	GeoServer GeoServerConfig
	CORS      CORSConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// DashboardConfig holds the presentation defaults of the dashboard.
type DashboardConfig struct {
	DefaultParcel    string
	TimeRangeDays    int
	MeasurementLimit int
	RefreshOnLoad    bool
	MapCenterLat     float64
	MapCenterLng     float64
	MapZoom          int
	HealthTimeout    time.Duration
}

// DatabaseConfig holds PostgreSQL connection configuration for the store backend.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	PoolMin  int
	PoolMax  int
}

// GeoServerConfig holds the endpoints and query defaults of the GeoServer
// and parcel processing server backend.
type GeoServerConfig struct {
	ParcelServerURL string
	GeoServerURL    string
	Workspace       string
	ParcelLayer     string
	KatOpstina      string
	DataDir         string
	CSVDays         int
	CSVCloud        int
	RefreshDays     int
	RefreshCloud    int
	CSVCacheTTL     time.Duration
	RequestTimeout  time.Duration
	ValueLayers     map[string]string
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present; values
// already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("BACKEND", BackendGeoServer)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5500")

	v.SetDefault("DEFAULT_PARCEL", "1427/2")
	v.SetDefault("TIME_RANGE_DAYS", 5*365)
	v.SetDefault("MEASUREMENT_LIMIT", 50)
	v.SetDefault("REFRESH_ON_LOAD", true)
	v.SetDefault("MAP_CENTER_LAT", 44.8156)
	v.SetDefault("MAP_CENTER_LNG", 21.2003)
	v.SetDefault("MAP_ZOOM", 16)
	v.SetDefault("HEALTH_TIMEOUT", "8s")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "postgres")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_POOL_MIN", 1)
	v.SetDefault("DB_POOL_MAX", 10)

	v.SetDefault("PARCEL_SERVER_URL", "http://localhost:5010")
	v.SetDefault("GEOSERVER_URL", "http://localhost:8083/geoserver")
	v.SetDefault("GEOSERVER_WORKSPACE", "moj_projekat")
	v.SetDefault("PARCEL_LAYER", "kovin_dkp_pg")
	v.SetDefault("KAT_OPSTINA", "DUBOVAC")
	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("CSV_DAYS", 5*365)
	v.SetDefault("CSV_CLOUD", 100)
	v.SetDefault("REFRESH_DAYS", 30)
	v.SetDefault("REFRESH_CLOUD", 80)
	v.SetDefault("CSV_CACHE_TTL", "10m")
	v.SetDefault("UPSTREAM_TIMEOUT", "5m")
	v.SetDefault("WMS_VALUE_LAYER_NDVI", "moj_projekat:ndvi_parcela_1427_2_DUBOVAC")
	v.SetDefault("WMS_VALUE_LAYER_NDMI", "moj_projekat:ndmi_parcela_1427_2_DUBOVAC")
	v.SetDefault("WMS_VALUE_LAYER_NDRE", "moj_projekat:ndre_value_parcela_1427_2_DUBOVAC")

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("PORT"),
			Env:      v.GetString("ENV"),
			LogLevel: strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		},
		Backend: strings.ToLower(strings.TrimSpace(v.GetString("BACKEND"))),
		Dashboard: DashboardConfig{
			DefaultParcel:    v.GetString("DEFAULT_PARCEL"),
			TimeRangeDays:    v.GetInt("TIME_RANGE_DAYS"),
			MeasurementLimit: v.GetInt("MEASUREMENT_LIMIT"),
			RefreshOnLoad:    v.GetBool("REFRESH_ON_LOAD"),
			MapCenterLat:     v.GetFloat64("MAP_CENTER_LAT"),
			MapCenterLng:     v.GetFloat64("MAP_CENTER_LNG"),
			MapZoom:          v.GetInt("MAP_ZOOM"),
			HealthTimeout:    v.GetDuration("HEALTH_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		GeoServer: GeoServerConfig{
			ParcelServerURL: strings.TrimRight(v.GetString("PARCEL_SERVER_URL"), "/"),
			GeoServerURL:    strings.TrimRight(v.GetString("GEOSERVER_URL"), "/"),
			Workspace:       v.GetString("GEOSERVER_WORKSPACE"),
			ParcelLayer:     v.GetString("PARCEL_LAYER"),
			KatOpstina:      v.GetString("KAT_OPSTINA"),
			DataDir:         v.GetString("DATA_DIR"),
			CSVDays:         v.GetInt("CSV_DAYS"),
			CSVCloud:        v.GetInt("CSV_CLOUD"),
			RefreshDays:     v.GetInt("REFRESH_DAYS"),
			RefreshCloud:    v.GetInt("REFRESH_CLOUD"),
			CSVCacheTTL:     v.GetDuration("CSV_CACHE_TTL"),
			RequestTimeout:  v.GetDuration("UPSTREAM_TIMEOUT"),
			ValueLayers: map[string]string{
				"NDVI": v.GetString("WMS_VALUE_LAYER_NDVI"),
				"NDMI": v.GetString("WMS_VALUE_LAYER_NDMI"),
				"NDRE": v.GetString("WMS_VALUE_LAYER_NDRE"),
			},
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
// Only the settings of the selected backend are checked.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	switch c.Server.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.Server.LogLevel)
	}

	if c.Dashboard.DefaultParcel == "" {
		return fmt.Errorf("DEFAULT_PARCEL is required")
	}
	if c.Dashboard.TimeRangeDays < 1 {
		return fmt.Errorf("TIME_RANGE_DAYS must be at least 1")
	}
	if c.Dashboard.MeasurementLimit < 1 {
		return fmt.Errorf("MEASUREMENT_LIMIT must be at least 1")
	}
	if c.Dashboard.HealthTimeout <= 0 {
		return fmt.Errorf("HEALTH_TIMEOUT must be positive")
	}

	switch c.Backend {
	case BackendGeoServer:
		if err := c.GeoServer.validate(); err != nil {
			return err
		}
	case BackendStore:
		if err := c.Database.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("BACKEND must be %q or %q, got %q", BackendGeoServer, BackendStore, c.Backend)
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	return nil
}

func (d DatabaseConfig) validate() error {
	if d.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if d.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if d.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if d.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if d.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if isPlaceholder(d.Password) {
		return fmt.Errorf("DB_PASSWORD still holds a placeholder value")
	}
	if d.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if d.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if d.PoolMin > d.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}
	return nil
}

func (g GeoServerConfig) validate() error {
	if g.ParcelServerURL == "" {
		return fmt.Errorf("PARCEL_SERVER_URL is required")
	}
	if g.GeoServerURL == "" {
		return fmt.Errorf("GEOSERVER_URL is required")
	}
	if g.Workspace == "" {
		return fmt.Errorf("GEOSERVER_WORKSPACE is required")
	}
	if g.ParcelLayer == "" {
		return fmt.Errorf("PARCEL_LAYER is required")
	}
	if g.CSVCacheTTL <= 0 {
		return fmt.Errorf("CSV_CACHE_TTL must be positive")
	}
	if g.RequestTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}
	return nil
}

// isPlaceholder detects credentials copied unchanged from a sample file.
func isPlaceholder(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return strings.HasPrefix(v, "your_") || strings.HasPrefix(v, "your-") ||
		v == "changeme" || v == "change_me" || v == "<password>"
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
