package config

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/timeplus-io/tp-monitor-engine/pkg/models"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Timeplus TimeplusConfig `mapstructure:"timeplus"`
	Alerting AlertingConfig `mapstructure:"alerting"`
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Port            string `mapstructure:"port"`
	AllowedOrigins  string `mapstructure:"allowedOrigins"`
	ShutdownTimeout int    `mapstructure:"shutdownTimeout"`
}

// TimeplusConfig holds the Timeplus connection configuration
type TimeplusConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	Username  string `mapstructure:"username"`
	Workspace string `mapstructure:"workspace"`
}

// AlertingConfig holds the alert lifecycle knobs
type AlertingConfig struct {
	// AlertBackoffMillis / AlertBackoffCount drive the constant retry policy
	// for persisting alerts after a run.
	AlertBackoffMillis int `mapstructure:"alertBackoffMillis"`
	AlertBackoffCount  int `mapstructure:"alertBackoffCount"`

	// MoveAlertsBackoffMillis / MoveAlertsBackoffCount drive the exponential
	// retry policy for moving alerts on monitor delete/update.
	MoveAlertsBackoffMillis int `mapstructure:"moveAlertsBackoffMillis"`
	MoveAlertsBackoffCount  int `mapstructure:"moveAlertsBackoffCount"`

	// AlertHistoryEnabled archives completed and deleted alerts.
	AlertHistoryEnabled bool `mapstructure:"alertHistoryEnabled"`

	// RequestTimeoutSeconds bounds each notification dispatch.
	RequestTimeoutSeconds int `mapstructure:"requestTimeoutSeconds"`

	// AllowedDestinations restricts destination types; empty means the
	// built-in default set.
	AllowedDestinations []string `mapstructure:"allowedDestinations"`

	// DeniedHosts are hostnames notifications must never reach.
	DeniedHosts []string `mapstructure:"deniedHosts"`

	// Destinations is the configured destination set.
	Destinations []models.Destination `mapstructure:"destinations"`
}

// AlertBackoff returns the constant policy parameters as durations.
func (c *AlertingConfig) AlertBackoff() (time.Duration, int) {
	return time.Duration(c.AlertBackoffMillis) * time.Millisecond, c.AlertBackoffCount
}

// MoveAlertsBackoff returns the exponential policy parameters as durations.
func (c *AlertingConfig) MoveAlertsBackoff() (time.Duration, int) {
	return time.Duration(c.MoveAlertsBackoffMillis) * time.Millisecond, c.MoveAlertsBackoffCount
}

// RequestTimeout returns the notification dispatch timeout.
func (c *AlertingConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// LoadConfig loads the application configuration from file or environment variables
func LoadConfig(configPath string) (*Config, error) {
	var config Config

	// Set default values
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.allowedOrigins", "*")
	viper.SetDefault("server.shutdownTimeout", 10)
	viper.SetDefault("alerting.alertBackoffMillis", 50)
	viper.SetDefault("alerting.alertBackoffCount", 2)
	viper.SetDefault("alerting.moveAlertsBackoffMillis", 250)
	viper.SetDefault("alerting.moveAlertsBackoffCount", 3)
	viper.SetDefault("alerting.alertHistoryEnabled", true)
	viper.SetDefault("alerting.requestTimeoutSeconds", 10)

	// Allow environment variables to override config file
	viper.SetEnvPrefix("TP_MONITOR")
	viper.AutomaticEnv()

	// If config file is provided, read it
	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			logrus.Warnf("Error reading config file: %v", err)
		}
	}

	// Unmarshal config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
