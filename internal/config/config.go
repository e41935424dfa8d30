package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// SessionConfig holds multiplayer session settings as a typed snapshot.
type SessionConfig struct {
	ServerURL         string        `json:"serverUrl" mapstructure:"serverUrl"`
	UpdateRate        float64       `json:"updateRate" mapstructure:"updateRate"`
	HeartbeatInterval time.Duration `json:"heartbeatInterval" mapstructure:"heartbeatInterval"`
	ReconnectBackoff  time.Duration `json:"reconnectBackoff" mapstructure:"reconnectBackoff"`
	MaxReconnects     int           `json:"maxReconnects" mapstructure:"maxReconnects"`
}

// RaceConfig holds route tolerance defaults, all in degrees.
type RaceConfig struct {
	CorridorHalfWidth float64 `json:"corridorHalfWidth" mapstructure:"corridorHalfWidth"`
	CheckpointRadius  float64 `json:"checkpointRadius" mapstructure:"checkpointRadius"`
	FinishRadius      float64 `json:"finishRadius" mapstructure:"finishRadius"`
}

// ResultsConfig holds race-result persistence settings.
type ResultsConfig struct {
	Backend  string `json:"backend" mapstructure:"backend"` // "sqlite" or "postgres"
	Path     string `json:"path" mapstructure:"path"`       // sqlite file, empty = in-memory
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// Load reads configuration from a JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./simlogs")

	viper.SetDefault("session.serverUrl", "ws://localhost:3000/api/ws")
	viper.SetDefault("session.updateRate", 10.0)
	viper.SetDefault("session.heartbeatInterval", "5s")
	viper.SetDefault("session.reconnectBackoff", "2s")
	viper.SetDefault("session.maxReconnects", 5)

	viper.SetDefault("race.corridorHalfWidth", 3e-4)
	viper.SetDefault("race.checkpointRadius", 1.5e-4)
	viper.SetDefault("race.finishRadius", 1.5e-4)

	viper.SetDefault("results.backend", "sqlite")
	viper.SetDefault("results.path", "")
	viper.SetDefault("results.host", "localhost")
	viper.SetDefault("results.port", "5432")
	viper.SetDefault("results.username", "postgres")
	viper.SetDefault("results.password", "postgres")
	viper.SetDefault("results.database", "simcore")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "simcore-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("simcore.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetSessionConfig returns the multiplayer session settings.
func GetSessionConfig() SessionConfig {
	return SessionConfig{
		ServerURL:         viper.GetString("session.serverUrl"),
		UpdateRate:        viper.GetFloat64("session.updateRate"),
		HeartbeatInterval: viper.GetDuration("session.heartbeatInterval"),
		ReconnectBackoff:  viper.GetDuration("session.reconnectBackoff"),
		MaxReconnects:     viper.GetInt("session.maxReconnects"),
	}
}

// GetRaceConfig returns the route tolerance defaults.
func GetRaceConfig() RaceConfig {
	return RaceConfig{
		CorridorHalfWidth: viper.GetFloat64("race.corridorHalfWidth"),
		CheckpointRadius:  viper.GetFloat64("race.checkpointRadius"),
		FinishRadius:      viper.GetFloat64("race.finishRadius"),
	}
}

// GetResultsConfig returns the race-result persistence settings.
func GetResultsConfig() ResultsConfig {
	return ResultsConfig{
		Backend:  viper.GetString("results.backend"),
		Path:     viper.GetString("results.path"),
		Host:     viper.GetString("results.host"),
		Port:     viper.GetString("results.port"),
		Username: viper.GetString("results.username"),
		Password: viper.GetString("results.password"),
		Database: viper.GetString("results.database"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
