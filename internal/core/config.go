package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to the server.
type Config struct {
	// Hostname or IP address on which the server will listen for connections.
	Hostname string `mapstructure:"hostname"`
	// Port on which the game server listens.
	Port int `mapstructure:"port"`
	// Maximum number of concurrent connections the server will allow.
	MaxConnections int `mapstructure:"max_connections"`
	// Full path to file to which logs will be written. Blank will write to stdout.
	LogFilePath string `mapstructure:"log_file_path"`
	// Minimum level of a log required to be written. Options: debug, info, warn, error
	LogLevel string `mapstructure:"log_level"`

	Network struct {
		// Largest message body a client may send, in bytes.
		MaxFrameSize int `mapstructure:"max_frame_size"`
		// Clients that send nothing for this long are disconnected. 0 disables the check.
		IdleTimeout time.Duration `mapstructure:"idle_timeout"`
		// Number of outgoing messages buffered per client.
		SendQueueSize int `mapstructure:"send_queue_size"`
		// Number of consecutive malformed messages tolerated before disconnecting.
		DecodeFailureLimit int `mapstructure:"decode_failure_limit"`
		// Size of the socket read buffer per client.
		ReadBufferSize int `mapstructure:"read_buffer_size"`
	} `mapstructure:"network"`

	Database struct {
		// Either sqlite or postgres.
		Engine string `mapstructure:"engine"`
		// Database file used by the sqlite engine.
		Filename string `mapstructure:"filename"`
		// Hostname of the Postgres database instance.
		Host string `mapstructure:"host"`
		// Port on db_host on which the Postgres instance is accepting connections.
		Port int `mapstructure:"port"`
		// Name of the database in Postgres.
		Name string `mapstructure:"name"`
		// Username and password of a user with full RW privileges to ${db_name}.
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		// Set to verify-full if the Postgres instance supports SSL.
		SSLMode string `mapstructure:"sslmode"`
		// How long loaded levels stay in memory. 0 keeps them until restart.
		CacheTTL time.Duration `mapstructure:"cache_ttl"`
	} `mapstructure:"database"`

	Game struct {
		// Gems granted to every new account.
		StartingGems int32 `mapstructure:"starting_gems"`
		// JSON file holding the village given to every new account.
		StartingVillageFile string `mapstructure:"starting_village_file"`
		// Environment name reported to the client on login.
		ServerEnvironment string `mapstructure:"server_environment"`
		// Client version the server reports in LoginSuccess.
		MajorVersion    int32 `mapstructure:"major_version"`
		MinorVersion    int32 `mapstructure:"minor_version"`
		RevisionVersion int32 `mapstructure:"revision_version"`
	} `mapstructure:"game"`

	Debugging struct {
		// Enable extra info-providing mechanisms for the server.
		Enabled bool `mapstructure:"enabled"`
		// Port on which a pprof server will be started if debug mode is enabled.
		PprofPort int `mapstructure:"pprof_port"`
		// Log packets to stdout.
		PacketLoggingEnabled bool `mapstructure:"packet_logging_enabled"`
		// Enable database-level query logging.
		DatabaseLoggingEnabled bool `mapstructure:"database_logging_enabled"`
	} `mapstructure:"debugging"`
}

const envVarPrefix = "BASTION"

var defaults = map[string]interface{}{
	"hostname":                           "0.0.0.0",
	"port":                               9339,
	"max_connections":                    1000,
	"log_level":                          "info",
	"network.max_frame_size":             1 << 20,
	"network.idle_timeout":               "2m",
	"network.send_queue_size":            64,
	"network.decode_failure_limit":       8,
	"network.read_buffer_size":           4096,
	"database.engine":                    "sqlite",
	"database.filename":                  "bastion.db",
	"database.port":                      5432,
	"database.sslmode":                   "disable",
	"database.cache_ttl":                 "30m",
	"game.starting_gems":                 750,
	"game.server_environment":            "prod",
	"game.major_version":                 8,
	"game.minor_version":                 0,
	"game.revision_version":              551,
	"debugging.pprof_port":               4000,
	"debugging.packet_logging_enabled":   false,
	"debugging.database_logging_enabled": false,
}

// LoadConfig initializes Viper with the contents of the config file under
// configPath. A missing config file is not an error; defaults and
// environment variables are used instead.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(configPath)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(envVarPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, database.host can be set using: <envVarPrefix>_DATABASE_HOST
	for _, k := range v.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := v.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			return nil, fmt.Errorf("error binding %s to %s: %w", k, envVarPrefix+"_"+envVar, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config object: %w", err)
	}
	return config, nil
}

const databaseURITemplate = "host=%s port=%d dbname=%s user=%s password=%s sslmode=%s"

// DatabaseURL returns the data source for the configured database engine.
func (c *Config) DatabaseURL() string {
	if c.Database.Engine != "postgres" {
		return c.Database.Filename
	}
	return fmt.Sprintf(
		databaseURITemplate,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Username,
		c.Database.Password,
		c.Database.SSLMode,
	)
}

// Address returns the host:port the game server listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Port)
}
