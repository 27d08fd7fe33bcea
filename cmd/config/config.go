package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"sensekit-server/internal/calibration"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvironmentLocal = "local"

	_envPrefix  = "sensekit_server"
	_configName = "ingestor"
)

var loadConfigOnce sync.Once
var configInstance AppConfig

// osArgs is swapped in tests.
var osArgs = func() []string {
	return os.Args[1:]
}

// LoadConfig reads the configuration once per process. The file is taken
// from --config when given, otherwise ingestor.yaml is looked up in ./config
// and /config. A broken configuration aborts startup.
func LoadConfig() AppConfig {
	loadConfigOnce.Do(func() {
		flags := pflag.NewFlagSet("ingestor", pflag.ContinueOnError)
		path := flags.String("config", "", "path to the configuration file")
		flags.ParseErrorsWhitelist.UnknownFlags = true
		if err := flags.Parse(osArgs()); err != nil {
			panic(fmt.Errorf("parsing flags: %w", err))
		}

		config, err := Load(*path)
		if err != nil {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
		configInstance = config
	})

	return configInstance
}

// Load builds the configuration from defaults, the optional file at path
// and SENSEKIT_SERVER_* environment variables, in increasing precedence.
func Load(path string) (AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(_envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(_configName)
		v.AddConfigPath("config")
		v.AddConfigPath("/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return AppConfig{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var profiles []profileConfig
	if err := v.UnmarshalKey("calibration.profiles", &profiles); err != nil {
		return AppConfig{}, fmt.Errorf("decoding calibration profiles: %w", err)
	}

	qos := v.GetInt("mqtt_client.qos")
	if qos < 0 || qos > 2 {
		return AppConfig{}, fmt.Errorf("mqtt_client.qos must be 0, 1 or 2, got %d", qos)
	}

	config := AppConfig{
		General: GeneralConfig{
			LogLevel:    v.GetString("general.log_level"),
			Environment: v.GetString("general.environment"),
		},
		MQTTClient: MQTTClientConfig{
			Broker:       v.GetString("mqtt_client.broker"),
			ClientID:     v.GetString("mqtt_client.client_id"),
			Username:     v.GetString("mqtt_client.username"),
			Password:     v.GetString("mqtt_client.password"),
			QoS:          byte(qos),
			HardwareLine: v.GetString("mqtt_client.hardware_line"),
			Backoff: BackoffConfig{
				InitialInterval: v.GetDuration("mqtt_client.backoff.initial_interval"),
				MaxInterval:     v.GetDuration("mqtt_client.backoff.max_interval"),
				Multiplier:      v.GetFloat64("mqtt_client.backoff.multiplier"),
				Jitter:          v.GetFloat64("mqtt_client.backoff.jitter"),
			},
		},
		Ingestion: IngestionConfig{
			QueueSize:         v.GetInt("ingestion.queue_size"),
			Workers:           v.GetInt("ingestion.workers"),
			OverflowPolicy:    v.GetString("ingestion.overflow_policy"),
			SinkRetryAttempts: v.GetInt("ingestion.sink_retry_attempts"),
			SinkRetryInterval: v.GetDuration("ingestion.sink_retry_interval"),
			DrainTimeout:      v.GetDuration("ingestion.drain_timeout"),
		},
		Database: DatabaseConfig{
			DSN:     v.GetString("database.dsn"),
			Timeout: v.GetDuration("database.timeout"),
		},
		Directory: DirectoryConfig{
			CacheTTL: v.GetDuration("directory.cache_ttl"),
			Seed:     v.GetStringMapString("directory.seed"),
		},
		Kafka: KafkaConfig{
			Enabled:       v.GetBool("kafka.enabled"),
			Brokers:       v.GetStringSlice("kafka.brokers"),
			ReadingsTopic: v.GetString("kafka.readings_topic"),
		},
	}

	for i, profile := range profiles {
		converted, err := profile.toProfile()
		if err != nil {
			return AppConfig{}, fmt.Errorf("calibration profile %d: %w", i, err)
		}
		config.Calibration.Profiles = append(config.Calibration.Profiles, converted)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.environment", "production")

	v.SetDefault("mqtt_client.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt_client.client_id", "sensekit_ingestor")
	v.SetDefault("mqtt_client.qos", 0)
	v.SetDefault("mqtt_client.hardware_line", "sck")
	v.SetDefault("mqtt_client.backoff.initial_interval", 500*time.Millisecond)
	v.SetDefault("mqtt_client.backoff.max_interval", 30*time.Second)
	v.SetDefault("mqtt_client.backoff.multiplier", 2.0)
	v.SetDefault("mqtt_client.backoff.jitter", 0.5)

	v.SetDefault("ingestion.queue_size", 1024)
	v.SetDefault("ingestion.workers", 4)
	v.SetDefault("ingestion.overflow_policy", "block")
	v.SetDefault("ingestion.sink_retry_attempts", 3)
	v.SetDefault("ingestion.sink_retry_interval", 200*time.Millisecond)
	v.SetDefault("ingestion.drain_timeout", 10*time.Second)

	v.SetDefault("database.timeout", 5*time.Second)
	v.SetDefault("directory.cache_ttl", 5*time.Minute)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.readings_topic", "readings")
}

type AppConfig struct {
	General     GeneralConfig
	MQTTClient  MQTTClientConfig
	Ingestion   IngestionConfig
	Database    DatabaseConfig
	Directory   DirectoryConfig
	Kafka       KafkaConfig
	Calibration CalibrationConfig
}

func (c AppConfig) IsLocal() bool {
	return c.General.Environment == EnvironmentLocal
}

type GeneralConfig struct {
	LogLevel    string
	Environment string
}

type MQTTClientConfig struct {
	Broker       string
	ClientID     string
	Username     string
	Password     string
	QoS          byte
	HardwareLine string
	Backoff      BackoffConfig
}

type BackoffConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          float64
}

type IngestionConfig struct {
	QueueSize         int
	Workers           int
	OverflowPolicy    string
	SinkRetryAttempts int
	SinkRetryInterval time.Duration
	DrainTimeout      time.Duration
}

type DatabaseConfig struct {
	DSN     string
	Timeout time.Duration
}

type DirectoryConfig struct {
	CacheTTL time.Duration
	// Seed maps device ids to hardware ids, registered at startup in local runs.
	Seed map[string]string
}

type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	ReadingsTopic string
}

type CalibrationConfig struct {
	Profiles []calibration.Profile
}

type profileConfig struct {
	HardwareID string                   `mapstructure:"hardware_id"`
	Aliases    []string                 `mapstructure:"aliases"`
	Channels   map[string]int           `mapstructure:"channels"`
	Formulas   map[string]formulaConfig `mapstructure:"formulas"`
}

type formulaConfig struct {
	Type    string      `mapstructure:"type"`
	Scale   float64     `mapstructure:"scale"`
	Offset  float64     `mapstructure:"offset"`
	Divisor float64     `mapstructure:"divisor"`
	Table   [][]float64 `mapstructure:"table"`
}

func (p profileConfig) toProfile() (calibration.Profile, error) {
	profile := calibration.Profile{
		HardwareID: p.HardwareID,
		Aliases:    p.Aliases,
		Channels:   p.Channels,
		Formulas:   make(map[string]calibration.FormulaSpec, len(p.Formulas)),
	}

	for sensor, formula := range p.Formulas {
		table := make([]calibration.Threshold, 0, len(formula.Table))
		for i, row := range formula.Table {
			if len(row) != 2 {
				return calibration.Profile{}, fmt.Errorf("%s table row %d: want [threshold, output], got %v", sensor, i, row)
			}
			if row[0] != float64(int64(row[0])) {
				return calibration.Profile{}, fmt.Errorf("%s table row %d: threshold %v is not an integer", sensor, i, row[0])
			}
			table = append(table, calibration.Threshold{Raw: int64(row[0]), Output: row[1]})
		}

		profile.Formulas[sensor] = calibration.FormulaSpec{
			Type:    formula.Type,
			Scale:   formula.Scale,
			Offset:  formula.Offset,
			Divisor: formula.Divisor,
			Table:   table,
		}
	}

	return profile, nil
}
