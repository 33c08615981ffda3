package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"sensor-bridge/internal/shared_kernel/codecs"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var loadConfigOnce sync.Once
var configInstance AppConfig

// envBindings keeps the environment variable names the deployments already
// use, so no prefix is applied.
var envBindings = map[string]string{
	"general.log_level":                 "LOG_LEVEL",
	"general.environment":               "ENV",
	"http.addr":                         "HTTP_ADDR",
	"telemetry.enabled":                 "OTEL_ENABLED",
	"telemetry.endpoint":                "OTELCOL_ENDPOINT",
	"loadgen.hierarchy":                 "HIERARCHY",
	"loadgen.num_nested_groups":         "NUM_NESTED_GROUPS",
	"loadgen.num_sensors":               "NUM_SENSORS",
	"loadgen.value":                     "VALUE",
	"loadgen.send_registry":             "SEND_REGISTRY",
	"loadgen.do_nothing":                "DO_NOTHING",
	"loadgen.threads":                   "THREADS",
	"loadgen.registry_grace_period":     "REGISTRY_GRACE_PERIOD",
	"loadgen.registry_refresh_schedule": "REGISTRY_REFRESH_SCHEDULE",
	"loadgen.lifetime":                  "LIFETIME",
	"kafka.bootstrap_servers":           "KAFKA_BOOTSTRAP_SERVERS",
	"kafka.input_topic":                 "KAFKA_INPUT_TOPIC",
	"kafka.configuration_topic":         "KAFKA_CONFIGURATION_TOPIC",
	"kafka.batch_size":                  "KAFKA_BATCH_SIZE",
	"kafka.linger_ms":                   "KAFKA_LINGER_MS",
	"kafka.buffer_memory":               "KAFKA_BUFFER_MEMORY",
	"kafka.codec":                       "KAFKA_CODEC",
	"kafka.schema_registry":             "SCHEMA_REGISTRY_URL",
	"kafka.connect_attempts":            "KAFKA_CONNECT_ATTEMPTS",
	"bridge.sensor_id":                  "RARITAN_SENSOR_ID",
	"bridge.pipe_capacity":              "PIPE_CAPACITY",
	"mqtt_client.broker":                "MQTT_BROKER",
	"mqtt_client.topic":                 "MQTT_TOPIC",
	"mqtt_client.client_id":             "MQTT_CLIENT_ID",
	"mqtt_client.username":              "MQTT_USERNAME",
	"mqtt_client.password":              "MQTT_PASSWORD",
}

var defaults = map[string]any{
	"general.log_level":                 "info",
	"general.environment":               "production",
	"http.addr":                         ":3000",
	"telemetry.enabled":                 false,
	"telemetry.endpoint":                "localhost:4317",
	"loadgen.hierarchy":                 "deep",
	"loadgen.num_nested_groups":         1,
	"loadgen.num_sensors":               1,
	"loadgen.value":                     10,
	"loadgen.send_registry":             false,
	"loadgen.do_nothing":                true,
	"loadgen.threads":                   1,
	"loadgen.registry_grace_period":     "30s",
	"loadgen.registry_refresh_schedule": "",
	"loadgen.lifetime":                  "720h",
	"kafka.bootstrap_servers":           "localhost:9092",
	"kafka.input_topic":                 "input",
	"kafka.configuration_topic":         "configuration",
	"kafka.codec":                       "avro",
	"kafka.schema_registry":             "",
	"kafka.connect_attempts":            10,
	"bridge.sensor_id":                  "activePower",
	"bridge.pipe_capacity":              512,
}

// flagBindings maps command line flags onto config keys. A flag only wins
// when it was set explicitly.
var flagBindings = map[string]string{
	"log-level": "general.log_level",
	"http-addr": "http.addr",
	"hierarchy": "loadgen.hierarchy",
	"threads":   "loadgen.threads",
}

// RegisterFlags declares the command line flags understood by Load.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file (default: config/server.yaml or /config/server.yaml)")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("http-addr", ":3000", "listen address of the ops server")
	fs.String("hierarchy", "deep", "sensor topology shape: deep or full")
	fs.Int("threads", 1, "number of publisher workers")
}

// NewViper returns a viper instance with defaults, environment bindings and
// the flags of fs bound. fs may be nil.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	v.SetConfigName("server")
	v.SetConfigType("yaml")
	v.AddConfigPath("config")
	v.AddConfigPath("/config")

	if fs == nil {
		return v, nil
	}
	for name, key := range flagBindings {
		if flag := fs.Lookup(name); flag != nil {
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}
	if flag := fs.Lookup("config"); flag != nil && flag.Value.String() != "" {
		v.SetConfigFile(flag.Value.String())
	}

	return v, nil
}

func LoadConfig() AppConfig {
	loadConfigOnce.Do(func() {
		fs := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
		RegisterFlags(fs)
		if err := fs.Parse(os.Args[1:]); err != nil {
			panic(fmt.Errorf("fatal error parsing flags: %w", err))
		}

		v, err := NewViper(fs)
		if err != nil {
			panic(fmt.Errorf("fatal error config: %w", err))
		}

		configInstance, err = Load(v)
		if err != nil {
			panic(fmt.Errorf("fatal error config: %w", err))
		}
	})

	return configInstance
}

// Load reads the optional config file and parses every key strictly.
func Load(v *viper.Viper) (AppConfig, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return AppConfig{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	p := &parser{v: v}
	cfg := AppConfig{
		General: GeneralConfig{
			LogLevel:    strings.ToLower(p.str("general.log_level")),
			Environment: p.str("general.environment"),
		},
		HTTP: HTTPConfig{
			Addr: p.str("http.addr"),
		},
		Telemetry: TelemetryConfig{
			Enabled:  p.boolean("telemetry.enabled"),
			Endpoint: p.str("telemetry.endpoint"),
		},
		LoadGen: LoadGenConfig{
			Hierarchy:               p.str("loadgen.hierarchy"),
			NumNestedGroups:         p.integer("loadgen.num_nested_groups"),
			NumSensors:              p.integer("loadgen.num_sensors"),
			Value:                   p.int32("loadgen.value"),
			SendRegistry:            p.boolean("loadgen.send_registry"),
			DoNothing:               p.boolean("loadgen.do_nothing"),
			Threads:                 p.integer("loadgen.threads"),
			RegistryGracePeriod:     p.duration("loadgen.registry_grace_period"),
			RegistryRefreshSchedule: p.str("loadgen.registry_refresh_schedule"),
			Lifetime:                p.duration("loadgen.lifetime"),
		},
		Kafka: KafkaConfig{
			Brokers:            p.csv("kafka.bootstrap_servers"),
			InputTopic:         p.str("kafka.input_topic"),
			ConfigurationTopic: p.str("kafka.configuration_topic"),
			BatchSize:          p.str("kafka.batch_size"),
			LingerMs:           p.str("kafka.linger_ms"),
			BufferMemory:       p.str("kafka.buffer_memory"),
			Codec:              strings.ToLower(p.str("kafka.codec")),
			SchemaRegistry:     p.str("kafka.schema_registry"),
			ConnectAttempts:    p.integer("kafka.connect_attempts"),
		},
		Bridge: BridgeConfig{
			SensorID:     p.str("bridge.sensor_id"),
			PipeCapacity: p.integer("bridge.pipe_capacity"),
		},
		MQTTClient: MQTTClientConfig{
			Broker:   p.str("mqtt_client.broker"),
			Topic:    p.str("mqtt_client.topic"),
			ClientID: p.str("mqtt_client.client_id"),
			Username: p.str("mqtt_client.username"),
			Password: p.str("mqtt_client.password"),
		},
	}
	if p.err != nil {
		return AppConfig{}, p.err
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

var ErrInvalidConfig = errors.New("invalid config")

func (c AppConfig) validate() error {
	var errs []error
	if _, ok := logLevels[c.General.LogLevel]; !ok {
		errs = append(errs, fmt.Errorf("%w: general.log_level %q", ErrInvalidConfig, c.General.LogLevel))
	}
	if c.LoadGen.Threads < 0 {
		errs = append(errs, fmt.Errorf("%w: loadgen.threads must not be negative", ErrInvalidConfig))
	}
	if c.LoadGen.RegistryGracePeriod < 0 {
		errs = append(errs, fmt.Errorf("%w: loadgen.registry_grace_period must not be negative", ErrInvalidConfig))
	}
	if c.LoadGen.Lifetime <= 0 {
		errs = append(errs, fmt.Errorf("%w: loadgen.lifetime must be positive", ErrInvalidConfig))
	}
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, fmt.Errorf("%w: kafka.bootstrap_servers is empty", ErrInvalidConfig))
	}
	if _, ok := knownCodecs[c.Kafka.Codec]; !ok {
		errs = append(errs, fmt.Errorf("%w: kafka.codec %q", ErrInvalidConfig, c.Kafka.Codec))
	}
	if c.Kafka.Codec == codecs.Confluent && c.Kafka.SchemaRegistry == "" {
		errs = append(errs, fmt.Errorf("%w: kafka.schema_registry is required by the confluent codec", ErrInvalidConfig))
	}
	if c.Bridge.PipeCapacity < 1 {
		errs = append(errs, fmt.Errorf("%w: bridge.pipe_capacity must be positive", ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

var logLevels = map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "error": {}}

var knownCodecs = map[string]struct{}{codecs.Avro: {}, codecs.JSON: {}, codecs.Msgpack: {}, codecs.Confluent: {}}

// parser keeps the first conversion error so Load reports it with its key.
type parser struct {
	v   *viper.Viper
	err error
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}
}

func (p *parser) str(key string) string {
	value, err := cast.ToStringE(p.v.Get(key))
	if err != nil {
		p.fail(key, err)
	}
	return strings.TrimSpace(value)
}

func (p *parser) integer(key string) int {
	value, err := decimal(p.v.Get(key), strconv.IntSize)
	if err != nil {
		p.fail(key, err)
		return 0
	}
	return int(value)
}

func (p *parser) int32(key string) int32 {
	value, err := decimal(p.v.Get(key), 32)
	if err != nil {
		p.fail(key, err)
		return 0
	}
	if value < -1<<31 || value > 1<<31-1 {
		p.fail(key, fmt.Errorf("%d overflows int32", value))
		return 0
	}
	return int32(value)
}

// decimal reads strings in base 10 only, so "010" is ten. Other values
// (YAML numbers, defaults) go through cast.
func decimal(value any, bitSize int) (int64, error) {
	if s, ok := value.(string); ok {
		return strconv.ParseInt(strings.TrimSpace(s), 10, bitSize)
	}
	return cast.ToInt64E(value)
}

func (p *parser) boolean(key string) bool {
	value, err := cast.ToBoolE(trimmed(p.v.Get(key)))
	if err != nil {
		p.fail(key, err)
	}
	return value
}

func (p *parser) duration(key string) time.Duration {
	value, err := cast.ToDurationE(trimmed(p.v.Get(key)))
	if err != nil {
		p.fail(key, err)
	}
	return value
}

// csv accepts both a comma separated string and a YAML list.
func (p *parser) csv(key string) []string {
	raw := p.v.Get(key)
	var items []string
	if s, ok := raw.(string); ok {
		items = strings.Split(s, ",")
	} else {
		list, err := cast.ToStringSliceE(raw)
		if err != nil {
			p.fail(key, err)
			return nil
		}
		items = list
	}

	result := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}

func trimmed(value any) any {
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return value
}

type AppConfig struct {
	General    GeneralConfig
	HTTP       HTTPConfig
	Telemetry  TelemetryConfig
	LoadGen    LoadGenConfig
	Kafka      KafkaConfig
	Bridge     BridgeConfig
	MQTTClient MQTTClientConfig
}

type GeneralConfig struct {
	LogLevel    string
	Environment string
}

type HTTPConfig struct {
	Addr string
}

type TelemetryConfig struct {
	Enabled  bool
	Endpoint string
}

type LoadGenConfig struct {
	Hierarchy               string
	NumNestedGroups         int
	NumSensors              int
	Value                   int32
	SendRegistry            bool
	DoNothing               bool
	Threads                 int
	RegistryGracePeriod     time.Duration
	RegistryRefreshSchedule string
	Lifetime                time.Duration
}

type KafkaConfig struct {
	Brokers            []string
	InputTopic         string
	ConfigurationTopic string
	BatchSize          string
	LingerMs           string
	BufferMemory       string
	Codec              string
	SchemaRegistry     string
	ConnectAttempts    int
}

type BridgeConfig struct {
	SensorID     string
	PipeCapacity int
}

type MQTTClientConfig struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
}

// Enabled reports whether the bridge should subscribe to MQTT.
func (c MQTTClientConfig) Enabled() bool {
	return c.Broker != "" && c.Topic != ""
}
