// Package config loads the gateway configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Notification backend selectors.
const (
	BackendKafka  = "kafka"
	BackendPubSub = "pubsub"
)

// Config is the full gateway configuration.
type Config struct {
	Pod     Pod     `yaml:"pod"`
	Server  Server  `yaml:"server"`
	Auth    Auth    `yaml:"auth"`
	Redis   Redis   `yaml:"redis"`
	Offline Offline `yaml:"offline"`
	Notify  Notify  `yaml:"notify"`
	Profile Profile `yaml:"profile"`
}

// Pod identifies this gateway instance in the presence directory.
type Pod struct {
	Name string `yaml:"name"`
}

// Server holds the HTTP listener settings.
type Server struct {
	Addr string `yaml:"addr"`
	// MaxFrameBytes bounds inbound websocket frames; larger frames close the
	// socket with code 1009.
	MaxFrameBytes int64 `yaml:"maxFrameBytes"`
}

// Auth holds the token verification secret.
type Auth struct {
	JWTSecret string `yaml:"jwtSecret"`
}

// Redis holds the shared-store connection settings.
type Redis struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	RelayChannel string `yaml:"relayChannel"`
}

// Offline gates the offline message flow and its retention window.
type Offline struct {
	MessagingEnabled     bool   `yaml:"messagingEnabled"`
	StorageEnabled       bool   `yaml:"storageEnabled"`
	NotificationsEnabled bool   `yaml:"notificationsEnabled"`
	TTLDays              int    `yaml:"ttlDays"`
	NotificationChannel  string `yaml:"notificationChannel"`
}

// Notify selects and configures the notification bus backend.
type Notify struct {
	Backend      string   `yaml:"backend"`
	KafkaBrokers []string `yaml:"kafkaBrokers"`
	// PubSubProject is used when the backend is pubsub.
	PubSubProject string `yaml:"pubsubProject"`
	SampleTopic   string `yaml:"sampleTopic"`
	OfflineTopic  string `yaml:"offlineTopic"`
}

// Profile holds the external profile service settings.
type Profile struct {
	ServiceURL string `yaml:"serviceUrl"`
	CacheSize  int    `yaml:"cacheSize"`
}

// Load reads the YAML file at path (optional), applies environment
// overrides, fills defaults, and validates. A missing JWT secret fails fast.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required: set auth.jwtSecret or GATEWAY_JWT_SECRET")
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrideString(&c.Pod.Name, "GATEWAY_POD_NAME")
	overrideString(&c.Server.Addr, "GATEWAY_SERVER_ADDR")
	overrideString(&c.Auth.JWTSecret, "GATEWAY_JWT_SECRET")
	overrideString(&c.Redis.Addr, "GATEWAY_REDIS_ADDR")
	overrideString(&c.Redis.Password, "GATEWAY_REDIS_PASSWORD")
	overrideString(&c.Profile.ServiceURL, "GATEWAY_PROFILE_SERVICE_URL")
	overrideString(&c.Notify.Backend, "GATEWAY_NOTIFY_BACKEND")
	overrideString(&c.Notify.PubSubProject, "GATEWAY_PUBSUB_PROJECT")
	overrideBool(&c.Offline.MessagingEnabled, "GATEWAY_OFFLINE_MESSAGING_ENABLED")
	overrideBool(&c.Offline.StorageEnabled, "GATEWAY_OFFLINE_STORAGE_ENABLED")
	overrideBool(&c.Offline.NotificationsEnabled, "GATEWAY_OFFLINE_NOTIFICATIONS_ENABLED")
	overrideInt(&c.Offline.TTLDays, "GATEWAY_OFFLINE_TTL_DAYS")
}

func (c *Config) applyDefaults() {
	if c.Pod.Name == "" {
		c.Pod.Name = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxFrameBytes <= 0 {
		c.Server.MaxFrameBytes = 1 << 20
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Offline.TTLDays <= 0 {
		c.Offline.TTLDays = 30
	}
	if c.Offline.NotificationChannel == "" {
		c.Offline.NotificationChannel = "SMS"
	}
	if c.Notify.Backend == "" {
		c.Notify.Backend = BackendKafka
	}
	if c.Profile.CacheSize <= 0 {
		c.Profile.CacheSize = 1000
	}
}

func overrideString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func overrideBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func overrideInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
