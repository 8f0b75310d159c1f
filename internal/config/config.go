// Package config loads DevicePulse configuration through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides: server.port becomes
// DEVICEPULSE_SERVER_PORT.
const EnvPrefix = "DEVICEPULSE"

// Config is a read-only view over a viper instance, optionally rooted at a
// key prefix. The zero value and a Config built from a nil viper return zero
// values for every key.
type Config struct {
	v      *viper.Viper
	prefix string
}

// New wraps v.
func New(v *viper.Viper) *Config {
	return &Config{v: v}
}

func (c *Config) key(k string) string {
	return c.prefix + k
}

func (c *Config) GetString(key string) string {
	if c == nil || c.v == nil {
		return ""
	}
	return c.v.GetString(c.key(key))
}

func (c *Config) GetInt(key string) int {
	if c == nil || c.v == nil {
		return 0
	}
	return c.v.GetInt(c.key(key))
}

func (c *Config) GetFloat64(key string) float64 {
	if c == nil || c.v == nil {
		return 0
	}
	return c.v.GetFloat64(c.key(key))
}

func (c *Config) GetBool(key string) bool {
	if c == nil || c.v == nil {
		return false
	}
	return c.v.GetBool(c.key(key))
}

func (c *Config) GetDuration(key string) time.Duration {
	if c == nil || c.v == nil {
		return 0
	}
	return c.v.GetDuration(c.key(key))
}

// Sub returns the section rooted at key. Lookups still go through the parent
// viper, so DEVICEPULSE_* overrides apply inside sections. Never nil.
func (c *Config) Sub(key string) *Config {
	if c == nil || c.v == nil {
		return &Config{}
	}
	return &Config{v: c.v, prefix: c.key(key) + "."}
}

// SetDefaults registers the default value of every known key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.path", "devicepulse.db")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("liveness.window", "5m")
	v.SetDefault("liveness.activity_source", "created_time")
	v.SetDefault("ratelimit.rps", 20.0)
	v.SetDefault("ratelimit.burst", 40)
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "devicepulse")
	v.SetDefault("mqtt.topic", "devicepulse/+/+/heartbeat")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
}

// Load builds a Config from defaults, the optional YAML file at path, and
// DEVICEPULSE_* environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}
	return New(v), nil
}

// Settings is the typed form of the configuration.
type Settings struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Liveness struct {
		Window         time.Duration `yaml:"-"`
		WindowText     string        `yaml:"window"`
		ActivitySource string        `yaml:"activity_source"`
	} `yaml:"liveness"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"ratelimit"`
	MQTT struct {
		Enabled  bool   `yaml:"enabled"`
		Broker   string `yaml:"broker"`
		ClientID string `yaml:"client_id"`
		Topic    string `yaml:"topic"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"mqtt"`
}

// Settings reads every known section into a Settings value.
func (c *Config) Settings() Settings {
	var s Settings

	srv := c.Sub("server")
	s.Server.Host = srv.GetString("host")
	s.Server.Port = srv.GetInt("port")

	s.Database.Path = c.GetString("database.path")
	s.Auth.JWTSecret = c.GetString("auth.jwt_secret")

	lv := c.Sub("liveness")
	s.Liveness.Window = lv.GetDuration("window")
	s.Liveness.ActivitySource = lv.GetString("activity_source")

	rl := c.Sub("ratelimit")
	s.RateLimit.RPS = rl.GetFloat64("rps")
	s.RateLimit.Burst = rl.GetInt("burst")

	mq := c.Sub("mqtt")
	s.MQTT.Enabled = mq.GetBool("enabled")
	s.MQTT.Broker = mq.GetString("broker")
	s.MQTT.ClientID = mq.GetString("client_id")
	s.MQTT.Topic = mq.GetString("topic")
	s.MQTT.Username = mq.GetString("username")
	s.MQTT.Password = mq.GetString("password")

	return s
}

// Validate checks the settings needed to serve requests.
func (s Settings) Validate() error {
	var errs []error
	if s.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", s.Server.Port))
	}
	if s.Liveness.Window <= 0 {
		errs = append(errs, fmt.Errorf("liveness.window must be positive, got %s", s.Liveness.Window))
	}
	if s.RateLimit.RPS < 0 || s.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("ratelimit.rps and ratelimit.burst must not be negative"))
	}
	if s.MQTT.Enabled && s.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt.enabled is set"))
	}
	return errors.Join(errs...)
}

// Redacted returns a copy with secrets masked.
func (s Settings) Redacted() Settings {
	if s.Auth.JWTSecret != "" {
		s.Auth.JWTSecret = "********"
	}
	if s.MQTT.Password != "" {
		s.MQTT.Password = "********"
	}
	return s
}

// YAML renders the settings as a YAML document.
func (s Settings) YAML() ([]byte, error) {
	s.Liveness.WindowText = s.Liveness.Window.String()
	b, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	return b, nil
}
