package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env             string     `yaml:"env" env:"ENV" env-default:"local"`
	SpinSourceToken string     `yaml:"spin_source_token" env:"SPIN_SOURCE_TOKEN"`
	HTTPServer      HTTPServer `yaml:"http_server"`
	Storage         Storage    `yaml:"storage"`
	Pusher          Pusher     `yaml:"pusher"`
	Mesas           []MesaType `yaml:"mesas"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type Storage struct {
	DSN string `yaml:"dsn" env:"STORAGE_DSN" env-default:"root:123@tcp(localhost:3306)/mesa?parseTime=True&loc=Local"`
}

// Pusher is an optional external event sink. Events are mirrored to the
// configured Pusher app in addition to the in-process stream transports.
type Pusher struct {
	Enabled bool   `yaml:"enabled" env-default:"false"`
	AppID   string `yaml:"app_id" env:"PUSHER_APP_ID"`
	Key     string `yaml:"key" env:"PUSHER_KEY"`
	Secret  string `yaml:"secret" env:"PUSHER_SECRET"`
	Cluster string `yaml:"cluster" env-default:"eu"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/local.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	if len(cfg.Mesas) == 0 {
		cfg.Mesas = DefaultMesaTypes()
	}

	return &cfg
}
