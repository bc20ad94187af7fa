package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type AppConfig struct {
	App struct {
		Name string `mapstructure:"NAME"`
		Port string `mapstructure:"PORT"`
		Env  string `mapstructure:"ENV"`
	}

	DATABASE struct {
		Driver   string `mapstructure:"DRIVER"` // postgres | sqlite
		Postgres struct {
			DSN string `mapstructure:"URL"`
		}
		SQLite struct {
			Path string `mapstructure:"PATH"`
		}
		Redis struct {
			Addr     string `mapstructure:"ADDR"`
			Password string `mapstructure:"PASSWORD"`
			DB       int    `mapstructure:"DB"`
		}
		Mongo struct {
			Url      string `mapstructure:"URL"`
			Database string `mapstructure:"DATABASE"`
		}
	}

	AUTH struct {
		PublicKeyPath  string `mapstructure:"PUBLIC_KEY_PATH"`
		PrivateKeyPath string `mapstructure:"PRIVATE_KEY_PATH"`
	}

	WEBSOCKET struct {
		MaxConnections   int `mapstructure:"MAX_CONNECTIONS"`
		ConnectionsPerIP int `mapstructure:"CONNECTIONS_PER_IP"`
	}

	SUMMARY struct {
		OpenAIKey string `mapstructure:"OPENAI_API_KEY"`
		Model     string `mapstructure:"MODEL"`
		MaxTokens int    `mapstructure:"MAX_TOKENS"`
	}

	WORKER struct {
		Count int `mapstructure:"COUNT"`
	}

	RTC struct {
		ICEServers []string `mapstructure:"ICE_SERVERS"`
	}
}

var Conf *AppConfig

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "conference-system")
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.sqlite.path", "./data/conference.db")
	v.SetDefault("database.mongo.database", "conference_collection")
	v.SetDefault("auth.public_key_path", "public.pem")
	v.SetDefault("auth.private_key_path", "private.pem")
	v.SetDefault("websocket.max_connections", 10000)
	v.SetDefault("websocket.connections_per_ip", 20)
	v.SetDefault("summary.model", "gpt-4")
	v.SetDefault("summary.max_tokens", 1000)
	v.SetDefault("worker.count", 5)
	v.SetDefault("rtc.ice_servers", []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"})
}

func LoadConfig() error {
	// .env is optional, handy in development
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("application")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CONFSVC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		log.Warn().Msg("application.yaml not found, using defaults and environment")
	}

	var config AppConfig
	if err := v.Unmarshal(&config); err != nil {
		return fmt.Errorf("error unmarshalling config: %w", err)
	}

	if config.DATABASE.Driver != "postgres" && config.DATABASE.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver %q", config.DATABASE.Driver)
	}

	Conf = &config
	log.Info().Str("env", config.App.Env).Str("db_driver", config.DATABASE.Driver).Msg("configuration loaded...")
	return nil
}

func (c *AppConfig) IsDevelopment() bool {
	return c.App.Env == "development"
}
