package config

import (
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env            string `mapstructure:"env"`
	Port           int    `mapstructure:"port"`
	ConversationID string `mapstructure:"conversation_id"`
	JoinCode       string `mapstructure:"join_code"`
}

type MongoConfig struct {
	URI                string `mapstructure:"uri"`
	Database           string `mapstructure:"database"`
	MessagesCollection string `mapstructure:"messages_collection"`
	ProfilesCollection string `mapstructure:"profiles_collection"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	TopicMessage string   `mapstructure:"topic_message"`
}

type S3Config struct {
	Region     string `mapstructure:"region"`
	Bucket     string `mapstructure:"bucket"`
	Endpoint   string `mapstructure:"endpoint"`
	PublicRead bool   `mapstructure:"public_read"`
}

type JWTConfig struct {
	Secret        string `mapstructure:"secret"`
	TTLMinutes    int    `mapstructure:"ttl_minutes"`
	SigningMethod string `mapstructure:"signing_method"`
}

type Config struct {
	App   AppConfig   `mapstructure:"app"`
	Mongo MongoConfig `mapstructure:"mongodb"`
	Redis RedisConfig `mapstructure:"redis"`
	Kafka KafkaConfig `mapstructure:"kafka"`
	S3    S3Config    `mapstructure:"s3"`
	JWT   JWTConfig   `mapstructure:"jwt"`

	// derived
	SessionTTL time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvPrefix("APP")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.App.Port == 0 {
		cfg.App.Port = 8080
	}
	if cfg.Mongo.MessagesCollection == "" {
		cfg.Mongo.MessagesCollection = "messages"
	}
	if cfg.Mongo.ProfilesCollection == "" {
		cfg.Mongo.ProfilesCollection = "user_profiles"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "convosync"
	}
	if cfg.JWT.TTLMinutes == 0 {
		cfg.JWT.TTLMinutes = 60
	}
	cfg.SessionTTL = time.Duration(cfg.JWT.TTLMinutes) * time.Minute
	return &cfg, nil
}
