package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Prettify bool   `mapstructure:"prettify"`
}

type RetryConfig struct {
	MaxAttempts     int `mapstructure:"maxAttempts"`
	InitialInterval int `mapstructure:"initialInterval"`
	MaxInterval     int `mapstructure:"maxInterval"`
}

type ArchiveConfig struct {
	URL            string      `mapstructure:"url"`
	RequestTimeout int         `mapstructure:"requestTimeout"`
	Retry          RetryConfig `mapstructure:"retry"`
}

type ExportConfig struct {
	Dataset         string   `mapstructure:"dataset"`
	Range           string   `mapstructure:"range"`
	Fields          []string `mapstructure:"fields"`
	Options         []string `mapstructure:"options"`
	OutputDir       string   `mapstructure:"outputDir"`
	MaxChunkBytes   int      `mapstructure:"maxChunkBytes"`
	ChannelCapacity int      `mapstructure:"channelCapacity"`
	Compression     string   `mapstructure:"compression"`
}

type ProgressConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	UpdateDelay int  `mapstructure:"updateDelay"`
}

type BadgerConfig struct {
	Path string `mapstructure:"path"`
}

type PebbleConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// TTL in seconds, 0 keeps entries forever
	TTL int `mapstructure:"ttl"`
}

type CacheConfig struct {
	Badger *BadgerConfig `mapstructure:"badger"`
	Pebble *PebbleConfig `mapstructure:"pebble"`
	Redis  *RedisConfig  `mapstructure:"redis"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"accessKeyId"`
	SecretAccessKey string `mapstructure:"secretAccessKey"`
}

type ClickhouseConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	Database  string `mapstructure:"database"`
	EnableTLS bool   `mapstructure:"enableTLS"`
}

type KafkaConfig struct {
	Brokers   string `mapstructure:"brokers"`
	Topic     string `mapstructure:"topic"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	EnableTLS bool   `mapstructure:"enableTLS"`
}

type PublisherConfig struct {
	S3         *S3Config         `mapstructure:"s3"`
	Clickhouse *ClickhouseConfig `mapstructure:"clickhouse"`
	Kafka      *KafkaConfig      `mapstructure:"kafka"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type Config struct {
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Export    ExportConfig    `mapstructure:"export"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

var Cfg Config

const DefaultArchiveURL = "https://v2.archive.subsquid.io/network/ethereum-mainnet"

func setDefaults() {
	viper.SetDefault("archive.url", DefaultArchiveURL)
	viper.SetDefault("archive.requestTimeout", 60000)
	viper.SetDefault("archive.retry.maxAttempts", 5)
	viper.SetDefault("archive.retry.initialInterval", 500)
	viper.SetDefault("archive.retry.maxInterval", 15000)
	viper.SetDefault("export.outputDir", "data")
	viper.SetDefault("export.maxChunkBytes", 10*1024*1024)
	viper.SetDefault("export.channelCapacity", 4)
	viper.SetDefault("export.compression", "snappy")
	viper.SetDefault("progress.enabled", true)
	viper.SetDefault("progress.updateDelay", 100)
	viper.SetDefault("metrics.addr", ":2112")
	viper.SetDefault("log.level", "warn")
}

// LoadConfig reads the optional config file, then layers environment
// variables on top. Without a config file only flags, env and defaults apply.
func LoadConfig(cfgFile string) error {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file, %s", err)
		}
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath("./configs")

		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("error reading config file, %s", err)
			}
		}
	}

	// sets e.g. ARCHIVE_URL to archive.url
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv()

	err := viper.Unmarshal(&Cfg)
	if err != nil {
		return fmt.Errorf("error unmarshalling config: %v", err)
	}

	return nil
}
