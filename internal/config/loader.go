package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，如 LETTERS_WORKERS、LETTERS_REDIS_ADDR
const EnvPrefix = "LETTERS"

// LoadConfig 加载配置；filePath 为空时在 . 和 ./configs 中查找 config.yaml，找不到则只使用默认值和环境变量
func (cm *configManager) LoadConfig(filePath string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if filePath != "" {
		if _, err := os.Stat(filePath); err != nil {
			return nil, fmt.Errorf("配置文件不存在: %s", filePath)
		}
		v.SetConfigFile(filePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	applyDefaults(&config)

	if err := cm.ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return &config, nil
}

// setDefaults 注册顶层键，环境变量覆盖只对已知的键生效
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("output.dir", DefaultOutputDir)
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("templates.dir", DefaultTemplateDir)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", DefaultRedisTTL)
	v.SetDefault("redis.prefix", DefaultRedisPrefix)
	v.SetDefault("metrics.file", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sample_ratio", DefaultSampleRatio)
}

// loadEnvFile 加载当前目录下的 .env，已存在的环境变量不会被覆盖
func loadEnvFile() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}
