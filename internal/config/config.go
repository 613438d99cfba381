package config

import (
	"fmt"
	"strings"
	"time"
)

// Config 表示完整的配置文件结构
type Config struct {
	Log       LogConfig          `mapstructure:"log" yaml:"log"`
	Output    OutputConfig       `mapstructure:"output" yaml:"output"`
	Workers   int                `mapstructure:"workers" yaml:"workers"`
	Templates TemplatesConfig    `mapstructure:"templates" yaml:"templates"`
	Redis     RedisConfig        `mapstructure:"redis" yaml:"redis"`
	Metrics   MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
	Tracing   TracingConfig      `mapstructure:"tracing" yaml:"tracing"`
	Profiles  map[string]Profile `mapstructure:"profiles" yaml:"profiles"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// TemplatesConfig 模板目录
type TemplatesConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// RedisConfig 模板缓存，Addr 为空时不使用缓存
type RedisConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
}

// MetricsConfig 指标输出
type MetricsConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

// TracingConfig 链路追踪，结束的 span 写入日志
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
}

// 默认值
const (
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"
	DefaultOutputDir   = "output"
	DefaultTemplateDir = "templates"
	DefaultWorkers     = 1
	DefaultRedisTTL    = time.Hour
	DefaultRedisPrefix = "letters:template:"
	MaxWorkers         = 64
	DefaultSampleRatio = 1.0
)

// ConfigManager 配置管理接口
type ConfigManager interface {
	LoadConfig(filePath string) (*Config, error)
	ValidateConfig(config *Config) error
	Profile(config *Config, name string) (Profile, error)
}

// configManager 配置管理器实现
type configManager struct{}

// NewConfigManager 创建新的配置管理器
func NewConfigManager() ConfigManager {
	return &configManager{}
}

// ValidateConfig 验证配置的有效性
func (cm *configManager) ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("配置不能为空")
	}

	switch strings.ToLower(config.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("无效的日志级别: %s", config.Log.Level)
	}
	switch strings.ToLower(config.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("无效的日志格式: %s", config.Log.Format)
	}

	if config.Workers < 1 || config.Workers > MaxWorkers {
		return fmt.Errorf("workers 必须在 1 到 %d 之间，当前: %d", MaxWorkers, config.Workers)
	}
	if config.Redis.Addr != "" && config.Redis.TTL < 0 {
		return fmt.Errorf("redis.ttl 不能为负数")
	}
	if config.Tracing.SampleRatio < 0 || config.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio 必须在 0 到 1 之间，当前: %g", config.Tracing.SampleRatio)
	}

	for name, profile := range config.Profiles {
		if err := profile.Validate(); err != nil {
			return fmt.Errorf("模板配置 %s 无效: %w", name, err)
		}
	}
	return nil
}

// Profile 返回指定名称的模板配置，未配置的字段使用默认值；name 为空时使用默认配置
func (cm *configManager) Profile(config *Config, name string) (Profile, error) {
	if name == "" {
		name = DefaultProfileName
	}
	key := strings.ToLower(name)
	if config != nil {
		if profile, ok := config.Profiles[key]; ok {
			profile.Name = key
			profile.applyDefaults()
			return profile, nil
		}
	}
	if key == DefaultProfileName {
		return DefaultProfile(), nil
	}
	return Profile{}, fmt.Errorf("模板配置不存在: %s", name)
}

// applyDefaults 设置可选字段的默认值
func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = DefaultOutputDir
	}
	if cfg.Templates.Dir == "" {
		cfg.Templates.Dir = DefaultTemplateDir
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = DefaultRedisTTL
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = DefaultRedisPrefix
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = DefaultSampleRatio
	}
}
