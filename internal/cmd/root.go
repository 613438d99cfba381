// Package cmd 命令行入口：generate、inspect 和 version
package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/allanpk716/creditor_letters/internal/config"
	"github.com/allanpk716/creditor_letters/internal/logger"
	"github.com/allanpk716/creditor_letters/internal/store"
)

const (
	AppName    = "creditor-letters"
	AppVersion = "1.0.0"
)

// rootOptions 所有子命令共用的参数
type rootOptions struct {
	configFile string
	profile    string
	logLevel   string
}

// NewRootCommand 创建根命令
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           AppName,
		Short:         "按债权人批量生成信函",
		Long:          "读取 DOCX 模板和委托人数据，为每个债权人生成一份替换好占位符的信函。",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "配置文件路径（默认查找 ./config.yaml 和 ./configs/config.yaml）")
	root.PersistentFlags().StringVarP(&opts.profile, "profile", "p", "", "模板配置名称（默认 nullplan）")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "日志级别，覆盖配置文件")

	root.AddCommand(
		newGenerateCommand(opts),
		newInspectCommand(opts),
		newVersionCommand(),
	)
	return root
}

// load 加载配置、选定模板配置并创建日志
func (o *rootOptions) load() (*config.Config, config.Profile, logger.Logger, error) {
	cm := config.NewConfigManager()
	cfg, err := cm.LoadConfig(o.configFile)
	if err != nil {
		return nil, config.Profile{}, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = strings.ToLower(o.logLevel)
		if err := cm.ValidateConfig(cfg); err != nil {
			return nil, config.Profile{}, nil, err
		}
	}
	profile, err := cm.Profile(cfg, o.profile)
	if err != nil {
		return nil, config.Profile{}, nil, err
	}
	log, err := logger.NewStructured(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, config.Profile{}, nil, fmt.Errorf("创建日志失败: %w", err)
	}
	return cfg, profile, log, nil
}

// templateSource 返回模板来源和模板名；配置了 Redis 时在文件来源之前加一层缓存
//
// override 非空时直接读取该文件，不经过模板目录。
func templateSource(cfg *config.Config, profile config.Profile, override string, log logger.Logger) (store.TemplateSource, string, func() error) {
	var (
		source store.TemplateSource
		name   = profile.Template
	)
	if override != "" {
		source = store.NewFileSource(filepath.Dir(override))
		name = filepath.Base(override)
	} else {
		source = store.NewFileSource(cfg.Templates.Dir)
	}

	closer := func() error { return nil }
	if cfg.Redis.Addr != "" && override == "" {
		client := store.NewRedisClient(store.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		source = store.NewRedisCache(client, source, cfg.Redis.TTL, cfg.Redis.Prefix, log)
		closer = client.Close
	}
	return source, name, closer
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
