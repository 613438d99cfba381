package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/allanpk716/creditor_letters/internal/config"
	"github.com/allanpk716/creditor_letters/internal/domain"
	"github.com/allanpk716/creditor_letters/internal/fanout"
	"github.com/allanpk716/creditor_letters/internal/logger"
	"github.com/allanpk716/creditor_letters/internal/matcher"
	"github.com/allanpk716/creditor_letters/internal/metrics"
	"github.com/allanpk716/creditor_letters/internal/processor"
	"github.com/allanpk716/creditor_letters/internal/records"
	"github.com/allanpk716/creditor_letters/internal/repair"
	"github.com/allanpk716/creditor_letters/internal/resolver"
	"github.com/allanpk716/creditor_letters/internal/tracing"
)

type generateOptions struct {
	template    string
	input       string
	outputDir   string
	workers     int
	report      string
	metricsFile string
	overview    bool
}

func newGenerateCommand(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "为输入中的每个债权人生成一份信函",
		Example: `  creditor-letters generate --input mandant.json --output-dir out
  creditor-letters generate -p ratenplan --input mandant.json --report out/report.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.template, "template", "t", "", "模板文件路径，覆盖模板配置中的模板")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "委托人和债权人数据（JSON）")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "输出目录，覆盖配置文件")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "并行处理的收件人数量，覆盖配置文件")
	cmd.Flags().StringVar(&opts.report, "report", "", "把批次结果写入 YAML 文件")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "把指标写入 node_exporter 文本文件")
	cmd.Flags().BoolVar(&opts.overview, "overview", false, "只生成一份列出全部债权人的汇总文档")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runGenerate(cmd *cobra.Command, root *rootOptions, opts *generateOptions) error {
	if opts.workers < 0 || opts.workers > config.MaxWorkers {
		return fmt.Errorf("workers 必须在 1 到 %d 之间，当前: %d", config.MaxWorkers, opts.workers)
	}

	cfg, profile, log, err := root.load()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	batch, err := records.Load(opts.input)
	if err != nil {
		return err
	}

	source, name, closeSource := templateSource(cfg, profile, opts.template, log)
	defer func() { _ = closeSource() }()
	template, err := source.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("加载模板失败: %w", err)
	}

	workers := cfg.Workers
	if opts.workers > 0 {
		workers = opts.workers
	}
	outputDir := firstNonEmpty(opts.outputDir, cfg.Output.Dir)
	sink, err := fanout.NewDirSink(outputDir)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	genOpts := []fanout.Option{fanout.WithSink(sink), fanout.WithMetrics(metrics.New(reg))}
	if cfg.Tracing.Enabled {
		tr := tracing.New(AppName, cfg.Tracing.SampleRatio, log)
		defer func() {
			if err := tr.Shutdown(context.WithoutCancel(ctx)); err != nil {
				log.Warn("关闭链路追踪失败", map[string]interface{}{"error": err.Error()})
			}
		}()
		genOpts = append(genOpts, fanout.WithTracerProvider(tr.Provider()))
	}
	gen, err := newGenerator(profile, workers, log, genOpts...)
	if err != nil {
		return err
	}

	var result *domain.BatchResult
	if opts.overview {
		result, err = generateOverview(ctx, gen, template, batch)
	} else {
		result, err = gen.GenerateForAll(ctx, template, batch.Client, batch.Settlement, batch.Creditors)
	}
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), result)

	if opts.report != "" {
		if err := writeReport(opts.report, result); err != nil {
			return err
		}
	}
	if path := firstNonEmpty(opts.metricsFile, cfg.Metrics.File); path != "" {
		if err := metrics.WriteTextfile(reg, path); err != nil {
			return fmt.Errorf("写入指标文件失败: %w", err)
		}
	}

	if failed := result.Failed(); failed > 0 {
		return fmt.Errorf("%d/%d 份信函生成失败", failed, len(result.Results))
	}
	return nil
}

// newGenerator 按模板配置组装定位、取值、替换和修复
func newGenerator(profile config.Profile, workers int, log logger.Logger, opts ...fanout.Option) (*fanout.Generator, error) {
	res, err := resolver.NewResolver(profile.ResolverOptions())
	if err != nil {
		return nil, err
	}
	rep, err := repair.New(profile.RepairOptions(), log)
	if err != nil {
		return nil, err
	}
	proc := processor.NewDocumentProcessor(matcher.NewLocator(profile.Delimiters, log), rep, profile.Parts, log)
	cfg := fanout.Config{
		Profile:         profile.Name,
		FilePrefix:      profile.FilePrefix,
		Workers:         workers,
		StampProperties: profile.StampProperties,
	}
	if profile.Table.Enabled {
		cfg.Table = &fanout.TableConfig{Marker: profile.Table.Marker, Columns: profile.Table.Columns}
	}
	return fanout.NewGenerator(proc, res, cfg, log, opts...), nil
}

// generateOverview 汇总文档按单份结果的批次输出
func generateOverview(ctx context.Context, gen *fanout.Generator, template []byte, batch *records.Batch) (*domain.BatchResult, error) {
	started := time.Now()
	res, err := gen.GenerateOverview(ctx, template, batch.Client, batch.Settlement, batch.Creditors)
	if err != nil {
		return nil, err
	}
	return &domain.BatchResult{
		BatchID:   uuid.NewString(),
		Client:    batch.Client.Reference,
		StartedAt: started,
		Duration:  time.Since(started),
		Results:   []*domain.GenerationResult{res},
	}, nil
}

func printSummary(w io.Writer, result *domain.BatchResult) {
	for _, r := range result.Results {
		switch {
		case !r.Success:
			fmt.Fprintf(w, "✗ %d %s: %s\n", r.Position, r.Creditor, r.Error)
		case r.NeedsAttention():
			fmt.Fprintf(w, "! %d %s: %s (未替换 %d, 未找到 %d)\n", r.Position, r.Creditor, r.Location, len(r.Unresolved), len(r.Unlocatable))
		default:
			fmt.Fprintf(w, "✓ %d %s: %s\n", r.Position, r.Creditor, r.Location)
		}
	}
	fmt.Fprintf(w, "批次 %s: 成功 %d, 失败 %d, 耗时 %s\n", result.BatchID, result.Succeeded(), result.Failed(), result.Duration)
}

func writeReport(path string, result *domain.BatchResult) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("序列化报告失败: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建报告目录失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入报告失败: %w", err)
	}
	return nil
}
