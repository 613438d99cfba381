// Package fanout 按债权人批量生成信函：一份模板，每个收件人一份独立的文档
package fanout

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/allanpk716/creditor_letters/internal/domain"
	"github.com/allanpk716/creditor_letters/internal/logger"
	"github.com/allanpk716/creditor_letters/internal/metrics"
	"github.com/allanpk716/creditor_letters/internal/processor"
	"github.com/allanpk716/creditor_letters/internal/resolver"
	"github.com/allanpk716/creditor_letters/pkg/docx"
)

const tracerName = "github.com/allanpk716/creditor_letters/internal/fanout"

// 指标中的结果状态
const (
	statusSuccess   = "success"
	statusAttention = "attention"
	statusFailed    = "failed"
	statusCancelled = "cancelled"
)

// Config 批量生成配置
type Config struct {
	Profile    string
	FilePrefix string
	Workers    int
	// StampProperties 在生成的文档中写入批次、收件人等自定义属性
	StampProperties bool
	// Table 不为空时按全部债权人填充模板中的债权人表格
	Table *TableConfig
}

// TableConfig 债权人表格：Marker 为模板行首个单元格的文本，Columns 为各列内容
type TableConfig struct {
	Marker  string
	Columns []string
}

// Generator 批量信函生成器
type Generator struct {
	processor *processor.DocumentProcessor
	resolver  domain.ValueResolver
	sink      domain.OutputSink
	metrics   *metrics.Metrics
	logger    logger.Logger
	tracer    trace.Tracer
	config    Config
	now       func() time.Time
}

// Option 生成器的可选依赖
type Option func(*Generator)

// WithSink 设置输出位置；未设置时结果只保存在 GenerationResult.Data 中
func WithSink(sink domain.OutputSink) Option {
	return func(g *Generator) { g.sink = sink }
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithTracerProvider 设置链路追踪；未设置时使用全局 TracerProvider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *Generator) { g.tracer = tp.Tracer(tracerName) }
}

// WithClock 设置时钟
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator 创建生成器
func NewGenerator(proc *processor.DocumentProcessor, res domain.ValueResolver, cfg Config, log logger.Logger, opts ...Option) *Generator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.FilePrefix == "" {
		cfg.FilePrefix = DefaultFilePrefix
	}
	g := &Generator{
		processor: proc,
		resolver:  res,
		config:    cfg,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateForAll 为每个债权人生成一份文档
//
// 模板无法打开时整个批次失败；单个收件人的失败只记录在其结果中。
// 结果顺序与 creditors 一致，数量始终等于收件人数量。
// ctx 取消后尚未开始的收件人标记为 CANCELLED，正在处理的会完成。
func (g *Generator) GenerateForAll(ctx context.Context, template []byte, client domain.Client, settlement domain.Settlement, creditors []domain.Creditor) (*domain.BatchResult, error) {
	batch := &domain.BatchResult{
		BatchID:   uuid.NewString(),
		Client:    client.Reference,
		StartedAt: g.now(),
		Results:   make([]*domain.GenerationResult, len(creditors)),
	}

	ctx, span := g.tracer.Start(ctx, "fanout.GenerateForAll", trace.WithAttributes(
		attribute.String("batch.id", batch.BatchID),
		attribute.Int("batch.recipients", len(creditors)),
	))
	defer span.End()

	tmpl, err := docx.Open(template)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "template")
		return nil, domain.NewError(domain.ErrCodeCorruptArchive, "无法打开模板", err)
	}

	settlement.TotalDebt = resolver.TotalDebt(settlement, creditors)
	settlement.CreditorCount = resolver.CreditorCount(settlement, creditors)

	log := g.logger.WithFields(map[string]interface{}{
		"batch_id": batch.BatchID,
		"client":   client.Reference,
		"profile":  g.config.Profile,
	})
	log.Info("开始批量生成", map[string]interface{}{
		"recipients": len(creditors),
		"workers":    g.config.Workers,
	})

	// 已开始的收件人不受取消影响
	work := context.WithoutCancel(ctx)

	var eg errgroup.Group
	eg.SetLimit(g.config.Workers)
	for i := range creditors {
		creditor := creditors[i]
		position := i + 1
		if ctx.Err() != nil {
			batch.Results[i] = g.cancelled(&creditor, position)
			continue
		}
		eg.Go(func() error {
			if ctx.Err() != nil {
				batch.Results[i] = g.cancelled(&creditor, position)
				return nil
			}
			rc := &domain.RecipientContext{
				Client:     client,
				Creditor:   &creditor,
				Settlement: settlement,
				Position:   position,
				Now:        g.now(),
				Creditors:  creditors,
			}
			batch.Results[i] = g.generate(work, batch.BatchID, tmpl, rc, log)
			return nil
		})
	}
	_ = eg.Wait()

	batch.Duration = g.now().Sub(batch.StartedAt)
	span.SetAttributes(
		attribute.Int("batch.succeeded", batch.Succeeded()),
		attribute.Int("batch.failed", batch.Failed()),
	)
	log.Info("批量生成完成", map[string]interface{}{
		"succeeded": batch.Succeeded(),
		"failed":    batch.Failed(),
		"duration":  batch.Duration.String(),
	})
	return batch, nil
}

// GenerateSingle 为单个收件人生成文档；creditor 为空时只使用委托人数据
func (g *Generator) GenerateSingle(ctx context.Context, template []byte, client domain.Client, settlement domain.Settlement, creditor *domain.Creditor, position int) (*domain.GenerationResult, error) {
	ctx, span := g.tracer.Start(ctx, "fanout.GenerateSingle")
	defer span.End()

	tmpl, err := docx.Open(template)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "template")
		return nil, domain.NewError(domain.ErrCodeCorruptArchive, "无法打开模板", err)
	}

	var creditors []domain.Creditor
	if creditor != nil {
		c := *creditor
		creditor = &c
		creditors = []domain.Creditor{c}
	}
	settlement.TotalDebt = resolver.TotalDebt(settlement, creditors)
	settlement.CreditorCount = resolver.CreditorCount(settlement, creditors)
	if position <= 0 {
		position = 1
	}

	rc := &domain.RecipientContext{
		Client:     client,
		Creditor:   creditor,
		Settlement: settlement,
		Position:   position,
		Now:        g.now(),
		Creditors:  creditors,
	}
	return g.single(ctx, tmpl, rc), nil
}

// GenerateOverview 为委托人生成一份汇总文档，例如列出全部债权人的 Nullplan 表格
//
// 文档不针对单个债权人，债权人相关的变量保持未替换。
func (g *Generator) GenerateOverview(ctx context.Context, template []byte, client domain.Client, settlement domain.Settlement, creditors []domain.Creditor) (*domain.GenerationResult, error) {
	ctx, span := g.tracer.Start(ctx, "fanout.GenerateOverview", trace.WithAttributes(
		attribute.Int("batch.recipients", len(creditors)),
	))
	defer span.End()

	tmpl, err := docx.Open(template)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "template")
		return nil, domain.NewError(domain.ErrCodeCorruptArchive, "无法打开模板", err)
	}

	settlement.TotalDebt = resolver.TotalDebt(settlement, creditors)
	settlement.CreditorCount = resolver.CreditorCount(settlement, creditors)
	rc := &domain.RecipientContext{
		Client:     client,
		Settlement: settlement,
		Position:   1,
		Now:        g.now(),
		Creditors:  append([]domain.Creditor(nil), creditors...),
	}
	return g.single(ctx, tmpl, rc), nil
}

// single 以新的批次 ID 生成一份文档
func (g *Generator) single(ctx context.Context, tmpl *docx.Package, rc *domain.RecipientContext) *domain.GenerationResult {
	batchID := uuid.NewString()
	log := g.logger.WithFields(map[string]interface{}{
		"batch_id": batchID,
		"client":   rc.Client.Reference,
		"profile":  g.config.Profile,
	})
	return g.generate(ctx, batchID, tmpl, rc, log)
}

// generate 处理一个收件人；任何失败（包括 panic）都转换为结果中的错误
func (g *Generator) generate(ctx context.Context, batchID string, tmpl *docx.Package, rc *domain.RecipientContext, log logger.Logger) (result *domain.GenerationResult) {
	started := time.Now()
	result = &domain.GenerationResult{
		Position: rc.Position,
		Creditor: creditorName(rc.Creditor),
	}
	log = log.WithFields(map[string]interface{}{
		"position": rc.Position,
		"creditor": result.Creditor,
	})

	ctx, span := g.tracer.Start(ctx, "fanout.generate", trace.WithAttributes(
		attribute.Int("recipient.position", rc.Position),
		attribute.String("recipient.creditor", result.Creditor),
	))
	g.metrics.Begin()
	defer func() {
		if rec := recover(); rec != nil {
			g.fail(result, domain.NewError(domain.ErrCodeResolverFailure, "处理收件人时发生异常", fmt.Errorf("%v", rec)))
		}
		if !result.Success {
			span.SetStatus(codes.Error, result.Error)
			log.Error("生成失败", map[string]interface{}{
				"code":  string(result.ErrorCode),
				"error": result.Error,
			})
		} else {
			log.Info("生成完成", map[string]interface{}{
				"file":        result.FileName,
				"resolved":    result.Applied,
				"unresolved":  len(result.Unresolved),
				"unlocatable": len(result.Unlocatable),
				"repairs":     result.Repairs,
				"table_rows":  result.TableRows,
			})
		}
		g.metrics.Observe(g.config.Profile, status(result), time.Since(started), len(result.Unresolved), len(result.Unlocatable))
		span.End()
	}()

	names := g.resolver.Names()
	vars, err := g.values(names, rc)
	if err != nil {
		g.fail(result, err)
		return result
	}

	working := tmpl.Clone()
	if g.config.Table != nil && len(rc.Creditors) > 0 {
		rows := resolver.TableRows(g.config.Table.Columns, rc.Creditors, rc.Settlement.TotalDebt)
		result.TableRows, err = g.processor.FillTable(working, g.config.Table.Marker, rows)
		if err != nil {
			g.fail(result, err)
			return result
		}
	}
	report, err := g.processor.Process(ctx, working, names, vars)
	if err != nil {
		g.fail(result, err)
		return result
	}
	result.Applied = report.Applied
	result.Unresolved = report.Unresolved
	report.Unlocatable = g.resolver.Unlocatable(report.Unlocatable)
	result.Unlocatable = report.Unlocatable
	result.Repairs = report.Repairs

	if g.config.StampProperties {
		if err := working.SetProperties(g.properties(batchID, rc, report)); err != nil {
			g.fail(result, domain.NewError(domain.ErrCodeSerializationFailure, "写入文档属性失败", err))
			return result
		}
	}

	data, err := working.Serialize()
	if err != nil {
		g.fail(result, domain.NewError(domain.ErrCodeSerializationFailure, "序列化文档失败", err))
		return result
	}
	if _, err := docx.Open(data); err != nil {
		g.fail(result, domain.NewError(domain.ErrCodeSerializationFailure, "生成的文档无法重新打开", err))
		return result
	}
	result.Size = len(data)

	clientRef := rc.Client.Reference
	var creditorRef string
	if rc.Creditor != nil {
		creditorRef = rc.Creditor.Reference
	}
	result.FileName = FileName(g.config.FilePrefix, clientRef, result.Creditor, creditorRef, rc.Position)

	if g.sink == nil {
		result.Data = data
	} else {
		location, err := g.sink.Write(ctx, result.FileName, data)
		if err != nil {
			g.fail(result, domain.NewError(domain.ErrCodeSinkFailure, "保存文档失败", err))
			return result
		}
		result.Location = location
	}
	result.Success = true
	return result
}

// values 为收件人解析全部变量，取值时的 panic 转换为 RESOLVER_FAILURE
func (g *Generator) values(names []string, rc *domain.RecipientContext) (vars map[string]string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = domain.NewError(domain.ErrCodeResolverFailure, "变量取值失败", fmt.Errorf("%v", rec))
		}
	}()
	vars = make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := g.resolver.Resolve(name, rc); ok {
			vars[name] = v
		}
	}
	return vars, nil
}

// properties 生成记录，写入 docProps/custom.xml
func (g *Generator) properties(batchID string, rc *domain.RecipientContext, report domain.SubstitutionReport) []docx.Property {
	return []docx.Property{
		{Name: "LettersBatchID", Value: batchID},
		{Name: "LettersProfile", Value: g.config.Profile},
		{Name: "LettersClient", Value: rc.Client.Reference},
		{Name: "LettersCreditor", Value: creditorName(rc.Creditor)},
		{Name: "LettersPosition", Value: strconv.Itoa(rc.Position), Type: "i4"},
		{Name: "LettersGeneratedAt", Value: rc.Now.UTC().Format(time.RFC3339)},
		{Name: "LettersUnresolved", Value: strconv.Itoa(len(report.Unresolved) + len(report.Unlocatable)), Type: "i4"},
	}
}

func (g *Generator) fail(result *domain.GenerationResult, err error) {
	result.Success = false
	result.Error = err.Error()
	result.ErrorCode = domain.CodeOf(err)
	if result.ErrorCode == "" {
		result.ErrorCode = domain.ErrCodeResolverFailure
	}
}

func (g *Generator) cancelled(creditor *domain.Creditor, position int) *domain.GenerationResult {
	g.metrics.Skipped(g.config.Profile, statusCancelled)
	return &domain.GenerationResult{
		Position:  position,
		Creditor:  creditorName(creditor),
		ErrorCode: domain.ErrCodeCancelled,
		Error:     "批次已取消，未处理",
	}
}

func status(r *domain.GenerationResult) string {
	switch {
	case !r.Success:
		return statusFailed
	case r.NeedsAttention():
		return statusAttention
	default:
		return statusSuccess
	}
}

func creditorName(c *domain.Creditor) string {
	if c == nil {
		return ""
	}
	return c.Name
}
