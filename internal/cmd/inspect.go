package cmd

import (
	"fmt"
	"io"
	"path"
	"sort"

	"github.com/spf13/cobra"

	"github.com/allanpk716/creditor_letters/internal/config"
	"github.com/allanpk716/creditor_letters/internal/domain"
	"github.com/allanpk716/creditor_letters/internal/logger"
	"github.com/allanpk716/creditor_letters/internal/matcher"
	"github.com/allanpk716/creditor_letters/internal/resolver"
	"github.com/allanpk716/creditor_letters/pkg/docx"
)

type inspectOptions struct {
	template string
	text     bool
}

// Inspection 模板与模板配置的对照结果
type Inspection struct {
	Template     string                `yaml:"template"`
	Parts        []string              `yaml:"parts"`
	Placeholders []matcher.Placeholder `yaml:"placeholders"`
	Locatable    []string              `yaml:"locatable"`
	Unlocatable  []string              `yaml:"unlocatable"`
	Unbound      []string              `yaml:"unbound"`
}

func newInspectCommand(root *rootOptions) *cobra.Command {
	opts := &inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "检查模板中的占位符与模板配置是否一致",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.template, "template", "t", "", "模板文件路径，覆盖模板配置中的模板")
	cmd.Flags().BoolVar(&opts.text, "text", false, "同时输出模板正文")
	return cmd
}

func runInspect(cmd *cobra.Command, root *rootOptions, opts *inspectOptions) error {
	cfg, profile, log, err := root.load()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	source, name, closeSource := templateSource(cfg, profile, opts.template, log)
	defer func() { _ = closeSource() }()
	template, err := source.Load(cmd.Context(), name)
	if err != nil {
		return fmt.Errorf("加载模板失败: %w", err)
	}

	inspection, err := Inspect(template, profile, log)
	if err != nil {
		return err
	}
	inspection.Template = name

	out := cmd.OutOrStdout()
	printInspection(out, inspection)
	if opts.text {
		text, err := docx.PlainText(template)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s\n", text)
	}
	return nil
}

// Inspect 列出模板中的引号短语，并按模板配置区分可定位、不可定位和未绑定的变量
func Inspect(template []byte, profile config.Profile, log logger.Logger) (*Inspection, error) {
	pkg, err := docx.Open(template)
	if err != nil {
		return nil, domain.NewError(domain.ErrCodeCorruptArchive, "无法打开模板", err)
	}
	res, err := resolver.NewResolver(profile.ResolverOptions())
	if err != nil {
		return nil, err
	}
	names := res.Names()
	locator := matcher.NewLocator(profile.Delimiters, log)

	inspection := &Inspection{}
	var spans []domain.MatchSpan
	counts := make(map[string]*matcher.Placeholder)
	for _, part := range pkg.PartNames() {
		if !selected(profile.Parts, part) {
			continue
		}
		markup, err := pkg.Part(part)
		if err != nil {
			return nil, domain.NewError(domain.ErrCodeCorruptArchive, "读取部件失败", err)
		}
		inspection.Parts = append(inspection.Parts, part)
		spans = append(spans, locator.Locate(markup, names)...)
		for _, p := range matcher.Discover(markup, profile.Delimiters) {
			existing, ok := counts[p.Name]
			if !ok {
				existing = &matcher.Placeholder{Name: p.Name}
				counts[p.Name] = existing
			}
			existing.Count += p.Count
			existing.Fragmented = existing.Fragmented || p.Fragmented
		}
	}
	for _, p := range counts {
		inspection.Placeholders = append(inspection.Placeholders, *p)
	}
	sort.Slice(inspection.Placeholders, func(i, j int) bool {
		return inspection.Placeholders[i].Name < inspection.Placeholders[j].Name
	})

	unlocated := matcher.Unlocated(names, spans)
	inspection.Unlocatable = res.Unlocatable(unlocated)
	missing := make(map[string]bool, len(unlocated))
	for _, n := range unlocated {
		missing[n] = true
	}
	bound := make(map[string]bool, len(names))
	for _, n := range names {
		bound[n] = true
		if !missing[n] {
			inspection.Locatable = append(inspection.Locatable, n)
		}
	}
	for _, p := range inspection.Placeholders {
		if !bound[p.Name] {
			inspection.Unbound = append(inspection.Unbound, p.Name)
		}
	}
	return inspection, nil
}

func selected(patterns []string, part string) bool {
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, part); ok {
			return true
		}
	}
	return false
}

func printInspection(w io.Writer, in *Inspection) {
	fmt.Fprintf(w, "模板: %s\n", in.Template)
	fmt.Fprintf(w, "部件: %v\n", in.Parts)
	fmt.Fprintf(w, "\n发现 %d 个引号短语:\n", len(in.Placeholders))
	for _, p := range in.Placeholders {
		mark := ""
		if p.Fragmented {
			mark = " (跨运行)"
		}
		fmt.Fprintf(w, "  %q x%d%s\n", p.Name, p.Count, mark)
	}
	fmt.Fprintf(w, "\n可定位的变量 %d 个\n", len(in.Locatable))
	fmt.Fprintf(w, "\n模板中找不到的变量 %d 个:\n", len(in.Unlocatable))
	for _, n := range in.Unlocatable {
		fmt.Fprintf(w, "  %s\n", n)
	}
	fmt.Fprintf(w, "\n未绑定的引号短语 %d 个:\n", len(in.Unbound))
	for _, n := range in.Unbound {
		fmt.Fprintf(w, "  %s\n", n)
	}
}
