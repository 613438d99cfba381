package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/allanpk716/creditor_letters/internal/config"
	"github.com/allanpk716/creditor_letters/internal/domain"
	"github.com/allanpk716/creditor_letters/internal/logger"
	"github.com/allanpk716/creditor_letters/internal/records"
	"github.com/allanpk716/creditor_letters/internal/testutil"
	"github.com/allanpk716/creditor_letters/pkg/docx"
)

const inputJSON = `{
  "client": {"reference": "AZ-17", "first_name": "Max", "last_name": "Mustermann"},
  "settlement": {},
  "creditors": [
    {"name": "Alpha Bank", "claim_amount": 1000, "reference": "A-1"},
    {"name": "Beta Inkasso", "claim_amount": 500}
  ]
}`

type fixture struct {
	dir      string
	config   string
	input    string
	template string
	output   string
}

func letterTemplate(t *testing.T) []byte {
	t.Helper()
	return testutil.BuildDocx(t, testutil.Document(
		testutil.Paragraph(`An: "Name des Gläubigers"`),
		`<w:p><w:r><w:t>Forderung: &quot;Forderungs</w:t></w:r><w:r><w:rPr><w:b/></w:rPr><w:t>summe&quot; EUR</w:t></w:r></w:p>`,
		testutil.Paragraph(`Mandant: "Name des Mandanten"`),
		testutil.Paragraph(`Siehe „Anlage 3“`),
	))
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:      dir,
		config:   filepath.Join(dir, "config.yaml"),
		input:    filepath.Join(dir, "input.json"),
		template: filepath.Join(dir, "templates", "brief.docx"),
		output:   filepath.Join(dir, "out"),
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(f.template), 0755))
	require.NoError(t, os.WriteFile(f.template, letterTemplate(t), 0644))
	require.NoError(t, os.WriteFile(f.input, []byte(inputJSON), 0644))

	cfg := fmt.Sprintf(`log:
  level: error
templates:
  dir: %q
output:
  dir: %q
profiles:
  brief:
    template: brief.docx
    file_prefix: Brief
    stamp_properties: true
    bindings:
      - token: Name des Gläubigers
        field: creditor.name
      - token: Forderungssumme
        field: creditor.claim_amount
      - token: Name des Mandanten
        field: client.name
      - token: Datum in 14 Tagen
        field: date.deadline
  plan:
    template: plan.docx
    file_prefix: Plan
    table:
      enabled: true
    bindings:
      - token: Name des Mandanten
        field: client.name
`, filepath.Dir(f.template), f.output)
	require.NoError(t, os.WriteFile(f.config, []byte(cfg), 0644))
	return f
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, AppName+" v"+AppVersion+"\n", out)
}

func TestGenerateCommand(t *testing.T) {
	f := newFixture(t)
	report := filepath.Join(f.dir, "reports", "batch.yaml")
	metricsFile := filepath.Join(f.dir, "letters.prom")

	out, err := execute(t, "generate",
		"--config", f.config,
		"--profile", "Brief",
		"--input", f.input,
		"--workers", "2",
		"--report", report,
		"--metrics-file", metricsFile,
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Alpha Bank")
	assert.Contains(t, out, "成功 2, 失败 0")

	entries, err := os.ReadDir(f.output)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var texts []string
	for _, e := range entries {
		assert.True(t, strings.HasPrefix(e.Name(), "Brief_AZ-17_"), e.Name())
		data, err := os.ReadFile(filepath.Join(f.output, e.Name()))
		require.NoError(t, err)
		text, err := docx.PlainText(data)
		require.NoError(t, err)
		assert.Contains(t, text, "Max Mustermann")
		assert.NotContains(t, text, "Name des Gläubigers")
		texts = append(texts, text)

		pkg, err := docx.Open(data)
		require.NoError(t, err)
		props, err := pkg.Properties()
		require.NoError(t, err)
		assert.Contains(t, props, docx.Property{Name: "LettersProfile", Value: "brief", Type: "lpwstr"})
	}
	joined := strings.Join(texts, "\n")
	assert.Contains(t, joined, "An: Alpha Bank")
	assert.Contains(t, joined, "An: Beta Inkasso")

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	var parsed map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	assert.Equal(t, "AZ-17", parsed["client"])
	results, ok := parsed["results"].([]interface{})
	require.True(t, ok)
	assert.Len(t, results, 2)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "letters_documents_total")
}

func TestGenerateCommand_TemplateOverride(t *testing.T) {
	f := newFixture(t)
	other := filepath.Join(f.dir, "anderes.docx")
	require.NoError(t, os.WriteFile(other, testutil.BuildDocx(t, testutil.Document(
		testutil.Paragraph(`Sehr geehrte Damen und Herren von "Name des Gläubigers",`),
	)), 0644))
	output := filepath.Join(f.dir, "override")

	_, err := execute(t, "generate", "-c", f.config, "-p", "brief", "-i", f.input, "-t", other, "-o", output)
	require.NoError(t, err)

	entries, err := os.ReadDir(output)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestGenerateCommand_Tracing(t *testing.T) {
	t.Setenv("LETTERS_TRACING_ENABLED", "true")
	t.Setenv("LETTERS_TRACING_SAMPLE_RATIO", "1")
	f := newFixture(t)

	out, err := execute(t, "generate", "-c", f.config, "-p", "brief", "-i", f.input)
	require.NoError(t, err)
	assert.Contains(t, out, "成功 2, 失败 0")
}

func TestGenerateCommand_Overview(t *testing.T) {
	f := newFixture(t)
	row := func(nr string) string {
		return `<w:tr><w:tc><w:p><w:r><w:t>` + nr + `</w:t></w:r></w:p></w:tc><w:tc><w:p/></w:tc><w:tc><w:p/></w:tc><w:tc><w:p/></w:tc></w:tr>`
	}
	plan := testutil.BuildDocx(t, testutil.Document(
		testutil.Paragraph(`Schuldenbereinigungsplan für "Name des Mandanten"`),
		`<w:tbl><w:tblPr/>`+row("Nr.")+row("1")+row("2")+row("3")+`</w:tbl>`,
	))
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(f.template), "plan.docx"), plan, 0644))
	report := filepath.Join(f.dir, "plan.yaml")

	out, err := execute(t, "generate", "-c", f.config, "-p", "plan", "-i", f.input, "--overview", "--report", report)
	require.NoError(t, err)
	assert.Contains(t, out, "成功 1, 失败 0")

	data, err := os.ReadFile(filepath.Join(f.output, "Plan_AZ-17_1.docx"))
	require.NoError(t, err)
	text, err := docx.PlainText(data)
	require.NoError(t, err)
	for _, want := range []string{"Max Mustermann", "Alpha Bank", "1.000,00 €", "66,67 %", "Beta Inkasso", "33,33 %"} {
		assert.Contains(t, text, want)
	}

	raw, err := os.ReadFile(report)
	require.NoError(t, err)
	var parsed struct {
		Results []struct {
			TableRows int `yaml:"table_rows"`
		} `yaml:"results"`
	}
	require.NoError(t, yaml.Unmarshal(raw, &parsed))
	require.Len(t, parsed.Results, 1)
	assert.Equal(t, 2, parsed.Results[0].TableRows)
}

func TestGenerateCommand_Errors(t *testing.T) {
	f := newFixture(t)
	invalid := filepath.Join(f.dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"client": {}, "creditors": [{"claim_amount": 1}]}`), 0644))

	t.Run("missing input flag", func(t *testing.T) {
		_, err := execute(t, "generate", "--config", f.config)
		assert.Error(t, err)
	})
	t.Run("invalid input", func(t *testing.T) {
		_, err := execute(t, "generate", "--config", f.config, "--profile", "brief", "--input", invalid)
		assert.ErrorIs(t, err, records.ErrInvalidInput)
	})
	t.Run("unknown profile", func(t *testing.T) {
		_, err := execute(t, "generate", "--config", f.config, "--profile", "fehlt", "--input", f.input)
		assert.Error(t, err)
	})
	t.Run("missing template", func(t *testing.T) {
		_, err := execute(t, "generate", "--config", f.config, "--profile", "brief", "--input", f.input,
			"--template", filepath.Join(f.dir, "fehlt.docx"))
		assert.Error(t, err)
	})
	t.Run("workers out of range", func(t *testing.T) {
		_, err := execute(t, "generate", "--config", f.config, "--input", f.input, "--workers", "1000")
		assert.Error(t, err)
	})
	t.Run("corrupt template", func(t *testing.T) {
		broken := filepath.Join(f.dir, "kaputt.docx")
		require.NoError(t, os.WriteFile(broken, []byte("kein zip"), 0644))
		_, err := execute(t, "generate", "--config", f.config, "--profile", "brief", "--input", f.input, "--template", broken)
		assert.Error(t, err)
	})
}

func TestInspectCommand(t *testing.T) {
	f := newFixture(t)

	out, err := execute(t, "inspect", "--config", f.config, "--profile", "brief", "--text")
	require.NoError(t, err)
	assert.Contains(t, out, "brief.docx")
	assert.Contains(t, out, `"Forderungssumme" x1 (跨运行)`)
	assert.Contains(t, out, "Datum in 14 Tagen")
	assert.Contains(t, out, "Anlage 3")
	assert.Contains(t, out, "Mandant: \"Name des Mandanten\"")
}

func TestInspect(t *testing.T) {
	profile := config.DefaultProfile()
	template := testutil.BuildDocx(t, testutil.Document(
		testutil.Paragraph(`An: "Name des Gläubigers"`),
		testutil.Paragraph(`Nochmals "Name des Gläubigers" und „Unbekannte Angabe“`),
	))

	in, err := Inspect(template, profile, logger.NewTestLogger(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"word/document.xml"}, in.Parts)
	require.Len(t, in.Placeholders, 2)
	assert.Equal(t, "Name des Gläubigers", in.Placeholders[0].Name)
	assert.Equal(t, 2, in.Placeholders[0].Count)
	assert.Equal(t, []string{"Name des Gläubigers"}, in.Locatable)
	assert.Contains(t, in.Unlocatable, "Name des Mandanten")
	assert.NotContains(t, in.Unlocatable, "Name des Gläubigers")
	assert.Equal(t, []string{"Unbekannte Angabe"}, in.Unbound)
}

func TestDefaultProfile_TwoTokenLetterNeedsNoAttention(t *testing.T) {
	tests := []struct {
		name            string
		paragraphs      []string
		wantUnlocatable []string
	}{
		{
			name:       "both required tokens",
			paragraphs: []string{`Mandant: "Name des Mandanten"`, `Forderung: "Forderungssumme" EUR`},
		},
		{
			name:       "alias of client name",
			paragraphs: []string{`Mandant: "Mandant Name"`, `Forderung: "Forderungssumme" EUR`},
		},
		{
			name:            "client name missing",
			paragraphs:      []string{`Forderung: "Forderungssumme" EUR`},
			wantUnlocatable: []string{"Name des Mandanten"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paras := make([]string, len(tt.paragraphs))
			for i, p := range tt.paragraphs {
				paras[i] = testutil.Paragraph(p)
			}
			template := testutil.BuildDocx(t, testutil.Document(paras...))

			g, err := newGenerator(config.DefaultProfile(), 1, logger.NewTestLogger(t))
			require.NoError(t, err)
			creditor := &domain.Creditor{Name: "Alpha Bank", ClaimAmount: 1500}
			client := domain.Client{Reference: "AZ-1", FullName: "Max Mustermann"}

			res, err := g.GenerateSingle(context.Background(), template, client, domain.Settlement{}, creditor, 1)
			require.NoError(t, err)
			require.True(t, res.Success, res.Error)
			assert.Empty(t, res.Unresolved)
			assert.Equal(t, tt.wantUnlocatable, res.Unlocatable)
			assert.Equal(t, len(tt.wantUnlocatable) > 0, res.NeedsAttention())

			text, err := docx.PlainText(res.Data)
			require.NoError(t, err)
			assert.Contains(t, text, "1.500,00")
		})
	}
}

func TestInspect_CorruptTemplate(t *testing.T) {
	_, err := Inspect([]byte("kein zip"), config.DefaultProfile(), logger.NewNoOpLogger())
	assert.ErrorIs(t, err, docx.ErrCorruptArchive)
}
