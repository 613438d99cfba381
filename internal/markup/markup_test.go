package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	s := `<w:p><w:r><w:t xml:space="preserve">Hallo </w:t><w:br/></w:r></w:p>`
	tokens := Tokenize(s)
	require.Len(t, tokens, 8)

	assert.True(t, tokens[0].IsOpen("w:p"))
	assert.True(t, tokens[2].IsOpen("w:t"))
	assert.Equal(t, Text, tokens[3].Kind)
	assert.Equal(t, "Hallo ", s[tokens[3].Start:tokens[3].End])
	assert.True(t, tokens[4].IsClose("w:t"))
	assert.True(t, tokens[5].SelfClosing)
	assert.Equal(t, "w:br", tokens[5].Name)
	assert.True(t, tokens[7].IsParagraphBoundary())
}

func TestTokenize_PPrIsNotParagraphBoundary(t *testing.T) {
	for _, tok := range Tokenize(`<w:pPr><w:pStyle w:val="x"/></w:pPr>`) {
		assert.False(t, tok.IsParagraphBoundary())
	}
}

func TestStripAndTags(t *testing.T) {
	s := `<w:r><w:t>&quot;Name</w:t></w:r><w:r><w:t> Mandant&quot;</w:t></w:r>`
	assert.Equal(t, `&quot;Name Mandant&quot;`, StripTags(s))
	assert.Equal(t, `<w:r><w:t></w:t></w:r><w:r><w:t></w:t></w:r>`, TagsOnly(s))
	assert.Equal(t, `"Name Mandant"`, VisibleText(s))
}

func TestDecodeEntities(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a &amp; b", "a & b"},
		{"&lt;x&gt;", "<x>"},
		{"&#34;q&#x22;", `"q"`},
		{"kein & Entity", "kein & Entity"},
		{"&unbekannt;", "&unbekannt;"},
		{"Gläubiger", "Gläubiger"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeEntities(tt.in))
		})
	}
}

func TestNormalizeSpace(t *testing.T) {
	assert.Equal(t, "Name des Mandanten", NormalizeSpace("  Name \t des  Mandanten "))
}

func TestParagraphs(t *testing.T) {
	s := `<w:body><w:p w:rsidR="1"><w:pPr><w:spacing w:after="200"/></w:pPr>` +
		`<w:r><w:t>Sehr geehrte</w:t></w:r><w:r><w:t xml:space="preserve"> Damen</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>A</w:t><w:tab/><w:t>B</w:t></w:r></w:p><w:p/></w:body>`

	paras := Paragraphs(s)
	require.Len(t, paras, 2)
	assert.Equal(t, "Sehr geehrte Damen", paras[0].Text)
	assert.Equal(t, "A\tB", paras[1].Text)
	assert.Equal(t, `<w:p w:rsidR="1">`, s[paras[0].Start:paras[0].OpenEnd])
	assert.Equal(t, `</w:p>`, s[paras[0].Close:paras[0].End])
	assert.Equal(t, paras[0].End, paras[1].Start)
}

func TestRemoveEmptyRuns(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "empty run with properties",
			in:   `</w:t></w:r><w:r><w:rPr><w:b/></w:rPr><w:t></w:t></w:r><w:r><w:t>`,
			want: `</w:t></w:r><w:r><w:t>`,
		},
		{
			name: "self closing properties",
			in:   `<w:r><w:rPr/><w:t xml:space="preserve"></w:t></w:r>`,
			want: ``,
		},
		{
			name: "run with text is kept",
			in:   `<w:r><w:t>x</w:t></w:r>`,
			want: `<w:r><w:t>x</w:t></w:r>`,
		},
		{
			name: "run with break is kept",
			in:   `<w:r><w:br/></w:r>`,
			want: `<w:r><w:br/></w:r>`,
		},
		{
			name: "incomplete run is kept",
			in:   `<w:r><w:rPr><w:i/></w:rPr><w:t>`,
			want: `<w:r><w:rPr><w:i/></w:rPr><w:t>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RemoveEmptyRuns(tt.in))
		})
	}
}

func TestRemoveEmptyWrappers(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "empty hyperlink",
			in:   `</w:t></w:r><w:hyperlink r:id="rId5"></w:hyperlink>`,
			want: `</w:t></w:r>`,
		},
		{
			name: "nested insertion inside hyperlink",
			in:   `<w:hyperlink r:id="rId5"><w:ins w:id="1"></w:ins></w:hyperlink><w:r>`,
			want: `<w:r>`,
		},
		{
			name: "wrapper with run is kept",
			in:   `<w:ins w:id="1"><w:r><w:t>x</w:t></w:r></w:ins>`,
			want: `<w:ins w:id="1"><w:r><w:t>x</w:t></w:r></w:ins>`,
		},
		{
			name: "revision mark in properties is kept",
			in:   `<w:rPr><w:ins w:id="2"/></w:rPr>`,
			want: `<w:rPr><w:ins w:id="2"/></w:rPr>`,
		},
		{
			name: "unrelated empty element is kept",
			in:   `<w:pPr></w:pPr>`,
			want: `<w:pPr></w:pPr>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RemoveEmptyWrappers(tt.in))
		})
	}
}
