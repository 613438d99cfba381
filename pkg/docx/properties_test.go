package docx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allanpk716/creditor_letters/internal/testutil"
)

const existingCustomXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/custom-properties" xmlns:vt="http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes">
  <property fmtid="{D5CDD505-2E9C-101B-9397-08002B2CF9AE}" pid="3" name="Version">
    <vt:i4>7</vt:i4>
  </property>
  <property fmtid="{D5CDD505-2E9C-101B-9397-08002B2CF9AE}" pid="2" name="Kanzlei">
    <vt:lpwstr>Thomas Scuric</vt:lpwstr>
  </property>
</Properties>`

func TestParseProperties(t *testing.T) {
	props, err := ParseProperties(existingCustomXML)
	require.NoError(t, err)
	assert.Equal(t, []Property{
		{Name: "Kanzlei", Value: "Thomas Scuric", Type: "lpwstr"},
		{Name: "Version", Value: "7", Type: "i4"},
	}, props)

	props, err = ParseProperties("")
	require.NoError(t, err)
	assert.Empty(t, props)

	_, err = ParseProperties("<Properties>")
	assert.Error(t, err)
}

func TestPackage_SetPropertiesRegistersPart(t *testing.T) {
	pkg, err := Open(testutil.BuildDocx(t, testutil.Document(testutil.Paragraph("Hallo"))))
	require.NoError(t, err)

	require.NoError(t, pkg.SetProperties([]Property{
		{Name: "Gläubiger", Value: "Müller & Söhne <GmbH>"},
		{Name: "Position", Value: "2", Type: "i4"},
	}))

	out, err := pkg.Serialize()
	require.NoError(t, err)
	reopened, err := Open(out)
	require.NoError(t, err)

	props, err := reopened.Properties()
	require.NoError(t, err)
	assert.Equal(t, []Property{
		{Name: "Gläubiger", Value: "Müller & Söhne <GmbH>", Type: "lpwstr"},
		{Name: "Position", Value: "2", Type: "i4"},
	}, props)

	types, err := reopened.Part("[Content_Types].xml")
	require.NoError(t, err)
	assert.Contains(t, types, `PartName="/docProps/custom.xml"`)
	rels, err := reopened.Part("_rels/.rels")
	require.NoError(t, err)
	assert.Contains(t, rels, `Target="docProps/custom.xml"`)

	custom, err := reopened.Part(CustomPropertiesPart)
	require.NoError(t, err)
	assert.NoError(t, ValidateMarkup(custom))
	assert.Contains(t, custom, `<vt:lpwstr>Müller &amp; Söhne &lt;GmbH&gt;</vt:lpwstr>`)
}

func TestPackage_SetPropertiesMergesExisting(t *testing.T) {
	pkg, err := Open(testutil.BuildDocx(t, testutil.Document(testutil.Paragraph("Hallo"))))
	require.NoError(t, err)
	require.NoError(t, pkg.SetProperties([]Property{{Name: "Kanzlei", Value: "alt"}, {Name: "Stapel", Value: "1"}}))

	require.NoError(t, pkg.SetProperties([]Property{{Name: "Stapel", Value: "2"}}))

	props, err := pkg.Properties()
	require.NoError(t, err)
	assert.Equal(t, []Property{
		{Name: "Kanzlei", Value: "alt", Type: "lpwstr"},
		{Name: "Stapel", Value: "2", Type: "lpwstr"},
	}, props)

	types, err := pkg.Part("[Content_Types].xml")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(types, "/docProps/custom.xml"))
}

func TestPackage_SetPropertiesRejectsEmptyName(t *testing.T) {
	pkg, err := Open(testutil.BuildDocx(t, testutil.Document(testutil.Paragraph("Hallo"))))
	require.NoError(t, err)
	assert.Error(t, pkg.SetProperties([]Property{{Value: "x"}}))
	assert.False(t, pkg.HasPart(CustomPropertiesPart))
}
