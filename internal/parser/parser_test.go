package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docintel/internal/models"
)

func TestParseUnsupportedFormat(t *testing.T) {
	_, err := Parse([]byte("payload"), "firmware.bin", models.FileTypeUnknown)
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
}

func TestParseDeclaredTypeWinsOverExtension(t *testing.T) {
	// A .bin name would be rejected; the declared type routes it anyway.
	res, err := Parse([]byte("plain content here"), "export.bin", models.FileTypeTXT)
	require.NoError(t, err)
	require.Len(t, res.Sections, 1)
	assert.Equal(t, "plain content here", res.Sections[0].Text)
}

func TestParseText(t *testing.T) {
	res, err := Parse([]byte("  Meeting notes from the audit.  \n"), "notes.txt", "")
	require.NoError(t, err)
	require.Len(t, res.Sections, 1)
	assert.Equal(t, "Meeting notes from the audit.", res.Sections[0].Text)
	assert.Equal(t, "text", res.Sections[0].Source)
	assert.Equal(t, "Meeting notes from the audit.", res.FullText)
	assert.Equal(t, 5, res.Metadata.WordCount)
}

func TestParseTextStripsByteOrderMark(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, "Budget summary attached."...)
	res, err := Parse(data, "notes.txt", "")
	require.NoError(t, err)
	require.Len(t, res.Sections, 1)
	assert.Equal(t, "Budget summary attached.", res.Sections[0].Text)
}

func TestParseTextLatin1Fallback(t *testing.T) {
	// 0xE9 is not valid UTF-8 on its own; latin-1 maps it to é.
	res, err := Parse([]byte{'c', 'a', 'f', 0xE9}, "menu.txt", "")
	require.NoError(t, err)
	require.Len(t, res.Sections, 1)
	assert.Equal(t, "café", res.Sections[0].Text)
}

func TestParseCSV(t *testing.T) {
	data := []byte("name,amount\nacme,1200\nglobex,430\n")
	res, err := Parse(data, "ledger.csv", "")
	require.NoError(t, err)

	require.Len(t, res.Tables, 1)
	assert.Equal(t, "csv", res.Tables[0].Source)
	assert.Equal(t, [][]string{
		{"name", "amount"},
		{"acme", "1200"},
		{"globex", "430"},
	}, res.Tables[0].Rows)

	require.Len(t, res.Sections, 1)
	assert.Contains(t, res.Sections[0].Text, "acme\t1200")
}

func TestParseCSVRaggedRows(t *testing.T) {
	data := []byte("a,b,c\nd,e\nf\n")
	res, err := Parse(data, "ragged.csv", "")
	require.NoError(t, err)
	require.Len(t, res.Tables, 1)
	assert.Len(t, res.Tables[0].Rows, 3)
}

func TestParseMarkdown(t *testing.T) {
	data := []byte(`# Findings

Intro paragraph before any detail.

## Payments

Wire transfers were routed through [the portal](https://portal.example.com).

## Appendix

Closing remarks.
`)
	res, err := Parse(data, "report.md", "")
	require.NoError(t, err)

	require.Len(t, res.Sections, 3)
	assert.Equal(t, "Findings", res.Sections[0].Heading)
	assert.Equal(t, "section_0", res.Sections[0].Source)
	assert.Contains(t, res.Sections[0].Text, "Intro paragraph")
	assert.Equal(t, "Payments", res.Sections[1].Heading)
	assert.Contains(t, res.Sections[1].Text, "Wire transfers")
	assert.Equal(t, "Appendix", res.Sections[2].Heading)

	assert.Equal(t, []string{"https://portal.example.com"}, res.Links)
}

func TestParseMarkdownSingleSpacedProse(t *testing.T) {
	data := []byte("Plain *emphasised* text with a [link](https://x.example.com) inline.\n")
	res, err := Parse(data, "doc.md", "")
	require.NoError(t, err)

	require.Len(t, res.Sections, 1)
	assert.Equal(t, "Plain emphasised text with a link inline.", res.Sections[0].Text)
	assert.NotContains(t, res.FullText, "  ")
}

func TestParseMarkdownSkipsCode(t *testing.T) {
	data := []byte("Prose before.\n\n```\nsecret_token = abc\n```\n\nProse after.\n")
	res, err := Parse(data, "doc.md", "")
	require.NoError(t, err)
	assert.NotContains(t, res.FullText, "secret_token")
	assert.Contains(t, res.FullText, "Prose before.")
	assert.Contains(t, res.FullText, "Prose after.")
}

func TestParseHTML(t *testing.T) {
	data := []byte(`<html><head><title>Case Summary</title>
<script>var x = "noise";</script></head>
<body><h1>Overview</h1><p>Funds moved <a href="https://bank.example.com/stmt">offshore</a>.</p>
<style>p { color: red }</style></body></html>`)
	res, err := Parse(data, "page.html", "")
	require.NoError(t, err)

	assert.Equal(t, "Case Summary", res.Metadata.Title)
	require.Len(t, res.Sections, 1)
	assert.Contains(t, res.Sections[0].Text, "Funds moved offshore")
	assert.NotContains(t, res.Sections[0].Text, "noise")
	assert.NotContains(t, res.Sections[0].Text, "color: red")
	assert.Equal(t, []string{"https://bank.example.com/stmt"}, res.Links)
}

func TestParseJSON(t *testing.T) {
	data := []byte(`{"account":{"owner":"acme","balance":1200},"flags":["frozen","review"]}`)
	res, err := Parse(data, "record.json", "")
	require.NoError(t, err)

	require.Len(t, res.Sections, 1)
	lines := strings.Split(res.Sections[0].Text, "\n")
	assert.Equal(t, []string{
		"account.balance: 1200",
		"account.owner: acme",
		"flags[0]: frozen",
		"flags[1]: review",
	}, lines)
}

func TestParseJSONCorrupt(t *testing.T) {
	_, err := Parse([]byte(`{"unterminated`), "bad.json", "")
	assert.ErrorIs(t, err, models.ErrCorruptInput)
}

func TestParseEML(t *testing.T) {
	data := []byte("From: analyst@example.com\r\n" +
		"To: desk@example.com\r\n" +
		"Subject: Q3 anomalies\r\n" +
		"\r\n" +
		"Three transactions exceeded the reporting threshold.\r\n")
	res, err := Parse(data, "alert.eml", "")
	require.NoError(t, err)

	assert.Equal(t, "Q3 anomalies", res.Metadata.Title)
	assert.Equal(t, "analyst@example.com", res.Metadata.Author)
	require.Len(t, res.Sections, 1)
	assert.Equal(t, "message", res.Sections[0].Source)
	assert.Contains(t, res.Sections[0].Text, "Subject: Q3 anomalies")
	assert.Contains(t, res.Sections[0].Text, "exceeded the reporting threshold")
}

func TestParseEMLCorrupt(t *testing.T) {
	_, err := Parse([]byte("no header separator at all"), "bad.eml", "")
	assert.ErrorIs(t, err, models.ErrCorruptInput)
}

func TestParseCorruptOfficeFormats(t *testing.T) {
	junk := []byte("definitely not a zip archive")
	for _, name := range []string{"x.pdf", "x.docx", "x.pptx", "x.xlsx", "x.ods"} {
		_, err := Parse(junk, name, "")
		assert.ErrorIs(t, err, models.ErrCorruptInput, name)
	}
}

func TestLinksDeduplicated(t *testing.T) {
	data := []byte(`<p><a href="https://a.example.com">one</a>
<a href="https://a.example.com">again</a>
<a href="https://b.example.com">two</a></p>`)
	res, err := Parse(data, "links.html", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, res.Links)
}

func TestXMLTagText(t *testing.T) {
	content := `<w:t>Hello</w:t><w:t xml:space="preserve">world</w:t>`
	assert.Equal(t, "Hello world", xmlTagText(content, "<w:t", "</w:t>"))
}
