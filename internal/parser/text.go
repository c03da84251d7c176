package parser

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/mail"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gtext "github.com/yuin/goldmark/text"
	"golang.org/x/net/html"

	"docintel/internal/models"
)

func parseText(data []byte) (*Result, error) {
	text := strings.TrimSpace(decodeText(data))
	res := &Result{}
	if text != "" {
		res.Sections = append(res.Sections, models.Section{Text: text, Source: "text"})
	}
	return res, nil
}

func parseCSV(data []byte) (*Result, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: reading csv: %v", models.ErrCorruptInput, err)
	}

	res := &Result{}
	var text strings.Builder
	for _, row := range rows {
		text.WriteString(strings.Join(row, "\t") + "\n")
	}
	if strings.TrimSpace(text.String()) != "" {
		res.Sections = append(res.Sections, models.Section{Text: text.String(), Source: "csv"})
	}
	if len(rows) > 0 {
		res.Tables = append(res.Tables, models.TableData{Source: "csv", Rows: rows})
	}
	return res, nil
}

// parseMarkdown walks the goldmark AST, splitting sections at headings so
// chunks inherit the heading they sit under, and collecting link targets.
func parseMarkdown(data []byte) (*Result, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(gtext.NewReader(data))

	res := &Result{}
	var buf strings.Builder
	heading := ""
	sectionNum := 0

	// Text segments may carry their own boundary whitespace on top of the
	// separators added below, so section text is collapsed on flush.
	flush := func() {
		text := strings.TrimSpace(collapseWhitespace(buf.String()))
		buf.Reset()
		if text == "" {
			return
		}
		res.Sections = append(res.Sections, models.Section{
			Text:    text,
			Source:  fmt.Sprintf("section_%d", sectionNum),
			Heading: heading,
		})
		sectionNum++
	}

	err := gast.Walk(doc, func(n gast.Node, entering bool) (gast.WalkStatus, error) {
		switch node := n.(type) {
		case *gast.Heading:
			if entering {
				flush()
				heading = string(collectNodeText(node, data))
			}
			return gast.WalkSkipChildren, nil
		case *gast.Text:
			if entering {
				buf.Write(node.Segment.Value(data))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteString("\n")
				} else {
					buf.WriteString(" ")
				}
			}
		case *gast.Link:
			if entering {
				res.Links = append(res.Links, string(node.Destination))
			}
		case *gast.AutoLink:
			if entering {
				res.Links = append(res.Links, string(node.URL(data)))
			}
		case *gast.FencedCodeBlock, *gast.CodeBlock, *gast.CodeSpan:
			// Code carries no prose worth indexing.
			return gast.WalkSkipChildren, nil
		case *gast.Paragraph, *gast.ListItem:
			if !entering {
				buf.WriteString("\n")
			}
		}
		return gast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walking markdown: %v", models.ErrCorruptInput, err)
	}
	flush()
	return res, nil
}

func collectNodeText(n gast.Node, source []byte) []byte {
	var buf bytes.Buffer
	_ = gast.Walk(n, func(child gast.Node, entering bool) (gast.WalkStatus, error) {
		if t, ok := child.(*gast.Text); ok && entering {
			buf.Write(t.Segment.Value(source))
		}
		return gast.WalkContinue, nil
	})
	return buf.Bytes()
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "head": true,
}

func parseHTML(data []byte) (*Result, error) {
	z := html.NewTokenizer(bytes.NewReader(data))
	res := &Result{}
	var text strings.Builder
	title := ""
	skipDepth := 0
	inTitle := false

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() == io.EOF {
				break
			}
			return nil, fmt.Errorf("%w: reading html: %v", models.ErrCorruptInput, z.Err())
		}
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			name := tok.Data
			if skipTags[name] && tt == html.StartTagToken {
				skipDepth++
			}
			if name == "title" {
				inTitle = true
			}
			if name == "a" {
				for _, attr := range tok.Attr {
					if attr.Key == "href" && attr.Val != "" {
						res.Links = append(res.Links, attr.Val)
					}
				}
			}
			if blockTags[name] {
				text.WriteString("\n")
			}
		case html.EndTagToken:
			tok := z.Token()
			if skipTags[tok.Data] && skipDepth > 0 {
				skipDepth--
			}
			if tok.Data == "title" {
				inTitle = false
			}
		case html.TextToken:
			t := strings.TrimSpace(string(z.Text()))
			if t == "" {
				continue
			}
			if inTitle {
				if title == "" {
					title = t
				}
				continue
			}
			if skipDepth == 0 {
				text.WriteString(t + " ")
			}
		}
	}

	body := collapseWhitespace(text.String())
	if body != "" {
		res.Sections = append(res.Sections, models.Section{Text: body, Source: "html"})
	}
	res.Metadata.Title = title
	return res, nil
}

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func parseJSON(data []byte) (*Result, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: reading json: %v", models.ErrCorruptInput, err)
	}
	lines := flattenJSON(v, "")
	res := &Result{}
	if len(lines) > 0 {
		res.Sections = append(res.Sections, models.Section{
			Text:   strings.Join(lines, "\n"),
			Source: "json",
		})
	}
	return res, nil
}

// flattenJSON renders nested structures as "path: value" lines so the
// content stays searchable without its syntax.
func flattenJSON(v any, prefix string) []string {
	var parts []string
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			parts = append(parts, flattenJSON(val[k], p)...)
		}
	case []any:
		for i, item := range val {
			parts = append(parts, flattenJSON(item, fmt.Sprintf("%s[%d]", prefix, i))...)
		}
	default:
		if prefix != "" {
			parts = append(parts, fmt.Sprintf("%s: %v", prefix, val))
		} else {
			parts = append(parts, fmt.Sprintf("%v", val))
		}
	}
	return parts
}

func parseEML(data []byte) (*Result, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: reading email: %v", models.ErrCorruptInput, err)
	}
	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading email body: %v", models.ErrCorruptInput, err)
	}

	subject := msg.Header.Get("Subject")
	from := msg.Header.Get("From")

	var text strings.Builder
	if subject != "" {
		text.WriteString("Subject: " + subject + "\n")
	}
	if from != "" {
		text.WriteString("From: " + from + "\n")
	}
	if to := msg.Header.Get("To"); to != "" {
		text.WriteString("To: " + to + "\n")
	}
	text.WriteString("\n" + strings.TrimSpace(decodeText(body)))

	res := &Result{}
	res.Sections = append(res.Sections, models.Section{Text: text.String(), Source: "message"})
	res.Metadata.Title = subject
	res.Metadata.Author = from
	return res, nil
}
