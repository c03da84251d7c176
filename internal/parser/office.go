package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"docintel/internal/models"
)

func parsePDF(data []byte) (*Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: reading pdf: %v", models.ErrCorruptInput, err)
	}

	res := &Result{}
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: extracting pdf page %d: %v", models.ErrCorruptInput, i, err)
		}
		res.Sections = append(res.Sections, models.Section{
			Text:       pageText,
			Source:     fmt.Sprintf("page_%d", i),
			PageNumber: i,
		})
	}
	res.Metadata.PageCount = numPages
	return res, nil
}

func parseDOCX(data []byte) (*Result, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: reading docx: %v", models.ErrCorruptInput, err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	var paragraphs []string
	for _, block := range strings.Split(content, "</w:p>") {
		if text := xmlTagText(block, "<w:t", "</w:t>"); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}

	res := &Result{}
	if len(paragraphs) > 0 {
		res.Sections = append(res.Sections, models.Section{
			Text:   strings.Join(paragraphs, "\n"),
			Source: "body",
		})
	}
	return res, nil
}

var slideNameRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func parsePPTX(data []byte) (*Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: reading pptx: %v", models.ErrCorruptInput, err)
	}

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		m := slideNameRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	res := &Result{}
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			continue
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		text := xmlTagText(string(raw), "<a:t", "</a:t>")
		if strings.TrimSpace(text) == "" {
			continue
		}
		res.Sections = append(res.Sections, models.Section{
			Text:       text,
			Source:     fmt.Sprintf("slide_%d", s.num),
			PageNumber: s.num,
		})
	}
	res.Metadata.SlideCount = len(slides)
	return res, nil
}

func parseXLSX(data []byte) (*Result, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("%w: reading xlsx: %v", models.ErrCorruptInput, err)
	}

	res := &Result{}
	for _, sheet := range f.Sheets {
		var rows [][]string
		var text strings.Builder
		for _, row := range sheet.Rows {
			var cells []string
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			if len(cells) == 0 {
				continue
			}
			rows = append(rows, cells)
			text.WriteString(strings.Join(cells, "\t") + "\n")
		}
		source := "sheet_" + sheet.Name
		if strings.TrimSpace(text.String()) != "" {
			res.Sections = append(res.Sections, models.Section{
				Text:    text.String(),
				Source:  source,
				Heading: sheet.Name,
			})
		}
		if len(rows) > 0 {
			res.Tables = append(res.Tables, models.TableData{Source: source, Rows: rows})
		}
	}
	res.Metadata.SheetCount = len(f.Sheets)
	return res, nil
}

func parseODS(data []byte) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: reading spreadsheet: %v", models.ErrCorruptInput, err)
	}
	defer f.Close()

	res := &Result{}
	sheets := f.GetSheetList()
	for _, name := range sheets {
		rows, err := f.GetRows(name)
		if err != nil {
			continue
		}
		var text strings.Builder
		var tableRows [][]string
		for _, row := range rows {
			if len(row) == 0 {
				continue
			}
			tableRows = append(tableRows, row)
			text.WriteString(strings.Join(row, "\t") + "\n")
		}
		source := "sheet_" + name
		if strings.TrimSpace(text.String()) != "" {
			res.Sections = append(res.Sections, models.Section{
				Text:    text.String(),
				Source:  source,
				Heading: name,
			})
		}
		if len(tableRows) > 0 {
			res.Tables = append(res.Tables, models.TableData{Source: source, Rows: tableRows})
		}
	}
	res.Metadata.SheetCount = len(sheets)
	return res, nil
}
