package parser

import (
	"archive/zip"
	"errors"
	"fmt"
	"html"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"pdf-rag/internal/models"
)

// extractor returns the text of every page of a file, in page order
type extractor func(filePath string) ([]string, error)

var extractors = map[string]extractor{
	".pdf":  parsePDF,
	".docx": parseDOCX,
	".xlsx": parseXLSX,
	".pptx": parsePPTX,
	".txt":  parseText,
	".md":   parseMarkdown,
}

var (
	xmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	slideNameRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	blankRunRe  = regexp.MustCompile(`\n{3,}`)
)

// Supported reports whether files with the extension can be extracted
func Supported(ext string) bool {
	_, ok := extractors[strings.ToLower(ext)]
	return ok
}

// Scan lists the files in dir whose extension is one of exts, sorted by name.
// Subfolders are not visited.
func Scan(dir string, exts []string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: documents folder %q does not exist", models.ErrNotFound, dir)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %q is not a folder", models.ErrNotFound, dir)
	}

	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[strings.ToLower(e)] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if want[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Extract reads the page texts of a single file
func Extract(filePath string) (models.SourceDocument, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	fn, ok := extractors[ext]
	if !ok {
		return models.SourceDocument{}, fmt.Errorf("unsupported file format: %s", ext)
	}

	pages, err := fn(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.SourceDocument{}, fmt.Errorf("%w: %v", models.ErrNotFound, err)
		}
		return models.SourceDocument{}, err
	}
	return models.SourceDocument{Path: filePath, Pages: pages}, nil
}

// Documents extracts the files lazily, one per iteration. A file that cannot
// be parsed is yielded with its path and the error so the caller can skip it.
func Documents(paths []string) iter.Seq2[models.SourceDocument, error] {
	return func(yield func(models.SourceDocument, error) bool) {
		for _, p := range paths {
			doc, err := Extract(p)
			if err != nil {
				doc = models.SourceDocument{Path: p}
				err = fmt.Errorf("failed to parse %s: %w", filepath.Base(p), err)
			}
			if !yield(doc, err) {
				return
			}
		}
	}
}

func parsePDF(filePath string) (pages []string, err error) {
	// the pdf package panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Get file size for reader initialization
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	pages = make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			// keep the slot so page numbers stay aligned
			pages = append(pages, "")
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, pageText)
	}
	return pages, nil
}

func parseDOCX(filePath string) ([]string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	// DOCX has no page numbers
	return []string{xmlText(r.Editable().GetContent(), "</w:p>")}, nil
}

func parsePPTX(filePath string) ([]string, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, file := range f.File {
		m := slideNameRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: n, file: file})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	pages := make([]string, 0, len(slides))
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		pages = append(pages, xmlText(string(data), "</a:p>"))
	}
	return pages, nil
}

func parseXLSX(filePath string) ([]string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []string
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		var sheet strings.Builder
		sheet.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			sheet.WriteString(strings.Join(row, "\t"))
			sheet.WriteString("\n")
		}
		pages = append(pages, sheet.String())
	}
	return pages, nil
}

func parseText(filePath string) ([]string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	// TXT has no pages
	return []string{string(data)}, nil
}

// parseMarkdown keeps the readable text of a Markdown file and drops the
// syntax: heading marks, emphasis, link targets and raw HTML.
func parseMarkdown(filePath string) ([]string, error) {
	src, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(src))
	var b strings.Builder
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
				b.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteString("\n")
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.AutoLink:
			b.Write(node.Label(src))
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	// Markdown has no pages
	return []string{strings.TrimSpace(blankRunRe.ReplaceAllString(b.String(), "\n\n"))}, nil
}

// xmlText strips markup from an office XML part, turning every paragraph end into a newline
func xmlText(content, paragraphEnd string) string {
	content = strings.ReplaceAll(content, paragraphEnd, "\n")
	content = xmlTagRe.ReplaceAllString(content, "")
	return strings.TrimSpace(html.UnescapeString(content))
}
