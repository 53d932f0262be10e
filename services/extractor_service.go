package services

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// corpusReaders maps a lower-case extension to the reader for that format.
var corpusReaders = map[string]func(path string) (string, error){
	".txt": readPlainText,
	".md":  readPlainText,
	".pdf": readPDFText,
}

var blankRun = regexp.MustCompile(`\n{3,}`)

// SetPDFLicense registers the UniPDF metered key. Without it only the plain
// text corpus formats can be read.
func SetPDFLicense(key string) error {
	if key == "" {
		return fmt.Errorf("UNIDOC_LICENSE_KEY not set")
	}
	return license.SetMeteredKey(key)
}

// ExtractTextFromFile returns the text of a corpus file with runs of blank
// lines collapsed, so page breaks do not produce empty chunks.
func ExtractTextFromFile(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	read, ok := corpusReaders[ext]
	if !ok {
		return "", fmt.Errorf("unsupported file type: %s", ext)
	}
	text, err := read(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(blankRun.ReplaceAllString(text, "\n\n")), nil
}

func readPlainText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// readPDFText concatenates the text of every page; pages without a text
// layer (scans) are skipped.
func readPDFText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader, err := model.NewPdfReader(f)
	if err != nil {
		return "", err
	}
	numPages, err := reader.GetNumPages()
	if err != nil {
		return "", err
	}

	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		text, err := ex.ExtractText()
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

func isSupportedFile(path string) bool {
	_, ok := corpusReaders[strings.ToLower(filepath.Ext(path))]
	return ok
}
