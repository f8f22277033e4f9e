package loader

import (
	"path/filepath"
	"strings"

	"policyrag/document"
)

// Extractor turns raw file content into coarse ordered segments. Extractors
// must be deterministic: the same bytes always yield the same segments in the
// same order, since fingerprinting depends on positional context.
type Extractor interface {
	Extract(path string, data []byte) []document.Segment
}

// Factory selects an extractor by file extension.
type Factory struct {
	defaultExtractor Extractor
	byExtension      map[string]Extractor
}

// NewFactory creates a factory with extractors registered for the document
// formats a policy corpus carries.
func NewFactory() *Factory {
	factory := &Factory{
		defaultExtractor: &plainExtractor{},
		byExtension:      make(map[string]Extractor),
	}
	factory.Register(".pdf", &pdfExtractor{})
	factory.Register(".docx", &docxExtractor{})
	factory.Register(".xlsx", &excelExtractor{})
	factory.Register(".xlsm", &excelExtractor{})
	factory.Register(".xls", &xlsExtractor{})
	factory.Register(".md", &markdownExtractor{})
	factory.Register(".markdown", &markdownExtractor{})
	return factory
}

// Register registers a custom extractor for a file extension.
func (f *Factory) Register(ext string, extractor Extractor) {
	f.byExtension[strings.ToLower(ext)] = extractor
}

// Extractor returns the extractor for the given file path.
func (f *Factory) Extractor(path string) Extractor {
	ext := strings.ToLower(filepath.Ext(path))
	if extractor, ok := f.byExtension[ext]; ok {
		return extractor
	}
	return f.defaultExtractor
}
