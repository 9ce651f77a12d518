package walker

import (
	"path/filepath"
	"strings"
)

// Kind classifies a document file.
type Kind string

const (
	KindHTML     Kind = "html"
	KindMarkdown Kind = "markdown"
	KindUnknown  Kind = ""
)

var extensionToKind = map[string]Kind{
	".html":     KindHTML,
	".htm":      KindHTML,
	".xhtml":    KindHTML,
	".md":       KindMarkdown,
	".markdown": KindMarkdown,
}

// DetectKind returns the document kind for a file name or path.
func DetectKind(name string) Kind {
	return extensionToKind[strings.ToLower(filepath.Ext(name))]
}
