package readers

// Page is one extracted page of a source document. Formats without page
// structure yield a single page numbered 1.
type Page struct {
	Number int
	Text   string
}

// FileReader extracts the text of a document it recognizes by path.
type FileReader interface {
	CanRead(path string) bool
	ReadPages(path string) ([]Page, error)
}
