package models

// PageSeparator joins page texts in an ExtractedDocument.
const PageSeparator = "\n\n"

// ExtractedDocument is the text layer of one uploaded PDF. It lives for a
// single request.
type ExtractedDocument struct {
	Pages     []string `json:"-"`
	Text      string   `json:"-"`
	PageCount int      `json:"pageCount"`
	CharCount int      `json:"charCount"`
}
