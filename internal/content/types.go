package content

import "time"

// EditorType names the editor page a document was saved from.
type EditorType string

const (
	EditorVanilla EditorType = "vanilla"
	EditorReact   EditorType = "react"
)

// Valid reports whether t is a known editor type.
func (t EditorType) Valid() bool {
	return t == EditorVanilla || t == EditorReact
}

// DefaultTitle is used when a document is saved without a title.
const DefaultTitle = "Untitled Document"

// DefaultListLimit is how many documents a list returns when unspecified.
const DefaultListLimit = 5

// Content is a saved editor document. Content holds the editor's HTML.
type Content struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	EditorType EditorType `json:"editor_type"`
	UserID     *string    `json:"user_id"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
