package markdown

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/mathedit/internal/content"
)

type importRequest struct {
	Markdown   string `json:"markdown"`
	Title      string `json:"title"`
	EditorType string `json:"editor_type"`
}

// RegisterRoutes mounts the markdown import endpoint.
func RegisterRoutes(r chi.Router, conv *Converter, store *content.Store) {
	r.Post("/api/content/import", importHandler(conv, store))
}

func importHandler(conv *Converter, store *content.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req importRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Markdown == "" {
			writeError(w, http.StatusBadRequest, "markdown is required")
			return
		}

		doc, err := conv.Convert([]byte(req.Markdown))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		c := ToContent(doc)
		if req.Title != "" {
			c.Title = req.Title
		}
		if req.EditorType != "" {
			c.EditorType = content.EditorType(req.EditorType)
		}
		if !c.EditorType.Valid() {
			writeError(w, http.StatusBadRequest, "unknown editor_type "+string(c.EditorType))
			return
		}
		if err := store.Create(r.Context(), c); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

// ToContent builds an unsaved content record from doc.
func ToContent(doc *Document) *content.Content {
	c := &content.Content{
		Title:      doc.Title,
		Content:    doc.HTML,
		EditorType: content.EditorType(doc.EditorType),
	}
	if c.Title == "" {
		c.Title = content.DefaultTitle
	}
	if c.EditorType == "" {
		c.EditorType = content.EditorVanilla
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
