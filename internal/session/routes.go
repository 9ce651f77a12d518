package session

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/mathedit/internal/content"
	"github.com/ziadkadry99/mathedit/internal/dialog"
	"github.com/ziadkadry99/mathedit/internal/mathrender"
)

// RegisterRoutes mounts session endpoints on the given router.
func RegisterRoutes(r chi.Router, m *Manager) {
	r.Post("/api/sessions", createHandler(m))
	r.Route("/api/sessions/{sid}", func(r chi.Router) {
		r.Get("/", getHandler(m))
		r.Put("/", setDataHandler(m))
		r.Delete("/", deleteHandler(m))
		r.Post("/dialog", openDialogHandler(m))
		r.Put("/dialog", setLatexHandler(m))
		r.Post("/dialog/key", keyHandler(m))
		r.Post("/dialog/confirm", confirmHandler(m))
		r.Post("/dialog/cancel", cancelHandler(m))
		r.Post("/cursor", cursorHandler(m))
		r.Post("/reconcile", reconcileHandler(m))
		r.Post("/save", saveHandler(m))
	})
}

type dialogView struct {
	State    string `json:"state"`
	Latex    string `json:"latex"`
	TargetID string `json:"target_id,omitempty"`
}

type sessionView struct {
	Info
	Dialog dialogView `json:"dialog"`
}

type confirmResponse struct {
	Result *mathrender.Result `json:"result"`
	Data   string             `json:"data"`
	Dialog dialogView         `json:"dialog"`
}

func viewOf(s *Session) sessionView {
	return sessionView{Info: s.Info(), Dialog: dialogOf(s.Dialog)}
}

func dialogOf(c *dialog.Controller) dialogView {
	return dialogView{State: c.State().String(), Latex: c.Latex(), TargetID: c.TargetID()}
}

func createHandler(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ContentID  string `json:"content_id"`
			EditorType string `json:"editor_type"`
		}
		if err := decodeOptional(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		et := content.EditorType(req.EditorType)
		if et != "" && !et.Valid() {
			writeError(w, http.StatusBadRequest, "unknown editor_type "+req.EditorType)
			return
		}

		s, err := m.Create(r.Context(), req.ContentID, et)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, content.ErrNotFound) {
				status = http.StatusNotFound
			}
			writeError(w, status, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, viewOf(s))
	}
}

// withSession resolves {sid} before calling fn.
func withSession(m *Manager, fn func(w http.ResponseWriter, r *http.Request, s *Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Get(chi.URLParam(r, "sid"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		fn(w, r, s)
	}
}

func getHandler(m *Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *Session) {
		writeJSON(w, http.StatusOK, viewOf(s))
	})
}

func setDataHandler(m *Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *Session) {
		var req struct {
			Data *string `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Data == nil {
			writeError(w, http.StatusBadRequest, "data is required")
			return
		}
		if err := s.SetData(*req.Data); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, viewOf(s))
	})
}

func deleteHandler(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := m.Delete(chi.URLParam(r, "sid")); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func openDialogHandler(m *Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *Session) {
		var req struct {
			TargetID string `json:"target_id"`
		}
		if err := decodeOptional(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if req.TargetID == "" {
			if err := s.Doc.ExecCommand(dialog.CommandInsertMath); err != nil {
				writeDialogError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, dialogOf(s.Dialog))
			return
		}

		target := s.Doc.ElementByID(req.TargetID)
		if target == nil {
			writeError(w, http.StatusNotFound, "no element with id "+req.TargetID)
			return
		}
		ok, err := s.Dialog.Activate(target)
		if err != nil {
			writeDialogError(w, err)
			return
		}
		if !ok {
			writeError(w, http.StatusBadRequest, req.TargetID+" is not a math node")
			return
		}
		writeJSON(w, http.StatusOK, dialogOf(s.Dialog))
	})
}

func setLatexHandler(m *Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *Session) {
		var req struct {
			Latex string `json:"latex"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := s.Dialog.SetLatex(req.Latex); err != nil {
			writeDialogError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dialogOf(s.Dialog))
	})
}

func keyHandler(m *Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *Session) {
		var req struct {
			Key string `json:"key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		res, err := s.Dialog.HandleKey(req.Key, s.Settings())
		if err != nil {
			writeDialogError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, confirmResponse{Result: res, Data: s.Doc.GetData(), Dialog: dialogOf(s.Dialog)})
	})
}

func confirmHandler(m *Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *Session) {
		res, err := s.Dialog.Confirm(s.Settings())
		if err != nil {
			writeDialogError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, confirmResponse{Result: res, Data: s.Doc.GetData(), Dialog: dialogOf(s.Dialog)})
	})
}

func cancelHandler(m *Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *Session) {
		s.Dialog.Cancel()
		writeJSON(w, http.StatusOK, dialogOf(s.Dialog))
	})
}

func cursorHandler(m *Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *Session) {
		var req struct {
			AfterID string `json:"after_id"`
		}
		if err := decodeOptional(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := s.MoveCursor(req.AfterID); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func reconcileHandler(m *Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *Session) {
		var req struct {
			ID string `json:"id"`
		}
		if err := decodeOptional(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		report, err := s.RenderAll(r.Context(), req.ID)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, report)
	})
}

func saveHandler(m *Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *Session) {
		var req struct {
			Title string `json:"title"`
		}
		if err := decodeOptional(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if m.Store() == nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "no content store", "status": StatusFailed})
			return
		}
		c, status, err := s.Save(r.Context(), m.Store(), req.Title)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error(), "status": status})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": status, "content": c})
	})
}

// decodeOptional decodes a JSON body that may be absent.
func decodeOptional(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeDialogError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, dialog.ErrNotOpen), errors.Is(err, dialog.ErrTargetDetached), errors.Is(err, dialog.ErrClosed):
		status = http.StatusConflict
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
