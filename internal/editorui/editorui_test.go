package editorui

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/mathedit/internal/engine"
	"github.com/ziadkadry99/mathedit/internal/mathid"
	"github.com/ziadkadry99/mathedit/internal/mathrender"
)

type fakeEngine struct{}

func (fakeEngine) ToMathML(latex string, display bool) (string, error) {
	return "<math><mi>" + latex + "</mi></math>", nil
}

func (fakeEngine) ToImage(latex string, _ bool, _ float64, format engine.ImageFormat) (string, error) {
	return `<img src="data:image/` + string(format) + `;base64,AA==" alt="` + latex + `">`, nil
}

func setupRouter(t *testing.T, alt engine.Alternate) (chi.Router, *mathrender.SettingsHolder) {
	t.Helper()
	caps := engine.NewCapabilities()
	if alt != nil {
		caps.SetAlternate(alt)
	}
	settings := mathrender.NewSettingsHolder(mathrender.DefaultSettings())
	renderer := mathrender.NewRenderer(mathid.NewAllocator(mathid.NewRegistry(), nil), caps, nil)
	r := chi.NewRouter()
	New(settings, renderer).RegisterRoutes(r)
	return r, settings
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestServeIndex(t *testing.T) {
	r, _ := setupRouter(t, nil)
	w := do(r, "GET", "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "insertMath") {
		t.Error("page does not register the insertMath command")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	r, holder := setupRouter(t, nil)

	w := do(r, "GET", "/api/math/settings", "")
	var got mathrender.Settings
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != mathrender.DefaultSettings() {
		t.Errorf("GET settings = %+v, want defaults", got)
	}

	w = do(r, "PUT", "/api/math/settings", `{"output_format":"png"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	s := holder.Get()
	if s.OutputFormat != mathrender.FormatPNG || !s.UseAlternateEngine {
		t.Errorf("partial update gave %+v", s)
	}

	w = do(r, "PUT", "/api/math/settings", `{"output_format":"gif"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid format: expected 400, got %d", w.Code)
	}
	if holder.Get().OutputFormat != mathrender.FormatPNG {
		t.Error("invalid update changed settings")
	}

	w = do(r, "PUT", "/api/math/settings", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad body: expected 400, got %d", w.Code)
	}
}

func TestRenderWithoutEngineFallsBack(t *testing.T) {
	r, _ := setupRouter(t, nil)
	w := do(r, "POST", "/api/math/render", `{"latex":"\\frac{1}{2}"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var res mathrender.Result
	json.Unmarshal(w.Body.Bytes(), &res)
	if res.Kind != mathrender.KindRawSpan {
		t.Errorf("Kind = %q, want raw span", res.Kind)
	}
	if !mathid.Valid(res.ID) || !strings.Contains(res.HTML, `data-latex="\frac{1}{2}"`) {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestRenderKeepsGivenID(t *testing.T) {
	r, _ := setupRouter(t, fakeEngine{})
	w := do(r, "POST", "/api/math/render", `{"latex":"x^2","id":"m0042"}`)
	var res mathrender.Result
	json.Unmarshal(w.Body.Bytes(), &res)
	if res.ID != "m0042" || res.Kind != mathrender.KindImageSVG {
		t.Errorf("got id %q kind %q", res.ID, res.Kind)
	}
	if !strings.Contains(res.HTML, `id="m0042"`) {
		t.Errorf("html lost id: %s", res.HTML)
	}
}

func TestRenderRequiresLatex(t *testing.T) {
	r, _ := setupRouter(t, nil)
	if w := do(r, "POST", "/api/math/render", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
