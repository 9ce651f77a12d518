// Package session owns editing sessions: one live document per open editor,
// with its own id registry, renderer, reconciler and math dialog.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/mathedit/internal/content"
	"github.com/ziadkadry99/mathedit/internal/dialog"
	"github.com/ziadkadry99/mathedit/internal/document"
	"github.com/ziadkadry99/mathedit/internal/engine"
	"github.com/ziadkadry99/mathedit/internal/mathid"
	"github.com/ziadkadry99/mathedit/internal/mathrender"
	"github.com/ziadkadry99/mathedit/internal/reconcile"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// Save status messages shown next to the save button.
const (
	StatusSaved   = "Content saved successfully!"
	StatusUpdated = "Content updated successfully!"
	StatusFailed  = "Error saving content. Please try again."
)

// Session is one open editor.
type Session struct {
	ID         string
	CreatedAt  time.Time
	Doc        *document.Document
	IDs        *mathid.Allocator
	Renderer   *mathrender.Renderer
	Reconciler *reconcile.Reconciler
	Dialog     *dialog.Controller

	settings *mathrender.SettingsHolder
	logger   *log.Logger
	lastUsed atomic.Int64 // unix nanoseconds

	mu         sync.Mutex
	contentID  string
	title      string
	editorType content.EditorType
	lastReport reconcile.Report
}

// Info is the serializable view of a session.
type Info struct {
	ID         string             `json:"id"`
	ContentID  string             `json:"content_id,omitempty"`
	Title      string             `json:"title"`
	EditorType content.EditorType `json:"editor_type"`
	Data       string             `json:"data"`
	MathIDs    []string           `json:"math_ids"`
	LastReport reconcile.Report   `json:"last_report"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Info snapshots the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:         s.ID,
		ContentID:  s.contentID,
		Title:      s.title,
		EditorType: s.editorType,
		Data:       s.Doc.GetData(),
		MathIDs:    s.IDs.Registry().IDs(),
		LastReport: s.lastReport,
		CreatedAt:  s.CreatedAt,
	}
}

// Settings returns the render settings in effect right now.
func (s *Session) Settings() mathrender.Settings {
	return s.settings.Get()
}

// SetData replaces the document content. Math ids found in data are adopted
// so that new ids never collide with them.
func (s *Session) SetData(data string) error {
	if err := s.Doc.SetData(data); err != nil {
		return err
	}
	reconcile.AdoptIDs(s.Doc, s.IDs)
	return nil
}

// RenderAll re-renders the document's math under the current settings,
// optionally limited to one source id.
func (s *Session) RenderAll(ctx context.Context, restrictToID string) (reconcile.Report, error) {
	report, err := s.Reconciler.RenderAll(ctx, s.Doc, s.settings.Get(), restrictToID)
	s.mu.Lock()
	s.lastReport = report
	s.mu.Unlock()
	return report, err
}

// MoveCursor places the insertion point after the element with id afterID,
// or at the end of the document when afterID is empty.
func (s *Session) MoveCursor(afterID string) error {
	if afterID == "" {
		s.Doc.MoveCursorToEnd()
		return nil
	}
	if !s.Doc.MoveCursorAfter(s.Doc.ElementByID(afterID)) {
		return fmt.Errorf("no element with id %q", afterID)
	}
	return nil
}

// Save writes the document to store, creating the record on first save.
// The returned status is the message to show the user.
func (s *Session) Save(ctx context.Context, store *content.Store, title string) (*content.Content, string, error) {
	s.mu.Lock()
	if title != "" {
		s.title = title
	}
	c := &content.Content{
		ID:         s.contentID,
		Title:      s.title,
		Content:    s.Doc.GetData(),
		EditorType: s.editorType,
	}
	s.mu.Unlock()

	status := StatusUpdated
	var err error
	if c.ID == "" {
		status = StatusSaved
		err = store.Create(ctx, c)
	} else {
		err = store.Update(ctx, c)
	}
	if err != nil {
		s.logger.Printf("[save    ] [status=%q] %s", err, s.ID)
		return nil, StatusFailed, err
	}

	s.mu.Lock()
	s.contentID, s.title = c.ID, c.Title
	s.mu.Unlock()
	return c, status, nil
}

func (s *Session) touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

// LastUsed is when the session was created or last looked up.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load()).UTC()
}

// Close stops the dialog and any pending re-render.
func (s *Session) Close() {
	s.Dialog.Close()
}

// Manager tracks open sessions.
type Manager struct {
	caps     *engine.Capabilities
	settings *mathrender.SettingsHolder
	store    *content.Store
	opts     dialog.Options
	logger   *log.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns an empty manager. store may be nil, in which case
// sessions can only start from a sample document.
func NewManager(caps *engine.Capabilities, settings *mathrender.SettingsHolder, store *content.Store, opts dialog.Options, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}
	return &Manager{
		caps:     caps,
		settings: settings,
		store:    store,
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Store returns the content store, which may be nil.
func (m *Manager) Store() *content.Store { return m.store }

// Settings returns the shared settings holder.
func (m *Manager) Settings() *mathrender.SettingsHolder { return m.settings }

// Create opens a session. With a contentID the saved document is loaded;
// otherwise a random sample starts the session. Once the document is ready
// its math is rendered.
func (m *Manager) Create(ctx context.Context, contentID string, editorType content.EditorType) (*Session, error) {
	if editorType == "" {
		editorType = content.EditorVanilla
	}

	var title, data string
	if contentID != "" {
		if m.store == nil {
			return nil, fmt.Errorf("loading content %s: no content store", contentID)
		}
		c, err := m.store.Get(ctx, contentID)
		if err != nil {
			return nil, fmt.Errorf("loading content %s: %w", contentID, err)
		}
		title, data, editorType = c.Title, c.Content, c.EditorType
	} else {
		sample := content.RandomSample(nil)
		title, data = sample.Title, sample.Content
	}

	s := m.newSession(contentID, title, editorType)
	s.Doc.OnReady(func() {
		report, err := s.RenderAll(context.Background(), "")
		if err != nil {
			m.logger.Printf("[session ] [status=%q] render on ready %s", err, s.ID)
		}
		if len(report.Failed) > 0 {
			m.logger.Printf("[session ] [status=\"partial\"] %s: %d of %d failed", s.ID, len(report.Failed), len(report.Failed)+len(report.Converted))
		}
	})
	if err := s.SetData(data); err != nil {
		return nil, err
	}
	s.Doc.MarkReady()

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

func (m *Manager) newSession(contentID, title string, editorType content.EditorType) *Session {
	id := uuid.NewString()
	doc := document.New(id)
	ids := mathid.NewAllocator(mathid.NewRegistry(), nil)
	renderer := mathrender.NewRenderer(ids, m.caps, m.logger)

	s := &Session{
		ID:         id,
		CreatedAt:  time.Now().UTC(),
		Doc:        doc,
		IDs:        ids,
		Renderer:   renderer,
		Reconciler: reconcile.New(ids, m.caps, m.logger),
		Dialog:     dialog.New(doc, renderer, m.caps, m.opts),
		settings:   m.settings,
		logger:     m.logger,
		contentID:  contentID,
		title:      title,
		editorType: editorType,
	}
	s.touch(s.CreatedAt)
	s.Dialog.Register()
	return s
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(time.Now())
	return s, nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Delete tears a session down.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	return nil
}

// Expire tears down sessions not used within idle of now and returns
// their ids. Editors that never send DELETE are reclaimed this way.
func (m *Manager) Expire(now time.Time, idle time.Duration) []string {
	cutoff := now.Add(-idle).UnixNano()
	var stale []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.lastUsed.Load() < cutoff {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	ids := make([]string, 0, len(stale))
	for _, s := range stale {
		s.Close()
		ids = append(ids, s.ID)
		m.logger.Printf("[session ] [status=\"expired\"] %s", s.ID)
	}
	return ids
}

// ExpireIdle runs Expire every interval until ctx is done. A non-positive
// idle disables expiry.
func (m *Manager) ExpireIdle(ctx context.Context, idle, interval time.Duration) {
	if idle <= 0 {
		return
	}
	if interval <= 0 {
		interval = idle / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Expire(now, idle)
		}
	}
}

// CloseAll tears every session down.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
