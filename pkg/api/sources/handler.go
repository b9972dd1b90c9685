package sources

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"financial_extractor/pkg/api/respond"
	"financial_extractor/pkg/core/export"
	"financial_extractor/pkg/core/session"
	"financial_extractor/pkg/core/validate"
	"financial_extractor/pkg/models"
)

const (
	archiveName  = "data_sources.zip"
	workbookName = "data_sources.xlsx"
	xlsxType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	defaultSession = "default"
)

// Handler serves the data source registry, exports and session snapshots
type Handler struct {
	ctrl     *session.Controller
	maxBytes int64
}

// NewHandler creates a sources handler. maxBytes <= 0 disables the upload ceiling.
func NewHandler(ctrl *session.Controller, maxBytes int64) *Handler {
	return &Handler{ctrl: ctrl, maxBytes: maxBytes}
}

// Summary lists a source without its records.
type Summary struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Type     models.Origin   `json:"type"`
	DataType models.DataType `json:"dataType"`
	Count    int             `json:"count"`
	Active   bool            `json:"active"`
}

// ListResponse is the registry in insertion order.
type ListResponse struct {
	Sources  []Summary `json:"sources"`
	ActiveID string    `json:"active_id"`
}

// SessionRequest names a snapshot; blank means "default".
type SessionRequest struct {
	Name string `json:"name"`
}

// SessionResponse reports a saved or loaded snapshot.
type SessionResponse struct {
	Name     string `json:"name"`
	Sources  int    `json:"sources"`
	ActiveID string `json:"active_id"`
}

// =============================================================================
// REGISTRY
// =============================================================================

// HandleImport adds an uploaded JSON file as a new source
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		respond.Error(w, validate.New("file", "", validate.ReasonEmpty, "a JSON upload is required"))
		return
	}
	defer file.Close()

	if err := validate.CheckSize(header.Filename, header.Size, h.maxBytes); err != nil {
		respond.Error(w, err)
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		respond.BadRequest(w, "Could not read upload")
		return
	}

	src, err := h.ctrl.ImportJSON(data, header.Filename)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, summarize(src, true))
}

// HandleList returns every source without records
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	activeID := h.ctrl.Registry().ActiveID()
	resp := ListResponse{Sources: []Summary{}, ActiveID: activeID}
	for _, src := range h.ctrl.Sources() {
		resp.Sources = append(resp.Sources, summarize(src, src.ID == activeID))
	}
	respond.JSON(w, http.StatusOK, resp)
}

// HandleGet returns one source with its records
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	src, ok := h.ctrl.Source(chi.URLParam(r, "id"))
	if !ok {
		respond.NotFound(w, "Source not found")
		return
	}
	respond.JSON(w, http.StatusOK, src)
}

// HandleSelect makes a source active
func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	if !h.ctrl.Select(chi.URLParam(r, "id")) {
		respond.NotFound(w, "Source not found")
		return
	}
	h.HandleList(w, r)
}

// HandleDelete removes a source
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if !h.ctrl.Remove(chi.URLParam(r, "id")) {
		respond.NotFound(w, "Source not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func summarize(src *models.DataSource, active bool) Summary {
	return Summary{
		ID:       src.ID,
		Name:     src.Name,
		Type:     src.Type,
		DataType: src.DataType,
		Count:    src.Len(),
		Active:   active,
	}
}

// =============================================================================
// EXPORT
// =============================================================================

// HandleExport downloads one source as canonical JSON.
// Query flags: metadata_only, page_suffix.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	src, ok := h.ctrl.Source(chi.URLParam(r, "id"))
	if !ok {
		respond.NotFound(w, "Source not found")
		return
	}
	f, err := export.Source(src, exportOptions(r))
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.Download(w, "application/json", f.Name, f.Content)
}

// HandleArchive downloads every source as a ZIP of canonical JSON files
func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	content, err := export.Archive(h.ctrl.Sources(), exportOptions(r))
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.Download(w, "application/zip", archiveName, content)
}

// HandleWorkbook downloads every source as one XLSX workbook
func (h *Handler) HandleWorkbook(w http.ResponseWriter, r *http.Request) {
	content, err := export.Workbook(h.ctrl.Sources())
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.Download(w, xlsxType, workbookName, content)
}

func exportOptions(r *http.Request) export.Options {
	q := r.URL.Query()
	return export.Options{
		MetadataOnly: flag(q.Get("metadata_only")),
		PageSuffix:   flag(q.Get("page_suffix")),
	}
}

func flag(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

// =============================================================================
// SESSION SNAPSHOTS
// =============================================================================

// HandleSave persists the registry
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	name, ok := sessionName(w, r)
	if !ok {
		return
	}
	if err := h.ctrl.SaveSnapshot(r.Context(), name); err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, SessionResponse{
		Name:     name,
		Sources:  h.ctrl.Registry().Len(),
		ActiveID: h.ctrl.Registry().ActiveID(),
	})
}

// HandleLoad replaces the registry with a saved snapshot
func (h *Handler) HandleLoad(w http.ResponseWriter, r *http.Request) {
	name, ok := sessionName(w, r)
	if !ok {
		return
	}
	snap, err := h.ctrl.LoadSnapshot(r.Context(), name)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, SessionResponse{
		Name:     name,
		Sources:  len(snap.Sources),
		ActiveID: h.ctrl.Registry().ActiveID(),
	})
}

func sessionName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req SessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			respond.BadRequest(w, "Invalid request body")
			return "", false
		}
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = defaultSession
	}
	return name, true
}
