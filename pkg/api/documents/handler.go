package documents

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"financial_extractor/pkg/api/respond"
	"financial_extractor/pkg/core/session"
	"financial_extractor/pkg/core/validate"
)

// Extraction modes accepted by the form field "mode".
const (
	ModeNumeric = "numeric"
	ModeChart   = "chart"
)

// multipartMemory is the in-memory part of a parsed upload; the rest spills to disk.
const multipartMemory = 32 << 20

// Handler serves document analysis
type Handler struct {
	ctrl     *session.Controller
	maxBytes int64
}

// NewHandler creates a documents handler. maxBytes <= 0 disables the size ceiling.
func NewHandler(ctrl *session.Controller, maxBytes int64) *Handler {
	return &Handler{ctrl: ctrl, maxBytes: maxBytes}
}

// HandleExtract runs numeric or chart extraction over an uploaded PDF or HTML file.
// Form fields: file, pages (blank for all), mode (numeric|chart).
func (h *Handler) HandleExtract(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		respond.BadRequest(w, "Invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	mode := r.FormValue("mode")
	if mode == "" {
		mode = ModeNumeric
	}
	if mode != ModeNumeric && mode != ModeChart {
		respond.Error(w, validate.New("mode", mode, validate.ReasonMalformed, "mode must be %q or %q", ModeNumeric, ModeChart))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respond.Error(w, validate.New("file", "", validate.ReasonEmpty, "a document upload is required"))
		return
	}
	defer file.Close()

	if err := validate.CheckSize(header.Filename, header.Size, h.maxBytes); err != nil {
		respond.Error(w, err)
		return
	}

	path, cleanup, err := spool(file, header.Filename)
	if err != nil {
		respond.Error(w, err)
		return
	}
	defer cleanup()

	doc := session.Document{Path: path, FileName: filepath.Base(header.Filename)}
	pages := r.FormValue("pages")

	var result *session.ExtractResult
	if mode == ModeChart {
		result, err = h.ctrl.ExtractCharts(r.Context(), doc, pages)
	} else {
		result, err = h.ctrl.ExtractNumeric(r.Context(), doc, pages)
	}
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, result)
}

// spool copies the upload to a temp file, since the PDF reader and pdftoppm
// both need a path.
func spool(src io.Reader, fileName string) (string, func(), error) {
	tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(fileName))
	if err != nil {
		return "", nil, eris.Wrap(err, "create upload temp file")
	}
	cleanup := func() {
		if err := os.Remove(tmp.Name()); err != nil {
			zap.L().Debug("temp file cleanup failed", zap.String("path", tmp.Name()), zap.Error(err))
		}
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, eris.Wrap(err, "store upload")
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, eris.Wrap(err, "store upload")
	}
	return tmp.Name(), cleanup, nil
}
