package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// ArchiveService browses and triggers trade archives.
type ArchiveService interface {
	RunOnce(ctx context.Context) (int64, error)
	List(ctx context.Context, prefix string) ([]domain.BlobInfo, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// ArchiveHandler serves the S3 trade archive.
type ArchiveHandler struct {
	archives ArchiveService
	logger   *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(archives ArchiveService, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{archives: archives, logger: logger}
}

// List returns archived objects.
// GET /api/archives?prefix=trades/2024/05/
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = "trades/"
	}
	infos, err := h.archives.List(r.Context(), prefix)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list archives")
		return
	}
	if infos == nil {
		infos = []domain.BlobInfo{}
	}
	writeData(w, http.StatusOK, infos)
}

// Get streams one archive as JSON lines.
// GET /api/archives/{path...}
func (h *ArchiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := r.PathValue("path")
	rc, err := h.archives.Open(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to open archive")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(p)+`"`)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "archive stream interrupted",
			slog.String("path", p),
			slog.String("error", err.Error()),
		)
	}
}

// Run triggers an archive pass.
// POST /api/archives/run
func (h *ArchiveHandler) Run(w http.ResponseWriter, r *http.Request) {
	n, err := h.archives.RunOnce(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "archive pass failed")
		return
	}
	writeData(w, http.StatusOK, map[string]int64{"archived": n})
}
