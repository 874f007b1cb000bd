package httpapi

import (
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"famgraph/internal/blob"
)

func (h *handler) createExport(w http.ResponseWriter, r *http.Request) {
	info, err := h.exporter.Export(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	h.logger.Info("graph exported", "key", info.Key, "bytes", info.Size)
	writeJSON(w, http.StatusCreated, info)
}

func (h *handler) listExports(w http.ResponseWriter, r *http.Request) {
	infos, err := h.exporter.List(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if infos == nil {
		infos = []blob.Info{}
	}
	writeJSON(w, http.StatusOK, infos)
}

func (h *handler) getExport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || strings.ContainsAny(name, `/\`) || name == ".." {
		writeAPIError(w, http.StatusBadRequest, CodeInvalidBody, "invalid export name")
		return
	}
	doc, err := h.exporter.Load(r.Context(), path.Join(h.exporter.Prefix(), name))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
