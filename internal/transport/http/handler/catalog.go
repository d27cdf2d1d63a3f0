package handler

import (
	"net/http"

	"github.com/barbershop-booking/internal/application/catalog"
	"github.com/barbershop-booking/internal/domain"
	"github.com/go-chi/chi/v5"
)

const maxImageBytes = 5 << 20

// CatalogHandler serves services and products. The kind comes from the
// route, so one handler backs both.
type CatalogHandler struct {
	svc catalog.Service
}

func NewCatalogHandler(svc catalog.Service) *CatalogHandler { return &CatalogHandler{svc: svc} }

func kindParam(r *http.Request) domain.CatalogKind {
	return domain.CatalogKind(chi.URLParam(r, "kind"))
}

// List shows enabled items; admins pass ?all=true to include disabled ones.
func (h *CatalogHandler) List(includeDisabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all := includeDisabled && r.URL.Query().Get("all") == "true"
		page, err := h.svc.List(r.Context(), kindParam(r), all, perPage(r), r.URL.Query().Get("cursor"))
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in domain.CatalogInput
	if !decode(w, r, &in) {
		return
	}
	item, err := h.svc.Create(r.Context(), kindParam(r), in)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *CatalogHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in domain.CatalogInput
	if !decode(w, r, &in) {
		return
	}
	item, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "item deleted"})
}

// UploadImage expects a multipart form with the image in the "file" field.
func (h *CatalogHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+(1<<20))
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	item, err := h.svc.UploadImage(r.Context(), chi.URLParam(r, "id"), header.Filename, file)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
