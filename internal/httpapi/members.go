package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"famgraph/pkg/domain"
)

// maxBodyBytes bounds member request bodies.
const maxBodyBytes = 1 << 20

// decodeBody decodes a JSON body, rejecting unknown fields so that
// engine-owned fields such as children_ids cannot be smuggled in.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeAPIError(w, http.StatusBadRequest, CodeInvalidBody, err.Error())
		return false
	}
	return true
}

func etag(version int64) string {
	return `"` + strconv.FormatInt(version, 10) + `"`
}

// parseIfMatch reads a strong or weak "<version>" ETag from If-Match.
func parseIfMatch(header string) (int64, error) {
	v := strings.TrimPrefix(strings.TrimSpace(header), "W/")
	v = strings.Trim(v, `"`)
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid If-Match %q", header)
	}
	return n, nil
}

func writeMember(w http.ResponseWriter, status int, m domain.Member) {
	w.Header().Set("ETag", etag(m.Version))
	writeJSON(w, status, m)
}

func (h *handler) listMembers(w http.ResponseWriter, _ *http.Request) {
	members := h.svc.ListMembers()
	if members == nil {
		members = []domain.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *handler) getMember(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.GetMember(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeMember(w, http.StatusOK, m)
}

func (h *handler) createMember(w http.ResponseWriter, r *http.Request) {
	var input domain.MemberInput
	if !decodeBody(w, r, &input) {
		return
	}
	m, _, err := h.svc.CreateMember(r.Context(), input)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	w.Header().Set("Location", "/api/members/"+m.ID)
	writeMember(w, http.StatusCreated, m)
}

func (h *handler) updateMember(w http.ResponseWriter, r *http.Request) {
	var patch domain.MemberPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	if header := r.Header.Get("If-Match"); header != "" && header != "*" && patch.ExpectedVersion == nil {
		version, err := parseIfMatch(header)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, CodeInvalidBody, err.Error())
			return
		}
		patch.ExpectedVersion = &version
	}
	m, _, err := h.svc.UpdateMember(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeMember(w, http.StatusOK, m)
}

func (h *handler) deleteMember(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.DeleteMember(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) memberRelationships(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.Relationships(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if records == nil {
		records = []domain.RelationshipRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handler) ancestors(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.Ancestors(r.Context(), chi.URLParam(r, "id"))
	h.writeMembers(w, members, err)
}

func (h *handler) descendants(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.Descendants(r.Context(), chi.URLParam(r, "id"))
	h.writeMembers(w, members, err)
}

func (h *handler) writeMembers(w http.ResponseWriter, members []domain.Member, err error) {
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if members == nil {
		members = []domain.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *handler) getGraph(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.Graph(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if g.Members == nil {
		g.Members = []domain.Member{}
	}
	if g.Relationships == nil {
		g.Relationships = []domain.RelationshipRecord{}
	}
	writeJSON(w, http.StatusOK, g)
}
