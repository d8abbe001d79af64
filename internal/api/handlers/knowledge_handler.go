package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/minatolabs/kbchat/internal/api/middlewares"
	"github.com/minatolabs/kbchat/internal/kb"
	"github.com/minatolabs/kbchat/internal/kb/ingest"
	"github.com/minatolabs/kbchat/internal/models"
)

const maxUploadBytes = 550 << 20 // request body ceiling; media has its own limit

type KnowledgeHandler struct {
	ingestor   *ingest.Ingestor
	registry   *kb.Registry
	aggregator *kb.Aggregator
}

func NewKnowledgeHandler(ing *ingest.Ingestor, reg *kb.Registry, agg *kb.Aggregator) *KnowledgeHandler {
	return &KnowledgeHandler{ingestor: ing, registry: reg, aggregator: agg}
}

// Upload ingests one multipart file under the "file" field.
func (h *KnowledgeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := middlewares.UserFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "could not read upload", http.StatusBadRequest)
		return
	}

	src, err := h.ingestor.IngestFile(r.Context(), user, header.Filename, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, src)
}

type urlRequest struct {
	URL string `json:"url"`
}

// IngestURL ingests a web page, video link, or remote document.
func (h *KnowledgeHandler) IngestURL(w http.ResponseWriter, r *http.Request) {
	user, ok := middlewares.UserFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req urlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	src, err := h.ingestor.IngestURL(r.Context(), user, req.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, src)
}

type knowledgeSummary struct {
	Sources     []models.Source `json:"sources"`
	RecordCount int             `json:"record_count"`
	Columns     []string        `json:"columns"`
	RefreshedAt string          `json:"refreshed_at"`
}

// Summary reports what the caller's knowledge base currently holds.
func (h *KnowledgeHandler) Summary(w http.ResponseWriter, r *http.Request) {
	user, ok := middlewares.UserFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	super := user.Role == models.RoleSuperAdmin
	sources := h.registry.Resolve(user.TenantID, super)
	agg := h.aggregator.Current()

	records := 0
	for _, rec := range agg.Records {
		if super || (user.TenantID != "" && rec.TenantID == user.TenantID) {
			records++
		}
	}

	writeJSON(w, http.StatusOK, knowledgeSummary{
		Sources:     sources,
		RecordCount: records,
		Columns:     agg.Columns,
		RefreshedAt: agg.RefreshedAt.Format(time.RFC3339),
	})
}
