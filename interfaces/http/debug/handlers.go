package debug

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"braindump/application/commands"
	"braindump/application/queries"
	"braindump/application/services"
	"braindump/domain/core/valueobjects"
	"braindump/domain/versioning"
	pkgerrors "braindump/pkg/errors"
)

type engineHandler struct {
	store     *services.GraphStore
	history   *services.HistoryManager
	mutations *services.MutationService
	logger    *zap.Logger
}

func newEngineHandler(
	store *services.GraphStore,
	history *services.HistoryManager,
	mutations *services.MutationService,
	logger *zap.Logger,
) *engineHandler {
	return &engineHandler{store: store, history: history, mutations: mutations, logger: logger}
}

// GetGraph returns the full render model of the workspace
func (h *engineHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, queries.BuildGraphView(h.store))
}

// GetWorkspace returns the workspace aggregate state
func (h *engineHandler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	workspace := h.store.Workspace()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":         workspace.ID().String(),
		"name":       workspace.Name(),
		"idea_count": workspace.IdeaCount(),
		"edge_count": workspace.EdgeCount(),
		"viewport":   workspace.Viewport(),
	})
}

// RenameWorkspace changes the workspace name
func (h *engineHandler) RenameWorkspace(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.store.RenameWorkspace(r.Context(), body.Name); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"name": body.Name})
}

// SaveViewport stores the canvas pan/zoom state. The write is
// fire-and-forget like position updates.
func (h *engineHandler) SaveViewport(w http.ResponseWriter, r *http.Request) {
	var viewport valueobjects.Viewport
	if !decodeBody(w, r, &viewport) {
		return
	}
	h.store.SaveViewport(r.Context(), viewport)
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// CreateNode creates a standalone node
func (h *engineHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var cmd commands.CreateNodeCommand
	if !decodeBody(w, r, &cmd) {
		return
	}
	id, err := h.mutations.CreateNode(r.Context(), cmd)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"node_id": id.String()})
}

// CreateNodeWithEdge atomically creates a node and its parent edge
func (h *engineHandler) CreateNodeWithEdge(w http.ResponseWriter, r *http.Request) {
	var cmd commands.CreateNodeWithEdgeCommand
	if !decodeBody(w, r, &cmd) {
		return
	}
	result, err := h.mutations.CreateNodeWithEdge(r.Context(), cmd)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	response := map[string]string{"node_id": result.NodeID.String()}
	if !result.EdgeID.IsZero() {
		response["edge_id"] = result.EdgeID.String()
	}
	respondJSON(w, http.StatusCreated, response)
}

// MergeNodes folds one node into another
func (h *engineHandler) MergeNodes(w http.ResponseWriter, r *http.Request) {
	var cmd commands.MergeNodesCommand
	if !decodeBody(w, r, &cmd) {
		return
	}
	targetID, err := h.mutations.MergeNodes(r.Context(), cmd)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"target_id": targetID.String()})
}

// DuplicateNodes clones nodes at an offset
func (h *engineHandler) DuplicateNodes(w http.ResponseWriter, r *http.Request) {
	var cmd commands.DuplicateNodesCommand
	if !decodeBody(w, r, &cmd) {
		return
	}
	created, err := h.mutations.DuplicateNodes(r.Context(), cmd)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	ids := make([]string, 0, len(created))
	for _, id := range created {
		ids = append(ids, id.String())
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"node_ids": ids})
}

// UpdateNodeText replaces a node's text
func (h *engineHandler) UpdateNodeText(w http.ResponseWriter, r *http.Request) {
	id, err := valueobjects.NewNodeIDFromString(chi.URLParam(r, "nodeID"))
	if err != nil {
		respondError(w, h.logger, pkgerrors.NewValidationError("invalid node id"))
		return
	}

	var body struct {
		Text           string `json:"text"`
		SkipEnrichment bool   `json:"skip_enrichment,omitempty"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := h.store.UpdateNodeText(r.Context(), id, body.Text, body.SkipEnrichment); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// UpdateNodePosition moves a node. Always answers accepted: position
// updates are fire-and-forget by contract.
func (h *engineHandler) UpdateNodePosition(w http.ResponseWriter, r *http.Request) {
	id, err := valueobjects.NewNodeIDFromString(chi.URLParam(r, "nodeID"))
	if err != nil {
		respondError(w, h.logger, pkgerrors.NewValidationError("invalid node id"))
		return
	}

	var body struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	position, err := valueobjects.NewPosition(body.X, body.Y)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.store.UpdateNodePosition(id, position)
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// DeleteNode removes a node and its edges
func (h *engineHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	id, err := valueobjects.NewNodeIDFromString(chi.URLParam(r, "nodeID"))
	if err != nil {
		respondError(w, h.logger, pkgerrors.NewValidationError("invalid node id"))
		return
	}
	if err := h.store.DeleteNode(r.Context(), id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// CreateEdge connects two existing nodes
func (h *engineHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	var cmd commands.ConnectNodesCommand
	if !decodeBody(w, r, &cmd) {
		return
	}
	id, err := h.mutations.ConnectNodes(r.Context(), cmd)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"edge_id": id.String()})
}

// DeleteEdge removes an edge
func (h *engineHandler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	id, err := valueobjects.NewEdgeIDFromString(chi.URLParam(r, "edgeID"))
	if err != nil {
		respondError(w, h.logger, pkgerrors.NewValidationError("invalid edge id"))
		return
	}
	if err := h.store.DeleteEdge(r.Context(), id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GetHistory reports the undo stack state. The cursor and live
// descriptors let a client see whether the graph has drifted from the
// history cursor (pending debounced captures, for example).
func (h *engineHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	cursor := versioning.Describe(h.history.Current())
	live := versioning.Describe(h.store.Snapshot())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"length":   h.history.Len(),
		"cursor":   h.history.Cursor(),
		"can_undo": h.history.CanUndo(),
		"can_redo": h.history.CanRedo(),
		"at":       cursor,
		"live":     live,
		"drift":    versioning.Compare(cursor, live),
	})
}

// Undo restores the previous history snapshot
func (h *engineHandler) Undo(w http.ResponseWriter, r *http.Request) {
	restored, err := h.mutations.Undo(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"restored": restored})
}

// Redo re-applies the next history snapshot
func (h *engineHandler) Redo(w http.ResponseWriter, r *http.Request) {
	restored, err := h.mutations.Redo(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"restored": restored})
}

// Validate runs integrity validation against the live graph
func (h *engineHandler) Validate(w http.ResponseWriter, r *http.Request) {
	report := h.store.Snapshot().Report()
	status := http.StatusOK
	if !report.Valid {
		status = http.StatusConflict
	}
	respondJSON(w, status, report)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case pkgerrors.IsValidation(err):
		status = http.StatusBadRequest
	case pkgerrors.IsNotFound(err):
		status = http.StatusNotFound
	case pkgerrors.IsConflict(err), pkgerrors.IsIntegrity(err):
		status = http.StatusConflict
	case pkgerrors.IsPersistence(err):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

// requestLogger logs each request with its latency and status
func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("HTTP Request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("requestID", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}
