package handlers

import (
	"html/template"
	"net/http"
	"strings"

	"neorest/application/commands"
	"neorest/application/commands/bus"
	"neorest/application/queries"
	querybus "neorest/application/queries/bus"
	"neorest/domain/core/valueobjects"
	apperrors "neorest/pkg/errors"
	"neorest/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// extensionFilename labels class declarations posted to /neo in parse errors
const extensionFilename = "request.hcl"

var statusPage = template.Must(template.New("status").Parse(`<html><body><h2>neorest is alive !</h2><p/><h3>Defined REST classes</h3>
{{range .}}Class '{{.}}' <br/>
{{end}}</body></html>
`))

// GraphHandler serves the root status page, class loading and relationships
type GraphHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	uris       URIs
	errors     *apperrors.ErrorHandler
	logger     *zap.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	uris URIs,
	errorHandler *apperrors.ErrorHandler,
	logger *zap.Logger,
) *GraphHandler {
	return &GraphHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		uris:       uris,
		errors:     errorHandler,
		logger:     logger,
	}
}

// Link is a hyperlink object
type Link struct {
	URI string `json:"uri"`
}

// RelationshipResponse is a relationship with links to both endpoints
type RelationshipResponse struct {
	Properties valueobjects.Properties `json:"properties"`
	StartNode  Link                    `json:"start_node"`
	EndNode    Link                    `json:"end_node"`
}

// StatusResponse is the JSON form of the root status page
type StatusResponse struct {
	Classes []string `json:"classes"`
	RefNode string   `json:"ref_node"`
}

// HealthResponse is returned by the liveness and readiness probes
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// GetStatus handles GET /neo: HTML when the client accepts it, JSON otherwise
func (h *GraphHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetStatusQuery{})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	status := result.(queries.GetStatusResult)

	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := statusPage.Execute(w, status.Classes); err != nil {
			h.logger.Error("Failed to render status page", zap.Error(err))
		}
		return
	}

	respondJSON(w, http.StatusOK, StatusResponse{
		Classes: status.Classes,
		RefNode: h.uris.Node(status.RefNode),
	})
}

// DefineClasses handles POST /neo: the body holds HCL class declarations
func (h *GraphHandler) DefineClasses(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.commandBus.Send(r.Context(), commands.DefineClassesCommand{
		Source:   body,
		Filename: extensionFilename,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	defined := result.(commands.DefineClassesResult)
	h.logger.Info("Classes loaded over HTTP",
		zap.Strings("defined", defined.Defined),
		zap.Strings("existing", defined.Existing),
	)
	respondJSON(w, http.StatusOK, defined)
}

// GetRelationship handles GET /relationships/{id}
func (h *GraphHandler) GetRelationship(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetRelationshipQuery{RelationshipID: chi.URLParam(r, "id")})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	res := result.(queries.GetRelationshipResult)
	props := res.Relationship.Properties
	if props == nil {
		props = valueobjects.Properties{}
	}
	if err := respondCached(w, r, RelationshipResponse{
		Properties: props,
		StartNode:  Link{URI: h.uris.Node(res.Start)},
		EndNode:    Link{URI: h.uris.Node(res.End)},
	}); err != nil {
		h.errors.Handle(w, r, err)
	}
}

// Health handles GET /health
func (h *GraphHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Timestamp: utils.Timestamp()})
}

// Ready handles GET /ready by reading the reference node through the engine
func (h *GraphHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, err := h.queryBus.Ask(r.Context(), queries.GetStatusQuery{}); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "unavailable",
			Timestamp: utils.Timestamp(),
			Error:     err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ready", Timestamp: utils.Timestamp()})
}
