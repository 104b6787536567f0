package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"neorest/application/commands"
	"neorest/application/commands/bus"
	"neorest/application/queries"
	querybus "neorest/application/queries/bus"
	"neorest/domain/core/entities"
	"neorest/domain/core/valueobjects"
	apperrors "neorest/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// NodeHandler handles the /nodes resources
type NodeHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	uris       URIs
	errors     *apperrors.ErrorHandler
	logger     *zap.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	uris URIs,
	errorHandler *apperrors.ErrorHandler,
	logger *zap.Logger,
) *NodeHandler {
	return &NodeHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		uris:       uris,
		errors:     errorHandler,
		logger:     logger,
	}
}

// PropertiesRequest is the body of node creation and full update
type PropertiesRequest struct {
	Properties map[string]interface{} `json:"properties"`
}

// LinkRequest is the body of a relationship creation
type LinkRequest struct {
	URI string `json:"uri"`
}

// NodeResponse is a node with hyperlinks to its outgoing relationships
type NodeResponse struct {
	Relationships map[string][]string     `json:"relationships"`
	Properties    valueobjects.Properties `json:"properties"`
}

// TraverseResponse lists the URIs of the reached nodes
type TraverseResponse struct {
	URIList []string `json:"uri_list"`
}

// ListNodes handles GET /nodes/{class}; the query string is the search criteria
func (h *NodeHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	params := url.Values{}
	for k, v := range r.URL.Query() {
		if k != "class" {
			params[k] = v
		}
	}

	result, err := h.queryBus.Ask(r.Context(), queries.ListNodesQuery{
		ClassName: chi.URLParam(r, "class"),
		Params:    params,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	nodes := result.([]entities.Node)
	bags := make([]valueobjects.Properties, 0, len(nodes))
	for _, n := range nodes {
		bags = append(bags, n.Properties)
	}
	if err := respondCached(w, r, bags); err != nil {
		h.errors.Handle(w, r, err)
	}
}

// CreateNode handles POST /nodes/{class}
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req PropertiesRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.commandBus.Send(r.Context(), commands.CreateNodeCommand{
		ClassName:  chi.URLParam(r, "class"),
		Properties: req.Properties,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	node := result.(entities.Node)
	w.Header().Set("Location", h.uris.Node(node))
	respondEmpty(w, http.StatusCreated)
}

// GetNode handles GET /nodes/{class}/{id}
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetNodeQuery{NodeID: chi.URLParam(r, "id")})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	res := result.(queries.GetNodeResult)
	links := make(map[string][]string, len(res.Types))
	for _, relType := range res.Types {
		for _, rel := range res.Relationships[relType] {
			links[relType] = append(links[relType], h.uris.Relationship(rel.ID))
		}
	}
	if err := respondCached(w, r, NodeResponse{Relationships: links, Properties: res.Node.Properties}); err != nil {
		h.errors.Handle(w, r, err)
	}
}

// UpdateNode handles PUT /nodes/{class}/{id}
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var req PropertiesRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.commandBus.Send(r.Context(), commands.UpdateNodeCommand{
		NodeID:     chi.URLParam(r, "id"),
		Properties: req.Properties,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result.(valueobjects.Properties))
}

// DeleteNode handles DELETE /nodes/{class}/{id}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	if _, err := h.commandBus.Send(r.Context(), commands.DeleteNodeCommand{NodeID: chi.URLParam(r, "id")}); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondEmpty(w, http.StatusOK)
}

// Traverse handles GET /nodes/{class}/{id}/traverse?relationship=R&depth=N
func (h *NodeHandler) Traverse(w http.ResponseWriter, r *http.Request) {
	depth := 1
	if raw := r.URL.Query().Get("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			h.errors.Handle(w, r, apperrors.NewValidationError("depth must be an integer"))
			return
		}
		depth = d
	}

	result, err := h.queryBus.Ask(r.Context(), queries.TraverseQuery{
		NodeID:       chi.URLParam(r, "id"),
		Relationship: r.URL.Query().Get("relationship"),
		Depth:        depth,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	nodes := result.([]entities.Node)
	uris := make([]string, 0, len(nodes))
	for _, n := range nodes {
		uris = append(uris, h.uris.Node(n))
	}
	respondJSON(w, http.StatusOK, TraverseResponse{URIList: uris})
}

// GetProperty handles GET /nodes/{class}/{id}/{prop}
func (h *NodeHandler) GetProperty(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetPropertyQuery{
		NodeID:   chi.URLParam(r, "id"),
		Property: chi.URLParam(r, "prop"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	res := result.(queries.GetPropertyResult)
	var body interface{}
	if res.IsRelationship {
		bags := make([]valueobjects.Properties, 0, len(res.Related))
		for _, n := range res.Related {
			bags = append(bags, n.Properties)
		}
		body = bags
	} else {
		body = map[string]valueobjects.Value{res.Property: res.Value}
	}
	if err := respondCached(w, r, body); err != nil {
		h.errors.Handle(w, r, err)
	}
}

// SetProperty handles PUT /nodes/{class}/{id}/{prop}; the body is {"prop": value}
func (h *NodeHandler) SetProperty(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	if _, err := h.commandBus.Send(r.Context(), commands.SetPropertyCommand{
		NodeID:   chi.URLParam(r, "id"),
		Property: chi.URLParam(r, "prop"),
		Body:     body,
	}); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondEmpty(w, http.StatusOK)
}

// Link handles POST /nodes/{class}/{id}/{prop} with {"uri": ...}
func (h *NodeHandler) Link(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.commandBus.Send(r.Context(), commands.LinkNodesCommand{
		NodeID:  chi.URLParam(r, "id"),
		RelType: chi.URLParam(r, "prop"),
		URI:     req.URI,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	rel := result.(entities.Relationship)
	h.logger.Debug("Relationship created",
		zap.String("type", rel.Type),
		zap.String("relationshipID", rel.ID.String()),
	)
	w.Header().Set("Location", "/relationships/"+rel.ID.String())
	respondEmpty(w, http.StatusCreated)
}
