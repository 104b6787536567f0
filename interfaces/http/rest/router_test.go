package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"neorest/application/commands/bus"
	commandhandlers "neorest/application/commands/handlers"
	querybus "neorest/application/queries/bus"
	queryhandlers "neorest/application/queries/handlers"
	"neorest/application/services"
	"neorest/application/transaction"
	"neorest/domain/core/classes"
	"neorest/infrastructure/persistence/memory"
	"neorest/infrastructure/schema"
	"neorest/pkg/auth"
	"neorest/pkg/extensions"
	"neorest/pkg/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type testServer struct {
	t       *testing.T
	handler http.Handler
	tokens  *auth.JWTGenerator
}

type serverOption func(*AdminGate)

func withExtensions(limit int) serverOption {
	return func(gate *AdminGate) {
		validator, _ := auth.NewJWTValidator(testSecret, "neorest")
		gate.Validator = validator
		gate.Limiter = auth.NewIPRateLimiter(limit)
	}
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	hooks := extensions.NewHookManager()
	registry := classes.NewRegistry(hooks)
	scope := transaction.NewBoundary(memory.NewEngine(logger), nil, nil, nil, logger)
	_, err := services.NewMetaGraph(ctx, scope, registry, hooks, logger)
	require.NoError(t, err)
	resources := services.NewResources(scope, registry)

	commandBus := bus.NewCommandBus(bus.LoggingMiddleware(logger), bus.TransactionMiddleware(scope))
	require.NoError(t, commandhandlers.Register(commandBus,
		commandhandlers.NewNodeHandlers(resources, logger),
		commandhandlers.NewSetPropertyHandler(resources),
		commandhandlers.NewLinkNodesHandler(resources, logger),
		commandhandlers.NewDefineClassesHandler(registry, schema.NewHCLParser(), hooks, logger),
	))
	queryBus := querybus.NewQueryBus(querybus.LoggingMiddleware(logger), querybus.TransactionMiddleware(scope))
	require.NoError(t, queryhandlers.Register(queryBus,
		queryhandlers.NewNodeQueryHandlers(resources),
		queryhandlers.NewGraphQueryHandlers(resources),
	))

	for _, def := range []classes.ClassDefinition{
		{Name: "Person", Properties: []string{"name", "age"}, Relationships: []string{"friends"}},
		{Name: "Robot", Properties: []string{"model"}},
	} {
		_, _, err := registry.Define(ctx, def)
		require.NoError(t, err)
	}

	var gate AdminGate
	for _, opt := range opts {
		opt(&gate)
	}
	tokens, err := auth.NewJWTGenerator(testSecret, "neorest", time.Hour)
	require.NoError(t, err)

	router := NewRouter(commandBus, queryBus, observability.NewCollector("neorest_test"), gate, Options{}, logger)
	return &testServer{t: t, handler: router.Setup(), tokens: tokens}
}

func (s *testServer) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// create posts a node and returns its Location
func (s *testServer) create(class, props string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/nodes/"+class, `{"properties":`+props+`}`)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	location := rec.Header().Get("Location")
	require.NotEmpty(s.t, location)
	return location
}

func (s *testServer) link(from, relType, to string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, from+"/"+relType, `{"uri":"`+to+`"}`)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return rec.Header().Get("Location")
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Message
}

func TestRouter_CreateAndGetNode(t *testing.T) {
	// Arrange
	s := newTestServer(t)

	// Act
	location := s.create("Person", `{"name":"Alice"}`)
	rec := s.do(http.MethodGet, location, "")

	// Assert
	assert.True(t, strings.HasPrefix(location, "/nodes/Person/"), location)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"relationships":{},"properties":{"classname":"Person","name":"Alice"}}`, rec.Body.String())
}

func TestRouter_CreateNode_UnknownClass(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/nodes/Martian", `{"properties":{}}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Can't find class 'Martian'", errorMessage(t, rec))
}

func TestRouter_CreateNode_ClassNameIsNotOverridden(t *testing.T) {
	s := newTestServer(t)

	location := s.create("Person", `{"name":"Alice","classname":"Robot"}`)
	rec := s.do(http.MethodGet, location, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"classname":"Person"`)
}

func TestRouter_GetNode_NotFound(t *testing.T) {
	s := newTestServer(t)

	for _, id := range []string{"9999", "abc"} {
		rec := s.do(http.MethodGet, "/nodes/Person/"+id, "")

		assert.Equal(t, http.StatusNotFound, rec.Code, id)
		assert.Equal(t, "Can't find node with id "+id, errorMessage(t, rec))
	}
}

func TestRouter_UpdateNode(t *testing.T) {
	s := newTestServer(t)
	location := s.create("Person", `{"name":"Alice"}`)

	rec := s.do(http.MethodPut, location, `{"properties":{"age":31,"nickname":"Al"}}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"classname":"Person","name":"Alice","age":31,"nickname":"Al"}`, rec.Body.String())

	missing := s.do(http.MethodPut, "/nodes/Person/9999", `{"properties":{"age":1}}`)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestRouter_DeleteNode(t *testing.T) {
	s := newTestServer(t)
	location := s.create("Person", `{"name":"Alice"}`)

	rec := s.do(http.MethodDelete, location, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, location, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, location, "").Code)
}

func TestRouter_Property(t *testing.T) {
	s := newTestServer(t)
	location := s.create("Person", `{"name":"Alice"}`)

	t.Run("set then get", func(t *testing.T) {
		rec := s.do(http.MethodPut, location+"/age", `{"age":30}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Empty(t, rec.Body.String())

		rec = s.do(http.MethodGet, location+"/age", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"age":30}`, rec.Body.String())
	})

	t.Run("body without the property", func(t *testing.T) {
		rec := s.do(http.MethodPut, location+"/age", `{}`)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Can't set property age with JSON data '{}'", errorMessage(t, rec))
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := s.do(http.MethodPut, location+"/age", `{"age":`)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, errorMessage(t, rec), "Can't set property age")
	})

	t.Run("classname is reserved", func(t *testing.T) {
		rec := s.do(http.MethodPut, location+"/classname", `{"classname":"Robot"}`)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestRouter_LinkAndRelationship(t *testing.T) {
	// Arrange
	s := newTestServer(t)
	alice := s.create("Person", `{"name":"Alice"}`)
	bob := s.create("Person", `{"name":"Bob"}`)

	// Act
	relLocation := s.link(alice, "friends", bob)

	// Assert
	assert.True(t, strings.HasPrefix(relLocation, "/relationships/"), relLocation)

	rec := s.do(http.MethodGet, relLocation, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"properties":{},"start_node":{"uri":"`+alice+`"},"end_node":{"uri":"`+bob+`"}}`, rec.Body.String())

	rec = s.do(http.MethodGet, alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"relationships":{"friends":["`+relLocation+`"]},"properties":{"classname":"Person","name":"Alice"}}`, rec.Body.String())

	rec = s.do(http.MethodGet, alice+"/friends", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"classname":"Person","name":"Bob"}]`, rec.Body.String())
}

func TestRouter_Link_Validation(t *testing.T) {
	s := newTestServer(t)
	alice := s.create("Person", `{"name":"Alice"}`)
	robot := s.create("Robot", `{"model":"T-800"}`)
	robotID := robot[strings.LastIndex(robot, "/")+1:]

	tests := []struct {
		name    string
		uri     string
		message string
	}{
		{"malformed uri", "nope", "Bad node uri 'nope'"},
		{"unknown node", "/nodes/Person/9999", "Unknown other node with id '9999'"},
		{"wrong class", "/nodes/Person/" + robotID, "Wrong type id '" + robotID + "' expected 'Person' got 'Robot'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, alice+"/friends", `{"uri":"`+tt.uri+`"}`)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.message, errorMessage(t, rec))
		})
	}

	rec := s.do(http.MethodGet, alice, "")
	assert.JSONEq(t, `{"relationships":{},"properties":{"classname":"Person","name":"Alice"}}`, rec.Body.String())
}

func TestRouter_Link_InvalidRelationshipType(t *testing.T) {
	s := newTestServer(t)
	alice := s.create("Person", `{"name":"Alice"}`)
	bob := s.create("Person", `{"name":"Bob"}`)

	rec := s.do(http.MethodPost, alice+"/best-friend", `{"uri":"`+bob+`"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Can't create relationship to Person", errorMessage(t, rec))
	rec = s.do(http.MethodGet, alice, "")
	assert.JSONEq(t, `{"relationships":{},"properties":{"classname":"Person","name":"Alice"}}`, rec.Body.String())
}

func TestRouter_DeleteReferenceNode_Conflict(t *testing.T) {
	// Arrange
	s := newTestServer(t)
	var status struct {
		RefNode string `json:"ref_node"`
	}
	require.NoError(t, json.Unmarshal(s.do(http.MethodGet, "/neo", "").Body.Bytes(), &status))
	refID := status.RefNode[strings.LastIndex(status.RefNode, "/")+1:]

	// Act
	rec := s.do(http.MethodDelete, status.RefNode, "")

	// Assert
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Can't delete node with id "+refID, errorMessage(t, rec))
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/neo", "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/ready", "").Code)
}

func TestRouter_GetRelationship_NotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/relationships/4242", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Can't find relationship with id 4242", errorMessage(t, rec))
}

func TestRouter_Traverse(t *testing.T) {
	s := newTestServer(t)
	a := s.create("Person", `{"name":"A"}`)
	b := s.create("Person", `{"name":"B"}`)
	c := s.create("Person", `{"name":"C"}`)
	s.link(a, "friends", b)
	s.link(b, "friends", c)

	t.Run("default depth", func(t *testing.T) {
		rec := s.do(http.MethodGet, a+"/traverse?relationship=friends", "")

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"uri_list":["`+b+`"]}`, rec.Body.String())
	})

	t.Run("depth two", func(t *testing.T) {
		rec := s.do(http.MethodGet, a+"/traverse?relationship=friends&depth=2", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"uri_list":["`+b+`","`+c+`"]}`, rec.Body.String())
	})

	t.Run("no matches", func(t *testing.T) {
		rec := s.do(http.MethodGet, c+"/traverse?relationship=friends", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"uri_list":[]}`, rec.Body.String())
	})

	t.Run("bad depth", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, a+"/traverse?relationship=friends&depth=x", "").Code)
		assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, a+"/traverse?relationship=friends&depth=0", "").Code)
	})

	t.Run("missing relationship", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, a+"/traverse", "").Code)
	})
}

func TestRouter_ListNodes(t *testing.T) {
	s := newTestServer(t)
	s.create("Person", `{"name":"Alice"}`)
	s.create("Person", `{"name":"Bob"}`)
	s.create("Robot", `{"model":"Bob"}`)

	rec := s.do(http.MethodGet, "/nodes/Person?name=Bob", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `[{"classname":"Person","name":"Bob"}]`, rec.Body.String())

	empty := s.do(http.MethodGet, "/nodes/Person?name=Nobody", "")
	assert.JSONEq(t, `[]`, empty.Body.String())
}

func TestRouter_ETag(t *testing.T) {
	s := newTestServer(t)
	location := s.create("Person", `{"name":"Alice"}`)

	first := s.do(http.MethodGet, location, "")
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	cached := s.do(http.MethodGet, location, "", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, cached.Code)
	assert.Empty(t, cached.Body.String())

	s.do(http.MethodPut, location+"/age", `{"age":30}`)
	changed := s.do(http.MethodGet, location, "", "If-None-Match", etag)
	assert.Equal(t, http.StatusOK, changed.Code)
	assert.NotEqual(t, etag, changed.Header().Get("ETag"))
}

func TestRouter_Status(t *testing.T) {
	s := newTestServer(t)

	t.Run("json", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/neo", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var status struct {
			Classes []string `json:"classes"`
			RefNode string   `json:"ref_node"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, []string{"Person", "Robot"}, status.Classes)
		assert.True(t, strings.HasPrefix(status.RefNode, "/nodes/"), status.RefNode)
	})

	t.Run("html", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/neo", "", "Accept", "text/html,application/xhtml+xml")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, rec.Body.String(), "is alive !")
		assert.Contains(t, rec.Body.String(), "Class 'Person' <br/>")
		assert.Contains(t, rec.Body.String(), "Class 'Robot' <br/>")
	})
}

func TestRouter_DefineClasses_Disabled(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/neo", `class "Order" {}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Extensions are disabled", errorMessage(t, rec))
}

func TestRouter_DefineClasses_Admin(t *testing.T) {
	s := newTestServer(t, withExtensions(100))
	adminToken, err := s.tokens.GenerateToken("ops", []string{auth.RoleAdmin})
	require.NoError(t, err)
	userToken, err := s.tokens.GenerateToken("someone", nil)
	require.NoError(t, err)
	source := `class "Order" { properties = ["total"] }
class "Person" {}`

	t.Run("missing token", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/neo", source)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Missing authentication token", errorMessage(t, rec))
	})

	t.Run("without admin role", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/neo", source, "Authorization", "Bearer "+userToken)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("malformed source", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/neo", `class {`, "Authorization", "Bearer "+adminToken)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("admin loads classes", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/neo", source, "Authorization", "Bearer "+adminToken)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"defined":["Order"],"existing":["Person"]}`, rec.Body.String())
		s.create("Order", `{"total":12}`)
	})
}

func TestRouter_DefineClasses_RateLimited(t *testing.T) {
	s := newTestServer(t, withExtensions(1))

	first := s.do(http.MethodPost, "/neo", `class "A" {}`)
	second := s.do(http.MethodPost, "/neo", `class "A" {}`)

	assert.Equal(t, http.StatusUnauthorized, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestRouter_Probes(t *testing.T) {
	s := newTestServer(t)

	health := s.do(http.MethodGet, "/health", "")
	ready := s.do(http.MethodGet, "/ready", "")
	metrics := s.do(http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, health.Code)
	assert.Contains(t, health.Body.String(), `"status":"healthy"`)
	assert.Equal(t, http.StatusOK, ready.Code)
	assert.Contains(t, ready.Body.String(), `"status":"ready"`)
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "neorest_test_http_requests_total")
}
