package handlers

import (
	"context"
	"net/http"
	"testing"

	"neorest/application/commands"
	"neorest/application/commands/bus"
	"neorest/application/services"
	"neorest/application/transaction"
	"neorest/domain/core/classes"
	"neorest/domain/core/entities"
	"neorest/domain/core/valueobjects"
	"neorest/domain/events"
	"neorest/infrastructure/persistence/memory"
	"neorest/infrastructure/schema"
	apperrors "neorest/pkg/errors"
	"neorest/pkg/extensions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockPublisher records the events published after each commit
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return m.PublishBatch(ctx, []events.DomainEvent{event})
}

func (m *MockPublisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	args := m.Called(ctx, domainEvents)
	return args.Error(0)
}

func (m *MockPublisher) published() []string {
	var types []string
	for _, call := range m.Calls {
		for _, e := range call.Arguments.Get(1).([]events.DomainEvent) {
			types = append(types, e.GetEventType())
		}
	}
	return types
}

type fixture struct {
	bus       *bus.CommandBus
	registry  *classes.Registry
	publisher *MockPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	publisher := new(MockPublisher)
	publisher.On("PublishBatch", mock.Anything, mock.Anything).Return(nil)

	hooks := extensions.NewHookManager()
	registry := classes.NewRegistry(hooks)
	scope := transaction.NewBoundary(memory.NewEngine(logger), publisher, nil, nil, logger)
	resources := services.NewResources(scope, registry)

	_, _, err := registry.Define(ctx, classes.ClassDefinition{Name: "Person", Properties: []string{"name"}, Relationships: []string{"friends"}})
	require.NoError(t, err)
	_, _, err = registry.Define(ctx, classes.ClassDefinition{Name: "Robot"})
	require.NoError(t, err)

	b := bus.NewCommandBus(bus.LoggingMiddleware(logger), bus.TransactionMiddleware(scope))
	require.NoError(t, Register(b,
		NewNodeHandlers(resources, logger),
		NewSetPropertyHandler(resources),
		NewLinkNodesHandler(resources, logger),
		NewDefineClassesHandler(registry, schema.NewHCLParser(), hooks, logger),
	))
	return &fixture{bus: b, registry: registry, publisher: publisher}
}

func (f *fixture) create(t *testing.T, class string, props map[string]interface{}) entities.Node {
	t.Helper()
	result, err := f.bus.Send(context.Background(), commands.CreateNodeCommand{ClassName: class, Properties: props})
	require.NoError(t, err)
	return result.(entities.Node)
}

func status(t *testing.T, err error) int {
	t.Helper()
	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr, "expected an AppError, got %v", err)
	return appErr.HTTPStatus
}

func message(t *testing.T, err error) string {
	t.Helper()
	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr, "expected an AppError, got %v", err)
	return appErr.Message
}

func TestNodeHandlers_Create(t *testing.T) {
	// Arrange
	f := newFixture(t)

	// Act
	node := f.create(t, "Person", map[string]interface{}{"name": "Alice"})

	// Assert
	assert.Equal(t, valueobjects.Properties{
		valueobjects.ClassNameProperty: valueobjects.String("Person"),
		"name":                         valueobjects.String("Alice"),
	}, node.Properties)
	assert.Contains(t, f.publisher.published(), events.TypeNodeCreated)
}

func TestNodeHandlers_Create_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.bus.Send(context.Background(), commands.CreateNodeCommand{ClassName: "Martian"})
	assert.Equal(t, http.StatusNotFound, status(t, err))
	assert.Equal(t, "Can't find class 'Martian'", message(t, err))

	_, err = f.bus.Send(context.Background(), commands.CreateNodeCommand{
		ClassName:  "Person",
		Properties: map[string]interface{}{"tags": []interface{}{"a"}},
	})
	assert.Equal(t, http.StatusBadRequest, status(t, err))

	_, err = f.bus.Send(context.Background(), commands.CreateNodeCommand{})
	assert.Equal(t, http.StatusBadRequest, status(t, err))
}

func TestNodeHandlers_UpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	node := f.create(t, "Person", map[string]interface{}{"name": "Alice"})

	result, err := f.bus.Send(ctx, commands.UpdateNodeCommand{
		NodeID:     node.ID.String(),
		Properties: map[string]interface{}{"name": "Alicia", "classname": "Robot"},
	})
	require.NoError(t, err)
	props := result.(valueobjects.Properties)
	assert.Equal(t, "Alicia", props["name"].String())
	assert.Equal(t, "Person", props.ClassName())

	_, err = f.bus.Send(ctx, commands.DeleteNodeCommand{NodeID: node.ID.String()})
	require.NoError(t, err)
	_, err = f.bus.Send(ctx, commands.DeleteNodeCommand{NodeID: node.ID.String()})
	assert.Equal(t, http.StatusNotFound, status(t, err))
}

func TestNodeHandlers_Delete_StructuralNodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.registry.Define(ctx, classes.ClassDefinition{Name: classes.MetaNodeClass})
	require.NoError(t, err)
	mirror := f.create(t, classes.MetaNodeClass, nil)

	for _, id := range []string{"0", mirror.ID.String()} {
		published := len(f.publisher.published())

		_, err := f.bus.Send(ctx, commands.DeleteNodeCommand{NodeID: id})

		assert.Equal(t, http.StatusConflict, status(t, err), id)
		assert.Equal(t, "Can't delete node with id "+id, message(t, err))
		assert.Len(t, f.publisher.published(), published)
	}
}

func TestSetPropertyHandler_Handle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	node := f.create(t, "Person", nil)

	tests := []struct {
		name     string
		property string
		body     string
		want     valueobjects.Value
		status   int
	}{
		{name: "integer", property: "age", body: `{"age": 30}`, want: valueobjects.Int(30)},
		{name: "float", property: "score", body: `{"score": 1.5}`, want: valueobjects.Float(1.5)},
		{name: "extra keys ignored", property: "name", body: `{"name": "Al", "other": 1}`, want: valueobjects.String("Al")},
		{name: "missing key", property: "age", body: `{}`, status: http.StatusConflict},
		{name: "null value", property: "age", body: `{"age": null}`, status: http.StatusConflict},
		{name: "not an object", property: "age", body: `30`, status: http.StatusConflict},
		{name: "reserved", property: "classname", body: `{"classname": "Robot"}`, status: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.bus.Send(ctx, commands.SetPropertyCommand{
				NodeID:   node.ID.String(),
				Property: tt.property,
				Body:     []byte(tt.body),
			})

			if tt.status != 0 {
				assert.Equal(t, tt.status, status(t, err))
				assert.Equal(t, "Can't set property "+tt.property+" with JSON data '"+tt.body+"'", message(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestLinkNodesHandler_Handle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.create(t, "Person", map[string]interface{}{"name": "Alice"})
	bob := f.create(t, "Person", map[string]interface{}{"name": "Bob"})

	result, err := f.bus.Send(ctx, commands.LinkNodesCommand{
		NodeID:  alice.ID.String(),
		RelType: "friends",
		URI:     "http://localhost:8080/nodes/Person/" + bob.ID.String(),
	})

	require.NoError(t, err)
	rel := result.(entities.Relationship)
	assert.Equal(t, alice.ID, rel.Start)
	assert.Equal(t, bob.ID, rel.End)
	assert.Equal(t, "friends", rel.Type)
	assert.Contains(t, f.publisher.published(), events.TypeRelationshipCreated)
}

func TestLinkNodesHandler_Handle_ValidationOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.create(t, "Person", nil)
	robot := f.create(t, "Robot", nil)
	robotID := robot.ID.String()

	tests := []struct {
		name    string
		nodeID  string
		uri     string
		status  int
		message string
	}{
		{"missing source wins over bad uri", "9999", "nope", http.StatusNotFound, "Can't find node with id 9999"},
		{"bad uri", alice.ID.String(), "nope", http.StatusBadRequest, "Bad node uri 'nope'"},
		{"unknown target", alice.ID.String(), "/nodes/Person/777", http.StatusBadRequest, "Unknown other node with id '777'"},
		{"class mismatch", alice.ID.String(), "/nodes/Person/" + robotID, http.StatusBadRequest,
			"Wrong type id '" + robotID + "' expected 'Person' got 'Robot'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			published := len(f.publisher.published())

			_, err := f.bus.Send(ctx, commands.LinkNodesCommand{NodeID: tt.nodeID, RelType: "friends", URI: tt.uri})

			assert.Equal(t, tt.status, status(t, err))
			assert.Equal(t, tt.message, message(t, err))
			assert.Len(t, f.publisher.published(), published)
		})
	}
}

func TestDefineClassesHandler_Handle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.bus.Send(ctx, commands.DefineClassesCommand{
		Source: []byte(`
class "Order" {
  properties = ["total"]
}
class "Person" {}
`),
		Filename: "order.hcl",
	})

	require.NoError(t, err)
	assert.Equal(t, commands.DefineClassesResult{Defined: []string{"Order"}, Existing: []string{"Person"}}, result)
	_, ok := f.registry.Lookup("Order")
	assert.True(t, ok)
}

func TestDefineClassesHandler_Handle_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.bus.Send(ctx, commands.DefineClassesCommand{Source: []byte(`class {`), Filename: "bad.hcl"})
	assert.Equal(t, http.StatusBadRequest, status(t, err))

	_, err = f.bus.Send(ctx, commands.DefineClassesCommand{Filename: "empty.hcl"})
	assert.Equal(t, http.StatusBadRequest, status(t, err))
}

func TestDefineClassesHandler_Handle_InvalidDeclarationRegistersNothing(t *testing.T) {
	// Arrange
	f := newFixture(t)
	ctx := context.Background()
	source := []byte(`
class "Alpha" {}
class "bad name" {}
`)

	// Act
	_, err := f.bus.Send(ctx, commands.DefineClassesCommand{Source: source, Filename: "mixed.hcl"})

	// Assert
	assert.Equal(t, http.StatusBadRequest, status(t, err))
	assert.Contains(t, message(t, err), "bad name")
	_, ok := f.registry.Lookup("Alpha")
	assert.False(t, ok)

	result, err := f.bus.Send(ctx, commands.DefineClassesCommand{Source: []byte(`class "Alpha" {}`), Filename: "alpha.hcl"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha"}, result.(commands.DefineClassesResult).Defined)
}
