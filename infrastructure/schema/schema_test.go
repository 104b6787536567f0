package schema

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"neorest/application/commands"
	"neorest/application/commands/bus"
	"neorest/domain/core/classes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const personSchema = `
class "Person" {
  properties    = ["name", "age"]
  relationships = ["friends"]
  description   = "A person"
}

class "Shop.Order" {}
`

func TestHCLParser_Parse(t *testing.T) {
	// Act
	defs, err := NewHCLParser().Parse([]byte(personSchema), "people.hcl")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []classes.ClassDefinition{
		{
			Name:          "Person",
			Properties:    []string{"name", "age"},
			Relationships: []string{"friends"},
			Description:   "A person",
		},
		{Name: "Shop::Order"},
	}, defs)
}

func TestHCLParser_Parse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "syntax error", src: `class "Person" {`},
		{name: "unknown attribute", src: `class "Person" { colour = "red" }`},
		{name: "missing label", src: `class { }`},
		{name: "duplicate class", src: "class \"A\" {}\nclass \"A\" {}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHCLParser().Parse([]byte(tt.src), "bad.hcl")
			assert.Error(t, err)
		})
	}
}

func TestHCLParser_Parse_SameFilenameTwice(t *testing.T) {
	p := NewHCLParser()

	_, err := p.Parse([]byte(`class "A" {}`), "schema.hcl")
	require.NoError(t, err)
	defs, err := p.Parse([]byte(`class "B" {}`), "schema.hcl")

	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "B", defs[0].Name)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, cmd bus.Command) (interface{}, error) {
	args := m.Called(ctx, cmd)
	return args.Get(0), args.Error(1)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_LoadPath_Directory(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	b := writeFile(t, dir, "b.hcl", `class "B" {}`)
	a := writeFile(t, dir, "a.hcl", `class "A" {}`)
	writeFile(t, dir, "notes.txt", "ignored")

	sender := new(MockSender)
	var order []string
	sender.On("Send", mock.Anything, mock.AnythingOfType("commands.DefineClassesCommand")).
		Run(func(args mock.Arguments) {
			order = append(order, args.Get(1).(commands.DefineClassesCommand).Filename)
		}).
		Return(commands.DefineClassesResult{Defined: []string{"X"}}, nil)

	// Act
	defined, err := NewLoader(sender, zap.NewNop()).LoadPath(context.Background(), dir)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, order)
	assert.Equal(t, []string{"X", "X"}, defined)
	sender.AssertNumberOfCalls(t, "Send", 2)
}

func TestLoader_LoadPath_MissingPath(t *testing.T) {
	sender := new(MockSender)

	_, err := NewLoader(sender, zap.NewNop()).LoadPath(context.Background(), filepath.Join(t.TempDir(), "nope"))

	assert.Error(t, err)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

type recordingSender struct {
	mu    sync.Mutex
	files []string
}

func (s *recordingSender) Send(_ context.Context, cmd bus.Command) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, cmd.(commands.DefineClassesCommand).Filename)
	return commands.DefineClassesResult{}, nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

func TestWatcher_ReloadsChangedFile(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	sender := &recordingSender{}
	w, err := NewWatcher(dir, NewLoader(sender, zap.NewNop()), zap.NewNop())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	// Act
	writeFile(t, dir, "people.hcl", `class "Person" {}`)

	// Assert
	assert.Eventually(t, func() bool { return sender.count() >= 1 }, 3*time.Second, 20*time.Millisecond)
}
