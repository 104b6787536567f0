package memory

import (
	"context"
	"net/url"
	"testing"
	"time"

	"neorest/application/ports"
	"neorest/domain/core/classes"
	vo "neorest/domain/core/valueobjects"
	"neorest/domain/search"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func begin(t *testing.T, e *Engine) ports.GraphTx {
	t.Helper()
	tx, err := e.Begin(context.Background())
	require.NoError(t, err)
	return tx
}

func newPerson(t *testing.T, tx ports.GraphTx, name string) vo.NodeID {
	t.Helper()
	ctx := context.Background()
	id, err := tx.CreateNode(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SetProperty(ctx, id, vo.ClassNameProperty, vo.String("Person")))
	require.NoError(t, tx.SetProperty(ctx, id, "name", vo.String(name)))
	return id
}

func TestEngine_RefNode(t *testing.T) {
	// Arrange
	e := NewEngine(nil)
	tx := begin(t, e)
	defer tx.Rollback(context.Background())

	// Act
	ref, err := tx.RefNode(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, vo.NodeID(0), ref.ID)
	assert.Equal(t, ReferenceNodeClass, ref.ClassName())
}

func TestEngine_LoadNode_NotFound(t *testing.T) {
	e := NewEngine(nil)
	tx := begin(t, e)
	defer tx.Rollback(context.Background())

	_, err := tx.LoadNode(context.Background(), 9999)

	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestEngine_LoadNode_SnapshotsAreIndependent(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(nil)
	tx := begin(t, e)
	defer tx.Rollback(ctx)
	id := newPerson(t, tx, "Alice")

	first, err := tx.LoadNode(ctx, id)
	require.NoError(t, err)
	first.Properties["name"] = vo.String("Mallory")
	second, err := tx.LoadNode(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "Alice", second.Properties["name"].String())
}

func TestEngine_Rollback_RestoresState(t *testing.T) {
	// Arrange
	ctx := context.Background()
	e := NewEngine(nil)
	tx := begin(t, e)
	alice := newPerson(t, tx, "Alice")
	bob := newPerson(t, tx, "Bob")
	_, err := tx.CreateRelationship(ctx, alice, bob, "friends")
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	// Act
	tx = begin(t, e)
	require.NoError(t, tx.SetProperty(ctx, alice, "name", vo.String("Alicia")))
	require.NoError(t, tx.SetProperty(ctx, alice, "age", vo.Int(30)))
	carol := newPerson(t, tx, "Carol")
	_, err = tx.CreateRelationship(ctx, alice, carol, "friends")
	require.NoError(t, err)
	require.NoError(t, tx.DeleteNode(ctx, bob))
	require.NoError(t, tx.Rollback(ctx))

	// Assert
	tx = begin(t, e)
	defer tx.Rollback(ctx)
	node, err := tx.LoadNode(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "Alice", node.Properties["name"].String())
	_, hasAge := node.Properties["age"]
	assert.False(t, hasAge)

	_, err = tx.LoadNode(ctx, carol)
	assert.ErrorIs(t, err, ports.ErrNotFound)
	_, err = tx.LoadNode(ctx, bob)
	assert.NoError(t, err)

	rels, err := tx.OutgoingRelationships(ctx, alice, "friends")
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, bob, rels[0].End)
}

func TestEngine_DeleteNode_RemovesRelationships(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(nil)
	tx := begin(t, e)
	defer tx.Rollback(ctx)
	alice := newPerson(t, tx, "Alice")
	bob := newPerson(t, tx, "Bob")
	rel, err := tx.CreateRelationship(ctx, alice, bob, "friends")
	require.NoError(t, err)

	require.NoError(t, tx.DeleteNode(ctx, bob))

	_, err = tx.LoadRelationship(ctx, rel.ID)
	assert.ErrorIs(t, err, ports.ErrNotFound)
	rels, err := tx.OutgoingRelationships(ctx, alice, "")
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestEngine_CreateRelationship_MissingEndpoint(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(nil)
	tx := begin(t, e)
	defer tx.Rollback(ctx)
	alice := newPerson(t, tx, "Alice")

	_, err := tx.CreateRelationship(ctx, alice, 42, "friends")

	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestEngine_CreateRelationship_InvalidType(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(nil)
	tx := begin(t, e)
	defer tx.Rollback(ctx)
	alice := newPerson(t, tx, "Alice")
	bob := newPerson(t, tx, "Bob")

	for _, relType := range []string{"", "best-friend", "two words"} {
		_, err := tx.CreateRelationship(ctx, alice, bob, relType)
		assert.ErrorIs(t, err, ErrInvalidRelation, relType)
	}
	rels, err := tx.OutgoingRelationships(ctx, alice, "")
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestEngine_DeleteNode_ReferenceNodeIsProtected(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(nil)
	tx := begin(t, e)
	defer tx.Rollback(ctx)

	err := tx.DeleteNode(ctx, 0)

	assert.ErrorIs(t, err, ports.ErrProtectedNode)
	ref, err := tx.RefNode(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReferenceNodeClass, ref.ClassName())
}

func TestEngine_TraverseOutgoing(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(nil)
	tx := begin(t, e)
	defer tx.Rollback(ctx)
	a := newPerson(t, tx, "A")
	b := newPerson(t, tx, "B")
	c := newPerson(t, tx, "C")
	d := newPerson(t, tx, "D")
	for _, pair := range [][2]vo.NodeID{{a, b}, {b, c}, {c, a}, {a, d}} {
		_, err := tx.CreateRelationship(ctx, pair[0], pair[1], "knows")
		require.NoError(t, err)
	}
	_, err := tx.CreateRelationship(ctx, b, d, "likes")
	require.NoError(t, err)

	tests := []struct {
		depth int
		want  []vo.NodeID
	}{
		{depth: 1, want: []vo.NodeID{b, d}},
		{depth: 2, want: []vo.NodeID{b, d, c}},
		{depth: 5, want: []vo.NodeID{b, d, c}},
	}
	for _, tt := range tests {
		nodes, err := tx.TraverseOutgoing(ctx, a, "knows", tt.depth)
		require.NoError(t, err)
		got := make([]vo.NodeID, 0, len(nodes))
		for _, n := range nodes {
			got = append(got, n.ID)
		}
		assert.Equal(t, tt.want, got, "depth %d", tt.depth)
	}

	_, err = tx.TraverseOutgoing(ctx, a, "knows", 0)
	assert.ErrorIs(t, err, ErrInvalidDepth)
}

func TestEngine_Search_ScopesToClass(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(nil)
	reg := classes.NewRegistry(nil)
	person, _, err := reg.Define(ctx, classes.ClassDefinition{Name: "Person"})
	require.NoError(t, err)

	tx := begin(t, e)
	defer tx.Rollback(ctx)
	newPerson(t, tx, "Zed")
	newPerson(t, tx, "Amy")
	other, err := tx.CreateNode(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SetProperty(ctx, other, vo.ClassNameProperty, vo.String("Robot")))

	q, _ := url.ParseQuery("sort=name")
	criteria, err := search.FromQuery(q)
	require.NoError(t, err)

	nodes, err := tx.Search(ctx, person, criteria)

	require.NoError(t, err)
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Properties["name"].String())
	}
	assert.Equal(t, []string{"Amy", "Zed"}, names)
}

func TestEngine_Begin_Serializes(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(nil)
	first := begin(t, e)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err := e.Begin(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, first.Commit(ctx))
	second, err := e.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, second.Rollback(ctx))
}

func TestEngine_ClosedTransaction(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(nil)
	tx := begin(t, e)
	require.NoError(t, tx.Commit(ctx))

	_, err := tx.CreateNode(ctx)

	assert.ErrorIs(t, err, ErrTxClosed)
	assert.ErrorIs(t, tx.Rollback(ctx), ErrTxClosed)
}
