package authz

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clan-backend/internal/entities"
)

func TestFieldSetFromList(t *testing.T) {
	assert.True(t, FieldSetFromList(nil).IsEmpty())
	assert.True(t, FieldSetFromList([]string{}).IsEmpty())
	assert.True(t, FieldSetFromList([]string{"name", "*"}).IsWildcard())

	fs := FieldSetFromList([]string{"name", "email"})
	assert.False(t, fs.IsWildcard())
	assert.True(t, fs.Has("name"))
	assert.False(t, fs.Has("id"))
	assert.Equal(t, []string{"email", "name"}, fs.Names())

	var zero FieldSet
	assert.True(t, zero.IsEmpty())
	assert.False(t, zero.Has("id"))
}

func TestFieldSet_MarshalJSON(t *testing.T) {
	raw, err := json.Marshal(Fields("b", "a"))
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(raw))

	raw, err = json.Marshal(Wildcard())
	require.NoError(t, err)
	assert.JSONEq(t, `["*"]`, string(raw))
}

func TestProject(t *testing.T) {
	record := Record{"id": int64(1), "name": "Центральный", "email": "c@example.com"}

	got := Project(record, Fields("id", "name", "missing"))
	assert.Equal(t, Record{"id": int64(1), "name": "Центральный"}, got)
	assert.Len(t, record, 3, "исходная запись не меняется")

	assert.Equal(t, record, Project(record, Wildcard()))
	assert.Empty(t, Project(record, FieldSet{}))

	list := ProjectAll([]Record{record, {"id": int64(2)}}, Fields("id"))
	assert.Equal(t, []Record{{"id": int64(1)}, {"id": int64(2)}}, list)
}

func TestProject_Idempotent(t *testing.T) {
	record := Record{"id": int64(1), "name": "Центральный", "email": "c@example.com", "status": "ACTIVE"}

	for _, fields := range []FieldSet{Fields("id", "name"), Fields("missing"), Wildcard(), {}} {
		once := Project(record, fields)
		assert.Equal(t, once, Project(once, fields), fields.Names())
	}
}

func TestRejected(t *testing.T) {
	payload := Record{"name": "x", "status": "ACTIVE", "owner_id": 1}
	assert.Equal(t, []string{"owner_id", "status"}, Rejected(payload, Fields("name")))
	assert.Nil(t, Rejected(payload, Wildcard()))
}

func TestToRecord(t *testing.T) {
	rec, err := ToRecord(entities.Branch{ID: 3, Name: "Юг"})
	require.NoError(t, err)
	assert.Equal(t, float64(3), rec["id"])
	assert.Equal(t, "Юг", rec["name"])
}

func TestProjector_FieldsFor(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.grant(1, withFields(
		perm(1, entities.LevelAll, ResourceBranches, "vce"),
		[]string{"id", "name"},
		[]string{"*"},
		nil,
	))
	projector := NewProjector(store)

	view, err := projector.FieldsFor(ctx, activeUser(1), ResourceBranches, PhaseView)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, view.Names())

	create, err := projector.FieldsFor(ctx, activeUser(1), ResourceBranches, PhaseCreate)
	require.NoError(t, err)
	assert.True(t, create.IsWildcard())

	edit, err := projector.FieldsFor(ctx, activeUser(1), ResourceBranches, PhaseEdit)
	require.NoError(t, err)
	assert.True(t, edit.IsEmpty(), "пустой список полей не означает все поля")

	none, err := projector.FieldsFor(ctx, activeUser(2), ResourceBranches, PhaseView)
	require.NoError(t, err)
	assert.True(t, none.IsEmpty())

	all, err := projector.FieldsFor(ctx, superuser(3), ResourceBranches, PhaseEdit)
	require.NoError(t, err)
	assert.True(t, all.IsWildcard())
}

func TestProjector_ObjectGrantFields(t *testing.T) {
	store := newFakeStore()
	store.grant(1,
		withFields(perm(1, entities.LevelAll, ResourceRoles, "v"), []string{"id"}, nil, nil),
		withFields(onObject(perm(2, entities.LevelAll, ResourceRoles, "ve"), "5"), []string{"id", "name"}, nil, []string{"name"}),
	)
	projector := NewProjector(store)

	fs, err := projector.FieldsForObject(context.Background(), activeUser(1), ResourceRoles, PhaseView, "5")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, fs.Names())

	fs, err = projector.FieldsForObject(context.Background(), activeUser(1), ResourceRoles, PhaseView, "6")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, fs.Names())
}
