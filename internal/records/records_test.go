package records

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func seedRepo() *MemoryRepository {
	return NewMemoryRepository(map[string]Record{
		"s1": NewRecord(map[string]string{
			"Type": TypeStudent, "Name": "Asha Rao", "Class": "7B", "Admission_No": "2026-0113",
		}),
		"s2": NewRecord(map[string]string{
			"type": TypeStudent, "name": "Benoy K", "class": "7A", "admission_no": "2026-0114",
		}),
		"t1": NewRecord(map[string]string{
			"type": TypeStaff, "name": "R. Menon", "employee_id": "EMP-204",
		}),
	})
}

func TestRecordKeysLowerCased(t *testing.T) {
	t.Parallel()

	rec := NewRecord(map[string]string{" Name ": "Asha", "ADMISSION_NO": "2026-0113", "type": TypeStudent})
	require.Equal(t, "Asha", rec.Field("name"))
	require.Equal(t, "Asha", rec.Field("NAME"))
	require.Equal(t, "2026-0113", rec.ID())
	require.Empty(t, rec.Field("missing"))
}

func TestLookupDistinguishesAbsent(t *testing.T) {
	t.Parallel()

	rec := NewRecord(map[string]string{"name": "", "type": TypeStudent})

	v, ok := rec.Lookup(" NAME ")
	require.True(t, ok)
	require.Empty(t, v)

	_, ok = rec.Lookup("class")
	require.False(t, ok)
}

func TestListFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := seedRepo()

	all, err := repo.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	students, err := repo.List(ctx, Query{Type: TypeStudent})
	require.NoError(t, err)
	require.Len(t, students, 2)

	classA, err := repo.List(ctx, Query{Type: TypeStudent, Class: "7A"})
	require.NoError(t, err)
	require.Len(t, classA, 1)
	require.Equal(t, "Benoy K", classA[0].Field(KeyName))

	limited, err := repo.List(ctx, Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestGetReturnsCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := seedRepo()

	rec, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	rec["name"] = "mutated"

	again, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "Asha Rao", again.Field(KeyName))

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPutValidates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := seedRepo()

	err := repo.Put(ctx, "bad", NewRecord(map[string]string{"type": TypeStudent, "name": "No Number"}))
	require.ErrorIs(t, err, ErrInvalidRecord)

	err = repo.Put(ctx, "bad", NewRecord(map[string]string{"type": "visitor", "name": "X"}))
	require.ErrorIs(t, err, ErrInvalidRecord)

	err = repo.Put(ctx, "s3", NewRecord(map[string]string{
		"type": TypeStudent, "name": "C. Das", "admission_no": "2026-0115",
	}))
	require.NoError(t, err)

	rec, err := repo.Get(ctx, "s3")
	require.NoError(t, err)
	require.Equal(t, "2026-0115", rec.ID())
}

func TestDeleteTolerant(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := seedRepo()
	require.NoError(t, repo.Delete(ctx, "s1"))
	require.NoError(t, repo.Delete(ctx, "s1"))

	_, err := repo.Get(ctx, "s1")
	require.ErrorIs(t, err, ErrNotFound)
}
