package snapshot

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string   `json:"name"`
	Tags  []string `json:"tags"`
	Count int      `json:"count"`
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.json")
	store := New[[]record](path)

	_, ok := store.Load()
	require.False(t, ok)

	value := []record{
		{Name: "a", Tags: []string{"x", "y"}, Count: 1},
		{Name: "b", Count: 2},
	}
	require.NoError(t, store.Save(value))

	loaded, ok := store.Load()
	require.True(t, ok)
	if diff := cmp.Diff(value, loaded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "\n  {", "expected indented json")
}

func TestLoadTolerance(t *testing.T) {
	cases := []struct {
		name     string
		contents string
	}{
		{name: "empty", contents: ""},
		{name: "whitespace", contents: "  \n\t"},
		{name: "corrupt", contents: `[{"name": "a",`},
		{name: "wrong schema", contents: `{"name": "not a list"}`},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			require.NoError(t, os.WriteFile(path, []byte(test.contents), 0644))

			_, ok := New[[]record](path).Load()
			require.False(t, ok)
		})
	}
}

func TestLoadFallback(t *testing.T) {
	type state struct {
		LastID int `json:"lastId"`
	}
	fallback := func(contents []byte) (state, bool) {
		id, err := strconv.Atoi(strings.TrimSpace(string(contents)))
		if err != nil {
			return state{}, false
		}
		return state{LastID: id}, true
	}

	dir := t.TempDir()

	legacy := filepath.Join(dir, "legacy.json")
	require.NoError(t, os.WriteFile(legacy, []byte("2018\n"), 0644))
	value, ok := New(legacy, WithFallback[state](fallback)).Load()
	require.True(t, ok)
	require.Equal(t, 2018, value.LastID)

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("not a number"), 0644))
	_, ok = New(garbage, WithFallback[state](fallback)).Load()
	require.False(t, ok)

	current := filepath.Join(dir, "current.json")
	require.NoError(t, os.WriteFile(current, []byte(`{"LastId": 7}`), 0644))
	value, ok = New(current, WithFallback[state](fallback)).Load()
	require.True(t, ok)
	require.Equal(t, 7, value.LastID)
}

func TestFailedSaveKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := New[any](path)

	require.NoError(t, store.Save(map[string]int{"lastId": 1}))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// channels cannot be encoded
	err = store.Save(make(chan int))
	require.Error(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, string(before), string(after))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files should be left behind")
}

func TestSaveFailsWhenParentIsFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	err := New[int](filepath.Join(blocker, "state.json")).Save(1)
	require.Error(t, err)
}

func TestUpdateSerializesWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counter.json")

	const writers = 20
	wg := sync.WaitGroup{}
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// separate Store values on the same path share one lock
			err := New[int](path).Update(func(prev int, ok bool) (int, bool, error) {
				return prev + 1, true, nil
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	value, ok := New[int](path).Load()
	require.True(t, ok)
	require.Equal(t, writers, value)
}

func TestUpdateWithoutSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := New[int](path)
	require.NoError(t, store.Save(5))

	err := store.Update(func(prev int, ok bool) (int, bool, error) {
		require.True(t, ok)
		require.Equal(t, 5, prev)
		return 6, false, nil
	})
	require.NoError(t, err)

	value, _ := store.Load()
	require.Equal(t, 5, value)
}
