package uniqset

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderAndDedup(t *testing.T) {
	s := New[int]()
	assert.True(t, s.Add(1))
	assert.True(t, s.Add(2))
	assert.False(t, s.Add(1))

	assert.Equal(t, []int{1, 2}, s.Values())
	assert.Equal(t, 2, s.Size())

	assert.True(t, s.Delete(1))
	assert.Equal(t, []int{2}, s.Values())
	assert.Equal(t, 1, s.Size())
	assert.False(t, s.Has(1))
	assert.True(t, s.Has(2))
}

func TestDeleteKeepsOrder(t *testing.T) {
	s := New("a", "b", "c", "d")
	assert.True(t, s.Delete("b"))
	assert.False(t, s.Delete("missing"))
	assert.Equal(t, []string{"a", "c", "d"}, s.Values())
	assert.Equal(t, "c", s.At(1))

	// a deleted value is appended at the end when added again
	s.Add("b")
	assert.Equal(t, []string{"a", "c", "d", "b"}, s.Values())
}

func TestClear(t *testing.T) {
	s := New(1, 2, 3)
	s.Clear()
	assert.Equal(t, 0, s.Size())
	assert.Empty(t, s.Values())
	assert.False(t, s.Has(1))

	s.Add(3)
	assert.Equal(t, []int{3}, s.Values())
}

func TestNewDropsDuplicates(t *testing.T) {
	s := New("x", "y", "x", "z", "y")
	assert.Equal(t, []string{"x", "y", "z"}, s.Values())
	assert.Equal(t, "[x y z]", s.String())
}

func TestValuesIsCopy(t *testing.T) {
	s := New(1, 2)
	v := s.Values()
	v[0] = 99
	assert.Equal(t, []int{1, 2}, s.Values())
}

func TestJSON(t *testing.T) {
	s := New("b", "a")
	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["b","a"]`, string(out))

	// nested inside a struct the set is still a bare array
	report := struct {
		Unique *Set[string] `json:"unique"`
	}{Unique: New[string]()}
	out, err = json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t, `{"unique":[]}`, string(out))

	var decoded Set[string]
	require.NoError(t, json.Unmarshal([]byte(`["c","a","c","b"]`), &decoded))
	assert.Equal(t, []string{"c", "a", "b"}, decoded.Values())

	var empty Set[string]
	require.NoError(t, json.Unmarshal([]byte(`null`), &empty))
	assert.Equal(t, 0, empty.Size())

	var wrong Set[int]
	assert.Error(t, json.Unmarshal([]byte(`{"items":[1]}`), &wrong))
}

func TestGob(t *testing.T) {
	in := New(3, 1, 2)

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(in))

	out := New[int]()
	require.NoError(t, gob.NewDecoder(&buf).Decode(out))
	assert.Equal(t, []int{3, 1, 2}, out.Values())
}

type holder struct {
	Ids Set[string]
}

func TestJSONByValue(t *testing.T) {
	s := New("a", "b")

	data, err := json.Marshal(*s)
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(data))

	data, err = json.Marshal(holder{Ids: *New("x")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Ids":["x"]}`, string(data))

	var out holder
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, []string{"x"}, out.Ids.Values())

	data, err = json.Marshal(holder{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Ids":[]}`, string(data))
}

func TestGobByValue(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(*New(3, 1, 2)))

	out := New[int]()
	require.NoError(t, gob.NewDecoder(&buf).Decode(out))
	assert.Equal(t, []int{3, 1, 2}, out.Values())

	buf.Reset()
	require.NoError(t, gob.NewEncoder(&buf).Encode(holder{Ids: *New("x", "y")}))

	var h holder
	require.NoError(t, gob.NewDecoder(&buf).Decode(&h))
	assert.Equal(t, []string{"x", "y"}, h.Ids.Values())
}
