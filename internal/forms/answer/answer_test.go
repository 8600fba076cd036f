package answer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	in := Map{
		"age":       float64(28),
		"projet":    "Plantation d'oliviers",
		"accepte":   true,
		"remarque":  nil,
		"cultures":  []string{"olivier", "amandier"},
		"documents": []DocumentRef{{ID: "2025/03/agent_1/pending_ab/cin.pdf", Filename: "cin.pdf", ContentType: "application/pdf", Size: 12}},
	}

	text, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(text)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecode_Edges(t *testing.T) {
	m, err := Decode("   ")
	require.NoError(t, err)
	assert.Empty(t, m)

	m, err = Decode(`{"age": 28, "tags": [], "mixed": [1, "a"]}`)
	require.NoError(t, err)
	assert.Equal(t, float64(28), m["age"])
	assert.Equal(t, []string{}, m["tags"])
	assert.Equal(t, []interface{}{float64(1), "a"}, m["mixed"])

	_, err = Decode(`{"age": `)
	assert.Error(t, err)
}

func TestEncode_Nil(t *testing.T) {
	text, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", text)
}

func TestNumber(t *testing.T) {
	for _, v := range []interface{}{28, int64(28), float32(28), 28.0, uint8(28)} {
		n, ok := Number(v)
		assert.True(t, ok)
		assert.Equal(t, 28.0, n)
	}
	_, ok := Number("28")
	assert.False(t, ok)
}

func TestDocumentRefs(t *testing.T) {
	generic := []interface{}{
		map[string]interface{}{"id": "a", "filename": "a.pdf", "size": float64(3)},
		map[string]interface{}{"id": "b", "filename": "b.pdf"},
	}
	refs, ok := DocumentRefs(generic)
	require.True(t, ok)
	assert.Equal(t, []DocumentRef{{ID: "a", Filename: "a.pdf", Size: 3}, {ID: "b", Filename: "b.pdf"}}, refs)

	_, ok = DocumentRefs([]interface{}{map[string]interface{}{"filename": "no-id.pdf"}})
	assert.False(t, ok)
	_, ok = DocumentRefs("a.pdf")
	assert.False(t, ok)

	id, ok := DocumentID(DocumentRef{ID: "x"})
	assert.True(t, ok)
	assert.Equal(t, "x", id)
	_, ok = DocumentID(generic)
	assert.False(t, ok)
}

func TestClone(t *testing.T) {
	orig := Map{"cultures": []string{"olivier"}}
	c := orig.Clone()
	c["cultures"].([]string)[0] = "figuier"
	assert.Equal(t, "olivier", orig["cultures"].([]string)[0])
	assert.Nil(t, Map(nil).Clone())
	assert.Equal(t, []string{"a", "b"}, Map{"b": 1, "a": 2}.Keys())
}
