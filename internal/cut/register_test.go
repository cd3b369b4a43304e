package cut

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filmreel/internal/doc"
)

func TestInsert(t *testing.T) {
	reg := Of("FIRST_NAME", "Primus", "RESPONSE", "ALRIGHT")

	prev, existed := reg.Insert("LAST_NAME", "Secundus")
	assert.False(t, existed)
	assert.Empty(t, prev)

	assert.True(t, Of(
		"FIRST_NAME", "Primus",
		"RESPONSE", "ALRIGHT",
		"LAST_NAME", "Secundus",
	).Equal(reg))
}

func TestInsertReturnsPrevious(t *testing.T) {
	reg := Of("FIRST_NAME", "Primus", "RESPONSE", "ALRIGHT")

	prev, existed := reg.Insert("FIRST_NAME", "Pietre")
	assert.True(t, existed)
	assert.Equal(t, "Primus", prev)
	assert.True(t, Of("FIRST_NAME", "Pietre", "RESPONSE", "ALRIGHT").Equal(reg))
}

func TestZeroValueUsable(t *testing.T) {
	var reg Register
	reg.Insert("A", "1")
	v, ok := reg.Get("A")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestGetAbsent(t *testing.T) {
	v, ok := New().Get("NOPE")
	assert.False(t, ok)
	assert.Empty(t, v)

	var nilReg *Register
	_, ok = nilReg.Get("NOPE")
	assert.False(t, ok)
}

func TestAllIsSortedAndRestartable(t *testing.T) {
	reg := New()
	for _, k := range []string{"zulu", "alpha", "mike", "bravo"} {
		reg.Insert(k, "v-"+k)
	}

	collect := func() []string {
		var keys []string
		for k, v := range reg.All() {
			assert.Equal(t, "v-"+k, v)
			keys = append(keys, k)
		}
		return keys
	}

	first := collect()
	assert.Equal(t, []string{"alpha", "bravo", "mike", "zulu"}, first)
	assert.Equal(t, first, collect())
}

func TestAllStopsEarly(t *testing.T) {
	reg := Of("A", "1", "B", "2", "C", "3")
	var seen []string
	for k := range reg.All() {
		seen = append(seen, k)
		if k == "B" {
			break
		}
	}
	assert.Equal(t, []string{"A", "B"}, seen)
}

func TestMergeRightBiased(t *testing.T) {
	a := Of("X", "base", "ONLY_A", "a")
	b := Of("X", "override", "ONLY_B", "b")

	merged := a.Merge(b)
	assert.True(t, Of("X", "override", "ONLY_A", "a", "ONLY_B", "b").Equal(merged))

	// inputs untouched
	v, _ := a.Get("X")
	assert.Equal(t, "base", v)
	assert.Equal(t, 2, b.Len())
}

func TestMergeAssociative(t *testing.T) {
	a := Of("K", "a", "A", "1")
	b := Of("K", "b", "B", "2")
	c := Of("K", "c", "A", "3")

	left := a.Merge(b).Merge(c)
	right := a.Merge(b.Merge(c))
	assert.True(t, left.Equal(right))
	assert.True(t, MergeAll(a, b, c).Equal(left))
}

func TestMergeAllSkipsNil(t *testing.T) {
	merged := MergeAll(nil, Of("A", "1"), nil)
	assert.True(t, Of("A", "1").Equal(merged))
}

func TestMissing(t *testing.T) {
	reg := Of("USER_ID", "1")
	assert.Equal(t, []string{"SESSION", "TOKEN"}, reg.Missing([]string{"TOKEN", "USER_ID", "SESSION"}))
	assert.Empty(t, reg.Missing([]string{"USER_ID"}))
}

func TestSerializeSortedRegardlessOfInsertionOrder(t *testing.T) {
	a := New()
	a.Insert("RESPONSE", "ALRIGHT")
	a.Insert("FIRST_NAME", "Primus")

	b := New()
	b.Insert("FIRST_NAME", "Primus")
	b.Insert("RESPONSE", "ALRIGHT")

	ab, err := a.Serialize()
	require.NoError(t, err)
	bb, err := b.Serialize()
	require.NoError(t, err)

	assert.Equal(t, `{"FIRST_NAME":"Primus","RESPONSE":"ALRIGHT"}`, string(ab))
	assert.Equal(t, ab, bb)
}

func TestSerializeRoundTripFixedPoint(t *testing.T) {
	regs := []*Register{
		New(),
		Of("A", "1"),
		Of("b", "x", "a", "y", "B", "z", "_", "underscore"),
		Of("quote", `he said "hi"`, "html", "<b>&</b>"),
	}
	for _, reg := range regs {
		first, err := reg.Serialize()
		require.NoError(t, err)

		back, err := Decode("cut.json", first)
		require.NoError(t, err)
		second, err := back.Serialize()
		require.NoError(t, err)

		assert.Equal(t, string(first), string(second))
	}
}

func TestSerializeKeepsValuesExact(t *testing.T) {
	// decomposed e + combining acute, U+2028, and a key in decomposed form
	reg := Of("TOKEN", "e\u0301", "SEP", "a\u2028b", "cle\u0301", "v")

	data, err := reg.Serialize()
	require.NoError(t, err)
	back, err := Decode("cut.json", data)
	require.NoError(t, err)
	assert.True(t, reg.Equal(back), "decoded %s", back)

	v, _ := back.Get("TOKEN")
	assert.Equal(t, "e\u0301", v)
}

func TestFromDocument(t *testing.T) {
	reg, err := FromDocument(doc.Object{"A": doc.String("1"), "B": doc.String("2")})
	require.NoError(t, err)
	assert.True(t, Of("A", "1", "B", "2").Equal(reg))
}

func TestFromDocumentRejectsNonStrings(t *testing.T) {
	tests := []struct {
		name string
		in   doc.Value
		msg  string
	}{
		{"array", doc.Array{}, "must be an object"},
		{"number value", doc.Object{"A": doc.Int(1)}, `value for "A" must be a string`},
		{"nested object", doc.Object{"A": doc.Object{}}, `value for "A" must be a string`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromDocument(tt.in)
			require.Error(t, err)
			assert.True(t, doc.IsParseError(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestDecodeYAMLRegister(t *testing.T) {
	reg, err := Decode("reel.cut.yaml", []byte("USER_ID: \"42\"\nHOST: localhost\n"))
	require.NoError(t, err)
	assert.True(t, Of("USER_ID", "42", "HOST", "localhost").Equal(reg))
}

func TestDecodeStampsSource(t *testing.T) {
	_, err := Decode("bad.cut.json", []byte(`{"A": 1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.cut.json")
}

func TestJSONMarshalers(t *testing.T) {
	reg := Of("B", "2", "A", "1")
	b, err := reg.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"A":"1","B":"2"}`, string(b))

	var back Register
	require.NoError(t, back.UnmarshalJSON(b))
	assert.True(t, reg.Equal(&back))
}

func TestSerializeIndentGolden(t *testing.T) {
	reg := Of(
		"USER_TOKEN", "Bearer abc",
		"FIRST_NAME", "Primus",
		"USER_ID", "007",
		"DATETIME", "2020-01-01T00:00:00Z",
	)
	out, err := reg.SerializeIndent()
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "register_indent", out)
}
