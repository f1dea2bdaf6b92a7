package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_LowercasesAndSplits(t *testing.T) {
	a, err := Get(Default)
	require.NoError(t, err)

	tokens := a.Analyze("Hello, World! The hello-world test")

	assert.Equal(t, []string{"hello", "world", "the", "hello", "world", "test"}, a.Terms("Hello, World! The hello-world test"))
	require.Len(t, tokens, 6)
	assert.Equal(t, 0, tokens[0].Position)
	assert.Equal(t, 5, tokens[5].Position)
}

func TestDefault_SplitsPaths(t *testing.T) {
	a, err := Get(Default)
	require.NoError(t, err)

	assert.Equal(t, []string{"tmp", "corpus", "notes.txt"}, a.Terms("/tmp/corpus/notes.txt"))
}

func TestDefault_DropsOverlongTokens(t *testing.T) {
	a, err := Get(Default)
	require.NoError(t, err)

	long := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	assert.Equal(t, []string{"short"}, a.Terms(long+" short"))
}

func TestStemmed_RemovesStopWordsAndStems(t *testing.T) {
	a, err := Get(Stemmed)
	require.NoError(t, err)

	tokens := a.Analyze("the running engines")

	require.Len(t, tokens, 2)
	assert.Equal(t, "run", tokens[0].Term)
	assert.Equal(t, "engin", tokens[1].Term)
	assert.Equal(t, 1, tokens[0].Position, "positions keep the gap left by the stop word")
}

func TestGet_Builtins(t *testing.T) {
	for _, name := range []string{Standard, Simple, Keyword, English} {
		a, err := Get(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, a.Name())
	}

	kw, err := Get(Keyword)
	require.NoError(t, err)
	assert.Equal(t, []string{"Exact Value"}, kw.Terms("Exact Value"))
}

func TestGet_Unknown(t *testing.T) {
	_, err := Get("klingon")
	assert.Error(t, err)
	assert.False(t, Known("klingon"))
	assert.True(t, Known(Default))
}

func TestGet_ReturnsSameInstance(t *testing.T) {
	a, err := Get(Default)
	require.NoError(t, err)
	b, err := Get(Default)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestAnalyze_Empty(t *testing.T) {
	a, err := Get(Default)
	require.NoError(t, err)
	assert.Empty(t, a.Analyze(""))
}

func TestNames(t *testing.T) {
	names := Names()
	assert.Contains(t, names, Default)
	assert.Contains(t, names, Stemmed)
	assert.Contains(t, names, English)
	assert.IsIncreasing(t, names)
}

func TestStemmed_QueryAndDocumentAgree(t *testing.T) {
	a, err := Get(Stemmed)
	require.NoError(t, err)
	assert.Equal(t, a.Terms("connected connections"), a.Terms("connect connection"))
	assert.Equal(t, []string{"fli", "cat"}, a.Terms("flies and cats"))
}
