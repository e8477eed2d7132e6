package pairing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/methodmap/internal/lang"
	"github.com/phobologic/methodmap/internal/model"
)

func newPairer(t *testing.T) *Pairer {
	t.Helper()
	l, err := lang.Lookup("java")
	require.NoError(t, err)
	p, err := New(l)
	require.NoError(t, err)
	return p
}

func method(typ, name string, params []string, file, body string) model.MethodRecord {
	return model.MethodRecord{
		Origin:         model.Source,
		EnclosingType:  typ,
		SimpleName:     name,
		ParameterTypes: params,
		ReturnType:     "void",
		File:           file,
		Body:           body,
	}
}

func TestPairParseScenario(t *testing.T) {
	t.Parallel()

	parseMethod := method("pkg.Parser", "parse", []string{"String"}, "src/main/java/pkg/Parser.java", "Node parse(String raw) { return null; }")
	test := method("pkg.ParserTest", "testParse", nil, "src/test/java/pkg/ParserTest.java", "void testParse() { parse(raw); }")

	got := newPairer(t).Pair([]model.MethodRecord{parseMethod}, []model.MethodRecord{test})

	require.Len(t, got, 1)
	assert.Equal(t, "pkg.Parser.parse(String): void", got[0].Production.Identity)
	assert.Equal(t, "pkg.ParserTest.testParse(): void", got[0].Test.Identity)
	assert.Equal(t, "src/test/java/pkg/ParserTest.java", got[0].Test.File)
	assert.Equal(t, test.Body, got[0].Test.Body)
	assert.Equal(t, 1, got[0].CallLine)
}

func TestPairCallLine(t *testing.T) {
	t.Parallel()

	parseMethod := method("pkg.Parser", "parse", []string{"String"}, "", "")
	test := method("pkg.ParserTest", "testParse", nil, "", `void testParse() {
    String raw = "x";
    parse(raw, true);
    parse(raw);
    parse(raw);
}`)

	got := newPairer(t).Pair([]model.MethodRecord{parseMethod}, []model.MethodRecord{test})
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].CallLine, "line of the first call with matching arity")
}

func TestPairArityMismatch(t *testing.T) {
	t.Parallel()

	parseMethod := method("pkg.Parser", "parse", []string{"String"}, "", "")
	test := method("pkg.ParserTest", "testParse", nil, "", "void testParse() { parse(raw, flag); }")

	got := newPairer(t).Pair([]model.MethodRecord{parseMethod}, []model.MethodRecord{test})
	assert.Empty(t, got)
}

func TestPairAnyMatchingCallSuffices(t *testing.T) {
	t.Parallel()

	parseMethod := method("pkg.Parser", "parse", []string{"String"}, "", "")
	test := method("pkg.ParserTest", "testParse", nil, "", "void testParse() { parse(raw); parse(raw, flag); }")

	got := newPairer(t).Pair([]model.MethodRecord{parseMethod}, []model.MethodRecord{test})
	assert.Len(t, got, 1)
}

func TestPairRequiresLocality(t *testing.T) {
	t.Parallel()

	parseMethod := method("pkg.Parser", "parse", []string{"String"}, "Parser.java", "")
	unrelated := method("pkg.LexerTest", "testLex", nil, "LexerTest.java", "void testLex() { parse(raw); }")
	sameFile := method("pkg.Parser$InlineTest", "check", nil, "Parser.java", "void check() { parse(raw); }")

	got := newPairer(t).Pair([]model.MethodRecord{parseMethod}, []model.MethodRecord{unrelated, sameFile})

	require.Len(t, got, 1)
	assert.Equal(t, "check", got[0].Test.SimpleName)
}

func TestPairOverloadsWithSameArity(t *testing.T) {
	t.Parallel()

	byString := method("pkg.Parser", "parse", []string{"String"}, "", "")
	byPath := method("pkg.Parser", "parse", []string{"Path"}, "", "")
	twoArgs := method("pkg.Parser", "parse", []string{"String", "boolean"}, "", "")
	test := method("pkg.ParserTest", "testParse", nil, "", "void testParse() { parse(raw); }")

	got := newPairer(t).Pair([]model.MethodRecord{byString, byPath, twoArgs}, []model.MethodRecord{test})

	require.Len(t, got, 2)
	assert.Equal(t, []string{"String"}, got[0].Production.ParameterTypes)
	assert.Equal(t, []string{"Path"}, got[1].Production.ParameterTypes)
}

func TestPairManyTestsPerMethod(t *testing.T) {
	t.Parallel()

	parseMethod := method("pkg.Parser", "parse", []string{"String"}, "", "")
	tests := []model.MethodRecord{
		method("pkg.ParserTest", "a", nil, "", "void a() { parse(\"x\"); }"),
		method("pkg.ParserIT_Test", "b", nil, "", "void b() { assertNotNull(parser.parse(input)); }"),
		method("pkg.ParserTest", "c", nil, "", "void c() { other(); }"),
	}

	got := newPairer(t).Pair([]model.MethodRecord{parseMethod}, tests)

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Test.SimpleName)
	assert.Equal(t, "b", got[1].Test.SimpleName)
}

func TestClassifier(t *testing.T) {
	t.Parallel()

	c := NewClassifier()
	records := []model.MethodRecord{
		method("pkg.Parser", "parse", nil, "", ""),
		method("pkg.ParserTest", "testParse", nil, "", ""),
		method("pkg.test.Helper", "help", nil, "", ""),
		method("pkg.Outer$InnerTest", "run", nil, "", ""),
	}

	production, tests := c.Partition(records)
	require.Len(t, production, 2)
	require.Len(t, tests, 2)
	assert.Equal(t, "parse", production[0].SimpleName)
	assert.Equal(t, "help", production[1].SimpleName)
	assert.Equal(t, "testParse", tests[0].SimpleName)
	assert.Equal(t, "run", tests[1].SimpleName)

	custom := NewClassifier("Spec", " ")
	assert.True(t, custom.IsTest(method("pkg.ParserSpec", "x", nil, "", "")))
	assert.False(t, custom.IsTest(method("pkg.ParserTest", "x", nil, "", "")))
}

func TestRelated(t *testing.T) {
	t.Parallel()

	prod := method("pkg.Parser", "parse", nil, "", "")
	assert.True(t, Related(prod, method("other.ParserTest", "t", nil, "", "")))
	assert.False(t, Related(prod, method("pkg.LexerTest", "t", nil, "", "")))
	// Empty files never count as the same file.
	assert.False(t, Related(method("pkg.A", "f", nil, "", ""), method("pkg.BTest", "t", nil, "", "")))
}
