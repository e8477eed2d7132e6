package reconcile

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/phobologic/methodmap/internal/model"
	"github.com/phobologic/methodmap/internal/telemetry"
)

func fixture() Input {
	return Input{
		Source: []model.MethodRecord{
			{Origin: model.Source, EnclosingType: "pkg.Parser", SimpleName: "parse", ParameterTypes: []string{"String"}, ReturnType: "Node",
				File: "Parser.java", Body: "Node parse(String raw) { return Util.helper(raw); }"},
			{Origin: model.Source, EnclosingType: "pkg.Box", SimpleName: "get", ParameterTypes: []string{"T"}, ReturnType: "T",
				File: "Box.java", Body: "T get(T fallback) { return value; }"},
			{Origin: model.Source, EnclosingType: "pkg.ParserTest", SimpleName: "testParse", ReturnType: "void",
				File: "ParserTest.java", Body: "@Test void testParse() { parser.parse(raw); }"},
		},
		Compiled: []model.MethodRecord{
			{Origin: model.Compiled, EnclosingType: "pkg.Parser", SimpleName: "parse", ParameterTypes: []string{"java.lang.String"}, ReturnType: "pkg.Node",
				Trace: []model.Instruction{
					{Op: "aload_1"},
					{Op: "invokestatic", Owner: "pkg/Util", Name: "helper", Desc: "(Ljava/lang/String;)Lpkg/Node;"},
					{Op: "invokestatic", Owner: "pkg/Util", Name: "helper", Desc: "(Ljava/lang/String;)Lpkg/Node;"},
				}},
			{Origin: model.Compiled, EnclosingType: "pkg.Box", SimpleName: "get", ParameterTypes: []string{"java.lang.Object"}, ReturnType: "java.lang.Object"},
			{Origin: model.Compiled, EnclosingType: "pkg.Parser", SimpleName: "lambda$parse$0", ReturnType: "void"},
		},
	}
}

func TestRun(t *testing.T) {
	t.Parallel()

	in := fixture()
	res, err := Run(context.Background(), in, Options{Logger: telemetry.Discard(), Top: 2})
	require.NoError(t, err)

	assert.True(t, res.InvariantHeld)
	require.Len(t, res.Mapping.Common, 2)
	assert.Equal(t, "parse", res.Mapping.Common[0].Source.SimpleName)
	assert.Equal(t, "get", res.Mapping.Common[1].Compiled.SimpleName)
	require.Len(t, res.Mapping.SourceOnly, 1)
	assert.Equal(t, "testParse", res.Mapping.SourceOnly[0].SimpleName)
	require.Len(t, res.Mapping.CompiledOnly, 1)
	assert.Equal(t, "lambda$parse$0", res.Mapping.CompiledOnly[0].SimpleName)

	caller := "pkg.Parser.parse(java.lang.String): pkg.Node"
	assert.Equal(t, []string{"pkg.Util.helper(java.lang.String): pkg.Node"}, res.Graph.Successors(caller))
	assert.Equal(t, 4, res.Graph.NodeCount())
	assert.Len(t, res.Ranks, 4)
	assert.Len(t, res.Top, 2)

	assert.Equal(t, 2, res.Production)
	assert.Equal(t, 1, res.Tests)
	require.Len(t, res.Pairings, 1)
	assert.Equal(t, "pkg.Parser.parse(String): Node", res.Pairings[0].Production.Identity)

	require.Len(t, res.Duplicates, 2)
	assert.Equal(t, model.Source, res.Duplicates[0].Origin)
	assert.Equal(t, 0, res.Duplicates[0].Duplicate)
}

func TestRunSpans(t *testing.T) {
	t.Parallel()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	_, err := Run(context.Background(), fixture(), Options{Logger: telemetry.Discard(), Tracer: tp.Tracer("test")})
	require.NoError(t, err)

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"duplicates", "join", "callgraph", "pairing", "reconcile"}, names)
}

func TestRunRecordsMetrics(t *testing.T) {
	t.Parallel()

	m := telemetry.NewMetrics()
	_, err := Run(context.Background(), fixture(), Options{Logger: telemetry.Discard(), Metrics: m})
	require.NoError(t, err)

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	assert.True(t, found["methodmap_callgraph_edges"])
	assert.True(t, found["methodmap_pairing_pairings"])
	assert.True(t, found["methodmap_join_records"])
}

func TestRunLogsDuplicates(t *testing.T) {
	t.Parallel()

	in := fixture()
	in.Compiled = append(in.Compiled, in.Compiled[1])

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	res, err := Run(context.Background(), in, Options{Logger: log})
	require.NoError(t, err)

	assert.True(t, res.InvariantHeld)
	assert.Equal(t, 1, res.Duplicates[1].Duplicate)
	assert.Contains(t, buf.String(), "duplicate records")
	assert.Len(t, res.Mapping.CompiledOnly, 2)
}

func TestCheckInvariant(t *testing.T) {
	t.Parallel()

	in := fixture()
	m := telemetry.NewMetrics()
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	balanced := model.MatchResult{
		Common:       []model.Pair{{Source: in.Source[0], Compiled: in.Compiled[0]}},
		SourceOnly:   in.Source[1:],
		CompiledOnly: in.Compiled[1:],
	}
	assert.True(t, checkInvariant(log, m, balanced, len(in.Source), len(in.Compiled)))
	assert.Zero(t, testutil.ToFloat64(m.InvariantViolations))
	assert.Empty(t, buf.String())

	// A record lost from the partition is reported, not returned as an error.
	lost := balanced
	lost.CompiledOnly = in.Compiled[2:]
	assert.False(t, checkInvariant(log, m, lost, len(in.Source), len(in.Compiled)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InvariantViolations))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "compiledOnly=1")
}

func TestRunUnknownLanguage(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), fixture(), Options{Logger: telemetry.Discard(), Language: "cobol"})
	assert.Error(t, err)
}

func TestDuplicates(t *testing.T) {
	t.Parallel()

	r := model.MethodRecord{Origin: model.Source, EnclosingType: "pkg.A", SimpleName: "f", ParameterTypes: []string{"int"}, ReturnType: "void"}
	overload := r
	overload.ParameterTypes = []string{"long"}

	got := Duplicates(model.Source, []model.MethodRecord{r, r})
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, 1, got.Unique)
	assert.Equal(t, 1, got.Duplicate)
	assert.Equal(t, []string{"pkg.A.f(int): void"}, got.Identities)

	got = Duplicates(model.Source, []model.MethodRecord{r, overload, r, r})
	assert.Equal(t, 4, got.Total)
	assert.Equal(t, 2, got.Unique)
	assert.Equal(t, 2, got.Duplicate)
	assert.Len(t, got.Identities, 1)

	empty := Duplicates(model.Compiled, nil)
	assert.Equal(t, 0, empty.Total)
	assert.Empty(t, empty.Identities)
}
