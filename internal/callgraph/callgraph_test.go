package callgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/methodmap/internal/model"
)

func call(op, owner, name, desc string) model.Instruction {
	return model.Instruction{Op: op, Owner: owner, Name: name, Desc: desc}
}

func compiled(typ, name string, params []string, ret string, trace ...model.Instruction) model.MethodRecord {
	return model.MethodRecord{
		Origin:         model.Compiled,
		EnclosingType:  typ,
		SimpleName:     name,
		ParameterTypes: params,
		ReturnType:     ret,
		Trace:          trace,
	}
}

const helper = "pkg.Util.helper(): void"

func TestBuildRepeatedCallsYieldOneEdge(t *testing.T) {
	t.Parallel()

	m := compiled("pkg.Main", "run", nil, "void",
		call("invokestatic", "pkg/Util", "helper", "()V"),
		model.Instruction{Op: "iconst_1"},
		call("invokestatic", "pkg/Util", "helper", "()V"),
		call("invokestatic", "pkg/Util", "helper", "()V"),
	)

	g := Build([]model.MethodRecord{m})

	assert.Equal(t, []string{helper}, g.Successors(m.Identity()))
	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, []model.CallEdge{{Caller: "pkg.Main.run(): void", Callee: helper}}, g.Edges())
}

func TestBuildCalleeOnlyNodeHasEmptySuccessors(t *testing.T) {
	t.Parallel()

	m := compiled("pkg.Main", "run", nil, "void",
		call("invokevirtual", "java/io/PrintStream", "println", "(Ljava/lang/String;)V"),
	)
	g := Build([]model.MethodRecord{m})

	target := "java.io.PrintStream.println(java.lang.String): void"
	succ := g.Successors(target)
	require.NotNil(t, succ)
	assert.Empty(t, succ)
	assert.False(t, g.Declared(target))
	assert.True(t, g.Declared(m.Identity()))

	adj := g.Adjacency()
	require.Contains(t, adj, target)
	assert.Empty(t, adj[target])
	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 1, g.DeclaredCount())

	assert.NotNil(t, g.Successors("never.Seen.x(): void"))
}

func TestBuildSelfEdge(t *testing.T) {
	t.Parallel()

	fact := compiled("pkg.Math", "fact", []string{"int"}, "long",
		call("invokestatic", "pkg/Math", "fact", "(I)J"),
	)
	g := Build([]model.MethodRecord{fact})

	id := "pkg.Math.fact(int): long"
	assert.Equal(t, id, fact.Identity())
	assert.Equal(t, []string{id}, g.Successors(id))
	assert.Equal(t, 1, g.NodeCount())
}

func TestBuildNestedAndArrayOwners(t *testing.T) {
	t.Parallel()

	m := compiled("pkg.Outer$Inner", "go", nil, "void",
		call("invokespecial", "pkg/Outer$Inner", "<init>", "(Lpkg/Outer;)V"),
		call("invokevirtual", "[I", "clone", "()Ljava/lang/Object;"),
		call("invokeinterface", "java/util/Map$Entry", "getKey", "()Ljava/lang/Object;"),
	)
	g := Build([]model.MethodRecord{m})

	assert.Equal(t, []string{
		"int[].clone(): java.lang.Object",
		"java.util.Map$Entry.getKey(): java.lang.Object",
		"pkg.Outer$Inner.<init>(pkg.Outer): void",
	}, g.Successors(m.Identity()))
}

func TestBuildSkipsMalformedAndNonCalls(t *testing.T) {
	t.Parallel()

	m := compiled("pkg.A", "f", nil, "void",
		call("invokestatic", "pkg/B", "g", "(X)V"),
		call("invokedynamic", "", "apply", "()Ljava/util/function/Function;"),
		model.Instruction{Op: "getstatic", Owner: "pkg/B", Name: "FIELD", Desc: "I"},
		call("invokestatic", "pkg/B", "h", "()V"),
	)
	g := Build([]model.MethodRecord{m})

	assert.Equal(t, 1, g.Malformed())
	assert.Equal(t, []string{"pkg.B.h(): void"}, g.Successors(m.Identity()))
}

func TestBuildDistinctCallersShareCallee(t *testing.T) {
	t.Parallel()

	a := compiled("pkg.A", "a", nil, "void", call("invokestatic", "pkg/Util", "helper", "()V"))
	b := compiled("pkg.B", "b", nil, "void", call("invokestatic", "pkg/Util", "helper", "()V"))
	g := Build([]model.MethodRecord{a, b})

	assert.Equal(t, 2, g.EdgeCount())
	assert.Equal(t, []string{"pkg.A.a(): void", "pkg.B.b(): void", helper}, g.Nodes())

	r, ok := g.Record("pkg.B.b(): void")
	require.True(t, ok)
	assert.Equal(t, "b", r.SimpleName)
}
