package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentity(t *testing.T) {
	t.Parallel()

	r := MethodRecord{
		EnclosingType:  "pkg.Box",
		SimpleName:     "put",
		ParameterTypes: []string{"java.lang.String", "int"},
		ReturnType:     "void",
	}
	assert.Equal(t, "pkg.Box.put(java.lang.String, int): void", r.Identity())

	r.ParameterTypes = nil
	assert.Equal(t, "pkg.Box.put(): void", r.Identity())
}

func TestKeyIgnoresPayload(t *testing.T) {
	t.Parallel()

	a := MethodRecord{Origin: Source, EnclosingType: "A", SimpleName: "f", ParameterTypes: []string{"int"}, ReturnType: "void", Body: "x"}
	b := a
	b.Body = "y"
	b.File = "Other.java"
	assert.Equal(t, a.Key(), b.Key())

	c := a
	c.ParameterTypes = []string{"long"}
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestIsCall(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   Instruction
		want bool
	}{
		{Instruction{Op: "invokestatic", Owner: "pkg/Util", Name: "helper", Desc: "()V"}, true},
		{Instruction{Op: "INVOKEVIRTUAL", Owner: "pkg/Util", Name: "helper", Desc: "()V"}, true},
		{Instruction{Op: "invokedynamic", Name: "apply", Desc: "()Ljava/util/function/Function;"}, false},
		{Instruction{Op: "invokeinterface", Owner: "pkg/Api", Name: "call"}, false},
		{Instruction{Op: "aload_0"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.IsCall(), "%+v", tt.in)
	}
}

func TestBalanced(t *testing.T) {
	t.Parallel()

	m := MatchResult{
		Common:       []Pair{{}},
		SourceOnly:   []MethodRecord{{}},
		CompiledOnly: []MethodRecord{{}, {}},
	}
	assert.True(t, m.Balanced(2, 3))
	assert.False(t, m.Balanced(2, 2))
}

func TestProvenanceOfNeverNilParams(t *testing.T) {
	t.Parallel()

	p := ProvenanceOf(MethodRecord{EnclosingType: "A", SimpleName: "f", ReturnType: "void", File: "A.java"})
	assert.NotNil(t, p.ParameterTypes)
	assert.Equal(t, "A.f(): void", p.Identity)
	assert.Equal(t, "A.java", p.File)
}
