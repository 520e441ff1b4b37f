package pypperoni

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModuleKindStringMapsToManifestVocabulary(t *testing.T) {
	require.Equal(t, "DEFINED", KindRegular.String())
	require.Equal(t, "DEFINED", KindPackage.String())
	require.Equal(t, "DEFINED", KindNull.String())
	require.Equal(t, "BUILTIN", KindBuiltin.String())
	require.Equal(t, "BUILTIN", KindExternal.String())
}

func TestModuleIDIsZeroForMain(t *testing.T) {
	m := &Module{Name: "app", IsMain: true}
	require.Equal(t, uint32(RootModuleID), m.ID())
}

func TestModuleIDIsStableAndDeterministic(t *testing.T) {
	m := &Module{Name: "pkg.sub"}
	first := m.ID()
	second := m.ID()
	require.Equal(t, first, second)
	require.Equal(t, ModuleID("pkg.sub"), first)
}

func TestModuleIDDiffersByName(t *testing.T) {
	require.NotEqual(t, ModuleID("a"), ModuleID("b"))
}

func TestParentName(t *testing.T) {
	require.Equal(t, "a.b", ParentName("a.b.c"))
	require.Equal(t, "a", ParentName("a.b"))
	require.Equal(t, "", ParentName("a"))
	require.Equal(t, "", ParentName(""))
}
