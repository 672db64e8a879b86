package quark

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInternIsIdempotent(t *testing.T) {
	id1 := Intern("a-fresh-test-quark")
	id2 := Intern("a-fresh-test-quark")
	require.Equal(t, id1, id2)
}

func TestInternRoundTripsString(t *testing.T) {
	id := Intern("round-trip-me")
	require.Equal(t, "round-trip-me", id.String())
}

func TestLookupDoesNotAllocate(t *testing.T) {
	_, ok := Lookup("never-interned-quark-xyz")
	require.False(t, ok)

	id, ok := Lookup("name")
	require.True(t, ok)
	require.Equal(t, Name, id)
}

func TestConvertMapsLegacyCamelToSnake(t *testing.T) {
	require.Equal(t, UploadedEverSnake, Convert(UploadedEverCamel))
	require.Equal(t, DownloadedEverSnake, Convert(DownloadedEverCamel))
	// A quark with no legacy mapping converts to itself.
	require.Equal(t, Name, Convert(Name))
}

func TestDeprecatedIsInverseOfConvert(t *testing.T) {
	dep, ok := Deprecated(UploadedEverSnake)
	require.True(t, ok)
	require.Equal(t, UploadedEverCamel, dep)

	_, ok = Deprecated(Name)
	require.False(t, ok)
}

func TestBuiltinIdsAreStable(t *testing.T) {
	// Built-ins are registered in source order starting from None_ = 0;
	// the id assigned to "name" must never shift across builds.
	id, ok := Lookup("name")
	require.True(t, ok)
	require.Equal(t, Name, id)
	require.Equal(t, ID(2), Name)
	require.Equal(t, "name", Name.String())
}
