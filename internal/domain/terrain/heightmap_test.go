package terrain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simcore/simcore/internal/domain/geom"
)

func TestHeightmap_FlatByDefault(t *testing.T) {
	h := NewHeightmap()
	require.Equal(t, 0.0, h.HeightAt(geom.NewVec2(1234, -987)))
}

func TestTerraform_ElevationRaisesWithinRadius(t *testing.T) {
	h := NewHeightmap()
	center := geom.NewVec2(0, 0)
	modified := Terraform(h, TerraformElevation, center, 5, 10, 0, nil)
	require.NotEmpty(t, modified)
	require.Greater(t, h.HeightAt(center), 0.0)
	require.Equal(t, 0.0, h.HeightAt(geom.NewVec2(1000, 1000)))
}

func TestTerraform_LevelConvergesToTarget(t *testing.T) {
	h := NewHeightmap()
	center := geom.NewVec2(0, 0)
	Terraform(h, TerraformLevel, center, 5, 0, 50, nil)
	require.InDelta(t, 50, h.HeightAt(center), 0.01)
}

func TestPlaceTree_RespectsMaxPerChunk(t *testing.T) {
	h := NewHeightmap()
	p := geom.NewVec2(0, 0)
	require.True(t, h.PlaceTree(p, 1))
	require.False(t, h.PlaceTree(p, 1))
	require.Len(t, h.TreesNear(p, 1), 1)
}
