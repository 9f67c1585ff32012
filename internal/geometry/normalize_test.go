package geometry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/fieldwatch/internal/models"
)

func polygon(raw string) *models.Geometry {
	return &models.Geometry{Type: models.GeometryPolygon, Coordinates: json.RawMessage(raw)}
}

func rings(t *testing.T, f *models.Feature) [][][2]float64 {
	t.Helper()
	require.NotNil(t, f)
	require.NotNil(t, f.Geometry)
	r, err := f.Geometry.Rings()
	require.NoError(t, err)
	return r
}

func TestNormalize_Shapes(t *testing.T) {
	square := [][][2]float64{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}

	tests := []struct {
		name   string
		input  *models.Geometry
		expect [][][2]float64
	}{
		{
			name:   "flat numeric sequence",
			input:  polygon(`[0,0,1,0,1,1,0,1,0,0]`),
			expect: square,
		},
		{
			name:   "flat sequence with dangling value",
			input:  polygon(`[0,0,1,0,1,1,0,1,0,0,9]`),
			expect: square,
		},
		{
			name:   "flattened by one level",
			input:  polygon(`[[0,0,1,0,1,1,0,1,0,0]]`),
			expect: square,
		},
		{
			name:   "bare ring",
			input:  polygon(`[[0,0],[1,0],[1,1],[0,1],[0,0]]`),
			expect: square,
		},
		{
			name:   "already nested",
			input:  polygon(`[[[0,0],[1,0],[1,1],[0,1],[0,0]]]`),
			expect: square,
		},
		{
			name:   "glued four-number positions are split",
			input:  polygon(`[[[0,0,1,0],[1,1,0,1],[0,0]]]`),
			expect: square,
		},
		{
			name:   "invalid positions are dropped",
			input:  polygon(`[[[0,0],[1,0,5],["a","b"],[1,0],[1,1],[0,1],[0,0]]]`),
			expect: [][][2]float64{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}},
		},
		{
			name:   "degenerate ring passes through",
			input:  polygon(`[[[0,0],[1,1]]]`),
			expect: [][][2]float64{{{0, 0}, {1, 1}}},
		},
		{
			name:   "empty ring list",
			input:  polygon(`[]`),
			expect: [][][2]float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Normalize(tt.input)
			assert.Equal(t, models.GeometryFeature, f.Type)
			assert.Empty(t, f.Properties)
			assert.Equal(t, tt.expect, rings(t, f))
		})
	}
}

func TestNormalize_FlatSequenceYieldsOneRing(t *testing.T) {
	f := Normalize(polygon(`[21.1,44.8,21.2,44.8,21.2,44.9]`))

	assert.Equal(t, [][][2]float64{{{21.1, 44.8}, {21.2, 44.8}, {21.2, 44.9}}}, rings(t, f))
}

func TestNormalize_MultiPolygonPassesThrough(t *testing.T) {
	raw := `[[[[0,0],[1,0],[1,1],[0,0]]],[[[5,5],[6,5],[6,6],[5,5]]]]`
	in := &models.Geometry{Type: models.GeometryMultiPolygon, Coordinates: json.RawMessage(raw)}

	f := Normalize(in)

	require.NotNil(t, f)
	assert.Equal(t, models.GeometryMultiPolygon, f.Geometry.Type)
	assert.JSONEq(t, raw, string(f.Geometry.Coordinates))
}

func TestNormalize_FeatureInput(t *testing.T) {
	in := &models.Geometry{
		Type:       models.GeometryFeature,
		Properties: map[string]interface{}{"name": "x"},
		Geometry:   polygon(`[[0,0],[1,0],[1,1],[0,0]]`),
	}

	f := Normalize(in)

	assert.Empty(t, f.Properties)
	assert.Equal(t, [][][2]float64{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, rings(t, f))
}

func TestNormalize_NoCoordinates(t *testing.T) {
	assert.Nil(t, Normalize(nil))
	assert.Nil(t, Normalize(&models.Geometry{Type: models.GeometryPolygon}))
	assert.Nil(t, Normalize(polygon(`null`)))
	assert.Nil(t, Normalize(&models.Geometry{Type: models.GeometryFeature}))
	assert.Nil(t, Normalize(polygon(`"not coordinates"`)))
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		`[0,0,1,0,1,1,0,1,0,0]`,
		`[[0,0,1,0,1,1]]`,
		`[[0,0],[1,0],[1,1]]`,
		`[[[0,0,1,0],[1,1,0,1]],[[2,2],[3,3],[4,4]]]`,
		`[[]]`,
		`[]`,
	}

	for _, raw := range inputs {
		t.Run(raw, func(t *testing.T) {
			once := Normalize(polygon(raw))
			require.NotNil(t, once)
			twice := Normalize(once.Geometry)
			require.NotNil(t, twice)

			assert.Equal(t, once.Geometry.Type, twice.Geometry.Type)
			assert.JSONEq(t, string(once.Geometry.Coordinates), string(twice.Geometry.Coordinates))
		})
	}
}

func TestNormalizeZone(t *testing.T) {
	t.Run("drops empty rings", func(t *testing.T) {
		g := NormalizeZone(polygon(`[[[0,0],[1,0],[1,1],[0,0]],[],[["x"]]]`))
		require.NotNil(t, g)
		r, err := g.Rings()
		require.NoError(t, err)
		assert.Len(t, r, 1)
	})

	t.Run("splits glued positions", func(t *testing.T) {
		g := NormalizeZone(polygon(`[[[0,0,1,0],[1,1,0,0]]]`))
		require.NotNil(t, g)
		r, _ := g.Rings()
		assert.Equal(t, [][][2]float64{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, r)
	})

	t.Run("nothing usable", func(t *testing.T) {
		assert.Nil(t, NormalizeZone(polygon(`[[],[]]`)))
		assert.Nil(t, NormalizeZone(nil))
	})

	t.Run("multipolygon per polygon", func(t *testing.T) {
		in := &models.Geometry{
			Type:        models.GeometryMultiPolygon,
			Coordinates: json.RawMessage(`[[[[0,0],[1,0],[1,1],[0,0]]],[[]]]`),
		}
		g := NormalizeZone(in)
		require.NotNil(t, g)
		p, err := g.Polygons()
		require.NoError(t, err)
		assert.Len(t, p, 1)
	})
}
