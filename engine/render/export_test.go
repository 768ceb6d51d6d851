package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealgraph/engine/viewport"
	pkgerrors "dealgraph/pkg/errors"
)

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatSVG, f)

	f, err = ParseFormat("png")
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, f)

	_, err = ParseFormat("pdf")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestExport_SVG(t *testing.T) {
	snap := sceneSnapshot(t)
	vp := viewport.New(800, 600, 0.2, 4)
	scene := BuildScene(snap, vp, Options{ShowPredictions: true, ShowLabels: true, ShowLegend: true})

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, scene, FormatSVG))

	out := buf.String()
	assert.Contains(t, out, "<svg")
	assert.Contains(t, out, "stroke-dasharray", "predicted edges render dashed")
	assert.Equal(t, "image/svg+xml", FormatSVG.ContentType())
}

func TestExport_PNG(t *testing.T) {
	snap := sceneSnapshot(t)
	vp := viewport.New(800, 600, 0.2, 4)
	scene := BuildScene(snap, vp, Options{ShowPredictions: true})

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, scene, FormatPNG))

	// PNG magic bytes
	require.Greater(t, buf.Len(), 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, buf.Bytes()[:4])
	assert.Equal(t, "image/png", FormatPNG.ContentType())
}

func TestExport_RejectsEmptyScene(t *testing.T) {
	err := Export(&bytes.Buffer{}, &Scene{}, FormatSVG)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}
