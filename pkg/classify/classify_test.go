package classify

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoaily/gridinsight/pkg/grid"
)

var identity = ScalerFunc(func(x float64) float64 { return x })

func TestCurrentClass_TieBreaksToSmallest(t *testing.T) {
	class, err := CurrentClass([]float64{1, 1, 2, 2}, identity)
	require.NoError(t, err)
	assert.Equal(t, 1, class)
}

func TestCurrentClass_AlternatingWindow(t *testing.T) {
	values := make([]float64, 0, WindowSize)
	for i := 0; i < WindowSize/2; i++ {
		values = append(values, 100, 500)
	}
	labeling := ScalerFunc(func(x float64) float64 {
		if x < 300 {
			return 1
		}
		return 4
	})

	class, err := CurrentClass(values, labeling)
	require.NoError(t, err)
	assert.Equal(t, 1, class)
}

func TestCurrentClass_RoundsHalfToEven(t *testing.T) {
	// 2.5 rounds to 2, 3.5 rounds to 4.
	class, err := CurrentClass([]float64{2.5, 2.5, 3.5}, identity)
	require.NoError(t, err)
	assert.Equal(t, 2, class)

	class, err = CurrentClass([]float64{3.5, 3.5, 2.5}, identity)
	require.NoError(t, err)
	assert.Equal(t, 4, class)
}

func TestCurrentClass_Clips(t *testing.T) {
	class, err := CurrentClass([]float64{-3, -1, 12}, identity)
	require.NoError(t, err)
	assert.Equal(t, 0, class)

	class, err = CurrentClass([]float64{9, 7, 0}, identity)
	require.NoError(t, err)
	assert.Equal(t, 5, class)
}

func TestCurrentClass_MinMaxScaler(t *testing.T) {
	// Maps 0 -> 0 and 500 -> 5.
	s := MinMaxScaler{Scale: 0.01, Min: 0}
	class, err := CurrentClass([]float64{140, 160, 180, 420}, s)
	require.NoError(t, err)
	assert.Equal(t, 2, class)
}

func TestCurrentClass_Empty(t *testing.T) {
	_, err := CurrentClass(nil, identity)
	assert.True(t, errors.Is(err, grid.ErrInsufficientData))
}

func TestPredict(t *testing.T) {
	values := make([]float64, WindowSize)
	for i := range values {
		values[i] = float64(i)
	}

	var seen Window
	stub := ClassifierFunc(func(_ context.Context, w Window) (int, error) {
		seen = w
		return 9, nil
	})

	class, err := Predict(context.Background(), values, StandardScaler{Mean: 10, Std: 2}, stub)
	require.NoError(t, err)
	assert.Equal(t, 5, class, "clipped")
	assert.Equal(t, -5.0, seen[0])
	assert.Equal(t, 6.5, seen[WindowSize-1], "oldest first")
}

func TestPredict_WrongLength(t *testing.T) {
	_, err := Predict(context.Background(), make([]float64, 10), identity, ClassifierFunc(func(context.Context, Window) (int, error) {
		t.Fatal("classifier must not run")
		return 0, nil
	}))
	var ide *grid.InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, 10, ide.Have)
}

func TestPredict_ClassifierError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Predict(context.Background(), make([]float64, WindowSize), identity, ClassifierFunc(func(context.Context, Window) (int, error) {
		return 0, boom
	}))
	assert.ErrorIs(t, err, boom)
}

func TestScalerSpec_Build(t *testing.T) {
	s, err := ScalerSpec{Kind: "minmax", Scale: 2, Min: 1}.Build()
	require.NoError(t, err)
	assert.Equal(t, 7.0, s.Transform(3))

	s, err = ScalerSpec{Kind: "standard", Mean: 4, Std: 0}.Build()
	require.NoError(t, err)
	assert.Equal(t, -1.0, s.Transform(3))

	for _, bad := range []ScalerSpec{{}, {Kind: "robust"}, {Kind: "minmax"}, {Kind: "standard", Std: -1}} {
		_, err := bad.Build()
		assert.Error(t, err, "%+v", bad)
	}
}

// signNetwork outputs class 4 for a positive window sum and class 1 for a
// negative one.
func signNetwork() *Network {
	plus := make([]float64, WindowSize)
	minus := make([]float64, WindowSize)
	for i := range plus {
		plus[i], minus[i] = 1, -1
	}
	out := make([][]float64, 6)
	for i := range out {
		out[i] = []float64{0, 0}
	}
	out[4] = []float64{1, 0}
	out[1] = []float64{0, 1}

	return &Network{Layers: []Layer{
		{Weights: [][]float64{plus, minus}, Biases: []float64{0, 0}},
		{Weights: out, Biases: make([]float64, 6)},
	}}
}

func TestNetworkClassifier(t *testing.T) {
	nc, err := NewNetworkClassifier(signNetwork())
	require.NoError(t, err)

	var w Window
	for i := range w {
		w[i] = 0.5
	}
	class, err := nc.Classify(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, 4, class)

	for i := range w {
		w[i] = -0.5
	}
	class, err = nc.Classify(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, 1, class)
}

func TestNetworkClassifier_RejectsShapes(t *testing.T) {
	_, err := NewNetworkClassifier(nil)
	assert.Error(t, err)

	bad := signNetwork()
	bad.Layers[1].Weights = bad.Layers[1].Weights[:5]
	bad.Layers[1].Biases = bad.Layers[1].Biases[:5]
	_, err = NewNetworkClassifier(bad)
	assert.Error(t, err, "five outputs")

	bad = signNetwork()
	bad.Layers[0].Weights[0] = bad.Layers[0].Weights[0][:3]
	_, err = NewNetworkClassifier(bad)
	assert.Error(t, err, "short input row")
}

func TestNetworkClassifier_Canceled(t *testing.T) {
	nc, err := NewNetworkClassifier(signNetwork())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = nc.Classify(ctx, Window{})
	assert.ErrorIs(t, err, context.Canceled)
}

func writeArtifact(t *testing.T, dir, metric string, a Artifact) {
	t.Helper()
	data, err := json.Marshal(a)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(ArtifactPath(dir, metric), data, 0o644))
}

func TestLoadModel(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "carbon-intensity", Artifact{
		Metric:   "carbon-intensity",
		Labeling: ScalerSpec{Kind: "minmax", Scale: 0.01},
		Scaler:   ScalerSpec{Kind: "standard", Mean: 250, Std: 100},
		Network:  signNetwork(),
	})

	m, err := LoadModel(ArtifactPath(dir, "carbon-intensity"), "carbon-intensity", nil)
	require.NoError(t, err)
	assert.Equal(t, "carbon-intensity", m.Metric)

	values := make([]float64, WindowSize)
	for i := range values {
		values[i] = 400
	}
	class, err := Predict(context.Background(), values, m.Main, m.Classifier)
	require.NoError(t, err)
	assert.Equal(t, 4, class)
}

func TestLoadModel_Unavailable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))
	writeArtifact(t, dir, "no-network", Artifact{
		Labeling: ScalerSpec{Kind: "minmax", Scale: 1},
		Scaler:   ScalerSpec{Kind: "minmax", Scale: 1},
	})
	writeArtifact(t, dir, "wrong-metric", Artifact{Metric: "other"})

	for _, metric := range []string{"missing", "broken", "no-network", "wrong-metric"} {
		_, err := LoadModel(ArtifactPath(dir, metric), metric, nil)
		require.Error(t, err, metric)
		assert.True(t, errors.Is(err, grid.ErrClassifierUnavailable), metric)
	}
}

func TestLoadModel_RemoteNeedsNoNetwork(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "renewable-percentage", Artifact{
		Labeling: ScalerSpec{Kind: "minmax", Scale: 0.05},
		Scaler:   ScalerSpec{Kind: "minmax", Scale: 0.01},
	})

	remote := ClassifierFunc(func(context.Context, Window) (int, error) { return 3, nil })
	m, err := LoadModel(ArtifactPath(dir, "renewable-percentage"), "renewable-percentage", remote)
	require.NoError(t, err)

	class, err := m.Classifier.Classify(context.Background(), Window{})
	require.NoError(t, err)
	assert.Equal(t, 3, class)
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "carbon-intensity", Artifact{
		Labeling: ScalerSpec{Kind: "minmax", Scale: 0.01},
		Scaler:   ScalerSpec{Kind: "minmax", Scale: 0.01},
		Network:  signNetwork(),
	})

	r := LoadRegistry(dir, []string{"carbon-intensity", "renewable-percentage"}, nil, nil)

	m, err := r.Get("carbon-intensity")
	require.NoError(t, err)
	assert.NotNil(t, m.Classifier)

	_, err = r.Get("renewable-percentage")
	assert.True(t, errors.Is(err, grid.ErrClassifierUnavailable))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = r.Get("unknown")
	var cue *grid.ClassifierUnavailableError
	require.True(t, errors.As(err, &cue))
	assert.Equal(t, "unknown", cue.Metric)
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, 2, Argmax([]float64{0.1, 0.2, 0.6, 0.1}))
	assert.Equal(t, 0, Argmax([]float64{0.5, 0.5}))
	assert.Equal(t, 0, Argmax(nil))
}
