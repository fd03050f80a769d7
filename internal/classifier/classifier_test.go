package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wisefido-sleepstage/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleTable() *models.FeatureTable {
	return &models.FeatureTable{
		Columns: models.TableColumns,
		Rows: [][]float64{
			{0, 5, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			{0, 0, 0, 0, 10, 0, 0, 0, 0, 0, 0, 0},
		},
	}
}

func testModel() *LinearModel {
	return &LinearModel{Classes: []ClassWeights{
		{Label: 0, Coefficients: map[string]float64{models.FeatureCount: 1}},
		{Label: 1, Intercept: 0.5},
		{Label: 2, Coefficients: map[string]float64{models.FeatureTime: 0.1, "unknown": 100}},
	}}
}

func TestLinearClassifier_Predict(t *testing.T) {
	c, err := NewLinearClassifier(testModel(), zap.NewNop())
	require.NoError(t, err)

	labels, err := c.Predict(context.Background(), sampleTable())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, labels)
}

func TestLinearClassifier_EmptyTable(t *testing.T) {
	c, err := NewLinearClassifier(testModel(), zap.NewNop())
	require.NoError(t, err)

	labels, err := c.Predict(context.Background(), &models.FeatureTable{Columns: models.TableColumns})
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestNewLinearClassifier_NoClasses(t *testing.T) {
	_, err := NewLinearClassifier(&LinearModel{}, zap.NewNop())
	assert.Error(t, err)
}

func TestLoadLinearModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	data, err := json.Marshal(testModel())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	c, err := LoadLinearModel(path, zap.NewNop())
	require.NoError(t, err)
	labels, err := c.Predict(context.Background(), sampleTable())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, labels)

	_, err = LoadLinearModel(filepath.Join(dir, "missing.json"), zap.NewNop())
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	_, err = LoadLinearModel(path, zap.NewNop())
	assert.Error(t, err)
}

func TestBundledModelLoads(t *testing.T) {
	c, err := LoadLinearModel(filepath.Join("..", "..", "models", "sleep_stage_model.json"), zap.NewNop())
	require.NoError(t, err)
	labels, err := c.Predict(context.Background(), sampleTable())
	require.NoError(t, err)
	assert.Len(t, labels, 3)
}

func TestRemoteClassifier_Predict(t *testing.T) {
	var got PredictRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(PredictResponse{Labels: []int{2, 2, 1}})
	}))
	defer server.Close()

	c := NewRemoteClassifier(server.URL, 5*time.Second, zap.NewNop())
	labels, err := c.Predict(context.Background(), sampleTable())
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, labels)
	assert.Equal(t, models.TableColumns, got.Columns)
	assert.Len(t, got.Rows, 3)
}

func TestRemoteClassifier_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(PredictResponse{Error: "model not loaded"})
	}))
	defer server.Close()

	c := NewRemoteClassifier(server.URL, 5*time.Second, zap.NewNop())
	_, err := c.Predict(context.Background(), sampleTable())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestRemoteClassifier_EmptyTableSkipsCall(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	c := NewRemoteClassifier(server.URL, time.Second, zap.NewNop())
	labels, err := c.Predict(context.Background(), &models.FeatureTable{})
	require.NoError(t, err)
	assert.Empty(t, labels)
	assert.False(t, called)
}

func TestNew(t *testing.T) {
	c, err := New(Options{Mode: ModeRemote, URL: "http://localhost:1", Timeout: time.Second}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &RemoteClassifier{}, c)

	_, err = New(Options{Mode: "svm"}, zap.NewNop())
	assert.Error(t, err)
}
