package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/food-api/internal/history"
	"github.com/Brownie44l1/food-api/internal/model"
	"github.com/Brownie44l1/food-api/internal/nutrition"
	"github.com/Brownie44l1/food-api/internal/training"
)

type fakeClassifier struct {
	pred    *model.Prediction
	err     error
	panic   string
	reloads int
}

func (f *fakeClassifier) Predict(img image.Image) (*model.Prediction, error) {
	if f.panic != "" {
		panic(f.panic)
	}
	return f.pred, f.err
}

func (f *fakeClassifier) Reload() error {
	f.reloads++
	return nil
}

type fakeBuilder struct {
	db    map[string]nutrition.Record
	calls int
}

func (f *fakeBuilder) BuildEnriched(ctx context.Context) (map[string]nutrition.Record, error) {
	f.calls++
	return f.db, nil
}

type fakePipeline struct {
	report  *training.Report
	err     error
	opts    training.Options
	dataURL string
}

func (f *fakePipeline) Run(ctx context.Context, opts training.Options) (*training.Report, error) {
	f.opts = opts
	return f.report, f.err
}

func (f *fakePipeline) PrepareDataset(ctx context.Context, datasetURL string) (*training.DatasetReport, error) {
	f.dataURL = datasetURL
	return &training.DatasetReport{DatasetURL: datasetURL, Downloaded: true}, f.err
}

type fakeHistory struct {
	entries []*history.Entry
	limit   int
}

func (f *fakeHistory) Record(ctx context.Context, e *history.Entry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeHistory) Recent(ctx context.Context, limit int) ([]*history.Entry, error) {
	f.limit = limit
	return f.entries, nil
}

type fixture struct {
	classifier *fakeClassifier
	builder    *fakeBuilder
	pipeline   *fakePipeline
	history    *fakeHistory
	store      *nutrition.Store
	routes     http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		classifier: &fakeClassifier{pred: &model.Prediction{Label: "pizza", Confidence: 0.9}},
		builder:    &fakeBuilder{},
		pipeline:   &fakePipeline{report: &training.Report{Classes: 3}},
		history:    &fakeHistory{},
		store:      nutrition.NewStore(filepath.Join(t.TempDir(), "food_nutrients_db.json")),
	}
	h := NewHandler(f.classifier, f.store, f.builder, f.pipeline, f.history)
	f.routes = h.Routes()
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.routes.ServeHTTP(rec, req)
	return rec
}

func pngBase64(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func classifyBody(image string) string {
	b, _ := json.Marshal(map[string]string{"image": image})
	return string(b)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestClassify_KnownLabel(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save(context.Background(), nutrition.BuildSeed()))

	rec := f.do(t, http.MethodPost, "/classify", classifyBody(pngBase64(t)))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[ClassificationResponse](t, rec)
	assert.Equal(t, "pizza", resp.Food)
	assert.InDelta(t, 0.9, resp.Confidence, 1e-6)
	assert.Equal(t, 266.0, resp.Calories)
	assert.Equal(t, 60, resp.GlycemicIndex)
	assert.Equal(t, "1 slice (107g)", resp.PortionSize)
	assert.Contains(t, resp.Nutrients, "carbohydrates")

	require.Len(t, f.history.entries, 1)
	assert.Equal(t, "pizza", f.history.entries[0].Food)
	assert.Equal(t, 60, f.history.entries[0].GlycemicIndex)
}

func TestClassify_LabelWithoutRecordUsesDefaults(t *testing.T) {
	f := newFixture(t)
	f.classifier.pred = &model.Prediction{Label: "ramen", Confidence: 0.5}

	rec := f.do(t, http.MethodPost, "/classify", classifyBody("data:image/png;base64,"+pngBase64(t)))
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	for _, key := range []string{"food", "confidence", "calories", "nutrients", "description", "glycemic_index", "portion_size", "diabetes_impact"} {
		assert.Contains(t, raw, key)
	}

	resp := decode[ClassificationResponse](t, rec)
	assert.Equal(t, "ramen", resp.Food)
	assert.Zero(t, resp.Calories)
	assert.Empty(t, resp.Nutrients)
	assert.Equal(t, "This appears to be ramen", resp.Description)
	assert.Zero(t, resp.GlycemicIndex)
	assert.Equal(t, nutrition.UnknownPortion, resp.PortionSize)
	assert.Equal(t, nutrition.UnknownImpact, resp.DiabetesImpact)
}

func TestClassify_MissingImage(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{`{}`, `{"image": ""}`, `not json`} {
		rec := f.do(t, http.MethodPost, "/classify", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	rec := f.do(t, http.MethodPost, "/classify", `{}`)
	assert.Equal(t, "No image provided", decode[errorResponse](t, rec).Error)
}

func TestClassify_UndecodableImageIsUnrecognized(t *testing.T) {
	f := newFixture(t)

	for _, img := range []string{"%%%not-base64%%%", base64.StdEncoding.EncodeToString([]byte("plain text, not an image"))} {
		rec := f.do(t, http.MethodPost, "/classify", classifyBody(img))
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[ClassificationResponse](t, rec)
		assert.Equal(t, UnrecognizedLabel, resp.Food)
		assert.Zero(t, resp.Confidence)
		assert.Equal(t, nutrition.UnknownPortion, resp.PortionSize)
	}
	assert.Empty(t, f.history.entries)
}

func TestClassify_ModelUnavailable(t *testing.T) {
	f := newFixture(t)
	f.classifier.err = fmt.Errorf("load model: %w", model.ErrUnavailable)

	rec := f.do(t, http.MethodPost, "/classify", classifyBody(pngBase64(t)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "model not available; run training first (POST /train)", decode[errorResponse](t, rec).Error)
}

func TestClassify_PanicBecomes500(t *testing.T) {
	f := newFixture(t)
	f.classifier.panic = "tensor shape mismatch"

	rec := f.do(t, http.MethodPost, "/classify", classifyBody(pngBase64(t)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "tensor shape mismatch", decode[errorResponse](t, rec).Error)
}

func TestClassify_MethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/classify", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodOptions, "/classify", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCreateNutrientsDB_SeedByDefault(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/create_nutrients_db", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[CreateNutrientsDBResponse](t, rec)
	assert.Equal(t, 3, resp.FoodItemsCount)
	assert.Equal(t, "Sample nutrients database created successfully", resp.Message)
	assert.Equal(t, []string{"apple_pie", "pizza", "salad"}, resp.SampleItems)
	assert.Zero(t, f.builder.calls)

	db, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, db, 3)
}

func TestCreateNutrientsDB_Enriched(t *testing.T) {
	f := newFixture(t)
	f.builder.db = map[string]nutrition.Record{}
	for _, label := range nutrition.Food101Labels {
		f.builder.db[label] = nutrition.Lookup(nil, label)
	}

	rec := f.do(t, http.MethodPost, "/create_nutrients_db", `{"use_full_db": true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[CreateNutrientsDBResponse](t, rec)
	assert.Equal(t, len(nutrition.Food101Labels), resp.FoodItemsCount)
	assert.Equal(t, "Enhanced nutrients database created successfully", resp.Message)
	assert.Len(t, resp.SampleItems, 5)
	assert.Equal(t, 1, f.builder.calls)
}

func TestTrain_DefaultsAndReload(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/train", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, training.DefaultEpochs, f.pipeline.opts.Epochs)
	assert.Equal(t, training.DefaultFineTuneEpochs, f.pipeline.opts.FineTuneEpochs)
	assert.Equal(t, 1, f.classifier.reloads)

	rec = f.do(t, http.MethodPost, "/train", `{"epochs": 2, "fine_tune_epochs": 0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, f.pipeline.opts.Epochs)
	assert.Equal(t, 0, f.pipeline.opts.FineTuneEpochs)
}

func TestTrain_SkippedDoesNotReload(t *testing.T) {
	f := newFixture(t)
	f.pipeline.report = &training.Report{Skipped: true}

	rec := f.do(t, http.MethodPost, "/train", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[training.Report](t, rec).Skipped)
	assert.Zero(t, f.classifier.reloads)
}

func TestTrain_Errors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/train", `{"epochs": 0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.pipeline.err = fmt.Errorf("prepare: %w", training.ErrDatasetMissing)
	rec = f.do(t, http.MethodPost, "/train", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.pipeline.err = fmt.Errorf("trainer unreachable")
	rec = f.do(t, http.MethodPost, "/train", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "trainer unreachable", decode[errorResponse](t, rec).Error)
	assert.Zero(t, f.classifier.reloads)
}

func TestPrepareDataset_PassesURL(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/prepare_dataset", `{"dataset_url": "http://mirror.local/food-101.tar.gz"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://mirror.local/food-101.tar.gz", f.pipeline.dataURL)
	assert.True(t, decode[training.DatasetReport](t, rec).Downloaded)
}

func TestHistory_Limit(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultHistoryLimit, f.history.limit)

	rec = f.do(t, http.MethodGet, "/history?limit=1000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxHistoryLimit, f.history.limit)

	rec = f.do(t, http.MethodGet, "/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
}

func TestMetricPath(t *testing.T) {
	assert.Equal(t, "/classify", metricPath("/classify"))
	assert.Equal(t, "/metrics", metricPath("/metrics"))
	assert.Equal(t, otherPath, metricPath("/wp-login.php"))
	assert.Equal(t, otherPath, metricPath("/classify/extra"))

	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/random-scan-path", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
