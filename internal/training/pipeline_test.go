package training

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/food-api/internal/model"
)

type fakeTrainer struct {
	calls atomic.Int32
	plan  *Plan
	err   error
}

func (f *fakeTrainer) Train(ctx context.Context, plan *Plan) (*Result, error) {
	f.calls.Add(1)
	f.plan = plan
	if f.err != nil {
		return nil, f.err
	}
	return &Result{ModelURL: "models/food.onnx", EpochsRun: plan.Phases[0].Epochs, ValidationAccuracy: 0.8}, nil
}

func (f *fakeTrainer) FetchModel(ctx context.Context, res *Result) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("onnx-bytes")), nil
}

// food101Archive builds a miniature Food-101 tar.gz with the given number
// of train and test images per class.
func food101Archive(t *testing.T, classes []string, trainN, testN int) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	add := func(name string, body []byte) {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(body)), Typeflag: tar.TypeReg}))
		_, err := tw.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "food-101/", Mode: 0755, Typeflag: tar.TypeDir}))

	train := map[string][]string{}
	test := map[string][]string{}
	for _, c := range classes {
		for i := 0; i < trainN+testN; i++ {
			id := fmt.Sprintf("%d", 1000+i)
			add(fmt.Sprintf("food-101/images/%s/%s.jpg", c, id), []byte("jpg"))
			if i < trainN {
				train[c] = append(train[c], c+"/"+id)
			} else {
				test[c] = append(test[c], c+"/"+id)
			}
		}
	}
	trainJSON, _ := json.Marshal(train)
	testJSON, _ := json.Marshal(test)
	add("food-101/meta/classes.txt", []byte(strings.Join(classes, "\n")+"\n"))
	add("food-101/meta/train.json", trainJSON)
	add("food-101/meta/test.json", testJSON)
	add("../escape.txt", []byte("nope"))

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func newTestPipeline(t *testing.T, trainer Trainer) (*Pipeline, string) {
	t.Helper()
	dir := t.TempDir()
	p := NewPipeline(filepath.Join(dir, "food_dataset"), "",
		filepath.Join(dir, "models", "food.onnx"), filepath.Join(dir, "models", "class_indices.json"), trainer)
	p.TrainPerClass = 3
	p.ValidationPerClass = 1
	p.RetryBase = time.Millisecond
	p.MaxRetries = 2
	return p, dir
}

func TestRun_EndToEndThenIdempotent(t *testing.T) {
	archive := food101Archive(t, []string{"sushi", "pizza"}, 5, 2)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(archive)
	}))
	defer srv.Close()

	trainer := &fakeTrainer{}
	p, dir := newTestPipeline(t, trainer)
	opts := Options{DatasetURL: srv.URL + "/food-101.tar.gz", Epochs: 2, FineTuneEpochs: 1}

	report, err := p.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, 2, report.Classes)
	assert.True(t, report.Dataset.Downloaded)
	assert.Equal(t, 6, report.Dataset.TrainImages)
	assert.Equal(t, 2, report.Dataset.ValidationImages)

	links, err := os.ReadDir(filepath.Join(p.TrainDir(), "pizza"))
	require.NoError(t, err)
	assert.Len(t, links, 3)

	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "escape.txt"))
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(p.ModelPath)
	require.NoError(t, err)
	assert.Equal(t, "onnx-bytes", string(data))

	meta, err := model.LoadMetadata(p.MetadataPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"pizza", "sushi"}, meta.Classes)

	require.NotNil(t, trainer.plan)
	assert.Equal(t, 2, trainer.plan.Phases[0].Epochs)
	assert.Equal(t, 1, trainer.plan.Phases[1].Epochs)
	assert.Equal(t, 4, trainer.plan.Phases[1].TrainableBackboneLayers)
	assert.True(t, filepath.IsAbs(trainer.plan.TrainDir))

	report, err = p.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Equal(t, int32(1), trainer.calls.Load())
	assert.Equal(t, int32(1), hits.Load())
}

func TestPrepareDataset_ReusesLocalArchive(t *testing.T) {
	p, dir := newTestPipeline(t, &fakeTrainer{})
	archive := food101Archive(t, []string{"ramen"}, 2, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "food-101.tar.gz"), archive, 0644))

	report, err := p.PrepareDataset(context.Background(), "http://127.0.0.1:1/food-101.tar.gz")
	require.NoError(t, err)
	assert.False(t, report.Downloaded)
	assert.True(t, report.Extracted)
	assert.Equal(t, []string{"ramen"}, report.Classes)

	report, err = p.PrepareDataset(context.Background(), "http://127.0.0.1:1/food-101.tar.gz")
	require.NoError(t, err)
	assert.False(t, report.Extracted)
	assert.Equal(t, 2, report.TrainImages)
}

func TestRun_PlaceholderDatasetAborts(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "other/", Mode: 0755, Typeflag: tar.TypeDir}))
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	trainer := &fakeTrainer{}
	p, _ := newTestPipeline(t, trainer)

	_, err := p.Run(context.Background(), Options{DatasetURL: srv.URL + "/food-101.tar.gz"})
	assert.ErrorIs(t, err, ErrDatasetMissing)
	assert.Zero(t, trainer.calls.Load())

	classes, err := DiscoverClasses(p.TrainDir())
	require.NoError(t, err)
	assert.Len(t, classes, len(PlaceholderClasses))
}

func TestDownload_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("archive"))
	}))
	defer srv.Close()

	p, dir := newTestPipeline(t, &fakeTrainer{})
	dest := filepath.Join(dir, "a.tar.gz")

	downloaded, err := p.download(context.Background(), srv.URL+"/a.tar.gz", dest)
	require.NoError(t, err)
	assert.True(t, downloaded)
	assert.Equal(t, int32(2), hits.Load())
}

func TestDownload_DoesNotRetryNotFound(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p, dir := newTestPipeline(t, &fakeTrainer{})
	_, err := p.download(context.Background(), srv.URL+"/a.tar.gz", filepath.Join(dir, "a.tar.gz"))
	assert.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRun_TrainerFailure(t *testing.T) {
	p, dir := newTestPipeline(t, &fakeTrainer{err: fmt.Errorf("gpu on fire")})
	archive := food101Archive(t, []string{"pho", "ramen"}, 2, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "food-101.tar.gz"), archive, 0644))

	_, err := p.Run(context.Background(), Options{DatasetURL: "http://127.0.0.1:1/food-101.tar.gz"})
	assert.ErrorContains(t, err, "gpu on fire")
	assert.False(t, model.ArtifactsExist(p.ModelPath, p.MetadataPath))
}

func TestDatasetRootName(t *testing.T) {
	assert.Equal(t, "food-101", datasetRootName("food-101.tar.gz"))
	assert.Equal(t, "x", datasetRootName("x.tgz"))
	assert.Equal(t, "x.zip", datasetRootName("x.zip"))

	_, err := archiveName("http://example.com/")
	assert.Error(t, err)
}

func TestPlanValidate(t *testing.T) {
	assert.NoError(t, NewPlan([]string{"a", "b"}, "t", "v", 1, 0).Validate())
	assert.Error(t, NewPlan([]string{"a"}, "t", "v", 1, 1).Validate())
	assert.Error(t, NewPlan([]string{"a", "b"}, "t", "v", 0, 1).Validate())
}

func TestWriteAtomic_Permissions(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "food_classification_model.onnx")
	require.NoError(t, writeAtomic(dest, strings.NewReader("onnx-bytes")))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "onnx-bytes", string(data))
}
