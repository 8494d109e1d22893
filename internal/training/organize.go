package training

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// PlaceholderClasses are created when no extracted dataset is available, so
// the directory layout exists even without images.
var PlaceholderClasses = []string{"pizza", "salad", "apple_pie", "sandwich", "sushi"}

const (
	DefaultTrainPerClass      = 500
	DefaultValidationPerClass = 100
)

// OrganizeResult summarizes a reorganized dataset.
type OrganizeResult struct {
	Classes          []string `json:"classes"`
	TrainImages      int      `json:"train_images"`
	ValidationImages int      `json:"validation_images"`
	Placeholder      bool     `json:"placeholder"`
}

// organize links images from the extracted Food-101 layout at rawRoot into
// <datasetDir>/train/<class> and <datasetDir>/validation/<class>, using the
// published meta/train.json and meta/test.json splits. Existing links are
// left alone, which makes the step safe to re-run.
func (p *Pipeline) organize(ctx context.Context, rawRoot string) (*OrganizeResult, error) {
	trainDir, validationDir := p.TrainDir(), p.ValidationDir()
	for _, dir := range []string{trainDir, validationDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if _, err := os.Stat(rawRoot); errors.Is(err, fs.ErrNotExist) {
		slog.Warn("dataset not found, creating placeholder categories", "path", rawRoot)
		for _, class := range PlaceholderClasses {
			for _, dir := range []string{trainDir, validationDir} {
				if err := os.MkdirAll(filepath.Join(dir, class), 0755); err != nil {
					return nil, fmt.Errorf("failed to create placeholder %s: %w", class, err)
				}
			}
		}
		return &OrganizeResult{Classes: append([]string(nil), PlaceholderClasses...), Placeholder: true}, nil
	}

	classes, err := readClasses(filepath.Join(rawRoot, "meta", "classes.txt"))
	if err != nil {
		return nil, err
	}
	trainSplit, err := readSplit(filepath.Join(rawRoot, "meta", "train.json"))
	if err != nil {
		return nil, err
	}
	testSplit, err := readSplit(filepath.Join(rawRoot, "meta", "test.json"))
	if err != nil {
		return nil, err
	}

	imagesDir, err := filepath.Abs(filepath.Join(rawRoot, "images"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve images directory: %w", err)
	}

	var trainCount, validationCount atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Workers)
	for _, class := range classes {
		class := class
		g.Go(func() error {
			n, err := linkImages(gctx, imagesDir, filepath.Join(trainDir, class), class, trainSplit[class], p.TrainPerClass)
			if err != nil {
				return err
			}
			trainCount.Add(int64(n))

			n, err = linkImages(gctx, imagesDir, filepath.Join(validationDir, class), class, testSplit[class], p.ValidationPerClass)
			if err != nil {
				return err
			}
			validationCount.Add(int64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &OrganizeResult{
		Classes:          classes,
		TrainImages:      int(trainCount.Load()),
		ValidationImages: int(validationCount.Load()),
	}
	slog.Info("dataset organized", "classes", len(classes), "train_images", res.TrainImages, "validation_images", res.ValidationImages)
	return res, nil
}

// linkImages symlinks at most limit images of class into dstDir and returns
// how many links are in place for that slice of the split.
func linkImages(ctx context.Context, imagesDir, dstDir, class string, entries []string, limit int) (int, error) {
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dstDir, err)
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	linked := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return linked, err
		}

		id := path.Base(entry)
		src := filepath.Join(imagesDir, class, id+".jpg")
		dst := filepath.Join(dstDir, id+".jpg")

		if _, err := os.Stat(src); err != nil {
			continue
		}
		if _, err := os.Lstat(dst); err == nil {
			linked++
			continue
		}
		if err := os.Symlink(src, dst); err != nil {
			return linked, fmt.Errorf("failed to link %s: %w", dst, err)
		}
		linked++
	}
	return linked, nil
}

func readClasses(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open class list: %w", err)
	}
	defer f.Close()

	var classes []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			classes = append(classes, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read class list: %w", err)
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("class list %s is empty", path)
	}
	return classes, nil
}

// readSplit parses a split manifest: class -> ["class/image_id", ...].
func readSplit(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read split manifest: %w", err)
	}
	split := make(map[string][]string)
	if err := json.Unmarshal(data, &split); err != nil {
		return nil, fmt.Errorf("failed to parse split manifest %s: %w", path, err)
	}
	return split, nil
}

// DiscoverClasses lists the class subdirectories of dir in sorted order,
// which is the order the trainer assigns output positions.
func DiscoverClasses(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	var classes []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			classes = append(classes, e.Name())
		}
	}
	sort.Strings(classes)
	return classes, nil
}
