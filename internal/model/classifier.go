package model

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"
)

// Classifier owns the model artifacts on disk and loads them lazily. While
// either artifact is missing, or fails to load, Predict returns
// ErrUnavailable instead of failing hard.
type Classifier struct {
	modelPath    string
	metadataPath string
	libPath      string

	mu     sync.RWMutex
	server *Server
}

func NewClassifier(modelPath, metadataPath, libPath string) *Classifier {
	return &Classifier{
		modelPath:    modelPath,
		metadataPath: metadataPath,
		libPath:      libPath,
	}
}

// ArtifactsExist reports whether both the model and its label index exist.
func ArtifactsExist(modelPath, metadataPath string) bool {
	return fileExists(modelPath) && fileExists(metadataPath)
}

func (c *Classifier) Available() bool {
	c.mu.RLock()
	loaded := c.server != nil
	c.mu.RUnlock()
	return loaded || ArtifactsExist(c.modelPath, c.metadataPath)
}

func (c *Classifier) Predict(img image.Image) (*Prediction, error) {
	srv, err := c.get()
	if err != nil {
		return nil, err
	}
	return srv.Predict(img)
}

// Reload loads the artifacts again, e.g. after training wrote a new model.
// The current session is replaced only when the new one loads; a request
// still holding the old session gets ErrUnavailable.
func (c *Classifier) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	srv, err := c.load()
	if err != nil {
		return err
	}
	if c.server != nil {
		c.server.Close()
	}
	c.server = srv
	return nil
}

func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.server != nil {
		c.server.Close()
		c.server = nil
	}
}

func (c *Classifier) get() (*Server, error) {
	c.mu.RLock()
	srv := c.server
	c.mu.RUnlock()
	if srv != nil {
		return srv, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.server != nil {
		return c.server, nil
	}
	srv, err := c.load()
	if err != nil {
		return nil, err
	}
	c.server = srv
	return srv, nil
}

func (c *Classifier) load() (*Server, error) {
	if !ArtifactsExist(c.modelPath, c.metadataPath) {
		return nil, fmt.Errorf("%w: %s or %s is missing", ErrUnavailable, c.modelPath, c.metadataPath)
	}

	meta, err := LoadMetadata(c.metadataPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	srv, err := NewServer(c.modelPath, meta, c.libPath)
	if err != nil {
		slog.Error("failed to load model", "path", c.modelPath, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	slog.Info("model loaded", "path", c.modelPath, "classes", len(meta.Classes))
	return srv, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
