// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

package model

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// SerializationError reports a failure to persist or load an artifact
// bundle. The on-disk state is guaranteed untouched when it is returned
// from Save: either the complete new bundle replaces the old one, or
// the previous bundle survives intact.
type SerializationError struct {
	Path string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("model: artifact serialization failed for %s: %v", e.Path, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// Bundle is the versioned training artifact: the fitted forest, the
// encoder that defines its feature schema, and the tuned decision
// threshold, persisted together as one unit. Pairing them in a single
// artifact makes a threshold/model mismatch structurally impossible.
type Bundle struct {
	// ID is a unique version identifier assigned at training time.
	ID string

	// CreatedAt records when the training run completed.
	CreatedAt time.Time

	// Threshold is the tuned decision threshold in [0, 1]:
	// predicted_churn = 1 iff churn_probability >= Threshold.
	Threshold float64

	// ValidationAUC and ValidationF1 are diagnostics from the training
	// run's validation partition.
	ValidationAUC float64
	ValidationF1  float64

	Encoder *Encoder
	Forest  *Forest
}

// NewBundle assembles a bundle with a fresh version id.
func NewBundle(forest *Forest, encoder *Encoder, threshold float64) *Bundle {
	return &Bundle{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Threshold: threshold,
		Encoder:   encoder,
		Forest:    forest,
	}
}

// Save persists the bundle atomically: encode to a temporary file in
// the destination directory, fsync, then rename over the target. A
// failure at any step leaves the previous artifact (if any) in place.
func (b *Bundle) Save(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return &SerializationError{Path: path, Err: err}
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return &SerializationError{Path: path, Err: err}
	}
	tmpName := tmp.Name()

	if err := gob.NewEncoder(tmp).Encode(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &SerializationError{Path: path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &SerializationError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &SerializationError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return &SerializationError{Path: path, Err: err}
	}

	return nil
}

// Load reads a bundle previously written by Save.
func Load(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &SerializationError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	var b Bundle
	if err := gob.NewDecoder(f).Decode(&b); err != nil {
		return nil, &SerializationError{Path: path, Err: err}
	}
	if b.Forest == nil || b.Encoder == nil {
		return nil, &SerializationError{Path: path, Err: fmt.Errorf("bundle is incomplete")}
	}
	if b.Threshold < 0 || b.Threshold > 1 {
		return nil, &SerializationError{Path: path, Err: fmt.Errorf("threshold %f out of [0,1]", b.Threshold)}
	}

	return &b, nil
}

// Metadata is the human-readable sidecar describing a bundle. It is
// informational only; Load never consults it.
type Metadata struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	Threshold      float64   `json:"threshold"`
	ValidationAUC  float64   `json:"validation_auc"`
	ValidationF1   float64   `json:"validation_f1"`
	FeatureColumns []string  `json:"feature_columns"`
}

// WriteMetadata writes the JSON sidecar next to the bundle, with the
// same write-then-rename discipline.
func (b *Bundle) WriteMetadata(path string) error {
	meta := Metadata{
		ID:             b.ID,
		CreatedAt:      b.CreatedAt,
		Threshold:      b.Threshold,
		ValidationAUC:  b.ValidationAUC,
		ValidationF1:   b.ValidationF1,
		FeatureColumns: b.Encoder.ColumnNames(),
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return &SerializationError{Path: path, Err: err}
	}

	tmpName := path + ".tmp"
	if err := os.WriteFile(tmpName, data, 0o640); err != nil {
		return &SerializationError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return &SerializationError{Path: path, Err: err}
	}

	return nil
}
