package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ArtifactKind is what a generated file holds.
type ArtifactKind string

const (
	ArtifactImage   ArtifactKind = "image"
	ArtifactModel3D ArtifactKind = "model_3d"
)

// Artifact is the outcome of a generation stage. On success Outcome.Value is
// the path of a non-empty file on disk.
type Artifact struct {
	Kind    ArtifactKind
	Outcome StageOutcome
}

// Path returns the file path or the status marker.
func (a Artifact) Path() string { return a.Outcome.Path() }

// Exists reports whether the artifact succeeded and its file is present.
func (a Artifact) Exists() bool {
	if !a.Outcome.IsSuccess() || a.Outcome.Value == "" {
		return false
	}
	info, err := os.Stat(a.Outcome.Value)
	return err == nil && info.Mode().IsRegular()
}

// timestampLayout gives second resolution file names.
const timestampLayout = "20060102_150405"

// maxNameAttempts bounds the numeric suffixes tried for one timestamped name.
const maxNameAttempts = 1000

func imageFileName(now time.Time) string {
	return "generated_image_" + now.Format(timestampLayout) + ".png"
}

// modelFileName combines the timestamp with the capability's filename hint.
// Only the base name of the hint is used.
func modelFileName(now time.Time, hint, fallback string) string {
	return "generated_model_" + now.Format(timestampLayout) + "_" + sanitizeHint(hint, fallback)
}

func sanitizeHint(hint, fallback string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(hint), "\\", "/"))
	switch base {
	case "", ".", "..", "/":
		return fallback
	}
	return base
}

// writeArtifact creates dir if needed and writes data to a file named name
// that did not exist before. When name is taken a numeric suffix is added
// before the extension: generated_image_X.png, generated_image_X_1.png, ...
func writeArtifact(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i < maxNameAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = stem + "_" + strconv.Itoa(i) + ext
		}
		path := filepath.Join(dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", candidate, err)
		}

		_, werr := f.Write(data)
		cerr := f.Close()
		if err := errors.Join(werr, cerr); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("write %s: %w", candidate, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free file name for %s after %d attempts", name, maxNameAttempts)
}
