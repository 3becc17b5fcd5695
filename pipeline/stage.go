package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/imagine3d/gateway"
)

// Stage names used for spans, metrics and the response.
const (
	StageExpand  = "expand"
	StageImage   = "image"
	StageModel3D = "model_3d"
)

// Call labels as they appear in markers.
const (
	labelTextToImage = "Text-to-Image"
	labelImageTo3D   = "Image-to-3D"
)

// capabilityCall parameterizes invokeCapability for one generation stage.
type capabilityCall struct {
	label        string
	dataNoun     string // "image" / "model" in "returned no <noun> data."
	capabilityID string
	payload      func() (map[string]any, error)
	fileName     func(res *gateway.Result, now time.Time) string
}

// invokeCapability checks the connection, builds the payload, invokes the
// capability, writes the returned bytes to a fresh file and classifies the
// result. A panic is reported like any other error raised by the call.
func (p *Pipeline) invokeCapability(ctx context.Context, gw gateway.Gateway, caller string, call capabilityCall) (out StageOutcome) {
	logger := p.runLogger(ctx).With(zap.String("capability", call.capabilityID))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic during "+call.label+" generation", zap.Any("panic", r))
			out = failedDuring(call.label, fmt.Errorf("%v", r))
		}
	}()

	if !gw.HasConnection(call.capabilityID) {
		logger.Warn(call.label + " app not configured or connection failed, skipping")
		return Skipped(call.label + " app not available.")
	}

	payload, err := call.payload()
	if err != nil {
		logger.Error("failed to build "+call.label+" payload", zap.Error(err))
		return failedDuring(call.label, err)
	}

	logger.Info("calling " + call.label + " app")
	res, err := gw.Invoke(ctx, call.capabilityID, payload, caller)
	if err != nil {
		logger.Error("error during "+call.label+" generation", zap.Error(err))
		return failedDuring(call.label, err)
	}
	if res == nil {
		logger.Error(call.label + " app returned no output")
		return Failed(call.label + " app returned no output.")
	}
	if len(res.Data) == 0 {
		logger.Error(call.label + " app returned no result field or empty data")
		return Failed(fmt.Sprintf("%s app returned no %s data.", call.label, call.dataNoun))
	}

	path, err := writeArtifact(p.cfg.OutputDir, call.fileName(res, p.now()), res.Data)
	if err != nil {
		logger.Error("failed to save "+call.label+" output", zap.Error(err))
		return failedDuring(call.label, err)
	}

	logger.Info(call.label+" generation successful",
		zap.String("path", path),
		zap.Int("bytes", len(res.Data)),
	)
	return Success(path)
}

// generateImage runs regardless of the expansion outcome.
func (p *Pipeline) generateImage(ctx context.Context, gw gateway.Gateway, caller, expanded string) Artifact {
	out := p.invokeCapability(ctx, gw, caller, capabilityCall{
		label:        labelTextToImage,
		dataNoun:     "image",
		capabilityID: p.cfg.ImageCapability,
		payload: func() (map[string]any, error) {
			return map[string]any{"prompt": expanded}, nil
		},
		fileName: func(_ *gateway.Result, now time.Time) string {
			return imageFileName(now)
		},
	})
	return Artifact{Kind: ArtifactImage, Outcome: out}
}

// generate3D only calls the capability when the image stage succeeded and
// its file is on disk.
func (p *Pipeline) generate3D(ctx context.Context, gw gateway.Gateway, caller string, image Artifact) Artifact {
	if !image.Outcome.IsSuccess() {
		p.runLogger(ctx).Warn("skipping Image-to-3D generation because image generation failed or was skipped",
			zap.String("image_path", image.Path()))
		return Artifact{Kind: ArtifactModel3D, Outcome: Skipped("Image generation failed or was skipped.")}
	}
	if !image.Exists() {
		p.runLogger(ctx).Warn("skipping Image-to-3D generation because no valid image path was provided",
			zap.String("image_path", image.Path()))
		return Artifact{Kind: ArtifactModel3D, Outcome: Skipped("No image generated.")}
	}

	imagePath := image.Outcome.Value
	out := p.invokeCapability(ctx, gw, caller, capabilityCall{
		label:        labelImageTo3D,
		dataNoun:     "model",
		capabilityID: p.cfg.ModelCapability,
		payload: func() (map[string]any, error) {
			data, err := os.ReadFile(imagePath)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"image":    base64.StdEncoding.EncodeToString(data),
				"filename": filepath.Base(imagePath),
			}, nil
		},
		fileName: func(res *gateway.Result, now time.Time) string {
			return modelFileName(now, res.Filename, p.cfg.DefaultModelFilename)
		},
	})
	return Artifact{Kind: ArtifactModel3D, Outcome: out}
}
