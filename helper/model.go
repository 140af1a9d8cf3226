package helper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
)

// DefaultModelDir is where embedding models are downloaded to.
const DefaultModelDir = "./models"

// PrepareModel downloads the model into DefaultModelDir if it doesn't exist and returns its path.
// onnxFilePath selects the onnx file for repositories shipping more than one.
func PrepareModel(modelName string, onnxFilePath string) (string, error) {
	return PrepareModelIn(DefaultModelDir, modelName, onnxFilePath)
}

// PrepareModelIn is PrepareModel with an explicit model directory.
func PrepareModelIn(modelDir string, modelName string, onnxFilePath string) (string, error) {
	if modelName == "" {
		return "", fmt.Errorf("failed to prepare model: model name is empty")
	}

	modelPath := filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat model directory: %w", err)
	}

	if err := os.MkdirAll(modelDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}

	downloadOptions := hugot.NewDownloadOptions()
	if onnxFilePath != "" {
		downloadOptions.OnnxFilePath = onnxFilePath
	}
	downloadedPath, err := hugot.DownloadModel(modelName, modelDir, downloadOptions)
	if err != nil {
		return "", fmt.Errorf("failed to download model: %w", err)
	}

	return downloadedPath, nil
}
