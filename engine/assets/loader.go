package assets

import (
	"path/filepath"
	"strings"
)

// Loader decodes one file into CPU-side data. Loaders must be safe to call
// from several goroutines.
type Loader interface {
	Load(path string) (any, error)
}

type AssetType int

const (
	AssetTypeNone AssetType = iota
	AssetTypeShader
	AssetTypeImage
	AssetTypeModel
)

func (t AssetType) String() string {
	switch t {
	case AssetTypeShader:
		return "shader"
	case AssetTypeImage:
		return "image"
	case AssetTypeModel:
		return "model"
	}
	return "none"
}

func determineAssetType(path string) AssetType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".spv":
		return AssetTypeShader
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return AssetTypeImage
	case ".obj":
		return AssetTypeModel
	default:
		return AssetTypeNone
	}
}
