package narration

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// ModelCache persists built models keyed by ModelKey
type ModelCache interface {
	GetModel(key string) (*WeightModel, bool)
	SaveModel(key string, model *WeightModel) error
}

// ModelKey identifies a model by text content and the weighting params that
// shape it. Latency and refresh rate do not affect the table.
func ModelKey(text string, params Params) string {
	params = params.withDefaults()
	h := sha256.New()
	fmt.Fprintf(h, "%g|%g|%g|", params.LengthFactor, params.MinWeight, params.ParagraphGap)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil)[:12])
}

// LoadOrBuild returns the cached model for text, building and saving it on a
// miss. A nil cache always builds.
func LoadOrBuild(cache ModelCache, text string, params Params, logger *slog.Logger) *WeightModel {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		return Build(text, params)
	}

	key := ModelKey(text, params)
	if model, ok := cache.GetModel(key); ok && model != nil {
		logger.Debug("weight model cache hit", "key", key, "tokens", model.Len())
		return model
	}

	model := Build(text, params)
	if err := cache.SaveModel(key, model); err != nil {
		logger.Warn("failed to cache weight model", "key", key, "error", err)
	}
	logger.Debug("weight model built", "key", key, "tokens", model.Len(), "totalWeight", model.TotalWeight)
	return model
}
