package ml

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

type cacheKey struct {
	input   Input
	version string
}

// CachedPredictor memoizes predictions per artifact version. Inference is
// deterministic, so a hit is indistinguishable from a fresh call.
type CachedPredictor struct {
	predictor *Predictor
	cache     *lru.Cache[cacheKey, *Prediction]
}

// NewCachedPredictor wraps predictor with an LRU cache holding size entries.
func NewCachedPredictor(predictor *Predictor, size int) (*CachedPredictor, error) {
	cache, err := lru.New[cacheKey, *Prediction](size)
	if err != nil {
		return nil, fmt.Errorf("create prediction cache: %w", err)
	}
	return &CachedPredictor{predictor: predictor, cache: cache}, nil
}

// Predict returns a copy of the cached prediction for in, computing it on a miss.
func (c *CachedPredictor) Predict(ctx context.Context, in Input) (*Prediction, error) {
	artifacts, err := c.predictor.prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	key := cacheKey{input: in, version: artifacts.Version}
	cached, ok := c.cache.Get(key)
	if ok {
		c.predictor.logger.Debug("prediction cache hit",
			zap.Float64("voltage", in.Voltage),
			zap.Float64("current", in.Current))
	} else {
		fresh, err := c.predictor.run(artifacts, in)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, fresh)
		cached = fresh
	}

	out := *cached
	out.Targets = append([]TargetValue(nil), cached.Targets...)
	out.CreatedAt = c.predictor.now()
	return &out, nil
}

// Len reports the number of cached predictions.
func (c *CachedPredictor) Len() int {
	return c.cache.Len()
}
