package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the scorer backend (http, gemini, fallback).
	FieldProvider = "scorer_provider"
	// FieldModel is the structured log field key for the model behind the scorer, when known.
	FieldModel = "scorer_model"
	// FieldEndpoint is the structured log field key for the remote scorer base URL.
	FieldEndpoint = "scorer_endpoint"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to logger, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// ScorerFields describes the scorer backend. Empty values are skipped.
func ScorerFields(provider, model, endpoint string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
		StringField{Key: FieldEndpoint, Value: endpoint},
	)
}

// WithScorer attaches the scorer fields to logger.
func WithScorer(logger *zap.Logger, provider, model, endpoint string) *zap.Logger {
	return WithFields(logger, ScorerFields(provider, model, endpoint)...)
}
