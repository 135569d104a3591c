package ports

import (
	"context"

	"github.com/pichlex/debitor/pkg/domain"
)

// Oracle classifies the latest user message of a conversation into one of
// the allowed route labels. Implementations may return any label; callers
// normalise labels outside the allowed set.
type Oracle interface {
	Classify(ctx context.Context, req domain.ClassifyRequest) (domain.Classification, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, req domain.ClassifyRequest) (domain.Classification, error)

// Classify calls f.
func (f OracleFunc) Classify(ctx context.Context, req domain.ClassifyRequest) (domain.Classification, error) {
	return f(ctx, req)
}
