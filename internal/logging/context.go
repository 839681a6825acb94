package logging

import (
	"context"

	"go.uber.org/zap"
)

// Context key types.
type projectCtxKey struct{}
type operationCtxKey struct{}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 2)

	if project := ProjectFromContext(ctx); project != "" {
		fields = append(fields, zap.String("project", project))
	}
	if op := OperationFromContext(ctx); op != "" {
		fields = append(fields, zap.String("operation", op))
	}

	return fields
}

// WithProject tags the context with the project a decision concerns.
func WithProject(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, projectCtxKey{}, name)
}

// ProjectFromContext extracts the project tag from context.
func ProjectFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(projectCtxKey{}).(string); ok {
		return p
	}
	return ""
}

// WithOperation tags the context with the guarded operation name.
func WithOperation(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operationCtxKey{}, name)
}

// OperationFromContext extracts the operation tag from context.
func OperationFromContext(ctx context.Context) string {
	if o, ok := ctx.Value(operationCtxKey{}).(string); ok {
		return o
	}
	return ""
}
