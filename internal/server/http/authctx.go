package httpserver

import (
	"context"

	"github.com/and161185/cybergames/internal/model"
)

type ctxKey string

const subjectKey ctxKey = "cg.subject"

// WithSubject stores the authenticated caller in context.
func WithSubject(ctx context.Context, sub model.Subject) context.Context {
	return context.WithValue(ctx, subjectKey, sub)
}

// SubjectFromCtx fetches the authenticated caller from context.
func SubjectFromCtx(ctx context.Context) (model.Subject, bool) {
	v := ctx.Value(subjectKey)
	if v == nil {
		return model.Subject{}, false
	}
	sub, ok := v.(model.Subject)
	return sub, ok
}
