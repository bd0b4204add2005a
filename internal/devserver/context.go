package devserver

import "context"

type contextKey struct{}

func withEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, contextKey{}, email)
}

func emailFrom(ctx context.Context) string {
	email, _ := ctx.Value(contextKey{}).(string)
	return email
}
