package logging

import "context"

type attrsKey struct{}

// ContextWith returns a copy of ctx carrying args. Every Logger call made
// with the returned context logs them ahead of its own args.
func ContextWith(ctx context.Context, args ...any) context.Context {
	prev := attrsFrom(ctx)
	merged := make([]any, 0, len(prev)+len(args))
	merged = append(append(merged, prev...), args...)
	return context.WithValue(ctx, attrsKey{}, merged)
}

func attrsFrom(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(attrsKey{}).([]any)
	return attrs
}

func withContextArgs(ctx context.Context, args []any) []any {
	extra := attrsFrom(ctx)
	if len(extra) == 0 {
		return args
	}
	out := make([]any, 0, len(extra)+len(args))
	return append(append(out, extra...), args...)
}
