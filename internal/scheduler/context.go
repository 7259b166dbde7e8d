package scheduler

import "context"

type Role string

const (
	RoleEmission   Role = "emission"
	RoleProcessing Role = "processing"
)

// ExecContext identifies the pool worker a piece of work runs on.
type ExecContext struct {
	Pool   string
	Worker string
	Role   Role

	pool *Pool
}

type execKey struct{}

func WithExecContext(ctx context.Context, ec ExecContext) context.Context {
	return context.WithValue(ctx, execKey{}, ec)
}

// FromContext reports the execution context ctx was relocated to. ok is
// false for work still running where the caller issued it.
func FromContext(ctx context.Context) (ExecContext, bool) {
	ec, ok := ctx.Value(execKey{}).(ExecContext)
	return ec, ok
}

// Current returns the execution context of ctx when ctx runs on a worker of
// p. Work already on p must not wait for another worker of p.
func (p *Pool) Current(ctx context.Context) (ExecContext, bool) {
	ec, ok := FromContext(ctx)
	if !ok || ec.pool != p {
		return ExecContext{}, false
	}
	return ec, true
}

// Attrs returns slog key/value pairs describing the execution context.
func Attrs(ctx context.Context) []any {
	ec, ok := FromContext(ctx)
	if !ok {
		return []any{"thread", "caller"}
	}
	return []any{"thread", ec.Worker, "role", string(ec.Role)}
}
