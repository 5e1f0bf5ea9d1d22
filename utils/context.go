package utils

type contextKey string

// Request-scoped context keys
const (
	RequestIDKey contextKey = "request_id"
	ActorKey     contextKey = "actor"
	TenantKey    contextKey = "tenant_id"
)
