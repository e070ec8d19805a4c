package interceptors

import (
	"context"
	"net/http"
	"strings"

	"github.com/webitel/user-admin-client/internal/domain/registry"
)

type contextKey string

const (
	// ConsumerContextKey is the key used to store/retrieve the consumer name from context
	ConsumerContextKey contextKey = "consumer"

	ConsumerHeader = "X-Consumer"
	consumerQuery  = "consumer"
)

// NewConsumerInterceptor resolves which distributor consumer a request acts as.
// The header wins over the query parameter; requests naming neither act as the
// default consumer.
func NewConsumerInterceptor() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// [RESOLVE] identity of the polling view
			name := strings.TrimSpace(r.Header.Get(ConsumerHeader))
			if name == "" {
				name = strings.TrimSpace(r.URL.Query().Get(consumerQuery))
			}
			if name == "" {
				name = registry.DefaultConsumer
			}

			// [ENRICHMENT] Inject the identity into the context for downstream handlers
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ConsumerContextKey, name)))
		})
	}
}

// GetConsumer is a helper to extract the consumer name from context safely.
func GetConsumer(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(ConsumerContextKey).(string)
	return name, ok
}
