// Package identity attaches the acting human operator to each request.
// It performs no authentication: the operator tag is self-declared.
package identity

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/rpr-kontrol/kontrol/internal/domain"
)

const (
	OperatorHeaderName = "X-RPR-Operator"
	operatorQueryParam = "operator"
)

type contextKey int

const operatorKey contextKey = iota

// OperatorFromContext returns the operator tag, "founder" when none was set.
func OperatorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(operatorKey).(string); ok && v != "" {
		return v
	}
	return domain.HumanOperatorFounder
}

// WithOperator returns ctx carrying operator.
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorKey, operator)
}

func operatorFromRequest(r *http.Request) string {
	op := strings.TrimSpace(r.Header.Get(OperatorHeaderName))
	if op == "" {
		op = strings.TrimSpace(r.URL.Query().Get(operatorQueryParam))
	}
	if op == "" {
		return domain.HumanOperatorFounder
	}
	return op
}

// Middleware validates the declared operator and stores it on the context.
// A malformed tag is rejected with 400.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		op := operatorFromRequest(r)
		if err := domain.ValidateHumanOperator(op); err != nil {
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"invalid operator"}`, http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), op)))
	})
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
