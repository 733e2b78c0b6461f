package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danribes/mystic-ecom-sub011/api/web"
	"github.com/danribes/mystic-ecom-sub011/api/weberr"
	"github.com/danribes/mystic-ecom-sub011/rate"
)

// RateLimit throttles requests per client IP.
func RateLimit(l *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			ip := web.ClientIP(r)
			if !l.Check(ip) {
				return weberr.TooManyRequests(fmt.Errorf("client %s exceeded the rate limit", ip))
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
