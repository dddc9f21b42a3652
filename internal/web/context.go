package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/apptimport/internal/core"
)

// withRequester attaches the caller's address and user agent to ctx so a
// batch started by this request records who started it. RemoteAddr has
// already been rewritten by the trusted real-IP middleware.
func withRequester(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return core.WithRequester(ctx, core.Requester{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	})
}
