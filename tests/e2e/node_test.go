package e2e

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
)

// stubChain serves the Tendermint /block endpoint for a chain whose head
// can be moved by the test.
type stubChain struct {
	head atomic.Uint64
}

func newStubChain(t *testing.T, head uint64) (*stubChain, *httptest.Server) {
	t.Helper()
	c := &stubChain{}
	c.head.Store(head)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/block" {
			http.NotFound(w, r)
			return
		}
		h := c.head.Load()
		if q := r.URL.Query().Get("height"); q != "" {
			v, err := strconv.ParseUint(q, 10, 64)
			if err != nil || v > h {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":-1,"error":{"code":-32603,"message":"height is not available"}}`))
				return
			}
			h = v
		}
		_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":-1,"result":{"block_id":{"hash":"%064X"},"block":{"header":{"chain_id":"e2e-1","height":"%d"}}}}`, h, h)
	}))
	t.Cleanup(server.Close)
	return c, server
}
