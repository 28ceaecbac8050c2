package gateway

import (
	"net/http"
	"sync"

	"github.com/project-seraphim/inference-gateway/pkg/domain"
)

// handleReadyz probes both backends concurrently and reports ready when
// at least one variant is reachable.
func (g *Gateway) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	statuses := make(map[domain.Variant]string, len(g.backends))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for variant, backend := range g.backends {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := "healthy"
			if err := g.dispatcher.Ping(ctx, backend); err != nil {
				status = "unreachable"
			}
			mu.Lock()
			statuses[variant] = status
			mu.Unlock()
		}()
	}
	wg.Wait()

	ready := false
	for _, status := range statuses {
		if status == "healthy" {
			ready = true
			break
		}
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}

	g.writeJSON(w, code, map[string]any{
		"ready":     ready,
		"baseline":  statuses[domain.VariantBaseline],
		"candidate": statuses[domain.VariantCandidate],
	})
}
