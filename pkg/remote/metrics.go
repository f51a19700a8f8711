package remote

import (
	"expvar"
	"sync"
	"time"
)

var (
	requestsMu      sync.Mutex
	requestsServed  = expvar.NewInt("kbgit_sync_requests")
	requestsAvgTime = expvar.NewFloat("kbgit_sync_requests_avgtime")

	pullsServed    = expvar.NewInt("kbgit_pulls_served")
	pushesAccepted = expvar.NewInt("kbgit_pushes_accepted")
	requestsFailed = expvar.NewInt("kbgit_sync_requests_failed")
	objectsStored  = expvar.NewInt("kbgit_objects_received")
)

// requestServed increments the request counter and updates the average time
// it takes to serve one.
func requestServed(elapsed time.Duration) {
	requestsMu.Lock()
	defer requestsMu.Unlock()
	requestsServed.Add(1)
	served := float64(requestsServed.Value())
	// (t[n] + t[0..n-1] * (n - 1)) / n
	t := (float64(elapsed) + requestsAvgTime.Value()*(served-1)) / served
	requestsAvgTime.Set(t)
}
