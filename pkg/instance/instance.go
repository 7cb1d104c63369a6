// Package instance names the running process for lock ownership and log fields.
package instance

import (
	"os"
	"sync"

	"github.com/angelmondragon/marketplace-backend/pkg/env"
)

var id = sync.OnceValue(func() string {
	if v := env.First("", "WORKER_ID", "DYNO", "K_REVISION"); v != "" {
		return v
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
})

// GetID is stable for the life of the process.
func GetID() string {
	return id()
}
