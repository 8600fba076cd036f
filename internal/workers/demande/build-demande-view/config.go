// internal/workers/demande/build-demande-view/config.go
package builddemandeview

import (
	"time"

	"github.com/ellaouzi/fos-app-sub002/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Config{Timeout: timeout}
}
