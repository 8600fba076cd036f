// internal/workers/forms/render-form/config.go
package renderform

import (
	"time"

	"github.com/ellaouzi/fos-app-sub002/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	// Action is the form's post target when the job does not name one.
	Action string
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Config{
		Timeout: timeout,
		Action:  "/demandes",
	}
}
