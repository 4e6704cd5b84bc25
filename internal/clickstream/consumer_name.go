package clickstream

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// NewConsumerName returns a consumer name unique to this process.
func NewConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "linkping"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}
