//go:build !cgo

package sink

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// OpenAudio is unavailable without cgo.
func OpenAudio(cfg AudioConfig, logger *logrus.Logger) (*Audio, error) {
	return nil, errors.New("audio output requires a cgo build")
}
