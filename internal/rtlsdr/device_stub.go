//go:build !cgo

package rtlsdr

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

var errNoCgo = errors.New("RTL-SDR support requires a cgo build with librtlsdr")

// Device is unavailable without cgo.
type Device struct{}

// Open always fails without cgo.
func Open(Config, *logrus.Logger) (*Device, error) {
	return nil, errNoCgo
}

// Capture always fails without cgo.
func (d *Device) Capture(context.Context, chan<- []byte) error {
	return errNoCgo
}

// Close does nothing.
func (d *Device) Close() error {
	return nil
}
