package browser

import (
	"fmt"
	"strings"

	"github.com/oakmont/parcelscout/pkg/protocol"
)

// Substrings playwright surfaces when the driver or a target dies rather than
// when an operation merely fails.
var engineFaultMarkers = []string{
	"target closed",
	"target crashed",
	"browser has been closed",
	"browser closed",
	"context or browser has been closed",
	"page has been closed",
	"websocket error",
	"connection closed",
	"pipe closed",
	"driver not running",
}

// IsEngineFault reports whether an operation error means the underlying
// engine is no longer trustworthy, as opposed to an ordinary failure such as
// a selector matching nothing.
func IsEngineFault(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range engineFaultMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// classifyOpError wraps engine-death errors with the EngineFault sentinel so
// they classify correctly at the protocol boundary; other errors pass through
// unchanged.
func classifyOpError(err error) error {
	if err == nil {
		return nil
	}
	if IsEngineFault(err) {
		return fmt.Errorf("%w: %v", protocol.ErrEngineFault, err)
	}
	return err
}
