package ridb

import "go.uber.org/zap"

// NewLogger returns a zap.Logger configured for development use
// (human-readable, colored level output) when dev is true, and a
// production JSON logger otherwise. Either logger can be passed as
// Config.Logger.
func NewLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
