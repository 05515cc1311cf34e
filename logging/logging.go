package logging

import "go.uber.org/zap"

// New returns the structured logger used by the change feed and the live
// publisher, separate from the request-scoped global set up in config
func New() *zap.SugaredLogger {
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	return logger.Sugar()
}
