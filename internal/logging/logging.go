package logging

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger *zap.SugaredLogger
	once   sync.Once
)

// GetLogger returns the process-wide sugared logger, building it on first use.
func GetLogger() *zap.SugaredLogger {
	once.Do(func() {
		prod, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		logger = prod.Sugar()
	})
	return logger
}
