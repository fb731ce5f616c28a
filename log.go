package hive

import "go.uber.org/zap"

// NewDevelopmentLogger builds a human-readable zap logger suitable for
// WithLogger during local development.
func NewDevelopmentLogger() *zap.Logger {
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// NewProductionLogger builds a JSON zap logger suitable for WithLogger in
// a deployed process.
func NewProductionLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
