package metrics

import "time"

// StorageMetrics observes sector backends.
type StorageMetrics interface {
	// ObserveOperation records one backend call ("read", "write", "sync",
	// "health") and whether it failed.
	ObserveOperation(backend, operation string, duration time.Duration, err error)

	// RecordBytes records bytes moved to or from a backend.
	RecordBytes(backend, direction string, n int64)
}

var newStorageMetrics func() StorageMetrics

// RegisterStorageMetricsConstructor is called by the prometheus package at init.
func RegisterStorageMetricsConstructor(constructor func() StorageMetrics) {
	newStorageMetrics = constructor
}

// NewStorageMetrics returns the registered implementation, or nil.
func NewStorageMetrics() StorageMetrics {
	if !IsEnabled() || newStorageMetrics == nil {
		return nil
	}
	return newStorageMetrics()
}

// ObserveOperation is a nil-safe helper around StorageMetrics.ObserveOperation.
//
//	start := time.Now()
//	err := b.client.PutObject(ctx, input)
//	metrics.ObserveOperation(b.metrics, "s3", "write", time.Since(start), err)
func ObserveOperation(m StorageMetrics, backend, operation string, d time.Duration, err error) {
	if m != nil {
		m.ObserveOperation(backend, operation, d, err)
	}
}

// RecordBytes is a nil-safe helper around StorageMetrics.RecordBytes.
func RecordBytes(m StorageMetrics, backend, direction string, n int64) {
	if m != nil && n > 0 {
		m.RecordBytes(backend, direction, n)
	}
}
