package recorder

import "github.com/AnbuPalani1991/alltimehigh-scanner/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordScan(_ *model.ScanSnapshot) error { return nil }
func (n *NoopRecorder) Close() error                           { return nil }
