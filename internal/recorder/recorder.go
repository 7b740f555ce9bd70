package recorder

import "github.com/AnbuPalani1991/alltimehigh-scanner/internal/model"

// Recorder appends completed scans to a historical record for analysis.
// The published snapshot only ever holds the latest scan; the recorder
// keeps every run.
type Recorder interface {
	RecordScan(snap *model.ScanSnapshot) error
	Close() error
}
