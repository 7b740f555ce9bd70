package recorder

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/model"
)

func testSnapshot() *model.ScanSnapshot {
	now := time.Now().UTC()
	return &model.ScanSnapshot{
		SchemaVersion: model.SnapshotSchemaVersion,
		ScanID:        "scan-abc",
		StartedAt:     now.Add(-2 * time.Minute),
		FinishedAt:    now,
		DurationMS:    120000,
		TotalSymbols:  100,
		Succeeded:     95,
		Failed:        5,
		ATHCount:      2,
		Threshold:     0.995,
		ATHStocks: []model.ScanRecord{
			{Ticker: "A.NS", Exchange: "NSE", Name: "Alpha", LatestClose: 99.6, HighClose: 100,
				Ratio: 0.996, AllTimeHigh: true, Status: model.StatusOK},
			{Ticker: "B.BO", Exchange: "BSE", Name: "Beta", LatestClose: 201, HighClose: 200,
				Ratio: 1.005, AllTimeHigh: true, Status: model.StatusOK},
		},
	}
}

func TestSQLiteRecorder_RecordScan(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "scans.db")
	r, err := NewSQLiteRecorder(dbPath, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.RecordScan(testSnapshot()))

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var total, athCount int
	err = db.QueryRow(`SELECT total, ath_count FROM scans WHERE scan_id = ?`, "scan-abc").
		Scan(&total, &athCount)
	require.NoError(t, err)
	assert.Equal(t, 100, total)
	assert.Equal(t, 2, athCount)

	var hits int
	err = db.QueryRow(`SELECT COUNT(*) FROM ath_hits WHERE scan_id = ?`, "scan-abc").Scan(&hits)
	require.NoError(t, err)
	assert.Equal(t, 2, hits)

	var ratio float64
	err = db.QueryRow(`SELECT ratio FROM ath_hits WHERE scan_id = ? AND ticker = ?`,
		"scan-abc", "A.NS").Scan(&ratio)
	require.NoError(t, err)
	assert.InDelta(t, 0.996, ratio, 1e-9)
}

func TestSQLiteRecorder_MultipleScansAccumulate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "scans.db")
	r, err := NewSQLiteRecorder(dbPath, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	first := testSnapshot()
	require.NoError(t, r.RecordScan(first))

	second := testSnapshot()
	second.ScanID = "scan-def"
	require.NoError(t, r.RecordScan(second))

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var scans int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM scans`).Scan(&scans))
	assert.Equal(t, 2, scans)
}

func TestNoopRecorder(t *testing.T) {
	r := NewNoopRecorder()
	assert.NoError(t, r.RecordScan(testSnapshot()))
	assert.NoError(t, r.Close())
}
