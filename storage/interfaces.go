package storage

import "rankwatch/models"

// SnapshotWriter is the interface any snapshot storage backend must satisfy.
type SnapshotWriter interface {
	WriteSnapshot(snap *models.Snapshot) error
	Close() error
}

// ReportSink receives finished change reports.
type ReportSink interface {
	PublishReport(report *models.ChangeReport) error
	Close() error
}

var (
	_ SnapshotWriter = (*CSVWriter)(nil)
	_ SnapshotWriter = (*PostgresWriter)(nil)
	_ ReportSink     = (*PostgresWriter)(nil)
	_ ReportSink     = (*NATSPublisher)(nil)
)
