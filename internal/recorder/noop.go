package recorder

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordSync(_ *SyncRun) error          { return nil }
func (n *NoopRecorder) RecordJob(_ *JobRun) error            { return nil }
func (n *NoopRecorder) RecentSyncs(_ int) ([]SyncRun, error) { return []SyncRun{}, nil }
func (n *NoopRecorder) Close() error                         { return nil }
