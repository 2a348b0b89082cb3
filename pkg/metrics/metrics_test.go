package metrics

import (
	"context"
	"testing"
	"time"
)

func TestRecordHelpersWithoutMeter(t *testing.T) {
	if IsEnabled() {
		t.Skip("metrics initialized elsewhere")
	}
	ctx := context.Background()

	RecordParse(ctx, time.Second, 1024)
	RecordStage(ctx, "parse", time.Second)
	RecordRun(ctx, "success", time.Minute)
	RecordRunSkipped(ctx)
	RecordError(ctx, "fetch", "storage")
	RecordArchiveSize(ctx, 2048)
	RecordDocuments(ctx, "stop_place", 3)
	RecordDropped(ctx, "no_quays", 1)
	RecordBlobOperation(ctx, "local", "get", "success", time.Millisecond)
	RecordBlobRetry(ctx, "put")
	RecordHTTPClientRequest(ctx, "GET", "blobs:9000", 200, time.Millisecond, -1, 10)
	TrackInFlight(ctx)()
}

func TestLastSuccess(t *testing.T) {
	before := time.Now().Unix()
	RecordLastSuccess(42)

	ts, docs := LastSuccess()
	if docs != 42 {
		t.Errorf("documents = %d, want 42", docs)
	}
	if ts < before || ts > time.Now().Unix() {
		t.Errorf("timestamp %d outside [%d, now]", ts, before)
	}
}
