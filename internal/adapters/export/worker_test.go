package export

import (
	"breadstamp/internal/blob"
	"breadstamp/internal/core"
	"breadstamp/internal/stats"
	"breadstamp/pkg/domain"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startWorker(t *testing.T, src Source, blobs blob.Store) *Worker {
	t.Helper()
	w := NewWorker(src, blobs, nil)
	w.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := w.Stop(ctx); err != nil {
			t.Fatalf("stop: %v", err)
		}
	})
	return w
}

func waitDone(t *testing.T, w *Worker, id string) Record {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, ok := w.Get(id)
		if !ok {
			t.Fatalf("export %s vanished", id)
		}
		if rec.Status == StatusSucceeded || rec.Status == StatusFailed {
			return rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("export %s did not finish", id)
	return Record{}
}

func seededService(t *testing.T) *core.Service {
	t.Helper()
	svc := core.NewInMemoryService(core.WithLocation(time.UTC))
	t.Cleanup(func() { _ = svc.Close() })
	ctx := context.Background()
	bakery, _, err := svc.CreateBakery(ctx, core.BakeryInput{Name: "밀도", Address: "서울 마포구"})
	if err != nil {
		t.Fatalf("bakery: %v", err)
	}
	for _, name := range []string{"식빵", "우유식빵"} {
		if _, _, err := svc.CreateBread(ctx, core.BreadInput{Name: name, Category: domain.CategoryToast, Rating: 5, BakeryID: &bakery.ID}); err != nil {
			t.Fatalf("bread: %v", err)
		}
	}
	return svc
}

func TestExportWritesJSONAndCSV(t *testing.T) {
	svc := seededService(t)
	blobs := blob.NewMemory()
	w := startWorker(t, svc, blobs)
	ctx := context.Background()

	queued, err := w.Enqueue(ctx, Input{RequestedBy: "cli"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if queued.Status != StatusQueued || len(queued.Formats) != 2 {
		t.Fatalf("unexpected queued record %+v", queued)
	}
	rec := waitDone(t, w, queued.ID)
	if rec.Status != StatusSucceeded || len(rec.Artifacts) != 3 || rec.CompletedAt == nil {
		t.Fatalf("unexpected record %+v", rec)
	}

	_, data, err := w.Download(ctx, rec.ID, "breadstamp.json")
	if err != nil {
		t.Fatalf("download json: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(snap.Bakeries) != 1 || len(snap.Breads) != 2 || snap.Stats.TotalBreads != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	_, data, err = w.Download(ctx, rec.ID, "breads.csv")
	if err != nil {
		t.Fatalf("download csv: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 || rows[1][2] != domain.CategoryToast.DisplayName() || rows[1][6] != "밀도" {
		t.Fatalf("unexpected csv rows %v", rows)
	}

	infos, err := blobs.List(ctx, "exports/"+rec.ID+"/")
	if err != nil || len(infos) != 3 {
		t.Fatalf("expected 3 stored artifacts, got %d %v", len(infos), err)
	}
	if _, _, err := w.Download(ctx, rec.ID, "missing.csv"); !core.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := w.Download(ctx, "nope", "breads.csv"); !core.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEnqueueRejectsUnknownFormat(t *testing.T) {
	w := NewWorker(seededService(t), blob.NewMemory(), nil)
	if _, err := w.Enqueue(context.Background(), Input{Formats: []Format{"xml"}}); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	rec, err := w.Enqueue(context.Background(), Input{Formats: []Format{FormatCSV, FormatCSV}})
	if err != nil || len(rec.Formats) != 1 {
		t.Fatalf("duplicates should collapse: %+v %v", rec, err)
	}
}

func TestQueueFull(t *testing.T) {
	w := NewWorker(seededService(t), blob.NewMemory(), nil)
	for i := 0; i < defaultQueue; i++ {
		if _, err := w.Enqueue(context.Background(), Input{}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if _, err := w.Enqueue(context.Background(), Input{}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected queue full, got %v", err)
	}
}

type brokenSource struct{ Source }

func (brokenSource) ListBakeries(context.Context) ([]core.BakerySummary, error) {
	return nil, errors.New("store offline")
}

func (brokenSource) Statistics(context.Context) (stats.Stats, error) { return stats.Stats{}, nil }

func TestCaptureFailureMarksExportFailed(t *testing.T) {
	w := startWorker(t, brokenSource{}, blob.NewMemory())
	rec, err := w.Enqueue(context.Background(), Input{Formats: []Format{FormatJSON}})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	done := waitDone(t, w, rec.ID)
	if done.Status != StatusFailed || done.Error == "" {
		t.Fatalf("expected failure, got %+v", done)
	}
}
