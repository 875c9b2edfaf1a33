package export

import (
	"breadstamp/internal/core"
	"breadstamp/internal/stats"
	"breadstamp/pkg/domain"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Snapshot is the full collection captured by an export. The JSON artifact
// is this structure verbatim.
type Snapshot struct {
	ExportedAt   time.Time            `json:"exported_at"`
	Bakeries     []core.BakerySummary `json:"bakeries"`
	Breads       []domain.Bread       `json:"breads"`
	Stats        stats.Stats          `json:"stats"`
	Achievements []domain.Achievement `json:"achievements"`
}

type file struct {
	name        string
	contentType string
	data        []byte
}

func capture(ctx context.Context, src Source, now time.Time) (Snapshot, error) {
	bakeries, err := src.ListBakeries(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	s, err := src.Statistics(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	achievements, err := src.Achievements(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		ExportedAt:   now,
		Bakeries:     bakeries,
		Breads:       src.ListBreads(ctx, core.BreadFilter{}),
		Stats:        s,
		Achievements: achievements,
	}, nil
}

func render(format Format, snap Snapshot) ([]file, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return []file{{name: "breadstamp.json", contentType: "application/json", data: data}}, nil
	case FormatCSV:
		bakeries, err := bakeriesCSV(snap.Bakeries)
		if err != nil {
			return nil, err
		}
		breads, err := breadsCSV(snap.Breads, snap.Bakeries)
		if err != nil {
			return nil, err
		}
		return []file{
			{name: "bakeries.csv", contentType: "text/csv", data: bakeries},
			{name: "breads.csv", contentType: "text/csv", data: breads},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func writeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

func bakeriesCSV(bakeries []core.BakerySummary) ([]byte, error) {
	rows := [][]string{{"id", "name", "address", "latitude", "longitude", "visited_at", "favorite", "bread_count", "average_rating", "memo"}}
	for _, b := range bakeries {
		rows = append(rows, []string{
			b.ID,
			b.Name,
			b.Address,
			strconv.FormatFloat(b.Latitude, 'f', 6, 64),
			strconv.FormatFloat(b.Longitude, 'f', 6, 64),
			b.VisitedAt.Format(time.RFC3339),
			strconv.FormatBool(b.IsFavorite),
			strconv.Itoa(b.BreadCount),
			strconv.FormatFloat(b.AverageRating, 'f', 2, 64),
			optional(b.Memo),
		})
	}
	return writeCSV(rows)
}

func breadsCSV(breads []domain.Bread, bakeries []core.BakerySummary) ([]byte, error) {
	names := make(map[string]string, len(bakeries))
	for _, b := range bakeries {
		names[b.ID] = b.Name
	}
	rows := [][]string{{"id", "name", "category", "rating", "eaten_at", "bakery_id", "bakery_name", "memo"}}
	for _, b := range breads {
		bakeryID := optional(b.BakeryID)
		rows = append(rows, []string{
			b.ID,
			b.Name,
			b.Category.DisplayName(),
			strconv.Itoa(b.Rating),
			b.EatenAt.Format(time.RFC3339),
			bakeryID,
			names[bakeryID],
			optional(b.Memo),
		})
	}
	return writeCSV(rows)
}
