package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"breadstamp/pkg/domain"
)

const dateLayout = "2006-01-02"

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes tab-separated rows aligned into columns.
func (a *app) table(header string, rows [][]string) error {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, header)
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func stars(rating int) string {
	rating = domain.ClampRating(rating)
	return strings.Repeat("★", rating) + strings.Repeat("☆", domain.MaxRating-rating)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func parseDate(raw string, loc *time.Location) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return nil, fmt.Errorf("date %q must look like %s", raw, dateLayout)
	}
	return &t, nil
}
