package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"breadstamp/internal/achievement"
	"breadstamp/internal/adapters/export"
	"breadstamp/internal/sampledata"
	"breadstamp/internal/viewmodel"
	"breadstamp/pkg/domain"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert sample bakeries and breads into an empty stamp book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRuntime(cmd.Context(), func(rt *runtime) error {
				inserted, err := sampledata.Seed(cmd.Context(), rt.svc, rt.svc.Now())
				if err != nil {
					return err
				}
				if !inserted {
					_, err = fmt.Fprintln(a.out, "stamp book already has bakeries, nothing seeded")
					return err
				}
				nb, nr := sampledata.Counts()
				_, err = fmt.Fprintf(a.out, "seeded %d bakeries and %d breads\n", nb, nr)
				return err
			})
		},
	}
}

func (a *app) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List bread categories",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cats := domain.AllCategories()
			if a.asJSON {
				return a.printJSON(cats)
			}
			rows := make([][]string, 0, len(cats))
			for _, c := range cats {
				rows = append(rows, []string{string(c), c.Icon(), c.DisplayName()})
			}
			return a.table("KEY\tICON\tNAME", rows)
		},
	}
}

func (a *app) loadProfile(ctx context.Context, rt *runtime) (*viewmodel.ProfileViewModel, error) {
	vm := viewmodel.NewProfileViewModel(rt.svc, a.logger)
	if !vm.Refresh(ctx) {
		return nil, errors.New(vm.ErrorMessage())
	}
	return vm, nil
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show collection statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRuntime(cmd.Context(), func(rt *runtime) error {
				vm, err := a.loadProfile(cmd.Context(), rt)
				if err != nil {
					return err
				}
				st := vm.Stats()
				now := rt.svc.Now().In(rt.svc.Location())
				if a.asJSON {
					return a.printJSON(map[string]any{"stats": st, "breakdown": st.Breakdown(), "current_month_visits": st.CurrentMonthVisits(now)})
				}
				top := "-"
				if st.TopCategory != nil {
					top = st.TopCategory.DisplayName()
				}
				fmt.Fprintf(a.out, "bakeries     %d (%d favorite, %d this month)\n", st.TotalBakeries, st.FavoriteBakeries, st.CurrentMonthVisits(now))
				fmt.Fprintf(a.out, "breads       %d (%d five-star)\n", st.TotalBreads, st.FiveStarBreadCount)
				fmt.Fprintf(a.out, "avg rating   %.1f\n", st.AverageRating)
				fmt.Fprintf(a.out, "top category %s\n\n", top)

				rows := make([][]string, 0)
				for _, row := range st.Breakdown() {
					rows = append(rows, []string{row.Category.Icon() + " " + row.Category.DisplayName(), strconv.Itoa(row.Count)})
				}
				if err := a.table("CATEGORY\tCOUNT", rows); err != nil {
					return err
				}
				months := make([]string, 0, len(st.MonthlyVisits))
				for m := range st.MonthlyVisits {
					months = append(months, m)
				}
				slices.Sort(months)
				rows = rows[:0]
				for _, m := range months {
					rows = append(rows, []string{m, strconv.Itoa(st.MonthlyVisits[m])})
				}
				fmt.Fprintln(a.out)
				return a.table("MONTH\tVISITS", rows)
			})
		},
	}
}

func (a *app) achievementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "achievements",
		Short: "Show badge progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRuntime(cmd.Context(), func(rt *runtime) error {
				vm, err := a.loadProfile(cmd.Context(), rt)
				if err != nil {
					return err
				}
				all := vm.Achievements()
				if a.asJSON {
					return a.printJSON(all)
				}
				counters := achievement.CountersFromStats(vm.Stats())
				rows := make([][]string, 0, len(all))
				for _, ach := range all {
					state := fmt.Sprintf("%3.0f%%", achievement.Progress(ach.Requirement, counters)*100)
					if ach.IsUnlocked() {
						state = "✓ " + ach.UnlockedAt.In(rt.svc.Location()).Format(dateLayout)
					}
					rows = append(rows, []string{ach.ID, ach.Title, ach.Description, state})
				}
				fmt.Fprintf(a.out, "%d/%d unlocked (%.0f%%)\n\n", vm.UnlockedCount(), vm.TotalCount(), vm.CompletionRate()*100)
				if err := a.table("ID\tTITLE\tGOAL\tSTATUS", rows); err != nil {
					return err
				}
				if next, ok := vm.Next(); ok {
					fmt.Fprintf(a.out, "\nnext: %s\n%s\n", next.Title, next.Guide())
				}
				return nil
			})
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	var (
		formats []string
		outDir  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the collection to JSON or CSV files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRuntime(cmd.Context(), func(rt *runtime) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()
				worker := export.NewWorker(rt.svc, rt.blobs, a.logger.Named("export"))
				worker.Start()
				defer func() { _ = worker.Stop(context.Background()) }()

				fs := make([]export.Format, 0, len(formats))
				for _, f := range formats {
					fs = append(fs, export.Format(f))
				}
				rec, err := worker.Enqueue(ctx, export.Input{Formats: fs, RequestedBy: "cli"})
				if err != nil {
					return err
				}
				if rec, err = waitExport(ctx, worker, rec.ID); err != nil {
					return err
				}
				if err := os.MkdirAll(outDir, 0o750); err != nil {
					return fmt.Errorf("create output dir: %w", err)
				}
				for _, art := range rec.Artifacts {
					_, data, err := worker.Download(ctx, rec.ID, art.Name)
					if err != nil {
						return err
					}
					path := filepath.Join(outDir, art.Name)
					if err := os.WriteFile(path, data, 0o640); err != nil {
						return fmt.Errorf("write %s: %w", path, err)
					}
					a.logger.Debug("export written", zap.String("path", path), zap.Int64("bytes", art.SizeBytes))
					fmt.Fprintln(a.out, path)
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&formats, "format", []string{string(export.FormatJSON)}, "json and/or csv")
	f.StringVarP(&outDir, "out", "o", ".", "output directory")
	f.DurationVar(&timeout, "timeout", time.Minute, "give up after this long")
	return cmd
}

func waitExport(ctx context.Context, worker *export.Worker, id string) (export.Record, error) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		rec, ok := worker.Get(id)
		if !ok {
			return export.Record{}, fmt.Errorf("export %s vanished", id)
		}
		switch rec.Status {
		case export.StatusSucceeded:
			return rec, nil
		case export.StatusFailed:
			return rec, fmt.Errorf("export failed: %s", rec.Error)
		}
		select {
		case <-ctx.Done():
			return rec, ctx.Err()
		case <-ticker.C:
		}
	}
}
