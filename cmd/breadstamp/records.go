package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"breadstamp/internal/core"
	"breadstamp/internal/viewmodel"
	"breadstamp/pkg/domain"

	"github.com/spf13/cobra"
)

func readPhoto(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	return data, nil
}

func (a *app) bakeryCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "bakery", Short: "Manage visited bakeries"}
	cmd.AddCommand(a.bakeryAddCmd(), a.bakeryListCmd(), a.bakeryShowCmd(), a.bakeryUpdateCmd(), a.bakeryDeleteCmd(), a.bakeryFavoriteCmd())
	return cmd
}

func (a *app) bakeryAddCmd() *cobra.Command {
	var (
		in            core.BakeryInput
		memo, visited string
		photoPath     string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Stamp a new bakery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRuntime(cmd.Context(), func(rt *runtime) error {
				var err error
				if in.VisitedAt, err = parseDate(visited, rt.svc.Location()); err != nil {
					return err
				}
				if cmd.Flags().Changed("memo") {
					in.Memo = &memo
				}
				photo, err := readPhoto(photoPath)
				if err != nil {
					return err
				}
				vm := viewmodel.NewBakeryViewModel(rt.svc, a.logger)
				bakery, ok := vm.AddBakery(cmd.Context(), in, photo)
				if !ok {
					return errors.New(vm.State().ErrorMessage)
				}
				return a.printBakery(bakery)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "", "bakery name")
	f.StringVar(&in.Address, "address", "", "street address")
	f.Float64Var(&in.Latitude, "lat", 0, "latitude")
	f.Float64Var(&in.Longitude, "lng", 0, "longitude")
	f.StringVar(&memo, "memo", "", "free-form note")
	f.StringVar(&visited, "visited", "", "visit date ("+dateLayout+"), defaults to today")
	f.BoolVar(&in.IsFavorite, "favorite", false, "mark as favorite")
	f.StringVar(&photoPath, "photo", "", "path to a photo")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (a *app) printBakery(b domain.Bakery) error {
	if a.asJSON {
		return a.printJSON(b)
	}
	fav := ""
	if b.IsFavorite {
		fav = " ♥"
	}
	_, err := fmt.Fprintf(a.out, "%s  %s%s\n  %s\n  visited %s\n", b.ID, b.Name, fav, b.Address, b.VisitedAt.Format(dateLayout))
	if err == nil && b.Memo != nil {
		_, err = fmt.Fprintf(a.out, "  %s\n", *b.Memo)
	}
	return err
}

func (a *app) bakeryListCmd() *cobra.Command {
	var favorites bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bakeries, most recent visit first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRuntime(cmd.Context(), func(rt *runtime) error {
				all, err := rt.svc.ListBakeries(cmd.Context())
				if err != nil {
					return err
				}
				list := all[:0]
				for _, b := range all {
					if !favorites || b.IsFavorite {
						list = append(list, b)
					}
				}
				if a.asJSON {
					return a.printJSON(list)
				}
				rows := make([][]string, 0, len(list))
				for _, b := range list {
					fav := ""
					if b.IsFavorite {
						fav = "♥"
					}
					rows = append(rows, []string{b.ID, b.Name, fav, b.VisitedAt.In(rt.svc.Location()).Format(dateLayout), strconv.Itoa(b.BreadCount), strconv.FormatFloat(b.AverageRating, 'f', 1, 64)})
				}
				return a.table("ID\tNAME\tFAV\tVISITED\tBREADS\tAVG", rows)
			})
		},
	}
	cmd.Flags().BoolVar(&favorites, "favorites", false, "only favorite bakeries")
	return cmd
}

func (a *app) bakeryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a bakery and the breads eaten there",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *runtime) error {
				summary, err := rt.svc.GetBakery(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				breads, err := rt.svc.BreadsForBakery(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if a.asJSON {
					return a.printJSON(map[string]any{"bakery": summary, "breads": breads})
				}
				if err := a.printBakery(summary.Bakery); err != nil {
					return err
				}
				return a.printBreads(breads)
			})
		},
	}
}

func (a *app) bakeryUpdateCmd() *cobra.Command {
	var name, address, memo string
	var clearMemo bool
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Edit the name, address or memo of a bakery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *runtime) error {
				current, err := rt.svc.GetBakery(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !cmd.Flags().Changed("name") {
					name = current.Name
				}
				if !cmd.Flags().Changed("address") {
					address = current.Address
				}
				next := current.Memo
				switch {
				case clearMemo:
					next = nil
				case cmd.Flags().Changed("memo"):
					next = &memo
				}
				vm := viewmodel.NewBakeryViewModel(rt.svc, a.logger)
				bakery, ok := vm.UpdateBakery(cmd.Context(), args[0], name, address, next)
				if !ok {
					return errors.New(vm.State().ErrorMessage)
				}
				return a.printBakery(bakery)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "new name")
	f.StringVar(&address, "address", "", "new address")
	f.StringVar(&memo, "memo", "", "new memo")
	f.BoolVar(&clearMemo, "clear-memo", false, "remove the memo")
	return cmd
}

func (a *app) bakeryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a bakery together with its breads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *runtime) error {
				summary, err := rt.svc.GetBakery(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				vm := viewmodel.NewBakeryViewModel(rt.svc, a.logger)
				vm.ConfirmDelete(summary.Bakery)
				if !vm.DeletePending(cmd.Context()) {
					return errors.New(vm.State().ErrorMessage)
				}
				_, err = fmt.Fprintf(a.out, "deleted %s and %d breads\n", summary.Name, summary.BreadCount)
				return err
			})
		},
	}
}

func (a *app) bakeryFavoriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favorite ID",
		Short: "Toggle the favorite mark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *runtime) error {
				vm := viewmodel.NewBakeryViewModel(rt.svc, a.logger)
				bakery, ok := vm.ToggleFavorite(cmd.Context(), args[0])
				if !ok {
					return errors.New(vm.State().ErrorMessage)
				}
				return a.printBakery(bakery)
			})
		},
	}
}

func (a *app) breadCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "bread", Short: "Manage eaten breads"}
	cmd.AddCommand(a.breadAddCmd(), a.breadListCmd(), a.breadUpdateCmd(), a.breadDeleteCmd())
	return cmd
}

func (a *app) printBreads(breads []domain.Bread) error {
	if a.asJSON {
		return a.printJSON(breads)
	}
	rows := make([][]string, 0, len(breads))
	for _, b := range breads {
		rows = append(rows, []string{b.ID, b.Name, b.Category.DisplayName(), stars(b.Rating), b.EatenAt.Format(dateLayout)})
	}
	return a.table("ID\tNAME\tCATEGORY\tRATING\tEATEN", rows)
}

func (a *app) breadAddCmd() *cobra.Command {
	var (
		in                                   core.BreadInput
		category, memo, eaten, bakery, photo string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a bread",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRuntime(cmd.Context(), func(rt *runtime) error {
				if category != "" {
					cat, err := domain.ParseCategory(category)
					if err != nil {
						return err
					}
					in.Category = cat
				}
				var err error
				if in.EatenAt, err = parseDate(eaten, rt.svc.Location()); err != nil {
					return err
				}
				if cmd.Flags().Changed("memo") {
					in.Memo = &memo
				}
				if bakery != "" {
					in.BakeryID = &bakery
				}
				data, err := readPhoto(photo)
				if err != nil {
					return err
				}
				vm := viewmodel.NewBreadViewModel(rt.svc, a.logger)
				bread, ok := vm.AddBread(cmd.Context(), in, data)
				if !ok {
					return errors.New(vm.State().ErrorMessage)
				}
				return a.printBreads([]domain.Bread{bread})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "", "bread name")
	f.StringVar(&category, "category", "", "category key or display name")
	f.IntVar(&in.Rating, "rating", 0, "rating from 1 to 5")
	f.StringVar(&memo, "memo", "", "tasting note")
	f.StringVar(&eaten, "eaten", "", "date eaten ("+dateLayout+"), defaults to today")
	f.StringVar(&bakery, "bakery", "", "bakery id")
	f.StringVar(&photo, "photo", "", "path to a photo")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (a *app) breadListCmd() *cobra.Command {
	var filter core.BreadFilter
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List breads, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if category != "" {
				cat, err := domain.ParseCategory(category)
				if err != nil {
					return err
				}
				filter.Category = cat
			}
			return a.withRuntime(cmd.Context(), func(rt *runtime) error {
				return a.printBreads(rt.svc.ListBreads(cmd.Context(), filter))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&category, "category", "", "only this category")
	f.StringVar(&filter.BakeryID, "bakery", "", "only breads from this bakery")
	f.IntVar(&filter.MinRating, "min-rating", 0, "minimum rating")
	return cmd
}

// currentPhoto loads the stored photo so an edit keeps it unless replaced.
func currentPhoto(ctx context.Context, svc *core.Service, bread domain.Bread) ([]byte, error) {
	if bread.PhotoKey == "" {
		return nil, nil
	}
	_, data, err := svc.Photo(ctx, domain.EntityBread, bread.ID)
	return data, err
}

func (a *app) breadUpdateCmd() *cobra.Command {
	var (
		name, category, memo, photo string
		rating                      int
		clearPhoto, clearMemo       bool
	)
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Edit a bread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *runtime) error {
				ctx := cmd.Context()
				current, err := rt.svc.GetBread(ctx, args[0])
				if err != nil {
					return err
				}
				edit := viewmodel.BreadEdit{Name: current.Name, Category: current.Category, Rating: current.Rating, Memo: current.Memo}
				flags := cmd.Flags()
				if flags.Changed("name") {
					edit.Name = name
				}
				if flags.Changed("category") {
					if edit.Category, err = domain.ParseCategory(category); err != nil {
						return err
					}
				}
				if flags.Changed("rating") {
					edit.Rating = rating
				}
				switch {
				case clearMemo:
					edit.Memo = nil
				case flags.Changed("memo"):
					edit.Memo = &memo
				}
				switch {
				case clearPhoto:
				case photo != "":
					if edit.Photo, err = readPhoto(photo); err != nil {
						return err
					}
				default:
					if edit.Photo, err = currentPhoto(ctx, rt.svc, current); err != nil {
						return err
					}
				}
				vm := viewmodel.NewBreadViewModel(rt.svc, a.logger)
				bread, ok := vm.UpdateBread(ctx, args[0], edit)
				if !ok {
					return errors.New(vm.State().ErrorMessage)
				}
				return a.printBreads([]domain.Bread{bread})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "new name")
	f.StringVar(&category, "category", "", "new category")
	f.IntVar(&rating, "rating", 0, "new rating")
	f.StringVar(&memo, "memo", "", "new memo")
	f.BoolVar(&clearMemo, "clear-memo", false, "remove the memo")
	f.StringVar(&photo, "photo", "", "replace the photo")
	f.BoolVar(&clearPhoto, "clear-photo", false, "remove the photo")
	return cmd
}

func (a *app) breadDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a bread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *runtime) error {
				vm := viewmodel.NewBreadViewModel(rt.svc, a.logger)
				if !vm.DeleteBread(cmd.Context(), args[0]) {
					return errors.New(vm.State().ErrorMessage)
				}
				_, err := fmt.Fprintf(a.out, "deleted %s\n", args[0])
				return err
			})
		},
	}
}
