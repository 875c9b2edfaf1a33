package core

import (
	"breadstamp/internal/blob"
	"breadstamp/pkg/domain"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow }), WithLocation(time.UTC)}, opts...)
	svc := NewInMemoryService(opts...)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func mustBakery(t *testing.T, svc *Service, name string) domain.Bakery {
	t.Helper()
	b, _, err := svc.CreateBakery(context.Background(), BakeryInput{Name: name, Address: "서울", Latitude: 37.5, Longitude: 127})
	if err != nil {
		t.Fatalf("create bakery %s: %v", name, err)
	}
	return b
}

func mustBread(t *testing.T, svc *Service, in BreadInput) domain.Bread {
	t.Helper()
	b, _, err := svc.CreateBread(context.Background(), in)
	if err != nil {
		t.Fatalf("create bread %s: %v", in.Name, err)
	}
	return b
}

func pngPhoto(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestCreateBakeryValidatesAndTrims(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, _, err := svc.CreateBakery(ctx, BakeryInput{Name: "   "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	memo := "  "
	visited := testNow.AddDate(0, 0, -3)
	b, _, err := svc.CreateBakery(ctx, BakeryInput{Name: "  밀도 ", Address: " 성수 ", Memo: &memo, VisitedAt: &visited, IsFavorite: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Name != "밀도" || b.Address != "성수" || b.Memo != nil || !b.VisitedAt.Equal(visited) || !b.IsFavorite {
		t.Fatalf("unexpected bakery %+v", b)
	}
}

func TestCoordinateRuleBlocksOutOfRange(t *testing.T) {
	svc := newTestService(t)
	_, _, err := svc.CreateBakery(context.Background(), BakeryInput{Name: "nowhere", Latitude: 120})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if list, _ := svc.ListBakeries(context.Background()); len(list) != 0 {
		t.Fatalf("blocked bakery must not be stored")
	}
}

func TestUpdateAndToggleFavorite(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	b := mustBakery(t, svc, "태극당")
	name, memo := "태극당 본점", "모나카"
	updated, _, err := svc.UpdateBakery(ctx, b.ID, BakeryUpdate{Name: &name, Memo: &memo})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != name || updated.Memo == nil || *updated.Memo != memo || updated.Address != b.Address {
		t.Fatalf("unexpected update %+v", updated)
	}
	blank := ""
	if _, _, err := svc.UpdateBakery(ctx, b.ID, BakeryUpdate{Name: &blank}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	fav, _, err := svc.ToggleFavorite(ctx, b.ID)
	if err != nil || !fav.IsFavorite {
		t.Fatalf("toggle on: %+v %v", fav, err)
	}
	fav, _, err = svc.ToggleFavorite(ctx, b.ID)
	if err != nil || fav.IsFavorite {
		t.Fatalf("toggle off: %+v %v", fav, err)
	}
	if _, _, err := svc.ToggleFavorite(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := svc.UpdateBakery(ctx, "missing", BakeryUpdate{}); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateBreadRatingAndReferences(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	bakery := mustBakery(t, svc, "성심당")
	cases := []struct {
		in   int
		want int
	}{{0, domain.DefaultRating}, {-2, domain.MinRating}, {9, domain.MaxRating}, {4, 4}}
	for _, tc := range cases {
		b := mustBread(t, svc, BreadInput{Name: "튀김소보로", Category: domain.CategorySweetBun, Rating: tc.in, BakeryID: &bakery.ID})
		if b.Rating != tc.want {
			t.Fatalf("rating %d: got %d want %d", tc.in, b.Rating, tc.want)
		}
	}
	loose := mustBread(t, svc, BreadInput{Name: "편의점 빵"})
	if loose.Category != domain.CategoryOther || loose.BakeryID != nil {
		t.Fatalf("unexpected defaults %+v", loose)
	}
	missing := "nope"
	if _, _, err := svc.CreateBread(ctx, BreadInput{Name: "x", BakeryID: &missing}); !IsNotFound(err) {
		t.Fatalf("expected missing bakery, got %v", err)
	}
	if _, _, err := svc.CreateBread(ctx, BreadInput{Name: "x", Category: "pizza"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid category, got %v", err)
	}
	summary, err := svc.GetBakery(ctx, bakery.ID)
	if err != nil {
		t.Fatalf("get bakery: %v", err)
	}
	if summary.BreadCount != 4 || summary.AverageRating != 3.25 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestUpdateBreadReassignsAndClears(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	a, b := mustBakery(t, svc, "a"), mustBakery(t, svc, "b")
	bread := mustBread(t, svc, BreadInput{Name: "바게트", Category: domain.CategoryOther, Rating: 3, BakeryID: &a.ID})
	rating, cat := 7, domain.CategoryToast
	got, _, err := svc.UpdateBread(ctx, bread.ID, BreadUpdate{Rating: &rating, Category: &cat, BakeryID: &b.ID})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Rating != domain.MaxRating || got.Category != cat || !got.BelongsTo(b.ID) {
		t.Fatalf("unexpected update %+v", got)
	}
	clear := ""
	got, _, err = svc.UpdateBread(ctx, bread.ID, BreadUpdate{BakeryID: &clear})
	if err != nil || got.BakeryID != nil {
		t.Fatalf("expected bakery cleared: %+v %v", got, err)
	}
	missing := "gone"
	if _, _, err := svc.UpdateBread(ctx, bread.ID, BreadUpdate{BakeryID: &missing}); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := svc.UpdateBread(ctx, "gone", BreadUpdate{}); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListBreadsFilter(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	bakery := mustBakery(t, svc, "b")
	mustBread(t, svc, BreadInput{Name: "1", Category: domain.CategoryBagel, Rating: 5, BakeryID: &bakery.ID})
	mustBread(t, svc, BreadInput{Name: "2", Category: domain.CategoryBagel, Rating: 2})
	mustBread(t, svc, BreadInput{Name: "3", Category: domain.CategoryDonut, Rating: 4, BakeryID: &bakery.ID})
	names := func(bs []domain.Bread) map[string]bool {
		out := map[string]bool{}
		for _, b := range bs {
			out[b.Name] = true
		}
		return out
	}
	if diff := cmp.Diff(map[string]bool{"1": true, "2": true}, names(svc.ListBreads(ctx, BreadFilter{Category: domain.CategoryBagel}))); diff != "" {
		t.Fatalf("category filter (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]bool{"1": true, "3": true}, names(svc.ListBreads(ctx, BreadFilter{MinRating: 4}))); diff != "" {
		t.Fatalf("rating filter (-want +got):\n%s", diff)
	}
	own, err := svc.BreadsForBakery(ctx, bakery.ID)
	if err != nil || len(own) != 2 {
		t.Fatalf("breads for bakery: %d %v", len(own), err)
	}
	if _, err := svc.BreadsForBakery(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteBakeryCascadesBreadsAndPhotos(t *testing.T) {
	blobs := blob.NewMemory()
	svc := newTestService(t, WithBlobStore(blobs))
	ctx := context.Background()
	bakery := mustBakery(t, svc, "르뱅")
	bread := mustBread(t, svc, BreadInput{Name: "깜빠뉴", BakeryID: &bakery.ID})
	if _, err := svc.SetBakeryPhoto(ctx, bakery.ID, pngPhoto(t, 4, 4, color.White), ""); err != nil {
		t.Fatalf("bakery photo: %v", err)
	}
	if _, err := svc.SetBreadPhoto(ctx, bread.ID, pngPhoto(t, 4, 4, color.Black), "image/png"); err != nil {
		t.Fatalf("bread photo: %v", err)
	}
	if infos, _ := blobs.List(ctx, ""); len(infos) != 2 {
		t.Fatalf("expected 2 blobs, got %d", len(infos))
	}
	if _, err := svc.DeleteBakery(ctx, bakery.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetBread(ctx, bread.ID); !IsNotFound(err) {
		t.Fatalf("bread should cascade, got %v", err)
	}
	if infos, _ := blobs.List(ctx, ""); len(infos) != 0 {
		t.Fatalf("photos should be removed, got %+v", infos)
	}
	if _, err := svc.DeleteBakery(ctx, bakery.ID); !IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestDeleteBread(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	bread := mustBread(t, svc, BreadInput{Name: "도넛", Category: domain.CategoryDonut})
	if _, err := svc.DeleteBread(ctx, bread.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.DeleteBread(ctx, bread.ID); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPhotoReplaceAndThumbnail(t *testing.T) {
	blobs := blob.NewMemory()
	svc := newTestService(t, WithBlobStore(blobs))
	ctx := context.Background()
	bakery := mustBakery(t, svc, "photo")
	if _, _, err := svc.Photo(ctx, domain.EntityBakery, bakery.ID); !IsNotFound(err) {
		t.Fatalf("expected no photo yet, got %v", err)
	}
	first := pngPhoto(t, 600, 300, color.RGBA{R: 200, A: 255})
	updated, err := svc.SetBakeryPhoto(ctx, bakery.ID, first, "")
	if err != nil {
		t.Fatalf("set photo: %v", err)
	}
	if updated.PhotoKey != PhotoKey(domain.EntityBakery, bakery.ID, first, ".png") {
		t.Fatalf("unexpected key %s", updated.PhotoKey)
	}
	again, err := svc.SetBakeryPhoto(ctx, bakery.ID, first, "image/png")
	if err != nil || again.PhotoKey != updated.PhotoKey {
		t.Fatalf("re-upload should keep key: %+v %v", again, err)
	}
	info, data, err := svc.Photo(ctx, domain.EntityBakery, bakery.ID)
	if err != nil || !bytes.Equal(data, first) || info.ContentType != "image/png" {
		t.Fatalf("photo round trip failed: %+v %v", info, err)
	}

	for i := 0; i < 2; i++ {
		thumb, err := svc.Thumbnail(ctx, domain.EntityBakery, bakery.ID, 100)
		if err != nil {
			t.Fatalf("thumbnail: %v", err)
		}
		img, err := jpeg.Decode(bytes.NewReader(thumb))
		if err != nil {
			t.Fatalf("decode thumbnail: %v", err)
		}
		if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
			t.Fatalf("unexpected thumbnail size %v", b)
		}
	}
	if !svc.images.Contains(updated.PhotoKey) {
		t.Fatalf("decoded photo should be cached")
	}

	second := pngPhoto(t, 10, 10, color.White)
	replaced, err := svc.SetBakeryPhoto(ctx, bakery.ID, second, "")
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if _, err := blobs.Head(ctx, updated.PhotoKey); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("old photo should be deleted, got %v", err)
	}
	if svc.images.Contains(updated.PhotoKey) {
		t.Fatalf("old decode should be invalidated")
	}
	cleared, err := svc.SetBakeryPhoto(ctx, bakery.ID, nil, "")
	if err != nil || cleared.PhotoKey != "" {
		t.Fatalf("clear photo: %+v %v", cleared, err)
	}
	if _, err := blobs.Head(ctx, replaced.PhotoKey); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("cleared photo should be deleted, got %v", err)
	}
}

func TestPhotoRejectsNonImages(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	bread := mustBread(t, svc, BreadInput{Name: "x"})
	if _, err := svc.SetBreadPhoto(ctx, bread.ID, []byte("plain text, not an image"), ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := svc.SetBreadPhoto(ctx, "missing", pngPhoto(t, 1, 1, color.White), ""); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.PhotoURL(ctx, domain.EntityAchievement, "x", 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid entity, got %v", err)
	}
}

func TestAchievementsUnlockOnMutationAndStick(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	bakery := mustBakery(t, svc, "첫 빵집")
	unlocks := svc.Store().ListUnlocks()
	if len(unlocks) != 1 || unlocks[0].ID != "first_stamp" || !unlocks[0].UnlockedAt.Equal(testNow) {
		t.Fatalf("expected first_stamp unlocked at clock time, got %+v", unlocks)
	}
	for i := 0; i < 5; i++ {
		mustBread(t, svc, BreadInput{Name: "최고", Rating: 5, BakeryID: &bakery.ID})
	}
	if _, err := svc.DeleteBakery(ctx, bakery.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	all, err := svc.Achievements(ctx)
	if err != nil {
		t.Fatalf("achievements: %v", err)
	}
	unlocked := map[string]bool{}
	for _, a := range all {
		if a.IsUnlocked() {
			unlocked[a.ID] = true
		}
	}
	want := map[string]bool{"first_stamp": true, "first_bread": true, "five_star": true}
	if diff := cmp.Diff(want, unlocked); diff != "" {
		t.Fatalf("unlocks should survive deletion (-want +got):\n%s", diff)
	}
}

func TestAchievementsRecordsPendingUnlocks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Store().RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateBread(domain.Bread{Name: "raw", Category: domain.CategoryCake, Rating: 3})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(svc.Store().ListUnlocks()) != 0 {
		t.Fatalf("direct store writes should not unlock")
	}
	if _, err := svc.Achievements(ctx); err != nil {
		t.Fatalf("achievements: %v", err)
	}
	unlocks := svc.Store().ListUnlocks()
	if len(unlocks) != 1 || unlocks[0].ID != "first_bread" {
		t.Fatalf("expected first_bread recorded, got %+v", unlocks)
	}
}

func TestStatisticsReflectMutations(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	bakery := mustBakery(t, svc, "s")
	mustBread(t, svc, BreadInput{Name: "a", Category: domain.CategoryCake, Rating: 4, BakeryID: &bakery.ID})
	s, err := svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s.TotalBakeries != 1 || s.TotalBreads != 1 || s.AverageRating != 4 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if _, _, err := svc.ToggleFavorite(ctx, bakery.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	s, _ = svc.Statistics(ctx)
	if s.FavoriteBakeries != 1 {
		t.Fatalf("favorite change should invalidate cached stats: %+v", s)
	}
}

type recordingMetrics struct {
	mu  sync.Mutex
	ops map[string][]bool
}

func (r *recordingMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ops == nil {
		r.ops = map[string][]bool{}
	}
	r.ops[op] = append(r.ops[op], success)
}

func TestOperationsAreObserved(t *testing.T) {
	rec := &recordingMetrics{}
	svc := newTestService(t, WithMetrics(rec))
	mustBakery(t, svc, "m")
	_, _, _ = svc.CreateBakery(context.Background(), BakeryInput{})
	if diff := cmp.Diff([]bool{true, false}, rec.ops["create_bakery"]); diff != "" {
		t.Fatalf("create_bakery observations (-want +got):\n%s", diff)
	}
}
