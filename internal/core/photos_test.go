package core

import (
	"breadstamp/internal/blob"
	"breadstamp/pkg/domain"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image/color"
	"testing"
)

// pngWithHeaderSize rewrites the IHDR dimensions of a valid PNG and fixes up
// the chunk checksum, leaving the 1x1 pixel data in place.
func pngWithHeaderSize(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := pngPhoto(t, 1, 1, color.White)
	// signature(8) length(4) "IHDR"(4) width(4) height(4) ... crc at 29
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func blobCount(t *testing.T, blobs blob.Store) int {
	t.Helper()
	infos, err := blobs.List(context.Background(), "")
	if err != nil {
		t.Fatalf("list blobs: %v", err)
	}
	return len(infos)
}

func TestPhotoMustDecode(t *testing.T) {
	blobs := blob.NewMemory()
	svc := newTestService(t, WithBlobStore(blobs))
	ctx := context.Background()
	bread := mustBread(t, svc, BreadInput{Name: "바게트"})

	whole := pngPhoto(t, 64, 64, color.RGBA{G: 120, A: 255})
	cases := map[string][]byte{
		"truncated pixel data": whole[:len(whole)-20],
		"oversized header":     pngWithHeaderSize(t, 40000, 40000),
		"zero width":           pngWithHeaderSize(t, 0, 10),
		"png signature only":   []byte("\x89PNG\r\n\x1a\nnot really"),
	}
	for name, data := range cases {
		if _, err := svc.SetBreadPhoto(ctx, bread.ID, data, ""); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", name, err)
		}
	}
	if got, _ := svc.GetBread(ctx, bread.ID); got.PhotoKey != "" {
		t.Fatalf("rejected photos must not be attached: %+v", got)
	}
	if n := blobCount(t, blobs); n != 0 {
		t.Fatalf("rejected photos must not be stored, got %d blobs", n)
	}
	if svc.images.Len() != 0 {
		t.Fatalf("rejected photos must not be cached")
	}
}

func TestPhotoPixelLimitBoundary(t *testing.T) {
	if _, _, err := inspectImage(pngWithHeaderSize(t, 4096, 3200), ""); err != nil {
		t.Fatalf("4096x3200 is within the limit: %v", err)
	}
	if _, _, err := inspectImage(pngWithHeaderSize(t, 4096, 3201), ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("4096x3201 exceeds the limit, got %v", err)
	}
}

func TestPhotoContentTypeFollowsDecodedFormat(t *testing.T) {
	ct, ext, err := inspectImage(pngPhoto(t, 2, 2, color.White), "image/jpeg")
	if err != nil || ct != "image/png" || ext != ".png" {
		t.Fatalf("got %q %q %v", ct, ext, err)
	}
	if _, _, err := inspectImage(pngPhoto(t, 2, 2, color.White), "text/plain"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("non-image declared type should be rejected, got %v", err)
	}
}

func TestCreateWithPhotoCommitsTogether(t *testing.T) {
	blobs := blob.NewMemory()
	svc := newTestService(t, WithBlobStore(blobs))
	ctx := context.Background()

	photo := pngPhoto(t, 8, 8, color.Black)
	bakery, _, err := svc.CreateBakery(ctx, BakeryInput{Name: "밀도", Photo: &PhotoUpload{Data: photo}})
	if err != nil {
		t.Fatalf("create bakery: %v", err)
	}
	if bakery.PhotoKey != PhotoKey(domain.EntityBakery, bakery.ID, photo, ".png") {
		t.Fatalf("unexpected key %q", bakery.PhotoKey)
	}
	bread, _, err := svc.CreateBread(ctx, BreadInput{Name: "앙버터", BakeryID: &bakery.ID, Photo: &PhotoUpload{Data: photo, ContentType: "image/png"}})
	if err != nil || bread.PhotoKey == "" {
		t.Fatalf("create bread: %+v %v", bread, err)
	}
	if n := blobCount(t, blobs); n != 2 {
		t.Fatalf("expected 2 blobs, got %d", n)
	}
	if _, data, err := svc.Photo(ctx, domain.EntityBread, bread.ID); err != nil || len(data) != len(photo) {
		t.Fatalf("bread photo: %v", err)
	}
}

func TestCreateWithRejectedPhotoStoresNothing(t *testing.T) {
	blobs := blob.NewMemory()
	svc := newTestService(t, WithBlobStore(blobs))
	ctx := context.Background()

	if _, _, err := svc.CreateBakery(ctx, BakeryInput{Name: "밀도", Photo: &PhotoUpload{Data: []byte("not an image at all")}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, _, err := svc.CreateBread(ctx, BreadInput{Name: "소금빵", Photo: &PhotoUpload{Data: pngWithHeaderSize(t, 40000, 40000)}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	// a valid photo on a record the rules reject is staged, then removed
	if _, _, err := svc.CreateBakery(ctx, BakeryInput{Name: "남극 빵집", Latitude: 123, Photo: &PhotoUpload{Data: pngPhoto(t, 4, 4, color.White)}}); err == nil {
		t.Fatalf("expected rule violation")
	}
	store := svc.Store()
	if len(store.ListBakeries()) != 0 || len(store.ListBreads()) != 0 || len(store.ListUnlocks()) != 0 {
		t.Fatalf("failed creates must leave no records or unlocks: %d %d %d",
			len(store.ListBakeries()), len(store.ListBreads()), len(store.ListUnlocks()))
	}
	if n := blobCount(t, blobs); n != 0 {
		t.Fatalf("failed creates must leave no blobs, got %d", n)
	}
	if svc.images.Len() != 0 {
		t.Fatalf("failed creates must leave no cached decodes")
	}
}

func TestUpdateBreadWithRejectedPhotoKeepsFields(t *testing.T) {
	blobs := blob.NewMemory()
	svc := newTestService(t, WithBlobStore(blobs))
	ctx := context.Background()
	original := pngPhoto(t, 4, 4, color.White)
	bread, _, err := svc.CreateBread(ctx, BreadInput{Name: "크루아상", Rating: 3, Photo: &PhotoUpload{Data: original}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	name, rating := "버터 크루아상", 5
	if _, _, err := svc.UpdateBread(ctx, bread.ID, BreadUpdate{Name: &name, Rating: &rating, Photo: &PhotoUpload{Data: []byte("plain text")}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	got, _ := svc.GetBread(ctx, bread.ID)
	if got.Name != "크루아상" || got.Rating != 3 || got.PhotoKey != bread.PhotoKey {
		t.Fatalf("rejected update must change nothing: %+v", got)
	}

	replacement := pngPhoto(t, 4, 4, color.Black)
	updated, _, err := svc.UpdateBread(ctx, bread.ID, BreadUpdate{Name: &name, Photo: &PhotoUpload{Data: replacement}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != name || updated.PhotoKey == bread.PhotoKey || updated.PhotoKey == "" {
		t.Fatalf("unexpected update %+v", updated)
	}
	if _, err := blobs.Head(ctx, bread.PhotoKey); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("replaced photo should be deleted, got %v", err)
	}
	if n := blobCount(t, blobs); n != 1 {
		t.Fatalf("expected only the new blob, got %d", n)
	}
}
