package s3

import (
	"context"
	"testing"
)

func TestDecodeAWSChunked(t *testing.T) {
	body := []byte("5\r\nhello\r\n0\r\nx-amz-checksum-crc32:abc=\r\n\r\n")
	got, ok := decodeAWSChunked(body)
	if !ok || string(got) != "hello" {
		t.Fatalf("decode chunked: %q %v", got, ok)
	}
	signed := []byte("3;chunk-signature=deadbeef\r\nabc\r\n0;chunk-signature=x\r\n\r\n")
	if got, ok := decodeAWSChunked(signed); !ok || string(got) != "abc" {
		t.Fatalf("decode signed chunk: %q %v", got, ok)
	}
	for _, raw := range []string{"plain body", "zz\r\nabc\r\n0", "9\r\nabc\r\n0"} {
		if _, ok := decodeAWSChunked([]byte(raw)); ok {
			t.Fatalf("expected %q to be treated as raw", raw)
		}
	}
}

func TestNewValidatesBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
	store, err := New(context.Background(), Config{Bucket: "photos", Endpoint: "http://127.0.0.1:9000", PathStyle: true, AccessKeyID: "a", SecretAccessKey: "b"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if store.Bucket() != "photos" || store.Driver() != "s3" {
		t.Fatalf("unexpected store %+v", store)
	}
}

func TestMockListReportsSizes(t *testing.T) {
	store := NewMockForTests()
	infos, err := store.List(context.Background(), "")
	if err != nil || len(infos) != 0 {
		t.Fatalf("expected empty bucket, got %+v %v", infos, err)
	}
}
