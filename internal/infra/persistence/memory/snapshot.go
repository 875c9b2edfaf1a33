package memory

import (
	"encoding/json"
	"fmt"
)

// Bucket names used by the snapshotting SQL stores, one row per bucket.
const (
	BucketBakeries     = "bakeries"
	BucketBreads       = "breads"
	BucketAchievements = "achievements"
)

// Buckets lists every snapshot bucket in persistence order.
var Buckets = []string{BucketBakeries, BucketBreads, BucketAchievements}

// EncodeBucket serializes a single bucket of the snapshot as JSON.
func (s Snapshot) EncodeBucket(bucket string) ([]byte, error) {
	switch bucket {
	case BucketBakeries:
		return json.Marshal(s.Bakeries)
	case BucketBreads:
		return json.Marshal(s.Breads)
	case BucketAchievements:
		return json.Marshal(s.Unlocks)
	default:
		return nil, fmt.Errorf("unknown bucket %q", bucket)
	}
}

// DecodeBucket hydrates one bucket of the snapshot. Unknown buckets are
// ignored so that older binaries can read newer databases.
func (s *Snapshot) DecodeBucket(bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	var target any
	switch bucket {
	case BucketBakeries:
		target = &s.Bakeries
	case BucketBreads:
		target = &s.Breads
	case BucketAchievements:
		target = &s.Unlocks
	default:
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}
