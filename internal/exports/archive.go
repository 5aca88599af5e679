package exports

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"campusworks.org/idcard-admin/internal/records"
)

// buildArchive assembles the zip: records.csv plus one photo per record
// under photos/. Photos are fetched sequentially; a failed fetch logs,
// counts as missed, and leaves the slot empty rather than failing the job.
func (s *Service) buildArchive(ctx context.Context, recs []records.Record, includePhotos bool) ([]byte, int, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	csvData, err := marshalCSV(recs)
	if err != nil {
		return nil, 0, err
	}
	w, err := zw.Create("records.csv")
	if err != nil {
		return nil, 0, fmt.Errorf("create csv entry: %w", err)
	}
	if _, err := w.Write(csvData); err != nil {
		return nil, 0, fmt.Errorf("write csv entry: %w", err)
	}

	missed := 0
	if includePhotos && s.photos != nil {
		for _, rec := range recs {
			url := rec.Field(records.KeyPhotoURL)
			if url == "" {
				continue
			}
			photo, err := s.photos.Fetch(ctx, url)
			if err != nil {
				missed++
				s.logger.Warn("exports: photo fetch failed",
					zap.String("record", rec.ID()), zap.String("url", url), zap.Error(err))
				continue
			}
			name := fmt.Sprintf("photos/%s.jpg", rec.ID())
			pw, err := zw.Create(name)
			if err != nil {
				return nil, 0, fmt.Errorf("create photo entry %s: %w", name, err)
			}
			if _, err := pw.Write(photo); err != nil {
				return nil, 0, fmt.Errorf("write photo entry %s: %w", name, err)
			}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, 0, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), missed, nil
}

// marshalCSV writes one row per record over the union of all field keys,
// sorted for a stable column order.
func marshalCSV(recs []records.Record) ([]byte, error) {
	keySet := map[string]struct{}{}
	for _, rec := range recs {
		for k := range rec {
			keySet[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(keys); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	row := make([]string, len(keys))
	for _, rec := range recs {
		for i, k := range keys {
			row[i] = rec[k]
		}
		if err := cw.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// entropySource is a lock-guarded monotonic ulid entropy reader, safe for
// concurrent Submit calls.
type entropySource struct {
	mu  sync.Mutex
	src *ulid.MonotonicEntropy
}

func newEntropySource() *entropySource {
	return &entropySource{
		src: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func (e *entropySource) Read(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src.Read(p)
}
