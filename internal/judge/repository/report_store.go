package repository

import (
	"bytes"
	"context"
	"errors"

	"olymp/internal/common/storage"
	"olymp/internal/judge/report"
	appErr "olymp/pkg/errors"
)

const (
	reportKeyPrefix   = "runs/"
	reportKeySuffix   = ".json.zst"
	reportContentType = "application/zstd"
)

// ReportStore keeps compressed run reports in object storage.
type ReportStore struct {
	storage storage.ObjectStorage
	bucket  string
}

// NewReportStore creates a store writing to bucket.
func NewReportStore(objects storage.ObjectStorage, bucket string) *ReportStore {
	return &ReportStore{storage: objects, bucket: bucket}
}

// Init makes sure the bucket exists.
func (s *ReportStore) Init(ctx context.Context) error {
	if err := s.storage.EnsureBucket(ctx, s.bucket); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "prepare report bucket failed")
	}
	return nil
}

// Put uploads the report of runID.
func (s *ReportStore) Put(ctx context.Context, runID string, rep report.Report) error {
	if runID == "" {
		return appErr.ValidationError("run_id", "required")
	}
	var buf bytes.Buffer
	if err := report.Encode(&buf, rep, true); err != nil {
		return err
	}
	size := int64(buf.Len())
	if err := s.storage.PutObject(ctx, s.bucket, reportKey(runID), &buf, size, reportContentType); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "upload run report failed")
	}
	return nil
}

// Get downloads and decodes the report of runID.
func (s *ReportStore) Get(ctx context.Context, runID string) (report.Report, error) {
	if runID == "" {
		return report.Report{}, appErr.ValidationError("run_id", "required")
	}
	rc, err := s.storage.GetObject(ctx, s.bucket, reportKey(runID))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return report.Report{}, appErr.New(appErr.ReportNotFound).WithMessage("run report not found")
		}
		return report.Report{}, appErr.Wrapf(err, appErr.StorageError, "download run report failed")
	}
	defer rc.Close()
	return report.Decode(rc, true)
}

func reportKey(runID string) string {
	return reportKeyPrefix + runID + reportKeySuffix
}
