package gcsarchive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/budgetbook/internal/domain"
)

// Archiver writes built reports to a GCS bucket as inert JSON snapshots.
// Reports remain derived state recomputed per request; archives are copies
// kept for audit and offline inspection.
type Archiver struct {
	bucket string
}

// NewArchiver creates an Archiver targeting the given bucket. Application
// Default Credentials are assumed.
func NewArchiver(bucket string) *Archiver {
	return &Archiver{bucket: bucket}
}

// ArchiveReport uploads the report as JSON and returns its gs:// URI.
func (a *Archiver) ArchiveReport(ctx context.Context, rep *domain.Report, now time.Time) (string, error) {
	if a.bucket == "" {
		return "", fmt.Errorf("ArchiveReport: no bucket configured")
	}

	body, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("ArchiveReport: marshaling report: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("ArchiveReport: creating storage client: %w", err)
	}
	defer client.Close()

	objectName := objectName(rep, now)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("ArchiveReport: writing object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("ArchiveReport: finalizing upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", a.bucket, objectName), nil
}

// FetchReport downloads and decodes an archived report by its gs:// URI.
func (a *Archiver) FetchReport(ctx context.Context, gcsURI string) (*domain.Report, error) {
	bucket, object, err := parseGCSURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("FetchReport: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchReport: creating storage client: %w", err)
	}
	defer client.Close()

	rd, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchReport: opening object: %w", err)
	}
	defer rd.Close()

	body, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("FetchReport: reading object: %w", err)
	}

	var rep domain.Report
	if err := json.Unmarshal(body, &rep); err != nil {
		return nil, fmt.Errorf("FetchReport: decoding report: %w", err)
	}
	return &rep, nil
}

// objectName builds a deterministic-per-instant object path:
// reports/<workspace>/<first-bucket-label>_<upload-ts>.json.
func objectName(rep *domain.Report, now time.Time) string {
	label := "empty"
	if len(rep.Buckets) > 0 {
		label = rep.Buckets[0].Label
	}
	return fmt.Sprintf("reports/%s/%s_%s.json",
		rep.WorkspaceID, label, now.UTC().Format("20060102T150405Z"))
}

func parseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}
