// Package tabular reads small CSV tables (the code catalog, the roster)
// from a local file or an S3 compatible bucket.
package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Source yields the records of one table. Blank lines and lines starting
// with '#' are skipped.
type Source interface {
	Records(ctx context.Context) ([][]string, error)
	String() string
}

// Open resolves a location: s3://bucket/key, file://path or a plain path.
func Open(ctx context.Context, location string, s3cfg S3Config) (Source, error) {
	switch {
	case location == "":
		return nil, errors.New("tabular: empty source location")
	case strings.HasPrefix(location, "s3://"):
		bucket, key, ok := strings.Cut(strings.TrimPrefix(location, "s3://"), "/")
		if !ok || bucket == "" || key == "" {
			return nil, fmt.Errorf("tabular: invalid s3 location %q", location)
		}
		return NewS3Source(ctx, s3cfg, bucket, key)
	default:
		return FileSource{Path: strings.TrimPrefix(location, "file://")}, nil
	}
}

// FileSource reads a CSV file from disk on every call.
type FileSource struct {
	Path string
}

func (f FileSource) Records(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer fh.Close()
	return Parse(fh)
}

func (f FileSource) String() string { return "file://" + f.Path }

// Parse reads CSV records, trimming cells.
func Parse(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		out = append(out, rec)
	}
}
