package tabular

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const table = `# exported 2024-03-01
code, title, points
WELCOME, Welcome aboard ,10

"A,B",Comma code,5
`

func TestParse(t *testing.T) {
	recs, err := Parse(strings.NewReader(table))
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"code", "title", "points"},
		{"WELCOME", "Welcome aboard", "10"},
		{"A,B", "Comma code", "5"},
	}, recs)
}

func TestParseRejectsBrokenQuotes(t *testing.T) {
	_, err := Parse(strings.NewReader("a,\"b\n"))
	assert.Error(t, err)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codes.csv")
	require.NoError(t, os.WriteFile(path, []byte(table), 0o600))

	src, err := Open(context.Background(), "file://"+path, S3Config{})
	require.NoError(t, err)
	assert.Equal(t, "file://"+path, src.String())

	recs, err := src.Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	_, err = FileSource{Path: filepath.Join(t.TempDir(), "missing.csv")}.Records(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenRejectsBadLocations(t *testing.T) {
	for _, loc := range []string{"", "s3://", "s3://bucket", "s3://bucket/", "s3:///key"} {
		_, err := Open(context.Background(), loc, S3Config{})
		assert.Error(t, err, loc)
	}
}

type fakeGetter struct {
	body string
	err  error
	got  *s3.GetObjectInput
}

func (f *fakeGetter) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestS3Source(t *testing.T) {
	g := &fakeGetter{body: table}
	src := &S3Source{client: g, bucket: "hackbot", key: "codes/current.csv"}

	recs, err := src.Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.Equal(t, "hackbot", aws.ToString(g.got.Bucket))
	assert.Equal(t, "codes/current.csv", aws.ToString(g.got.Key))
	assert.Equal(t, "s3://hackbot/codes/current.csv", src.String())

	g.err = errors.New("NoSuchKey")
	_, err = src.Records(context.Background())
	assert.ErrorContains(t, err, "NoSuchKey")
}
