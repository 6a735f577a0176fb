package objstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves fixed pages keyed by continuation token.
type fakeS3 struct {
	pages   map[string]*s3.ListObjectsV2Output
	objects map[string]string
	inputs  []*s3.ListObjectsV2Input
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.inputs = append(f.inputs, in)
	out, ok := f.pages[aws.ToString(in.ContinuationToken)]
	if !ok {
		return nil, errors.New("bad token")
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewBufferString(body))}, nil
}

func objectsOut(truncated bool, next string, keys ...string) *s3.ListObjectsV2Output {
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(truncated)}
	if next != "" {
		out.NextContinuationToken = aws.String(next)
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out
}

func TestS3Store_EnumeratesAcrossContinuationTokens(t *testing.T) {
	// Given: a listing split over three pages
	fake := &fakeS3{pages: map[string]*s3.ListObjectsV2Output{
		"":   objectsOut(true, "c1", "posts/1.json", "posts/2.json"),
		"c1": objectsOut(true, "c2", "posts/3.json"),
		"c2": objectsOut(false, "", "posts/4.json", "posts/readme.txt"),
	}}
	store := NewS3StoreWithClient(fake, 2)

	// When
	keys, err := (&Enumerator{Store: store, Bucket: "bkt", Prefix: "posts/"}).Enumerate(context.Background())

	// Then
	require.NoError(t, err)
	assert.Equal(t, []string{"posts/1.json", "posts/2.json", "posts/3.json", "posts/4.json", "posts/readme.txt"}, keys)
	require.Len(t, fake.inputs, 3)
	assert.Nil(t, fake.inputs[0].ContinuationToken)
	assert.Equal(t, "c2", aws.ToString(fake.inputs[2].ContinuationToken))
	assert.Equal(t, "bkt", aws.ToString(fake.inputs[0].Bucket))
	assert.Equal(t, int32(2), aws.ToInt32(fake.inputs[0].MaxKeys))
}

func TestS3Store_TruncatedWithoutToken(t *testing.T) {
	fake := &fakeS3{pages: map[string]*s3.ListObjectsV2Output{"": objectsOut(true, "", "posts/1.json")}}

	_, err := NewS3StoreWithClient(fake, 0).ListPage(context.Background(), "b", "posts/", "")

	assert.Error(t, err)
}

func TestS3Store_Get(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"posts/1.json": `{"id":"1"}`}}
	store := NewS3StoreWithClient(fake, 0)

	body, err := store.Get(context.Background(), "b", "posts/1.json")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`, string(body))

	_, err = store.Get(context.Background(), "b", "posts/2.json")
	assert.ErrorIs(t, err, ErrNotFound)
}
