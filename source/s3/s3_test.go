package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kiln/source"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) HeadObject(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.HeadObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) GetObject(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.ListObjectsV2Output)
	return out, args.Error(1)
}

func keyIs(key string) any {
	return mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
		return aws.ToString(in.Bucket) == "assets" && aws.ToString(in.Key) == key
	})
}

func TestSource_Read(t *testing.T) {
	client := new(mockClient)
	src := New(client, "assets", WithPrefix("release"))

	body := "compressed texture bytes"
	client.On("HeadObject", mock.Anything, keyIs("release/tex/rock")).
		Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(body)))}, nil).Once()
	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Key) == "release/tex/rock"
	})).Return(&s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
		ContentRange:  aws.String("bytes 0-23/24"),
	}, nil).Once()

	got, err := src.Read(t.Context(), "tex/rock")
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
	client.AssertExpectations(t)
}

func TestSource_ReadNotFound(t *testing.T) {
	for name, err := range map[string]error{
		"not found":   &types.NotFound{},
		"no such key": &types.NoSuchKey{},
	} {
		t.Run(name, func(t *testing.T) {
			client := new(mockClient)
			src := New(client, "assets")
			client.On("HeadObject", mock.Anything, keyIs("missing")).Return(nil, err).Once()

			_, got := src.Read(t.Context(), "missing")
			require.ErrorIs(t, got, source.ErrNotFound)
		})
	}
}

func TestSource_ReadOtherError(t *testing.T) {
	client := new(mockClient)
	src := New(client, "assets")
	boom := errors.New("throttled")
	client.On("HeadObject", mock.Anything, keyIs("x")).Return(nil, boom).Once()

	_, err := src.Read(t.Context(), "x")
	require.ErrorIs(t, err, boom)
}

func TestSource_ReadEmpty(t *testing.T) {
	client := new(mockClient)
	src := New(client, "assets")
	client.On("HeadObject", mock.Anything, keyIs("empty")).
		Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(0)}, nil).Once()

	got, err := src.Read(t.Context(), "empty")
	require.NoError(t, err)
	assert.Empty(t, got)
	client.AssertNotCalled(t, "GetObject", mock.Anything, mock.Anything)
}

func TestSource_List(t *testing.T) {
	client := new(mockClient)
	src := New(client, "assets", WithPrefix("release/"))

	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken == nil && aws.ToString(in.Prefix) == "release/tex/"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("next"),
		Contents:              []types.Object{{Key: aws.String("release/tex/a")}},
	}, nil).Once()
	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.ToString(in.ContinuationToken) == "next"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated: aws.Bool(false),
		Contents:    []types.Object{{Key: aws.String("release/tex/b")}},
	}, nil).Once()

	names, err := src.List(t.Context(), "tex/")
	require.NoError(t, err)
	assert.Equal(t, []string{"tex/a", "tex/b"}, names)
	client.AssertExpectations(t)
}
