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
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Redshadow31/tenf-v2-sub007/blobstore"
	"github.com/Redshadow31/tenf-v2-sub007/internal/hash"
)

func withPrefix(prefix string) func(o *Options) {
	return func(o *Options) { o.Prefix = prefix }
}

func TestStore_Open(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", withPrefix("prod"))

	t.Run("NotFound", func(t *testing.T) {
		mockClient.On("HeadObject", mock.Anything, mock.MatchedBy(func(input *s3.HeadObjectInput) bool {
			return *input.Bucket == "test-bucket" && *input.Key == "prod/c/2024-06/foo.json"
		})).Return(nil, &types.NotFound{}).Once()

		_, err := store.Open(context.Background(), "c/2024-06/foo.json")
		assert.True(t, blobstore.IsNotFound(err))
	})

	t.Run("Success", func(t *testing.T) {
		mockClient.On("HeadObject", mock.Anything, mock.MatchedBy(func(input *s3.HeadObjectInput) bool {
			return *input.Bucket == "test-bucket" && *input.Key == "prod/c/2024-06/bar.json"
		})).Return(&s3.HeadObjectOutput{
			ContentLength: aws.Int64(100),
		}, nil).Once()

		blob, err := store.Open(context.Background(), "c/2024-06/bar.json")
		require.NoError(t, err)
		assert.Equal(t, int64(100), blob.Size())
	})

	t.Run("OtherErrorsPassThrough", func(t *testing.T) {
		denied := &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
		mockClient.On("HeadObject", mock.Anything, mock.MatchedBy(func(input *s3.HeadObjectInput) bool {
			return *input.Key == "prod/c/2024-06/secret.json"
		})).Return(nil, denied).Once()

		_, err := store.Open(context.Background(), "c/2024-06/secret.json")
		require.Error(t, err)
		assert.False(t, blobstore.IsNotFound(err))

		var apiErr smithy.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "AccessDenied", apiErr.ErrorCode())
	})
}

func TestStore_Get(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket")

	mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
		return *input.Key == "c/2024-06/alice.json" && input.Range == nil
	})).Return(&s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader(`{"approved":true}`)),
	}, nil).Once()

	mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
		return *input.Key == "c/2024-06/bob.json"
	})).Return(nil, &smithy.GenericAPIError{Code: "NoSuchKey"}).Once()

	data, err := store.Get(context.Background(), "c/2024-06/alice.json")
	require.NoError(t, err)
	assert.Equal(t, `{"approved":true}`, string(data))

	_, err = store.Get(context.Background(), "c/2024-06/bob.json")
	assert.True(t, blobstore.IsNotFound(err))

	mockClient.AssertExpectations(t)
}

func TestStore_MissingBucketIsNotNotFound(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "typo-bucket")

	mockClient.On("GetObject", mock.Anything, mock.Anything).
		Return(nil, &types.NoSuchBucket{Message: aws.String("bucket does not exist")}).Once()
	mockClient.On("DeleteObject", mock.Anything, mock.Anything).
		Return(nil, &smithy.GenericAPIError{Code: "NoSuchBucket"}).Once()

	_, err := store.Get(context.Background(), "c/2024-06/alice.json")
	require.Error(t, err)
	assert.False(t, blobstore.IsNotFound(err))

	err = store.Delete(context.Background(), "c/2024-06/alice.json")
	require.Error(t, err)
	assert.False(t, blobstore.IsNotFound(err))

	mockClient.AssertExpectations(t)
}

func TestStore_Put(t *testing.T) {
	data := []byte(`{"approved":true}`)

	t.Run("WithChecksum", func(t *testing.T) {
		mockClient := new(MockS3Client)
		store := NewStore(mockClient, "test-bucket", withPrefix("prod/"))

		mockClient.On("PutObject", mock.Anything, mock.MatchedBy(func(input *s3.PutObjectInput) bool {
			return *input.Key == "prod/c/2024-06/alice.json" &&
				aws.ToInt64(input.ContentLength) == int64(len(data)) &&
				aws.ToString(input.ChecksumCRC32C) == hash.CRC32CBase64(data)
		})).Return(&s3.PutObjectOutput{}, nil).Once()

		require.NoError(t, store.Put(context.Background(), "c/2024-06/alice.json", data))
		mockClient.AssertExpectations(t)
	})

	t.Run("WithoutChecksum", func(t *testing.T) {
		mockClient := new(MockS3Client)
		store := NewStore(mockClient, "test-bucket", func(o *Options) { o.Checksum = false })

		mockClient.On("PutObject", mock.Anything, mock.MatchedBy(func(input *s3.PutObjectInput) bool {
			return input.ChecksumCRC32C == nil
		})).Return(&s3.PutObjectOutput{}, nil).Once()

		require.NoError(t, store.Put(context.Background(), "c/2024-06/alice.json", data))
		mockClient.AssertExpectations(t)
	})
}

func TestStore_Delete(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", withPrefix("prod"))

	mockClient.On("DeleteObject", mock.Anything, mock.MatchedBy(func(input *s3.DeleteObjectInput) bool {
		return *input.Bucket == "test-bucket" && *input.Key == "prod/c/2024-06/del.json"
	})).Return(&s3.DeleteObjectOutput{}, nil).Once()

	assert.NoError(t, store.Delete(context.Background(), "c/2024-06/del.json"))
	mockClient.AssertExpectations(t)
}

func TestStore_List(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", withPrefix("prod/"))

	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(input *s3.ListObjectsV2Input) bool {
		return *input.Bucket == "test-bucket" && *input.Prefix == "prod/c/2024-06/"
	})).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{
			{Key: aws.String("prod/c/2024-06/b.json")},
			{Key: aws.String("prod/c/2024-06/a.json")},
		},
	}, nil).Once()

	keys, err := store.List(context.Background(), "c/2024-06/")
	require.NoError(t, err)
	assert.Equal(t, []string{"c/2024-06/a.json", "c/2024-06/b.json"}, keys)
}

func TestStore_List_EmptyPrefixStaysUnderRoot(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", withPrefix("prod"))

	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(input *s3.ListObjectsV2Input) bool {
		return *input.Prefix == "prod/"
	})).Return(&s3.ListObjectsV2Output{}, nil).Once()

	keys, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys)
	mockClient.AssertExpectations(t)
}

func TestStore_Keys_Pagination(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", withPrefix("prod/"))

	page1 := func(input *s3.ListObjectsV2Input) bool { return input.ContinuationToken == nil }
	page2 := func(input *s3.ListObjectsV2Input) bool {
		return input.ContinuationToken != nil && *input.ContinuationToken == "token"
	}

	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(page1)).Return(&s3.ListObjectsV2Output{
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("token"),
		Contents:              []types.Object{{Key: aws.String("prod/c/2024-06/1.json")}},
	}, nil).Twice()

	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(page2)).Return(&s3.ListObjectsV2Output{
		IsTruncated: aws.Bool(false),
		Contents:    []types.Object{{Key: aws.String("prod/c/2024-06/2.json")}},
	}, nil).Once()

	var keys []string
	for k, err := range store.Keys(context.Background(), "c/") {
		require.NoError(t, err)
		keys = append(keys, k)
	}
	assert.Equal(t, []string{"c/2024-06/1.json", "c/2024-06/2.json"}, keys)

	// Breaking after the first key must not fetch the second page.
	for k, err := range store.Keys(context.Background(), "c/") {
		require.NoError(t, err)
		assert.Equal(t, "c/2024-06/1.json", k)
		break
	}

	mockClient.AssertExpectations(t)
}

func TestStore_Keys_Error(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket")

	boom := errors.New("network down")
	mockClient.On("ListObjectsV2", mock.Anything, mock.Anything).Return(nil, boom).Once()

	_, err := store.List(context.Background(), "c/")
	require.ErrorIs(t, err, boom)
}

func TestBlob_ReadRange(t *testing.T) {
	mockClient := new(MockS3Client)
	blob := &s3Blob{
		client: mockClient,
		bucket: "b",
		key:    "k",
		size:   10,
	}

	mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
		return *input.Bucket == "b" && *input.Key == "k" && *input.Range == "bytes=2-6"
	})).Return(&s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader("llo W")),
	}, nil).Once()

	r, err := blob.ReadRange(context.Background(), 2, 5)
	require.NoError(t, err)
	defer r.Close()

	buf, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "llo W", string(buf))

	empty, err := blob.ReadRange(context.Background(), 20, 5)
	require.NoError(t, err)
	rest, err := io.ReadAll(empty)
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func TestStore_Create(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", withPrefix("prod"))

	var uploaded []byte
	mockClient.On("PutObject", mock.Anything, mock.MatchedBy(func(input *s3.PutObjectInput) bool {
		return *input.Bucket == "test-bucket" && *input.Key == "prod/c/2024-06/new.json"
	})).Run(func(args mock.Arguments) {
		input := args.Get(1).(*s3.PutObjectInput)
		uploaded, _ = io.ReadAll(input.Body)
	}).Return(&s3.PutObjectOutput{}, nil).Once()

	wb, err := store.Create(context.Background(), "c/2024-06/new.json")
	require.NoError(t, err)

	_, err = wb.Write([]byte(`{"v":`))
	require.NoError(t, err)
	_, err = wb.Write([]byte(`1}`))
	require.NoError(t, err)

	require.NoError(t, wb.Close())
	assert.Equal(t, `{"v":1}`, string(uploaded))

	_, err = wb.Write([]byte("late"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestStore_CreateAbort(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket")

	mockClient.On("PutObject", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		_, _ = io.ReadAll(args.Get(1).(*s3.PutObjectInput).Body)
	}).Return(nil, context.Canceled).Maybe()

	wb, err := store.Create(context.Background(), "c/2024-06/partial.json")
	require.NoError(t, err)

	aborter, ok := wb.(blobstore.Aborter)
	require.True(t, ok)
	require.NoError(t, aborter.Abort())

	assert.ErrorIs(t, wb.Close(), context.Canceled)
}

func TestStore_EnsureBucket(t *testing.T) {
	t.Run("Exists", func(t *testing.T) {
		mockClient := new(MockS3Client)
		store := NewStore(mockClient, "test-bucket")

		mockClient.On("HeadBucket", mock.Anything, mock.Anything).Return(&s3.HeadBucketOutput{}, nil).Once()

		require.NoError(t, store.EnsureBucket(context.Background()))
		mockClient.AssertNotCalled(t, "CreateBucket", mock.Anything, mock.Anything)
	})

	t.Run("Creates", func(t *testing.T) {
		mockClient := new(MockS3Client)
		store := NewStore(mockClient, "test-bucket", func(o *Options) { o.Region = "eu-west-3" })

		mockClient.On("HeadBucket", mock.Anything, mock.Anything).Return(nil, &types.NotFound{}).Once()
		mockClient.On("CreateBucket", mock.Anything, mock.MatchedBy(func(input *s3.CreateBucketInput) bool {
			return input.CreateBucketConfiguration != nil &&
				input.CreateBucketConfiguration.LocationConstraint == types.BucketLocationConstraint("eu-west-3")
		})).Return(&s3.CreateBucketOutput{}, nil).Once()

		require.NoError(t, store.EnsureBucket(context.Background()))
		mockClient.AssertExpectations(t)
	})

	t.Run("NoSuchBucket", func(t *testing.T) {
		mockClient := new(MockS3Client)
		store := NewStore(mockClient, "test-bucket")

		mockClient.On("HeadBucket", mock.Anything, mock.Anything).Return(nil, &types.NoSuchBucket{}).Once()
		mockClient.On("CreateBucket", mock.Anything, mock.Anything).Return(&s3.CreateBucketOutput{}, nil).Once()

		require.NoError(t, store.EnsureBucket(context.Background()))
		mockClient.AssertExpectations(t)
	})
}
