package dynamodb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Redshadow31/tenf-v2-sub007/blobstore"
)

const (
	attrKey  = "key"
	attrData = "data"

	tableWaitTimeout = 2 * time.Minute
)

// Client is the subset of the DynamoDB API used by Store. *dynamodb.Client
// satisfies it.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

var _ Client = (*dynamodb.Client)(nil)

// Options configures a Store.
type Options struct {
	// Prefix is prepended to every key. Default: none.
	Prefix string

	// Region overrides the region from the shared AWS configuration.
	Region string

	// Endpoint overrides the service endpoint (LocalStack, DynamoDB Local).
	Endpoint string

	// AccessKeyID and SecretAccessKey set static credentials.
	AccessKeyID     string
	SecretAccessKey string

	// ConsistentRead makes reads and scans strongly consistent. Default: true.
	ConsistentRead bool
}

// Store implements blobstore.BlobStore on a DynamoDB table.
type Store struct {
	client Client
	table  string
	prefix string
	opts   Options
}

var (
	_ blobstore.BlobStore = (*Store)(nil)
	_ blobstore.Getter    = (*Store)(nil)
	_ blobstore.Aborter   = (*itemWriter)(nil)
)

// New loads the default AWS configuration and returns a Store for table.
func New(ctx context.Context, table string, optFns ...func(o *Options)) (*Store, error) {
	if table == "" {
		return nil, errors.New("dynamodb: table is required")
	}

	opts := Options{ConsistentRead: true}
	for _, fn := range optFns {
		fn(&opts)
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("dynamodb: load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	return NewStore(client, table, func(o *Options) { *o = opts }), nil
}

// NewStore creates a Store around an existing client.
func NewStore(client Client, table string, optFns ...func(o *Options)) *Store {
	opts := Options{ConsistentRead: true}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Store{
		client: client,
		table:  table,
		prefix: strings.Trim(opts.Prefix, "/"),
		opts:   opts,
	}
}

// Table returns the table name.
func (s *Store) Table() string {
	return s.table
}

func (s *Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *Store) rel(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.prefix+"/")
}

func (s *Store) itemKey(name string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrKey: &types.AttributeValueMemberS{Value: s.key(name)},
	}
}

// EnsureTable creates the table if it does not exist and waits until it is
// active.
func (s *Store) EnsureTable(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err == nil {
		return nil
	}
	var nf *types.ResourceNotFoundException
	if !errors.As(err, &nf) {
		return err
	}

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrKey), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("dynamodb: create table %s: %w", s.table, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)}, tableWaitTimeout)
}

// Get fetches the payload of one item.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.itemKey(name),
		ConsistentRead: aws.Bool(s.opts.ConsistentRead),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Item) == 0 {
		return nil, &os.PathError{Op: "get", Path: name, Err: blobstore.ErrNotFound}
	}

	data, ok := resp.Item[attrData].(*types.AttributeValueMemberB)
	if !ok {
		return nil, fmt.Errorf("dynamodb: item %s has no binary %q attribute", name, attrData)
	}
	if data.Value == nil {
		return []byte{}, nil
	}
	return data.Value, nil
}

// Open fetches the item and serves reads from memory.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	data, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return &itemBlob{data: data}, nil
}

// Put stores data as one item, replacing any previous item.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			attrKey:  &types.AttributeValueMemberS{Value: s.key(name)},
			attrData: &types.AttributeValueMemberB{Value: data},
		},
	})
	return err
}

// Create buffers writes and stores the item on Close.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	return &itemWriter{ctx: ctx, store: s, name: name}, nil
}

// Delete removes an item. Deleting a missing item succeeds.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       s.itemKey(name),
	})
	return err
}

// List scans the table for keys starting with prefix. Scan order is hash
// order, so the result is sorted before returning.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	input := &dynamodb.ScanInput{
		TableName:                aws.String(s.table),
		ProjectionExpression:     aws.String("#k"),
		ExpressionAttributeNames: map[string]string{"#k": attrKey},
		ConsistentRead:           aws.Bool(s.opts.ConsistentRead),
	}
	if full := s.key(prefix); full != "" {
		input.FilterExpression = aws.String("begins_with(#k, :p)")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberS{Value: full},
		}
	}

	names := []string{}
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			k, ok := item[attrKey].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			names = append(names, s.rel(k.Value))
		}
	}

	sort.Strings(names)
	return names, nil
}

type itemBlob struct {
	data []byte
}

func (b *itemBlob) Close() error { return nil }

func (b *itemBlob) Size() int64 { return int64(len(b.data)) }

func (b *itemBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= int64(len(b.data)) {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	end := min(off+length, int64(len(b.data)))
	return io.NopCloser(bytes.NewReader(b.data[off:end])), nil
}

type itemWriter struct {
	ctx    context.Context
	store  *Store
	name   string
	buf    bytes.Buffer
	closed bool
}

func (w *itemWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, os.ErrClosed
	}
	return w.buf.Write(p)
}

func (w *itemWriter) Close() error {
	if w.closed {
		return os.ErrClosed
	}
	w.closed = true
	return w.store.Put(w.ctx, w.name, w.buf.Bytes())
}

// Abort drops the buffered payload without storing the item.
func (w *itemWriter) Abort() error {
	w.closed = true
	w.buf.Reset()
	return nil
}
