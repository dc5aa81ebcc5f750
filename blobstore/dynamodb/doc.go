// Package dynamodb provides a DynamoDB implementation of the
// blobstore.BlobStore interface.
//
// Each blob is one item in a table with a string partition key named "key"
// and the payload in a binary attribute named "data":
//
//	aws dynamodb create-table \
//	  --table-name tenf-records \
//	  --attribute-definitions AttributeName=key,AttributeType=S \
//	  --key-schema AttributeName=key,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
//
// Store.EnsureTable creates the same table programmatically.
//
// DynamoDB caps items at 400 KB, which is ample for JSON records but rules the
// backend out for large blobs. Listing is a filtered Scan: it reads the whole
// table and is meant for the small administrative collections this store
// holds, not for hot paths.
package dynamodb
