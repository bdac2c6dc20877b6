package timeplus

import (
	"context"
)

// TimeplusClient defines the interface for a Timeplus client.
// This allows us to mock the client for testing.
type TimeplusClient interface {
	StreamExists(ctx context.Context, name string) (bool, error)
	CreateStream(ctx context.Context, name string, schema []Column) error
	EnsureMutableStream(ctx context.Context, name string, schema []Column, primaryKeys []string) error
	DeleteStream(ctx context.Context, name string) error
	ExecuteQuery(ctx context.Context, query string) ([]map[string]interface{}, error)
	ExecuteDDL(ctx context.Context, query string) error
	InsertIntoStream(ctx context.Context, streamName string, columns []string, values []interface{}) error
	BulkWrite(ctx context.Context, requests []WriteRequest) []WriteResult
	Close() error
}

// Ensure Client implements TimeplusClient
var _ TimeplusClient = (*Client)(nil)
