package timeplus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/timeplus-io/proton-go-driver/v2"
	"github.com/timeplus-io/proton-go-driver/v2/lib/driver"

	"github.com/timeplus-io/tp-monitor-engine/pkg/config"
)

// Column represents a column definition
type Column struct {
	Name     string
	Type     string
	Nullable bool // Whether the column can be NULL
}

// WriteOp distinguishes bulk write operations.
type WriteOp string

const (
	WriteOpInsert WriteOp = "insert"
	WriteOpDelete WriteOp = "delete"
)

// WriteRequest is one item of a bulk write. Inserts into a mutable stream
// act as upserts on the stream's primary key; deletes remove the row with
// the given ID.
type WriteRequest struct {
	Op      WriteOp
	Stream  string
	Columns []string
	Values  []interface{}
	ID      string
}

// WriteResult reports the outcome of one bulk write item. Retryable marks
// the overload failure class; nothing else should be retried.
type WriteResult struct {
	Err       error
	Retryable bool
}

// Overload-class server error codes: TOO_MANY_SIMULTANEOUS_QUERIES and
// TOO_MANY_PARTS. These are the only failures bulk writers retry.
var overloadCodes = map[int32]bool{
	202: true,
	252: true,
}

// IsOverloadError reports whether err belongs to the retryable overload
// class of server failures.
func IsOverloadError(err error) bool {
	var ex *proton.Exception
	if errors.As(err, &ex) {
		return overloadCodes[ex.Code]
	}
	return false
}

// Client is a wrapper around the Timeplus Proton Go driver connection
type Client struct {
	conn      driver.Conn
	workspace string
	address   string
	opts      *proton.Options
}

// NewClient creates a new Timeplus client
func NewClient(cfg *config.TimeplusConfig) (*Client, error) {
	logrus.Infof("Connecting to Timeplus at %s (workspace: %s)", cfg.Address, cfg.Workspace)

	address := cfg.Address
	address = strings.TrimPrefix(address, "http://")
	address = strings.TrimPrefix(address, "https://")

	// Default native port unless the address carries one
	if !strings.Contains(address, ":") {
		address = address + ":8464"
	}

	opts := &proton.Options{
		Addr: []string{address},
		Auth: proton.Auth{
			Database: cfg.Workspace,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    20,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		Compression: &proton.Compression{
			Method: proton.CompressionLZ4,
		},
	}

	conn, err := proton.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection to Timeplus: %w", err)
	}

	// Test connection with retries
	var pingErr error
	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pingErr = conn.Ping(ctx)
		cancel()
		if pingErr == nil {
			break
		}
		logrus.Warnf("Failed to ping Timeplus (attempt %d/5): %v", i+1, pingErr)
		time.Sleep(2 * time.Second)
	}
	if pingErr != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping Timeplus after multiple attempts: %w", pingErr)
	}

	logrus.Info("Successfully connected to Timeplus")

	return &Client{
		conn:      conn,
		workspace: cfg.Workspace,
		address:   address,
		opts:      opts,
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// CreateStream creates a new append-only stream with the given schema
func (c *Client) CreateStream(ctx context.Context, name string, schema []Column) error {
	query := fmt.Sprintf("CREATE STREAM IF NOT EXISTS `%s` (%s)", name, columnsDDL(schema))
	if err := c.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create stream '%s': %w", name, err)
	}
	return nil
}

// EnsureMutableStream creates a mutable stream with the given primary key
// if it does not already exist. Mutable streams give upsert semantics on
// the primary key, which the live alert store relies on.
func (c *Client) EnsureMutableStream(ctx context.Context, name string, schema []Column, primaryKeys []string) error {
	exists, err := c.StreamExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check if stream %s exists: %w", name, err)
	}
	if exists {
		return nil
	}

	query := fmt.Sprintf("CREATE MUTABLE STREAM `%s` (%s) PRIMARY KEY (%s)",
		name, columnsDDL(schema), strings.Join(primaryKeys, ", "))
	if err := c.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create mutable stream %s: %w", name, err)
	}
	logrus.Infof("Created mutable stream %s", name)
	return nil
}

func columnsDDL(schema []Column) string {
	fields := make([]string, len(schema))
	for i, col := range schema {
		nullable := ""
		if col.Nullable {
			nullable = " NULL"
		}
		fields[i] = fmt.Sprintf("`%s` %s%s", col.Name, col.Type, nullable)
	}
	return strings.Join(fields, ", ")
}

// DeleteStream deletes a stream
func (c *Client) DeleteStream(ctx context.Context, name string) error {
	exists, err := c.StreamExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	query := fmt.Sprintf("DROP STREAM `%s`", name)
	if err = c.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to delete stream '%s': %w", name, err)
	}
	return nil
}

// StreamExists checks if a stream exists
func (c *Client) StreamExists(ctx context.Context, name string) (bool, error) {
	escapedName := strings.ReplaceAll(name, "'", "''")
	query := fmt.Sprintf("SHOW STREAMS LIKE '%s'", escapedName)
	rows, err := c.conn.Query(ctx, query)
	if err != nil {
		return false, fmt.Errorf("failed to execute SHOW STREAMS: %w", err)
	}
	defer rows.Close()

	exists := rows.Next()
	if rows.Err() != nil {
		return false, fmt.Errorf("error checking rows from SHOW STREAMS: %w", rows.Err())
	}
	return exists, nil
}

// ExecuteQuery executes a query and returns the result rows as maps keyed
// by column name.
func (c *Client) ExecuteQuery(ctx context.Context, query string) ([]map[string]interface{}, error) {
	rows, err := c.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columnNames := rows.Columns()
	columnTypes := rows.ColumnTypes()

	result := make([]map[string]interface{}, 0)
	for rows.Next() {
		scanArgs := make([]interface{}, len(columnNames))
		for i, ct := range columnTypes {
			scanArgs[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rowMap := make(map[string]interface{})
		for i, name := range columnNames {
			rowMap[name] = reflect.ValueOf(scanArgs[i]).Elem().Interface()
		}
		result = append(result, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return result, nil
}

// ExecuteDDL executes a Data Definition Language (DDL) statement like CREATE or DROP
func (c *Client) ExecuteDDL(ctx context.Context, query string) error {
	if err := c.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to execute DDL query '%s': %w", query, err)
	}
	return nil
}

// InsertIntoStream inserts a row into a stream
func (c *Client) InsertIntoStream(ctx context.Context, streamName string, columns []string, values []interface{}) error {
	query := insertQuery(streamName, columns, values)
	if err := c.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to insert into stream %s: %w", streamName, err)
	}
	return nil
}

// BulkWrite executes each request and reports a per-item result. There is
// no transactional guarantee across items: callers retry the failed subset
// themselves based on the Retryable classification.
func (c *Client) BulkWrite(ctx context.Context, requests []WriteRequest) []WriteResult {
	results := make([]WriteResult, len(requests))
	for i, req := range requests {
		var query string
		switch req.Op {
		case WriteOpDelete:
			query = fmt.Sprintf("DELETE FROM `%s` WHERE id = '%s'",
				req.Stream, strings.ReplaceAll(req.ID, "'", "''"))
		default:
			query = insertQuery(req.Stream, req.Columns, req.Values)
		}
		if err := c.conn.Exec(ctx, query); err != nil {
			results[i] = WriteResult{Err: err, Retryable: IsOverloadError(err)}
		}
	}
	return results
}

func insertQuery(streamName string, columns []string, values []interface{}) string {
	formatted := make([]string, len(values))
	for i, val := range values {
		formatted[i] = FormatValue(val)
	}
	return fmt.Sprintf("INSERT INTO `%s` (%s) VALUES (%s)",
		streamName, strings.Join(columns, ", "), strings.Join(formatted, ", "))
}

// FormatValue renders a Go value as a Timeplus SQL literal.
func FormatValue(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("'%s'", strings.ReplaceAll(v, "'", "''"))
	case time.Time:
		return fmt.Sprintf("'%s'", v.UTC().Format("2006-01-02 15:04:05.000"))
	case *time.Time:
		if v == nil {
			return "null"
		}
		return fmt.Sprintf("'%s'", v.UTC().Format("2006-01-02 15:04:05.000"))
	case bool:
		return fmt.Sprintf("%t", v)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32, float64:
		return fmt.Sprintf("%f", v)
	default:
		return fmt.Sprintf("'%s'", strings.ReplaceAll(fmt.Sprintf("%v", v), "'", "''"))
	}
}

// SanitizeName sanitizes a name to be used in Timeplus identifiers.
func SanitizeName(name string) string {
	sanitized := strings.ReplaceAll(name, " ", "_")
	sanitized = strings.ReplaceAll(sanitized, "-", "_")
	return sanitized
}
