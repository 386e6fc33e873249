// Package opstore keeps the latest known snapshot of tracked operations in Redis and broadcasts every update on a
// pub/sub channel, so that operations submitted by one process can be inspected and followed from another.
package opstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	"github.com/bigtable-lro/sdk-go/lro"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/encoding/protojson"
)

const (
	DefaultKeyPrefix = "operations:"
	DefaultChannel   = "operation_updates"
	scanBatch        = 100
)

var (
	ErrOperationNotFound = errors.New("operation not found")
	ErrEmptyName         = errors.New("empty operation name")
)

// A Record is the stored snapshot of one operation.
type Record struct {
	Name         string          `json:"name"`
	Method       string          `json:"method,omitempty"`
	State        lro.State       `json:"state"`
	Done         bool            `json:"done"`
	ErrorCode    codes.Code      `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Operation    json.RawMessage `json:"operation,omitempty"`
}

// NewRecord builds a record from a fetched operation.
func NewRecord(method string, op *longrunningpb.Operation, now time.Time) (Record, error) {
	raw, err := protojson.Marshal(op)
	if err != nil {
		return Record{}, fmt.Errorf("failed to marshal operation: %w", err)
	}
	record := Record{
		Name:      op.GetName(),
		Method:    method,
		State:     lro.StatePending,
		Done:      op.GetDone(),
		UpdatedAt: now.UTC(),
		Operation: raw,
	}
	switch {
	case !op.GetDone():
	case op.GetError() != nil:
		record.State = lro.StateFailed
		record.ErrorCode = codes.Code(op.GetError().GetCode())
		record.ErrorMessage = op.GetError().GetMessage()
	default:
		record.State = lro.StateSucceeded
	}
	return record, nil
}

// Proto decodes the stored operation.
func (r Record) Proto() (*longrunningpb.Operation, error) {
	op := &longrunningpb.Operation{}
	if len(r.Operation) == 0 {
		return op, nil
	}
	if err := protojson.Unmarshal(r.Operation, op); err != nil {
		return nil, fmt.Errorf("failed to unmarshal operation: %w", err)
	}
	return op, nil
}

// Options are options for creating a [Store].
type Options struct {
	// Redis client. Required.
	Client redis.UniversalClient
	// Prefix of record keys. Defaults to [DefaultKeyPrefix].
	KeyPrefix string
	// Pub/sub channel updates are published on. Defaults to [DefaultChannel].
	Channel string
	// Expiry of records. Zero keeps them until deleted.
	TTL time.Duration
	// Defaults to a no-op logger.
	Logger *zap.Logger
}

// A Store saves operation records in Redis.
type Store struct {
	options Options
}

// New creates a [Store] from the provided [Options].
func New(options Options) (*Store, error) {
	if options.Client == nil {
		return nil, errors.New("nil redis client")
	}
	if options.TTL < 0 {
		return nil, fmt.Errorf("TTL must not be negative, got %s", options.TTL)
	}
	if options.KeyPrefix == "" {
		options.KeyPrefix = DefaultKeyPrefix
	}
	if options.Channel == "" {
		options.Channel = DefaultChannel
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	return &Store{options: options}, nil
}

func (s *Store) key(name string) string {
	return s.options.KeyPrefix + name
}

// Save writes record and publishes it to subscribers.
func (s *Store) Save(ctx context.Context, record Record) error {
	if record.Name == "" {
		return ErrEmptyName
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := s.options.Client.Set(ctx, s.key(record.Name), data, s.options.TTL).Err(); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	if err := s.options.Client.Publish(ctx, s.options.Channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish record: %w", err)
	}
	return nil
}

// Load reads the record of the named operation. Returns [ErrOperationNotFound] if there is none.
func (s *Store) Load(ctx context.Context, name string) (Record, error) {
	val, err := s.options.Client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, fmt.Errorf("%w: %s", ErrOperationNotFound, name)
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to load record: %w", err)
	}
	var record Record
	if err := json.Unmarshal(val, &record); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return record, nil
}

// List returns all stored records sorted by name. Records that disappear or fail to decode while listing are
// skipped.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	var names []string
	var cursor uint64
	for {
		keys, next, err := s.options.Client.Scan(ctx, cursor, s.options.KeyPrefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan records: %w", err)
		}
		for _, key := range keys {
			names = append(names, strings.TrimPrefix(key, s.options.KeyPrefix))
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	sort.Strings(names)

	records := make([]Record, 0, len(names))
	for i, name := range names {
		if i > 0 && names[i-1] == name {
			// SCAN may return a key more than once.
			continue
		}
		record, err := s.Load(ctx, name)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.options.Logger.Debug("skipping record", zap.String("operation", name), zap.Error(err))
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// Delete removes the record of the named operation. Deleting a missing record is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := s.options.Client.Del(ctx, s.key(name)).Err(); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// Subscribe delivers every record saved from now on until ctx ends, at which point the channel is closed.
// Messages that fail to decode are logged and dropped.
func (s *Store) Subscribe(ctx context.Context) (<-chan Record, error) {
	pubsub := s.options.Client.Subscribe(ctx, s.options.Channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	messages := pubsub.Channel()
	records := make(chan Record)
	go func() {
		defer close(records)
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var record Record
				if err := json.Unmarshal([]byte(msg.Payload), &record); err != nil {
					s.options.Logger.Warn("failed to unmarshal record", zap.Error(err))
					continue
				}
				select {
				case records <- record:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return records, nil
}
