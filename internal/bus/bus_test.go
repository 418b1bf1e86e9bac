package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_WireFormat(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("6f1c1c1e-4a3e-4f7a-9b8e-0c2d3e4f5a6b")
	b, err := Encode(Event{
		AccountID:        id,
		NewVersion:       7,
		NewBalance:       1250,
		TransactionID:    "tx-1",
		OriginInstanceID: "node-a",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"accountId": "6f1c1c1e-4a3e-4f7a-9b8e-0c2d3e4f5a6b",
		"newVersion": 7,
		"newBalance": 1250,
		"transactionId": "tx-1",
		"originInstanceId": "node-a"
	}`, string(b))
}

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{
			name:    "unknown_fields_ignored",
			payload: `{"accountId":"6f1c1c1e-4a3e-4f7a-9b8e-0c2d3e4f5a6b","newVersion":2,"newBalance":5,"extra":true}`,
		},
		{name: "not_json", payload: `nope`, wantErr: true},
		{name: "missing_account", payload: `{"newVersion":2}`, wantErr: true},
		{name: "bad_uuid", payload: `{"accountId":"x","newVersion":2}`, wantErr: true},
		{name: "zero_version", payload: `{"accountId":"6f1c1c1e-4a3e-4f7a-9b8e-0c2d3e4f5a6b"}`, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Decode([]byte(tt.payload))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNop_SubscribeBlocksUntilDone(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, Nop{}.Publish(ctx, Event{}))
	require.NoError(t, Nop{}.Subscribe(ctx, func(context.Context, Event) {}))
	require.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}

func TestReconnect_RetriesUntilCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	err := Reconnect(ctx, nil, "test", func(ctx context.Context, connected func()) error {
		connected()
		if calls.Add(1) == 3 {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		}
		return errors.New("connection reset")
	})

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}
