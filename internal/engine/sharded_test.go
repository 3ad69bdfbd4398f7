package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/payments_engine/internal/logging"
	"github.com/congo-pay/payments_engine/internal/transaction"
)

func TestShardedMatchesSingleEngine(t *testing.T) {
	ctx := context.Background()

	var b strings.Builder
	b.WriteString("type,client,tx,amount\n")
	tx := 1
	for round := 0; round < 50; round++ {
		for client := 1; client <= 8; client++ {
			fmt.Fprintf(&b, "deposit,%d,%d,%d.25\n", client, tx, round+1)
			dep := tx
			tx++
			fmt.Fprintf(&b, "withdrawal,%d,%d,1\n", client, tx)
			tx++
			switch round % 4 {
			case 0:
				fmt.Fprintf(&b, "dispute,%d,%d,\n", client, dep)
			case 1:
				fmt.Fprintf(&b, "dispute,%d,%d,\n", client, dep-32)
				fmt.Fprintf(&b, "resolve,%d,%d,\n", client, dep-32)
			case 3:
				if client%3 == 0 {
					fmt.Fprintf(&b, "chargeback,%d,%d,\n", client, dep-48)
				} else {
					fmt.Fprintf(&b, "chargeback,%d,%d,\n", client, dep-24)
				}
			}
		}
	}
	input := b.String()

	single := New()
	_, err := Stream(ctx, strings.NewReader(input), single, logging.Discard())
	require.NoError(t, err)

	sharded := NewSharded(ctx, 3, 4)
	_, err = Stream(ctx, strings.NewReader(input), sharded, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, sharded.Close())

	want, got := single.Accounts(), sharded.Accounts()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Client, got[i].Client)
		assert.Equal(t, want[i].Available.String(), got[i].Available.String(), "client %d", want[i].Client)
		assert.Equal(t, want[i].Held.String(), got[i].Held.String(), "client %d", want[i].Client)
		assert.Equal(t, want[i].Locked, got[i].Locked, "client %d", want[i].Client)
	}
	assert.Equal(t, single.Stats(), sharded.Stats())

	acc, ok := sharded.Account(5)
	require.True(t, ok)
	assert.Equal(t, transaction.ClientID(5), acc.Client)
}

func TestShardedSubmitAfterClose(t *testing.T) {
	s := NewSharded(context.Background(), 2, 1)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err := s.Submit(context.Background(), deposit(1, 1, "1"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestShardedCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSharded(ctx, 2, 1)
	cancel()

	assert.ErrorIs(t, s.Close(), context.Canceled)
}

func TestShardedRejectsDepositIDReusedAcrossClients(t *testing.T) {
	ctx := context.Background()
	input := "type,client,tx,amount\n" +
		"deposit,1,1,5\n" +
		"deposit,2,1,7\n" +
		"dispute,2,1,\n" +
		"deposit,2,2,3\n" +
		"withdrawal,2,1,1\n" +
		"deposit,1,1,9\n"

	single := New()
	_, err := Stream(ctx, strings.NewReader(input), single, logging.Discard())
	require.NoError(t, err)

	sharded := NewSharded(ctx, 2, 4)
	_, err = Stream(ctx, strings.NewReader(input), sharded, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, sharded.Close())

	for _, client := range []transaction.ClientID{1, 2} {
		want, ok := single.Account(client)
		require.True(t, ok)
		got, ok := sharded.Account(client)
		require.True(t, ok)
		assert.Equal(t, want.Available.String(), got.Available.String(), "client %d", client)
		assert.Equal(t, want.Held.String(), got.Held.String(), "client %d", client)
	}

	acc, _ := sharded.Account(2)
	assert.Equal(t, "3.0000", acc.Available.String())
	assert.Equal(t, "0.0000", acc.Held.String())
	assert.Equal(t, single.Stats(), sharded.Stats())
	assert.Equal(t, Summary{Applied: 2, Ignored: 4}, sharded.Stats())
}
