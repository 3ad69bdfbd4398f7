package payments

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/payments_engine/internal/engine"
	"github.com/congo-pay/payments_engine/internal/logging"
	"github.com/congo-pay/payments_engine/internal/transaction"
)

func newService() *Service {
	return NewService(engine.New(), logging.Discard())
}

func TestServiceSubmit(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	res, err := svc.Submit(ctx, transaction.Record{Type: "deposit", Client: "7", Tx: "1", Amount: "2.5"})
	require.NoError(t, err)
	assert.Equal(t, engine.Applied, res.Status)
	assert.Equal(t, "2.5000", res.Account.Available.String())

	res, err = svc.Submit(ctx, transaction.Record{Type: "withdrawal", Client: "7", Tx: "2", Amount: "3"})
	require.NoError(t, err)
	assert.Equal(t, engine.Ignored, res.Status)
	assert.Error(t, res.Reason)

	res, err = svc.Submit(ctx, transaction.Record{Type: "deposit", Client: "7", Tx: "3"})
	assert.ErrorIs(t, err, transaction.ErrMissingAmount)
	assert.Equal(t, engine.Rejected, res.Status)

	acc, ok := svc.Account(7)
	require.True(t, ok)
	assert.Equal(t, "2.5000", acc.Total().String())
	assert.Len(t, svc.Accounts(), 1)
}

func TestServiceSubmitBatchCountsOwnRecords(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	_, err := svc.Submit(ctx, transaction.Record{Type: "deposit", Client: "1", Tx: "1", Amount: "1"})
	require.NoError(t, err)

	csv := "type,client,tx,amount\n" +
		"deposit,1,2,5\n" +
		"deposit,1,1,5\n" +
		"refund,1,3,1\n" +
		"dispute,1,2,\n"
	summary, err := svc.SubmitBatch(ctx, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, engine.Summary{Applied: 2, Ignored: 1, Rejected: 1}, summary)

	acc, ok := svc.Account(1)
	require.True(t, ok)
	assert.Equal(t, "1.0000", acc.Available.String())
	assert.Equal(t, "5.0000", acc.Held.String())
}

func TestServiceSubmitBatchBadHeader(t *testing.T) {
	_, err := newService().SubmitBatch(context.Background(), strings.NewReader("foo,bar\n"))
	assert.ErrorIs(t, err, transaction.ErrBadHeader)
}
