package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/barbershop-booking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRecorder struct{ mock.Mock }

func (m *mockRecorder) Put(ctx context.Context, n *domain.Notification) error {
	return m.Called(ctx, n).Error(0)
}

type stubSink struct {
	res Result
	err error
}

func (s stubSink) Deliver(context.Context, Message) (Result, error) { return s.res, s.err }

func TestAudited_RecordsOutcome(t *testing.T) {
	rec := &mockRecorder{}
	rec.On("Put", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.UserID == "c1" && n.Channel == "local" && n.Outcome == "delivered" &&
			n.Title == "Almost your turn" && n.DeliveryID == "queue-a1" && !n.CreatedAt.IsZero()
	})).Return(nil)

	sink := WithAudit(stubSink{res: Result{Channel: ChannelLocal, Outcome: OutcomeDelivered, DeliveryID: "queue-a1"}}, rec, nil)
	res, err := sink.Deliver(context.Background(), queueMessage())

	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, res.Outcome)
	rec.AssertExpectations(t)
}

func TestAudited_RecordFailureDoesNotSurface(t *testing.T) {
	rec := &mockRecorder{}
	rec.On("Put", mock.Anything, mock.Anything).Return(errors.New("throttled"))

	sink := WithAudit(stubSink{res: Result{Channel: ChannelRelay, Outcome: OutcomeDelivered, DeliveryID: "d-1"}}, rec, nil)
	res, err := sink.Deliver(context.Background(), queueMessage())

	require.NoError(t, err)
	assert.Equal(t, "d-1", res.DeliveryID)
	rec.AssertExpectations(t)
}

func TestAudited_DeliveryErrorPassesThroughAndIsRecorded(t *testing.T) {
	rec := &mockRecorder{}
	rec.On("Put", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.Outcome == "token-invalid"
	})).Return(nil)

	sink := WithAudit(stubSink{res: Result{Channel: ChannelRelay}, err: domain.ErrTokenInvalid}, rec, nil)
	res, err := sink.Deliver(context.Background(), queueMessage())

	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	assert.Equal(t, OutcomeTokenInvalid, res.Outcome)
	rec.AssertExpectations(t)
}

func TestRecord_UsesUncancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &mockRecorder{}
	rec.On("Put", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }), mock.Anything).Return(nil)

	Record(ctx, rec, nil, queueMessage(), Result{Channel: ChannelLocal, Outcome: OutcomeCancelled})
	rec.AssertExpectations(t)
}
