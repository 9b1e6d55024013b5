package board_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/aster/pkg/board"
	"github.com/Ramsey-B/aster/pkg/events"
	"github.com/Ramsey-B/aster/pkg/models"
)

func TestListenerPatchesKnownDeal(t *testing.T) {
	client := newTestClient()
	b := loadTestBoard(t, client)
	listener := board.NewListener(b, getTestLogger())

	now := time.Now().UTC()
	err := listener.Apply(context.Background(), &events.BoardEvent{
		Type:       events.TypeDealUpdated,
		PipelineID: "pipe-1",
		DealID:     "deal-1",
		Deal:       &models.Deal{ID: "deal-1", Title: "Acme Corp", StageID: "stage-a", Amount: 2000},
		Timestamp:  now,
	})
	require.NoError(t, err)

	deal := b.Deal("deal-1")
	require.NotNil(t, deal)
	assert.Equal(t, "Acme Corp", deal.Title)
	assert.Equal(t, 2000.0, deal.Amount)
	assert.Equal(t, now, deal.UpdatedAt)
	assert.Equal(t, 0, client.getCalls)
}

func TestListenerDropsStaleDealSnapshot(t *testing.T) {
	client := newTestClient()
	b := loadTestBoard(t, client)
	listener := board.NewListener(b, getTestLogger())

	now := time.Now().UTC()
	require.NoError(t, listener.Apply(context.Background(), &events.BoardEvent{
		Type:       events.TypeDealUpdated,
		PipelineID: "pipe-1",
		DealID:     "deal-1",
		Deal:       &models.Deal{ID: "deal-1", Title: "Acme Corp", StageID: "stage-a", Amount: 2000},
		Timestamp:  now,
	}))

	// A lagging event with an older snapshot must not clobber the fresher
	// record.
	require.NoError(t, listener.Apply(context.Background(), &events.BoardEvent{
		Type:       events.TypeDealUpdated,
		PipelineID: "pipe-1",
		DealID:     "deal-1",
		Deal:       &models.Deal{ID: "deal-1", Title: "Acme", StageID: "stage-a", Amount: 1000},
		Timestamp:  now.Add(-time.Minute),
	}))

	deal := b.Deal("deal-1")
	assert.Equal(t, "Acme Corp", deal.Title)
	assert.Equal(t, 2000.0, deal.Amount)
	assert.Equal(t, 0, client.getCalls)
}

func TestListenerMovesKnownDeal(t *testing.T) {
	client := newTestClient()
	b := loadTestBoard(t, client)
	listener := board.NewListener(b, getTestLogger())

	err := listener.Apply(context.Background(), &events.BoardEvent{
		Type:        events.TypeDealStageUpdated,
		PipelineID:  "pipe-1",
		DealID:      "deal-1",
		FromStageID: "stage-a",
		ToStageID:   "stage-b",
		Deal:        &models.Deal{ID: "deal-1", Title: "Acme", StageID: "stage-b", Amount: 1000},
	})
	require.NoError(t, err)

	assert.Equal(t, "stage-b", b.Deal("deal-1").StageID)
	assert.Equal(t, 0, client.getCalls)
}

func TestListenerRefetchesUnknownDeal(t *testing.T) {
	client := newTestClient()
	b := loadTestBoard(t, client)
	listener := board.NewListener(b, getTestLogger())

	// Another session created a deal this board has never seen. Refetch
	// instead of inventing a record from the event.
	client.deals = append(client.deals, &models.Deal{ID: "deal-9", Title: "Hooli", StageID: "stage-a"})
	err := listener.Apply(context.Background(), &events.BoardEvent{
		Type:       events.TypeDealCreated,
		PipelineID: "pipe-1",
		DealID:     "deal-9",
		Deal:       &models.Deal{ID: "deal-9", Title: "Hooli", StageID: "stage-a"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, client.getCalls)
	assert.NotNil(t, b.Deal("deal-9"))
}

func TestListenerIgnoresOtherPipelines(t *testing.T) {
	client := newTestClient()
	b := loadTestBoard(t, client)
	listener := board.NewListener(b, getTestLogger())

	err := listener.Apply(context.Background(), &events.BoardEvent{
		Type:       events.TypeDealUpdated,
		PipelineID: "pipe-other",
		DealID:     "deal-1",
		Deal:       &models.Deal{ID: "deal-1", Title: "Clobbered", StageID: "stage-a"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Acme", b.Deal("deal-1").Title)
	assert.Equal(t, 0, client.getCalls)
}

func TestListenerRemovesDeletedDeal(t *testing.T) {
	client := newTestClient()
	b := loadTestBoard(t, client)
	listener := board.NewListener(b, getTestLogger())

	err := listener.Apply(context.Background(), &events.BoardEvent{
		Type:       events.TypeDealDeleted,
		PipelineID: "pipe-1",
		DealID:     "deal-2",
	})
	require.NoError(t, err)
	assert.Nil(t, b.Deal("deal-2"))
}

func TestListenerAppliesReorder(t *testing.T) {
	client := newTestClient()
	b := loadTestBoard(t, client)
	listener := board.NewListener(b, getTestLogger())

	err := listener.Apply(context.Background(), &events.BoardEvent{
		Type:       events.TypeStagesReordered,
		PipelineID: "pipe-1",
		StageOrders: []models.StageOrder{
			{ID: "stage-b", Order: 0},
			{ID: "stage-c", Order: 1},
			{ID: "stage-a", Order: 2},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"stage-b", "stage-c", "stage-a"}, b.StageIDs())
	assert.Equal(t, 0, client.getCalls)
}

func TestListenerRefetchesOnUnknownStageInReorder(t *testing.T) {
	client := newTestClient()
	b := loadTestBoard(t, client)
	listener := board.NewListener(b, getTestLogger())

	err := listener.Apply(context.Background(), &events.BoardEvent{
		Type:       events.TypeStagesReordered,
		PipelineID: "pipe-1",
		StageOrders: []models.StageOrder{
			{ID: "stage-z", Order: 0},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, client.getCalls)
}

func TestListenerRefetchesOnStageCreated(t *testing.T) {
	client := newTestClient()
	b := loadTestBoard(t, client)
	listener := board.NewListener(b, getTestLogger())

	client.pipeline.Stages = append(client.pipeline.Stages, &models.Stage{
		ID: "stage-d", PipelineID: "pipe-1", Name: "Review", Order: 3,
	})
	err := listener.Apply(context.Background(), &events.BoardEvent{
		Type:       events.TypeStageCreated,
		PipelineID: "pipe-1",
		StageID:    "stage-d",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, client.getCalls)
	assert.Equal(t, []string{"stage-a", "stage-b", "stage-c", "stage-d"}, b.StageIDs())
}
