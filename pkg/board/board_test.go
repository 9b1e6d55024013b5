package board_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/aster/pkg/board"
	"github.com/Ramsey-B/aster/pkg/models"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

type moveCall struct {
	DealID  string
	StageID string
}

// stubClient is an in-memory board API. Mutations are applied to its own
// copies so a reload after failure returns the server's truth, not the
// client's optimistic view.
type stubClient struct {
	pipeline *models.Pipeline
	deals    []*models.Deal

	moveErr    error
	reorderErr error

	moveCalls    []moveCall
	reorderCalls [][]models.StageOrder
	getCalls     int
}

func (c *stubClient) GetPipeline(ctx context.Context, pipelineID string) (*models.Pipeline, error) {
	c.getCalls++
	cp := *c.pipeline
	cp.Stages = append([]*models.Stage(nil), c.pipeline.Stages...)
	return &cp, nil
}

func (c *stubClient) ListDeals(ctx context.Context, pipelineID string) ([]*models.Deal, error) {
	return append([]*models.Deal(nil), c.deals...), nil
}

func (c *stubClient) MoveDeal(ctx context.Context, dealID string, stageID string) (*models.Deal, error) {
	c.moveCalls = append(c.moveCalls, moveCall{DealID: dealID, StageID: stageID})
	if c.moveErr != nil {
		return nil, c.moveErr
	}
	for _, d := range c.deals {
		if d.ID == dealID {
			d.StageID = stageID
			d.UpdatedAt = time.Now().UTC()
			cp := *d
			return &cp, nil
		}
	}
	return nil, httperror.NewHTTPError(http.StatusNotFound, "deal not found")
}

func (c *stubClient) ReorderStages(ctx context.Context, pipelineID string, orders []models.StageOrder) error {
	c.reorderCalls = append(c.reorderCalls, orders)
	if c.reorderErr != nil {
		return c.reorderErr
	}
	for _, o := range orders {
		for _, s := range c.pipeline.Stages {
			if s.ID == o.ID {
				s.Order = o.Order
			}
		}
	}
	return nil
}

func newTestClient() *stubClient {
	return &stubClient{
		pipeline: &models.Pipeline{
			ID:       "pipe-1",
			TenantID: "tenant-1",
			Name:     "Sales",
			IsActive: true,
			Stages: []*models.Stage{
				{ID: "stage-a", PipelineID: "pipe-1", Name: "Lead", Order: 0},
				{ID: "stage-b", PipelineID: "pipe-1", Name: "Negotiation", Order: 1},
				{ID: "stage-c", PipelineID: "pipe-1", Name: "Won", Order: 2, Type: models.StageTypeWon},
			},
		},
		deals: []*models.Deal{
			{ID: "deal-1", Title: "Acme", StageID: "stage-a", Amount: 1000},
			{ID: "deal-2", Title: "Globex", StageID: "stage-a", Amount: 250},
			{ID: "deal-3", Title: "Initech", StageID: "stage-b", Amount: 9000},
		},
	}
}

func loadTestBoard(t *testing.T, client *stubClient) *board.Board {
	t.Helper()
	b := board.New(client, getTestLogger())
	require.NoError(t, b.Load(context.Background(), "pipe-1"))
	client.getCalls = 0
	return b
}

func TestBoardLoadColumns(t *testing.T) {
	client := newTestClient()
	b := loadTestBoard(t, client)

	columns := b.Columns()
	require.Len(t, columns, 3)
	assert.Equal(t, "stage-a", columns[0].Stage.ID)
	assert.Len(t, columns[0].Deals, 2)
	assert.Len(t, columns[1].Deals, 1)
	assert.Empty(t, columns[2].Deals)
}

func TestBoardMoveDealNoOp(t *testing.T) {
	client := newTestClient()
	b := loadTestBoard(t, client)

	// Already in stage-a, nothing should hit the server.
	err := b.MoveDeal(context.Background(), "deal-1", "stage-a")
	require.NoError(t, err)
	assert.Empty(t, client.moveCalls)
}

func TestBoardMoveDealSuccess(t *testing.T) {
	client := newTestClient()
	b := loadTestBoard(t, client)

	err := b.MoveDeal(context.Background(), "deal-1", "stage-b")
	require.NoError(t, err)
	require.Len(t, client.moveCalls, 1)
	assert.Equal(t, moveCall{DealID: "deal-1", StageID: "stage-b"}, client.moveCalls[0])

	moved := b.Deal("deal-1")
	require.NotNil(t, moved)
	assert.Equal(t, "stage-b", moved.StageID)

	// No refetch needed on success, the optimistic value matches the server.
	assert.Equal(t, 0, client.getCalls)
}

func TestBoardMoveDealRollbackOnFailure(t *testing.T) {
	client := newTestClient()
	client.moveErr = httperror.NewHTTPError(http.StatusBadRequest, "stage belongs to a different pipeline")
	b := loadTestBoard(t, client)

	err := b.MoveDeal(context.Background(), "deal-1", "stage-b")
	require.Error(t, err)
	require.Len(t, client.moveCalls, 1)

	// Reverted to the pre-move state.
	reverted := b.Deal("deal-1")
	require.NotNil(t, reverted)
	assert.Equal(t, "stage-a", reverted.StageID)
}

func TestBoardMoveUnknownDeal(t *testing.T) {
	client := newTestClient()
	b := loadTestBoard(t, client)

	err := b.MoveDeal(context.Background(), "nope", "stage-b")
	require.Error(t, err)
	assert.Empty(t, client.moveCalls)
}

func TestBoardReorderStages(t *testing.T) {
	client := newTestClient()
	b := loadTestBoard(t, client)

	err := b.ReorderStages(context.Background(), []string{"stage-c", "stage-a", "stage-b"})
	require.NoError(t, err)

	require.Len(t, client.reorderCalls, 1)
	assert.Equal(t, []models.StageOrder{
		{ID: "stage-c", Order: 0},
		{ID: "stage-a", Order: 1},
		{ID: "stage-b", Order: 2},
	}, client.reorderCalls[0])

	assert.Equal(t, []string{"stage-c", "stage-a", "stage-b"}, b.StageIDs())
}

func TestBoardReorderReloadsOnFailure(t *testing.T) {
	client := newTestClient()
	client.reorderErr = httperror.NewHTTPError(http.StatusConflict, "duplicate order")
	b := loadTestBoard(t, client)

	err := b.ReorderStages(context.Background(), []string{"stage-c", "stage-a", "stage-b"})
	require.Error(t, err)

	// The optimistic order is discarded for the server's truth.
	assert.Equal(t, 1, client.getCalls)
	assert.Equal(t, []string{"stage-a", "stage-b", "stage-c"}, b.StageIDs())
}

func TestBoardReorderUnknownStage(t *testing.T) {
	client := newTestClient()
	b := loadTestBoard(t, client)

	err := b.ReorderStages(context.Background(), []string{"stage-a", "ghost", "stage-b"})
	require.Error(t, err)
	assert.Empty(t, client.reorderCalls)
	assert.Equal(t, []string{"stage-a", "stage-b", "stage-c"}, b.StageIDs())
}
