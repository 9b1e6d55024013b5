package deal_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	dealsvc "github.com/Ramsey-B/aster/internal/services/deal"
	boarderrors "github.com/Ramsey-B/aster/pkg/errors"
	"github.com/Ramsey-B/aster/pkg/events"
	"github.com/Ramsey-B/aster/pkg/models"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

type fakeDealRepo struct {
	deals       map[string]*models.Deal
	updateCalls int
	updateErr   error
}

func (r *fakeDealRepo) Create(ctx context.Context, deal *models.Deal) (*models.Deal, error) {
	if deal.ID == "" {
		deal.ID = "deal-new"
	}
	r.deals[deal.ID] = deal
	return deal, nil
}

func (r *fakeDealRepo) GetByID(ctx context.Context, tenantID, id string) (*models.Deal, error) {
	d, ok := r.deals[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "deal not found")
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDealRepo) ListByPipeline(ctx context.Context, tenantID, pipelineID string) ([]*models.Deal, error) {
	out := make([]*models.Deal, 0, len(r.deals))
	for _, d := range r.deals {
		out = append(out, d)
	}
	return out, nil
}

func (r *fakeDealRepo) ListByStage(ctx context.Context, tenantID, stageID string) ([]*models.Deal, error) {
	var out []*models.Deal
	for _, d := range r.deals {
		if d.StageID == stageID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeDealRepo) Update(ctx context.Context, deal *models.Deal) (*models.Deal, error) {
	r.updateCalls++
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	r.deals[deal.ID] = deal
	return deal, nil
}

func (r *fakeDealRepo) Delete(ctx context.Context, tenantID, id string) error {
	if _, ok := r.deals[id]; !ok {
		return httperror.NewHTTPError(http.StatusNotFound, "deal not found")
	}
	delete(r.deals, id)
	return nil
}

type fakeStageRepo struct {
	stages map[string]*models.Stage
}

func (r *fakeStageRepo) GetByID(ctx context.Context, tenantID, id string) (*models.Stage, error) {
	s, ok := r.stages[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "stage not found")
	}
	return s, nil
}

func (r *fakeStageRepo) Create(ctx context.Context, stage *models.Stage) (*models.Stage, error) {
	return stage, nil
}

func (r *fakeStageRepo) ListByPipeline(ctx context.Context, tenantID, pipelineID string) ([]*models.Stage, error) {
	return nil, nil
}

func (r *fakeStageRepo) Update(ctx context.Context, stage *models.Stage) (*models.Stage, error) {
	return stage, nil
}

func (r *fakeStageRepo) Delete(ctx context.Context, tenantID, id string) error {
	return nil
}

func (r *fakeStageRepo) CountDeals(ctx context.Context, tenantID, stageID string) (int, error) {
	return 0, nil
}

func (r *fakeStageRepo) SetOrders(ctx context.Context, tenantID, pipelineID string, orders []models.StageOrder) error {
	return nil
}

func (r *fakeStageRepo) InsertAfter(ctx context.Context, stage *models.Stage, afterStageID string) (*models.Stage, error) {
	return stage, nil
}

type fakeActivityRepo struct {
	activities []*models.Activity
}

func (r *fakeActivityRepo) Create(ctx context.Context, activity *models.Activity) (*models.Activity, error) {
	r.activities = append(r.activities, activity)
	return activity, nil
}

func (r *fakeActivityRepo) ListByDeal(ctx context.Context, tenantID, dealID string) ([]*models.Activity, error) {
	return r.activities, nil
}

type recordingEmitter struct {
	events []*events.BoardEvent
}

func (e *recordingEmitter) Emit(ctx context.Context, event *events.BoardEvent) {
	e.events = append(e.events, event)
}

type recordingCache struct {
	invalidated []string
}

func (c *recordingCache) InvalidatePipeline(ctx context.Context, tenantID, pipelineID string) error {
	c.invalidated = append(c.invalidated, pipelineID)
	return nil
}

type fixture struct {
	service    *dealsvc.Service
	deals      *fakeDealRepo
	stages     *fakeStageRepo
	activities *fakeActivityRepo
	emitter    *recordingEmitter
	cache      *recordingCache
}

func newFixture() *fixture {
	deals := &fakeDealRepo{deals: map[string]*models.Deal{
		"deal-1": {ID: "deal-1", TenantID: "tenant-1", Title: "Acme", StageID: "stage-a", Amount: 1000},
	}}
	stages := &fakeStageRepo{stages: map[string]*models.Stage{
		"stage-a": {ID: "stage-a", TenantID: "tenant-1", PipelineID: "pipe-1", Name: "Lead", Order: 0},
		"stage-b": {ID: "stage-b", TenantID: "tenant-1", PipelineID: "pipe-1", Name: "Won", Order: 1},
		"stage-x": {ID: "stage-x", TenantID: "tenant-1", PipelineID: "pipe-2", Name: "Other", Order: 0},
	}}
	activities := &fakeActivityRepo{}
	emitter := &recordingEmitter{}
	cache := &recordingCache{}

	return &fixture{
		service:    dealsvc.NewService(deals, stages, activities, emitter, cache, getTestLogger()),
		deals:      deals,
		stages:     stages,
		activities: activities,
		emitter:    emitter,
		cache:      cache,
	}
}

func strPtr(s string) *string { return &s }

func TestUpdateDealStageMove(t *testing.T) {
	f := newFixture()

	updated, err := f.service.UpdateDeal(context.Background(), "tenant-1", "user-1", "deal-1",
		models.DealPatch{StageID: strPtr("stage-b")})
	require.NoError(t, err)
	assert.Equal(t, "stage-b", updated.StageID)

	require.Len(t, f.emitter.events, 1)
	event := f.emitter.events[0]
	assert.Equal(t, events.TypeDealStageUpdated, event.Type)
	assert.Equal(t, "stage-a", event.FromStageID)
	assert.Equal(t, "stage-b", event.ToStageID)
	assert.Equal(t, "pipe-1", event.PipelineID)
	require.NotNil(t, event.Deal)

	require.Len(t, f.activities.activities, 1)
	activity := f.activities.activities[0]
	assert.Equal(t, models.ActivityStageChange, activity.Type)
	assert.Equal(t, "stage-a", activity.Metadata.FromStage)
	assert.Equal(t, "stage-b", activity.Metadata.ToStage)
	assert.Equal(t, "user-1", activity.UserID)

	assert.Equal(t, []string{"pipe-1"}, f.cache.invalidated)
}

func TestUpdateDealCrossPipelineRejected(t *testing.T) {
	f := newFixture()

	_, err := f.service.UpdateDeal(context.Background(), "tenant-1", "user-1", "deal-1",
		models.DealPatch{StageID: strPtr("stage-x")})
	require.Error(t, err)

	be, ok := boarderrors.AsBoardError(err)
	require.True(t, ok, "expected board error, got: %v", err)
	assert.Equal(t, boarderrors.CodeInvalidStageReference, be.Code)

	// Nothing persisted, nothing announced.
	assert.Equal(t, 0, f.deals.updateCalls)
	assert.Empty(t, f.emitter.events)
	assert.Equal(t, "stage-a", f.deals.deals["deal-1"].StageID)
}

func TestUpdateDealFieldEdit(t *testing.T) {
	f := newFixture()

	updated, err := f.service.UpdateDeal(context.Background(), "tenant-1", "user-1", "deal-1",
		models.DealPatch{Title: strPtr("Acme Corp")})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", updated.Title)
	assert.Equal(t, "stage-a", updated.StageID)

	require.Len(t, f.emitter.events, 1)
	assert.Equal(t, events.TypeDealUpdated, f.emitter.events[0].Type)
	assert.Empty(t, f.activities.activities)
}

func TestUpdateDealSameStageIsFieldEdit(t *testing.T) {
	f := newFixture()

	// Naming the current stage is not a move.
	_, err := f.service.UpdateDeal(context.Background(), "tenant-1", "user-1", "deal-1",
		models.DealPatch{StageID: strPtr("stage-a"), Title: strPtr("Renamed")})
	require.NoError(t, err)

	require.Len(t, f.emitter.events, 1)
	assert.Equal(t, events.TypeDealUpdated, f.emitter.events[0].Type)
	assert.Empty(t, f.activities.activities)
}

func TestUpdateDealEmptyPatch(t *testing.T) {
	f := newFixture()

	updated, err := f.service.UpdateDeal(context.Background(), "tenant-1", "user-1", "deal-1", models.DealPatch{})
	require.NoError(t, err)
	assert.Equal(t, "Acme", updated.Title)
	assert.Equal(t, 0, f.deals.updateCalls)
	assert.Empty(t, f.emitter.events)
}

func TestCreateDeal(t *testing.T) {
	f := newFixture()

	created, err := f.service.CreateDeal(context.Background(), "user-1", &models.Deal{
		TenantID: "tenant-1",
		Title:    "Globex",
		StageID:  "stage-b",
	})
	require.NoError(t, err)

	require.Len(t, f.emitter.events, 1)
	event := f.emitter.events[0]
	assert.Equal(t, events.TypeDealCreated, event.Type)
	assert.Equal(t, created.ID, event.DealID)
	assert.Equal(t, "pipe-1", event.PipelineID)

	require.Len(t, f.activities.activities, 1)
	assert.Equal(t, models.ActivityDealCreated, f.activities.activities[0].Type)
	assert.Equal(t, "stage-b", f.activities.activities[0].Metadata.ToStage)
}

func TestCreateDealValidation(t *testing.T) {
	f := newFixture()

	_, err := f.service.CreateDeal(context.Background(), "user-1", &models.Deal{TenantID: "tenant-1", StageID: "stage-a"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))

	_, err = f.service.CreateDeal(context.Background(), "user-1", &models.Deal{TenantID: "tenant-1", Title: "No Stage"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))

	_, err = f.service.CreateDeal(context.Background(), "user-1", &models.Deal{
		TenantID: "tenant-1", Title: "Ghost Stage", StageID: "stage-z",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestDeleteDeal(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.service.DeleteDeal(context.Background(), "tenant-1", "deal-1"))

	require.Len(t, f.emitter.events, 1)
	event := f.emitter.events[0]
	assert.Equal(t, events.TypeDealDeleted, event.Type)
	assert.Equal(t, "deal-1", event.DealID)

	_, err := f.service.GetDeal(context.Background(), "tenant-1", "deal-1")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}
