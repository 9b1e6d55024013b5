package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/aster/internal/handlers"
	dealsvc "github.com/Ramsey-B/aster/internal/services/deal"
	pipelinesvc "github.com/Ramsey-B/aster/internal/services/pipeline"
	boarderrors "github.com/Ramsey-B/aster/pkg/errors"
	"github.com/Ramsey-B/aster/pkg/events"
	"github.com/Ramsey-B/aster/pkg/middleware"
	"github.com/Ramsey-B/aster/pkg/models"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

var (
	testTenantID   = uuid.New().String()
	testPipelineID = uuid.New().String()
	testStageAID   = uuid.New().String()
	testStageBID   = uuid.New().String()
	testDealID     = uuid.New().String()
)

type fakePipelineRepo struct {
	pipelines map[string]*models.Pipeline
}

func (r *fakePipelineRepo) Create(ctx context.Context, p *models.Pipeline) (*models.Pipeline, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	r.pipelines[p.ID] = p
	return p, nil
}

func (r *fakePipelineRepo) GetByID(ctx context.Context, tenantID, id string) (*models.Pipeline, error) {
	p, ok := r.pipelines[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "pipeline not found")
	}
	cp := *p
	return &cp, nil
}

func (r *fakePipelineRepo) List(ctx context.Context, tenantID string) ([]*models.Pipeline, error) {
	out := make([]*models.Pipeline, 0, len(r.pipelines))
	for _, p := range r.pipelines {
		out = append(out, p)
	}
	return out, nil
}

func (r *fakePipelineRepo) ListActive(ctx context.Context, tenantID string) ([]*models.Pipeline, error) {
	return r.List(ctx, tenantID)
}

func (r *fakePipelineRepo) Update(ctx context.Context, p *models.Pipeline) (*models.Pipeline, error) {
	r.pipelines[p.ID] = p
	return p, nil
}

func (r *fakePipelineRepo) Delete(ctx context.Context, tenantID, id string) error {
	delete(r.pipelines, id)
	return nil
}

func (r *fakePipelineRepo) UnsetDefault(ctx context.Context, tenantID string) error {
	return nil
}

type fakeStageRepo struct {
	stages        map[string]*models.Stage
	dealCounts    map[string]int
	setOrderCalls [][]models.StageOrder
}

func (r *fakeStageRepo) Create(ctx context.Context, s *models.Stage) (*models.Stage, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	r.stages[s.ID] = s
	return s, nil
}

func (r *fakeStageRepo) GetByID(ctx context.Context, tenantID, id string) (*models.Stage, error) {
	s, ok := r.stages[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "stage not found")
	}
	return s, nil
}

func (r *fakeStageRepo) ListByPipeline(ctx context.Context, tenantID, pipelineID string) ([]*models.Stage, error) {
	var out []*models.Stage
	for _, s := range r.stages {
		if s.PipelineID == pipelineID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (r *fakeStageRepo) Update(ctx context.Context, s *models.Stage) (*models.Stage, error) {
	r.stages[s.ID] = s
	return s, nil
}

func (r *fakeStageRepo) Delete(ctx context.Context, tenantID, id string) error {
	if count := r.dealCounts[id]; count > 0 {
		return boarderrors.NewStageNotEmpty(id, count)
	}
	delete(r.stages, id)
	return nil
}

func (r *fakeStageRepo) CountDeals(ctx context.Context, tenantID, stageID string) (int, error) {
	return r.dealCounts[stageID], nil
}

func (r *fakeStageRepo) SetOrders(ctx context.Context, tenantID, pipelineID string, orders []models.StageOrder) error {
	r.setOrderCalls = append(r.setOrderCalls, orders)
	for _, o := range orders {
		if s, ok := r.stages[o.ID]; ok {
			s.Order = o.Order
		}
	}
	return nil
}

func (r *fakeStageRepo) InsertAfter(ctx context.Context, s *models.Stage, afterStageID string) (*models.Stage, error) {
	if _, ok := r.stages[afterStageID]; !ok {
		return nil, boarderrors.NewInvalidStageReference(s.PipelineID, afterStageID)
	}
	return r.Create(ctx, s)
}

type fakeDealRepo struct {
	deals map[string]*models.Deal
}

func (r *fakeDealRepo) Create(ctx context.Context, d *models.Deal) (*models.Deal, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	r.deals[d.ID] = d
	return d, nil
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
	return nil, nil
}

func (r *fakeDealRepo) Update(ctx context.Context, d *models.Deal) (*models.Deal, error) {
	r.deals[d.ID] = d
	return d, nil
}

func (r *fakeDealRepo) Delete(ctx context.Context, tenantID, id string) error {
	delete(r.deals, id)
	return nil
}

type fakeActivityRepo struct{}

func (r *fakeActivityRepo) Create(ctx context.Context, a *models.Activity) (*models.Activity, error) {
	return a, nil
}

func (r *fakeActivityRepo) ListByDeal(ctx context.Context, tenantID, dealID string) ([]*models.Activity, error) {
	return []*models.Activity{}, nil
}

type nopEmitter struct{}

func (nopEmitter) Emit(ctx context.Context, event *events.BoardEvent) {}

type testServer struct {
	echo   *echo.Echo
	stages *fakeStageRepo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := getTestLogger()

	pipelines := &fakePipelineRepo{pipelines: map[string]*models.Pipeline{
		testPipelineID: {ID: testPipelineID, TenantID: testTenantID, Name: "Sales", IsActive: true},
	}}
	stages := &fakeStageRepo{
		stages: map[string]*models.Stage{
			testStageAID: {ID: testStageAID, TenantID: testTenantID, PipelineID: testPipelineID, Name: "Lead", Order: 0},
			testStageBID: {ID: testStageBID, TenantID: testTenantID, PipelineID: testPipelineID, Name: "Won", Order: 1},
		},
		dealCounts: map[string]int{},
	}
	deals := &fakeDealRepo{deals: map[string]*models.Deal{
		testDealID: {ID: testDealID, TenantID: testTenantID, Title: "Acme", StageID: testStageAID},
	}}

	pipelineService := pipelinesvc.NewService(pipelines, stages, nopEmitter{}, nil, logger)
	dealService := dealsvc.NewService(deals, stages, &fakeActivityRepo{}, nopEmitter{}, nil, logger)

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())

	api := e.Group("/api/v1")
	handlers.NewPipelineHandler(pipelineService, logger).RegisterRoutes(api)
	handlers.NewStageHandler(pipelineService, logger).RegisterRoutes(api)
	handlers.NewDealHandler(dealService, logger).RegisterRoutes(api)

	return &testServer{echo: e, stages: stages}
}

func (s *testServer) request(method, path, body string, withTenant bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if withTenant {
		req.Header.Set("X-Tenant-ID", testTenantID)
	}

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) middleware.ErrorResponse {
	t.Helper()
	var body middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestReorderStagesEndpoint(t *testing.T) {
	s := newTestServer(t)

	body := `{"stages":[{"id":"` + testStageBID + `","order":0},{"id":"` + testStageAID + `","order":1}]}`
	rec := s.request(http.MethodPatch, "/api/v1/pipelines/"+testPipelineID+"/stages/reorder", body, true)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, s.stages.setOrderCalls, 1)
	assert.Equal(t, []models.StageOrder{
		{ID: testStageBID, Order: 0},
		{ID: testStageAID, Order: 1},
	}, s.stages.setOrderCalls[0])

	// The response carries the pipeline with stages re-read in final order.
	var pipeline models.Pipeline
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pipeline))
	assert.Equal(t, testPipelineID, pipeline.ID)
	require.Len(t, pipeline.Stages, 2)
	assert.Equal(t, testStageBID, pipeline.Stages[0].ID)
	assert.Equal(t, testStageAID, pipeline.Stages[1].ID)
}

func TestRenameStageEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(http.MethodPatch, "/api/v1/stages/"+testStageBID, `{"name":"Qualified"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Stage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Qualified", updated.Name)

	// A rename must not move the stage.
	assert.Equal(t, 1, updated.Order)
	assert.Equal(t, 1, s.stages.stages[testStageBID].Order)
}

func TestReorderStagesEmptyBody(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(http.MethodPatch, "/api/v1/pipelines/"+testPipelineID+"/stages/reorder", `{"stages":[]}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, s.stages.setOrderCalls)
}

func TestReorderStagesDuplicateOrder(t *testing.T) {
	s := newTestServer(t)

	body := `{"stages":[{"id":"` + testStageBID + `","order":0},{"id":"` + testStageAID + `","order":0}]}`
	rec := s.request(http.MethodPatch, "/api/v1/pipelines/"+testPipelineID+"/stages/reorder", body, true)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "duplicate_order", resp.Meta["code"])
	assert.Empty(t, s.stages.setOrderCalls)
}

func TestReorderStagesRequiresTenant(t *testing.T) {
	s := newTestServer(t)

	body := `{"stages":[{"id":"` + testStageAID + `","order":0}]}`
	rec := s.request(http.MethodPatch, "/api/v1/pipelines/"+testPipelineID+"/stages/reorder", body, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReorderStagesInvalidPipelineID(t *testing.T) {
	s := newTestServer(t)

	body := `{"stages":[{"id":"` + testStageAID + `","order":0}]}`
	rec := s.request(http.MethodPatch, "/api/v1/pipelines/not-a-uuid/stages/reorder", body, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePipelineEndpoint(t *testing.T) {
	s := newTestServer(t)

	body := `{"name":"Renewals","stages":[{"name":"New"},{"name":"Done"}]}`
	rec := s.request(http.MethodPost, "/api/v1/pipelines", body, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Pipeline
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Renewals", created.Name)
	require.Len(t, created.Stages, 2)
	assert.Equal(t, 0, created.Stages[0].Order)
	assert.Equal(t, 1, created.Stages[1].Order)
}

func TestCreatePipelineValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(http.MethodPost, "/api/v1/pipelines", `{"description":"no name"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPipelineEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(http.MethodGet, "/api/v1/pipelines/"+testPipelineID, "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var pipeline models.Pipeline
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pipeline))
	assert.Equal(t, testPipelineID, pipeline.ID)
	assert.Len(t, pipeline.Stages, 2)
}

func TestGetPipelineNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(http.MethodGet, "/api/v1/pipelines/"+uuid.New().String(), "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteStageBlockedByDeals(t *testing.T) {
	s := newTestServer(t)
	s.stages.dealCounts[testStageAID] = 3

	rec := s.request(http.MethodDelete, "/api/v1/stages/"+testStageAID, "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, "stage_not_empty", resp.Meta["code"])
	assert.Equal(t, float64(3), resp.Meta["deal_count"])
	assert.Contains(t, resp.Message, "3 deal(s)")
}

func TestInsertStageAfterEndpoint(t *testing.T) {
	s := newTestServer(t)

	body := `{"after_stage_id":"` + testStageAID + `","name":"Review"}`
	rec := s.request(http.MethodPost, "/api/v1/pipelines/"+testPipelineID+"/stages/insert-after", body, true)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestMoveDealEndpoint(t *testing.T) {
	s := newTestServer(t)

	body := `{"stage_id":"` + testStageBID + `"}`
	rec := s.request(http.MethodPatch, "/api/v1/deals/"+testDealID, body, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var deal models.Deal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deal))
	assert.Equal(t, testStageBID, deal.StageID)
}
