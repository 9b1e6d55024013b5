package board

import (
	"sort"

	"github.com/Ramsey-B/aster/pkg/models"
)

// State is the client-held projection of one pipeline board: the ordered
// stage list plus the flat deal list. Column grouping is always derived from
// these two on demand, never maintained alongside them.
//
// State is not safe for concurrent use. Board wraps it with a lock.
type State struct {
	pipelineID string
	stages     []*models.Stage
	deals      []*models.Deal
}

// Column is one rendered board column: a stage and the deals currently in it.
type Column struct {
	Stage *models.Stage
	Deals []*models.Deal
}

// Snapshot is a deep copy of a State, taken before an optimistic mutation so
// the mutation can be rolled back verbatim.
type Snapshot struct {
	stages []*models.Stage
	deals  []*models.Deal
}

// NewState builds a board state from the server's pipeline and deal listings.
// Stages are sorted by their order, deals keep the server's ordering.
func NewState(pipeline *models.Pipeline, deals []*models.Deal) *State {
	s := &State{pipelineID: pipeline.ID}
	s.SetStages(pipeline.Stages)
	s.SetDeals(deals)
	return s
}

// PipelineID returns the pipeline this state projects.
func (s *State) PipelineID() string {
	return s.pipelineID
}

// SetStages replaces the stage list, sorted ascending by order.
func (s *State) SetStages(stages []*models.Stage) {
	s.stages = cloneStages(stages)
	sort.SliceStable(s.stages, func(i, j int) bool {
		return s.stages[i].Order < s.stages[j].Order
	})
}

// SetDeals replaces the flat deal list.
func (s *State) SetDeals(deals []*models.Deal) {
	s.deals = cloneDeals(deals)
}

// Stages returns the stages in board order.
func (s *State) Stages() []*models.Stage {
	return s.stages
}

// StageIDs returns the stage IDs in board order.
func (s *State) StageIDs() []string {
	ids := make([]string, len(s.stages))
	for i, stage := range s.stages {
		ids[i] = stage.ID
	}
	return ids
}

// Deal returns the deal with the given ID, or nil if the board does not
// know it.
func (s *State) Deal(id string) *models.Deal {
	for _, d := range s.deals {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// Stage returns the stage with the given ID, or nil.
func (s *State) Stage(id string) *models.Stage {
	for _, stage := range s.stages {
		if stage.ID == id {
			return stage
		}
	}
	return nil
}

// Columns derives the per-stage deal grouping in a single pass over the flat
// deal list. Deals referencing a stage the board does not know are dropped
// from the rendering rather than invented a column.
func (s *State) Columns() []Column {
	byStage := make(map[string][]*models.Deal, len(s.stages))
	for _, d := range s.deals {
		byStage[d.StageID] = append(byStage[d.StageID], d)
	}

	columns := make([]Column, len(s.stages))
	for i, stage := range s.stages {
		columns[i] = Column{Stage: stage, Deals: byStage[stage.ID]}
	}
	return columns
}

// MoveDeal relocates a deal to another stage in place. It reports whether the
// deal was found.
func (s *State) MoveDeal(dealID, toStageID string) bool {
	d := s.Deal(dealID)
	if d == nil {
		return false
	}
	d.StageID = toStageID
	return true
}

// UpsertDeal replaces the deal with the same ID, or appends it.
func (s *State) UpsertDeal(deal *models.Deal) {
	for i, d := range s.deals {
		if d.ID == deal.ID {
			s.deals[i] = cloneDeal(deal)
			return
		}
	}
	s.deals = append(s.deals, cloneDeal(deal))
}

// RemoveDeal drops the deal from the flat list. It reports whether the deal
// was present.
func (s *State) RemoveDeal(id string) bool {
	for i, d := range s.deals {
		if d.ID == id {
			s.deals = append(s.deals[:i], s.deals[i+1:]...)
			return true
		}
	}
	return false
}

// ApplyStageOrder rewrites each stage's order as its index in ids and re-sorts
// the stage list. Stages absent from ids keep their order and sort after the
// reordered ones on ties. It reports whether every ID was known.
func (s *State) ApplyStageOrder(ids []string) bool {
	known := true
	for i, id := range ids {
		stage := s.Stage(id)
		if stage == nil {
			known = false
			continue
		}
		stage.Order = i
	}
	sort.SliceStable(s.stages, func(i, j int) bool {
		return s.stages[i].Order < s.stages[j].Order
	})
	return known
}

// Snapshot deep-copies the state for a later Restore.
func (s *State) Snapshot() *Snapshot {
	return &Snapshot{
		stages: cloneStages(s.stages),
		deals:  cloneDeals(s.deals),
	}
}

// Restore puts the state back to a snapshot taken earlier.
func (s *State) Restore(snap *Snapshot) {
	s.stages = cloneStages(snap.stages)
	s.deals = cloneDeals(snap.deals)
}

func cloneStages(stages []*models.Stage) []*models.Stage {
	out := make([]*models.Stage, len(stages))
	for i, stage := range stages {
		cp := *stage
		out[i] = &cp
	}
	return out
}

func cloneDeals(deals []*models.Deal) []*models.Deal {
	out := make([]*models.Deal, len(deals))
	for i, d := range deals {
		out[i] = cloneDeal(d)
	}
	return out
}

func cloneDeal(d *models.Deal) *models.Deal {
	cp := *d
	if d.Tags != nil {
		cp.Tags = append([]string(nil), d.Tags...)
	}
	if d.Tasks != nil {
		cp.Tasks = append([]models.TaskSummary(nil), d.Tasks...)
	}
	return &cp
}
