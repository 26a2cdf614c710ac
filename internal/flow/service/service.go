// Package service implements flow definition management: CRUD with graph
// validation. Execution lives in the engine package.
package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/driftline/driftline/internal/common/apperr"
	"github.com/driftline/driftline/internal/common/logger"
	"github.com/driftline/driftline/internal/flow/models"
	"github.com/driftline/driftline/internal/flow/repository"
)

// Service manages authored flow definitions.
type Service struct {
	repo   repository.Repository
	logger *logger.Logger
}

// NewService creates a flow service.
func NewService(repo repository.Repository, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: log.WithFields(zap.String("component", "flow-service")),
	}
}

var knownNodeTypes = map[models.NodeType]bool{
	models.NodeTrigger:    true,
	models.NodeStart:      true,
	models.NodeMessage:    true,
	models.NodeButtons:    true,
	models.NodeSelect:     true,
	models.NodeInputForm:  true,
	models.NodeQuickInput: true,
	models.NodeCarousel:   true,
	models.NodeAI:         true,
	models.NodeCondition:  true,
	models.NodeWait:       true,
	models.NodeAssign:     true,
	models.NodeTag:        true,
	models.NodeSetAttr:    true,
	models.NodeNote:       true,
	models.NodeWebhook:    true,
	models.NodeCSAT:       true,
	models.NodeClose:      true,
	models.NodeStartFlow:  true,
	models.NodeEnd:        true,
}

// validate checks the flow graph is well formed: a name, unique node ids of
// known types, and edges that reference existing nodes. A flow without a
// trigger node saves fine; it just never starts on its own.
func validate(flow *models.Flow) error {
	if strings.TrimSpace(flow.Name) == "" {
		return apperr.Validationf("flow name is required")
	}
	if flow.TenantID == "" {
		return apperr.Validationf("flow tenant_id is required")
	}
	seen := make(map[string]bool, len(flow.Nodes))
	for _, n := range flow.Nodes {
		if n.ID == "" {
			return apperr.Validationf("flow node missing id")
		}
		if seen[n.ID] {
			return apperr.Validationf("duplicate flow node id %q", n.ID)
		}
		seen[n.ID] = true
		if !knownNodeTypes[n.Type] {
			return apperr.Validationf("unknown node type %q", n.Type)
		}
	}
	for _, e := range flow.Edges {
		if !seen[e.Source] {
			return apperr.Validationf("edge references unknown source node %q", e.Source)
		}
		if !seen[e.Target] {
			return apperr.Validationf("edge references unknown target node %q", e.Target)
		}
	}
	for _, v := range flow.InputVariables {
		if strings.TrimSpace(v.Key) == "" {
			return apperr.Validationf("flow input variable missing key")
		}
	}
	return nil
}

// CreateFlow validates and stores a new flow.
func (s *Service) CreateFlow(ctx context.Context, flow *models.Flow) (*models.Flow, error) {
	if err := validate(flow); err != nil {
		return nil, err
	}
	if err := s.repo.CreateFlow(ctx, flow); err != nil {
		return nil, err
	}
	s.logger.Info("flow created",
		zap.String("flow_id", flow.ID),
		zap.String("tenant_id", flow.TenantID),
		zap.String("name", flow.Name))
	return flow, nil
}

// GetFlow returns a flow by id, scoped to the tenant.
func (s *Service) GetFlow(ctx context.Context, tenantID, id string) (*models.Flow, error) {
	flow, err := s.repo.GetFlow(ctx, id)
	if err != nil {
		return nil, err
	}
	if flow.TenantID != tenantID {
		return nil, apperr.NotFoundf("flow %s not found", id)
	}
	return flow, nil
}

// UpdateFlow validates and replaces a flow definition.
func (s *Service) UpdateFlow(ctx context.Context, flow *models.Flow) (*models.Flow, error) {
	if err := validate(flow); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetFlow(ctx, flow.ID)
	if err != nil {
		return nil, err
	}
	if existing.TenantID != flow.TenantID {
		return nil, apperr.NotFoundf("flow %s not found", flow.ID)
	}
	if err := s.repo.UpdateFlow(ctx, flow); err != nil {
		return nil, err
	}
	s.logger.Info("flow updated",
		zap.String("flow_id", flow.ID),
		zap.String("tenant_id", flow.TenantID))
	return flow, nil
}

// DeleteFlow removes a flow. Cursors pointing at it become stale and are
// cleared lazily by the engine on the next visitor message.
func (s *Service) DeleteFlow(ctx context.Context, tenantID, id string) error {
	existing, err := s.repo.GetFlow(ctx, id)
	if err != nil {
		return err
	}
	if existing.TenantID != tenantID {
		return apperr.NotFoundf("flow %s not found", id)
	}
	if err := s.repo.DeleteFlow(ctx, id); err != nil {
		return err
	}
	s.logger.Info("flow deleted", zap.String("flow_id", id), zap.String("tenant_id", tenantID))
	return nil
}

// ListFlows returns the tenant's flows, optionally enabled only.
func (s *Service) ListFlows(ctx context.Context, tenantID string, enabledOnly bool) ([]*models.Flow, error) {
	if enabledOnly {
		return s.repo.ListEnabledFlows(ctx, tenantID)
	}
	return s.repo.ListFlows(ctx, tenantID)
}

// ToolFlows returns enabled flows exposed as AI tools.
func (s *Service) ToolFlows(ctx context.Context, tenantID string) ([]*models.Flow, error) {
	flows, err := s.repo.ListEnabledFlows(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var tools []*models.Flow
	for _, f := range flows {
		if f.AITool {
			tools = append(tools, f)
		}
	}
	return tools, nil
}
