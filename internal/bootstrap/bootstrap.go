// Package bootstrap seeds first-run demo data from a YAML file: the
// default tenant, an agent with a known token, teams, inboxes, canned
// replies, and flows. Seeding is idempotent; existing records are left
// untouched.
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/driftline/driftline/internal/common/apperr"
	"github.com/driftline/driftline/internal/common/logger"
	dirmodels "github.com/driftline/driftline/internal/directory/models"
	dirrepo "github.com/driftline/driftline/internal/directory/repository"
	flowmodels "github.com/driftline/driftline/internal/flow/models"
	flowservice "github.com/driftline/driftline/internal/flow/service"
)

// Seed is the YAML document layout.
type Seed struct {
	Tenant struct {
		ID       string `yaml:"id"`
		Name     string `yaml:"name"`
		Settings struct {
			BrandName      string `yaml:"brandName"`
			BrandColor     string `yaml:"brandColor"`
			WidgetGreeting string `yaml:"widgetGreeting"`
		} `yaml:"settings"`
	} `yaml:"tenant"`

	Agents []struct {
		Name  string `yaml:"name"`
		Email string `yaml:"email"`
		Role  string `yaml:"role"`
		Token string `yaml:"token"`
	} `yaml:"agents"`

	Teams   []string `yaml:"teams"`
	Inboxes []string `yaml:"inboxes"`

	CannedReplies []struct {
		ShortCode string `yaml:"shortCode"`
		Title     string `yaml:"title"`
		Text      string `yaml:"text"`
	} `yaml:"cannedReplies"`

	// Flows use the wire (JSON) field names; each entry is re-encoded
	// through JSON so the graph schema stays single-sourced.
	Flows []map[string]interface{} `yaml:"flows"`
}

// Loader applies a seed file against the directory and flow stores.
type Loader struct {
	dir    dirrepo.Repository
	flows  *flowservice.Service
	logger *logger.Logger
}

// NewLoader creates the loader.
func NewLoader(dir dirrepo.Repository, flows *flowservice.Service, log *logger.Logger) *Loader {
	return &Loader{
		dir:    dir,
		flows:  flows,
		logger: log.WithFields(zap.String("component", "bootstrap")),
	}
}

// Apply loads and applies the seed file. A missing path is not an error;
// the server just starts empty. Returns the seeded tenant id ("" when
// nothing was seeded).
func (l *Loader) Apply(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Info("no bootstrap file, skipping", zap.String("path", path))
			return "", nil
		}
		return "", fmt.Errorf("failed to read bootstrap file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return "", fmt.Errorf("failed to parse bootstrap file: %w", err)
	}

	tenantID, err := l.ensureTenant(ctx, &seed)
	if err != nil {
		return "", err
	}
	if err := l.ensureAgents(ctx, tenantID, &seed); err != nil {
		return tenantID, err
	}
	if err := l.ensureTeams(ctx, tenantID, seed.Teams); err != nil {
		return tenantID, err
	}
	if err := l.ensureInboxes(ctx, tenantID, seed.Inboxes); err != nil {
		return tenantID, err
	}
	if err := l.ensureCannedReplies(ctx, tenantID, &seed); err != nil {
		return tenantID, err
	}
	if err := l.ensureFlows(ctx, tenantID, seed.Flows); err != nil {
		return tenantID, err
	}

	l.logger.Info("bootstrap seed applied",
		zap.String("path", path),
		zap.String("tenant_id", tenantID))
	return tenantID, nil
}

func (l *Loader) ensureTenant(ctx context.Context, seed *Seed) (string, error) {
	id := seed.Tenant.ID
	if id == "" {
		id = "tenant-default"
	}
	_, err := l.dir.GetTenant(ctx, id)
	if apperr.IsNotFound(err) {
		name := seed.Tenant.Name
		if name == "" {
			name = "Default Workspace"
		}
		if err := l.dir.CreateTenant(ctx, &dirmodels.Tenant{ID: id, Name: name}); err != nil {
			return "", err
		}
		l.logger.Info("tenant seeded", zap.String("tenant_id", id))
	} else if err != nil {
		return "", err
	}

	s := seed.Tenant.Settings
	if s.BrandName != "" || s.BrandColor != "" || s.WidgetGreeting != "" {
		err := l.dir.UpsertTenantSettings(ctx, &dirmodels.TenantSettings{
			TenantID:       id,
			BrandName:      s.BrandName,
			BrandColor:     s.BrandColor,
			WidgetGreeting: s.WidgetGreeting,
		})
		if err != nil {
			return "", err
		}
	}
	return id, nil
}

func (l *Loader) ensureAgents(ctx context.Context, tenantID string, seed *Seed) error {
	for _, a := range seed.Agents {
		if a.Email == "" {
			continue
		}
		agent, err := l.dir.GetAgentByEmail(ctx, tenantID, a.Email)
		if apperr.IsNotFound(err) {
			role := dirmodels.AgentRole(a.Role)
			if role == "" {
				role = dirmodels.RoleAgent
			}
			agent = &dirmodels.Agent{
				ID:       uuid.New().String(),
				TenantID: tenantID,
				Name:     a.Name,
				Email:    a.Email,
				Role:     role,
			}
			if err := l.dir.CreateAgent(ctx, agent); err != nil {
				return err
			}
			l.logger.Info("agent seeded", zap.String("email", a.Email))
		} else if err != nil {
			return err
		}

		if a.Token == "" {
			continue
		}
		if _, err := l.dir.GetAuthToken(ctx, a.Token); apperr.IsNotFound(err) {
			err := l.dir.CreateAuthToken(ctx, &dirmodels.AuthToken{
				Token:    a.Token,
				AgentID:  agent.ID,
				TenantID: tenantID,
			})
			if err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) ensureTeams(ctx context.Context, tenantID string, names []string) error {
	existing, err := l.dir.ListTeams(ctx, tenantID)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		have[t.Name] = true
	}
	for _, name := range names {
		if name == "" || have[name] {
			continue
		}
		err := l.dir.CreateTeam(ctx, &dirmodels.Team{
			ID:       uuid.New().String(),
			TenantID: tenantID,
			Name:     name,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) ensureInboxes(ctx context.Context, tenantID string, names []string) error {
	existing, err := l.dir.ListInboxes(ctx, tenantID)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, i := range existing {
		have[i.Name] = true
	}
	for _, name := range names {
		if name == "" || have[name] {
			continue
		}
		err := l.dir.CreateInbox(ctx, &dirmodels.Inbox{
			ID:       uuid.New().String(),
			TenantID: tenantID,
			Name:     name,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) ensureCannedReplies(ctx context.Context, tenantID string, seed *Seed) error {
	existing, err := l.dir.ListCannedReplies(ctx, tenantID)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, r := range existing {
		have[r.ShortCode] = true
	}
	for _, r := range seed.CannedReplies {
		if r.ShortCode == "" || have[r.ShortCode] {
			continue
		}
		err := l.dir.CreateCannedReply(ctx, &dirmodels.CannedReply{
			ID:        uuid.New().String(),
			TenantID:  tenantID,
			ShortCode: r.ShortCode,
			Title:     r.Title,
			Text:      r.Text,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) ensureFlows(ctx context.Context, tenantID string, raws []map[string]interface{}) error {
	for _, raw := range raws {
		flow, err := decodeFlow(raw)
		if err != nil {
			return fmt.Errorf("invalid flow in bootstrap file: %w", err)
		}
		flow.TenantID = tenantID

		if flow.ID != "" {
			_, err := l.flows.GetFlow(ctx, tenantID, flow.ID)
			if err == nil {
				// already seeded; never clobber dashboard edits
				continue
			}
			if !apperr.IsNotFound(err) {
				return err
			}
		}
		if _, err := l.flows.CreateFlow(ctx, flow); err != nil {
			return err
		}
		l.logger.Info("flow seeded", zap.String("flow_id", flow.ID), zap.String("name", flow.Name))
	}
	return nil
}

// decodeFlow re-encodes the YAML mapping through JSON so the flow's wire
// schema (camelCase node data) applies unchanged.
func decodeFlow(raw map[string]interface{}) (*flowmodels.Flow, error) {
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var flow flowmodels.Flow
	if err := json.Unmarshal(buf, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}
