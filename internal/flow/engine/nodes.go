package engine

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/driftline/internal/ai"
	"github.com/driftline/driftline/internal/common/apperr"
	convmodels "github.com/driftline/driftline/internal/conversation/models"
	"github.com/driftline/driftline/internal/events"
	"github.com/driftline/driftline/internal/events/bus"
	"github.com/driftline/driftline/internal/flow/models"
)

const handoverMessage = "Conversation transferred to a human agent"

// execNode dispatches one node to its kind handler.
func (e *Engine) execNode(ctx context.Context, ex *execution, node *models.Node) (stepResult, error) {
	switch node.Type {
	case models.NodeTrigger, models.NodeStart:
		return stepResult{}, nil

	case models.NodeMessage:
		return e.execMessage(ctx, ex, node)

	case models.NodeButtons:
		return e.execButtons(ctx, ex, node)

	case models.NodeSelect:
		return e.execSelect(ctx, ex, node)

	case models.NodeInputForm:
		return e.execInputForm(ctx, ex, node)

	case models.NodeQuickInput:
		return e.execQuickInput(ctx, ex, node)

	case models.NodeCarousel:
		return e.execCarousel(ctx, ex, node)

	case models.NodeAI:
		return e.execAI(ctx, ex, node)

	case models.NodeCondition:
		result := e.evalCondition(ctx, ex, &node.Data)
		var next *models.Node
		if result {
			next = e.handleTarget(ex.flow, node.ID, "true")
		} else {
			next = e.handleTarget(ex.flow, node.ID, "false", "else", "default")
		}
		if next == nil {
			return stepResult{stop: true}, nil
		}
		return stepResult{next: next}, nil

	case models.NodeWait:
		e.sleep(ctx, waitDuration(&node.Data))
		return stepResult{}, nil

	case models.NodeAssign:
		return stepResult{}, e.execAssign(ctx, ex, node)

	case models.NodeTag:
		return stepResult{}, e.execTag(ctx, ex, node)

	case models.NodeSetAttr:
		return stepResult{}, e.execSetAttribute(ctx, ex, node)

	case models.NodeNote:
		text := interpolate(node.Data.Text, ex.vars)
		if _, err := e.convo.AddNote(ctx, ex.session.ID, "", text); err != nil {
			e.logger.Error("note node failed", zap.String("session_id", ex.session.ID), zap.Error(err))
		}
		return stepResult{}, nil

	case models.NodeWebhook:
		e.dispatchWebhook(ctx, ex, &node.Data)
		return stepResult{}, nil

	case models.NodeCSAT:
		return e.execCSAT(ctx, ex, node)

	case models.NodeClose:
		return e.execClose(ctx, ex, node)

	case models.NodeStartFlow:
		return e.execStartFlow(ctx, ex, node)

	case models.NodeEnd:
		return e.execEnd(ctx, ex, node)
	}

	e.logger.Warn("skipping unknown node type",
		zap.String("flow_id", ex.flow.ID),
		zap.String("node_type", string(node.Type)))
	return stepResult{}, nil
}

// execMessage emits agent text, wrapping any configured delay in a bot
// typing interval.
func (e *Engine) execMessage(ctx context.Context, ex *execution, node *models.Node) (stepResult, error) {
	text := interpolate(node.Data.Text, ex.vars)
	if d := messageDelay(node.Data.DelayMs); d > 0 {
		e.emitter.BotTypingStart(ex.session.ID)
		e.sleep(ctx, d)
		defer e.emitter.BotTypingStop(ex.session.ID)
	}
	if err := e.sendAgentMessage(ctx, ex, text, node.Data.Suggestions, nil); err != nil {
		return stepResult{}, err
	}
	return stepResult{}, nil
}

func messageDelay(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	d := time.Duration(ms) * time.Millisecond
	if d < minMessageDelay {
		return minMessageDelay
	}
	if d > maxMessageDelay {
		return maxMessageDelay
	}
	return d
}

func waitDuration(data *models.NodeData) time.Duration {
	unit := time.Second
	switch data.Unit {
	case "minutes":
		unit = time.Minute
	case "hours":
		unit = time.Hour
	case "days":
		unit = 24 * time.Hour
	}
	d := time.Duration(data.Duration * float64(unit))
	if d < 0 {
		return 0
	}
	if d > maxWait {
		return maxWait
	}
	return d
}

func (e *Engine) execButtons(ctx context.Context, ex *execution, node *models.Node) (stepResult, error) {
	widget := &convmodels.Widget{
		Type:    convmodels.WidgetButtons,
		Buttons: &convmodels.ButtonsWidget{Buttons: toButtonOptions(node.Data.Buttons)},
	}
	if err := e.sendAgentMessage(ctx, ex, interpolate(node.Data.Text, ex.vars), nil, widget); err != nil {
		return stepResult{}, err
	}
	if err := e.pause(ctx, ex, node, nil); err != nil {
		return stepResult{}, err
	}
	return stepResult{paused: true}, nil
}

func (e *Engine) execSelect(ctx context.Context, ex *execution, node *models.Node) (stepResult, error) {
	options := make([]convmodels.SelectOption, len(node.Data.Options))
	for i, o := range node.Data.Options {
		options[i] = convmodels.SelectOption{Label: o.Label, Value: o.Value}
	}
	widget := &convmodels.Widget{
		Type: convmodels.WidgetSelect,
		Select: &convmodels.SelectWidget{
			Placeholder: node.Data.Placeholder,
			ButtonLabel: node.Data.ButtonLabel,
			Options:     options,
		},
	}
	if err := e.sendAgentMessage(ctx, ex, interpolate(node.Data.Text, ex.vars), nil, widget); err != nil {
		return stepResult{}, err
	}
	if err := e.pause(ctx, ex, node, nil); err != nil {
		return stepResult{}, err
	}
	return stepResult{paused: true}, nil
}

func (e *Engine) execInputForm(ctx context.Context, ex *execution, node *models.Node) (stepResult, error) {
	fields := make([]convmodels.FormField, len(node.Data.Fields))
	for i, f := range node.Data.Fields {
		fields[i] = convmodels.FormField{
			Name:        f.Name,
			Label:       f.Label,
			Placeholder: f.Placeholder,
			Type:        f.Type,
			Required:    f.Required,
		}
	}
	widget := &convmodels.Widget{
		Type: convmodels.WidgetInputForm,
		InputForm: &convmodels.InputFormWidget{
			SubmitLabel: node.Data.SubmitLabel,
			Fields:      fields,
		},
	}
	if err := e.sendAgentMessage(ctx, ex, interpolate(node.Data.Text, ex.vars), nil, widget); err != nil {
		return stepResult{}, err
	}
	if err := e.pause(ctx, ex, node, nil); err != nil {
		return stepResult{}, err
	}
	return stepResult{paused: true}, nil
}

func (e *Engine) execQuickInput(ctx context.Context, ex *execution, node *models.Node) (stepResult, error) {
	widget := &convmodels.Widget{
		Type: convmodels.WidgetQuickInput,
		QuickInput: &convmodels.QuickInputWidget{
			Placeholder: node.Data.Placeholder,
			ButtonLabel: node.Data.ButtonLabel,
			InputType:   node.Data.InputType,
		},
	}
	if err := e.sendAgentMessage(ctx, ex, interpolate(node.Data.Text, ex.vars), nil, widget); err != nil {
		return stepResult{}, err
	}
	if err := e.pause(ctx, ex, node, nil); err != nil {
		return stepResult{}, err
	}
	return stepResult{paused: true}, nil
}

func (e *Engine) execCarousel(ctx context.Context, ex *execution, node *models.Node) (stepResult, error) {
	items := make([]convmodels.CarouselItem, len(node.Data.Items))
	for i, item := range node.Data.Items {
		items[i] = convmodels.CarouselItem{
			Title:       item.Title,
			Description: item.Description,
			Price:       item.Price,
			ImageURL:    item.ImageURL,
			Buttons:     toButtonOptions(item.Buttons),
		}
	}
	widget := &convmodels.Widget{
		Type:     convmodels.WidgetCarousel,
		Carousel: &convmodels.CarouselWidget{Items: items},
	}
	if err := e.sendAgentMessage(ctx, ex, interpolate(node.Data.Text, ex.vars), nil, widget); err != nil {
		return stepResult{}, err
	}
	return stepResult{}, nil
}

func toButtonOptions(choices []models.Choice) []convmodels.ButtonOption {
	out := make([]convmodels.ButtonOption, len(choices))
	for i, c := range choices {
		out[i] = convmodels.ButtonOption{Label: c.Label, Value: c.Value}
	}
	return out
}

// execAssign resolves the configured team or agent via the directory and
// assigns the session, enabling handover.
func (e *Engine) execAssign(ctx context.Context, ex *execution, node *models.Node) error {
	var agentID, teamID, label string
	if email := node.Data.AgentEmail; email != "" {
		agents, err := e.dir.ListAgents(ctx, ex.session.TenantID)
		if err != nil {
			return err
		}
		for _, a := range agents {
			if strings.EqualFold(a.Email, email) {
				agentID, label = a.ID, a.Name
				break
			}
		}
	} else if name := node.Data.TeamName; name != "" {
		teams, err := e.dir.ListTeams(ctx, ex.session.TenantID)
		if err != nil {
			return err
		}
		for _, t := range teams {
			if strings.EqualFold(t.Name, name) {
				teamID, label = t.ID, t.Name
				break
			}
		}
	}
	if agentID == "" && teamID == "" {
		e.logger.Warn("assign node target not found",
			zap.String("session_id", ex.session.ID),
			zap.String("agent_email", node.Data.AgentEmail),
			zap.String("team_name", node.Data.TeamName))
		return nil
	}
	if err := e.convo.AssignSession(ctx, ex.session.ID, agentID, teamID, label); err != nil {
		return err
	}
	ex.session.HandoverActive = true
	if agentID != "" {
		ex.session.AssigneeAgentID = agentID
	}
	if teamID != "" {
		ex.session.TeamID = teamID
	}
	return nil
}

func (e *Engine) execTag(ctx context.Context, ex *execution, node *models.Node) error {
	remove := strings.EqualFold(node.Data.Action, "remove")
	for _, name := range node.Data.Tags {
		name = strings.TrimSpace(interpolate(name, ex.vars))
		if name == "" {
			continue
		}
		var err error
		if remove {
			err = e.convo.UntagSession(ctx, ex.session.ID, name)
		} else {
			err = e.convo.TagSession(ctx, ex.session.ID, name)
		}
		if err != nil && !apperr.IsNotFound(err) {
			e.logger.Error("tag node failed",
				zap.String("session_id", ex.session.ID),
				zap.String("tag", name),
				zap.Error(err))
		}
	}
	return nil
}

// namedContactFields are settable directly on the contact row.
var namedContactFields = map[string]bool{
	"name": true, "email": true, "phone": true, "company": true, "location": true,
}

func (e *Engine) execSetAttribute(ctx context.Context, ex *execution, node *models.Node) error {
	name := strings.TrimSpace(node.Data.AttributeName)
	if name == "" {
		return nil
	}
	value := interpolate(node.Data.AttributeValue, ex.vars)
	var err error
	switch {
	case node.Data.Scope == "conversation":
		err = e.convo.SetConversationAttribute(ctx, ex.session.ID, name, value)
	case namedContactFields[strings.ToLower(name)]:
		err = e.convo.SetContactField(ctx, ex.session.ID, strings.ToLower(name), value)
		if err == nil && strings.EqualFold(name, "email") {
			// contact linking may have changed the session row
			if fresh, gerr := e.convo.GetSession(ctx, ex.session.ID); gerr == nil {
				*ex.session = *fresh
			}
		}
	default:
		err = e.convo.SetContactAttribute(ctx, ex.session.ID, name, value)
	}
	if err != nil {
		e.logger.Error("set_attribute node failed",
			zap.String("session_id", ex.session.ID),
			zap.String("attribute", name),
			zap.Error(err))
	}
	return nil
}

// dispatchWebhook publishes a fire-and-forget dispatch request on the
// event bus; the notify consumer performs the HTTP call.
func (e *Engine) dispatchWebhook(ctx context.Context, ex *execution, data *models.NodeData) {
	if data.URL == "" {
		return
	}
	method := strings.ToUpper(data.Method)
	if method == "" {
		method = "POST"
	}
	headers := map[string]interface{}{}
	for k, v := range data.Headers {
		headers[k] = interpolate(v, ex.vars)
	}
	event := bus.NewEvent(events.WebhookDispatch, "flow-engine", map[string]interface{}{
		"session_id": ex.session.ID,
		"tenant_id":  ex.session.TenantID,
		"url":        interpolate(data.URL, ex.vars),
		"method":     method,
		"headers":    headers,
		"body":       interpolate(data.Body, ex.vars),
	})
	if err := e.bus.Publish(ctx, events.WebhookDispatch, event); err != nil {
		e.logger.Warn("webhook dispatch publish failed",
			zap.String("session_id", ex.session.ID),
			zap.Error(err))
	}
}

const defaultCSATQuestion = "How would you rate this conversation?"

func (e *Engine) execCSAT(ctx context.Context, ex *execution, node *models.Node) (stepResult, error) {
	question := node.Data.Question
	if question == "" {
		question = defaultCSATQuestion
	}
	widget := &convmodels.Widget{
		Type: convmodels.WidgetCSAT,
		CSAT: &convmodels.CSATWidget{Question: question},
	}
	if err := e.sendAgentMessage(ctx, ex, question, nil, widget); err != nil {
		return stepResult{}, err
	}
	if err := e.pause(ctx, ex, node, nil); err != nil {
		return stepResult{}, err
	}
	return stepResult{paused: true}, nil
}

// execClose optionally emits a CSAT ask first (pausing at this node so the
// resume path performs the close), otherwise closes immediately.
func (e *Engine) execClose(ctx context.Context, ex *execution, node *models.Node) (stepResult, error) {
	if text := interpolate(node.Data.Message, ex.vars); text != "" {
		if err := e.sendAgentMessage(ctx, ex, text, nil, nil); err != nil {
			return stepResult{}, err
		}
	}
	if node.Data.AskCSAT {
		question := node.Data.Question
		if question == "" {
			question = defaultCSATQuestion
		}
		widget := &convmodels.Widget{
			Type: convmodels.WidgetCSAT,
			CSAT: &convmodels.CSATWidget{Question: question},
		}
		if err := e.sendAgentMessage(ctx, ex, question, nil, widget); err != nil {
			return stepResult{}, err
		}
		if err := e.pause(ctx, ex, node, nil); err != nil {
			return stepResult{}, err
		}
		return stepResult{paused: true}, nil
	}
	if err := e.closeSession(ctx, ex.session); err != nil {
		return stepResult{}, err
	}
	return stepResult{stop: true}, nil
}

func (e *Engine) execEnd(ctx context.Context, ex *execution, node *models.Node) (stepResult, error) {
	if text := interpolate(node.Data.Message, ex.vars); text != "" {
		if err := e.sendAgentMessage(ctx, ex, text, nil, nil); err != nil {
			return stepResult{}, err
		}
	}
	switch node.Data.Behavior {
	case models.EndClose:
		if err := e.closeSession(ctx, ex.session); err != nil {
			return stepResult{}, err
		}
	case models.EndHandover:
		if err := e.enableHandover(ctx, ex.session); err != nil {
			return stepResult{}, err
		}
	}
	return stepResult{stop: true}, nil
}

func (e *Engine) enableHandover(ctx context.Context, session *convmodels.Session) error {
	_, _, err := e.convo.SetHandover(ctx, session.ID, true)
	if err != nil {
		return err
	}
	session.HandoverActive = true
	return nil
}

// execAI calls the gateway with the node prompt and applies the decision.
func (e *Engine) execAI(ctx context.Context, ex *execution, node *models.Node) (stepResult, error) {
	decision, err := e.generateDecision(ctx, ex.session, node.Data.Prompt, ex.visitorText)
	if err != nil {
		return stepResult{}, err
	}
	return e.applyDecision(ctx, ex, node, decision)
}

// aiFallback is the one-shot AI reply for visitor messages no flow
// claimed. The prompt comes from the selected flow's first ai node when
// one exists.
func (e *Engine) aiFallback(ctx context.Context, session *convmodels.Session, flow *models.Flow, text string) error {
	prompt := ""
	var flowForExec *models.Flow
	if flow != nil {
		prompt = flow.FirstAIPrompt()
		flowForExec = flow
	} else {
		flowForExec = &models.Flow{ID: "", TenantID: session.TenantID}
	}
	decision, err := e.generateDecision(ctx, session, prompt, text)
	if err != nil {
		return err
	}
	ex := &execution{flow: flowForExec, session: session, vars: map[string]string{}, visitorText: text}
	e.seedContactVars(ctx, session, ex.vars)
	_, err = e.applyDecision(ctx, ex, nil, decision)
	return err
}

func (e *Engine) generateDecision(ctx context.Context, session *convmodels.Session, prompt, visitorText string) (*ai.Decision, error) {
	req := ai.ReplyRequest{
		TenantID:    session.TenantID,
		SessionID:   session.ID,
		FlowPrompt:  prompt,
		VisitorText: visitorText,
		Transcript:  e.transcript(ctx, session.ID, 14),
		Contact:     e.contactInfo(ctx, session),
		Tools:       e.toolCatalog(ctx, session.TenantID),
	}
	return e.gateway.GenerateReply(ctx, req)
}

// applyDecision emits the reply and acts on side effects. node is the ai
// node being executed, or nil on the fallback path (where pausing for
// collection is impossible and a missing-var tool trigger degrades to the
// plain reply).
func (e *Engine) applyDecision(ctx context.Context, ex *execution, node *models.Node, decision *ai.Decision) (stepResult, error) {
	if decision.Reply != "" {
		if err := e.sendAgentMessage(ctx, ex, decision.Reply, decision.Suggestions, nil); err != nil {
			return stepResult{}, err
		}
	}
	if decision.Handover {
		if err := e.enableHandover(ctx, ex.session); err != nil {
			return stepResult{}, err
		}
		return stepResult{stop: true}, nil
	}
	if decision.CloseChat {
		if err := e.closeSession(ctx, ex.session); err != nil {
			return stepResult{}, err
		}
		return stepResult{stop: true}, nil
	}
	if decision.TriggerFlow != nil {
		target, err := e.flows.GetFlow(ctx, decision.TriggerFlow.FlowID)
		if err != nil || target.TenantID != ex.session.TenantID || !target.Enabled {
			e.logger.Warn("decision referenced unusable flow",
				zap.String("session_id", ex.session.ID),
				zap.String("flow_id", decision.TriggerFlow.FlowID))
			return stepResult{}, nil
		}
		return e.invokeSubFlow(ctx, ex, node, target, decision.TriggerFlow.Variables, true)
	}
	return stepResult{}, nil
}

// execStartFlow invokes another flow as a sub-flow.
func (e *Engine) execStartFlow(ctx context.Context, ex *execution, node *models.Node) (stepResult, error) {
	target, err := e.flows.GetFlow(ctx, node.Data.FlowID)
	if err != nil || target.TenantID != ex.session.TenantID {
		e.logger.Warn("start_flow target missing",
			zap.String("session_id", ex.session.ID),
			zap.String("flow_id", node.Data.FlowID))
		return stepResult{}, nil
	}
	subVars := map[string]string{}
	for key, rhs := range node.Data.VariableBindings {
		subVars[key] = interpolate(rhs, ex.vars)
	}
	for k, v := range ex.vars {
		if _, bound := subVars[k]; !bound {
			subVars[k] = v
		}
	}
	return e.invokeSubFlow(ctx, ex, node, target, subVars, node.Data.AICollectInputs)
}

// invokeSubFlow hands control to the target flow. When required input
// variables are missing and collection is allowed, it asks the visitor and
// pauses at the invoking node; the resume path runs extraction. Without a
// pausable node (AI fallback path) missing vars skip the invocation.
func (e *Engine) invokeSubFlow(ctx context.Context, ex *execution, node *models.Node, target *models.Flow, subVars map[string]string, collect bool) (stepResult, error) {
	if subVars == nil {
		subVars = map[string]string{}
	}
	missing := missingRequiredVars(target, subVars)
	if len(missing) > 0 {
		if !collect || node == nil {
			e.logger.Info("sub-flow invocation skipped, required vars missing",
				zap.String("session_id", ex.session.ID),
				zap.String("flow_id", target.ID))
			return stepResult{}, nil
		}
		if err := e.askForVariables(ctx, ex, missing); err != nil {
			return stepResult{}, err
		}
		if err := e.pause(ctx, ex, node, collectionState(target.ID, subVars)); err != nil {
			return stepResult{}, err
		}
		return stepResult{paused: true}, nil
	}
	// control transfers to the sub-flow; the parent does not resume
	sub := &execution{
		flow:        target,
		session:     ex.session,
		vars:        subVars,
		visitorText: ex.visitorText,
		steps:       ex.steps,
	}
	e.seedContactVars(ctx, ex.session, sub.vars)
	start := target.TriggerNode()
	var entry *models.Node
	if start != nil {
		entry = e.firstEdgeTarget(target, start.ID)
	} else if len(target.Nodes) > 0 {
		entry = &target.Nodes[0]
	}
	if entry == nil {
		return stepResult{stop: true}, nil
	}
	if err := e.walk(ctx, sub, entry); err != nil {
		return stepResult{}, err
	}
	return stepResult{paused: true}, nil
}

func missingRequiredVars(flow *models.Flow, vars map[string]string) []models.InputVariable {
	var missing []models.InputVariable
	for _, v := range flow.InputVariables {
		if v.Required && strings.TrimSpace(vars[v.Key]) == "" {
			missing = append(missing, v)
		}
	}
	return missing
}

func collectionState(flowID string, subVars map[string]string) map[string]string {
	state := map[string]string{collectFlowKey: flowID}
	for k, v := range subVars {
		state[collectVarPrefix+k] = v
	}
	return state
}

// askForVariables emits a deterministic question listing the missing
// inputs by label.
func (e *Engine) askForVariables(ctx context.Context, ex *execution, missing []models.InputVariable) error {
	labels := make([]string, len(missing))
	for i, v := range missing {
		label := v.Label
		if label == "" {
			label = v.Key
		}
		labels[i] = label
	}
	text := "To help with that, could you share: " + strings.Join(labels, ", ") + "?"
	return e.sendAgentMessage(ctx, ex, text, nil, nil)
}

// resumeCollection handles a reply to a variable-collection pause:
// re-extract every required target variable from the conversation, merge
// non-empty values over the stored snapshot, and either re-ask or run the
// sub-flow.
func (e *Engine) resumeCollection(ctx context.Context, ex *execution, node *models.Node, reply string) error {
	targetID := ex.vars[collectFlowKey]
	target, err := e.flows.GetFlow(ctx, targetID)
	if err != nil || target.TenantID != ex.session.TenantID {
		return e.clearCursor(ctx, ex.session)
	}

	subVars := map[string]string{}
	for k, v := range ex.vars {
		if key, ok := strings.CutPrefix(k, collectVarPrefix); ok {
			subVars[key] = v
		}
	}

	var specs []ai.VariableSpec
	for _, v := range target.InputVariables {
		if v.Required {
			specs = append(specs, ai.VariableSpec{Key: v.Key, Label: v.Label})
		}
	}
	extracted, err := e.gateway.ExtractVariables(ctx, ai.ExtractRequest{
		SessionID:   ex.session.ID,
		VisitorText: reply,
		Transcript:  e.transcript(ctx, ex.session.ID, 20),
		Contact:     e.contactInfo(ctx, ex.session),
		Variables:   specs,
	})
	if err != nil {
		return err
	}
	for k, v := range extracted {
		if v != "" {
			subVars[k] = v
		}
	}

	if missing := missingRequiredVars(target, subVars); len(missing) > 0 {
		if err := e.askForVariables(ctx, ex, missing); err != nil {
			return err
		}
		return e.pause(ctx, ex, node, collectionState(target.ID, subVars))
	}

	if err := e.clearCursor(ctx, ex.session); err != nil {
		return err
	}
	sub := &execution{flow: target, session: ex.session, vars: subVars, visitorText: reply}
	e.seedContactVars(ctx, ex.session, sub.vars)
	start := target.TriggerNode()
	var entry *models.Node
	if start != nil {
		entry = e.firstEdgeTarget(target, start.ID)
	}
	if entry == nil {
		return nil
	}
	return e.walk(ctx, sub, entry)
}

// transcript renders the recent timeline for the gateway, visitor and
// agent turns only.
func (e *Engine) transcript(ctx context.Context, sessionID string, limit int) []ai.Turn {
	msgs, err := e.convo.Repo().ListRecentMessages(ctx, sessionID, limit*2)
	if err != nil {
		return nil
	}
	var turns []ai.Turn
	for _, m := range msgs {
		switch m.Sender {
		case convmodels.SenderVisitor:
			turns = append(turns, ai.Turn{Role: "visitor", Text: m.Text})
		case convmodels.SenderAgent:
			turns = append(turns, ai.Turn{Role: "agent", Text: m.Text})
		}
	}
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns
}

func (e *Engine) contactInfo(ctx context.Context, session *convmodels.Session) ai.ContactInfo {
	contact := e.sessionContact(ctx, session)
	if contact == nil {
		return ai.ContactInfo{}
	}
	info := ai.ContactInfo{
		Name:     contact.Name,
		Email:    contact.Email,
		Phone:    contact.Phone,
		Company:  contact.Company,
		Location: contact.Location,
	}
	if attrs, err := e.convo.ContactAttributes(ctx, contact.ID); err == nil && len(attrs) > 0 {
		info.Attributes = make(map[string]string, len(attrs))
		for _, a := range attrs {
			info.Attributes[a.Key] = a.Value
		}
	}
	return info
}

// toolCatalog exposes the tenant's AI tool-flows to the gateway.
func (e *Engine) toolCatalog(ctx context.Context, tenantID string) []ai.ToolSpec {
	flows, err := e.flows.ListEnabledFlows(ctx, tenantID)
	if err != nil {
		return nil
	}
	var tools []ai.ToolSpec
	for _, f := range flows {
		if !f.AITool {
			continue
		}
		spec := ai.ToolSpec{
			Name:        f.Name,
			FlowID:      f.ID,
			Description: f.AIToolDescription,
		}
		for _, v := range f.InputVariables {
			spec.Params = append(spec.Params, ai.ToolParam{Key: v.Key, Label: v.Label, Required: v.Required})
		}
		tools = append(tools, spec)
	}
	return tools
}
