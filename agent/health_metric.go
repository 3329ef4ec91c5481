package agent

import (
	"encoding/json"

	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/medrouter/conversation"
	"github.com/smallnest/medrouter/tool"
	"github.com/smallnest/medrouter/tool/health"
)

// HealthMetricAgentName is the registered name of the health metric agent.
const HealthMetricAgentName = "health_metric_agent"

const healthMetricPrompt = "You are a health assistant helping the user log and review " +
	"health measurements such as blood pressure. Use record_blood_pressure to store a " +
	"reading the user reports and query_blood_pressure to answer questions about past " +
	"readings. If a reading is rejected as out of range, tell the user the accepted " +
	"range and ask them to re-check their measurement. Never invent readings."

// HealthMetricAgent serves the health_metric domain.
type HealthMetricAgent struct {
	*baseAgent
	service *health.Service
}

var _ Agent = (*HealthMetricAgent)(nil)

// NewHealthMetricAgent creates the health metric agent over a readings
// service.
func NewHealthMetricAgent(model llms.Model, service *health.Service, opts ...Option) *HealthMetricAgent {
	a := &HealthMetricAgent{
		baseAgent: newBaseAgent(HealthMetricAgentName, model, healthMetricPrompt, opts...),
		service:   service,
	}
	a.toolsFor = func(state *conversation.State) *tool.Registry {
		return tool.NewRegistry(service.Tools(state.UserID), tool.WithLogger(a.logger))
	}
	a.afterTool = a.recordWorkingData
	return a
}

// recordWorkingData keeps the most recent stored reading in working data so
// follow-up turns can refer to it without another query.
func (a *HealthMetricAgent) recordWorkingData(state *conversation.State, call conversation.ToolCall, res tool.Result) {
	if call.Name != "record_blood_pressure" || res.Err != nil {
		return
	}
	var payload struct {
		Reading  health.Reading `json:"reading"`
		Category string         `json:"category"`
	}
	if err := json.Unmarshal([]byte(res.Content), &payload); err != nil {
		return
	}
	state.SetWorking("last_reading", map[string]any{
		"id":        payload.Reading.ID,
		"systolic":  payload.Reading.Systolic,
		"diastolic": payload.Reading.Diastolic,
		"category":  payload.Category,
	})
}
