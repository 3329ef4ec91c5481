package agent

import (
	"encoding/json"

	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/medrouter/conversation"
	"github.com/smallnest/medrouter/tool"
	"github.com/smallnest/medrouter/tool/appointment"
)

// AppointmentAgentName is the registered name of the appointment agent.
const AppointmentAgentName = "appointment_agent"

const appointmentPrompt = "You are a health assistant managing the user's follow-up " +
	"appointments. Use book_appointment to create one (dates are YYYY-MM-DD and must " +
	"not be in the past), query_appointments to list upcoming ones, and " +
	"cancel_appointment to cancel by id. Confirm the date back to the user after " +
	"booking. If a date is rejected, ask the user for a valid one."

// AppointmentAgent serves the appointment domain.
type AppointmentAgent struct {
	*baseAgent
	service *appointment.Service
}

var _ Agent = (*AppointmentAgent)(nil)

// NewAppointmentAgent creates the appointment agent over a booking service.
func NewAppointmentAgent(model llms.Model, service *appointment.Service, opts ...Option) *AppointmentAgent {
	a := &AppointmentAgent{
		baseAgent: newBaseAgent(AppointmentAgentName, model, appointmentPrompt, opts...),
		service:   service,
	}
	a.toolsFor = func(state *conversation.State) *tool.Registry {
		return tool.NewRegistry(service.Tools(state.UserID), tool.WithLogger(a.logger))
	}
	a.afterTool = a.recordWorkingData
	return a
}

// recordWorkingData tracks the appointment most recently touched in this
// conversation.
func (a *AppointmentAgent) recordWorkingData(state *conversation.State, call conversation.ToolCall, res tool.Result) {
	if res.Err != nil {
		return
	}
	switch call.Name {
	case "book_appointment":
		var payload struct {
			Appointment appointment.Appointment `json:"appointment"`
		}
		if err := json.Unmarshal([]byte(res.Content), &payload); err != nil {
			return
		}
		state.SetWorking("last_appointment", map[string]any{
			"id":   payload.Appointment.ID,
			"date": payload.Appointment.Date.Format(appointment.DateLayout),
		})
	case "cancel_appointment":
		delete(state.WorkingData, "last_appointment")
	}
}
