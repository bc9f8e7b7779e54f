package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/wolfman30/agenda-agent/internal/scheduling"
)

// Tool names exposed to the model.
const (
	ToolConfirmAppointment    = "confirm_appointment"
	ToolCancelAppointment     = "cancel_appointment"
	ToolRescheduleAppointment = "reschedule_appointment"
	ToolCheckAvailability     = "check_availability"
	ToolRequestHandoff        = "request_handoff"
)

// ToolCall is one decoded tool request. The set of implementations is closed.
type ToolCall interface {
	ToolName() string
	// Args is the normalized argument set written to the audit log.
	Args() map[string]any
	isToolCall()
}

type ConfirmAppointment struct {
	AppointmentID uuid.UUID
}

type CancelAppointment struct {
	AppointmentID uuid.UUID
}

type RescheduleAppointment struct {
	AppointmentID uuid.UUID
	NewDate       string
	NewTime       string
}

type CheckAvailability struct {
	Date string
}

type RequestHandoff struct{}

// UnknownTool carries a call the model made to a tool outside the palette,
// or one whose arguments failed validation.
type UnknownTool struct {
	Name    string
	RawArgs string
	Reason  string
}

func (ConfirmAppointment) ToolName() string    { return ToolConfirmAppointment }
func (CancelAppointment) ToolName() string     { return ToolCancelAppointment }
func (RescheduleAppointment) ToolName() string { return ToolRescheduleAppointment }
func (CheckAvailability) ToolName() string     { return ToolCheckAvailability }
func (RequestHandoff) ToolName() string        { return ToolRequestHandoff }
func (u UnknownTool) ToolName() string         { return u.Name }

func (c ConfirmAppointment) Args() map[string]any {
	return map[string]any{"appointment_id": c.AppointmentID.String()}
}

func (c CancelAppointment) Args() map[string]any {
	return map[string]any{"appointment_id": c.AppointmentID.String()}
}

func (c RescheduleAppointment) Args() map[string]any {
	return map[string]any{
		"appointment_id": c.AppointmentID.String(),
		"new_date":       c.NewDate,
		"new_time":       c.NewTime,
	}
}

func (c CheckAvailability) Args() map[string]any { return map[string]any{"date": c.Date} }
func (RequestHandoff) Args() map[string]any      { return map[string]any{} }

func (u UnknownTool) Args() map[string]any {
	return map[string]any{"raw_arguments": u.RawArgs, "reason": u.Reason}
}

func (ConfirmAppointment) isToolCall()    {}
func (CancelAppointment) isToolCall()     {}
func (RescheduleAppointment) isToolCall() {}
func (CheckAvailability) isToolCall()     {}
func (RequestHandoff) isToolCall()        {}
func (UnknownTool) isToolCall()           {}

var errInvalidToolArgs = errors.New("conversation: invalid tool arguments")

type toolArgs struct {
	AppointmentID string `json:"appointment_id"`
	NewDate       string `json:"new_date"`
	NewTime       string `json:"new_time"`
	Date          string `json:"date"`
}

// DecodeToolCall turns a model tool call into a typed variant. Unknown names
// and invalid arguments come back as UnknownTool so the caller can still audit them.
func DecodeToolCall(name, rawArgs string) ToolCall {
	call, err := decodeToolCall(name, rawArgs)
	if err != nil {
		return UnknownTool{Name: name, RawArgs: rawArgs, Reason: err.Error()}
	}
	return call
}

func decodeToolCall(name, rawArgs string) (ToolCall, error) {
	var args toolArgs
	if trimmed := strings.TrimSpace(rawArgs); trimmed != "" {
		if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidToolArgs, err)
		}
	}

	switch name {
	case ToolConfirmAppointment:
		id, err := parseAppointmentID(args.AppointmentID)
		if err != nil {
			return nil, err
		}
		return ConfirmAppointment{AppointmentID: id}, nil
	case ToolCancelAppointment:
		id, err := parseAppointmentID(args.AppointmentID)
		if err != nil {
			return nil, err
		}
		return CancelAppointment{AppointmentID: id}, nil
	case ToolRescheduleAppointment:
		id, err := parseAppointmentID(args.AppointmentID)
		if err != nil {
			return nil, err
		}
		if _, err := scheduling.ParseDate(args.NewDate, nil); err != nil {
			return nil, fmt.Errorf("%w: new_date: %v", errInvalidToolArgs, err)
		}
		minutes, err := scheduling.ParseClock(args.NewTime)
		if err != nil {
			return nil, fmt.Errorf("%w: new_time: %v", errInvalidToolArgs, err)
		}
		return RescheduleAppointment{AppointmentID: id, NewDate: args.NewDate, NewTime: scheduling.FormatClock(minutes)}, nil
	case ToolCheckAvailability:
		if _, err := scheduling.ParseDate(args.Date, nil); err != nil {
			return nil, fmt.Errorf("%w: date: %v", errInvalidToolArgs, err)
		}
		return CheckAvailability{Date: args.Date}, nil
	case ToolRequestHandoff:
		return RequestHandoff{}, nil
	default:
		return nil, fmt.Errorf("conversation: unknown tool %q", name)
	}
}

func parseAppointmentID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: appointment_id: %v", errInvalidToolArgs, err)
	}
	return id, nil
}

func appointmentIDParam() jsonschema.Definition {
	return jsonschema.Definition{
		Type:        jsonschema.String,
		Description: "ID do agendamento, exatamente como listado em AGENDAMENTOS DO CLIENTE",
	}
}

// ToolDefinitions is the fixed palette offered to the model.
func ToolDefinitions() []openai.Tool {
	defs := []*openai.FunctionDefinition{
		{
			Name:        ToolConfirmAppointment,
			Description: "Confirma um agendamento pendente do cliente.",
			Parameters: jsonschema.Definition{
				Type:       jsonschema.Object,
				Properties: map[string]jsonschema.Definition{"appointment_id": appointmentIDParam()},
				Required:   []string{"appointment_id"},
			},
		},
		{
			Name:        ToolCancelAppointment,
			Description: "Cancela um agendamento do cliente.",
			Parameters: jsonschema.Definition{
				Type:       jsonschema.Object,
				Properties: map[string]jsonschema.Definition{"appointment_id": appointmentIDParam()},
				Required:   []string{"appointment_id"},
			},
		},
		{
			Name:        ToolRescheduleAppointment,
			Description: "Remarca um agendamento do cliente para outra data e horário.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"appointment_id": appointmentIDParam(),
					"new_date":       {Type: jsonschema.String, Description: "Nova data no formato YYYY-MM-DD"},
					"new_time":       {Type: jsonschema.String, Description: "Novo horário no formato HH:MM"},
				},
				Required: []string{"appointment_id", "new_date", "new_time"},
			},
		},
		{
			Name:        ToolCheckAvailability,
			Description: "Consulta os horários livres em uma data.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"date": {Type: jsonschema.String, Description: "Data no formato YYYY-MM-DD"},
				},
				Required: []string{"date"},
			},
		},
		{
			Name:        ToolRequestHandoff,
			Description: "Transfere a conversa para um atendente humano.",
			Parameters: jsonschema.Definition{
				Type:       jsonschema.Object,
				Properties: map[string]jsonschema.Definition{},
			},
		},
	}
	tools := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		tools = append(tools, openai.Tool{Type: openai.ToolTypeFunction, Function: d})
	}
	return tools
}
