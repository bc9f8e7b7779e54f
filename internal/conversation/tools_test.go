package conversation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeToolCall(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name string
		tool string
		args string
		want ToolCall
	}{
		{"confirm", ToolConfirmAppointment, `{"appointment_id":"` + id.String() + `"}`, ConfirmAppointment{AppointmentID: id}},
		{"cancel", ToolCancelAppointment, `{"appointment_id":"` + id.String() + `"}`, CancelAppointment{AppointmentID: id}},
		{"reschedule normalizes time", ToolRescheduleAppointment,
			`{"appointment_id":"` + id.String() + `","new_date":"2026-10-20","new_time":"9:05"}`,
			RescheduleAppointment{AppointmentID: id, NewDate: "2026-10-20", NewTime: "09:05"}},
		{"availability", ToolCheckAvailability, `{"date":"2026-10-20"}`, CheckAvailability{Date: "2026-10-20"}},
		{"handoff without args", ToolRequestHandoff, ``, RequestHandoff{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeToolCall(tt.tool, tt.args))
		})
	}
}

func TestDecodeToolCall_InvalidBecomesUnknown(t *testing.T) {
	cases := map[string][2]string{
		"unknown name":   {"book_flight", `{}`},
		"bad json":       {ToolConfirmAppointment, `{"appointment_id":`},
		"bad uuid":       {ToolCancelAppointment, `{"appointment_id":"42"}`},
		"bad date":       {ToolCheckAvailability, `{"date":"amanhã"}`},
		"bad time":       {ToolRescheduleAppointment, `{"appointment_id":"` + uuid.NewString() + `","new_date":"2026-10-20","new_time":"25:00"}`},
		"missing fields": {ToolRescheduleAppointment, `{}`},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			call := DecodeToolCall(c[0], c[1])
			unknown, ok := call.(UnknownTool)
			require.True(t, ok, "got %T", call)
			assert.Equal(t, c[0], unknown.Name)
			assert.NotEmpty(t, unknown.Reason)
		})
	}
}

func TestToolDefinitions(t *testing.T) {
	defs := ToolDefinitions()
	require.Len(t, defs, 5)
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		require.NotNil(t, d.Function)
		names = append(names, d.Function.Name)
	}
	assert.ElementsMatch(t, []string{
		ToolConfirmAppointment, ToolCancelAppointment, ToolRescheduleAppointment,
		ToolCheckAvailability, ToolRequestHandoff,
	}, names)
}
