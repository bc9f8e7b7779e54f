package conversation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/agenda-agent/internal/scheduling"
)

type recordingNotifier struct {
	calls int
}

func (r *recordingNotifier) NotifyHandoff(context.Context, string, string, uuid.UUID) error {
	r.calls++
	return nil
}

func newTestExecutor(sched *fakeScheduling, store *memoryStore, notifier HandoffNotifier) *ToolExecutor {
	return NewToolExecutor(sched, sched, store, store, notifier, nil)
}

func TestToolExecutor_RescheduleDerivesEndTime(t *testing.T) {
	sched := newFakeScheduling()
	store := newMemoryStore()
	id := uuid.New()
	sched.add(scheduling.Appointment{ID: id, TenantID: "tenant-a", Date: "2026-10-19", StartTime: "10:00", EndTime: "10:45", Status: scheduling.StatusConfirmed}, 45)

	b := &Bundle{TenantID: "tenant-a", ConversationID: uuid.New()}
	res := newTestExecutor(sched, store, nil).Execute(context.Background(), b,
		RescheduleAppointment{AppointmentID: id, NewDate: "2026-10-20", NewTime: "14:20"})

	require.True(t, res.OK, "err: %v", res.Err)
	appt := sched.get(id)
	assert.Equal(t, "2026-10-20", appt.Date)
	assert.Equal(t, "14:20", appt.StartTime)
	assert.Equal(t, "15:05", appt.EndTime)
	assert.Equal(t, scheduling.StatusPending, appt.Status)
	assert.Equal(t, "Remarcado para 20/10/2026 14:20", res.Fallback)
}

func TestToolExecutor_TenantIsolation(t *testing.T) {
	sched := newFakeScheduling()
	store := newMemoryStore()
	foreign := uuid.New()
	sched.add(scheduling.Appointment{ID: foreign, TenantID: "tenant-b", Status: scheduling.StatusPending}, 30)

	b := &Bundle{TenantID: "tenant-a", ConversationID: uuid.New()}
	exec := newTestExecutor(sched, store, nil)

	for _, call := range []ToolCall{
		ConfirmAppointment{AppointmentID: foreign},
		CancelAppointment{AppointmentID: foreign},
		RescheduleAppointment{AppointmentID: foreign, NewDate: "2026-10-20", NewTime: "10:00"},
	} {
		res := exec.Execute(context.Background(), b, call)
		assert.False(t, res.OK, call.ToolName())
		assert.ErrorIs(t, res.Err, scheduling.ErrNotFound)
		assert.Equal(t, replyToolFailed, res.Fallback)
	}
	assert.Equal(t, scheduling.StatusPending, sched.get(foreign).Status)
	assert.Len(t, store.actions, 3, "every attempt is audited")
	for _, a := range store.actions {
		assert.Equal(t, "tenant-a", a.TenantID)
		assert.Equal(t, false, a.Details["success"])
	}
}

func TestToolExecutor_ConfirmAndCancelFallbacks(t *testing.T) {
	sched := newFakeScheduling()
	store := newMemoryStore()
	id := uuid.New()
	sched.add(scheduling.Appointment{ID: id, TenantID: "tenant-a", Status: scheduling.StatusPending}, 30)
	b := &Bundle{TenantID: "tenant-a", ConversationID: uuid.New()}
	exec := newTestExecutor(sched, store, nil)

	res := exec.Execute(context.Background(), b, ConfirmAppointment{AppointmentID: id})
	require.True(t, res.OK)
	assert.Equal(t, "Agendamento confirmado!", res.Fallback)
	assert.Equal(t, scheduling.StatusConfirmed, sched.get(id).Status)

	res = exec.Execute(context.Background(), b, CancelAppointment{AppointmentID: id})
	require.True(t, res.OK)
	assert.Equal(t, "Agendamento cancelado.", res.Fallback)
}

func TestToolExecutor_CheckAvailabilitySurfacesFive(t *testing.T) {
	sched := newFakeScheduling()
	sched.slots = []string{"09:00", "09:30", "10:30", "11:00", "11:30", "12:00", "12:30"}
	b := &Bundle{TenantID: "tenant-a", ConversationID: uuid.New()}

	res := newTestExecutor(sched, newMemoryStore(), nil).Execute(context.Background(), b, CheckAvailability{Date: "2026-10-20"})
	require.True(t, res.OK)
	assert.Equal(t, "Horários disponíveis em 20/10/2026: 09:00, 09:30, 10:30, 11:00, 11:30", res.Fallback)

	sched.slots = nil
	res = newTestExecutor(sched, newMemoryStore(), nil).Execute(context.Background(), b, CheckAvailability{Date: "2026-10-20"})
	require.True(t, res.OK)
	assert.Equal(t, "Não há horários disponíveis em 20/10/2026.", res.Fallback)
}

func TestToolExecutor_HandoffNotifies(t *testing.T) {
	store := newMemoryStore()
	conv, _, _ := store.FindOrCreateActive(context.Background(), "tenant-a", "+5511988887777")
	notifier := &recordingNotifier{}
	b := &Bundle{TenantID: "tenant-a", ConversationID: conv.ID, Phone: conv.Phone}

	res := newTestExecutor(newFakeScheduling(), store, notifier).Execute(context.Background(), b, RequestHandoff{})
	require.True(t, res.OK)
	assert.Equal(t, "Transferindo para atendente!", res.Fallback)
	assert.Equal(t, 1, notifier.calls)
	assert.True(t, store.conversations[conv.ID].HandoffRequested)
	assert.Equal(t, StatusHandoff, store.conversations[conv.ID].Status)
}

func TestToolExecutor_UnknownToolIsAudited(t *testing.T) {
	store := newMemoryStore()
	b := &Bundle{TenantID: "tenant-a", ConversationID: uuid.New()}

	res := newTestExecutor(newFakeScheduling(), store, nil).Execute(context.Background(), b, DecodeToolCall("delete_everything", `{}`))
	assert.False(t, res.OK)
	require.Len(t, store.actions, 1)
	assert.Equal(t, "delete_everything", store.actions[0].Action)
}
