package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/wolfman30/agenda-agent/internal/scheduling"
)

type stubChatClient struct {
	mu       sync.Mutex
	response openai.ChatCompletionResponse
	err      error
	lastReq  openai.ChatCompletionRequest
	calls    int
}

func (s *stubChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return s.response, nil
}

func chatResponse(content string, calls ...openai.ToolCall) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				Role:      openai.ChatMessageRoleAssistant,
				Content:   content,
				ToolCalls: calls,
			}},
		},
	}
}

func toolCall(name, args string) openai.ToolCall {
	return openai.ToolCall{
		ID:       "call_" + name,
		Type:     openai.ToolTypeFunction,
		Function: openai.FunctionCall{Name: name, Arguments: args},
	}
}

// fakeScheduling keeps appointments per tenant so tenant scoping is observable.
type fakeScheduling struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]scheduling.Appointment
	durations    map[uuid.UUID]int
	slots        []string
	company      scheduling.Company
	companyErr   error
	knowledgeErr error
	services     []scheduling.Service
	settings     scheduling.SchedulingSettings
}

func newFakeScheduling() *fakeScheduling {
	return &fakeScheduling{
		appointments: make(map[uuid.UUID]scheduling.Appointment),
		durations:    make(map[uuid.UUID]int),
		settings:     scheduling.DefaultSettings,
	}
}

func (f *fakeScheduling) add(a scheduling.Appointment, duration int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appointments[a.ID] = a
	f.durations[a.ID] = duration
}

func (f *fakeScheduling) get(id uuid.UUID) scheduling.Appointment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appointments[id]
}

func (f *fakeScheduling) UpcomingAppointments(_ context.Context, tenantID, phone, _ string, _ int) ([]scheduling.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []scheduling.Appointment
	for _, a := range f.appointments {
		if a.TenantID == tenantID && a.ClientPhone == phone {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeScheduling) Company(context.Context, string) (scheduling.Company, error) {
	return f.company, f.companyErr
}

func (f *fakeScheduling) ActiveServices(context.Context, string) ([]scheduling.Service, error) {
	return f.services, nil
}

func (f *fakeScheduling) BusinessHours(context.Context, string) ([]scheduling.BusinessHours, error) {
	return []scheduling.BusinessHours{{DayOfWeek: 1, OpenTime: "09:00", CloseTime: "18:00", IsOpen: true}}, nil
}

func (f *fakeScheduling) KnowledgeBase(context.Context, string) ([]scheduling.KnowledgeEntry, error) {
	if f.knowledgeErr != nil {
		return nil, f.knowledgeErr
	}
	return []scheduling.KnowledgeEntry{{Title: "Estacionamento", Content: "Gratuito"}}, nil
}

func (f *fakeScheduling) Settings(context.Context, string) (scheduling.SchedulingSettings, error) {
	return f.settings, nil
}

func (f *fakeScheduling) SetAppointmentStatus(_ context.Context, tenantID string, id uuid.UUID, status string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok || a.TenantID != tenantID {
		return 0, nil
	}
	a.Status = status
	f.appointments[id] = a
	return 1, nil
}

func (f *fakeScheduling) ServiceDuration(_ context.Context, tenantID string, id uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok || a.TenantID != tenantID {
		return 0, scheduling.ErrNotFound
	}
	return f.durations[id], nil
}

func (f *fakeScheduling) Reschedule(_ context.Context, tenantID string, id uuid.UUID, date, start, end string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok || a.TenantID != tenantID {
		return 0, nil
	}
	a.Date, a.StartTime, a.EndTime, a.Status = date, start, end, scheduling.StatusPending
	f.appointments[id] = a
	return 1, nil
}

func (f *fakeScheduling) Available(context.Context, string, string) ([]string, error) {
	return f.slots, nil
}

// memoryStore is an in-memory conversation store for pipeline tests.
type memoryStore struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*Conversation
	messages      []Message
	actions       []ActionLog
	appendErr     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{conversations: make(map[uuid.UUID]*Conversation)}
}

func (m *memoryStore) FindOrCreateActive(_ context.Context, tenantID, phone string) (Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conversations {
		if c.TenantID == tenantID && c.Phone == phone && (c.Status == StatusActive || c.Status == StatusHandoff) {
			return *c, false, nil
		}
	}
	c := &Conversation{ID: uuid.New(), TenantID: tenantID, Phone: phone, Status: StatusActive}
	m.conversations[c.ID] = c
	return *c, true, nil
}

func (m *memoryStore) AppendMessage(_ context.Context, msg Message) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil && msg.Direction == DirectionOutgoing {
		return Message{}, m.appendErr
	}
	msg.ID = uuid.New()
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *memoryStore) TouchActivity(context.Context, string, uuid.UUID) error { return nil }

func (m *memoryStore) SetIntent(_ context.Context, tenantID string, id uuid.UUID, intent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conversations[id]; ok && c.TenantID == tenantID {
		c.CurrentIntent = intent
		return nil
	}
	return ErrNotFound
}

func (m *memoryStore) RequestHandoff(_ context.Context, tenantID string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conversations[id]; ok && c.TenantID == tenantID {
		c.HandoffRequested = true
		c.Status = StatusHandoff
		return nil
	}
	return ErrNotFound
}

func (m *memoryStore) RecentMessages(_ context.Context, tenantID string, conversationID uuid.UUID, limit int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && msg.TenantID == tenantID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memoryStore) HasRecentIncoming(_ context.Context, tenantID string, conversationID uuid.UUID, content string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && msg.TenantID == tenantID &&
			msg.Direction == DirectionIncoming && msg.Content == content {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) LogAgentAction(_ context.Context, entry ActionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, entry)
	return nil
}

func (m *memoryStore) count(direction string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.Direction == direction {
			n++
		}
	}
	return n
}
