package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/modernsoft/estock-support/backend/internal/model/chat"
	"github.com/modernsoft/estock-support/backend/internal/model/customer"
	"github.com/modernsoft/estock-support/backend/internal/service/ai"
	"github.com/modernsoft/estock-support/backend/internal/service/tools"
	"github.com/modernsoft/estock-support/backend/pkg/logger"
)

// TurnInput 是一次用户提交：文本与图片至少提供一个。
type TurnInput struct {
	Text  string
	Image *ai.Image
}

// Emit receives every message appended during a turn, in transcript order.
type Emit func(chat.Message)

// ToolDispatcher executes one batch of tool calls.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, calls []ai.FunctionCall) tools.Batch
}

// Session 是一次客户对话。模型调用严格串行；进行中的回合会让新的提交被立即拒绝。
type Session struct {
	mu           sync.Mutex
	id           string
	customer     *customer.Customer
	state        State
	chat         ai.Chat
	dispatcher   ToolDispatcher
	autosave     chat.AutosaveStore
	finalizer    *Finalizer
	messages     []chat.Message
	startedAt    time.Time
	lastActivity time.Time
	logID        string

	maxToolRounds int
	maxImageBytes int
	log           *logger.Logger
	now           func() time.Time
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Customer returns the logged-in customer, nil for guests.
func (s *Session) Customer() *customer.Customer {
	return s.customer
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActivity is the time of the last appended message.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyMessagesLocked()
}

// Snapshot returns the autosave view of the session.
func (s *Session) Snapshot() chat.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return chat.Snapshot{
		SessionID: s.id,
		Messages:  s.copyMessagesLocked(),
		StartedAt: s.startedAt,
		UpdatedAt: s.lastActivity,
	}
}

func (s *Session) copyMessagesLocked() []chat.Message {
	out := make([]chat.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// SubmitTurn 处理一次用户提交，返回本回合新增的全部消息（含用户消息）。
// 校验失败与状态冲突会在任何模型调用之前返回错误，且不改变会话。
func (s *Session) SubmitTurn(ctx context.Context, input TurnInput, emit Emit) ([]chat.Message, error) {
	hasImage := input.Image != nil && len(input.Image.Data) > 0
	if strings.TrimSpace(input.Text) == "" && !hasImage {
		return nil, ErrEmptyTurn
	}
	if hasImage && len(input.Image.Data) > s.maxImageBytes {
		return nil, ErrImageTooLarge
	}

	s.mu.Lock()
	switch {
	case s.state == StateClosed || s.state == StateFinalizing:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	case s.state == StateError:
		s.mu.Unlock()
		return nil, ErrSessionUnavailable
	case s.state != StateReady:
		s.mu.Unlock()
		return nil, ErrSessionBusy
	}
	s.state = StateAwaitingModel
	s.mu.Unlock()

	if !hasImage {
		input.Image = nil
	}

	produced := make([]chat.Message, 0, 4)
	record := func(msg chat.Message) {
		s.append(ctx, msg)
		produced = append(produced, msg)
		if emit != nil {
			emit(msg)
		}
	}

	record(chat.NewMessage(chat.RoleUser, input.Text, input.Image.DataURI()))

	modelReplied := false
	checkpoint := s.chat.Checkpoint()
	reply, err := s.chat.SendMessage(ctx, ai.UserTurn(input.Text, input.Image))

	rounds := 0
	loopExceeded := false
	for err == nil && reply.HasFunctionCalls() {
		if rounds >= s.maxToolRounds {
			loopExceeded = true
			break
		}
		rounds++

		s.setState(StateExecutingTools)
		batch := s.dispatcher.Dispatch(ctx, reply.FunctionCalls)
		for _, ev := range batch.Events {
			record(chat.NewMessage(chat.RoleModel, "", ev.ImageURL))
			modelReplied = true
		}

		s.setState(StateAwaitingModel)
		reply, err = s.chat.SendMessage(ctx, batch.Messages()...)
	}

	// 失败或超限时历史里可能留有没有结果的工具调用，回退到本轮开始前。
	if err != nil || loopExceeded {
		s.chat.Rollback(checkpoint)
	}

	switch {
	case err != nil:
		s.log.Warn("model call failed", "session_id", s.id, "rounds", rounds, "error", err)
		record(chat.NewMessage(chat.RoleModel, ApologyText, ""))
	case loopExceeded:
		s.log.Warn("tool loop exceeded", "session_id", s.id, "rounds", rounds)
		record(chat.NewMessage(chat.RoleModel, ToolLoopText, ""))
	case strings.TrimSpace(reply.Text) != "":
		record(chat.NewMessage(chat.RoleModel, reply.Text, ""))
	case !modelReplied:
		record(chat.NewMessage(chat.RoleModel, ApologyText, ""))
	}

	s.setState(StateReady)
	return produced, nil
}

// append 追加消息并在记录超过一条时覆盖写入自动保存快照。
func (s *Session) append(ctx context.Context, msg chat.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.lastActivity = s.now().UTC()
	var snapshot *chat.Snapshot
	if len(s.messages) > 1 {
		snapshot = &chat.Snapshot{
			SessionID: s.id,
			Messages:  s.copyMessagesLocked(),
			StartedAt: s.startedAt,
			UpdatedAt: s.lastActivity,
		}
	}
	s.mu.Unlock()

	if snapshot == nil || s.autosave == nil {
		return
	}
	if err := s.autosave.SaveAutosave(context.WithoutCancel(ctx), *snapshot); err != nil {
		s.log.Warn("autosave failed", "session_id", s.id, "error", err)
	}
}

// End 结束会话并返回日志 ID。可以从 READY 或 ERROR 状态结束；结束过程总会到达 CLOSED。
func (s *Session) End(ctx context.Context) (string, error) {
	s.mu.Lock()
	switch {
	case s.state == StateClosed:
		id := s.logID
		s.mu.Unlock()
		return id, ErrSessionClosed
	case s.state == StateFinalizing:
		s.mu.Unlock()
		return "", ErrSessionClosed
	case s.state.Busy():
		s.mu.Unlock()
		return "", ErrSessionBusy
	}
	s.state = StateFinalizing
	messages := s.copyMessagesLocked()
	startedAt := s.startedAt
	s.mu.Unlock()

	logID := s.finalizer.Finalize(ctx, s.id, messages, startedAt)

	s.mu.Lock()
	s.state = StateClosed
	s.logID = logID
	s.mu.Unlock()
	return logID, nil
}
