package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modernsoft/estock-support/backend/internal/model/chat"
	"github.com/modernsoft/estock-support/backend/internal/model/customer"
	"github.com/modernsoft/estock-support/backend/internal/service/ai"
	"github.com/modernsoft/estock-support/backend/internal/service/tools"
	"github.com/modernsoft/estock-support/backend/pkg/logger"
)

// ContextSource 提供会话开始时组装好的知识上下文。
type ContextSource interface {
	Assemble(ctx context.Context) (string, error)
}

// CustomerFinder resolves the customer a session is opened for.
type CustomerFinder interface {
	Get(ctx context.Context, id string) (*customer.Customer, error)
}

// Dependencies 汇总会话编排需要的协作者。Customers 与 Settings 可以为空。
type Dependencies struct {
	Client     *ai.Client
	Knowledge  ContextSource
	Dispatcher ToolDispatcher
	Finalizer  *Finalizer
	Autosave   chat.AutosaveStore
	Customers  CustomerFinder
	Settings   customer.SettingsStore
}

// Config 描述会话级限制。
type Config struct {
	MaxToolRounds  int
	MaxImageBytes  int
	SessionTimeout time.Duration
}

func (c Config) normalized() Config {
	if c.MaxToolRounds <= 0 {
		c.MaxToolRounds = 10
	}
	if c.MaxImageBytes <= 0 {
		c.MaxImageBytes = 1 << 20
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = customer.DefaultSessionTimeoutMinutes * time.Minute
	}
	return c
}

// Service 管理进程内的活跃会话。
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	deps     Dependencies
	cfg      Config
	log      *logger.Logger
	now      func() time.Time
}

// NewService 创建会话注册表。
func NewService(deps Dependencies, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if deps.Finalizer == nil {
		deps.Finalizer = NewFinalizer(nopLogStore{}, deps.Autosave, nil, log)
	}
	return &Service{
		sessions: make(map[string]*Session),
		deps:     deps,
		cfg:      cfg.normalized(),
		log:      log,
		now:      time.Now,
	}
}

// StartSession 打开一个新会话。初始化失败不会返回错误：会话进入 ERROR 状态，
// 并携带一条本地化提示消息。customerID 为空表示访客。
func (s *Service) StartSession(ctx context.Context, customerID string) (*Session, error) {
	var cust *customer.Customer
	if id := strings.TrimSpace(customerID); id != "" && s.deps.Customers != nil {
		c, err := s.deps.Customers.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lookup customer %s: %w", id, err)
		}
		cust = c
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	now := s.now().UTC()
	sess := &Session{
		id:            id.String(),
		customer:      cust,
		state:         StateUninitialized,
		dispatcher:    s.deps.Dispatcher,
		autosave:      s.deps.Autosave,
		finalizer:     s.deps.Finalizer,
		startedAt:     now,
		lastActivity:  now,
		maxToolRounds: s.cfg.MaxToolRounds,
		maxImageBytes: s.cfg.MaxImageBytes,
		log:           s.log,
		now:           s.now,
	}

	text := s.initialize(ctx, sess)
	sess.messages = []chat.Message{chat.NewMessage(chat.RoleModel, text, "")}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.log.Info("session started", "session_id", sess.id, "state", sess.state.String(), "guest", cust == nil)
	return sess, nil
}

// initialize 组装上下文并创建模型对话，返回首条消息文本。
func (s *Service) initialize(ctx context.Context, sess *Session) string {
	if s.deps.Client == nil || !s.deps.Client.Enabled() {
		sess.state = StateError
		return MissingCredentialText
	}

	docs, err := s.deps.Knowledge.Assemble(ctx)
	if err != nil {
		s.log.Error("assemble context failed", "session_id", sess.id, "error", err)
		sess.state = StateError
		return InitErrorText
	}

	instruction, err := ai.BuildSystemInstruction(ctx, sess.customer, docs)
	if err != nil {
		s.log.Error("build system instruction failed", "session_id", sess.id, "error", err)
		sess.state = StateError
		return InitErrorText
	}

	conv, err := s.deps.Client.CreateChat(instruction, tools.Declarations())
	if err != nil {
		s.log.Error("create chat failed", "session_id", sess.id, "error", err)
		sess.state = StateError
		return InitErrorText
	}

	sess.chat = conv
	sess.state = StateReady
	return GreetingText
}

// GetSession 查找活跃会话。
func (s *Service) GetSession(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// SubmitTurn forwards a turn to the session.
func (s *Service) SubmitTurn(ctx context.Context, id string, input TurnInput, emit Emit) ([]chat.Message, error) {
	sess, err := s.GetSession(id)
	if err != nil {
		return nil, err
	}
	return sess.SubmitTurn(ctx, input, emit)
}

// EndSession 结束会话并将其移出注册表，返回日志 ID。
func (s *Service) EndSession(ctx context.Context, id string) (string, error) {
	sess, err := s.GetSession(id)
	if err != nil {
		return "", err
	}
	logID, err := sess.End(ctx)
	if err != nil {
		return logID, err
	}
	s.remove(id)
	return logID, nil
}

func (s *Service) remove(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Active returns the number of live sessions.
func (s *Service) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SessionTimeout 优先使用后台保存的设置，读取失败时退回配置值。
func (s *Service) SessionTimeout(ctx context.Context) time.Duration {
	if s.deps.Settings == nil {
		return s.cfg.SessionTimeout
	}
	settings, found, err := s.deps.Settings.GetSettings(ctx)
	if err != nil {
		s.log.Warn("load settings failed", "error", err)
		return s.cfg.SessionTimeout
	}
	if !found {
		return s.cfg.SessionTimeout
	}
	return settings.SessionTimeout()
}

// SweepIdle 结束空闲超过超时时间的会话，返回结束的数量。处理中的会话会被跳过。
func (s *Service) SweepIdle(ctx context.Context, now time.Time) int {
	timeout := s.SessionTimeout(ctx)

	s.mu.RLock()
	idle := make([]*Session, 0)
	for _, sess := range s.sessions {
		if now.Sub(sess.LastActivity()) >= timeout {
			idle = append(idle, sess)
		}
	}
	s.mu.RUnlock()

	ended := 0
	for _, sess := range idle {
		if _, err := sess.End(ctx); err != nil {
			if errors.Is(err, ErrSessionClosed) {
				s.remove(sess.id)
			}
			continue
		}
		s.remove(sess.id)
		ended++
	}
	if ended > 0 {
		s.log.Info("idle sessions finalized", "count", ended, "timeout", timeout.String())
	}
	return ended
}

// EndAll 在进程退出前结束所有可结束的会话，处理中的会话留给下次启动的恢复流程。
func (s *Service) EndAll(ctx context.Context) int {
	s.mu.RLock()
	all := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mu.RUnlock()

	ended := 0
	for _, sess := range all {
		if _, err := sess.End(ctx); err == nil {
			ended++
			s.remove(sess.id)
		}
	}
	return ended
}

type nopLogStore struct{}

func (nopLogStore) AppendLog(context.Context, chat.Log) error { return nil }

func (nopLogStore) GetLogs(context.Context, int) ([]chat.Log, error) { return nil, nil }
