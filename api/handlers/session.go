package handlers

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/chatflow/api"
	"github.com/BaSui01/chatflow/chatengine"
	"github.com/BaSui01/chatflow/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// 🗂️ 会话注册表
// =============================================================================

// EngineFactory 为会话创建引擎
type EngineFactory func(sessionID string) (chatengine.ChatEngine, error)

// maxSessionIDLen 会话 ID 最大长度
const maxSessionIDLen = 128

type session struct {
	engine    chatengine.ChatEngine
	createdAt time.Time
}

// SessionRegistry 会话 ID → ChatEngine。每个会话独占一个引擎，
// 引擎自身的忙标志保证同一会话同一时刻只有一个进行中的轮次。
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*session
	factory  EngineFactory
	logger   *zap.Logger
}

// NewSessionRegistry 创建会话注册表
func NewSessionRegistry(factory EngineFactory, logger *zap.Logger) *SessionRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRegistry{
		sessions: make(map[string]*session),
		factory:  factory,
		logger:   logger.With(zap.String("component", "session_registry")),
	}
}

// Open 打开会话。id 为空时生成新 ID；已打开的会话直接返回。
// 持久化存储中的历史由引擎按 ID 读取，因此重启后可用同一 ID 恢复。
func (r *SessionRegistry) Open(id string) (*api.Session, error) {
	if id == "" {
		id = uuid.NewString()
	} else if err := validateSessionID(id); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		return r.describe(id, s), nil
	}

	engine, err := r.factory(id)
	if err != nil {
		return nil, fmt.Errorf("create engine for session %s: %w", id, err)
	}
	s := &session{engine: engine, createdAt: time.Now()}
	r.sessions[id] = s
	r.logger.Info("session opened", zap.String("session_id", id), zap.String("engine", engine.Name()))
	return r.describe(id, s), nil
}

// Get 返回会话的引擎
func (r *SessionRegistry) Get(id string) (chatengine.ChatEngine, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, types.NewError(types.ErrNotFound, fmt.Sprintf("session %q not found", id))
	}
	return s.engine, nil
}

// List 按创建时间返回所有会话
func (r *SessionRegistry) List() []*api.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*api.Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		out = append(out, r.describe(id, s))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len 会话数量
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *SessionRegistry) describe(id string, s *session) *api.Session {
	return &api.Session{ID: id, Engine: s.engine.Name(), CreatedAt: s.createdAt}
}

func validateSessionID(id string) error {
	if len(id) > maxSessionIDLen {
		return types.NewError(types.ErrInvalidRequest, "session id is too long")
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.' || c == ':':
		default:
			return types.NewError(types.ErrInvalidRequest, fmt.Sprintf("session id contains invalid character %q", c))
		}
	}
	return nil
}
