package core

import (
	"sync"
	"time"
)

// Exchange is one user utterance paired with the agent reply produced for it.
type Exchange struct {
	User  string `json:"user"`
	Agent string `json:"agent"`
}

// Session is the persisted conversation document keyed by an opaque id. It is
// owned by exactly one stage at a time and mutated only by the agent bound to
// that stage (through staged tool updates applied by the engine).
//
// Contract:
//   - History is append-only; RecentHistory bounds the model context window
//   - Cache entries are session-scoped, never shared across sessions
//   - Touch refreshes LastUpdated, the basis for the one-day garbage sweep
//   - Clone deep-copies maps and slices for safe divergence.
type Session struct {
	ID       string `json:"id"`
	UserAuth string `json:"user_auth"`
	Stage    Stage  `json:"stage"`

	ProductID   string               `json:"product_id"`
	ProductName string               `json:"product_name"`
	Product     map[string]any       `json:"product,omitempty"`
	Details     map[string]string    `json:"details"`
	Validation  map[string]FieldInfo `json:"validation,omitempty"`
	Request     RequestType          `json:"request,omitempty"`

	Address      map[string]any `json:"address,omitempty"`
	IndustryID   string         `json:"industry_id,omitempty"`
	IndustryName string         `json:"industry_name,omitempty"`

	History []Exchange   `json:"history"`
	Cache   *SearchCache `json:"cache,omitempty"`

	CachedAddresses   []map[string]any `json:"cached_addresses,omitempty"`
	CachedIndustries  []Industry       `json:"cached_industries,omitempty"`
	CachedDataFetched bool             `json:"cached_data_fetched"`

	OrderPlaced bool      `json:"order_placed"`
	Created     time.Time `json:"created"`
	LastUpdated time.Time `json:"last_updated"`

	mu sync.RWMutex
}

// Industry is one selectable end-use industry from the marketplace catalog.
type Industry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewSession creates a fresh session starting at the product-request stage.
func NewSession(id, userAuth string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:          id,
		UserAuth:    userAuth,
		Stage:       StageProductRequest,
		Details:     map[string]string{},
		History:     []Exchange{},
		Cache:       NewSearchCache(),
		Created:     now,
		LastUpdated: now,
	}
}

// Touch refreshes the garbage-collection timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastUpdated = time.Now().UTC()
}

// AppendExchange records one completed turn.
func (s *Session) AppendExchange(user, agent string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = append(s.History, Exchange{User: user, Agent: agent})
	s.LastUpdated = time.Now().UTC()
}

// RecentHistory returns up to the last n exchanges, oldest first. The slice
// is a copy; callers may not mutate session history through it.
func (s *Session) RecentHistory(n int) []Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	start := len(s.History) - n
	if start < 0 {
		start = 0
	}
	out := make([]Exchange, len(s.History)-start)
	copy(out, s.History[start:])
	return out
}

// SetDetail writes a single validated field value.
func (s *Session) SetDetail(field, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Details == nil {
		s.Details = map[string]string{}
	}
	s.Details[field] = value
	s.LastUpdated = time.Now().UTC()
}

// Detail reads a field value; the empty string means not collected yet.
func (s *Session) Detail(field string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Details[field]
}

// EnsureCache lazily allocates the per-session search cache. Sessions
// round-tripped through JSON may come back with a nil cache pointer.
func (s *Session) EnsureCache() *SearchCache {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Cache == nil {
		s.Cache = NewSearchCache()
	}
	return s.Cache
}

// Expired reports whether the session has been inactive longer than ttl.
func (s *Session) Expired(ttl time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.LastUpdated) > ttl
}

// Clone returns a deep copy safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:                s.ID,
		UserAuth:          s.UserAuth,
		Stage:             s.Stage,
		ProductID:         s.ProductID,
		ProductName:       s.ProductName,
		Request:           s.Request,
		IndustryID:        s.IndustryID,
		IndustryName:      s.IndustryName,
		CachedDataFetched: s.CachedDataFetched,
		OrderPlaced:       s.OrderPlaced,
		Created:           s.Created,
		LastUpdated:       s.LastUpdated,
	}
	clone.Product = copyAnyMap(s.Product)
	clone.Address = copyAnyMap(s.Address)
	clone.Details = make(map[string]string, len(s.Details))
	for k, v := range s.Details {
		clone.Details[k] = v
	}
	if s.Validation != nil {
		clone.Validation = make(map[string]FieldInfo, len(s.Validation))
		for k, v := range s.Validation {
			clone.Validation[k] = v
		}
	}
	clone.History = make([]Exchange, len(s.History))
	copy(clone.History, s.History)
	if s.Cache != nil {
		clone.Cache = s.Cache.Clone()
	}
	clone.CachedAddresses = make([]map[string]any, len(s.CachedAddresses))
	for i, a := range s.CachedAddresses {
		clone.CachedAddresses[i] = copyAnyMap(a)
	}
	clone.CachedIndustries = make([]Industry, len(s.CachedIndustries))
	copy(clone.CachedIndustries, s.CachedIndustries)
	return clone
}

func copyAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
