package client

import "encoding/json"

const (
	localCartKey = "local_cart"
	tokenKey     = "token"
	userKey      = "user"
)

// LocalCart persists the anonymous visitor's cart in the session KV under
// the local_cart key.
type LocalCart struct {
	kv KV
}

func NewLocalCart(kv KV) *LocalCart {
	return &LocalCart{kv: kv}
}

// Get returns the persisted lines; missing or malformed state is an empty
// cart, never an error.
func (s *LocalCart) Get() []Line {
	raw, ok := s.kv.Get(localCartKey)
	if !ok {
		return []Line{}
	}
	var lines []Line
	if err := json.Unmarshal(raw, &lines); err != nil || lines == nil {
		return []Line{}
	}
	return lines
}

func (s *LocalCart) Set(lines []Line) {
	if lines == nil {
		lines = []Line{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return
	}
	s.kv.Set(localCartKey, raw)
}

func (s *LocalCart) Clear() {
	s.kv.Delete(localCartKey)
}
