// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionHeader carries the session id on streamable HTTP requests.
const SessionHeader = "Mcp-Session-Id"

// DefaultSessionTTL is how long an idle HTTP session survives.
const DefaultSessionTTL = 30 * time.Minute

// sessionStore tracks live HTTP sessions and their last activity.
type sessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]time.Time
	now      func() time.Time
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		ttl:      ttl,
		sessions: make(map[string]time.Time),
		now:      time.Now,
	}
}

// create opens a new session and returns its id.
func (s *sessionStore) create() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = s.now()
	s.mu.Unlock()
	return id
}

// touch refreshes a session, reporting false if it does not exist.
func (s *sessionStore) touch(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	s.sessions[id] = s.now()
	return true
}

func (s *sessionStore) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// expire drops sessions idle for longer than the TTL and returns their ids.
func (s *sessionStore) expire() []string {
	if s.ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []string
	now := s.now()
	for id, last := range s.sessions {
		if now.Sub(last) > s.ttl {
			delete(s.sessions, id)
			expired = append(expired, id)
		}
	}
	return expired
}

func (s *sessionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// validSessionID reports whether id uses only visible ASCII.
func validSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("empty session id")
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7E {
			return fmt.Errorf("invalid session id: contains non-visible characters")
		}
	}
	return nil
}
