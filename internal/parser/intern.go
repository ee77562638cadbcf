package parser

import "sync"

// MaxInternPoolSize bounds an interner. Past it new strings are returned
// as given.
const MaxInternPoolSize = 100000

// StringIntern deduplicates the labels and outcome strings repeated across
// thousands of records of one run. Safe for concurrent use.
type StringIntern struct {
	mu    sync.RWMutex
	pool  map[string]string
	limit int
}

// NewStringIntern creates an interner holding at most limit strings;
// limit <= 0 uses MaxInternPoolSize.
func NewStringIntern(limit int) *StringIntern {
	if limit <= 0 {
		limit = MaxInternPoolSize
	}
	return &StringIntern{pool: make(map[string]string, 1024), limit: limit}
}

// Intern returns the pooled copy of s, storing s when it is new.
func (si *StringIntern) Intern(s string) string {
	si.mu.RLock()
	pooled, ok := si.pool[s]
	full := len(si.pool) >= si.limit
	si.mu.RUnlock()
	if ok {
		return pooled
	}
	if full {
		return s
	}

	si.mu.Lock()
	defer si.mu.Unlock()
	if pooled, ok := si.pool[s]; ok {
		return pooled
	}
	if len(si.pool) < si.limit {
		si.pool[s] = s
	}
	return s
}

// Len returns the number of pooled strings.
func (si *StringIntern) Len() int {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return len(si.pool)
}
