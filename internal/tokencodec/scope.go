package tokencodec

import (
	"encoding/json"
	"fmt"
)

// Scope is the closed capability enum from spec §3. Its external wire
// representation is exactly the strings below; extending it requires a
// schema change, not a config change.
type Scope string

const (
	ScopeTokenRefresh Scope = "token:refresh"
	ScopeReadUser     Scope = "read:user"
	ScopeWriteUser    Scope = "write:user"
)

var validScopes = map[Scope]struct{}{
	ScopeTokenRefresh: {},
	ScopeReadUser:     {},
	ScopeWriteUser:    {},
}

func (s Scope) Valid() bool {
	_, ok := validScopes[s]
	return ok
}

// ScopeSet is a set of Scopes that serializes as a JSON array of strings
// and rejects unknown members on the way back in.
type ScopeSet []Scope

func (s ScopeSet) Has(target Scope) bool {
	for _, sc := range s {
		if sc == target {
			return true
		}
	}
	return false
}

// HasAll reports whether every required scope is present.
func (s ScopeSet) HasAll(required ...Scope) bool {
	for _, r := range required {
		if !s.Has(r) {
			return false
		}
	}
	return true
}

func (s *ScopeSet) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(ScopeSet, 0, len(raw))
	for _, r := range raw {
		sc := Scope(r)
		if !sc.Valid() {
			return fmt.Errorf("tokencodec: unknown scope %q", r)
		}
		out = append(out, sc)
	}
	*s = out
	return nil
}

func (s ScopeSet) MarshalJSON() ([]byte, error) {
	raw := make([]string, len(s))
	for i, sc := range s {
		raw[i] = string(sc)
	}
	return json.Marshal(raw)
}

// Role is the closed role enum from spec §3.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)
