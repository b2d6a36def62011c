package models

import "time"

// MatchType selects how a rule keyword is compared against an inbound message.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchContains MatchType = "contains"
	MatchStarts   MatchType = "starts_with"
	MatchEnds     MatchType = "ends_with"
)

// Rule is one keyword-to-response mapping. Rules live in a flat arena and
// reference their children by arena index, which keeps traversal a two-level
// lookup with no recursion.
type Rule struct {
	ID        int       `json:"id"`
	Keyword   string    `json:"keyword,omitempty"`
	Group     string    `json:"group,omitempty"`
	MatchType MatchType `json:"matchType"`
	Response  string    `json:"response"`
	Children  []int     `json:"children,omitempty"`
}

// RuleSet is the arena of all loaded rules plus the root ordering and the
// named keyword groups. Root order is match priority: first match wins.
type RuleSet struct {
	Rules  []Rule              `json:"rules"`
	Roots  []int               `json:"roots"`
	Groups map[string][]string `json:"groups"`
}

// Rule returns the rule at the given arena index, or nil if out of range.
func (rs *RuleSet) Rule(id int) *Rule {
	if rs == nil || id < 0 || id >= len(rs.Rules) {
		return nil
	}
	return &rs.Rules[id]
}

// ConversationEntry is one exchange appended to the durable per-contact log.
type ConversationEntry struct {
	ID        int64     `json:"id" db:"id"`
	TenantID  string    `json:"tenantId" db:"tenant_id"`
	ContactID string    `json:"contactId" db:"contact_id"`
	Query     string    `json:"query" db:"query"`
	Response  string    `json:"response" db:"response"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
