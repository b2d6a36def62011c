package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"wablast/internal/broadcast"
	apperrors "wablast/internal/errors"
	"wablast/internal/models"
	"wablast/pkg/messaging/types"

	"github.com/sirupsen/logrus"
)

// ConversationStore persists the per-contact exchange log.
type ConversationStore interface {
	AppendConversation(ctx context.Context, entry *models.ConversationEntry) error
	GetConversation(ctx context.Context, tenantID, contactID string) ([]models.ConversationEntry, error)
}

// AutoResponder replies to inbound messages using a two-level keyword rule
// arena. After a rule matches, that sender's next message is matched against
// the rule's children first, then the roots; the first match wins.
//
// Each tenant's responder can be paused. Pausing stops matching and replying
// but leaves the stored conversation context untouched.
type AutoResponder struct {
	sessions    SessionGateway
	rules       *models.RuleSet
	store       ConversationStore
	broadcaster broadcast.Broadcaster
	logger      *logrus.Logger

	mu     sync.Mutex
	paused map[string]bool
	// context of the conversation per tenant and sender: the arena index of
	// the last rule that matched.
	ruleCtx map[string]map[string]int
}

func NewAutoResponder(sessions SessionGateway, rules *models.RuleSet, store ConversationStore, broadcaster broadcast.Broadcaster, logger *logrus.Logger) *AutoResponder {
	if rules == nil {
		rules = &models.RuleSet{}
	}
	return &AutoResponder{
		sessions:    sessions,
		rules:       rules,
		store:       store,
		broadcaster: broadcaster,
		logger:      logger,
		paused:      make(map[string]bool),
		ruleCtx:     make(map[string]map[string]int),
	}
}

// Pause stops the responder for one tenant. Inbound messages are still
// logged and broadcast while paused.
func (a *AutoResponder) Pause(tenantID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paused[tenantID] = true
}

// Resume re-enables the responder for one tenant.
func (a *AutoResponder) Resume(tenantID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.paused, tenantID)
}

// Paused reports whether the tenant's responder is paused.
func (a *AutoResponder) Paused(tenantID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.paused[tenantID]
}

// HandleInbound is the webhook handler for inbound gateway messages. The
// broadcast to subscribers happens after the responder has had its turn, so
// listeners observe the already-updated conversation state.
func (a *AutoResponder) HandleInbound(ctx context.Context, tenantID string, payload json.RawMessage) error {
	var msg types.InboundMessagePayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "malformed inbound message payload")
	}
	if msg.Sender == "" {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "inbound message missing sender")
	}

	a.sessions.Touch(tenantID)

	if !a.Paused(tenantID) {
		a.respond(ctx, tenantID, msg.Sender, msg.Body)
	}

	a.broadcaster.Publish(tenantID, models.EventInboundMessage, models.InboundMessageEvent{
		Sender:    msg.Sender,
		Body:      msg.Body,
		Timestamp: time.Unix(msg.Timestamp, 0),
	})
	return nil
}

func (a *AutoResponder) respond(ctx context.Context, tenantID, sender, body string) {
	rule := a.match(tenantID, sender, body)
	if rule == nil {
		return
	}

	if err := a.sessions.Send(ctx, tenantID, sender, rule.Response, ""); err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			LogFieldTenantID:  tenantID,
			LogFieldContactID: sender,
		}).Warn("Auto reply failed")
		return
	}

	a.setRuleContext(tenantID, sender, rule.ID)

	entry := &models.ConversationEntry{
		TenantID:  tenantID,
		ContactID: sender,
		Query:     body,
		Response:  rule.Response,
		CreatedAt: time.Now(),
	}
	if err := a.store.AppendConversation(ctx, entry); err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			LogFieldTenantID:  tenantID,
			LogFieldContactID: sender,
		}).Warn("Failed to record conversation")
	}
}

// match finds the first rule whose keyword matches the message. Children of
// the sender's last matched rule take priority over the roots.
func (a *AutoResponder) match(tenantID, sender, body string) *models.Rule {
	normalized := normalize(body)

	if lastID, ok := a.getRuleContext(tenantID, sender); ok {
		if last := a.rules.Rule(lastID); last != nil {
			for _, childID := range last.Children {
				if child := a.rules.Rule(childID); child != nil && a.ruleMatches(child, normalized) {
					return child
				}
			}
		}
	}

	for _, rootID := range a.rules.Roots {
		if root := a.rules.Rule(rootID); root != nil && a.ruleMatches(root, normalized) {
			return root
		}
	}
	return nil
}

// ruleMatches checks the rule's keyword, or every keyword of its group,
// against the normalized message.
func (a *AutoResponder) ruleMatches(rule *models.Rule, normalized string) bool {
	if rule.Group != "" {
		for _, keyword := range a.rules.Groups[rule.Group] {
			if keywordMatches(rule.MatchType, normalize(keyword), normalized) {
				return true
			}
		}
		return false
	}
	return keywordMatches(rule.MatchType, normalize(rule.Keyword), normalized)
}

func keywordMatches(matchType models.MatchType, keyword, message string) bool {
	if keyword == "" {
		return false
	}
	switch matchType {
	case models.MatchExact:
		return message == keyword
	case models.MatchContains:
		return strings.Contains(message, keyword)
	case models.MatchStarts:
		return strings.HasPrefix(message, keyword)
	case models.MatchEnds:
		return strings.HasSuffix(message, keyword)
	default:
		return false
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (a *AutoResponder) getRuleContext(tenantID, sender string) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	senders, ok := a.ruleCtx[tenantID]
	if !ok {
		return 0, false
	}
	id, ok := senders[sender]
	return id, ok
}

func (a *AutoResponder) setRuleContext(tenantID, sender string, ruleID int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	senders, ok := a.ruleCtx[tenantID]
	if !ok {
		senders = make(map[string]int)
		a.ruleCtx[tenantID] = senders
	}
	senders[sender] = ruleID
}

// Conversation returns the stored exchange log for one contact, oldest first.
func (a *AutoResponder) Conversation(ctx context.Context, tenantID, contactID string) ([]models.ConversationEntry, error) {
	entries, err := a.store.GetConversation(ctx, tenantID, contactID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "failed to load conversation")
	}
	return entries, nil
}
