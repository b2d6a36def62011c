package config

import (
	"encoding/json"
	"fmt"
	"os"

	"wablast/internal/models"
	"wablast/internal/security"
)

// ruleNode is the nested form rules take in the JSON file. The loader
// flattens it into the arena the responder traverses.
type ruleNode struct {
	Keyword  string     `json:"keyword,omitempty"`
	Group    string     `json:"group,omitempty"`
	Match    string     `json:"match,omitempty"`
	Response string     `json:"response"`
	Children []ruleNode `json:"children,omitempty"`
}

type rulesFile struct {
	Groups map[string][]string `json:"groups,omitempty"`
	Rules  []ruleNode          `json:"rules"`
}

// LoadRules reads the responder rules file into a flat rule arena. Rules may
// nest exactly one level deep: roots and their direct children.
func LoadRules(path string) (*models.RuleSet, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid rules path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var parsed rulesFile
	if err := json.Unmarshal(file, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	set := &models.RuleSet{Groups: parsed.Groups}
	if set.Groups == nil {
		set.Groups = make(map[string][]string)
	}

	for i, node := range parsed.Rules {
		rootID, err := appendRule(set, node, fmt.Sprintf("rule %d", i))
		if err != nil {
			return nil, err
		}

		for j, childNode := range node.Children {
			where := fmt.Sprintf("rule %d child %d", i, j)
			if len(childNode.Children) > 0 {
				return nil, models.ConfigError{Message: where + ": rules nest at most one level"}
			}
			childID, err := appendRule(set, childNode, where)
			if err != nil {
				return nil, err
			}
			set.Rules[rootID].Children = append(set.Rules[rootID].Children, childID)
		}
		set.Roots = append(set.Roots, rootID)
	}
	return set, nil
}

func appendRule(set *models.RuleSet, node ruleNode, where string) (int, error) {
	if node.Response == "" {
		return 0, models.ConfigError{Message: where + ": missing response"}
	}
	if node.Keyword == "" && node.Group == "" {
		return 0, models.ConfigError{Message: where + ": needs a keyword or a group"}
	}
	if node.Keyword != "" && node.Group != "" {
		return 0, models.ConfigError{Message: where + ": keyword and group are mutually exclusive"}
	}
	if node.Group != "" {
		if _, exists := set.Groups[node.Group]; !exists {
			return 0, models.ConfigError{Message: fmt.Sprintf("%s: unknown group %q", where, node.Group)}
		}
	}

	matchType, err := parseMatchType(node.Match)
	if err != nil {
		return 0, models.ConfigError{Message: where + ": " + err.Error()}
	}

	id := len(set.Rules)
	set.Rules = append(set.Rules, models.Rule{
		ID:        id,
		Keyword:   node.Keyword,
		Group:     node.Group,
		MatchType: matchType,
		Response:  node.Response,
	})
	return id, nil
}

func parseMatchType(s string) (models.MatchType, error) {
	switch models.MatchType(s) {
	case "":
		return models.MatchExact, nil
	case models.MatchExact, models.MatchContains, models.MatchStarts, models.MatchEnds:
		return models.MatchType(s), nil
	default:
		return "", fmt.Errorf("unknown match type %q", s)
	}
}
