// Package lld renders Zabbix low-level discovery payloads for reported metric keys.
package lld

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vshulcz/zbxreporter/internal/ports"
)

const (
	// DefaultMacroName is the LLD macro each key is bound to.
	DefaultMacroName = "{#METRICS_KEY}"
	// DefaultDiscoveryRuleKey is the item key of the discovery rule on the collector.
	DefaultDiscoveryRuleKey = "metrics_discovery_rule_key"
)

// Generator emits {"data":[{"<macro>":"<key>"}, ...]} payloads.
type Generator struct {
	macro   string
	ruleKey string
}

var _ ports.DiscoveryGenerator = (*Generator)(nil)

// New returns a Generator; empty arguments fall back to the defaults.
func New(macro, ruleKey string) *Generator {
	if strings.TrimSpace(macro) == "" {
		macro = DefaultMacroName
	}
	if strings.TrimSpace(ruleKey) == "" {
		ruleKey = DefaultDiscoveryRuleKey
	}
	return &Generator{macro: macro, ruleKey: ruleKey}
}

// MacroName returns the macro keys are bound to.
func (g *Generator) MacroName() string { return g.macro }

// DiscoveryRuleKey returns the collector-side discovery rule key.
func (g *Generator) DiscoveryRuleKey() string { return g.ruleKey }

type payload struct {
	Data []map[string]string `json:"data"`
}

// GenerateDiscoveryPayload binds every key to the macro, preserving key order.
func (g *Generator) GenerateDiscoveryPayload(_ string, keys []string) (string, error) {
	p := payload{Data: make([]map[string]string, 0, len(keys))}
	for _, k := range keys {
		p.Data = append(p.Data, map[string]string{g.macro: k})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return "", fmt.Errorf("marshal discovery payload: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
