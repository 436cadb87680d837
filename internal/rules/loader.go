package rules

import (
	_ "embed"
	"errors"
	"io/fs"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/homewatch/internal/models"
)

//go:embed builtin.yaml
var builtinRules []byte

// ruleSpec is the YAML shape of one rule entry.
type ruleSpec struct {
	AlertType string      `yaml:"alert_type"`
	Severity  string      `yaml:"severity"`
	Checks    []checkSpec `yaml:"checks"`
}

// checkSpec is the YAML shape of one property check.
type checkSpec struct {
	Property string `yaml:"property"`
	Operator string `yaml:"operator"`
	Value    any    `yaml:"value"`
}

// Load resolves the effective rule set: the builtin rules, with entries from
// the user override file (if configured and present) replacing builtin entries
// key-by-key. The merge is shallow: overriding a channel category replaces the
// whole rule, never patches individual fields.
//
// A missing or unparsable builtin definition logs an error and yields an empty
// set, which disables sensor-based detection without crashing the process.
func Load(overridePath string) Set {
	set := parse(builtinRules, "builtin")
	if set == nil {
		log.Printf("error: builtin detection rules failed to load, sensor detection disabled")
		return Set{}
	}

	if overridePath == "" {
		return set
	}

	data, err := os.ReadFile(overridePath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("warning: read detection rules override %s: %v", overridePath, err)
		}
		return set
	}

	override := parse(data, overridePath)
	if override == nil {
		log.Printf("warning: detection rules override %s is unparsable, keeping builtin rules", overridePath)
		return set
	}
	for cat, rule := range override {
		set[cat] = rule
	}
	return set
}

// parse decodes and validates a rule file. Invalid entries and invalid checks
// are dropped individually; a nil return means the file itself was unreadable.
func parse(data []byte, source string) Set {
	var specs map[string]ruleSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		log.Printf("warning: parse detection rules from %s: %v", source, err)
		return nil
	}

	set := make(Set, len(specs))
	for key, spec := range specs {
		channel, ok := models.ParseChannelCategory(key)
		if !ok {
			log.Printf("warning: detection rule %q in %s: unknown channel category, skipping", key, source)
			continue
		}
		alertType, ok := models.ParseAlertType(spec.AlertType)
		if !ok {
			log.Printf("warning: detection rule %q in %s: unknown alert type %q, skipping", key, source, spec.AlertType)
			continue
		}
		severity, ok := models.ParseSeverity(spec.Severity)
		if !ok {
			log.Printf("warning: detection rule %q in %s: unknown severity %q, skipping", key, source, spec.Severity)
			continue
		}
		if len(spec.Checks) == 0 {
			log.Printf("warning: detection rule %q in %s: no property checks, skipping", key, source)
			continue
		}

		var checks []Check
		for i, cs := range spec.Checks {
			property, ok := models.ParsePropertyCategory(cs.Property)
			if !ok {
				log.Printf("warning: detection rule %q check %d in %s: unknown property %q, dropping check", key, i, source, cs.Property)
				continue
			}
			operator, ok := ParseOperator(cs.Operator)
			if !ok {
				log.Printf("warning: detection rule %q check %d in %s: unknown operator %q, dropping check", key, i, source, cs.Operator)
				continue
			}
			checks = append(checks, Check{Property: property, Operator: operator, Value: cs.Value})
		}
		if len(checks) == 0 {
			log.Printf("warning: detection rule %q in %s: no valid checks survive, skipping", key, source)
			continue
		}

		set[channel] = Rule{
			Channel:   channel,
			AlertType: alertType,
			Severity:  severity,
			Checks:    checks,
		}
	}
	return set
}
