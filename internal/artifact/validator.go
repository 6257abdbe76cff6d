// Package artifact provides schema validation and persistence for the
// versioned documents flowing through the authoring pipeline.
//
// Validation is a single polymorphic entry point over a per-kind rule
// table rather than ad hoc checks per kind. It never mutates its input;
// callers must not persist a document that failed strict validation.
package artifact

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/forgeworks/pipeline/internal/domain"
	pipelineerrors "github.com/forgeworks/pipeline/internal/errors"
)

// Mode selects how strictly a document is validated.
type Mode string

// Validation modes.
const (
	// ModeStrict enforces all required fields and identifier patterns.
	// Documents that fail strict validation must not be persisted.
	ModeStrict Mode = "strict"

	// ModeLenient downgrades missing-field findings to warnings while
	// still enforcing structure and identifier patterns.
	ModeLenient Mode = "lenient"

	// ModeDraft enforces only structural well-formedness and identifier
	// uniqueness, for work-in-progress documents.
	ModeDraft Mode = "draft"
)

// Result is the outcome of validating one document. Valid means no errors;
// warnings never block persistence on their own.
type Result struct {
	Valid    bool                        `json:"valid"`
	Errors   []pipelineerrors.FieldError `json:"errors,omitempty"`
	Warnings []pipelineerrors.FieldError `json:"warnings,omitempty"`
}

// Err returns a *ValidationError carrying the field errors, or nil when the
// result is valid.
func (r *Result) Err(kind domain.Kind) error {
	if r.Valid {
		return nil
	}
	return &pipelineerrors.ValidationError{Kind: kind.String(), Fields: r.Errors}
}

// refRule maps an entry-level field to the upstream kind defining the
// identifiers it holds. The field may be a single string or a string list.
type refRule struct {
	field string
	kind  domain.Kind
}

// kindSpec describes the declared shape of one artifact kind: the entry
// collection, its identifier pattern, required and recommended fields, and
// which fields reference upstream identifiers.
type kindSpec struct {
	collection  string
	idPattern   *regexp.Regexp
	required    []string
	recommended []string
	refs        []refRule

	// nestedDefines names an entry-level list whose members also define
	// identifiers (user stories inside features).
	nestedDefines string
	nestedPattern *regexp.Regexp
}

// kindSpecs is the per-kind rule table. Identifier patterns are fixed:
// features FR-###, stories ST-###, flows FLOW-###, entities ENT-###,
// journeys JRN-###, tasks TASK-###, decisions ADR-#### (four-digit form),
// scaffolds SCAFFOLD-###.
var kindSpecs = map[domain.Kind]kindSpec{
	domain.KindRequirements: {
		collection:    "features",
		idPattern:     regexp.MustCompile(`^FR-\d{3}$`),
		required:      []string{"id", "title", "description", "user_stories"},
		recommended:   []string{"priority"},
		nestedDefines: "user_stories",
		nestedPattern: regexp.MustCompile(`^ST-\d{3}$`),
	},
	domain.KindFlow: {
		collection:  "user_flows",
		idPattern:   regexp.MustCompile(`^FLOW-\d{3}$`),
		required:    []string{"id", "name", "feature_id", "steps"},
		recommended: []string{"description", "trigger", "success_criteria"},
		refs: []refRule{
			{field: "feature_id", kind: domain.KindRequirements},
			{field: "story_ids", kind: domain.KindRequirements},
		},
	},
	domain.KindDataModel: {
		collection:  "entities",
		idPattern:   regexp.MustCompile(`^ENT-\d{3}$`),
		required:    []string{"id", "name", "table_name", "attributes"},
		recommended: []string{"description", "indexes"},
		refs: []refRule{
			{field: "flow_ids", kind: domain.KindFlow},
		},
	},
	domain.KindJourney: {
		collection:  "journeys",
		idPattern:   regexp.MustCompile(`^JRN-\d{3}$`),
		required:    []string{"id", "name", "persona_id", "phases"},
		recommended: []string{"description", "success_metrics"},
		refs: []refRule{
			{field: "story_ids", kind: domain.KindRequirements},
			{field: "flow_ids", kind: domain.KindFlow},
			{field: "entity_ids", kind: domain.KindDataModel},
		},
	},
	domain.KindTaskSet: {
		collection:  "tasks",
		idPattern:   regexp.MustCompile(`^TASK-\d{3}$`),
		required:    []string{"id", "title", "type", "priority"},
		recommended: []string{"description", "acceptance_criteria"},
		refs: []refRule{
			{field: "feature_id", kind: domain.KindRequirements},
			{field: "story_ids", kind: domain.KindRequirements},
			{field: "flow_ids", kind: domain.KindFlow},
			{field: "entity_ids", kind: domain.KindDataModel},
			{field: "journey_ids", kind: domain.KindJourney},
		},
	},
	domain.KindDecision: {
		collection:  "decisions",
		idPattern:   regexp.MustCompile(`^ADR-\d{4}$`),
		required:    []string{"id", "title", "status", "decision", "rationale"},
		recommended: []string{"context", "alternatives"},
		refs: []refRule{
			{field: "feature_ids", kind: domain.KindRequirements},
			{field: "entity_ids", kind: domain.KindDataModel},
			{field: "task_ids", kind: domain.KindTaskSet},
		},
	},
	domain.KindScaffold: {
		collection:  "templates_to_apply",
		idPattern:   regexp.MustCompile(`^SCAFFOLD-\d{3}$`),
		required:    []string{"id", "name", "source_path", "target_path"},
		recommended: []string{"variables", "files_to_generate"},
		refs: []refRule{
			{field: "decision_ids", kind: domain.KindDecision},
		},
	},
}

// Validator validates candidate documents against their declared kind.
// It is stateless and safe for concurrent use.
type Validator struct{}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks a candidate document of the given kind under the given
// mode. The document is raw JSON; it is parsed but never modified.
func (v *Validator) Validate(kind domain.Kind, doc []byte, mode Mode) (*Result, error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", pipelineerrors.ErrUnknownKind, kind)
	}
	switch mode {
	case ModeStrict, ModeLenient, ModeDraft:
	default:
		return nil, fmt.Errorf("%w: validation mode %q", pipelineerrors.ErrInvalidArgument, mode)
	}

	result := &Result{}

	var parsed map[string]any
	if err := json.Unmarshal(doc, &parsed); err != nil {
		result.addError("", "document is not a JSON object", err.Error())
		result.Valid = false
		return result, nil
	}

	entries := v.checkCollection(parsed, spec, result)
	v.checkIdentifiers(entries, spec, mode, result)
	if mode != ModeDraft {
		v.checkFields(entries, spec, mode, result)
	}

	result.Valid = len(result.Errors) == 0
	return result, nil
}

// checkCollection verifies the entry collection exists and is a list of
// objects, returning the entries for further checks.
func (v *Validator) checkCollection(parsed map[string]any, spec kindSpec, result *Result) []map[string]any {
	raw, ok := parsed[spec.collection]
	if !ok {
		result.addError(spec.collection, "required collection is missing", "")
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		result.addError(spec.collection, "collection must be a list", fmt.Sprintf("%T", raw))
		return nil
	}

	entries := make([]map[string]any, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			result.addError(fmt.Sprintf("%s[%d]", spec.collection, i), "entry must be an object", fmt.Sprintf("%T", item))
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// checkIdentifiers enforces identifier uniqueness in every mode and
// identifier patterns outside draft mode.
func (v *Validator) checkIdentifiers(entries []map[string]any, spec kindSpec, mode Mode, result *Result) {
	seen := make(map[string]bool)
	for i, entry := range entries {
		path := fmt.Sprintf("%s[%d].id", spec.collection, i)
		id, ok := entry["id"].(string)
		if !ok || id == "" {
			result.addError(path, "entry identifier is missing", "")
			continue
		}
		if seen[id] {
			result.addError(path, "duplicate identifier", id)
		}
		seen[id] = true
		if mode != ModeDraft && !spec.idPattern.MatchString(id) {
			result.addError(path, fmt.Sprintf("identifier must match %s", spec.idPattern), id)
		}

		if spec.nestedDefines == "" {
			continue
		}
		nested, _ := entry[spec.nestedDefines].([]any)
		for j, item := range nested {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			nestedPath := fmt.Sprintf("%s[%d].%s[%d].id", spec.collection, i, spec.nestedDefines, j)
			nestedID, ok := obj["id"].(string)
			if !ok || nestedID == "" {
				result.addError(nestedPath, "entry identifier is missing", "")
				continue
			}
			if seen[nestedID] {
				result.addError(nestedPath, "duplicate identifier", nestedID)
			}
			seen[nestedID] = true
			if mode != ModeDraft && !spec.nestedPattern.MatchString(nestedID) {
				result.addError(nestedPath, fmt.Sprintf("identifier must match %s", spec.nestedPattern), nestedID)
			}
		}
	}
}

// checkFields enforces declared fields. Strict mode reports missing
// required fields as errors and missing recommended fields as warnings;
// lenient mode reports both as warnings.
func (v *Validator) checkFields(entries []map[string]any, spec kindSpec, mode Mode, result *Result) {
	for i, entry := range entries {
		for _, field := range spec.required {
			if _, ok := entry[field]; ok {
				continue
			}
			path := fmt.Sprintf("%s[%d].%s", spec.collection, i, field)
			if mode == ModeStrict {
				result.addError(path, "required field is missing", "")
			} else {
				result.addWarning(path, "required field is missing", "")
			}
		}
		for _, field := range spec.recommended {
			if _, ok := entry[field]; ok {
				continue
			}
			path := fmt.Sprintf("%s[%d].%s", spec.collection, i, field)
			result.addWarning(path, "recommended field is missing", "")
		}
	}
}

// Extract derives the identifier sets of a document: the identifiers it
// defines and the upstream identifiers it references, grouped by kind.
// Extract assumes the document already passed at least draft validation.
func Extract(kind domain.Kind, doc []byte) (defines []string, references map[domain.Kind][]string, err error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", pipelineerrors.ErrUnknownKind, kind)
	}

	var parsed map[string]any
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", pipelineerrors.ErrSchemaValidation, err)
	}

	list, _ := parsed[spec.collection].([]any)
	refSets := make(map[domain.Kind]map[string]bool)

	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := entry["id"].(string); ok && id != "" {
			defines = append(defines, id)
		}
		if spec.nestedDefines != "" {
			nested, _ := entry[spec.nestedDefines].([]any)
			for _, n := range nested {
				obj, ok := n.(map[string]any)
				if !ok {
					continue
				}
				if id, ok := obj["id"].(string); ok && id != "" {
					defines = append(defines, id)
				}
			}
		}
		for _, ref := range spec.refs {
			for _, id := range stringValues(entry[ref.field]) {
				if refSets[ref.kind] == nil {
					refSets[ref.kind] = make(map[string]bool)
				}
				refSets[ref.kind][id] = true
			}
		}
	}

	sort.Strings(defines)
	if len(refSets) > 0 {
		references = make(map[domain.Kind][]string, len(refSets))
		for k, set := range refSets {
			ids := make([]string, 0, len(set))
			for id := range set {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			references[k] = ids
		}
	}
	return defines, references, nil
}

// stringValues normalizes a reference field that may be a single string or
// a list of strings.
func stringValues(raw any) []string {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func (r *Result) addError(path, reason, value string) {
	r.Errors = append(r.Errors, pipelineerrors.FieldError{Path: path, Reason: reason, Value: value})
}

func (r *Result) addWarning(path, reason, value string) {
	r.Warnings = append(r.Warnings, pipelineerrors.FieldError{Path: path, Reason: reason, Value: value})
}
