package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/forgeworks/pipeline/internal/clock"
	"github.com/forgeworks/pipeline/internal/domain"
	pipelineerrors "github.com/forgeworks/pipeline/internal/errors"
)

// Service is the authoring surface for artifact documents. Every mutation
// is gated on schema validation: a document that does not validate under
// the requested mode is never persisted. Successful saves record the
// derived change set so downstream impact analysis has exact identifier
// diffs to work from.
type Service struct {
	store     Store
	validator *Validator
	clock     clock.Clock
	log       zerolog.Logger
}

// NewService creates an artifact Service.
func NewService(store Store, v *Validator, clk clock.Clock, log zerolog.Logger) *Service {
	return &Service{
		store:     store,
		validator: v,
		clock:     clk,
		log:       log.With().Str("component", "artifact").Logger(),
	}
}

// SaveDocument validates a candidate document and, if it passes, replaces
// the stored artifact for its kind. Returns the persisted envelope and the
// change set derived by diffing identifiers against the prior version.
//
// The version bumps minor when identifiers were added, removed, or their
// entries changed, and patch otherwise. A kind saved for the first time
// starts at 1.0.0.
func (s *Service) SaveDocument(ctx context.Context, kind domain.Kind, doc []byte, mode Mode, modifiedBy string) (*domain.Artifact, *domain.ChangeSet, error) {
	result, err := s.validator.Validate(kind, doc, mode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to save %s document: %w", kind, err)
	}
	if err := result.Err(kind); err != nil {
		return nil, nil, err
	}

	defines, references, err := Extract(kind, doc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to save %s document: %w", kind, err)
	}
	fingerprints, err := entryFingerprints(kind, doc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to save %s document: %w", kind, err)
	}

	old, err := s.store.Get(ctx, kind)
	if err != nil && !isNotFound(err) {
		return nil, nil, err
	}

	change := diffDefines(old, defines, fingerprints)

	a := &domain.Artifact{
		Kind:        kind,
		Version:     nextVersion(old, change),
		ContentHash: HashContent(doc),
		ModifiedAt:  s.clock.Now().UTC(),
		ModifiedBy:  modifiedBy,
		Defines:     defines,
		References:  references,
		EntryHashes: fingerprints,
	}

	// Referencing a live upstream at save time counts as a sync point.
	a.UpstreamHashes = s.snapshotUpstreams(ctx, references)

	if old != nil {
		a.KeptOrphans = pruneKeptOrphans(old.KeptOrphans, references)
	}

	if err := s.store.Save(ctx, a); err != nil {
		return nil, nil, err
	}

	s.log.Info().
		Str("kind", kind.String()).
		Str("version", a.Version).
		Int("defines", len(defines)).
		Int("added", len(change.Added)).
		Int("removed", len(change.Removed)).
		Int("modified", len(change.Modified)).
		Msg("artifact saved")
	return a, change, nil
}

// ValidateDocument runs schema validation without persisting anything.
func (s *Service) ValidateDocument(kind domain.Kind, doc []byte, mode Mode) (*Result, error) {
	return s.validator.Validate(kind, doc, mode)
}

// snapshotUpstreams records the current content hash of every referenced
// upstream kind that exists. Missing upstreams are skipped; the reference
// checker reports those.
func (s *Service) snapshotUpstreams(ctx context.Context, references map[domain.Kind][]string) map[domain.Kind]string {
	if len(references) == 0 {
		return nil
	}
	hashes := make(map[domain.Kind]string, len(references))
	for kind := range references {
		upstream, err := s.store.Get(ctx, kind)
		if err != nil {
			continue
		}
		hashes[kind] = upstream.ContentHash
	}
	if len(hashes) == 0 {
		return nil
	}
	return hashes
}

// diffDefines computes the identifier-level change set between the prior
// envelope and a new document's identifiers.
func diffDefines(old *domain.Artifact, defines []string, fingerprints map[string]string) *domain.ChangeSet {
	change := &domain.ChangeSet{}

	if old == nil {
		change.Added = append(change.Added, defines...)
		return change
	}

	oldSet := old.DefinesSet()
	newSet := make(map[string]bool, len(defines))
	for _, id := range defines {
		newSet[id] = true
		if !oldSet[id] {
			change.Added = append(change.Added, id)
		}
	}
	for _, id := range old.Defines {
		if !newSet[id] {
			change.Removed = append(change.Removed, id)
		}
	}
	for id, fp := range fingerprints {
		if oldFP, ok := old.EntryHashes[id]; ok && oldFP != fp {
			change.Modified = append(change.Modified, id)
		}
	}
	sort.Strings(change.Modified)

	change.MetadataOnly = len(change.Added) == 0 && len(change.Removed) == 0 && len(change.Modified) == 0
	return change
}

// nextVersion bumps the stored semantic version according to the change
// set: minor for identifier-level changes, patch for everything else.
func nextVersion(old *domain.Artifact, change *domain.ChangeSet) string {
	if old == nil {
		return "1.0.0"
	}
	major, minor, patch := parseVersion(old.Version)
	if change.MetadataOnly {
		return fmt.Sprintf("%d.%d.%d", major, minor, patch+1)
	}
	return fmt.Sprintf("%d.%d.0", major, minor+1)
}

// parseVersion splits "x.y.z", tolerating malformed stored versions by
// treating them as 1.0.0.
func parseVersion(v string) (major, minor, patch int) {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) != 3 {
		return 1, 0, 0
	}
	major, err1 := strconv.Atoi(parts[0])
	minor, err2 := strconv.Atoi(parts[1])
	patch, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 1, 0, 0
	}
	return major, minor, patch
}

// pruneKeptOrphans drops kept orphans that the new document no longer
// references; an orphan matters only while the dangling reference exists.
func pruneKeptOrphans(kept map[domain.Kind][]string, references map[domain.Kind][]string) map[domain.Kind][]string {
	if len(kept) == 0 {
		return nil
	}
	out := make(map[domain.Kind][]string)
	for kind, ids := range kept {
		refSet := make(map[string]bool, len(references[kind]))
		for _, id := range references[kind] {
			refSet[id] = true
		}
		for _, id := range ids {
			if refSet[id] {
				out[kind] = append(out[kind], id)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// entryFingerprints hashes each defined entry's JSON content, keyed by
// identifier. Nested defining identifiers (user stories) share their parent
// entry's fingerprint.
func entryFingerprints(kind domain.Kind, doc []byte) (map[string]string, error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", pipelineerrors.ErrUnknownKind, kind)
	}

	var parsed map[string]any
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON document: %w", err)
	}

	raw, ok := parsed[spec.collection].([]any)
	if !ok {
		return nil, nil
	}

	fingerprints := make(map[string]string, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, _ := entry["id"].(string)
		if id == "" {
			continue
		}
		canonical, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		fp := HashContent(canonical)
		fingerprints[id] = fp

		if spec.nestedDefines != "" {
			nested, _ := entry[spec.nestedDefines].([]any)
			for _, n := range nested {
				obj, ok := n.(map[string]any)
				if !ok {
					continue
				}
				if nestedID, ok := obj["id"].(string); ok && nestedID != "" {
					fingerprints[nestedID] = fp
				}
			}
		}
	}
	return fingerprints, nil
}
