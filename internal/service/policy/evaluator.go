package policy

import (
	_ "embed"
	"fmt"
	"strings"

	"cabinet/internal/domain"
	models "cabinet/internal/domain/models/namespace"

	"gopkg.in/yaml.v3"
)

//go:embed roles.yaml
var rolesFile []byte

// Operation is the kind of mutation being placed into a partition
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpMove   Operation = "move"
	OpUpload Operation = "upload"
	OpDelete Operation = "delete"
)

// Deny reasons
const (
	ReasonAdminsOnly  = "administrators only"
	ReasonUnsupported = "unsupported placement"
)

// Decision is the outcome of a placement check
type Decision struct {
	Allowed bool
	Reason  string
}

// Err converts a deny into a ForbiddenError; nil when allowed
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return domain.NewForbidden("%s", d.Reason)
}

type roleHierarchy struct {
	Elevated string `yaml:"elevated"`
	Roles    []struct {
		Name string `yaml:"name"`
		Rank int    `yaml:"rank"`
	} `yaml:"roles"`
}

// Evaluator decides whether an actor's roles permit an operation in a partition.
// It holds no per-request state and performs no I/O after construction.
type Evaluator struct {
	ranks        map[string]int
	elevatedRank int
}

// NewEvaluator creates an evaluator from the embedded role hierarchy
func NewEvaluator() (*Evaluator, error) {
	return NewEvaluatorFromYAML(rolesFile)
}

// NewEvaluatorFromYAML creates an evaluator from a role hierarchy document
func NewEvaluatorFromYAML(data []byte) (*Evaluator, error) {
	var h roleHierarchy
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse role hierarchy: %w", err)
	}

	ranks := make(map[string]int, len(h.Roles))
	for _, r := range h.Roles {
		ranks[strings.ToLower(r.Name)] = r.Rank
	}

	elevated, ok := ranks[strings.ToLower(h.Elevated)]
	if !ok {
		return nil, fmt.Errorf("elevated role %q is not part of the hierarchy", h.Elevated)
	}

	return &Evaluator{ranks: ranks, elevatedRank: elevated}, nil
}

// IsElevated reports whether any of roles ranks at or above the elevated role.
// Unknown role names carry no rank.
func (e *Evaluator) IsElevated(roles []string) bool {
	for _, r := range roles {
		if rank, ok := e.ranks[strings.ToLower(r)]; ok && rank >= e.elevatedRank {
			return true
		}
	}
	return false
}

// CanPlace evaluates the placement rules in order:
//  1. Private: allowed (ownership is checked by the caller against the folder)
//  2. General: allowed only for elevated roles
//  3. anything else, Shared included: denied
func (e *Evaluator) CanPlace(roles []string, partition models.PartitionType, op Operation) Decision {
	switch partition {
	case models.PartitionPrivate:
		return Decision{Allowed: true}
	case models.PartitionGeneral:
		if e.IsElevated(roles) {
			return Decision{Allowed: true}
		}
		return Decision{Reason: ReasonAdminsOnly}
	default:
		return Decision{Reason: ReasonUnsupported}
	}
}
