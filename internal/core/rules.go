package core

import "famgraph/pkg/domain"

// Rule names registered by NewDefaultRulesEngine.
const (
	RuleEdgeSymmetry         = "edge_symmetry"
	RuleReferentialIntegrity = "referential_integrity"
	RuleRelationshipMirror   = "relationship_mirror"
	RuleLineageAcyclic       = "lineage_acyclic"
	RuleGenerationOrder      = "generation_order"
)

// NewDefaultRulesEngine builds a rules engine with the built-in graph
// invariants. generation_order only warns; the others block the commit.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(EdgeSymmetryRule())
	engine.Register(ReferentialIntegrityRule())
	engine.Register(RelationshipMirrorRule())
	engine.Register(LineageAcyclicRule())
	engine.Register(GenerationOrderRule())
	return engine
}

func memberIndex(members []domain.Member) map[string]domain.Member {
	index := make(map[string]domain.Member, len(members))
	for _, m := range members {
		index[m.ID] = m
	}
	return index
}

func memberViolation(rule string, severity domain.Severity, memberID, message string) domain.Violation {
	return domain.Violation{
		Rule:     rule,
		Severity: severity,
		Message:  message,
		Entity:   domain.EntityMember,
		EntityID: memberID,
	}
}
