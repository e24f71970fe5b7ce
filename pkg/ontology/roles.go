package ontology

// Role describes one semantic role in the fixed role vocabulary. Roles are
// supplied at deployment and never mutated by the lifecycle engine.
type Role struct {
	Name        string
	Question    string
	Description string
}

// DefaultRoles is the universal case-grammar role set used when no
// domain-specific vocabulary is configured.
var DefaultRoles = map[string]Role{
	"agent": {
		Name:        "agent",
		Question:    "Who initiates, controls, or perceives the action?",
		Description: "Subject of the relation, the responsible actor (human, organisation, system).",
	},
	"theme": {
		Name:        "theme",
		Question:    "What is involved, affected, or modified?",
		Description: "Object of the relation, the entity being acted upon.",
	},
	"trigger": {
		Name:        "trigger",
		Question:    "What triggers the action without intention?",
		Description: "Event, signal, or condition that activates the relation.",
	},
	"purpose": {
		Name:        "purpose",
		Question:    "For what objective does the action take place?",
		Description: "Intention pursued or strategic goal.",
	},
	"reason": {
		Name:        "reason",
		Question:    "What cause or justification explains the action?",
		Description: "Motive, explanation, norm, or constraint.",
	},
	"instrument": {
		Name:        "instrument",
		Question:    "What means is used?",
		Description: "Tool, software, material, or procedure.",
	},
	"beneficiary": {
		Name:        "beneficiary",
		Question:    "Who benefits from the action?",
		Description: "Client, user, or entity that profits.",
	},
	"context": {
		Name:        "context",
		Question:    "In what framework does the action take place?",
		Description: "Legal, contractual, organisational, or economic environment.",
	},
	"origin": {
		Name:        "origin",
		Question:    "Where does it come from?",
		Description: "Source or provenance of an action or movement.",
	},
	"destination": {
		Name:        "destination",
		Question:    "Where or to whom does it go?",
		Description: "Arrival point, target of dispatch.",
	},
	"time": {
		Name:        "time",
		Question:    "When does the action take place?",
		Description: "Date, time, interval.",
	},
	"location": {
		Name:        "location",
		Question:    "Where does the action take place?",
		Description: "Physical or logical execution location.",
	},
}
