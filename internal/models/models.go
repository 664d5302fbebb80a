package models

import "time"

// Policy type values as normalized by the document ingestion pipeline.
const (
	PolicyTypeProperty         = "property"
	PolicyTypeGeneralLiability = "general_liability"
	PolicyTypeUmbrella         = "umbrella"
	PolicyTypeExcess           = "excess"
	PolicyTypeFlood            = "flood"
	PolicyTypeEarthquake       = "earthquake"
	PolicyTypeTerrorism        = "terrorism"
	PolicyTypeBusinessIncome   = "business_income"
)

const PolicyStatusActive = "active"

type Property struct {
	ID                   string     `json:"id"`
	OrgID                string     `json:"org_id"`
	Name                 string     `json:"name"`
	Address              string     `json:"address"`
	FloodZone            string     `json:"flood_zone"`
	TIV                  float64    `json:"tiv"`
	Units                int        `json:"units"`
	DocumentCompleteness float64    `json:"document_completeness"`
	CreatedAt            time.Time  `json:"created_at"`
}

type Building struct {
	ID            string     `json:"id"`
	PropertyID    string     `json:"property_id"`
	Name          string     `json:"name"`
	Value         *float64   `json:"value"`
	ValuationDate *time.Time `json:"valuation_date"`
}

type InsuranceProgram struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"property_id"`
	Name       string    `json:"name"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

type Policy struct {
	ID                string     `json:"id"`
	ProgramID         string     `json:"program_id"`
	PolicyNumber      string     `json:"policy_number"`
	PolicyType        string     `json:"policy_type"`
	Carrier           string     `json:"carrier"`
	NamedInsured      string     `json:"named_insured"`
	Limit             *float64   `json:"limit"`
	Deductible        *float64   `json:"deductible"`
	AttachmentPoint   *float64   `json:"attachment_point"`
	ValuationMethod   string     `json:"valuation_method"`
	EffectiveDate     *time.Time `json:"effective_date"`
	ExpirationDate    *time.Time `json:"expiration_date"`
	Status            string     `json:"status"`
	HasSourceDocument bool       `json:"has_source_document"`
}

// Active reports whether the policy participates in detection runs.
func (p Policy) Active() bool {
	return p.Status == PolicyStatusActive
}

type Coverage struct {
	ID       string   `json:"id"`
	PolicyID string   `json:"policy_id"`
	Name     string   `json:"name"`
	Limit    *float64 `json:"limit"`
	Sublimit *float64 `json:"sublimit"`
}

// LenderRequirement is a compliance template, either one of the named presets
// from the threshold registry or a property-attached custom requirement.
type LenderRequirement struct {
	Name                   string   `json:"name"`
	MinPropertyLimit       float64  `json:"min_property_limit"`
	MinGLLimit             float64  `json:"min_gl_limit"`
	MinUmbrellaLimit       float64  `json:"min_umbrella_limit"`
	MaxDeductiblePct       *float64 `json:"max_deductible_pct"`
	MaxDeductibleFlat      *float64 `json:"max_deductible_flat"`
	RequiresFlood          bool     `json:"requires_flood"`
	RequiresEarthquake     bool     `json:"requires_earthquake"`
	RequiresTerrorism      bool     `json:"requires_terrorism"`
	RequiresBusinessIncome bool     `json:"requires_business_income"`
}

// InsuranceSnapshot is the transient read-only input to the rule evaluators.
// It is assembled per detection run by the persistence collaborator and never
// persisted as such.
type InsuranceSnapshot struct {
	Property          Property           `json:"property"`
	Buildings         []Building         `json:"buildings"`
	Programs          []InsuranceProgram `json:"programs"`
	Policies          []Policy           `json:"policies"`
	Coverages         []Coverage         `json:"coverages"`
	LenderRequirement *LenderRequirement `json:"lender_requirement,omitempty"`
}

// ActivePolicies returns the policies that detection rules evaluate.
func (s InsuranceSnapshot) ActivePolicies() []Policy {
	out := make([]Policy, 0, len(s.Policies))
	for _, p := range s.Policies {
		if p.Active() {
			out = append(out, p)
		}
	}
	return out
}

// PolicyIDs returns the set of all policy ids on the snapshot, used to
// cross-reference LLM output before trusting it.
func (s InsuranceSnapshot) PolicyIDs() map[string]bool {
	ids := make(map[string]bool, len(s.Policies))
	for _, p := range s.Policies {
		ids[p.ID] = true
	}
	return ids
}
