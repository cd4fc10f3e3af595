package model

// Workflow stage numbers. The approval sequence is linear: an initiative moves
// from stage 1 through stage 11, one pending transaction at a time.
const (
	StageRegister       = 1
	StageHODEvaluation  = 2
	StageSiteAssessment = 3
	StageDefineLead     = 4
	StageMocCapex       = 5
	StageTimeline       = 6
	StageProgress       = 7
	StageCMOReview      = 8
	StageSavingsMonitor = 9
	StageFAValidation   = 10
	StageClosure        = 11

	TotalStages = 11

	// StageBeyondFinal is the sentinel currentStage once an initiative is
	// Completed: no transaction is ever created for it.
	StageBeyondFinal = 12
)

// StageDefinition is one entry of the static stage catalog.
type StageDefinition struct {
	Number         int    `json:"number"`
	Name           string `json:"name"`
	RequiredRole   string `json:"required_role"`
	AllowReject    bool   `json:"allow_reject"`
	AllowDrop      bool   `json:"allow_drop"`
	HasPayloadGate bool   `json:"has_payload_gate"`
}

// stageCatalog is the canonical 11-stage approval sequence. Reject/drop
// affordances are catalog data, not processor hard-coding, so product can
// widen them without touching the engine.
var stageCatalog = []StageDefinition{
	// Stage 1 has no required role: registration is performed by the creator
	// and the stage-1 transaction is written already approved.
	{Number: StageRegister, Name: "Register Initiative"},
	{Number: StageHODEvaluation, Name: "Evaluation and Approval", RequiredRole: RoleHOD, AllowReject: true},
	{Number: StageSiteAssessment, Name: "Initiative assessment and approval", RequiredRole: RoleSiteTSDLead, AllowReject: true},
	{Number: StageDefineLead, Name: "Define Responsibilities", RequiredRole: RoleSiteHead, HasPayloadGate: true},
	{Number: StageMocCapex, Name: "MOC-CAPEX Evaluation", RequiredRole: RoleInitiativeLead, HasPayloadGate: true},
	{Number: StageTimeline, Name: "Initiative Timeline Tracker", RequiredRole: RoleInitiativeLead, HasPayloadGate: true},
	{Number: StageProgress, Name: "Progress monitoring", RequiredRole: RoleSiteTSDLead},
	{Number: StageCMOReview, Name: "Periodic Status Review with CMO", RequiredRole: RoleCorporateTSD, AllowDrop: true},
	{Number: StageSavingsMonitor, Name: "Savings Monitoring (Monthly)", RequiredRole: RoleInitiativeLead, HasPayloadGate: true},
	{Number: StageFAValidation, Name: "F&A validation", RequiredRole: RoleFinance, HasPayloadGate: true},
	{Number: StageClosure, Name: "Initiative Closure", RequiredRole: RoleInitiativeLead},
}

// roleStages is the static role→stage fallback map used when a pending
// transaction is not yet bound to an individual.
var roleStages = map[string][]int{
	RoleHOD:            {StageHODEvaluation},
	RoleSiteTSDLead:    {StageSiteAssessment, StageProgress},
	RoleSiteHead:       {StageDefineLead},
	RoleCorporateTSD:   {StageCMOReview},
	RoleInitiativeLead: {StageMocCapex, StageTimeline, StageSavingsMonitor, StageClosure},
	RoleFinance:        {StageFAValidation},
}

// StageCatalog returns the ordered stage catalog.
func StageCatalog() []StageDefinition {
	out := make([]StageDefinition, len(stageCatalog))
	copy(out, stageCatalog)
	return out
}

// StageDefinitionFor looks up a stage by number (1..11).
func StageDefinitionFor(stageNumber int) (StageDefinition, bool) {
	if stageNumber < 1 || stageNumber > TotalStages {
		return StageDefinition{}, false
	}
	return stageCatalog[stageNumber-1], true
}

// RoleActsOnStage reports whether the role-based fallback authorizes the given
// role to act on the given stage.
func RoleActsOnStage(role string, stageNumber int) bool {
	for _, n := range roleStages[role] {
		if n == stageNumber {
			return true
		}
	}
	return false
}
