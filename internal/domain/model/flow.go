package model

// ActiveFlow names the multi-turn conversation a chat participant is in the
// middle of. Exactly one flow is active per scope; the flows below are checked
// for cancellation in this declaration order.
type ActiveFlow string

const (
	FlowNone                  ActiveFlow = ""
	FlowAwaitingRejectReason  ActiveFlow = "awaiting_reject_reason"
	FlowAwaitingCreationProof ActiveFlow = "awaiting_creation_proof"
	FlowAwaitingRenewalProof  ActiveFlow = "awaiting_renewal_proof"
)

// FlowState is everything needed to resume a flow on the next inbound event.
// It lives in shared storage so any process instance can pick the flow up.
type FlowState struct {
	Flow ActiveFlow `json:"flow"`

	// Proof flows
	PlanType    string        `json:"plan_type,omitempty"`
	Method      PaymentMethod `json:"method,omitempty"`
	Action      PaymentAction `json:"action,omitempty"`
	TenantID    int64         `json:"tenant_id,omitempty"`
	CompanyName string        `json:"company_name,omitempty"`

	// Reject-reason sub-flow
	PaymentID int64 `json:"payment_id,omitempty"`
}

func (s *FlowState) IsZero() bool { return s == nil || s.Flow == FlowNone }
