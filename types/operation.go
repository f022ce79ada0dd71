package types

import (
	"encoding/json"
	"fmt"
)

// Entry points of the target contract.
const (
	MethodAddProposal = "add_proposal"
	MethodActProposal = "act_proposal"
)

// Descriptor is one operation whose storage cost is measured, together with
// the human-readable label it is reported under.
type Descriptor struct {
	Description string
	Operation   Operation
}

// Operation is the closed set of calls the estimator knows how to drive.
// The variants are AddProposal, ActProposal and CreateAndAct.
type Operation interface {
	// Method is the exported entry point whose storage effect is measured.
	Method() string
	isOperation()
}

// DAOConfig is the contract configuration, used by the initializer and by
// ChangeConfig proposals.
type DAOConfig struct {
	Name     string `json:"name" yaml:"name"`
	Purpose  string `json:"purpose" yaml:"purpose"`
	Metadata Base64 `json:"metadata" yaml:"metadata"`
}

// InitArgs encodes the initializer payload: the DAO config and a policy made
// of the given council accounts.
func InitArgs(config DAOConfig, council []string) ([]byte, error) {
	return json.Marshal(struct {
		Config DAOConfig `json:"config"`
		Policy []string  `json:"policy"`
	}{Config: config, Policy: council})
}

//---------- Proposals ---------

// ProposalKind is the payload of a proposal.
type ProposalKind interface {
	json.Marshaler
	isProposalKind()
}

// AddProposal submits a new proposal. The proposal bond is attached.
type AddProposal struct {
	Description string
	Kind        ProposalKind
}

func (AddProposal) isOperation() {}

func (AddProposal) Method() string { return MethodAddProposal }

// Args encodes the add_proposal arguments.
func (p AddProposal) Args() ([]byte, error) {
	if p.Kind == nil {
		return nil, fmt.Errorf("proposal %q has no kind", p.Description)
	}
	type proposal struct {
		Description string       `json:"description"`
		Kind        ProposalKind `json:"kind"`
	}
	return json.Marshal(struct {
		Proposal proposal `json:"proposal"`
	}{Proposal: proposal{Description: p.Description, Kind: p.Kind}})
}

// TransferKind moves Amount of TokenID to ReceiverID. An empty TokenID is the
// native token.
type TransferKind struct {
	TokenID    string  `json:"token_id"`
	ReceiverID string  `json:"receiver_id"`
	Amount     Balance `json:"amount"`
	Msg        *string `json:"msg,omitempty"`
}

func (TransferKind) isProposalKind() {}

func (k TransferKind) MarshalJSON() ([]byte, error) {
	type body TransferKind
	return json.Marshal(map[string]body{"Transfer": body(k)})
}

// ActionCall is one function call inside a FunctionCall proposal.
type ActionCall struct {
	MethodName string  `json:"method_name"`
	Args       Base64  `json:"args"`
	Deposit    Balance `json:"deposit"`
	Gas        Uint64  `json:"gas"`
}

// FunctionCallKind calls methods on ReceiverID when approved.
type FunctionCallKind struct {
	ReceiverID string       `json:"receiver_id"`
	Actions    []ActionCall `json:"actions"`
}

func (FunctionCallKind) isProposalKind() {}

func (k FunctionCallKind) MarshalJSON() ([]byte, error) {
	type body FunctionCallKind
	if k.Actions == nil {
		k.Actions = []ActionCall{}
	}
	return json.Marshal(map[string]body{"FunctionCall": body(k)})
}

// AddMemberToRoleKind adds MemberID to Role.
type AddMemberToRoleKind struct {
	MemberID string `json:"member_id"`
	Role     string `json:"role"`
}

func (AddMemberToRoleKind) isProposalKind() {}

func (k AddMemberToRoleKind) MarshalJSON() ([]byte, error) {
	type body AddMemberToRoleKind
	return json.Marshal(map[string]body{"AddMemberToRole": body(k)})
}

// RemoveMemberFromRoleKind removes MemberID from Role.
type RemoveMemberFromRoleKind struct {
	MemberID string `json:"member_id"`
	Role     string `json:"role"`
}

func (RemoveMemberFromRoleKind) isProposalKind() {}

func (k RemoveMemberFromRoleKind) MarshalJSON() ([]byte, error) {
	type body RemoveMemberFromRoleKind
	return json.Marshal(map[string]body{"RemoveMemberFromRole": body(k)})
}

// ChangeConfigKind replaces the DAO config.
type ChangeConfigKind struct {
	Config DAOConfig `json:"config"`
}

func (ChangeConfigKind) isProposalKind() {}

func (k ChangeConfigKind) MarshalJSON() ([]byte, error) {
	type body ChangeConfigKind
	return json.Marshal(map[string]body{"ChangeConfig": body(k)})
}

// VoteKind is a signaling proposal without an on-chain effect.
type VoteKind struct{}

func (VoteKind) isProposalKind() {}

func (VoteKind) MarshalJSON() ([]byte, error) {
	return []byte(`"Vote"`), nil
}

//---------- Votes ---------

// VoteAction is the action taken on a proposal.
type VoteAction string

const (
	VoteApprove VoteAction = "VoteApprove"
	VoteReject  VoteAction = "VoteReject"
	VoteRemove  VoteAction = "VoteRemove"
)

// Valid reports whether a is one of the known vote actions.
func (a VoteAction) Valid() bool {
	switch a {
	case VoteApprove, VoteReject, VoteRemove:
		return true
	}
	return false
}

// ActProposal casts Action on the existing proposal ID.
type ActProposal struct {
	ID     uint64
	Action VoteAction
}

func (ActProposal) isOperation() {}

func (ActProposal) Method() string { return MethodActProposal }

// Args encodes the act_proposal arguments.
func (a ActProposal) Args() ([]byte, error) {
	if !a.Action.Valid() {
		return nil, fmt.Errorf("unknown vote action %q", a.Action)
	}
	return json.Marshal(struct {
		ID     uint64     `json:"id"`
		Action VoteAction `json:"action"`
	}{ID: a.ID, Action: a.Action})
}

// CreateAndAct submits Proposal and then casts Action on it from a different
// identity. Only the second call is measured.
type CreateAndAct struct {
	Proposal AddProposal
	Action   VoteAction
}

func (CreateAndAct) isOperation() {}

func (CreateAndAct) Method() string { return MethodActProposal }

// Act returns the vote on the proposal with the given id.
func (c CreateAndAct) Act(id uint64) ActProposal {
	return ActProposal{ID: id, Action: c.Action}
}
