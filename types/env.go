package types

// ExecutionContext is the per-invocation state the host exposes to the module.
// The driver sets it immediately before each call; the module only reads it.
type ExecutionContext struct {
	// CurrentAccountID is the account the contract is deployed on.
	CurrentAccountID string `json:"current_account_id" yaml:"current_account_id"`
	// SignerAccountID is the account that signed the original transaction.
	SignerAccountID string `json:"signer_account_id" yaml:"signer_account_id"`
	// SignerPublicKey is the signer key in "ed25519:<base58>" form. Optional.
	SignerPublicKey string `json:"signer_public_key,omitempty" yaml:"signer_public_key,omitempty"`
	// PredecessorAccountID is the immediate caller of the contract.
	PredecessorAccountID string `json:"predecessor_account_id" yaml:"predecessor_account_id"`
	// AttachedDeposit is the amount attached to the call.
	AttachedDeposit Balance `json:"attached_deposit" yaml:"attached_deposit"`
	// Input holds the call arguments returned by the input host function.
	Input []byte `json:"input,omitempty" yaml:"input,omitempty"`
}

// CallAs returns a copy of the context with signer and predecessor set to account.
func (c ExecutionContext) CallAs(account string) ExecutionContext {
	c.SignerAccountID = account
	c.PredecessorAccountID = account
	return c
}
