package storagecost

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/treasurydao/storagecost/types"
)

// Labels of the operations in DefaultMenu.
const (
	LabelTransferNative     = "Transfer NEAR"
	LabelTransferToken      = "Transfer fungible token"
	LabelFunctionCall       = "Function call"
	LabelAddMember          = "Add member to role"
	LabelRemoveMember       = "Remove member from role"
	LabelChangeConfig       = "Change config"
	LabelPoll               = "Poll"
	LabelVoteApprove        = "Approve proposal"
	LabelVoteReject         = "Reject proposal"
	LabelVoteRemove         = "Remove proposal"
	defaultTokenID          = "token.near"
	defaultNewMember        = "new-member.near"
	defaultRole             = "council"
	defaultTransferAmount   = "1000000000000000000000000"
	defaultFunctionCallGas  = 30_000_000_000_000
	defaultProposalSubtitle = "storage cost estimation"
)

// DefaultMenu returns the operations measured by EstimateReport: one proposal
// of every kind plus each vote action on a freshly created transfer.
func DefaultMenu(cfg types.EstimatorConfig) []types.Descriptor {
	amount := types.MustParseBalance(defaultTransferAmount)
	transfer := types.AddProposal{
		Description: defaultProposalSubtitle,
		Kind: types.TransferKind{
			ReceiverID: cfg.Accounts.Member,
			Amount:     amount,
		},
	}
	changed := cfg.DAO
	changed.Purpose = cfg.DAO.Purpose + " (updated)"

	ftArgs := fmt.Sprintf(`{"receiver_id":%q,"amount":%q}`, cfg.Accounts.Member, amount.String())

	return []types.Descriptor{
		{Description: LabelTransferNative, Operation: transfer},
		{Description: LabelTransferToken, Operation: types.AddProposal{
			Description: defaultProposalSubtitle,
			Kind: types.TransferKind{
				TokenID:    defaultTokenID,
				ReceiverID: cfg.Accounts.Member,
				Amount:     amount,
			},
		}},
		{Description: LabelFunctionCall, Operation: types.AddProposal{
			Description: defaultProposalSubtitle,
			Kind: types.FunctionCallKind{
				ReceiverID: defaultTokenID,
				Actions: []types.ActionCall{{
					MethodName: "ft_transfer",
					Args:       types.Base64(ftArgs),
					Deposit:    types.NewBalance(1),
					Gas:        defaultFunctionCallGas,
				}},
			},
		}},
		{Description: LabelAddMember, Operation: types.AddProposal{
			Description: defaultProposalSubtitle,
			Kind:        types.AddMemberToRoleKind{MemberID: defaultNewMember, Role: defaultRole},
		}},
		{Description: LabelRemoveMember, Operation: types.AddProposal{
			Description: defaultProposalSubtitle,
			Kind:        types.RemoveMemberFromRoleKind{MemberID: cfg.Accounts.Voter, Role: defaultRole},
		}},
		{Description: LabelChangeConfig, Operation: types.AddProposal{
			Description: defaultProposalSubtitle,
			Kind:        types.ChangeConfigKind{Config: changed},
		}},
		{Description: LabelPoll, Operation: types.AddProposal{
			Description: defaultProposalSubtitle,
			Kind:        types.VoteKind{},
		}},
		{Description: LabelVoteApprove, Operation: types.CreateAndAct{Proposal: transfer, Action: types.VoteApprove}},
		{Description: LabelVoteReject, Operation: types.CreateAndAct{Proposal: transfer, Action: types.VoteReject}},
		{Description: LabelVoteRemove, Operation: types.CreateAndAct{Proposal: transfer, Action: types.VoteRemove}},
	}
}

// EstimateReport measures every operation of DefaultMenu.
func (e *Estimator) EstimateReport(ctx context.Context, code []byte) (types.Report, error) {
	return e.EstimateMenu(ctx, code, DefaultMenu(e.cfg))
}

// EstimateMenu measures every descriptor of menu and returns the byte counts
// in menu order. The first failure aborts the whole report.
//
// With Parallelism > 1 the menu is split across that many workers. Each
// worker owns its own runtime, memory and storage; only the rewritten module
// bytes and the compilation cache are shared.
func (e *Estimator) EstimateMenu(ctx context.Context, code []byte, menu []types.Descriptor) (types.Report, error) {
	m, err := e.load(ctx, code)
	if err != nil {
		return nil, err
	}

	report := make(types.Report, len(menu))
	workers := e.cfg.Parallelism
	if workers > len(menu) {
		workers = len(menu)
	}
	if workers <= 1 {
		for i, d := range menu {
			row, err := e.row(ctx, m, d)
			if err != nil {
				return nil, err
			}
			report[i] = row
		}
		return report, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			worker, err := New(e.cfg, WithLogger(e.logger.With().Int("worker", w).Logger()), WithCompilationCache(e.compilation))
			if err != nil {
				return err
			}
			defer worker.Close(context.Background())

			wm, err := worker.loadRewritten(gctx, m.checksum, m.rewritten)
			if err != nil {
				return err
			}
			for i := w; i < len(menu); i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				row, err := worker.row(gctx, wm, menu[i])
				if err != nil {
					return err
				}
				report[i] = row
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

func (e *Estimator) row(ctx context.Context, m *loadedModule, d types.Descriptor) (types.ReportRow, error) {
	result, err := e.measure(ctx, m, d)
	if err != nil {
		return types.ReportRow{}, err
	}
	method := ""
	if d.Operation != nil {
		method = d.Operation.Method()
	}
	return types.ReportRow{Operation: d.Description, Method: method, Bytes: result.Delta()}, nil
}
