package lending

import (
	"context"
	"fmt"
	"math/big"

	"loanguard/internal/domain"
	"loanguard/internal/logger"

	"github.com/ethereum/go-ethereum/common"
)

// RepaymentRequest is one repayment to perform.
type RepaymentRequest struct {
	DebtOwner common.Address
	Payer     common.Address
	// Amount is in debt-asset display units, e.g. "100".
	Amount string
}

// ExecutorConfig names the pool and debt asset the executor works against.
type ExecutorConfig struct {
	Pool          common.Address
	DebtAsset     common.Address
	AssetDecimals int32
}

// RepaymentExecutor runs the two-phase repayment: ensure the payer has
// granted the pool enough allowance, then repay on behalf of the debt owner.
type RepaymentExecutor struct {
	cfg     ExecutorConfig
	keyring *Keyring
	repayer Repayer
	logger  logger.Logger
}

func NewRepaymentExecutor(cfg ExecutorConfig, keyring *Keyring, repayer Repayer, log logger.Logger) *RepaymentExecutor {
	return &RepaymentExecutor{
		cfg:     cfg,
		keyring: keyring,
		repayer: repayer,
		logger:  log.With(logger.String("component", "repayment_executor")),
	}
}

// Execute performs the repayment. There is no rollback: an approval that
// succeeded before a failed repay stays on-chain and is reused next time.
func (e *RepaymentExecutor) Execute(ctx context.Context, req RepaymentRequest) (*domain.RepaymentOutcome, error) {
	amount, err := ToBaseUnits(req.Amount, e.cfg.AssetDecimals)
	if err != nil {
		return nil, err
	}

	approver, err := e.keyring.Lookup(req.Payer)
	if err != nil {
		return nil, err
	}

	log := e.logger.WithContext(ctx).With(
		logger.String("debt_owner", req.DebtOwner.Hex()),
		logger.String("payer", approver.Address().Hex()),
		logger.String("amount", amount.String()),
	)

	outcome := &domain.RepaymentOutcome{}

	approvalHash, approved, err := e.ensureAllowance(ctx, approver, amount, log)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure allowance: %w", err)
	}
	if approved {
		outcome.ApprovalPerformed = true
		outcome.ApprovalHash = approvalHash.Hex()
	}

	repayHash, err := e.repayer.Repay(ctx, e.cfg.DebtAsset, amount, req.DebtOwner)
	if err != nil {
		log.Error("repay failed", logger.Error(err))
		return nil, fmt.Errorf("failed to repay: %w", err)
	}
	outcome.RepayHash = repayHash.Hex()

	log.Info("repayment confirmed",
		logger.Bool("approval_performed", outcome.ApprovalPerformed),
		logger.String("repay_hash", outcome.RepayHash))
	return outcome, nil
}

func (e *RepaymentExecutor) ensureAllowance(ctx context.Context, approver Approver, amount *big.Int, log logger.Logger) (common.Hash, bool, error) {
	current, err := approver.Allowance(ctx, e.cfg.Pool)
	if err != nil {
		return common.Hash{}, false, err
	}
	if current.Cmp(amount) >= 0 {
		log.Debug("allowance sufficient, skipping approval", logger.String("allowance", current.String()))
		return common.Hash{}, false, nil
	}

	log.Info("approving pool allowance", logger.String("current_allowance", current.String()))
	hash, err := approver.Approve(ctx, e.cfg.Pool, amount)
	if err != nil {
		return common.Hash{}, false, err
	}
	return hash, true, nil
}
