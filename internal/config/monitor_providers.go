package config

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"loanguard/commons/routes"
	"loanguard/commons/server"
	"loanguard/internal/chain"
	coordinator "loanguard/internal/coordinator/iface"
	"loanguard/internal/handler"
	"loanguard/internal/lending"
	"loanguard/internal/logger"
	"loanguard/internal/oracle"
	repository "loanguard/internal/repository/iface"
	internalRoutes "loanguard/internal/routes"
	"loanguard/internal/service"
	"loanguard/internal/settings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

const monitorServiceName = "loanguard-monitor"

func ProvideMonitorSettings() (*settings.Settings, error) {
	return loadSettings(settings.RoleMonitor)
}

// Chain Providers

func ProvideEthClient(lc fx.Lifecycle, cfg *settings.Settings) (*ethclient.Client, error) {
	client, err := chain.Dial(cfg.Chain.RPCURL)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			client.Close()
			return nil
		},
	})
	return client, nil
}

func ProvideNonceManager(client *ethclient.Client) *chain.NonceManager {
	return chain.NewNonceManager(client)
}

func ProvideReceiptWaiter(client *ethclient.Client, cfg *settings.Settings, log logger.Logger) *chain.ReceiptWaiter {
	return chain.NewReceiptWaiter(client, cfg.Chain.ReceiptPollInterval, cfg.Chain.ConfirmationTimeout, cfg.Chain.Confirmations, log)
}

// Transactors holds the delegatee signer and every configured payer signer.
// The default payer, when configured, comes first.
type Transactors struct {
	Delegatee *chain.Transactor
	Payers    []*chain.Transactor
}

func ProvideTransactors(
	client *ethclient.Client,
	cfg *settings.Settings,
	nonces *chain.NonceManager,
	locker coordinator.Locker,
	waiter *chain.ReceiptWaiter,
	log logger.Logger,
) (*Transactors, error) {
	chainID := big.NewInt(cfg.Chain.ChainID)
	newTransactor := func(key string) (*chain.Transactor, error) {
		signer, err := chain.LoadSigner(key)
		if err != nil {
			return nil, err
		}
		return chain.NewTransactor(client, signer, chainID, nonces, locker, waiter, log), nil
	}

	delegatee, err := newTransactor(cfg.Chain.DelegateeKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load delegatee key: %w", err)
	}

	payers := make([]*chain.Transactor, 0, len(cfg.Lending.PayerKeys))
	for i, key := range cfg.Lending.PayerKeys {
		payer, err := newTransactor(key)
		if err != nil {
			return nil, fmt.Errorf("failed to load payer key %d: %w", i, err)
		}
		payers = append(payers, payer)
	}

	if def := cfg.Lending.DefaultPayerAddress; def != "" {
		want := common.HexToAddress(def)
		found := false
		for i, payer := range payers {
			if payer.Address() == want {
				payers[0], payers[i] = payers[i], payers[0]
				found = true
				break
			}
		}
		if !found {
			return nil, &settings.ConfigurationError{
				Field:  "lending.default_payer_address",
				Reason: fmt.Sprintf("no payer key for %s", want.Hex()),
			}
		}
	}

	for _, listed := range cfg.Lending.PayerAddresses {
		want := common.HexToAddress(listed)
		held := false
		for _, payer := range payers {
			if payer.Address() == want {
				held = true
				break
			}
		}
		if !held {
			return nil, &settings.ConfigurationError{
				Field:  "lending.payer_addresses",
				Reason: fmt.Sprintf("no payer key for %s", want.Hex()),
			}
		}
	}

	log.Info("signers loaded",
		logger.String("delegatee", delegatee.Address().Hex()),
		logger.Int("payers", len(payers)))
	return &Transactors{Delegatee: delegatee, Payers: payers}, nil
}

// Lending Providers

func ProvideKeyring(client *ethclient.Client, cfg *settings.Settings, tx *Transactors) (*lending.Keyring, error) {
	token := common.HexToAddress(cfg.Lending.DebtAssetAddress)
	approvers := make([]lending.Approver, 0, len(tx.Payers))
	for _, payer := range tx.Payers {
		approver, err := lending.NewTokenApprover(client, token, payer)
		if err != nil {
			return nil, err
		}
		approvers = append(approvers, approver)
	}
	return lending.NewKeyring(approvers...), nil
}

func ProvideRepaymentExecutor(
	client *ethclient.Client,
	cfg *settings.Settings,
	keyring *lending.Keyring,
	tx *Transactors,
	log logger.Logger,
) (*lending.RepaymentExecutor, error) {
	pool := common.HexToAddress(cfg.Lending.PoolAddress)
	repayer, err := lending.NewPoolRepayer(client, pool, cfg.Lending.InterestRateMode, tx.Delegatee)
	if err != nil {
		return nil, err
	}
	return lending.NewRepaymentExecutor(lending.ExecutorConfig{
		Pool:          pool,
		DebtAsset:     common.HexToAddress(cfg.Lending.DebtAssetAddress),
		AssetDecimals: cfg.Lending.DebtAssetDecimals,
	}, keyring, repayer, log), nil
}

func ProvideRiskReader(client *ethclient.Client, cfg *settings.Settings, log logger.Logger) (*lending.RiskReader, error) {
	return lending.NewRiskReader(client, common.HexToAddress(cfg.Lending.PoolAddress), log)
}

// Oracle Providers

func ProvideHermesClient(cfg *settings.Settings, log logger.Logger) *oracle.HermesClient {
	return oracle.NewHermesClient(cfg.Oracle.HermesURL, cfg.Oracle.HTTPTimeout, cfg.Oracle.RequestsPerSecond, cfg.Oracle.Burst, log)
}

func ProvidePriceSync(
	client *ethclient.Client,
	hermes *oracle.HermesClient,
	cfg *settings.Settings,
	tx *Transactors,
	log logger.Logger,
) (*oracle.PriceSync, error) {
	return oracle.NewPriceSync(
		client,
		hermes,
		cfg.Oracle.PriceFeedID,
		common.HexToAddress(cfg.Oracle.PythAddress),
		common.HexToAddress(cfg.Oracle.PriceConsumerAddress),
		tx.Delegatee,
		log,
	)
}

// Service Providers

func ProvideTriggerPolicy(cfg *settings.Settings) (*service.TriggerPolicy, error) {
	return service.NewTriggerPolicy(cfg.DangerThreshold())
}

func ProvideConditionEvaluator(
	sync *oracle.PriceSync,
	risk *lending.RiskReader,
	policy *service.TriggerPolicy,
	log logger.Logger,
) service.ConditionEvaluator {
	return service.NewConditionEvaluator(sync, risk, policy, log)
}

func ProvideProtectionJob(
	rules repository.RuleRepository,
	evaluator service.ConditionEvaluator,
	executor *lending.RepaymentExecutor,
	scheduler *service.Scheduler,
	log logger.Logger,
) *service.ProtectionJob {
	return service.NewProtectionJob(rules, evaluator, executor, scheduler, log)
}

// HTTP Providers

func ProvideMonitorHealthHandler(cfg *settings.Settings, log logger.Logger) *handler.HealthHandler {
	return handler.NewHealthHandler(log, monitorServiceName, cfg.Service.NodeID, cfg.Service.Environment)
}

func ProvideMonitorRouterConfig() routes.RouterConfig {
	return routes.RouterConfig{
		ServiceName: monitorServiceName,
		Version:     "v1",
	}
}

func ProvideMonitorServerConfig(cfg *settings.Settings) server.ServerConfig {
	return server.ServerConfig{
		Port: cfg.Service.MonitorPort,
	}
}

func ProvideMonitorRouteInitializer(healthHandler *handler.HealthHandler) func(*gin.Engine, routes.RouteDependencies) {
	return func(router *gin.Engine, deps routes.RouteDependencies) {
		internalRoutes.InitHealthRoutes(router, healthHandler, deps.Logger)
		internalRoutes.InitMetricsRoute(router)
	}
}

// LogStartup records the deployment the monitor watches
func LogStartup(cfg *settings.Settings, keyring *lending.Keyring, log logger.Logger) {
	payers := make([]string, 0)
	for _, addr := range keyring.Addresses() {
		payers = append(payers, addr.Hex())
	}
	log.Info("monitor configured",
		logger.Int64("chain_id", cfg.Chain.ChainID),
		logger.String("pool", cfg.Lending.PoolAddress),
		logger.String("danger_threshold", cfg.DangerThreshold().String()),
		logger.Duration("interval", cfg.Schedule.Interval),
		logger.String("payers", strings.Join(payers, ",")))
}
