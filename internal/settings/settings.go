package settings

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ConfigEnvVar names the environment variable holding the optional YAML path.
const ConfigEnvVar = "LOANGUARD_CONFIG"

// Role selects which sections must be complete for a binary to start.
type Role string

const (
	RoleAPI     Role = "api"
	RoleMonitor Role = "monitor"
)

// ConfigurationError reports a missing or malformed setting. It is fatal at
// startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// IsConfigurationError checks if err is, or wraps, a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

type Settings struct {
	Service   ServiceSettings   `yaml:"service"`
	Schedule  ScheduleSettings  `yaml:"schedule"`
	Chain     ChainSettings     `yaml:"chain"`
	Oracle    OracleSettings    `yaml:"oracle"`
	Lending   LendingSettings   `yaml:"lending"`
	Rules     RuleDefaults      `yaml:"rules"`
	AWS       AWSSettings       `yaml:"aws"`
	Redis     RedisSettings     `yaml:"redis"`
	ZooKeeper ZooKeeperSettings `yaml:"zookeeper"`
}

type ServiceSettings struct {
	Environment string `yaml:"environment"`
	NodeID      string `yaml:"node_id"`
	APIPort     string `yaml:"api_port"`
	MonitorPort string `yaml:"monitor_port"`
}

// ScheduleSettings tunes the recurring protection job. Interval is the retry
// cadence: a failed execution is simply re-run on the next interval.
type ScheduleSettings struct {
	Interval    time.Duration `yaml:"interval"`
	PollSpec    string        `yaml:"poll_spec"`
	LeaseTTL    time.Duration `yaml:"lease_ttl"`
	WorkerCount int           `yaml:"worker_count"`
}

type ChainSettings struct {
	RPCURL              string        `yaml:"rpc_url"`
	ChainID             int64         `yaml:"chain_id"`
	DelegateeKey        string        `yaml:"delegatee_key"`
	ConfirmationTimeout time.Duration `yaml:"confirmation_timeout"`
	ReceiptPollInterval time.Duration `yaml:"receipt_poll_interval"`
	Confirmations       uint64        `yaml:"confirmations"`
}

type OracleSettings struct {
	HermesURL            string        `yaml:"hermes_url"`
	PriceFeedID          string        `yaml:"price_feed_id"`
	PythAddress          string        `yaml:"pyth_address"`
	PriceConsumerAddress string        `yaml:"price_consumer_address"`
	RequestsPerSecond    float64       `yaml:"requests_per_second"`
	Burst                int           `yaml:"burst"`
	HTTPTimeout          time.Duration `yaml:"http_timeout"`
}

type LendingSettings struct {
	PoolAddress         string   `yaml:"pool_address"`
	DebtAssetAddress    string   `yaml:"debt_asset_address"`
	DebtAssetDecimals   int32    `yaml:"debt_asset_decimals"`
	InterestRateMode    int64    `yaml:"interest_rate_mode"`
	DangerThreshold     string   `yaml:"danger_threshold"`
	PayerKeys           []string `yaml:"payer_keys"`
	DefaultPayerAddress string   `yaml:"default_payer_address"`
	// PayerAddresses lists the payers new rules may name. The monitor must
	// hold a key for each of them.
	PayerAddresses []string `yaml:"payer_addresses"`
}

// RuleDefaults fill optional fields of newly created rules.
type RuleDefaults struct {
	Protocol        string `yaml:"protocol"`
	ChainID         int64  `yaml:"chain_id"`
	CollateralAsset string `yaml:"collateral_asset"`
	DebtAsset       string `yaml:"debt_asset"`
}

type AWSSettings struct {
	Region             string `yaml:"region"`
	DynamoDBEndpoint   string `yaml:"dynamodb_endpoint"`
	SQSEndpoint        string `yaml:"sqs_endpoint"`
	RulesTable         string `yaml:"rules_table"`
	JobsTable          string `yaml:"jobs_table"`
	ProtectionQueueURL string `yaml:"protection_queue_url"`
}

type RedisSettings struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ZooKeeperSettings enables the distributed signer lock when Servers is set.
type ZooKeeperSettings struct {
	Servers        []string      `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
	LockRoot       string        `yaml:"lock_root"`
}

// Defaults returns the reference deployment: Aave V3 on Sepolia with the
// Pyth ETH/USD feed.
func Defaults() Settings {
	return Settings{
		Service: ServiceSettings{
			Environment: "development",
			NodeID:      "NODE1",
			APIPort:     "8090",
			MonitorPort: "8091",
		},
		Schedule: ScheduleSettings{
			Interval:    30 * time.Second,
			PollSpec:    "@every 10s",
			LeaseTTL:    5 * time.Minute,
			WorkerCount: 4,
		},
		Chain: ChainSettings{
			ChainID:             11155111,
			ConfirmationTimeout: 2 * time.Minute,
			ReceiptPollInterval: 2 * time.Second,
		},
		Oracle: OracleSettings{
			HermesURL:         "https://hermes.pyth.network",
			PriceFeedID:       "0xff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace",
			RequestsPerSecond: 2,
			Burst:             1,
			HTTPTimeout:       10 * time.Second,
		},
		Lending: LendingSettings{
			DebtAssetDecimals: 6,
			InterestRateMode:  2,
			DangerThreshold:   "1.2",
		},
		Rules: RuleDefaults{
			Protocol:        "AaveV3",
			ChainID:         11155111,
			CollateralAsset: "ETH",
			DebtAsset:       "PYUSD",
		},
		AWS: AWSSettings{
			Region:             "us-east-1",
			DynamoDBEndpoint:   "http://localhost:9000",
			SQSEndpoint:        "http://localhost:4566",
			RulesTable:         "protection_rules",
			JobsTable:          "protection_jobs",
			ProtectionQueueURL: "http://localhost:4566/000000000000/protection-queue",
		},
		Redis: RedisSettings{
			Addr: "localhost:6379",
		},
		ZooKeeper: ZooKeeperSettings{
			SessionTimeout: 30 * time.Second,
			LockRoot:       "/loanguard/locks",
		},
	}
}

// Load reads the YAML file at path (if any), applies environment overrides
// and validates the sections the role needs.
func Load(path string, role Role) (Settings, error) {
	return LoadWithEnv(path, role, os.Getenv)
}

// LoadWithEnv is Load with an injectable environment lookup.
func LoadWithEnv(path string, role Role, getenv func(string) string) (Settings, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) != "" {
		file, err := os.Open(path)
		if err != nil {
			return Settings{}, &ConfigurationError{Field: "config_file", Reason: err.Error()}
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
			return Settings{}, &ConfigurationError{Field: "config_file", Reason: fmt.Sprintf("decode: %v", err)}
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return Settings{}, err
	}
	cfg.normalize()
	if err := cfg.Validate(role); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

func (cfg *Settings) applyEnv(getenv func(string) string) error {
	setString := func(target *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*target = v
		}
	}

	setString(&cfg.Service.Environment, "SERVICE_ENV")
	setString(&cfg.Service.NodeID, "NODE_ID")
	setString(&cfg.Chain.RPCURL, "RPC_URL")
	setString(&cfg.Chain.DelegateeKey, "DELEGATEE_PRIVATE_KEY")
	setString(&cfg.Oracle.HermesURL, "HERMES_URL")
	setString(&cfg.Oracle.PythAddress, "PYTH_CONTRACT_ADDRESS")
	setString(&cfg.Oracle.PriceConsumerAddress, "PRICE_CONSUMER_ADDRESS")
	setString(&cfg.Lending.PoolAddress, "LENDING_POOL_ADDRESS")
	setString(&cfg.Lending.DebtAssetAddress, "DEBT_ASSET_ADDRESS")
	setString(&cfg.Lending.DefaultPayerAddress, "DEFAULT_PAYER_ADDRESS")
	setString(&cfg.AWS.Region, "AWS_REGION")
	setString(&cfg.AWS.DynamoDBEndpoint, "DYNAMODB_ENDPOINT")
	setString(&cfg.AWS.SQSEndpoint, "SQS_ENDPOINT")
	setString(&cfg.AWS.ProtectionQueueURL, "PROTECTION_QUEUE_URL")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")

	if v := strings.TrimSpace(getenv("CHAIN_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return &ConfigurationError{Field: "CHAIN_ID", Reason: "must be an integer"}
		}
		cfg.Chain.ChainID = id
	}
	if v := strings.TrimSpace(getenv("SCHEDULE_INTERVAL")); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return &ConfigurationError{Field: "SCHEDULE_INTERVAL", Reason: err.Error()}
		}
		cfg.Schedule.Interval = interval
	}
	if v := strings.TrimSpace(getenv("PAYER_PRIVATE_KEYS")); v != "" {
		cfg.Lending.PayerKeys = splitList(v)
	}
	if v := strings.TrimSpace(getenv("PAYER_ADDRESSES")); v != "" {
		cfg.Lending.PayerAddresses = splitList(v)
	}
	if v := strings.TrimSpace(getenv("ZOOKEEPER_SERVERS")); v != "" {
		cfg.ZooKeeper.Servers = splitList(v)
	}
	return nil
}

func (cfg *Settings) normalize() {
	cfg.Service.Environment = strings.ToLower(strings.TrimSpace(cfg.Service.Environment))
	cfg.Chain.RPCURL = strings.TrimSpace(cfg.Chain.RPCURL)
	cfg.Chain.DelegateeKey = strings.TrimPrefix(strings.TrimSpace(cfg.Chain.DelegateeKey), "0x")
	cfg.Oracle.HermesURL = strings.TrimRight(strings.TrimSpace(cfg.Oracle.HermesURL), "/")
	cfg.Oracle.PriceFeedID = strings.TrimSpace(cfg.Oracle.PriceFeedID)

	keys := make([]string, 0, len(cfg.Lending.PayerKeys))
	for _, key := range cfg.Lending.PayerKeys {
		key = strings.TrimPrefix(strings.TrimSpace(key), "0x")
		if key != "" {
			keys = append(keys, key)
		}
	}
	cfg.Lending.PayerKeys = keys

	if cfg.Schedule.WorkerCount <= 0 {
		cfg.Schedule.WorkerCount = 1
	}
	if cfg.Chain.ReceiptPollInterval <= 0 {
		cfg.Chain.ReceiptPollInterval = 2 * time.Second
	}
}

// Validate checks the sections required by role.
func (cfg Settings) Validate(role Role) error {
	if cfg.Schedule.Interval <= 0 {
		return &ConfigurationError{Field: "schedule.interval", Reason: "must be positive"}
	}
	if strings.TrimSpace(cfg.AWS.Region) == "" {
		return &ConfigurationError{Field: "aws.region", Reason: "required"}
	}
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return &ConfigurationError{Field: "redis.addr", Reason: "required"}
	}
	if cfg.Lending.DefaultPayerAddress != "" && !common.IsHexAddress(cfg.Lending.DefaultPayerAddress) {
		return &ConfigurationError{Field: "lending.default_payer_address", Reason: "not a hex address"}
	}
	for _, payer := range cfg.Lending.PayerAddresses {
		if !common.IsHexAddress(payer) {
			return &ConfigurationError{Field: "lending.payer_addresses", Reason: fmt.Sprintf("%q is not a hex address", payer)}
		}
	}
	if def := cfg.Lending.DefaultPayerAddress; def != "" && len(cfg.Lending.PayerAddresses) > 0 && !cfg.PayerAllowed(def) {
		return &ConfigurationError{Field: "lending.default_payer_address", Reason: "not listed in lending.payer_addresses"}
	}
	if role != RoleMonitor {
		return nil
	}

	if _, err := cron.ParseStandard(cfg.Schedule.PollSpec); err != nil {
		return &ConfigurationError{Field: "schedule.poll_spec", Reason: err.Error()}
	}
	if cfg.Schedule.LeaseTTL <= 0 {
		return &ConfigurationError{Field: "schedule.lease_ttl", Reason: "must be positive"}
	}
	if strings.TrimSpace(cfg.AWS.ProtectionQueueURL) == "" {
		return &ConfigurationError{Field: "aws.protection_queue_url", Reason: "required"}
	}
	if cfg.Chain.RPCURL == "" {
		return &ConfigurationError{Field: "chain.rpc_url", Reason: "required"}
	}
	if cfg.Chain.ChainID <= 0 {
		return &ConfigurationError{Field: "chain.chain_id", Reason: "must be positive"}
	}
	if cfg.Chain.DelegateeKey == "" {
		return &ConfigurationError{Field: "chain.delegatee_key", Reason: "required"}
	}
	if cfg.Chain.ConfirmationTimeout <= 0 {
		return &ConfigurationError{Field: "chain.confirmation_timeout", Reason: "must be positive"}
	}
	if cfg.Oracle.HermesURL == "" {
		return &ConfigurationError{Field: "oracle.hermes_url", Reason: "required"}
	}
	if cfg.Oracle.PriceFeedID == "" {
		return &ConfigurationError{Field: "oracle.price_feed_id", Reason: "required"}
	}
	if cfg.Oracle.RequestsPerSecond <= 0 {
		return &ConfigurationError{Field: "oracle.requests_per_second", Reason: "must be positive"}
	}

	addresses := map[string]string{
		"oracle.pyth_address":           cfg.Oracle.PythAddress,
		"oracle.price_consumer_address": cfg.Oracle.PriceConsumerAddress,
		"lending.pool_address":          cfg.Lending.PoolAddress,
		"lending.debt_asset_address":    cfg.Lending.DebtAssetAddress,
	}
	for field, value := range addresses {
		if !common.IsHexAddress(value) {
			return &ConfigurationError{Field: field, Reason: "required hex address"}
		}
	}

	if cfg.Lending.DebtAssetDecimals < 0 || cfg.Lending.DebtAssetDecimals > 36 {
		return &ConfigurationError{Field: "lending.debt_asset_decimals", Reason: "out of range"}
	}
	if cfg.Lending.InterestRateMode != 1 && cfg.Lending.InterestRateMode != 2 {
		return &ConfigurationError{Field: "lending.interest_rate_mode", Reason: "must be 1 (stable) or 2 (variable)"}
	}
	threshold, err := decimal.NewFromString(cfg.Lending.DangerThreshold)
	if err != nil || !threshold.IsPositive() {
		return &ConfigurationError{Field: "lending.danger_threshold", Reason: "must be a positive decimal"}
	}
	if len(cfg.Lending.PayerKeys) == 0 {
		return &ConfigurationError{Field: "lending.payer_keys", Reason: "at least one payer key required"}
	}
	return nil
}

// DangerThreshold returns the parsed health-factor threshold.
func (cfg Settings) DangerThreshold() decimal.Decimal {
	threshold, err := decimal.NewFromString(cfg.Lending.DangerThreshold)
	if err != nil {
		return decimal.RequireFromString("1.2")
	}
	return threshold
}

// PayerAllowed reports whether rules may name payer. An empty
// lending.payer_addresses allows any payer.
func (cfg Settings) PayerAllowed(payer string) bool {
	if len(cfg.Lending.PayerAddresses) == 0 {
		return true
	}
	for _, allowed := range cfg.Lending.PayerAddresses {
		if strings.EqualFold(strings.TrimSpace(allowed), strings.TrimSpace(payer)) {
			return true
		}
	}
	return false
}

// DistributedLocking reports whether ZooKeeper guards the signer nonces.
func (cfg Settings) DistributedLocking() bool {
	return len(cfg.ZooKeeper.Servers) > 0
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
