package repo

import (
	"time"

	"github.com/axiomesh/treasury/types"
)

const (
	SinkTreasury = "treasury"
	SinkBurn     = "burn"
)

type Config struct {
	RepoRoot string   `mapstructure:"-" toml:"-"`
	Log      Log      `mapstructure:"log" toml:"log"`
	Chain    Chain    `mapstructure:"chain" toml:"chain"`
	Treasury Treasury `mapstructure:"treasury" toml:"treasury"`
	Ledger   Ledger   `mapstructure:"ledger" toml:"ledger"`
	Metrics  Metrics  `mapstructure:"metrics" toml:"metrics"`
}

type Log struct {
	Level        string        `mapstructure:"level" toml:"level"`
	Filename     string        `mapstructure:"filename" toml:"filename"`
	ReportCaller bool          `mapstructure:"report_caller" toml:"report_caller"`
	MaxAge       time.Duration `mapstructure:"max_age" toml:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time" toml:"rotation_time"`
}

type Chain struct {
	DialUrl string `mapstructure:"dial_url" toml:"dial_url"`
	// first block handed to the treasury when nothing was processed yet
	FromBlock uint64 `mapstructure:"from_block" toml:"from_block"`
}

type Treasury struct {
	PalletID string `mapstructure:"pallet_id" toml:"pallet_id"`
	// parts per million of the proposed value
	ProposalBond          types.Permill `mapstructure:"proposal_bond" toml:"proposal_bond"`
	ProposalBondMinimum   types.Balance `mapstructure:"proposal_bond_minimum" toml:"proposal_bond_minimum"`
	SpendPeriod           uint64        `mapstructure:"spend_period" toml:"spend_period"`
	AllowedProposalPeriod uint64        `mapstructure:"allowed_proposal_period" toml:"allowed_proposal_period"`
	// parts per million of the surplus
	Burn         types.Permill `mapstructure:"burn" toml:"burn"`
	MaxApprovals uint32        `mapstructure:"max_approvals" toml:"max_approvals"`

	// "treasury" or "burn"
	SlashDestination string `mapstructure:"slash_destination" toml:"slash_destination"`
	BurnDestination  string `mapstructure:"burn_destination" toml:"burn_destination"`

	// Signed accounts allowed besides root, empty means root only.
	Approvers []string `mapstructure:"approvers" toml:"approvers"`
	Rejecters []string `mapstructure:"rejecters" toml:"rejecters"`
}

type Ledger struct {
	ExistentialDeposit types.Balance `mapstructure:"existential_deposit" toml:"existential_deposit"`
	Genesis            []Endowment   `mapstructure:"genesis" toml:"genesis"`
}

type Endowment struct {
	Address string        `mapstructure:"address" toml:"address"`
	Balance types.Balance `mapstructure:"balance" toml:"balance"`
}

type Metrics struct {
	Enable     bool   `mapstructure:"enable" toml:"enable"`
	ListenAddr string `mapstructure:"listen_addr" toml:"listen_addr"`
}

func DefaultConfig(repoRoot string) *Config {
	return &Config{
		RepoRoot: repoRoot,
		Log: Log{
			Level:        "info",
			Filename:     "treasury.log",
			ReportCaller: false,
			MaxAge:       30 * 24 * time.Hour,
			RotationTime: 24 * time.Hour,
		},
		Chain: Chain{
			DialUrl:   "ws://localhost:9991",
			FromBlock: 1,
		},
		Treasury: Treasury{
			PalletID:              "py/trsry",
			ProposalBond:          types.PermillFromPercent(5),
			ProposalBondMinimum:   1,
			SpendPeriod:           100,
			AllowedProposalPeriod: 100,
			Burn:                  types.PermillFromPercent(1),
			MaxApprovals:          100,
			SlashDestination:      SinkTreasury,
			BurnDestination:       SinkBurn,
		},
		Ledger: Ledger{
			ExistentialDeposit: 1,
		},
		Metrics: Metrics{
			Enable:     true,
			ListenAddr: "localhost:40011",
		},
	}
}
