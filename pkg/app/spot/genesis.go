package spot

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/uhyunpark/spotmatch/pkg/app/core/account"
	"github.com/uhyunpark/spotmatch/pkg/app/core/asset"
)

// Genesis lists the assets and opening balances of a chain.
type Genesis struct {
	Assets   []GenesisAsset   `yaml:"assets"`
	Balances []GenesisBalance `yaml:"balances"`
}

type GenesisAsset struct {
	ID        uint32 `yaml:"id"`
	Symbol    string `yaml:"symbol"`
	Precision uint8  `yaml:"precision"`
}

// GenesisBalance funds one account. Amount is a decimal in whole units of
// the asset named by symbol, e.g. "1250.5".
type GenesisBalance struct {
	Address string `yaml:"address"`
	Asset   string `yaml:"asset"`
	Amount  string `yaml:"amount"`
}

func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis %s: %w", path, err)
	}
	var g Genesis
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode genesis %s: %w", path, err)
	}
	return &g, nil
}

func (g *Genesis) Save(path string) error {
	data, err := yaml.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode genesis: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Build registers the assets and funds the ledger.
func (g *Genesis) Build() (*asset.Registry, *account.AccountManager, error) {
	reg := asset.NewRegistry()
	for _, a := range g.Assets {
		if err := reg.Register(asset.Asset{ID: asset.ID(a.ID), Symbol: a.Symbol, Precision: a.Precision}); err != nil {
			return nil, nil, fmt.Errorf("genesis: %w", err)
		}
	}

	ledger := account.NewAccountManager()
	for i, b := range g.Balances {
		if !common.IsHexAddress(b.Address) {
			return nil, nil, fmt.Errorf("genesis balance %d: bad address %q", i, b.Address)
		}
		a, err := reg.Lookup(b.Asset)
		if err != nil {
			return nil, nil, fmt.Errorf("genesis balance %d: %w", i, err)
		}
		raw, err := a.ParseAmount(b.Amount)
		if err != nil {
			return nil, nil, fmt.Errorf("genesis balance %d: %w", i, err)
		}
		if err := ledger.Deposit(common.HexToAddress(b.Address), a.ID, raw); err != nil {
			return nil, nil, fmt.Errorf("genesis balance %d: %w", i, err)
		}
	}
	return reg, ledger, nil
}
