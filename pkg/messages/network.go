package messages

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/prysm/v5/config/params"
)

// Network pins the chain the exit messages must be signed for.
type Network struct {
	Name                  string
	GenesisValidatorsRoot string
	CapellaForkVersion    []byte
	DomainVoluntaryExit   [4]byte
}

var genesisValidatorsRoots = map[string]string{
	"mainnet": "0x4b363db94e286120d76eb905340fdd4e54bfe9f06bf33ff6cf5ad27f511bfe95",
	"sepolia": "0xd8ea171f3c94aea21ebc42a1ed61052acf3f9209c00e4efbaaddac09ed9b8078",
	"holesky": "0x9143aa7c615a7f7115e2b6aac319c03529df8242ae705fba9df39b79c59fa8b1",
	"hoodi":   "0x212f13fc4df078b6cb7db228f1c8307566dcecf900867401a92023d7ba99cb5f",
}

// LookupNetwork returns the signing parameters of a known network.
func LookupNetwork(name string) (*Network, error) {
	var cfg *params.BeaconChainConfig

	switch name {
	case "mainnet":
		cfg = params.MainnetConfig()
	case "sepolia":
		cfg = params.SepoliaConfig()
	case "holesky":
		cfg = params.HoleskyConfig()
	case "hoodi":
		cfg = params.HoodiConfig()
	default:
		return nil, errors.Errorf("unknown network: %s", name)
	}

	return &Network{
		Name:                  name,
		GenesisValidatorsRoot: genesisValidatorsRoots[name],
		CapellaForkVersion:    cfg.CapellaForkVersion,
		DomainVoluntaryExit:   cfg.DomainVoluntaryExit,
	}, nil
}

// check fails when the consensus layer reports a different chain.
func (n *Network) check(genesisValidatorsRoot string, capellaForkVersion []byte) error {
	if genesisValidatorsRoot != n.GenesisValidatorsRoot {
		return errors.Errorf("consensus node genesis validators root %s does not match %s", genesisValidatorsRoot, n.Name)
	}

	if hexutil.Encode(capellaForkVersion) != hexutil.Encode(n.CapellaForkVersion) {
		return errors.Errorf("consensus node capella fork version %s does not match %s", hexutil.Encode(capellaForkVersion), n.Name)
	}

	return nil
}
