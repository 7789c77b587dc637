package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// tokenABIJSON is the fixed interface of the DigitalShekel contract. The
// contract is an external collaborator; this table is resolved once at dial
// time and never looked up dynamically by string reflection.
const tokenABIJSON = `[
  {"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"type":"string"}]},
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"type":"string"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"type":"uint8"}]},
  {"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"type":"address"}],"outputs":[{"type":"uint256"}]},
  {"type":"function","name":"totalMinted","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
  {"type":"function","name":"totalBurned","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
  {"type":"function","name":"reserveBalance","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
  {"type":"function","name":"tokensPerEth","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
  {"type":"function","name":"paused","stateMutability":"view","inputs":[],"outputs":[{"type":"bool"}]},
  {"type":"function","name":"blacklisted","stateMutability":"view","inputs":[{"type":"address"}],"outputs":[{"type":"bool"}]},
  {"type":"function","name":"frozen","stateMutability":"view","inputs":[{"type":"address"}],"outputs":[{"type":"bool"}]},
  {"type":"function","name":"hasRole","stateMutability":"view","inputs":[{"type":"bytes32"},{"type":"address"}],"outputs":[{"type":"bool"}]},

  {"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"burn","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"buyTokensWithETH","stateMutability":"payable","inputs":[],"outputs":[]},
  {"type":"function","name":"sellTokensForETH","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"setTokensPerEth","stateMutability":"nonpayable","inputs":[{"name":"newRate","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"fundReserve","stateMutability":"payable","inputs":[],"outputs":[]},
  {"type":"function","name":"withdrawReserve","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amountEth","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"pause","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"unpause","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"blacklist","stateMutability":"nonpayable","inputs":[{"name":"wallet","type":"address"}],"outputs":[]},
  {"type":"function","name":"unblacklist","stateMutability":"nonpayable","inputs":[{"name":"wallet","type":"address"}],"outputs":[]},
  {"type":"function","name":"freeze","stateMutability":"nonpayable","inputs":[{"name":"wallet","type":"address"}],"outputs":[]},
  {"type":"function","name":"unfreeze","stateMutability":"nonpayable","inputs":[{"name":"wallet","type":"address"}],"outputs":[]},
  {"type":"function","name":"grantRole","stateMutability":"nonpayable","inputs":[{"name":"role","type":"bytes32"},{"name":"account","type":"address"}],"outputs":[]},
  {"type":"function","name":"revokeRole","stateMutability":"nonpayable","inputs":[{"name":"role","type":"bytes32"},{"name":"account","type":"address"}],"outputs":[]},

  {"type":"event","name":"Minted","inputs":[{"name":"to","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"Burned","inputs":[{"name":"from","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"RateUpdated","inputs":[{"name":"newRate","type":"uint256","indexed":false}]},
  {"type":"event","name":"ReserveFunded","inputs":[{"name":"from","type":"address","indexed":true},{"name":"amountEth","type":"uint256","indexed":false}]},
  {"type":"event","name":"ReserveWithdrawn","inputs":[{"name":"to","type":"address","indexed":true},{"name":"amountEth","type":"uint256","indexed":false}]},
  {"type":"event","name":"Blacklisted","inputs":[{"name":"wallet","type":"address","indexed":true}]},
  {"type":"event","name":"Unblacklisted","inputs":[{"name":"wallet","type":"address","indexed":true}]},
  {"type":"event","name":"Frozen","inputs":[{"name":"wallet","type":"address","indexed":true}]},
  {"type":"event","name":"Unfrozen","inputs":[{"name":"wallet","type":"address","indexed":true}]}
]`

// aggregatorABIJSON is the Chainlink price-feed read interface.
const aggregatorABIJSON = `[
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"type":"uint8"}]},
  {"type":"function","name":"latestRoundData","stateMutability":"view","inputs":[],"outputs":[
    {"name":"roundId","type":"uint80"},
    {"name":"answer","type":"int256"},
    {"name":"startedAt","type":"uint256"},
    {"name":"updatedAt","type":"uint256"},
    {"name":"answeredInRound","type":"uint80"}
  ]}
]`

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("invalid embedded ABI: " + err.Error())
	}
	return parsed
}

var (
	tokenABI      = mustParseABI(tokenABIJSON)
	aggregatorABI = mustParseABI(aggregatorABIJSON)
)
