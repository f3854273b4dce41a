package decoder

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const stakingPoolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "Staked",
    "type": "event"
  }
]`

const giftABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "from", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": true, "internalType": "uint256", "name": "tokenId", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "unlocksAt", "type": "uint256"}
    ],
    "name": "GiftMinted",
    "type": "event"
  }
]`

var (
	stakingPoolABI     abi.ABI
	stakingPoolABIOnce sync.Once
	stakingPoolABIErr  error

	giftABI     abi.ABI
	giftABIOnce sync.Once
	giftABIErr  error
)

// StakingPoolABI returns the parsed staking pool event ABI.
func StakingPoolABI() (abi.ABI, error) {
	stakingPoolABIOnce.Do(func() {
		stakingPoolABI, stakingPoolABIErr = abi.JSON(strings.NewReader(stakingPoolABIJSON))
	})
	return stakingPoolABI, stakingPoolABIErr
}

// GiftABI returns the parsed gift token event ABI.
func GiftABI() (abi.ABI, error) {
	giftABIOnce.Do(func() {
		giftABI, giftABIErr = abi.JSON(strings.NewReader(giftABIJSON))
	})
	return giftABI, giftABIErr
}
