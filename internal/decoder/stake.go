package decoder

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"cohortSnapshot/internal/model"
)

// StakeDecoder decodes Staked(address indexed user, uint256 amount) events and
// records the staker under the emitting pool's checksummed address.
type StakeDecoder struct {
	event abi.Event
	topic common.Hash
}

// NewStakeDecoder builds a stake decoder. topicOverride replaces the signature
// hash when non-empty.
func NewStakeDecoder(topicOverride string) (*StakeDecoder, error) {
	poolABI, err := StakingPoolABI()
	if err != nil {
		return nil, err
	}
	event := poolABI.Events["Staked"]
	topic, err := resolveTopic(event, topicOverride)
	if err != nil {
		return nil, err
	}
	return &StakeDecoder{event: event, topic: topic}, nil
}

// Topic returns the topic0 this decoder filters on.
func (d *StakeDecoder) Topic() common.Hash {
	return d.topic
}

func (d *StakeDecoder) CanDecode(topic0 string) bool {
	return sameTopic(d.topic, topic0)
}

func (d *StakeDecoder) Decode(log model.LogRecord, sources model.SourceSet) error {
	pool, err := model.NormalizeAddress(log.Address)
	if err != nil {
		return fmt.Errorf("pool address: %w", err)
	}

	indexedTopics, err := parseIndexedTopics(d.event, log.Topics)
	if err != nil {
		return err
	}
	var indexed struct {
		User common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(d.event.Inputs), indexedTopics); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(d.event, log.Data)
	if err != nil {
		return err
	}
	if len(values) != 1 {
		return fmt.Errorf("unexpected staked values: %d", len(values))
	}

	sources.Add(pool, indexed.User.Hex())
	return nil
}
