package decoder

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"cohortSnapshot/internal/model"
)

const (
	SourceGiftSenders   = "ygift-senders"
	SourceGiftReceivers = "ygift-receivers"
)

// GiftDecoder decodes GiftMinted events into sender and receiver sources.
type GiftDecoder struct {
	event abi.Event
	topic common.Hash
}

// NewGiftDecoder builds a gift decoder. topicOverride replaces the signature
// hash when non-empty.
func NewGiftDecoder(topicOverride string) (*GiftDecoder, error) {
	giftABI, err := GiftABI()
	if err != nil {
		return nil, err
	}
	event := giftABI.Events["GiftMinted"]
	topic, err := resolveTopic(event, topicOverride)
	if err != nil {
		return nil, err
	}
	return &GiftDecoder{event: event, topic: topic}, nil
}

// Topic returns the topic0 this decoder filters on.
func (d *GiftDecoder) Topic() common.Hash {
	return d.topic
}

func (d *GiftDecoder) CanDecode(topic0 string) bool {
	return sameTopic(d.topic, topic0)
}

func (d *GiftDecoder) Decode(log model.LogRecord, sources model.SourceSet) error {
	indexedTopics, err := parseIndexedTopics(d.event, log.Topics)
	if err != nil {
		return err
	}
	var indexed struct {
		From    common.Address
		To      common.Address
		TokenId *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(d.event.Inputs), indexedTopics); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(d.event, log.Data)
	if err != nil {
		return err
	}
	if len(values) != 1 {
		return fmt.Errorf("unexpected gift values: %d", len(values))
	}

	sources.Add(SourceGiftSenders, indexed.From.Hex())
	sources.Add(SourceGiftReceivers, indexed.To.Hex())
	return nil
}
