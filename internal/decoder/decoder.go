// Package decoder turns raw log records into (source key, address) pairs.
package decoder

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"cohortSnapshot/internal/model"
)

// Decoder defines a log decoder that records participants into a SourceSet.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord, sources model.SourceSet) error
}

// DecodeAll decodes every log into a fresh SourceSet. Every log is expected to
// match the decoder's topic filter, so any log it cannot handle fails the call.
func DecodeAll(d Decoder, logs []model.LogRecord) (model.SourceSet, error) {
	sources := model.SourceSet{}
	for _, log := range logs {
		if !d.CanDecode(log.Topic0()) {
			return nil, model.NewDecodeError(log, fmt.Errorf("unexpected topic0"))
		}
		if err := d.Decode(log, sources); err != nil {
			return nil, model.NewDecodeError(log, err)
		}
	}
	return sources, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func resolveTopic(event abi.Event, override string) (common.Hash, error) {
	if override == "" {
		return event.ID, nil
	}
	data, err := hexutil.Decode(override)
	if err != nil || len(data) != 32 {
		return common.Hash{}, fmt.Errorf("invalid %s topic override: %s", event.Name, override)
	}
	return common.BytesToHash(data), nil
}

func sameTopic(topic common.Hash, candidate string) bool {
	if candidate == "" {
		return false
	}
	data, err := hexutil.Decode(candidate)
	if err != nil || len(data) != 32 {
		return false
	}
	return common.BytesToHash(data) == topic
}
