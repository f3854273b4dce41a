package model

import "fmt"

// DecodeError records a decode failure for a log.
type DecodeError struct {
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	Topic0      string `json:"topic0"`
	Err         error  `json:"-"`
}

// NewDecodeError wraps err with the identity of the offending log.
func NewDecodeError(record LogRecord, err error) *DecodeError {
	return &DecodeError{
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Topic0:      record.Topic0(),
		Err:         err,
	}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode log %s:%d (block %d, address %s, topic0 %s): %v",
		e.TxHash, e.LogIndex, e.BlockNumber, e.Address, e.Topic0, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
