package model

import "time"

// Block is the reference block a set of calls is executed at.
type Block struct {
	Number    uint64 `json:"number"`
	Timestamp uint64 `json:"timestamp"`
}

// Time returns the block timestamp as UTC time.
func (b Block) Time() time.Time {
	return time.Unix(int64(b.Timestamp), 0).UTC()
}
