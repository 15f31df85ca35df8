package state

import (
	"encoding/json"

	"github.com/illmade-knight/go-gateway-state/pkg/dispatch"
)

// nullJSON is the published old value when no prior snapshot existed.
var nullJSON = json.RawMessage("null")

// Envelope is the wire form of one re-published event: the original dispatch
// name and payload, the originating shard, and the prior cached value where
// the event kind carries one. Old is omitted entirely for create events and
// explicitly null for updates with no prior value.
type Envelope struct {
	T       dispatch.EventType `json:"t"`
	D       json.RawMessage    `json:"d"`
	ShardID int                `json:"shardId"`
	Old     json.RawMessage    `json:"old,omitempty"`
}
