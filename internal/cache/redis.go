// Package cache provides the caching and distribution layers of Switchboard:
// the Redis snapshot store the syncer publishes rule generations to, and the
// in-memory decision cache of the data plane.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/switchboard/internal/logger"
	"github.com/rafaeljc/switchboard/internal/observability"
	"github.com/rafaeljc/switchboard/internal/ruleengine"
)

// ErrNoSnapshot is returned by Latest when nothing was published yet.
var ErrNoSnapshot = errors.New("no snapshot published")

// SetResult reports what Publish did with the snapshot.
type SetResult int

const (
	// SetResultSkipped means the stored version was equal or newer.
	SetResultSkipped SetResult = 0
	// SetResultUpdated means the snapshot was stored and announced.
	SetResultUpdated SetResult = 1
	// SetResultRepaired means the stored value was unreadable and was overwritten.
	SetResultRepaired SetResult = 2
)

func (r SetResult) String() string {
	switch r {
	case SetResultSkipped:
		return "skipped"
	case SetResultUpdated:
		return "updated"
	case SetResultRepaired:
		return "repaired"
	default:
		return "unknown"
	}
}

// publishScript stores "version|json" only when the incoming version is
// newer than the stored one, then announces it on the channel. Both happen
// atomically, so subscribers never see a notice for a value they cannot
// read. Versions must stay below 2^53 (Lua numbers are doubles).
//
// KEYS[1] snapshot key
// ARGV[1] version, ARGV[2] encoded value, ARGV[3] channel, ARGV[4] notice
var publishScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
local result = 1
if current then
	local sep = string.find(current, '|', 1, true)
	local stored = sep and tonumber(string.sub(current, 1, sep - 1))
	if not stored then
		result = 2
	elseif stored >= tonumber(ARGV[1]) then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[2])
redis.call('PUBLISH', ARGV[3], ARGV[4])
return result
`)

// Snapshot is one published rule definition.
type Snapshot struct {
	// Version increases with every change at the source of truth.
	Version    int64
	Checksum   string
	Definition ruleengine.Definition
}

type snapshotPayload struct {
	Checksum   string                `json:"checksum"`
	Definition ruleengine.Definition `json:"definition"`
}

// Notice is the PubSub announcement of a new snapshot.
type Notice struct {
	Checksum string
	Version  int64
}

// SnapshotStore keeps the latest snapshot under one key and announces new
// versions on a PubSub channel.
type SnapshotStore struct {
	client  redis.UniversalClient
	key     string
	channel string
}

// NewSnapshotStore creates a store over an established client.
func NewSnapshotStore(client redis.UniversalClient, key, channel string) *SnapshotStore {
	return &SnapshotStore{client: client, key: key, channel: channel}
}

// Publish stores snap if its version is newer than the stored one.
func (s *SnapshotStore) Publish(ctx context.Context, snap Snapshot) (SetResult, error) {
	raw, err := json.Marshal(snapshotPayload{Checksum: snap.Checksum, Definition: snap.Definition})
	if err != nil {
		return SetResultSkipped, fmt.Errorf("failed to encode snapshot %d: %w", snap.Version, err)
	}

	res, err := publishScript.Run(ctx, s.client,
		[]string{s.key},
		snap.Version,
		encodeSnapshot(raw, snap.Version),
		s.channel,
		EncodeNotice(snap.Checksum, snap.Version),
	).Int()
	if err != nil {
		return SetResultSkipped, fmt.Errorf("failed to publish snapshot %d: %w", snap.Version, err)
	}
	return SetResult(res), nil
}

// Latest returns the stored snapshot, or ErrNoSnapshot.
func (s *SnapshotStore) Latest(ctx context.Context) (*Snapshot, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	version, raw, ok := decodeSnapshot(val)
	if !ok {
		return nil, fmt.Errorf("snapshot at %q has no version prefix", s.key)
	}

	var payload snapshotPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %d: %w", version, err)
	}
	return &Snapshot{Version: version, Checksum: payload.Checksum, Definition: payload.Definition}, nil
}

// Subscribe calls fn for every notice received until ctx is cancelled. It
// returns once the subscription is confirmed failing, or when ctx ends.
// Notices are hints: handlers should re-read Latest rather than trust them.
func (s *SnapshotStore) Subscribe(ctx context.Context, fn func(Notice)) error {
	ps := s.client.Subscribe(ctx, s.channel)
	defer ps.Close()

	// Wait for confirmation so callers know the channel is live.
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %q: %w", s.channel, err)
	}

	log := logger.FromContext(ctx)
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			observability.DataPlaneSnapshotsReceived.Inc()
			n, valid := DecodeNotice(msg.Payload)
			if !valid {
				log.Warn("ignoring malformed snapshot notice", slog.String("payload", msg.Payload))
				continue
			}
			fn(n)
		}
	}
}

// encodeSnapshot prefixes raw JSON with its version: "42|{...}".
func encodeSnapshot(raw []byte, version int64) string {
	return strconv.FormatInt(version, 10) + "|" + string(raw)
}

// decodeSnapshot splits "version|json". The JSON may itself contain pipes.
func decodeSnapshot(s string) (version int64, raw string, ok bool) {
	prefix, rest, found := strings.Cut(s, "|")
	if !found {
		return 0, s, false
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, s, false
	}
	return v, rest, true
}

// EncodeNotice formats a PubSub notice as "checksum:version".
func EncodeNotice(checksum string, version int64) string {
	return checksum + ":" + strconv.FormatInt(version, 10)
}

// DecodeNotice parses "checksum:version". The version is taken after the
// last colon.
func DecodeNotice(msg string) (Notice, bool) {
	i := strings.LastIndexByte(msg, ':')
	if i < 0 {
		return Notice{}, false
	}
	v, err := strconv.ParseInt(msg[i+1:], 10, 64)
	if err != nil || v < 0 {
		return Notice{}, false
	}
	return Notice{Checksum: msg[:i], Version: v}, true
}
