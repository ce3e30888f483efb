// Package redisstore implements storage.Storage over
// github.com/go-redis/redis/v7, adapted from the teacher's
// paxos/queries/redis-queries.go: a "known keys" set (here "paxoscore:uids")
// alongside per-uid string keys. The accepted key is written through
// a client.Watch transaction, in the style of RedisSetProposal; the
// granted key is written with a plain SADD followed by SET, outside
// any transaction. The
// teacher's colon-joined "turnID:pid:seq:v" encoding is replaced with
// JSON, since V is generic here rather than always a string.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v7"

	"github.com/esaraci/paxoscore/message"
	"github.com/esaraci/paxoscore/sid"
)

const uidSetKey = "paxoscore:uids"

func grantedKey(uid string) string  { return "paxoscore:granted:" + uid }
func acceptedKey(uid string) string { return "paxoscore:accepted:" + uid }

// Storage is a Redis-backed storage.Storage[V] implementation.
type Storage[V any] struct {
	client *redis.Client
}

// Open connects to a Redis server, mirroring the teacher's
// RedisPrepareDBConn: build a client, then Ping to fail fast if the
// server is unreachable.
func Open[V any](addr, password string, db int) (*Storage[V], error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if _, err := client.Ping().Result(); err != nil {
		return nil, fmt.Errorf("redisstore: ping %s: %w", addr, err)
	}
	return &Storage[V]{client: client}, nil
}

func (s *Storage[V]) Close() error {
	return s.client.Close()
}

type grantedRecord struct {
	Integer int64  `json:"integer"`
	ID      string `json:"id"`
}

func (s *Storage[V]) GetLastGrantedSuggestionId(_ context.Context, uid string) (sid.SID, bool, error) {
	raw, err := s.client.Get(grantedKey(uid)).Result()
	if err == redis.Nil {
		return sid.SID{}, false, nil
	}
	if err != nil {
		return sid.SID{}, false, fmt.Errorf("redisstore: get granted(%s): %w", uid, err)
	}
	var rec grantedRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return sid.SID{}, false, fmt.Errorf("redisstore: decode granted(%s): %w", uid, err)
	}
	return sid.SID{Integer: rec.Integer, ID: rec.ID}, true, nil
}

func (s *Storage[V]) StoreLastGrantedSuggestionId(_ context.Context, uid string, newSID sid.SID) error {
	raw, err := json.Marshal(grantedRecord{Integer: newSID.Integer, ID: newSID.ID})
	if err != nil {
		return fmt.Errorf("redisstore: encode granted(%s): %w", uid, err)
	}
	s.client.SAdd(uidSetKey, uid)
	if _, err := s.client.Set(grantedKey(uid), raw, 0).Result(); err != nil {
		return fmt.Errorf("redisstore: set granted(%s): %w", uid, err)
	}
	return nil
}

type acceptedRecord[V any] struct {
	Integer int64 `json:"integer"`
	ID      string `json:"id"`
	Value   V      `json:"value"`
}

func (s *Storage[V]) GetLastAcceptedData(_ context.Context, uid string) (message.LastAccepted[V], bool, error) {
	raw, err := s.client.Get(acceptedKey(uid)).Result()
	if err == redis.Nil {
		return message.LastAccepted[V]{}, false, nil
	}
	if err != nil {
		return message.LastAccepted[V]{}, false, fmt.Errorf("redisstore: get accepted(%s): %w", uid, err)
	}
	var rec acceptedRecord[V]
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return message.LastAccepted[V]{}, false, fmt.Errorf("redisstore: decode accepted(%s): %w", uid, err)
	}
	return message.LastAccepted[V]{SID: sid.SID{Integer: rec.Integer, ID: rec.ID}, Value: rec.Value}, true, nil
}

// StoreLastAcceptedData writes uid's accepted (sid, value) inside a
// client.Watch transaction on the accepted key, mirroring
// RedisSetProposal's tx.Pipelined write-under-watch idiom.
func (s *Storage[V]) StoreLastAcceptedData(_ context.Context, uid string, data message.LastAccepted[V]) error {
	raw, err := json.Marshal(acceptedRecord[V]{Integer: data.SID.Integer, ID: data.SID.ID, Value: data.Value})
	if err != nil {
		return fmt.Errorf("redisstore: encode accepted(%s): %w", uid, err)
	}
	key := acceptedKey(uid)
	return s.client.Watch(func(tx *redis.Tx) error {
		_, err := tx.Pipelined(func(pipe redis.Pipeliner) error {
			pipe.SAdd(uidSetKey, uid)
			pipe.Set(key, raw, 0)
			return nil
		})
		return err
	}, key)
}

func (s *Storage[V]) Reset(_ context.Context, uid string) error {
	pipe := s.client.TxPipeline()
	pipe.SRem(uidSetKey, uid)
	pipe.Del(grantedKey(uid))
	pipe.Del(acceptedKey(uid))
	if _, err := pipe.Exec(); err != nil {
		return fmt.Errorf("redisstore: reset(%s): %w", uid, err)
	}
	return nil
}
