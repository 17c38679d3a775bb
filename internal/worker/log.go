package worker

import (
	"github.com/redis/go-redis/v9"

	"infiya.app/relay/core/config"
	"infiya.app/relay/internal/queue"
)

// RedisLogFactory opens user logs on the streams instance. All consumers for
// a user share the group and the consumer name "consumer_<user>".
func RedisLogFactory(client *redis.Client, streams config.StreamsConfig, tuning config.RelayConfig) LogFactory {
	return func(userID string) EventLog {
		stream := streams.StreamKey(userID)
		return queue.NewRedisConsumer(client, queue.ConsumerConfig{
			Stream:     stream,
			Group:      streams.Group,
			Consumer:   "consumer_" + userID,
			DeadLetter: stream + streams.DeadLetter,
			BatchSize:  tuning.BatchSize,
			Block:      tuning.Block,
		})
	}
}
