package processor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/jobstatus"
	"resume-screener-go/internal/queue"
	"resume-screener-go/internal/types"
)

// fakeQueue records published messages in memory.
type fakeQueue struct {
	published  [][]byte
	publishErr error
}

func (q *fakeQueue) PublishJSON(_ context.Context, _, _ string, data interface{}, _ bool) error {
	if q.publishErr != nil {
		return q.publishErr
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	q.published = append(q.published, raw)
	return nil
}

func (q *fakeQueue) EnsureExchange(string, string, bool) error { return nil }
func (q *fakeQueue) EnsureQueue(string, bool) error            { return nil }
func (q *fakeQueue) BindQueue(string, string, string) error    { return nil }
func (q *fakeQueue) StartConsumer(string, int, func([]byte) bool) (chan<- struct{}, error) {
	return nil, errors.New("not implemented")
}
func (q *fakeQueue) Close() error { return nil }

func TestSyncStrategy(t *testing.T) {
	an := &scoreAnalyzer{scores: map[string]float64{"x": 9.0}}
	strategy := NewSyncStrategy(New(&stubExtractor{}, an))

	sub, err := strategy.Execute(context.Background(), Batch{
		Files:          []types.UploadedFile{file("x.txt", "x")},
		JobDescription: "jd",
		TokensReserved: 1,
	})
	require.NoError(t, err)
	require.NotNil(t, sub.Output)
	assert.Empty(t, sub.TaskID)
	assert.Len(t, sub.Output.Data.Selected, 1)
	assert.Equal(t, 1, sub.Output.Metadata.TokensUsed)
}

func TestQueuedStrategy(t *testing.T) {
	mq := &fakeQueue{}
	store := jobstatus.NewMemoryStore(time.Hour)
	strategy, err := NewQueuedStrategy(mq, store, TopologyFromConfig(nil))
	require.NoError(t, err)

	sub, err := strategy.Execute(context.Background(), Batch{
		Files: []types.UploadedFile{
			file("a.txt", "a"),
			file("b.txt", "b"),
		},
		JobDescription: "jd",
		UserID:         "user-1",
	})
	require.NoError(t, err)
	assert.Nil(t, sub.Output)
	require.NotEmpty(t, sub.TaskID)

	// The job is registered and pollable before any worker ran.
	job, err := store.Get(context.Background(), sub.TaskID)
	require.NoError(t, err)
	assert.Equal(t, jobstatus.StatePending, job.State)
	assert.Equal(t, 2, job.Progress.Total)

	// The published message round-trips into the same batch.
	require.Len(t, mq.published, 1)
	var msg queue.BatchJobMessage
	require.NoError(t, json.Unmarshal(mq.published[0], &msg))
	assert.Equal(t, sub.TaskID, msg.TaskID)
	assert.Equal(t, "user-1", msg.UserID)

	files := DecodeFiles(msg.Files)
	require.Len(t, files, 2)
	assert.Equal(t, "a.txt", files[0].Filename)
	assert.Equal(t, []byte("a"), files[0].Content)
}

func TestQueuedStrategyPublishFailure(t *testing.T) {
	mq := &fakeQueue{publishErr: errors.New("broker gone")}
	store := jobstatus.NewMemoryStore(time.Hour)
	strategy, err := NewQueuedStrategy(mq, store, TopologyFromConfig(nil))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = strategy.Execute(ctx, Batch{
		Files: []types.UploadedFile{file("a.txt", "a")},
	})
	require.Error(t, err)
}

func TestTopologyDefaultsAgree(t *testing.T) {
	// An unset broker section must resolve to the same names everywhere, so
	// the publisher and the consumer meet on one queue.
	assert.Equal(t, TopologyFromConfig(nil), TopologyFromConfig(&config.RabbitMQConfig{}))

	custom := TopologyFromConfig(&config.RabbitMQConfig{
		BatchExchange:   "hiring.batch",
		BatchQueue:      "hiring.batch.jobs",
		BatchRoutingKey: "hiring.process",
	})
	assert.Equal(t, "hiring.batch", custom.Exchange)
	assert.Equal(t, "hiring.batch.jobs", custom.Queue)
	assert.Equal(t, "hiring.process", custom.RoutingKey)
}

func TestDecodeFilesBadContent(t *testing.T) {
	files := DecodeFiles([]queue.BatchFilePayload{
		{Filename: "good.txt", ContentBase64: "aGVsbG8="},
		{Filename: "bad.txt", ContentBase64: "%%%not-base64%%%"},
	})
	require.Len(t, files, 2)
	assert.Equal(t, []byte("hello"), files[0].Content)
	assert.Empty(t, files[1].Content)
}
