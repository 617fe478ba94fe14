package notifier

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/openbuilders/wine-minter/internal/events"
	"github.com/openbuilders/wine-minter/internal/queue"
	"github.com/openbuilders/wine-minter/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	queues   []queue.QueueName
	messages [][]byte
	err      error
}

func (p *fakePublisher) Publish(name queue.QueueName, message []byte) error {
	p.queues = append(p.queues, name)
	p.messages = append(p.messages, message)
	return p.err
}

func TestNotifier_TerminalStatusesOnly(t *testing.T) {
	pub := &fakePublisher{}
	n := New(pub, queue.QueueMintResults)

	n.Notify(events.Event{Kind: events.KindProgress, RunID: "run-1"})
	n.Notify(events.Event{Kind: events.KindStatus, RunID: "run-1", Status: &types.MintingStatus{
		WineID: "wine-1", Status: types.StatusConfirming,
	}})
	assert.Empty(t, pub.messages)

	n.Notify(events.Event{Kind: events.KindStatus, RunID: "run-1", Mode: "main", Status: &types.MintingStatus{
		WineID: "wine-1", WineryID: "winery-1", Status: types.StatusSuccess,
		TxID: "tx-1", TokenRefID: "token-1",
	}})

	require.Len(t, pub.messages, 1)
	assert.Equal(t, queue.QueueMintResults, pub.queues[0])
	assert.JSONEq(t, `{"pattern":"mint-status","data":{"run_id":"run-1","mode":"main",
		"wine_id":"wine-1","winery_id":"winery-1","status":"success",
		"tx_id":"tx-1","token_ref_id":"token-1"}}`, string(pub.messages[0]))
}

func TestNotifier_RunComplete(t *testing.T) {
	pub := &fakePublisher{}
	n := New(pub, queue.QueueMintResults)

	n.Notify(events.Event{
		Kind:  events.KindComplete,
		RunID: "run-1",
		Mode:  "test",
		Results: []types.MintingStatus{
			{WineID: "a", Status: types.StatusSuccess},
			{WineID: "b", Status: types.StatusFailed},
		},
	})

	require.Len(t, pub.messages, 1)

	var got struct {
		Pattern string          `json:"pattern"`
		Data    RunCompleteData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(pub.messages[0], &got))
	assert.Equal(t, PatternRunComplete, got.Pattern)
	assert.Equal(t, types.MintSummary{Total: 2, Successful: 1, Failed: 1}, got.Data.Summary)
}

func TestNotifier_PublishErrorIsSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection is not open yet")}
	n := New(pub, queue.QueueMintResults)

	assert.NotPanics(t, func() {
		n.Notify(events.Event{Kind: events.KindComplete, RunID: "run-1"})
	})
	assert.Len(t, pub.messages, 1)
}
