package dispatcher

import (
	"testing"

	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/types"
	"pumpfun-indexer-sol/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvents() []*core.Event {
	tx := &core.AdaptedTx{TxCtx: &core.TxContext{Slot: 9, BlockTime: 100}}
	mintA := types.Pubkey{1}
	mintB := types.Pubkey{2}
	return []*core.Event{
		core.NewEvent(tx, core.Path{0}, &core.CreateEvent{Name: "a", Mint: mintA}),
		core.NewEvent(tx, core.Path{1}, &core.TradeEvent{Mint: mintA, SolAmount: 10, IsBuy: true}),
		core.NewEvent(tx, core.Path{2}, &core.TradeEvent{Mint: mintB, SolAmount: 20}),
		core.NewEvent(tx, core.Path{2, 4}, &core.CompleteEvent{Mint: mintB}),
	}
}

func TestBuildEventKafkaJobs(t *testing.T) {
	events := testEvents()
	jobs, err := BuildEventKafkaJobs("pumpfun-events", 4, events)
	require.NoError(t, err)
	require.Len(t, jobs, len(events))

	for i, job := range jobs {
		mint := events[i].Data.MintKey()
		assert.Equal(t, "pumpfun-events", job.Topic)
		assert.Equal(t, mint[:], job.Key)
		assert.Equal(t, utils.PartitionForMint(mint, 4), job.Partition)

		decoded, err := utils.DecodeEvent(job.Value)
		require.NoError(t, err)
		assert.Equal(t, events[i].Idx, decoded.Idx)
		assert.Equal(t, events[i].Type, decoded.Type)
	}
	assert.Equal(t, jobs[0].Partition, jobs[1].Partition, "同一 mint 同一分区")
}

func TestBuildEventKafkaJobsEmpty(t *testing.T) {
	jobs, err := BuildEventKafkaJobs("t", 4, nil)
	assert.NoError(t, err)
	assert.Nil(t, jobs)

	jobs, err = BuildEventKafkaJobs("t", 0, testEvents()[:1])
	require.NoError(t, err)
	assert.Equal(t, int32(0), jobs[0].Partition)
}

func TestCountByType(t *testing.T) {
	assert.Equal(t, map[string]int{"CREATE": 1, "TRADE": 2, "COMPLETE": 1}, CountByType(testEvents()))
	assert.Empty(t, CountByType(nil))
}
