package decoder

import (
	"os"
	"path/filepath"
	"testing"

	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/logic/txadapter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fixtureUser = "LQVcTQajEfHFgC7dJeWJ6R3uBsqZrSdp9rTzv344p4A"
	fixtureMint = "FqUwnBMN1shpeqKVm7W5fN73tvrjVr19TQFFgkoFFzhq"
	fixtureBC   = "32Hcbo37SHj8Sgcz7rSpCtfsmT6syyxvxSew4DTqHXPy"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "txadapter", "testdata", name))
	require.NoError(t, err)
	return data
}

func TestDecodeJSONBuy(t *testing.T) {
	res, err := DecodeJSON(readFixture(t, "pump_buy.json"))
	require.NoError(t, err)

	assert.False(t, res.Failed)
	assert.Equal(t, uint64(301234567), res.Slot)
	assert.Empty(t, res.Skipped)
	require.Len(t, res.Events, 1)

	ev := res.Events[0]
	assert.Equal(t, core.EventTypeTrade, ev.Type)
	assert.Equal(t, "1", ev.Idx)
	assert.Equal(t, res.Signature, ev.Signature)
	assert.Equal(t, uint64(1700000000), ev.Timestamp)

	trade, ok := ev.Data.(*core.TradeEvent)
	require.True(t, ok)
	assert.True(t, trade.IsBuy)
	assert.Equal(t, uint64(1_234_567_890), trade.SolAmount)
	assert.Equal(t, uint64(35_000_000_000_000), trade.TokenAmount)
	assert.Equal(t, fixtureMint, trade.Mint.String())
	assert.Equal(t, fixtureUser, trade.User.String())
}

func TestDecodeJSONCreateFromLogs(t *testing.T) {
	res, err := DecodeJSON(readFixture(t, "pump_create_legacy.json"))
	require.NoError(t, err)
	require.Len(t, res.Events, 2)

	create := res.Events[0]
	assert.Equal(t, core.EventTypeCreate, create.Type)
	assert.Equal(t, "0", create.Idx)
	data := create.Data.(*core.CreateEvent)
	assert.Equal(t, "Test Coin", data.Name)
	assert.Equal(t, "TEST", data.Symbol)
	assert.Equal(t, "https://ipfs.io/ipfs/QmTestCoin", data.URI)
	assert.Equal(t, fixtureMint, data.Mint.String())
	assert.Equal(t, fixtureBC, data.BondingCurve.String())
	assert.Equal(t, fixtureUser, data.User.String())

	// 日志派生事件路径为 [主指令数量, 日志行号]
	complete := res.Events[1]
	assert.Equal(t, core.EventTypeComplete, complete.Type)
	assert.Equal(t, "1.5", complete.Idx)
	assert.Equal(t, uint64(1_700_000_050), complete.Data.(*core.CompleteEvent).Timestamp)
}

func TestDecodeRawFailedTransaction(t *testing.T) {
	raw, err := txadapter.ParseRawTransactionJSON(readFixture(t, "pump_buy.json"))
	require.NoError(t, err)
	raw.Meta.Err = []byte(`{"InstructionError":[1,{"Custom":6002}]}`)

	res, err := DecodeRaw(raw)
	require.NoError(t, err)
	assert.True(t, res.Failed)
	assert.Empty(t, res.Events)
	assert.NotEmpty(t, res.Signature)
}

func TestDecodeJSONMalformed(t *testing.T) {
	_, err := DecodeJSON([]byte(`{"slot":1,"transaction":{"signatures":[],"message":null},"meta":null}`))
	assert.ErrorIs(t, err, core.ErrMalformedTransaction)
}
