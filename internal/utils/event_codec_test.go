package utils

import (
	"encoding/binary"
	"testing"

	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func key(b byte) types.Pubkey {
	var pk types.Pubkey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

func testTx() *core.AdaptedTx {
	sig := types.Signature{}
	sig[0] = 0x11
	return &core.AdaptedTx{
		TxCtx:     &core.TxContext{Slot: 42, BlockTime: 1_700_000_123},
		Signature: sig,
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	trade := &core.TradeEvent{
		Mint:        key(1),
		SolAmount:   1<<63 + 5,
		TokenAmount: 1<<60 + 1,
		IsBuy:       true,
		User:        key(2),
	}
	ev := core.NewEvent(testTx(), core.Path{3, 7}, trade)

	buf, err := EncodeEvent(ev)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(buf[:4]))

	got, err := DecodeEvent(buf)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
	assert.Equal(t, uint64(1<<63+5), got.Data.(*core.TradeEvent).SolAmount)
}

func TestEncodeDecodeAllTypes(t *testing.T) {
	events := []*core.Event{
		core.NewEvent(testTx(), core.Path{0}, &core.CreateEvent{
			Name: "名字", Symbol: "SYM", URI: "ipfs://x", Mint: key(1), BondingCurve: key(2), User: key(3),
		}),
		core.NewEvent(testTx(), core.Path{0, 1}, &core.TradeEvent{Mint: key(1), User: key(3)}),
		core.NewEvent(testTx(), core.Path{2, 5}, &core.CompleteEvent{
			User: key(3), Mint: key(1), BondingCurve: key(2), Timestamp: 1_700_000_050,
		}),
	}
	for _, ev := range events {
		buf, err := EncodeEvent(ev)
		require.NoError(t, err)
		assert.Equal(t, ev.Type.Code(), binary.LittleEndian.Uint32(buf[:4]))

		got, err := DecodeEvent(buf)
		require.NoError(t, err, ev.Type)
		assert.Equal(t, ev, got)
	}
}

func TestEncodeEventWireFormat(t *testing.T) {
	ev := core.NewEvent(testTx(), core.Path{1}, &core.CompleteEvent{Mint: key(3), Timestamp: 9})
	buf, err := EncodeEvent(ev)
	require.NoError(t, err)

	// 按字段号升序：slot(1) timestamp(2) signature(3) idx(4) complete(7)
	b := buf[4:]
	var nums []protowire.Number
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		require.GreaterOrEqual(t, n, 0)
		b = b[n:]
		nums = append(nums, num)
		m := protowire.ConsumeFieldValue(num, typ, b)
		require.GreaterOrEqual(t, m, 0)
		if num == fieldSlot {
			v, _ := protowire.ConsumeVarint(b)
			assert.Equal(t, uint64(42), v)
		}
		b = b[m:]
	}
	assert.Equal(t, []protowire.Number{1, 2, 3, 4, 7}, nums)

	// 未知字段被跳过
	extra := protowire.AppendTag(append([]byte{}, buf...), 15, protowire.Fixed64Type)
	extra = protowire.AppendFixed64(extra, 7)
	got, err := DecodeEvent(extra)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestDecodeEventErrors(t *testing.T) {
	_, err := DecodeEvent([]byte{1, 0})
	assert.Error(t, err)

	_, err = EncodeEvent(&core.Event{})
	assert.Error(t, err)

	ev := core.NewEvent(testTx(), core.Path{0}, &core.CompleteEvent{Mint: key(3)})
	buf, err := EncodeEvent(ev)
	require.NoError(t, err)

	t.Run("type prefix mismatch", func(t *testing.T) {
		b := append([]byte{}, buf...)
		binary.LittleEndian.PutUint32(b[:4], 1)
		_, err := DecodeEvent(b)
		assert.Error(t, err)
	})

	t.Run("truncated body", func(t *testing.T) {
		_, err := DecodeEvent(buf[:len(buf)-3])
		assert.Error(t, err)
	})

	t.Run("missing payload", func(t *testing.T) {
		b := protowire.AppendTag([]byte{3, 0, 0, 0}, fieldIdx, protowire.BytesType)
		b = protowire.AppendString(b, "0")
		_, err := DecodeEvent(b)
		assert.Error(t, err)
	})

	t.Run("bad pubkey length", func(t *testing.T) {
		inner := protowire.AppendTag(nil, 2, protowire.BytesType)
		inner = protowire.AppendBytes(inner, []byte{1, 2, 3})
		b := protowire.AppendTag([]byte{3, 0, 0, 0}, fieldIdx, protowire.BytesType)
		b = protowire.AppendString(b, "0")
		b = protowire.AppendTag(b, fieldComplete, protowire.BytesType)
		b = protowire.AppendBytes(b, inner)
		_, err := DecodeEvent(b)
		assert.Error(t, err)
	})
}

func TestPartitionForMint(t *testing.T) {
	mint := key(9)
	p := PartitionForMint(mint, 8)
	assert.GreaterOrEqual(t, p, int32(0))
	assert.Less(t, p, int32(8))
	assert.Equal(t, p, PartitionForMint(mint, 8), "同一 mint 分区稳定")

	assert.Equal(t, int32(0), PartitionForMint(mint, 0))
	assert.Equal(t, uint32(0), PartitionHashBytes([]byte{1, 2, 3}, 8))
	assert.Equal(t, uint32(0), PartitionHashBytes(mint[:], 0))
}
