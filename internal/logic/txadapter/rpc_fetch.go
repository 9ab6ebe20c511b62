package txadapter

import (
	"context"
	"fmt"

	"github.com/blocto/solana-go-sdk/rpc"
)

// FetchRawTransaction 通过 JSON-RPC getTransaction 按签名拉取交易（json 编码，支持 v0）
func FetchRawTransaction(ctx context.Context, client *rpc.RpcClient, signature string) (*RawTransaction, error) {
	body, err := client.Call(ctx, "getTransaction", signature, map[string]any{
		"encoding":                       "json",
		"commitment":                     "confirmed",
		"maxSupportedTransactionVersion": 0,
	})
	if err != nil {
		return nil, fmt.Errorf("getTransaction %s: %w", signature, err)
	}
	return ParseRawTransactionJSON(body)
}
