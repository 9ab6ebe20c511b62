package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"pumpfun-indexer-sol/internal/config"
	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/logic/decoder"
	"pumpfun-indexer-sol/internal/logic/eventparser"
	"pumpfun-indexer-sol/internal/logic/txadapter"
	"pumpfun-indexer-sol/internal/pkg/logger"

	"github.com/blocto/solana-go-sdk/rpc"
	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/encoding/protojson"
)

type decodeOptions struct {
	configFile  string
	rpcEndpoint string
	signatures  []string
	jsonFiles   []string
	pbFile      string
	slot        uint64
	concurrency int
	pretty      bool
	logLevel    string
}

var opts decodeOptions

var rootCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode Pump.fun bonding-curve events from Solana transactions",
	Long: `decode 把单笔或多笔交易解析为 CREATE / TRADE / COMPLETE 事件并以 JSON 行输出。
交易来源：--sig 通过 RPC 拉取；--json 读取 getTransaction 响应文件（"-" 表示 stdin）；
--pb 读取 protojson 格式的 Yellowstone SubscribeUpdateTransactionInfo。`,
	SilenceUsage: true,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Init(logger.LogOption{Format: "console", Level: opts.logLevel}); err != nil {
			return err
		}
		eventparser.Init()
		if len(opts.signatures) == 0 && len(opts.jsonFiles) == 0 && opts.pbFile == "" {
			return fmt.Errorf("one of --sig, --json or --pb is required")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDecode(cmd.Context(), cmd.OutOrStdout(), &opts)
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&opts.configFile, "config", "f", "", "config file providing rpc.endpoint")
	f.StringVar(&opts.rpcEndpoint, "rpc", "", "Solana JSON-RPC endpoint (overrides config)")
	f.StringSliceVar(&opts.signatures, "sig", nil, "transaction signature(s) to fetch over RPC")
	f.StringSliceVar(&opts.jsonFiles, "json", nil, "getTransaction JSON response file(s), '-' for stdin")
	f.StringVar(&opts.pbFile, "pb", "", "protojson SubscribeUpdateTransactionInfo file")
	f.Uint64Var(&opts.slot, "slot", 0, "slot for --pb input")
	f.IntVar(&opts.concurrency, "concurrency", 4, "parallel RPC fetches for --sig")
	f.BoolVar(&opts.pretty, "pretty", false, "indent JSON output")
	f.StringVar(&opts.logLevel, "log-level", "warn", "debug / info / warn / error")
}

func runDecode(ctx context.Context, out io.Writer, o *decodeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var results []*decoder.Result

	for _, path := range o.jsonFiles {
		data, err := readInput(path)
		if err != nil {
			return err
		}
		res, err := decoder.DecodeJSON(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		results = append(results, res)
	}

	if o.pbFile != "" {
		res, err := decodeProtoFile(o.pbFile, o.slot)
		if err != nil {
			return err
		}
		results = append(results, res)
	}

	if len(o.signatures) > 0 {
		fetched, err := fetchSignatures(ctx, o)
		if err != nil {
			return err
		}
		results = append(results, fetched...)
	}

	enc := json.NewEncoder(out)
	if o.pretty {
		enc.SetIndent("", "  ")
	}
	for _, res := range results {
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	return nil
}

func resolveEndpoint(o *decodeOptions) (string, error) {
	if o.rpcEndpoint != "" {
		return o.rpcEndpoint, nil
	}
	if o.configFile != "" {
		c, err := config.LoadFile(o.configFile)
		if err != nil {
			return "", err
		}
		if c.Rpc.Endpoint != "" {
			return c.Rpc.Endpoint, nil
		}
	}
	return "", fmt.Errorf("--sig needs --rpc or a config file with rpc.endpoint")
}

// fetchSignatures 并发拉取并解析，输出顺序与参数顺序一致
func fetchSignatures(ctx context.Context, o *decodeOptions) ([]*decoder.Result, error) {
	endpoint, err := resolveEndpoint(o)
	if err != nil {
		return nil, err
	}
	client := rpc.NewRpcClient(endpoint)

	results := make([]*decoder.Result, len(o.signatures))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.concurrency, 1))
	for i, sig := range o.signatures {
		g.Go(func() error {
			raw, err := txadapter.FetchRawTransaction(gctx, &client, sig)
			if err != nil {
				return err
			}
			res, err := decoder.DecodeRaw(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", sig, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func decodeProtoFile(path string, slot uint64) (*decoder.Result, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	var info pb.SubscribeUpdateTransactionInfo
	if err := protojson.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	tx, err := txadapter.AdaptGrpcTx(&core.TxContext{Slot: slot}, &info)
	if err != nil {
		return nil, err
	}
	return decoder.DecodeAdapted(tx, info.GetMeta().GetErr() != nil), nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
