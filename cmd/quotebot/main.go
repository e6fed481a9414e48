// Command quotebot runs the quote command surface as a line-oriented REPL:
// it reads "/command arg..." lines from stdin, dispatches them to the
// handlers in internal/command and prints each reply. Chart commands print
// the path of the rendered PNG; the caller owns (and should delete) the file.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/zeromicro/go-zero/core/logx"

	"quotebot-api/internal/cli"
	"quotebot-api/internal/command"
	"quotebot-api/internal/config"
	"quotebot-api/pkg/chart"
	"quotebot-api/pkg/fetch"
	"quotebot-api/pkg/market"
	"quotebot-api/pkg/market/binance"
	"quotebot-api/pkg/market/eastmoney"
	"quotebot-api/pkg/market/sina"
)

var configFile = flag.String("f", "etc/quotebot.yaml", "the config file")

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)
	logx.MustSetup(cfg.Log)
	defer logx.Close()
	cli.LogConfigSummary(cfg)

	marketCfg := cfg.MarketConfig()
	chartCfg := cfg.ChartConfig()

	var crypto market.CryptoAPI
	if marketCfg.Features.EnableCrypto {
		crypto = binance.NewClient(binance.WithBaseURL(marketCfg.Crypto.BinanceBaseURL))
	}
	source, err := market.NewSource(marketCfg, fetch.NewPool(3), eastmoney.NewClient(), sina.NewClient(), crypto)
	if err != nil {
		logx.Errorf("main: init market source: %v", err)
		os.Exit(1)
	}

	composer := chart.NewComposer(chartCfg, marketCfg.Features.EnableTechnicalAnalysis)
	handler := command.NewHandler(source, composer, marketCfg, cfg.DefaultLimit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logx.Infof("main: quotebot ready (env=%s)", cfg.Env)
	fmt.Println("quotebot ready, type /help for commands")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reply := dispatch(ctx, handler, line)
		if reply.ImagePath != "" {
			fmt.Println("chart:", reply.ImagePath)
		}
		if reply.Text != "" {
			fmt.Println(reply.Text)
		}
	}
	if err := scanner.Err(); err != nil {
		logx.Errorf("main: read stdin: %v", err)
	}
}

// dispatch parses one "/command arg..." line and routes it to its handler.
func dispatch(ctx context.Context, h *command.Handler, line string) command.Reply {
	fields := strings.Fields(line)
	name := strings.TrimPrefix(strings.ToLower(fields[0]), "/")
	args := fields[1:]

	switch name {
	case "help", "start":
		return h.Help()
	case "price":
		if len(args) < 1 {
			return usage("/price <symbol> [start] [end]")
		}
		return h.Price(ctx, args[0], argAt(args, 1), argAt(args, 2))
	case "price_now":
		if len(args) < 1 {
			return usage("/price_now <symbol>")
		}
		return h.PriceNow(ctx, args[0])
	case "price_chart":
		if len(args) < 1 {
			return usage("/price_chart <symbol> [period] [limit] [start] [end]")
		}
		return h.PriceChart(ctx, args[0], argAt(args, 1), intAt(args, 2), argAt(args, 3), argAt(args, 4))
	case "index":
		if len(args) < 1 {
			return usage("/index <code>")
		}
		return h.Index(ctx, args[0])
	case "index_chart":
		if len(args) < 1 {
			return usage("/index_chart <code> [limit] [start] [end]")
		}
		return h.IndexChart(ctx, args[0], intAt(args, 1), argAt(args, 2), argAt(args, 3))
	case "crypto":
		if len(args) < 1 {
			return usage("/crypto <symbol> [quote]")
		}
		return h.Crypto(ctx, args[0], argAt(args, 1))
	case "crypto_list":
		return h.CryptoList(ctx, intAt(args, 0))
	case "crypto_info":
		return h.CryptoInfo(ctx)
	case "crypto_history":
		if len(args) < 1 {
			return usage("/crypto_history <symbol> [limit]")
		}
		return h.CryptoHistory(ctx, args[0], "", intAt(args, 1))
	case "crypto_chart":
		if len(args) < 1 {
			return usage("/crypto_chart <symbol> [period] [limit]")
		}
		return h.CryptoChart(ctx, args[0], argAt(args, 1), intAt(args, 2), "")
	case "crypto_compare":
		return h.CryptoCompare(ctx, args, "")
	case "crypto_market":
		return h.CryptoMarket(ctx)
	default:
		return command.Reply{Text: fmt.Sprintf("⚠️ unknown command /%s, type /help for the list", name)}
	}
}

func usage(u string) command.Reply {
	return command.Reply{Text: "usage: " + u}
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func intAt(args []string, i int) int {
	if i >= len(args) {
		return 0
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0
	}
	return n
}
