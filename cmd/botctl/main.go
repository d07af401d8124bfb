package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"bot-ledger-go/internal/api"
	"bot-ledger-go/internal/client"
	"bot-ledger-go/internal/config"
	"bot-ledger-go/internal/keypair"
	"bot-ledger-go/internal/ledger"
	"bot-ledger-go/internal/logger"
	"bot-ledger-go/internal/trader"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// cli carries what every subcommand needs.
type cli struct {
	cfg       config.Config
	log       *zap.Logger
	node      client.NodeClient
	programID ledger.Identity
	out       io.Writer
}

type command struct {
	usage string
	run   func(ctx context.Context, c *cli, args []string) error
}

var commands = map[string]command{
	"keygen":     {"keygen [-o path]  create a new keypair file", runKeygen},
	"address":    {"address [-owner id]  print an identity and its bot address", runAddress},
	"airdrop":    {"airdrop -sol amount [-to id]  fund an account from the node faucet", runAirdrop},
	"create":     {"create -risk pct [-strategy n]  create the signer's bot", runCreate},
	"activate":   {"activate  activate the signer's bot", runSetActive(true)},
	"deactivate": {"deactivate  deactivate the signer's bot", runSetActive(false)},
	"trade":      {"trade -market id -amount lamports [-sell]  execute a trade", runTrade},
	"show":       {"show [-owner id | -bot id]  show a bot", runShow},
	"balance":    {"balance [id]  show an account balance", runBalance},
	"history":    {"history [-bot id] [-limit n]  list journalled instructions", runHistory},
}

func main() {
	configDir := flag.String("config", "./configs", "directory holding config.yml")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	programID, err := ledger.ParseIdentity(cfg.Ledger.ProgramID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid program id: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &cli{
		cfg:       cfg,
		log:       log,
		node:      client.NewRestClient(&cfg.Client, log),
		programID: programID,
		out:       os.Stdout,
	}
	if err := cmd.run(ctx, c, flag.Args()[1:]); err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Name != "" {
			fmt.Fprintf(os.Stderr, "Error: %s\n", apiErr.Message)
			os.Exit(3)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: botctl [-config dir] <command> [flags]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
}

func (c *cli) signer() (*keypair.Keypair, error) {
	return keypair.Load(c.cfg.Client.Keypair)
}

// submit signs ix with the configured keypair and sends it for the signer's bot.
func (c *cli) submit(ctx context.Context, ix trader.Instruction, market ledger.Identity) error {
	kp, err := c.signer()
	if err != nil {
		return err
	}
	tx, err := trader.NewTransaction(kp.Identity, ledger.DeriveBotAddress(c.programID, kp.Identity), market, ix)
	if err != nil {
		return err
	}
	if err := tx.Sign(kp.PrivateKey); err != nil {
		return err
	}

	c.log.Debug("Submitting transaction", zap.Stringer("id", tx.ID), zap.String("instruction", ix.Name()))
	receipt, err := c.node.SubmitTransaction(ctx, tx)
	if err != nil {
		return err
	}
	return c.print(receipt)
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runKeygen(_ context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	path := fs.String("o", c.cfg.Client.Keypair, "output file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	kp, err := keypair.Generate()
	if err != nil {
		return err
	}
	if err := keypair.Save(*path, kp); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Wrote keypair to %s\nIdentity: %s\n", *path, kp.Identity)
	return nil
}

func runAddress(_ context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	ownerFlag := fs.String("owner", "", "owner identity (default: the configured keypair)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	owner, err := c.identityOrSigner(*ownerFlag)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Identity: %s\nBot:      %s\n", owner, ledger.DeriveBotAddress(c.programID, owner))
	return nil
}

func runAirdrop(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("airdrop", flag.ContinueOnError)
	sol := fs.String("sol", "1", "amount in SOL")
	to := fs.String("to", "", "recipient (default: the configured keypair)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	lamports, err := parseSOL(*sol)
	if err != nil {
		return err
	}
	target, err := c.identityOrSigner(*to)
	if err != nil {
		return err
	}

	balance, err := c.node.Airdrop(ctx, target, lamports)
	if err != nil {
		return err
	}
	return c.print(balance)
}

func runCreate(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	risk := fs.Uint("risk", 0, "percentage of each trade amount to move (0-100)")
	strategy := fs.Uint("strategy", 0, "strategy type tag")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *risk > 255 || *strategy > 255 {
		return fmt.Errorf("risk and strategy must fit in one byte")
	}

	return c.submit(ctx, trader.InitializeBot{RiskPercentage: uint8(*risk), StrategyType: uint8(*strategy)}, ledger.SystemIdentity)
}

func runSetActive(active bool) func(context.Context, *cli, []string) error {
	return func(ctx context.Context, c *cli, args []string) error {
		if len(args) != 0 {
			return fmt.Errorf("unexpected arguments: %v", args)
		}
		if active {
			return c.submit(ctx, trader.ActivateBot{}, ledger.SystemIdentity)
		}
		return c.submit(ctx, trader.DeactivateBot{}, ledger.SystemIdentity)
	}
}

func runTrade(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("trade", flag.ContinueOnError)
	marketFlag := fs.String("market", "", "market identity receiving buy transfers")
	amount := fs.Uint64("amount", 0, "trade amount in lamports before risk sizing")
	sell := fs.Bool("sell", false, "sell instead of buy")
	if err := fs.Parse(args); err != nil {
		return err
	}

	market, err := ledger.ParseIdentity(*marketFlag)
	if err != nil {
		return fmt.Errorf("invalid -market: %w", err)
	}
	return c.submit(ctx, trader.ExecuteTrade{Amount: *amount, IsBuy: !*sell}, market)
}

func runShow(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	ownerFlag := fs.String("owner", "", "owner identity (default: the configured keypair)")
	botFlag := fs.String("bot", "", "bot address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		view *api.BotView
		err  error
	)
	if *botFlag != "" {
		addr, perr := ledger.ParseIdentity(*botFlag)
		if perr != nil {
			return fmt.Errorf("invalid -bot: %w", perr)
		}
		view, err = c.node.GetBot(ctx, addr)
	} else {
		owner, perr := c.identityOrSigner(*ownerFlag)
		if perr != nil {
			return perr
		}
		view, err = c.node.GetOwnerBot(ctx, owner)
	}
	if err != nil {
		return err
	}
	return c.print(view)
}

func runBalance(ctx context.Context, c *cli, args []string) error {
	var s string
	switch len(args) {
	case 0:
	case 1:
		s = args[0]
	default:
		return fmt.Errorf("expected at most one identity, got %d", len(args))
	}

	addr, err := c.identityOrSigner(s)
	if err != nil {
		return err
	}
	balance, err := c.node.GetBalance(ctx, addr)
	if err != nil {
		return err
	}
	return c.print(balance)
}

func runHistory(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	botFlag := fs.String("bot", "", "only instructions for this bot")
	limit := fs.Int("limit", 20, "maximum entries")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var bot ledger.Identity
	if *botFlag != "" {
		var err error
		if bot, err = ledger.ParseIdentity(*botFlag); err != nil {
			return fmt.Errorf("invalid -bot: %w", err)
		}
	}

	history, err := c.node.GetTransactions(ctx, bot, *limit)
	if err != nil {
		return err
	}
	return c.print(history)
}

// identityOrSigner parses s, falling back to the configured keypair's identity.
func (c *cli) identityOrSigner(s string) (ledger.Identity, error) {
	if s != "" {
		return ledger.ParseIdentity(s)
	}
	kp, err := c.signer()
	if err != nil {
		return ledger.Identity{}, err
	}
	return kp.Identity, nil
}

// parseSOL converts a decimal SOL amount into lamports. Fractions smaller
// than one lamport are rejected rather than rounded.
func parseSOL(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid SOL amount %q: %w", s, err)
	}
	lamports := d.Shift(9)
	if !lamports.IsPositive() {
		return 0, fmt.Errorf("SOL amount must be positive, got %s", s)
	}
	if !lamports.IsInteger() {
		return 0, fmt.Errorf("SOL amount %s has more than 9 decimals", s)
	}
	n := lamports.BigInt()
	if !n.IsUint64() {
		return 0, fmt.Errorf("SOL amount %s is too large", s)
	}
	return n.Uint64(), nil
}
