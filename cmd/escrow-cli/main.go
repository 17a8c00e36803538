package main

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"escrowd/config"
	"escrowd/crypto"
	"escrowd/escrow"
	"escrowd/ledger"
)

const usage = `Usage: escrow-cli <command> [options]

Commands:
  keygen                       Generate a keypair and print its address
  init                         Initialize an escrow over a funded vault
  settle                       Settle an open escrow in favour of the payee
  cancel                       Cancel an open escrow, refunding the payer
  close                        Close a settled or canceled escrow record
  escrow <address>             Show a stored escrow record
  account <address>            Show a ledger account
  authority                    Print the derived vault authority
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "keygen":
		err = runKeygen()
	case "init":
		err = runInit(args)
	case "settle":
		err = runSettle(args)
	case "cancel":
		err = runCancel(args)
	case "close":
		err = runClose(args)
	case "escrow":
		err = runQuery(args, "escrows")
	case "account":
		err = runQuery(args, "accounts")
	case "authority":
		err = runAuthority(args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type cliContext struct {
	node           string
	programID      ledger.Address
	tokenProgramID ledger.Address
}

func commonFlags(fs *flag.FlagSet) (node, configPath *string) {
	node = fs.String("node", "http://127.0.0.1:8645", "escrowd HTTP endpoint")
	configPath = fs.String("config", "./config.toml", "path to the escrowd config file")
	return
}

func loadContext(node, configPath string) (*cliContext, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	programID, err := cfg.Program()
	if err != nil {
		return nil, err
	}
	tokenProgramID, err := cfg.TokenProgram()
	if err != nil {
		return nil, err
	}
	return &cliContext{node: node, programID: programID, tokenProgramID: tokenProgramID}, nil
}

func runKeygen() error {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	fmt.Println("Address:    ", key.PubKey().Address())
	fmt.Println("Private key:", hex.EncodeToString(key.Bytes()))
	return nil
}

func runAuthority(args []string) error {
	fs := flag.NewFlagSet("authority", flag.ExitOnError)
	_, configPath := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx, err := loadContext("", *configPath)
	if err != nil {
		return err
	}
	authority, bump, err := escrow.FindProgramAuthority(ctx.programID)
	if err != nil {
		return err
	}
	fmt.Println("Derived authority:", authority)
	fmt.Println("Bump:", bump)
	return nil
}

type meta struct {
	Key      string `json:"key"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
}

func addrFlag(fs *flag.FlagSet, name, help string) *string {
	return fs.String(name, "", help)
}

func parseAddr(fs *flag.FlagSet, name, raw string) (ledger.Address, error) {
	if raw == "" {
		return ledger.Address{}, fmt.Errorf("missing required flag -%s", name)
	}
	addr, err := ledger.ParseAddress(raw)
	if err != nil {
		return ledger.Address{}, fmt.Errorf("-%s: %w", name, err)
	}
	return addr, nil
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	node, configPath := commonFlags(fs)
	payer := addrFlag(fs, "payer", "payer address (signer)")
	vault := addrFlag(fs, "vault", "vault token account funded with the deposit")
	authority := addrFlag(fs, "authority", "escrow authority address (signer)")
	escrowAcct := addrFlag(fs, "escrow", "escrow record account")
	payerToken := addrFlag(fs, "payer-token", "payer token account")
	payeeToken := addrFlag(fs, "payee-token", "payee token account")
	feeToken := addrFlag(fs, "fee-token", "fee token account")
	amount := fs.Uint64("amount", 0, "deposit amount")
	fee := fs.Uint64("fee", 0, "settlement fee")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx, err := loadContext(*node, *configPath)
	if err != nil {
		return err
	}

	addrs := make(map[string]ledger.Address)
	for name, raw := range map[string]*string{
		"payer": payer, "vault": vault, "authority": authority, "escrow": escrowAcct,
		"payer-token": payerToken, "payee-token": payeeToken, "fee-token": feeToken,
	} {
		addr, err := parseAddr(fs, name, *raw)
		if err != nil {
			return err
		}
		addrs[name] = addr
	}

	data := escrow.EncodeInstruction(escrow.InitEscrow{Amount: *amount, Fee: *fee})
	metas := []meta{
		{Key: addrs["payer"].String(), Signer: true},
		{Key: addrs["vault"].String(), Writable: true},
		{Key: addrs["authority"].String(), Signer: true},
		{Key: addrs["escrow"].String(), Writable: true},
		{Key: addrs["payer-token"].String()},
		{Key: addrs["payee-token"].String()},
		{Key: addrs["fee-token"].String()},
		{Key: ledger.RentParamsAddress.String()},
		{Key: ctx.tokenProgramID.String()},
	}
	return submit(ctx, data, metas)
}

func runSettle(args []string) error {
	fs := flag.NewFlagSet("settle", flag.ExitOnError)
	node, configPath := commonFlags(fs)
	authority := addrFlag(fs, "authority", "escrow authority address (signer)")
	payeeToken := addrFlag(fs, "payee-token", "payee token account")
	feeToken := addrFlag(fs, "fee-token", "fee token account")
	vault := addrFlag(fs, "vault", "vault token account")
	escrowAcct := addrFlag(fs, "escrow", "escrow record account")
	feePayer := addrFlag(fs, "fee-payer", "account receiving the vault's rent")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx, err := loadContext(*node, *configPath)
	if err != nil {
		return err
	}
	derived, _, err := escrow.FindProgramAuthority(ctx.programID)
	if err != nil {
		return err
	}

	addrs := make(map[string]ledger.Address)
	for name, raw := range map[string]*string{
		"authority": authority, "payee-token": payeeToken, "fee-token": feeToken,
		"vault": vault, "fee-payer": feePayer, "escrow": escrowAcct,
	} {
		addr, err := parseAddr(fs, name, *raw)
		if err != nil {
			return err
		}
		addrs[name] = addr
	}

	data := escrow.EncodeInstruction(escrow.Settle{})
	metas := []meta{
		{Key: addrs["authority"].String(), Signer: true},
		{Key: addrs["payee-token"].String(), Writable: true},
		{Key: addrs["fee-token"].String(), Writable: true},
		{Key: addrs["vault"].String(), Writable: true},
		{Key: addrs["escrow"].String(), Writable: true},
		{Key: addrs["fee-payer"].String(), Writable: true},
		{Key: ctx.tokenProgramID.String()},
		{Key: derived.String()},
	}
	return submit(ctx, data, metas)
}

func runCancel(args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	node, configPath := commonFlags(fs)
	authority := addrFlag(fs, "authority", "escrow authority address (signer)")
	escrowAcct := addrFlag(fs, "escrow", "escrow record account")
	payerToken := addrFlag(fs, "payer-token", "payer token account")
	feePayer := addrFlag(fs, "fee-payer", "account receiving the vault's rent")
	vault := addrFlag(fs, "vault", "vault token account")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx, err := loadContext(*node, *configPath)
	if err != nil {
		return err
	}
	derived, _, err := escrow.FindProgramAuthority(ctx.programID)
	if err != nil {
		return err
	}

	addrs := make(map[string]ledger.Address)
	for name, raw := range map[string]*string{
		"authority": authority, "escrow": escrowAcct, "payer-token": payerToken,
		"fee-payer": feePayer, "vault": vault,
	} {
		addr, err := parseAddr(fs, name, *raw)
		if err != nil {
			return err
		}
		addrs[name] = addr
	}

	data := escrow.EncodeInstruction(escrow.Cancel{})
	metas := []meta{
		{Key: addrs["authority"].String(), Signer: true},
		{Key: addrs["escrow"].String(), Writable: true},
		{Key: addrs["payer-token"].String(), Writable: true},
		{Key: addrs["fee-payer"].String(), Writable: true},
		{Key: addrs["vault"].String(), Writable: true},
		{Key: ctx.tokenProgramID.String()},
		{Key: derived.String()},
	}
	return submit(ctx, data, metas)
}

func runClose(args []string) error {
	fs := flag.NewFlagSet("close", flag.ExitOnError)
	node, configPath := commonFlags(fs)
	authority := addrFlag(fs, "authority", "escrow authority address (signer)")
	escrowAcct := addrFlag(fs, "escrow", "escrow record account")
	recipient := addrFlag(fs, "recipient", "account receiving the record's balance")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx, err := loadContext(*node, *configPath)
	if err != nil {
		return err
	}

	addrs := make(map[string]ledger.Address)
	for name, raw := range map[string]*string{
		"authority": authority, "escrow": escrowAcct, "recipient": recipient,
	} {
		addr, err := parseAddr(fs, name, *raw)
		if err != nil {
			return err
		}
		addrs[name] = addr
	}

	data := escrow.EncodeInstruction(escrow.Close{})
	metas := []meta{
		{Key: addrs["authority"].String(), Signer: true},
		{Key: addrs["escrow"].String(), Writable: true},
		{Key: addrs["recipient"].String(), Writable: true},
	}
	return submit(ctx, data, metas)
}

func runQuery(args []string, kind string) error {
	fs := flag.NewFlagSet(kind, flag.ExitOnError)
	node, _ := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one address argument")
	}
	resp, err := http.Get(fmt.Sprintf("%s/v1/%s/%s", *node, kind, fs.Arg(0)))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func submit(ctx *cliContext, data []byte, metas []meta) error {
	payload, err := json.Marshal(map[string]any{
		"program":  ctx.programID.String(),
		"data":     base64.StdEncoding.EncodeToString(data),
		"accounts": metas,
	})
	if err != nil {
		return err
	}
	resp, err := http.Post(ctx.node+"/v1/instructions", "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		pretty.Write(body)
	}
	fmt.Println(pretty.String())
	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed with status %s", resp.Status)
	}
	return nil
}
