package main

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/jedib0t/go-pretty/v6/table"
	lhwire "github.com/lightningnetwork/lighthouse/wire"
	"github.com/urfave/cli"
)

// baseURL builds the relay's base URL, choosing https unless --insecure was
// given, the same escape hatch getClientConn offers for a plaintext daemon.
func baseURL(ctx *cli.Context, projectIDHex string) string {
	scheme := "https"
	if ctx.GlobalBool("insecure") {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/project/%s", scheme, ctx.GlobalString("relay"), projectIDHex)
}

// loadAuthKey reads the hex-encoded secp256k1 private key at --authkey.
func loadAuthKey(ctx *cli.Context) (*btcec.PrivateKey, error) {
	path := ctx.GlobalString("authkey")
	if path == "" {
		return nil, fmt.Errorf("this command requires --authkey")
	}
	raw, err := os.ReadFile(cleanAndExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("reading auth key: %w", err)
	}
	keyBytes, err := hex.DecodeString(string(bytes.TrimSpace(raw)))
	if err != nil {
		return nil, fmt.Errorf("auth key file must be hex-encoded: %w", err)
	}
	priv, _ := btcec.PrivKeyFromBytes(keyBytes)
	return priv, nil
}

// signedNonce produces a fresh msg/sig pair the relay's auth-gated endpoints
// accept, following the same double-SHA256 + DER signature convention
// relay.verifySignature and walletadapter.Memory.SignAuth both use.
func signedNonce(priv *btcec.PrivateKey) (msg, sig string, err error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", "", fmt.Errorf("generating nonce: %w", err)
	}
	msgBytes := []byte(fmt.Sprintf("%d:%s", time.Now().UnixNano(), hex.EncodeToString(nonce)))

	digest := doubleSHA256(msgBytes)
	sigBytes := ecdsa.Sign(priv, digest).Serialize()

	return string(msgBytes), hex.EncodeToString(sigBytes), nil
}

func doubleSHA256(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

func fetchStatus(ctx *cli.Context, projectIDHex string, authed bool) (*lhwire.ProjectStatus, error) {
	reqURL := baseURL(ctx, projectIDHex)
	if authed {
		priv, err := loadAuthKey(ctx)
		if err != nil {
			return nil, err
		}
		msg, sig, err := signedNonce(priv)
		if err != nil {
			return nil, err
		}
		reqURL += fmt.Sprintf("?msg=%s&sig=%s", url.QueryEscape(msg), sig)
	}

	resp, err := httpClientFor(ctx).Get(reqURL)
	if err != nil {
		return nil, fmt.Errorf("requesting status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, relayError(resp)
	}

	status := &lhwire.ProjectStatus{}
	if err := lhwire.DecodeFramed(resp.Body, status); err != nil {
		return nil, fmt.Errorf("decoding status: %w", err)
	}
	return status, nil
}

func relayError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("relay returned %s: %s", resp.Status, string(body))
}

var statusCommand = cli.Command{
	Name:      "status",
	Usage:     "fetch a project's current pledge status",
	ArgsUsage: "project-id-hex",
	Flags: []cli.Flag{
		cli.BoolFlag{Name: "full", Usage: "request the full (auth-gated) view instead of the scrubbed one"},
	},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return fmt.Errorf("status requires exactly one argument: project-id-hex")
		}
		status, err := fetchStatus(ctx, ctx.Args().Get(0), ctx.Bool("full"))
		if err != nil {
			return err
		}
		fmt.Printf("project:        %x\n", status.ProjectIDHash)
		fmt.Printf("timestamp:      %s\n", time.Unix(int64(status.Timestamp), 0))
		fmt.Printf("pledged so far: %d satoshi\n", status.ValuePledgedSoFar)
		fmt.Printf("pledge count:   %d\n", len(status.Pledges))
		if status.ClaimedBy != nil {
			fmt.Printf("claimed by tx:  %x\n", *status.ClaimedBy)
		} else {
			fmt.Printf("state:          open\n")
		}
		return nil
	},
}

var listPledgesCommand = cli.Command{
	Name:      "list-pledges",
	Usage:     "list the pledges currently open against a project",
	ArgsUsage: "project-id-hex",
	Flags: []cli.Flag{
		cli.BoolFlag{Name: "full", Usage: "request the full (auth-gated) view instead of the scrubbed one"},
	},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return fmt.Errorf("list-pledges requires exactly one argument: project-id-hex")
		}
		status, err := fetchStatus(ctx, ctx.Args().Get(0), ctx.Bool("full"))
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"name", "contact", "satoshi", "memo", "scrubbed"})
		for _, pl := range status.Pledges {
			t.AppendRow(table.Row{
				pl.Name, pl.Contact, pl.TotalPledgedSatoshi, pl.Memo, pl.IsScrubbed(),
			})
		}
		t.Render()
		return nil
	},
}

// createPledgeCommand uploads an already-built, framed Pledge file to the
// relay. Building and signing the pledge transaction itself requires a
// funded wallet, out of scope for this thin client — the same posture
// lncli takes toward wallet state it doesn't itself hold.
var createPledgeCommand = cli.Command{
	Name:      "create-pledge",
	Usage:     "upload a pre-built pledge file to a project",
	ArgsUsage: "project-id-hex --pledge-file path",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "pledge-file", Usage: "path to a framed Pledge produced by wallet tooling"},
	},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return fmt.Errorf("create-pledge requires exactly one argument: project-id-hex")
		}
		path := ctx.String("pledge-file")
		if path == "" {
			return fmt.Errorf("create-pledge requires --pledge-file")
		}
		raw, err := os.ReadFile(cleanAndExpandPath(path))
		if err != nil {
			return fmt.Errorf("reading pledge file: %w", err)
		}

		resp, err := httpClientFor(ctx).Post(
			baseURL(ctx, ctx.Args().Get(0)), "application/vnd.lighthouse.pledge", bytes.NewReader(raw),
		)
		if err != nil {
			return fmt.Errorf("uploading pledge: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return relayError(resp)
		}

		status := &lhwire.ProjectStatus{}
		if err := lhwire.DecodeFramed(resp.Body, status); err != nil {
			return fmt.Errorf("decoding status: %w", err)
		}
		fmt.Printf("pledge accepted, project now has %d satoshi pledged across %d pledges\n",
			status.ValuePledgedSoFar, len(status.Pledges))
		return nil
	},
}

var claimCommand = cli.Command{
	Name:      "claim",
	Usage:     "trigger claim assembly and broadcast for a fully-funded project",
	ArgsUsage: "project-id-hex",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return fmt.Errorf("claim requires exactly one argument: project-id-hex")
		}
		priv, err := loadAuthKey(ctx)
		if err != nil {
			return err
		}
		msg, sig, err := signedNonce(priv)
		if err != nil {
			return err
		}

		reqURL := fmt.Sprintf("%s/claim?msg=%s&sig=%s",
			baseURL(ctx, ctx.Args().Get(0)), url.QueryEscape(msg), sig)

		resp, err := httpClientFor(ctx).Post(reqURL, "", nil)
		if err != nil {
			return fmt.Errorf("requesting claim: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return relayError(resp)
		}

		status := &lhwire.ProjectStatus{}
		if err := lhwire.DecodeFramed(resp.Body, status); err != nil {
			return fmt.Errorf("decoding status: %w", err)
		}
		if status.ClaimedBy != nil {
			fmt.Printf("claim broadcast, tx %x\n", *status.ClaimedBy)
		} else {
			fmt.Printf("claim requested, awaiting confirmation\n")
		}
		return nil
	},
}
