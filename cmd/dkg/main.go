// Command dkg runs Gennaro distributed key generation sessions, either all
// participants in-process or one participant per node over NATS.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/Caqil/gennaro-dkg/pkg/ceremony"
	"github.com/Caqil/gennaro-dkg/pkg/config"
	"github.com/Caqil/gennaro-dkg/pkg/keygen"
	"github.com/Caqil/gennaro-dkg/pkg/network"
)

const Version = "0.1.0"

// sessionFlags mirror configuration keys and override them when set
var sessionFlags = []cli.Flag{
	&cli.StringFlag{Name: "curve", Usage: "Curve: secp256k1, ed25519 or babyjubjub"},
	&cli.IntFlag{Name: "threshold", Aliases: []string{"t"}, Usage: "Reconstruction threshold"},
	&cli.StringFlag{Name: "participants", Aliases: []string{"n"}, Usage: "Participant count or comma separated ids"},
	&cli.StringFlag{Name: "scheme", Usage: "Round-1 commitment scheme: feldman or pedersen"},
	&cli.StringFlag{Name: "dismissal-policy", Usage: "Complaint policy: verify or quorum"},
	&cli.IntFlag{Name: "complaint-quorum", Usage: "Distinct accusers that exclude a dealer under the quorum policy"},
	&cli.DurationFlag{Name: "round-timeout", Usage: "Deadline for each round's messages"},
	&cli.StringFlag{Name: "session-id", Usage: "Session identifier shared by all participants"},
	&cli.StringFlag{Name: "audit-file", Usage: "Append audit records to this JSON-lines file"},
	&cli.StringFlag{Name: "log-level", Usage: "Log level (debug, info, warn, error)"},
}

var flagKeys = map[string]string{
	"curve":            "curve",
	"threshold":        "threshold",
	"participants":     "participants",
	"scheme":           "scheme",
	"dismissal-policy": "dismissal_policy",
	"complaint-quorum": "complaint_quorum",
	"round-timeout":    "round_timeout",
	"session-id":       "session_id",
	"audit-file":       "audit_file",
	"log-level":        "log.level",
	"seed":             "seed",
	"nats-url":         "transport.nats_url",
	"node-id":          "node.id",
}

func main() {
	app := &cli.Command{
		Name:    "dkg",
		Usage:   "Gennaro distributed key generation",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Configuration file (YAML, JSON or TOML)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "simulate",
				Usage: "Run every participant in-process over an in-memory transport",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "seed", Usage: "Seed for reproducible runs"},
					&cli.StringFlag{Name: "corrupt", Usage: "Comma separated dealers that send bad shares and ignore complaints"},
					&cli.StringFlag{Name: "offline", Usage: "Comma separated participants that never start"},
					&cli.BoolFlag{Name: "shuffle", Usage: "Deliver messages in random order"},
					&cli.BoolFlag{Name: "refresh", Usage: "Refresh the generated shares afterwards"},
					&cli.BoolFlag{Name: "audit", Usage: "Print the audit log of the first finished participant"},
				}, sessionFlags...),
				Action: runSimulate,
			},
			{
				Name:  "node",
				Usage: "Run one participant over NATS",
				Flags: append([]cli.Flag{
					&cli.IntFlag{Name: "node-id", Usage: "Local participant id"},
					&cli.StringFlag{Name: "nats-url", Usage: "NATS server URL"},
				}, sessionFlags...),
				Action: runNode,
			},
			{
				Name:  "keygen-identity",
				Usage: "Generate an X25519 identity key pair for a node",
				Action: func(ctx context.Context, c *cli.Command) error {
					private, public, err := network.GenerateIdentityKey(nil)
					if err != nil {
						return err
					}
					fmt.Printf("identity_key: %s\n", hex.EncodeToString(private))
					fmt.Printf("public_key:   %s\n", hex.EncodeToString(public))
					return nil
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file and applies flag overrides
func loadConfig(c *cli.Command) (*config.Config, error) {
	v, err := config.NewViper(c.String("config"))
	if err != nil {
		return nil, err
	}
	for flag, key := range flagKeys {
		if c.IsSet(flag) {
			v.Set(key, c.Value(flag))
		}
	}
	if c.Name == "node" {
		v.Set("transport.kind", config.TransportNATS)
	}
	return config.FromViper(v)
}

func runSimulate(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	params, err := cfg.Parameters()
	if err != nil {
		return err
	}
	log := cfg.Logger()

	sink, err := network.NewAuditSink(cfg.AuditFile)
	if err != nil {
		return err
	}
	defer sink.Close()

	corrupt, err := parseIDs(c.String("corrupt"))
	if err != nil {
		return err
	}
	offline, err := parseIDs(c.String("offline"))
	if err != nil {
		return err
	}

	sim := ceremony.SimulationConfig{
		Parameters:   params,
		Seed:         cfg.SeedBytes(),
		Shuffle:      c.Bool("shuffle"),
		Offline:      offline,
		RoundTimeout: cfg.RoundTimeout,
		Logger:       log,
		Audit:        sink,
	}
	if len(corrupt) > 0 {
		sim.Tamper = ceremony.Misbehave(corrupt...)
	}

	fmt.Printf("=== DKG simulation: %d-of-%d on %s (%s) ===\n",
		params.Threshold, params.N(), params.Group.Name(), params.Scheme)
	res, err := ceremony.Simulate(ctx, sim)
	if err != nil {
		return err
	}
	printResult(res)

	pk, err := res.PublicKey()
	if err != nil {
		return err
	}
	fmt.Printf("\nGroup public key: %s\n", hex.EncodeToString(pk.Bytes()))

	if c.Bool("audit") {
		first := res.Outputs[res.Finished()[0]]
		fmt.Printf("\nAudit log of participant %d:\n", first.ID)
		for _, e := range first.Audit {
			fmt.Printf("  %s\n", e)
		}
	}

	if !c.Bool("refresh") {
		return nil
	}

	fmt.Println("\n=== Share refresh ===")
	refreshParams := params
	refreshParams.Participants = res.Finished()
	refreshParams.SessionID = nil
	sim.Parameters = refreshParams
	sim.Refresh = true
	if sim.Seed != nil {
		sim.Seed = append(sim.Seed, "/refresh"...)
	}
	sim.Offline = nil
	sim.Tamper = nil
	deltas, err := ceremony.Simulate(ctx, sim)
	if err != nil {
		return err
	}
	printResult(deltas)

	refreshed := &ceremony.SimulationResult{Outputs: make(map[uint32]*keygen.Output)}
	for _, id := range deltas.Finished() {
		out, err := keygen.ApplyRefresh(res.Outputs[id], deltas.Outputs[id])
		if err != nil {
			return fmt.Errorf("participant %d: %w", id, err)
		}
		refreshed.Outputs[id] = out
	}
	rpk, err := refreshed.PublicKey()
	if err != nil {
		return err
	}
	fmt.Printf("\nPublic key unchanged: %t\n", rpk.Equal(pk))
	return nil
}

func printResult(res *ceremony.SimulationResult) {
	ids := make([]uint32, 0, len(res.Outputs)+len(res.Errors))
	ids = append(ids, res.Finished()...)
	for id := range res.Errors {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if out, ok := res.Outputs[id]; ok {
			fmt.Printf("  ✓ Participant %d: qualified %v, excluded %v\n", id, out.Qualified, out.Excluded)
			continue
		}
		fmt.Printf("  ✗ Participant %d: %v (%s)\n", id, res.Errors[id], keygen.FaultOf(res.Errors[id]))
	}
}

func runNode(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.SessionID == "" {
		return fmt.Errorf("%w: session_id is required for a node", config.ErrInvalidConfig)
	}
	params, err := cfg.Parameters()
	if err != nil {
		return err
	}
	log := cfg.Logger()

	private, peers, err := cfg.NodeKeys()
	if err != nil {
		return err
	}
	cipher, err := network.NewPairwiseCipher(cfg.NodeID, private, peers, params.SessionID)
	if err != nil {
		return err
	}
	defer cipher.Close()

	sink, err := network.NewAuditSink(cfg.AuditFile)
	if err != nil {
		return err
	}
	defer sink.Close()

	participant, err := keygen.NewParticipant(params, cfg.NodeID,
		keygen.WithCipher(cipher),
		keygen.WithLogger(log),
		keygen.WithAuditHook(sink.Hook(cfg.NodeID, params.SessionID)),
	)
	if err != nil {
		return err
	}
	defer func() {
		if !participant.Round().Terminal() {
			_ = participant.Abort(errors.New("node stopped"))
		}
	}()

	log.InfoEvent().
		Uint32("participant", cfg.NodeID).
		Str("session", cfg.SessionID).
		Str("nats", cfg.NATSURL).
		Msg("joining session")

	transport, err := network.DialNATS(ctx, network.NATSConfig{
		URL:       cfg.NATSURL,
		SessionID: params.SessionID,
		PartyID:   cfg.NodeID,
		Auth:      cipher,
		Logger:    log,
	})
	if err != nil {
		return err
	}
	defer transport.Close()

	codec, err := network.NewCodec(params.Group)
	if err != nil {
		return err
	}

	runner := &ceremony.Runner{
		Participant:  participant,
		Transport:    transport,
		Codec:        codec,
		SessionID:    params.SessionID,
		RoundTimeout: cfg.RoundTimeout,
		Logger:       log,
		Audit:        sink,
	}
	out, err := runner.Run(ctx)
	if err != nil {
		var abortErr *keygen.AbortError
		if errors.As(err, &abortErr) {
			return fmt.Errorf("session failed in %s (%s): %w", abortErr.Round, keygen.FaultOf(err), err)
		}
		return err
	}

	fmt.Printf("Group public key:   %s\n", hex.EncodeToString(out.PublicKey.Bytes()))
	fmt.Printf("Verification share: %s\n", hex.EncodeToString(out.VerificationShares[out.ID].Bytes()))
	fmt.Printf("Qualified: %v\n", out.Qualified)
	fmt.Printf("Excluded:  %v\n", out.Excluded)
	out.Zeroize()
	return nil
}

func parseIDs(list string) ([]uint32, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	var ids []uint32
	for _, part := range strings.Split(list, ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: participant id %q", config.ErrInvalidConfig, part)
		}
		ids = append(ids, uint32(id))
	}
	return ids, nil
}
