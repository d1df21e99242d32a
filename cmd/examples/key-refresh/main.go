// Package main demonstrates proactive security through key share refresh
package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/Caqil/gennaro-dkg/pkg/ceremony"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
	"github.com/Caqil/gennaro-dkg/pkg/keygen"
)

func main() {
	fmt.Println("=== Key Share Refresh Demo: Proactive Security ===")
	fmt.Println()

	ctx := context.Background()
	params := keygen.Parameters{
		Group:        curve.MustGroup(curve.Ed25519),
		Threshold:    2,
		Participants: []uint32{1, 2, 3},
	}
	names := map[uint32]string{1: "Alice", 2: "Bob", 3: "Charlie"}

	fmt.Println("Refreshing shares periodically keeps the public key and makes")
	fmt.Println("shares stolen before the refresh useless.")
	fmt.Println()

	banner("PART 1: INITIAL KEY GENERATION")
	initial, err := ceremony.Simulate(ctx, ceremony.SimulationConfig{Parameters: params})
	if err != nil {
		log.Fatalf("Key generation failed: %v", err)
	}
	publicKey, err := initial.PublicKey()
	if err != nil {
		log.Fatalf("Key generation failed: %v", err)
	}
	fmt.Printf("✓ Public Key: %x\n", publicKey.Bytes())
	for _, id := range initial.Finished() {
		fmt.Printf("  %s: share %x...\n", names[id], initial.Outputs[id].SecretShare.Bytes()[:8])
	}

	secret, err := initial.Reconstruct()
	if err != nil {
		log.Fatalf("Reconstruction failed: %v", err)
	}

	banner("PART 2: PROACTIVE SHARE REFRESH")
	params.SessionID = nil
	deltas, err := ceremony.Simulate(ctx, ceremony.SimulationConfig{Parameters: params, Refresh: true})
	if err != nil {
		log.Fatalf("Refresh failed: %v", err)
	}

	refreshed := make(map[uint32]*keygen.Output)
	for _, id := range deltas.Finished() {
		out, err := keygen.ApplyRefresh(initial.Outputs[id], deltas.Outputs[id])
		if err != nil {
			log.Fatalf("%s: %v", names[id], err)
		}
		if !out.VerifyShare() {
			log.Fatalf("%s: refreshed share does not match its verification share", names[id])
		}
		refreshed[id] = out
		fmt.Printf("  %s: share %x...\n", names[id], out.SecretShare.Bytes()[:8])
	}

	banner("PART 3: VERIFICATION")
	if !refreshed[1].PublicKey.Equal(publicKey) {
		log.Fatal("❌ Public key changed during refresh!")
	}
	fmt.Println("✓ Public key unchanged")

	fresh, err := keygen.ReconstructSecret([]*keygen.Output{refreshed[1], refreshed[3]})
	if err != nil {
		log.Fatalf("Reconstruction failed: %v", err)
	}
	if !fresh.Equal(secret) {
		log.Fatal("❌ Refreshed shares encode a different secret!")
	}
	fmt.Println("✓ Refreshed shares reconstruct the same secret")

	// A stale share mixed with a fresh one interpolates garbage
	mixed, err := keygen.ReconstructSecret([]*keygen.Output{initial.Outputs[1], refreshed[3]})
	if err != nil {
		log.Fatalf("Reconstruction failed: %v", err)
	}
	if mixed.Equal(secret) {
		log.Fatal("❌ Stale share still combines with fresh shares!")
	}
	fmt.Println("✓ Stale shares no longer combine with refreshed ones")

	for _, out := range initial.Outputs {
		out.Zeroize()
	}
	for _, out := range refreshed {
		out.Zeroize()
	}
}

func banner(title string) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", 60))
}
