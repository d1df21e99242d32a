// Package main demonstrates a 2-of-3 Gennaro key generation, driving each
// participant's rounds by hand without a transport
package main

import (
	"fmt"
	"log"

	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
	"github.com/Caqil/gennaro-dkg/pkg/keygen"
	"github.com/Caqil/gennaro-dkg/pkg/network"
)

func main() {
	fmt.Println("=== Simple DKG Example: 2-of-3 Threshold (Pedersen) ===")

	ids := []uint32{1, 2, 3}
	params := keygen.Parameters{
		Group:        curve.MustGroup(curve.Secp256k1),
		Threshold:    2,
		Participants: ids,
		Scheme:       keygen.SchemePedersen,
		SessionID:    []byte("simple-dkg-example"),
	}

	// Phase 1: identity keys and participants
	fmt.Println("Phase 1: Creating participants...")
	private := make(map[uint32][]byte)
	public := make(map[uint32][]byte)
	for _, id := range ids {
		priv, pub, err := network.GenerateIdentityKey(nil)
		if err != nil {
			log.Fatalf("Identity key for %d: %v", id, err)
		}
		private[id], public[id] = priv, pub
	}

	parties := make(map[uint32]*keygen.Participant)
	for _, id := range ids {
		peers := make(map[uint32][]byte)
		for _, peer := range ids {
			if peer != id {
				peers[peer] = public[peer]
			}
		}
		cipher, err := network.NewPairwiseCipher(id, private[id], peers, params.SessionID)
		if err != nil {
			log.Fatalf("Cipher for %d: %v", id, err)
		}
		defer cipher.Close()

		p, err := keygen.NewParticipant(params, id, keygen.WithCipher(cipher))
		if err != nil {
			log.Fatalf("Participant %d: %v", id, err)
		}
		parties[id] = p
		fmt.Printf("  ✓ Participant %d initialized\n", id)
	}

	// Phase 2: commitments
	fmt.Println("\nPhase 2: Round 1 - Broadcasting commitments...")
	round1 := make(map[uint32]*keygen.Round1Broadcast)
	for _, id := range ids {
		msg, err := parties[id].Round1()
		if err != nil {
			log.Fatalf("Participant %d Round1 failed: %v", id, err)
		}
		round1[id] = msg
		fmt.Printf("  ✓ Participant %d: %d commitments\n", id, len(msg.Commitments))
	}

	// Phase 3: decommitments and encrypted shares
	fmt.Println("\nPhase 3: Round 2 - Distributing shares...")
	decommits := make(map[uint32]*keygen.Round2Broadcast)
	shares := make(map[uint32]map[uint32]*keygen.Round2P2P)
	for _, id := range ids {
		shares[id] = make(map[uint32]*keygen.Round2P2P)
	}
	for _, id := range ids {
		bcast, p2p, err := parties[id].Round2(round1)
		if err != nil {
			log.Fatalf("Participant %d Round2 failed: %v", id, err)
		}
		decommits[id] = bcast
		for to, msg := range p2p {
			shares[to][id] = msg
		}
		fmt.Printf("  ✓ Participant %d: %d encrypted shares\n", id, len(p2p))
	}

	// Phase 4: verification and complaints
	fmt.Println("\nPhase 4: Round 3 - Verifying shares...")
	complaints := make(map[uint32]*keygen.Round3Broadcast)
	for _, id := range ids {
		msg, err := parties[id].Round3(decommits, shares[id])
		if err != nil {
			log.Fatalf("Participant %d Round3 failed: %v", id, err)
		}
		complaints[id] = msg
		fmt.Printf("  ✓ Participant %d: %d complaints\n", id, len(msg.Complaints))
	}

	fmt.Println("\nPhase 5: Round 4 - Resolving complaints...")
	disclosures := make(map[uint32]*keygen.Round4Broadcast)
	for _, id := range ids {
		msg, err := parties[id].Round4(complaints)
		if err != nil {
			log.Fatalf("Participant %d Round4 failed: %v", id, err)
		}
		disclosures[id] = msg
	}
	fmt.Println("  ✓ No disclosures needed")

	// Phase 6: finalize and cross-check the key
	fmt.Println("\nPhase 6: Finalizing...")
	confirmations := make(map[uint32]*keygen.Round5Broadcast)
	for _, id := range ids {
		msg, err := parties[id].Finalize(disclosures)
		if err != nil {
			log.Fatalf("Participant %d Finalize failed: %v", id, err)
		}
		confirmations[id] = msg
	}

	outputs := make([]*keygen.Output, 0, len(ids))
	for _, id := range ids {
		out, err := parties[id].Confirm(confirmations)
		if err != nil {
			log.Fatalf("Participant %d Confirm failed: %v", id, err)
		}
		if !out.VerifyShare() {
			log.Fatalf("Participant %d holds a share that does not match its verification share", id)
		}
		outputs = append(outputs, out)
		fmt.Printf("  ✓ Participant %d: share verified\n", id)
	}

	for _, out := range outputs[1:] {
		if !out.PublicKey.Equal(outputs[0].PublicKey) {
			log.Fatalf("Participant %d has a different public key!", out.ID)
		}
	}
	fmt.Println("  ✓ All participants agree on the public key")

	fmt.Println("\n=== DKG Complete! ===")
	fmt.Printf("Threshold: %d-of-%d\n", params.Threshold, len(ids))
	fmt.Printf("Public Key: %x\n", outputs[0].PublicKey.Bytes())
	fmt.Printf("Qualified: %v\n", outputs[0].Qualified)

	for _, out := range outputs {
		out.Zeroize()
	}
}
