package types

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignDigest signs the Ethereum-signed-message form of digest with key, as
// required by section 4.2: "Admin signs the Ethereum-signed-message form
// of the keccak256 of the appropriate struct." The anchor contract's
// verifier recovers the signer from this exact encoding.
func SignDigest(digest common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	prefixed := accounts.TextHash(digest.Bytes())
	return crypto.Sign(prefixed, key)
}

// RecoverSigner recovers the address that produced sig over digest via
// SignDigest. Used only by tests and operator tooling; the core does not
// itself verify non-admin proofs (the anchor contract does, per section
// 1's non-goals).
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	prefixed := accounts.TextHash(digest.Bytes())
	pub, err := crypto.SigToPub(prefixed, sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
