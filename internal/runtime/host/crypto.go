package host

import (
	"crypto/ed25519"
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // the runtime exposes ripemd160
	"golang.org/x/crypto/sha3"

	"github.com/treasurydao/storagecost/types"
)

// Digest widths reported in stub mode.
const (
	sha256Len     = 32
	keccak256Len  = 32
	keccak512Len  = 64
	ripemd160Len  = 20
	randomSeedLen = 32
)

func (e *Environment) native() bool {
	return e.cfg.Crypto == types.CryptoNative
}

// digest reads the input of a hash host function and stores the result, or a
// zero digest of the same width in stub mode, into registerID.
func (e *Environment) digest(fn string, width int, sum func([]byte) []byte, valueLen, valuePtr, registerID uint64) {
	data := e.read(fn, valuePtr, valueLen)
	if !e.native() {
		e.setRegister(registerID, make([]byte, width))
		return
	}
	e.setRegister(registerID, sum(data))
}

func (e *Environment) sha256(valueLen, valuePtr, registerID uint64) {
	e.digest("sha256", sha256Len, func(b []byte) []byte {
		h := sha256.Sum256(b)
		return h[:]
	}, valueLen, valuePtr, registerID)
}

func (e *Environment) keccak256(valueLen, valuePtr, registerID uint64) {
	e.digest("keccak256", keccak256Len, func(b []byte) []byte {
		h := sha3.NewLegacyKeccak256()
		h.Write(b)
		return h.Sum(nil)
	}, valueLen, valuePtr, registerID)
}

func (e *Environment) keccak512(valueLen, valuePtr, registerID uint64) {
	e.digest("keccak512", keccak512Len, func(b []byte) []byte {
		h := sha3.NewLegacyKeccak512()
		h.Write(b)
		return h.Sum(nil)
	}, valueLen, valuePtr, registerID)
}

func (e *Environment) ripemd160(valueLen, valuePtr, registerID uint64) {
	e.digest("ripemd160", ripemd160Len, func(b []byte) []byte {
		h := ripemd160.New()
		h.Write(b)
		return h.Sum(nil)
	}, valueLen, valuePtr, registerID)
}

// randomSeed is always zero so runs stay reproducible.
func (e *Environment) randomSeed(registerID uint64) {
	e.setRegister(registerID, make([]byte, randomSeedLen))
}

// ecrecover never recovers a key.
func (e *Environment) ecrecover(hashLen, hashPtr, sigLen, sigPtr, _, _, _ uint64) uint64 {
	e.read("ecrecover", hashPtr, hashLen)
	e.read("ecrecover", sigPtr, sigLen)
	return 0
}

func (e *Environment) ed25519Verify(sigLen, sigPtr, msgLen, msgPtr, pkLen, pkPtr uint64) uint64 {
	sig := e.read("ed25519_verify", sigPtr, sigLen)
	msg := e.read("ed25519_verify", msgPtr, msgLen)
	pk := e.read("ed25519_verify", pkPtr, pkLen)
	if !e.native() || len(sig) != ed25519.SignatureSize || len(pk) != ed25519.PublicKeySize {
		return 0
	}
	if ed25519.Verify(ed25519.PublicKey(pk), msg, sig) {
		return 1
	}
	return 0
}
