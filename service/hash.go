package service

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// hashPair combines two field elements with MiMC. This is the only arity the
// tree ever needs: leaf hashing, node combination, and root-timestamp binding
// are all two-element hashes. The argument order is load-bearing, MiMC is not
// commutative over its input positions.
func hashPair(left, right fr.Element) fr.Element {
	h := mimc.NewMiMC()
	lb := left.Bytes()
	rb := right.Bytes()
	h.Write(lb[:])
	h.Write(rb[:])

	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

// encodeIdentifier packs the identifier's bytes big-endian into an integer
// and reduces it to a field element. Distinct identifiers that fit the field
// map to distinct elements; identifiers whose packing reaches the modulus
// cannot be represented and are rejected.
func encodeIdentifier(identifier string) (fr.Element, error) {
	var e fr.Element
	if identifier == "" {
		return e, fmt.Errorf("empty identifier")
	}
	packed := new(big.Int).SetBytes([]byte(identifier))
	if packed.Cmp(fr.Modulus()) >= 0 {
		return e, fmt.Errorf("identifier %q does not fit the field", identifier)
	}
	e.SetBigInt(packed)
	return e, nil
}

func encodeBalance(balance *big.Int) (fr.Element, error) {
	var e fr.Element
	if balance == nil {
		return e, fmt.Errorf("nil balance")
	}
	if balance.Sign() < 0 {
		return e, fmt.Errorf("negative balance %s", balance)
	}
	if balance.Cmp(fr.Modulus()) >= 0 {
		return e, fmt.Errorf("balance %s does not fit the field", balance)
	}
	e.SetBigInt(balance)
	return e, nil
}

func encodeTimestamp(timestamp int64) fr.Element {
	var e fr.Element
	e.SetInt64(timestamp)
	return e
}

// hashLeaf computes Hash(encode(identifier), encode(balance)).
func hashLeaf(identifier string, balance *big.Int) (fr.Element, error) {
	id, err := encodeIdentifier(identifier)
	if err != nil {
		return fr.Element{}, err
	}
	bal, err := encodeBalance(balance)
	if err != nil {
		return fr.Element{}, err
	}
	return hashPair(id, bal), nil
}
