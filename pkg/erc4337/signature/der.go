package signature

import (
	"fmt"
	"math/big"
)

const (
	derTagSequence = 0x30
	derTagInteger  = 0x02
)

// ParseDERSignature extracts r and s from an ASN.1 DER encoded ECDSA
// signature: a SEQUENCE of two INTEGERs. Authenticators emit P-256
// signatures, which always fit short-form lengths, so long-form length
// octets are rejected along with trailing bytes, negative integers and
// non-minimal encodings.
func ParseDERSignature(der []byte) (r, s *big.Int, err error) {
	if len(der) < 8 {
		return nil, nil, fmt.Errorf("der signature too short: %d bytes", len(der))
	}
	if der[0] != derTagSequence {
		return nil, nil, fmt.Errorf("expected sequence tag 0x30, got 0x%02x", der[0])
	}
	if der[1] >= 0x80 {
		return nil, nil, fmt.Errorf("long form sequence length is not valid for a P-256 signature")
	}
	if int(der[1]) != len(der)-2 {
		return nil, nil, fmt.Errorf("sequence length %d does not match payload %d", der[1], len(der)-2)
	}

	r, rest, err := parseDERInteger(der[2:])
	if err != nil {
		return nil, nil, fmt.Errorf("r: %w", err)
	}
	s, rest, err = parseDERInteger(rest)
	if err != nil {
		return nil, nil, fmt.Errorf("s: %w", err)
	}
	if len(rest) != 0 {
		return nil, nil, fmt.Errorf("%d trailing bytes after s", len(rest))
	}
	return r, s, nil
}

func parseDERInteger(b []byte) (*big.Int, []byte, error) {
	if len(b) < 3 {
		return nil, nil, fmt.Errorf("truncated integer")
	}
	if b[0] != derTagInteger {
		return nil, nil, fmt.Errorf("expected integer tag 0x02, got 0x%02x", b[0])
	}
	length := int(b[1])
	if length == 0 || b[1] >= 0x80 {
		return nil, nil, fmt.Errorf("invalid integer length %d", length)
	}
	if len(b) < 2+length {
		return nil, nil, fmt.Errorf("integer length %d exceeds remaining %d bytes", length, len(b)-2)
	}

	value := b[2 : 2+length]
	if value[0]&0x80 != 0 {
		return nil, nil, fmt.Errorf("negative integer")
	}
	if length > 1 && value[0] == 0x00 && value[1]&0x80 == 0 {
		return nil, nil, fmt.Errorf("non-minimal integer encoding")
	}

	n := new(big.Int).SetBytes(value)
	if n.Sign() == 0 {
		return nil, nil, fmt.Errorf("zero integer")
	}
	return n, b[2+length:], nil
}

// EncodeDERSignature is the inverse of ParseDERSignature, producing the
// minimal encoding. Parsing its output returns the same r and s, and
// re-encoding a parsed signature reproduces the input byte for byte.
func EncodeDERSignature(r, s *big.Int) []byte {
	body := append(encodeDERInteger(r), encodeDERInteger(s)...)
	out := make([]byte, 0, 2+len(body))
	out = append(out, derTagSequence, byte(len(body)))
	return append(out, body...)
}

func encodeDERInteger(v *big.Int) []byte {
	b := v.Bytes()
	if len(b) == 0 {
		b = []byte{0x00}
	}
	if b[0]&0x80 != 0 {
		b = append([]byte{0x00}, b...)
	}
	out := make([]byte, 0, 2+len(b))
	out = append(out, derTagInteger, byte(len(b)))
	return append(out, b...)
}
