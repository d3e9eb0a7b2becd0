package solana

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// TokenMetadataProgramID is the Metaplex Token Metadata program address.
const TokenMetadataProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bBuscx2s"

const metadataV1Key = 4

// Creator is one entry of a metadata creators list.
type Creator struct {
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
	Share    uint8  `json:"share"`
}

// Collection links an NFT to its collection mint.
type Collection struct {
	Verified bool   `json:"verified"`
	Address  string `json:"address"`
}

// Metadata is the decoded prefix of a Token Metadata account. Fields stored
// after the collection are not read.
type Metadata struct {
	UpdateAuthority      string
	Mint                 string
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             []Creator
	PrimarySaleHappened  bool
	IsMutable            bool
	EditionNonce         *uint8
	TokenStandard        *uint8
	Collection           *Collection
}

// MetadataAddress derives the metadata account of mint.
func MetadataAddress(mint string) (string, error) {
	mintKey, err := ParsePublicKey(mint)
	if err != nil {
		return "", err
	}
	program, _ := base58.Decode(TokenMetadataProgramID)
	addr, _, err := FindProgramAddress([][]byte{[]byte("metadata"), program, mintKey}, TokenMetadataProgramID)
	return addr, err
}

// DecodeMetadata reads a borsh encoded metadata account. Accounts written
// before the optional trailing fields existed decode with those left nil.
func DecodeMetadata(data []byte) (*Metadata, error) {
	r := &borshReader{buf: data}
	if key := r.u8(); r.err == nil && key != metadataV1Key {
		return nil, fmt.Errorf("not a metadata account (key %d)", key)
	}

	m := &Metadata{
		UpdateAuthority:      r.pubkey(),
		Mint:                 r.pubkey(),
		Name:                 r.str(),
		Symbol:               r.str(),
		URI:                  r.str(),
		SellerFeeBasisPoints: r.u16(),
	}
	if r.u8() == 1 {
		n := r.u32()
		for i := uint32(0); i < n && r.err == nil; i++ {
			m.Creators = append(m.Creators, Creator{Address: r.pubkey(), Verified: r.u8() == 1, Share: r.u8()})
		}
	}
	m.PrimarySaleHappened = r.u8() == 1
	m.IsMutable = r.u8() == 1
	if r.err != nil {
		return nil, fmt.Errorf("decode metadata: %w", r.err)
	}

	m.EditionNonce = r.option()
	m.TokenStandard = r.option()
	if r.u8() == 1 {
		c := &Collection{Verified: r.u8() == 1, Address: r.pubkey()}
		if r.err == nil {
			m.Collection = c
		}
	}
	return m, nil
}

var errShortBuffer = errors.New("account data too short")

type borshReader struct {
	buf []byte
	off int
	err error
}

func (r *borshReader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = errShortBuffer
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *borshReader) u8() uint8 {
	if b := r.next(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *borshReader) u16() uint16 {
	if b := r.next(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *borshReader) u32() uint32 {
	if b := r.next(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *borshReader) pubkey() string {
	if b := r.next(publicKeyLength); b != nil {
		return base58.Encode(b)
	}
	return ""
}

// str reads a length-prefixed string; metadata strings are padded with NULs.
func (r *borshReader) str() string {
	n := r.u32()
	if r.err != nil {
		return ""
	}
	if b := r.next(int(n)); b != nil {
		return strings.TrimRight(string(b), "\x00")
	}
	return ""
}

func (r *borshReader) option() *uint8 {
	if r.u8() != 1 {
		return nil
	}
	v := r.u8()
	if r.err != nil {
		return nil
	}
	return &v
}
