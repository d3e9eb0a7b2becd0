package solana

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type borshWriter struct{ bytes.Buffer }

func (w *borshWriter) u8(v uint8) { w.WriteByte(v) }

func (w *borshWriter) u16(v uint16) { _ = binary.Write(w, binary.LittleEndian, v) }

func (w *borshWriter) u32(v uint32) { _ = binary.Write(w, binary.LittleEndian, v) }

func (w *borshWriter) key(fill byte) { w.Write(bytes.Repeat([]byte{fill}, 32)) }

func (w *borshWriter) str(s string, padTo int) {
	padded := s + string(make([]byte, padTo-len(s)))
	w.u32(uint32(len(padded)))
	w.WriteString(padded)
}

// metadataPrefix writes every field up to and including isMutable.
func metadataPrefix(creators int) *borshWriter {
	w := &borshWriter{}
	w.u8(metadataV1Key)
	w.key(1) // update authority
	w.key(2) // mint
	w.str("Degen Ape #1", 32)
	w.str("DAPE", 10)
	w.str("https://arweave.net/ape1", 200)
	w.u16(420)
	if creators == 0 {
		w.u8(0)
	} else {
		w.u8(1)
		w.u32(uint32(creators))
		for i := 0; i < creators; i++ {
			w.key(byte(10 + i))
			w.u8(1)
			w.u8(100 / uint8(creators))
		}
	}
	w.u8(1) // primary sale happened
	w.u8(1) // is mutable
	return w
}

func TestDecodeMetadata_Full(t *testing.T) {
	w := metadataPrefix(2)
	w.u8(1) // edition nonce
	w.u8(254)
	w.u8(1) // token standard
	w.u8(0)
	w.u8(1) // collection
	w.u8(1)
	w.key(7)
	w.Write(make([]byte, 64)) // uses and later fields

	m, err := DecodeMetadata(w.Bytes())
	require.NoError(t, err)
	assert.Equal(t, base58.Encode(bytes.Repeat([]byte{1}, 32)), m.UpdateAuthority)
	assert.Equal(t, base58.Encode(bytes.Repeat([]byte{2}, 32)), m.Mint)
	assert.Equal(t, "Degen Ape #1", m.Name)
	assert.Equal(t, "DAPE", m.Symbol)
	assert.Equal(t, "https://arweave.net/ape1", m.URI)
	assert.Equal(t, uint16(420), m.SellerFeeBasisPoints)
	require.Len(t, m.Creators, 2)
	assert.Equal(t, Creator{Address: base58.Encode(bytes.Repeat([]byte{11}, 32)), Verified: true, Share: 50}, m.Creators[1])
	assert.True(t, m.PrimarySaleHappened)
	assert.True(t, m.IsMutable)
	require.NotNil(t, m.EditionNonce)
	assert.Equal(t, uint8(254), *m.EditionNonce)
	require.NotNil(t, m.TokenStandard)
	assert.Equal(t, uint8(0), *m.TokenStandard)
	require.NotNil(t, m.Collection)
	assert.Equal(t, Collection{Verified: true, Address: base58.Encode(bytes.Repeat([]byte{7}, 32))}, *m.Collection)
}

func TestDecodeMetadata_LegacyAccount(t *testing.T) {
	m, err := DecodeMetadata(metadataPrefix(0).Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Degen Ape #1", m.Name)
	assert.Empty(t, m.Creators)
	assert.Nil(t, m.EditionNonce)
	assert.Nil(t, m.TokenStandard)
	assert.Nil(t, m.Collection)
}

func TestDecodeMetadata_Rejects(t *testing.T) {
	data := metadataPrefix(0).Bytes()

	_, err := DecodeMetadata(data[:40])
	assert.ErrorIs(t, err, errShortBuffer)

	wrongKey := append([]byte{}, data...)
	wrongKey[0] = 6
	_, err = DecodeMetadata(wrongKey)
	assert.ErrorContains(t, err, "not a metadata account")

	_, err = DecodeMetadata(nil)
	assert.Error(t, err)
}
