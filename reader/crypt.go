package reader

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rc4"
	"encoding/binary"
	"fmt"

	"github.com/tsawler/pageview/core"
)

// passwordPad is the padding string of the Standard security handler.
var passwordPad = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

type cryptMethod int

const (
	cryptNone cryptMethod = iota
	cryptRC4
	cryptAESV2
)

// securityHandler implements the Standard security handler, revisions 2
// to 4, for reading.
type securityHandler struct {
	v, r            int
	keyLen          int
	o, u            []byte
	p               int32
	id0             []byte
	encryptMetadata bool

	stmMethod cryptMethod
	strMethod cryptMethod

	key []byte
}

func (r *Reader) setupEncryption(password string) error {
	encObj := r.trailer.Get("Encrypt")
	if encObj == nil {
		return nil
	}
	if ref, ok := encObj.(core.IndirectRef); ok {
		r.encryptNum = ref.Number
	}
	resolved, err := r.Resolve(encObj)
	if err != nil {
		return fmt.Errorf("%w: cannot load /Encrypt: %v", ErrUnsupportedEncryption, err)
	}
	dict, ok := resolved.(core.Dict)
	if !ok {
		return fmt.Errorf("%w: /Encrypt is %T", ErrUnsupportedEncryption, resolved)
	}

	var id0 []byte
	if ids, ok := r.trailer.GetArray("ID"); ok && len(ids) > 0 {
		if s, ok := ids[0].(core.String); ok {
			id0 = []byte(s)
		}
	}

	h, err := newSecurityHandler(dict, id0)
	if err != nil {
		return err
	}
	if err := h.authenticate([]byte(password)); err != nil {
		return err
	}

	r.crypt = h
	// Objects loaded so far were read in the clear.
	for num := range r.objCache {
		if num != r.encryptNum {
			delete(r.objCache, num)
		}
	}
	return nil
}

func newSecurityHandler(dict core.Dict, id0 []byte) (*securityHandler, error) {
	if filter, _ := dict.GetName("Filter"); filter != "Standard" {
		return nil, fmt.Errorf("%w: security handler %q", ErrUnsupportedEncryption, filter)
	}

	v, _ := dict.GetInt("V")
	rev, _ := dict.GetInt("R")
	h := &securityHandler{
		v:               int(v),
		r:               int(rev),
		keyLen:          5,
		id0:             id0,
		encryptMetadata: true,
		stmMethod:       cryptRC4,
		strMethod:       cryptRC4,
	}
	if h.r < 2 || h.r > 4 {
		return nil, fmt.Errorf("%w: revision %d", ErrUnsupportedEncryption, h.r)
	}

	o, _ := dict.GetString("O")
	u, _ := dict.GetString("U")
	if len(o) < 32 || len(u) < 32 {
		return nil, fmt.Errorf("%w: malformed /O or /U", ErrUnsupportedEncryption)
	}
	h.o, h.u = []byte(o)[:32], []byte(u)[:32]
	p, _ := dict.GetInt("P")
	h.p = int32(p)

	if b, ok := dict.GetBool("EncryptMetadata"); ok {
		h.encryptMetadata = bool(b)
	}

	switch h.v {
	case 1:
	case 2, 3:
		if bits, ok := dict.GetInt("Length"); ok {
			h.keyLen = int(bits) / 8
		}
	case 4:
		h.keyLen = 16
		var err error
		if h.stmMethod, err = cryptFilterMethod(dict, "StmF"); err != nil {
			return nil, err
		}
		if h.strMethod, err = cryptFilterMethod(dict, "StrF"); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: algorithm version %d", ErrUnsupportedEncryption, h.v)
	}
	if h.keyLen < 5 || h.keyLen > 16 {
		return nil, fmt.Errorf("%w: key length %d bytes", ErrUnsupportedEncryption, h.keyLen)
	}
	return h, nil
}

// cryptFilterMethod looks up the method of the crypt filter named by key
// (/StmF or /StrF) in /CF.
func cryptFilterMethod(dict core.Dict, key string) (cryptMethod, error) {
	name, ok := dict.GetName(key)
	if !ok || name == "Identity" {
		return cryptNone, nil
	}
	cf, _ := dict.GetDict("CF")
	filter, ok := cf.GetDict(string(name))
	if !ok {
		return 0, fmt.Errorf("%w: crypt filter %s not defined", ErrUnsupportedEncryption, name)
	}
	switch cfm, _ := filter.GetName("CFM"); cfm {
	case "None":
		return cryptNone, nil
	case "V2":
		return cryptRC4, nil
	case "AESV2":
		return cryptAESV2, nil
	default:
		return 0, fmt.Errorf("%w: crypt filter method %s", ErrUnsupportedEncryption, cfm)
	}
}

func padPassword(password []byte) []byte {
	out := make([]byte, 32)
	n := copy(out, password)
	copy(out[n:], passwordPad)
	return out
}

// fileKey derives the file encryption key from a user password.
func (h *securityHandler) fileKey(password []byte) []byte {
	m := md5.New()
	m.Write(padPassword(password))
	m.Write(h.o)
	var p [4]byte
	binary.LittleEndian.PutUint32(p[:], uint32(h.p))
	m.Write(p[:])
	m.Write(h.id0)
	if h.r >= 4 && !h.encryptMetadata {
		m.Write([]byte{0xff, 0xff, 0xff, 0xff})
	}
	key := m.Sum(nil)

	if h.r >= 3 {
		for i := 0; i < 50; i++ {
			sum := md5.Sum(key[:h.keyLen])
			key = sum[:]
		}
	}
	return key[:h.keyLen]
}

// userHash computes the /U value for a candidate key.
func (h *securityHandler) userHash(key []byte) []byte {
	if h.r == 2 {
		return rc4Crypt(key, passwordPad)
	}
	m := md5.New()
	m.Write(passwordPad)
	m.Write(h.id0)
	out := m.Sum(nil)
	for i := 0; i < 20; i++ {
		out = rc4Crypt(xorKey(key, byte(i)), out)
	}
	return out
}

func (h *securityHandler) checkUser(password []byte) []byte {
	key := h.fileKey(password)
	want := h.u
	n := 32
	if h.r >= 3 {
		n = 16
	}
	if bytes.Equal(h.userHash(key)[:n], want[:n]) {
		return key
	}
	return nil
}

// checkOwner recovers the user password from /O with the owner password
// and checks it.
func (h *securityHandler) checkOwner(password []byte) []byte {
	sum := md5.Sum(padPassword(password))
	okey := sum[:]
	if h.r >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(okey)
			okey = sum[:]
		}
	}
	okey = okey[:h.keyLen]

	user := append([]byte(nil), h.o...)
	if h.r == 2 {
		user = rc4Crypt(okey, user)
	} else {
		for i := 19; i >= 0; i-- {
			user = rc4Crypt(xorKey(okey, byte(i)), user)
		}
	}
	return h.checkUser(user)
}

func (h *securityHandler) authenticate(password []byte) error {
	if key := h.checkUser(password); key != nil {
		h.key = key
		return nil
	}
	if key := h.checkOwner(password); key != nil {
		h.key = key
		return nil
	}
	if len(password) == 0 {
		return ErrPasswordRequired
	}
	return ErrWrongPassword
}

// objectKey derives the per-object key.
func (h *securityHandler) objectKey(ref core.IndirectRef, method cryptMethod) []byte {
	m := md5.New()
	m.Write(h.key)
	m.Write([]byte{
		byte(ref.Number), byte(ref.Number >> 8), byte(ref.Number >> 16),
		byte(ref.Generation), byte(ref.Generation >> 8),
	})
	if method == cryptAESV2 {
		m.Write([]byte("sAlT"))
	}
	return m.Sum(nil)[:min(len(h.key)+5, 16)]
}

func (h *securityHandler) decrypt(data []byte, ref core.IndirectRef, method cryptMethod) ([]byte, error) {
	switch method {
	case cryptRC4:
		return rc4Crypt(h.objectKey(ref, method), data), nil
	case cryptAESV2:
		return aesCBCDecrypt(h.objectKey(ref, method), data)
	default:
		return data, nil
	}
}

// decryptObject returns obj with its strings and stream data decrypted.
func (h *securityHandler) decryptObject(obj core.Object, ref core.IndirectRef) (core.Object, error) {
	switch v := obj.(type) {
	case core.String:
		out, err := h.decrypt([]byte(v), ref, h.strMethod)
		return core.String(out), err

	case core.Array:
		out := make(core.Array, len(v))
		for i, elem := range v {
			var err error
			if out[i], err = h.decryptObject(elem, ref); err != nil {
				return nil, err
			}
		}
		return out, nil

	case core.Dict:
		out := make(core.Dict, len(v))
		for k, val := range v {
			var err error
			if out[k], err = h.decryptObject(val, ref); err != nil {
				return nil, err
			}
		}
		return out, nil

	case *core.Stream:
		dict, err := h.decryptObject(v.Dict, ref)
		if err != nil {
			return nil, err
		}
		data := v.Data
		if h.streamEncrypted(v.Dict) {
			if data, err = h.decrypt(v.Data, ref, h.stmMethod); err != nil {
				return nil, err
			}
		}
		return &core.Stream{Dict: dict.(core.Dict), Data: data}, nil

	default:
		return obj, nil
	}
}

func (h *securityHandler) streamEncrypted(dict core.Dict) bool {
	if t, _ := dict.GetName("Type"); t == "Metadata" && !h.encryptMetadata {
		return false
	}
	// A stream with its own Identity crypt filter is stored in the clear.
	if f, ok := dict.GetName("Filter"); ok && f == "Crypt" {
		return false
	}
	if fa, ok := dict.GetArray("Filter"); ok && len(fa) > 0 {
		if f, _ := fa.GetName(0); f == "Crypt" {
			return false
		}
	}
	return true
}

func rc4Crypt(key, data []byte) []byte {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return data
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out
}

func xorKey(key []byte, b byte) []byte {
	out := make([]byte, len(key))
	for i, k := range key {
		out[i] = k ^ b
	}
	return out
}

// aesCBCDecrypt decrypts data laid out as a 16-byte IV followed by the
// PKCS#5 padded ciphertext.
func aesCBCDecrypt(key, data []byte) ([]byte, error) {
	if len(data) <= aes.BlockSize {
		// An empty value may be stored as just the IV.
		return nil, nil
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("AES data length %d is not a whole number of blocks", len(data))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv, src := data[:aes.BlockSize], data[aes.BlockSize:]
	out := make([]byte, len(src))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, src)

	pad := int(out[len(out)-1])
	if pad < 1 || pad > aes.BlockSize || pad > len(out) {
		return nil, fmt.Errorf("bad AES padding")
	}
	return out[:len(out)-pad], nil
}
